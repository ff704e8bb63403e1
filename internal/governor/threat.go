package governor

// ThreatLevel is the total-ordered coarse classification of an artifact.
type ThreatLevel int

const (
	ThreatNone ThreatLevel = iota
	ThreatLow
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

// String renders the fixed threat name.
func (t ThreatLevel) String() string {
	switch t {
	case ThreatNone:
		return "None"
	case ThreatLow:
		return "Low"
	case ThreatMedium:
		return "Medium"
	case ThreatHigh:
		return "High"
	case ThreatCritical:
		return "Critical"
	}
	return "Unknown"
}

// ParseThreat resolves a threat name as rendered by String. Unrecognized
// names map to ThreatNone.
func ParseThreat(name string) ThreatLevel {
	switch name {
	case "Low":
		return ThreatLow
	case "Medium":
		return ThreatMedium
	case "High":
		return ThreatHigh
	case "Critical":
		return ThreatCritical
	}
	return ThreatNone
}

// threatFromScore maps a behavioral suspicion score to a base threat.
func threatFromScore(score int) ThreatLevel {
	switch {
	case score >= 85:
		return ThreatCritical
	case score >= 60:
		return ThreatHigh
	case score >= 30:
		return ThreatMedium
	case score > 0:
		return ThreatLow
	default:
		return ThreatNone
	}
}

func (t ThreatLevel) raise(min ThreatLevel) ThreatLevel {
	if t < min {
		return min
	}
	return t
}

func (t ThreatLevel) clamp(max ThreatLevel) ThreatLevel {
	if t > max {
		return max
	}
	return t
}

// bump raises the threat one level, saturating at Critical.
func (t ThreatLevel) bump() ThreatLevel {
	if t >= ThreatCritical {
		return ThreatCritical
	}
	return t + 1
}
