package governor

import "strings"

// BehaviorFlag marks one suspicious pattern family found in an artifact.
type BehaviorFlag uint32

const (
	BehaviorInfiniteLoop BehaviorFlag = 1 << iota
	BehaviorMemoryBomb
	BehaviorForkBomb
	BehaviorObfuscation
	BehaviorEncodedPayload
	BehaviorShellInjection
	BehaviorPathTraversal
	BehaviorResourceExhaust
	BehaviorLoopDestruction
)

// BehaviorResult is the outcome of heuristic code analysis. The score is
// capped at 100.
type BehaviorResult struct {
	Flags           BehaviorFlag
	SuspiciousScore int
	Descriptions    []string
}

// Has reports whether the given flag was raised.
func (r BehaviorResult) Has(f BehaviorFlag) bool { return r.Flags&f != 0 }

// AnalyzeBehavior scans code text for suspicious structural patterns.
// Deterministic and never fails; unknown input simply scores zero.
func AnalyzeBehavior(code string) BehaviorResult {
	var r BehaviorResult
	score := 0

	has := func(subs ...string) bool {
		for _, sub := range subs {
			if strings.Contains(code, sub) {
				return true
			}
		}
		return false
	}

	if has("while(1)", "while (1)", "for(;;)", "for (;;)") {
		r.Flags |= BehaviorInfiniteLoop
		score += 20
		r.Descriptions = append(r.Descriptions, "Potential infinite loop detected (while(1) or for(;;))")
	}
	if has("malloc") && has("while") {
		r.Flags |= BehaviorMemoryBomb
		score += 30
		r.Descriptions = append(r.Descriptions, "Potential memory bomb: allocation in loop")
	}
	if has("fork()") && has("while", "for") {
		r.Flags |= BehaviorForkBomb
		score += 40
		r.Descriptions = append(r.Descriptions, "Potential fork bomb: fork() in loop")
	}
	if has("\\x", "0x", "atoi") {
		r.Flags |= BehaviorObfuscation
		score += 10
		r.Descriptions = append(r.Descriptions, "Possible code obfuscation detected")
	}
	if has("base64", "decode", "eval(") {
		r.Flags |= BehaviorEncodedPayload
		score += 25
		r.Descriptions = append(r.Descriptions, "Encoded payload or dynamic evaluation detected")
	}
	if has("system(", "popen(", "exec(") {
		r.Flags |= BehaviorShellInjection
		score += 30
		r.Descriptions = append(r.Descriptions, "Potential shell injection via system()/exec()")
	}
	if has("../", "..\\") {
		r.Flags |= BehaviorPathTraversal
		score += 20
		r.Descriptions = append(r.Descriptions, "Path traversal pattern detected (../)")
	}
	if has("ulimit") || (has("open(") && has("while")) {
		r.Flags |= BehaviorResourceExhaust
		score += 25
		r.Descriptions = append(r.Descriptions, "Potential resource exhaustion pattern")
	}
	if has("rm ", "unlink", "delete") && has("while", "for") {
		r.Flags |= BehaviorLoopDestruction
		score += 35
		r.Descriptions = append(r.Descriptions, "Destructive operation in loop detected")
	}

	if score > 100 {
		score = 100
	}
	r.SuspiciousScore = score
	return r
}
