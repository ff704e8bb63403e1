// Package capability defines the fixed 32-bit permission vocabulary and its
// constitutional three-bucket partition.
//
// Bit positions are ABI: they appear in decision records and must never be
// renumbered. Bucket membership is fixed at compile time.
package capability

import (
	"strings"

	"github.com/phantomos/phantom/internal/fault"
)

// Cap is one bit of the capability vocabulary.
type Cap uint32

// Set is a bitmask over the vocabulary.
type Set uint32

// The vocabulary. AUTO_APPROVE bucket first, then USER_APPROVE, then the
// logged info reads.
const (
	ReadFiles Cap = 1 << iota
	WriteFiles
	CreateFiles
	ListFiles
	IPCSend
	IPCRecv
	SpawnTask

	NetConnect
	NetListen
	NetTLS
	NetPlaintext
	RawDevice
	SysConfig
	ElevatedMem
	ElevatedPrio
	GovernorBypass

	ReadSysInfo
	ReadProcInfo
)

// Count is the number of named capabilities.
const Count = 18

// Constitutional buckets. Every named capability belongs to exactly one.
const (
	// AutoApprove capabilities are granted without user interaction when
	// threat allows.
	AutoApprove Set = Set(ReadFiles | WriteFiles | CreateFiles | ListFiles |
		IPCSend | IPCRecv | SpawnTask)

	// UserApprove capabilities always require an explicit user decision.
	// GovernorBypass is reserved: it is never inferred from code text and
	// only an explicit user approval may grant it.
	UserApprove Set = Set(NetConnect | NetListen | NetTLS | NetPlaintext |
		RawDevice | SysConfig | ElevatedMem | ElevatedPrio | GovernorBypass)

	// Info capabilities are auto-approved but every grant is logged.
	Info Set = Set(ReadSysInfo | ReadProcInfo)

	// All is the full vocabulary.
	All Set = AutoApprove | UserApprove | Info
)

var names = map[Cap]string{
	ReadFiles:      "READ_FILES",
	WriteFiles:     "WRITE_FILES",
	CreateFiles:    "CREATE_FILES",
	ListFiles:      "LIST_FILES",
	IPCSend:        "IPC_SEND",
	IPCRecv:        "IPC_RECV",
	SpawnTask:      "SPAWN_TASK",
	NetConnect:     "NET_CONNECT",
	NetListen:      "NET_LISTEN",
	NetTLS:         "NET_TLS",
	NetPlaintext:   "NET_PLAINTEXT",
	RawDevice:      "RAW_DEVICE",
	SysConfig:      "SYS_CONFIG",
	ElevatedMem:    "ELEVATED_MEM",
	ElevatedPrio:   "ELEVATED_PRIO",
	GovernorBypass: "GOVERNOR_BYPASS",
	ReadSysInfo:    "READ_SYSINFO",
	ReadProcInfo:   "READ_PROCINFO",
}

var byName = func() map[string]Cap {
	m := make(map[string]Cap, len(names))
	for c, n := range names {
		m[n] = c
	}
	return m
}()

// String returns the fixed name of a capability, or "UNKNOWN" for an
// unnamed bit.
func (c Cap) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// Parse resolves a capability name.
func Parse(name string) (Cap, error) {
	if c, ok := byName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return c, nil
	}
	return 0, fault.New(fault.KindInvalidInput, "capability", "unknown capability %q", name)
}

// ParseSet resolves a comma-separated list of capability names.
func ParseSet(list string) (Set, error) {
	var s Set
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := Parse(part)
		if err != nil {
			return 0, err
		}
		s = s.With(c)
	}
	return s, nil
}

// With returns the set with c added.
func (s Set) With(c Cap) Set { return s | Set(c) }

// Without returns the set with c removed.
func (s Set) Without(c Cap) Set { return s &^ Set(c) }

// Has reports whether c is in the set.
func (s Set) Has(c Cap) bool { return s&Set(c) != 0 }

// Union returns the OR of two sets.
func (s Set) Union(o Set) Set { return s | o }

// Intersect returns the AND of two sets.
func (s Set) Intersect(o Set) Set { return s & o }

// SubsetOf reports whether every capability in s is in o.
func (s Set) SubsetOf(o Set) bool { return s&^o == 0 }

// Empty reports whether the set has no capabilities.
func (s Set) Empty() bool { return s == 0 }

// Caps returns the member capabilities in bit order.
func (s Set) Caps() []Cap {
	var out []Cap
	for i := 0; i < Count; i++ {
		c := Cap(1) << i
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the member capability names in bit order.
func (s Set) Names() []string {
	var out []string
	for _, c := range s.Caps() {
		out = append(out, c.String())
	}
	return out
}

// String renders the set as a comma-separated name list, "NONE" if empty.
func (s Set) String() string {
	if s.Empty() {
		return "NONE"
	}
	return strings.Join(s.Names(), ",")
}

// RequiresUser reports whether any member needs explicit user approval.
func (s Set) RequiresUser() bool { return !s.Intersect(UserApprove).Empty() }

// LoggedOnly reports whether the set consists entirely of auto-approved
// capabilities (including logged info reads).
func (s Set) LoggedOnly() bool { return s.SubsetOf(AutoApprove | Info) }
