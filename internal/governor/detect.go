package governor

import (
	"strings"

	"github.com/phantomos/phantom/internal/capability"
)

// Destructive lexemes that decline an artifact outright. The list is
// closed and part of the ABI: admission never negotiates over these.
var hardDeclineLexemes = []string{
	"unlink",
	"remove",
	"truncate",
	"delete",
	"kill(",
	"abort",
}

// hardDecline returns the first destructive lexeme found in the code, or
// "" if none.
func hardDecline(code string) string {
	for _, lexeme := range hardDeclineLexemes {
		if strings.Contains(code, lexeme) {
			return lexeme
		}
	}
	return ""
}

// hardDeclineAlternatives is the remediation text for hard declines,
// pointing at the non-destructive equivalents.
const hardDeclineAlternatives = "Replace delete/unlink/remove with hide, truncate with archive, kill/abort with suspend. Hidden and suspended entities can be restored; nothing is erased."

// capHints maps lexical hints in code text to the capabilities the code
// appears to need. GOVERNOR_BYPASS is deliberately absent: it can never be
// inferred, only explicitly declared and user-approved.
var capHints = []struct {
	subs []string
	cap  capability.Cap
}{
	{[]string{"network", "socket", "connect"}, capability.NetConnect},
	{[]string{"listen(", "accept("}, capability.NetListen},
	{[]string{"https", "tls", "ssl"}, capability.NetTLS},
	{[]string{"http://"}, capability.NetPlaintext},
	{[]string{"read_file", "read(", "fopen"}, capability.ReadFiles},
	{[]string{"write_file", "write("}, capability.WriteFiles},
	{[]string{"create_file", "creat(", "mkdir"}, capability.CreateFiles},
	{[]string{"list_dir", "readdir", "opendir"}, capability.ListFiles},
	{[]string{"ipc_send", "msgsnd", "pipe("}, capability.IPCSend},
	{[]string{"ipc_recv", "msgrcv"}, capability.IPCRecv},
	{[]string{"spawn", "fork", "exec", "process"}, capability.SpawnTask},
	{[]string{"malloc", "mmap"}, capability.ElevatedMem},
	{[]string{"setpriority", "nice("}, capability.ElevatedPrio},
	{[]string{"ioctl", "/dev/"}, capability.RawDevice},
	{[]string{"sysctl", "config_set"}, capability.SysConfig},
	{[]string{"sysinfo"}, capability.ReadSysInfo},
	{[]string{"procinfo", "proc_stat"}, capability.ReadProcInfo},
}

// detectCapabilities derives the capability set the code appears to use
// from lexical hints. Deterministic; never fails.
func detectCapabilities(code string) capability.Set {
	var caps capability.Set
	for _, hint := range capHints {
		for _, sub := range hint.subs {
			if strings.Contains(code, sub) {
				caps = caps.With(hint.cap)
				break
			}
		}
	}
	return caps
}
