package urlscan

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phantomos/phantom/internal/fault"
)

// localhost-family names and mDNS entries that hosts files carry but that
// are never real blocks.
func skipHostsName(name string) bool {
	switch name {
	case "localhost", "localhost.localdomain", "local", "broadcasthost":
		return true
	}
	return strings.Contains(name, "._")
}

func blockingIP(ip string) bool {
	return ip == "0.0.0.0" || ip == "127.0.0.1" || strings.HasPrefix(ip, "::1")
}

// LoadHostsFile reads a hosts(5)-format blocklist. Only lines whose
// address is a blocking sink (0.0.0.0, 127.0.0.1 or ::1) are taken;
// comments and localhost entries are skipped. Returns the number of
// domains added.
func (s *Scanner) LoadHostsFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fault.Wrap(err, fault.KindIO, "blocklist_open", "cannot open blocklist %s", path)
	}
	defer f.Close()

	loaded := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		ip := fields[0]
		if !blockingIP(ip) {
			continue
		}
		for _, name := range fields[1:] {
			if strings.HasPrefix(name, "#") {
				break
			}
			if skipHostsName(name) {
				continue
			}
			if err := s.Block(name); err == nil {
				loaded++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return loaded, fault.Wrap(err, fault.KindIO, "blocklist_read", "error reading %s", path)
	}
	slog.Info("loaded hosts blocklist", "path", path, "domains", loaded)
	return loaded, nil
}

// LoadDomainFile reads a plain domain list, one domain per line. URLs are
// reduced to their host; lines without a dot are skipped.
func (s *Scanner) LoadDomainFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fault.Wrap(err, fault.KindIO, "blocklist_open", "cannot open blocklist %s", path)
	}
	defer f.Close()

	loaded := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || len(line) < 3 {
			continue
		}
		line = strings.TrimPrefix(line, "http://")
		line = strings.TrimPrefix(line, "https://")
		if i := strings.IndexByte(line, '/'); i >= 0 {
			line = line[:i]
		}
		if len(line) < 3 || !strings.Contains(line, ".") {
			continue
		}
		if err := s.Block(line); err == nil {
			loaded++
		}
	}
	if err := sc.Err(); err != nil {
		return loaded, fault.Wrap(err, fault.KindIO, "blocklist_read", "error reading %s", path)
	}
	slog.Info("loaded domain blocklist", "path", path, "domains", loaded)
	return loaded, nil
}

// LoadBlocklistDir loads every file in a directory, choosing the loader
// by extension: .hosts (or a file literally named "hosts") parse as
// hosts(5), everything else as a plain domain list.
func (s *Scanner) LoadBlocklistDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fault.Wrap(err, fault.KindIO, "blocklist_dir", "cannot open blocklist directory %s", dir)
	}

	total := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || e.IsDir() {
			continue
		}
		full := filepath.Join(dir, name)
		ext := strings.ToLower(filepath.Ext(name))

		var loaded int
		if ext == ".hosts" || strings.EqualFold(name, "hosts") {
			loaded, err = s.LoadHostsFile(full)
		} else {
			loaded, err = s.LoadDomainFile(full)
		}
		if err != nil {
			slog.Warn("skipping blocklist file", "path", full, "error", err)
			continue
		}
		total += loaded
	}
	slog.Info("loaded blocklist directory", "dir", dir, "domains", total)
	return total, nil
}
