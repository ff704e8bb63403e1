package urlscan

import "strings"

// allowlist is a flat list of trusted domains. An entry allows itself and
// every subdomain beneath it.
type allowlist struct {
	domains []string
}

func (a *allowlist) add(domain string) {
	a.domains = append(a.domains, strings.ToLower(domain))
}

func (a *allowlist) contains(domain string) bool {
	d := strings.ToLower(domain)
	for _, allowed := range a.domains {
		if d == allowed {
			return true
		}
		if len(d) > len(allowed)+1 && strings.HasSuffix(d, allowed) &&
			d[len(d)-len(allowed)-1] == '.' {
			return true
		}
	}
	return false
}
