package urlscan

import "strings"

// extractDomain pulls the lowercase host out of a URL. The scheme is
// stripped if present and the host ends at the first '/', ':', '?' or '#'.
// An empty result means the URL had no host to speak of.
func extractDomain(url string) string {
	s := url
	switch {
	case strings.HasPrefix(s, "https://"):
		s = s[8:]
	case strings.HasPrefix(s, "http://"):
		s = s[7:]
	case strings.HasPrefix(s, "//"):
		s = s[2:]
	}
	if i := strings.IndexAny(s, "/:?#"); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}

// extractPath returns everything after the host, starting at the slash
// that follows it. Empty when the URL has no path component.
func extractPath(url string) string {
	s := url
	switch {
	case strings.HasPrefix(s, "https://"):
		s = s[8:]
	case strings.HasPrefix(s, "http://"):
		s = s[7:]
	case strings.HasPrefix(s, "//"):
		s = s[2:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		return s[i:]
	}
	return ""
}

// extractTLD returns the final dot-suffix of a domain, dot included.
func extractTLD(domain string) string {
	i := strings.LastIndexByte(domain, '.')
	if i < 0 {
		return ""
	}
	return domain[i:]
}

// countSubdomains counts label separators: www.example.com has one
// subdomain level, a.b.example.com has three.
func countSubdomains(domain string) int {
	return strings.Count(domain, ".")
}

// registrableDomain strips leading subdomain labels so that only the last
// two labels remain. Domains with a single dot pass through unchanged.
func registrableDomain(domain string) string {
	dots := countSubdomains(domain)
	if dots <= 1 {
		return domain
	}
	skip := dots - 1
	for i := 0; i < len(domain); i++ {
		if domain[i] == '.' {
			skip--
			if skip == 0 {
				return domain[i+1:]
			}
		}
	}
	return domain
}

// normalizeDigits rewrites the digit homoglyphs attackers substitute for
// letters. Applied to candidate domains only, never to the brand list.
func normalizeDigits(domain string) string {
	var b strings.Builder
	b.Grow(len(domain))
	for i := 0; i < len(domain); i++ {
		switch domain[i] {
		case '0':
			b.WriteByte('o')
		case '1':
			b.WriteByte('l')
		case '3':
			b.WriteByte('e')
		case '4':
			b.WriteByte('a')
		case '5':
			b.WriteByte('s')
		case '8':
			b.WriteByte('b')
		default:
			b.WriteByte(domain[i])
		}
	}
	return b.String()
}

// looksRandom flags hosts whose first label reads like machine noise:
// a consonant-to-vowel ratio above 5, a run of 5+ consonants, or a short
// name stuffed with digits.
func looksRandom(domain string) bool {
	if len(domain) < 8 {
		return false
	}
	var consonants, vowels, digits int
	var run, maxRun int
	for i := 0; i < len(domain) && domain[i] != '.'; i++ {
		c := lower(domain[i])
		switch {
		case c == 'a' || c == 'e' || c == 'i' || c == 'o' || c == 'u':
			vowels++
			run = 0
		case c >= 'a' && c <= 'z':
			consonants++
			run++
			if run > maxRun {
				maxRun = run
			}
		case c >= '0' && c <= '9':
			digits++
			run = 0
		}
	}
	if vowels > 0 && consonants/vowels > 5 {
		return true
	}
	if maxRun >= 5 {
		return true
	}
	return digits > 3 && len(domain) < 20
}

// isIPAddress reports whether the host is an IP literal rather than a
// name. IPv4 is recognized structurally; any colon means IPv6.
func isIPAddress(domain string) bool {
	var dots, digits int
	for i := 0; i < len(domain); i++ {
		switch c := domain[i]; {
		case c == '.':
			dots++
		case c >= '0' && c <= '9':
			digits++
		case c == ':' || c == '[' || c == ']':
		default:
			return false
		}
	}
	if dots == 3 && digits >= 4 {
		return true
	}
	return strings.ContainsRune(domain, ':')
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 32
	}
	return c
}

// levenshtein is the edit distance with unit costs, case-insensitive.
// Inputs longer than 64 bytes are never close typos; they short-circuit
// to a sentinel distance well past any threshold.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > 64 || len(b) > 64 {
		return 100
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if lower(a[i-1]) == lower(b[j-1]) {
				cost = 0
			}
			m := prev[j] + 1
			if v := cur[j-1] + 1; v < m {
				m = v
			}
			if v := prev[j-1] + cost; v < m {
				m = v
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
