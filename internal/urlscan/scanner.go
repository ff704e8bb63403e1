package urlscan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// ThreatLevel orders scan verdicts from harmless to blocked.
type ThreatLevel int

const (
	Safe ThreatLevel = iota
	Unknown
	Suspicious
	Warning
	Dangerous
	Blocked
)

func (t ThreatLevel) String() string {
	switch t {
	case Safe:
		return "Safe"
	case Suspicious:
		return "Suspicious"
	case Warning:
		return "Warning"
	case Dangerous:
		return "Dangerous"
	case Blocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// Icon returns the terminal glyph for a verdict.
func (t ThreatLevel) Icon() string {
	switch t {
	case Safe:
		return "✓"
	case Suspicious, Warning:
		return "⚠"
	case Dangerous:
		return "🚫"
	case Blocked:
		return "⛔"
	default:
		return "?"
	}
}

// Class returns the presentation class for a verdict, empty for unknown.
func (t ThreatLevel) Class() string {
	switch t {
	case Safe:
		return "secure"
	case Suspicious, Warning:
		return "warning"
	case Dangerous, Blocked:
		return "insecure"
	default:
		return ""
	}
}

// Flag bits record which heuristics fired on a URL.
type Flag uint32

const (
	FlagTyposquat Flag = 1 << iota
	FlagSuspiciousTLD
	FlagIPAddress
	FlagDeepSubdomain
	FlagHomograph
	FlagPunycode
	FlagPhishingWords
	FlagHTTPLogin
	FlagLongDomain
	FlagRandomDomain
	FlagFreeHosting
	FlagRedirectChain
	FlagDataURI
	FlagKnownMalware
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagTyposquat, "Typosquatting"},
	{FlagSuspiciousTLD, "BadTLD"},
	{FlagIPAddress, "IP"},
	{FlagDeepSubdomain, "DeepSub"},
	{FlagHomograph, "Homograph"},
	{FlagPhishingWords, "Phishing"},
	{FlagRedirectChain, "Redirect"},
}

func (f Flag) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, " ")
}

// Result is the full outcome of one scan.
type Result struct {
	Domain          string
	HTTPS           bool
	Level           ThreatLevel
	Flags           Flag
	Score           int
	Reason          string
	TyposquatTarget string
	SuspiciousTLD   string
	SubdomainDepth  int
	HomographCount  int
}

// Stats counts scans by verdict.
type Stats struct {
	TotalScans int
	Safe       int
	Suspicious int
	Dangerous  int
	Blocked    int
}

// AuditLog receives notable scan verdicts. The Governor's log entry point
// satisfies this.
type AuditLog interface {
	LogEvent(ctx context.Context, event, name, details string) error
}

// Config carries the scanner's tunables. The zero value works.
type Config struct {
	// MaxSubdomainDepth is the dot count above which nesting is penalized.
	// Zero means the default of 3.
	MaxSubdomainDepth int

	// DisableHomographs turns off lookalike-character detection.
	DisableHomographs bool

	// DNS, when set, consults a filtering resolver before heuristics run.
	DNS *DNSChecker

	// Audit, when set, receives Blocked and Dangerous verdicts.
	Audit AuditLog
}

// Scanner classifies URLs using only local data plus an optional DNS
// check. Safe for concurrent use.
type Scanner struct {
	mu       sync.Mutex
	allow    allowlist
	block    blocklist
	dns      *DNSChecker
	maxDepth int
	homogs   bool
	audit    AuditLog
	stats    Stats
}

// New builds a scanner from cfg.
func New(cfg Config) *Scanner {
	depth := cfg.MaxSubdomainDepth
	if depth == 0 {
		depth = 3
	}
	return &Scanner{
		dns:      cfg.DNS,
		maxDepth: depth,
		homogs:   !cfg.DisableHomographs,
		audit:    cfg.Audit,
	}
}

// Allow adds a domain (and its subdomains) to the allowlist.
func (s *Scanner) Allow(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allow.add(domain)
}

// Block adds a domain to the blocklist.
func (s *Scanner) Block(domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block.add(domain)
}

// IsBlocked reports whether domain or a parent of it is blocklisted.
func (s *Scanner) IsBlocked(domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block.contains(domain)
}

// BlocklistLen returns the number of blocklist entries.
func (s *Scanner) BlocklistLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.block.count
}

// ClearBlocklist drops every blocklist and allowlist entry.
func (s *Scanner) ClearBlocklist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block.clear()
	s.allow = allowlist{}
}

// Stats returns a snapshot of the verdict counters.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Scan classifies one URL. The pipeline short-circuits on the first
// terminal verdict: allowlist, blocklist, DNS block, then heuristics.
func (s *Scanner) Scan(ctx context.Context, url string) Result {
	return s.scan(ctx, url, true)
}

// QuickCheck returns just the threat level, never consulting DNS.
func (s *Scanner) QuickCheck(ctx context.Context, url string) ThreatLevel {
	return s.scan(ctx, url, false).Level
}

func (s *Scanner) scan(ctx context.Context, url string, useDNS bool) Result {
	s.mu.Lock()
	s.stats.TotalScans++

	res := Result{Domain: extractDomain(url)}
	if res.Domain == "" && !strings.HasPrefix(url, "data:") {
		res.Level = Unknown
		res.Reason = "Could not parse URL"
		s.mu.Unlock()
		return res
	}
	res.HTTPS = strings.HasPrefix(url, "https://")

	if s.allow.contains(res.Domain) {
		res.Level = Safe
		res.Reason = "Domain in allowlist"
		s.stats.Safe++
		s.mu.Unlock()
		return res
	}
	if s.block.contains(res.Domain) {
		res.Level = Blocked
		res.Flags |= FlagKnownMalware
		res.Reason = "Domain in malware blocklist"
		s.stats.Blocked++
		s.mu.Unlock()
		s.emit(ctx, "URL_BLOCKED", url, res.Reason)
		return res
	}
	dns := s.dns
	s.mu.Unlock()

	if useDNS && dns != nil && res.Domain != "" && !isIPAddress(res.Domain) {
		blocked, err := dns.Blocked(ctx, res.Domain)
		if err != nil {
			slog.Debug("dns check inconclusive", "domain", res.Domain, "error", err)
		}
		if blocked {
			res.Level = Blocked
			res.Flags |= FlagKnownMalware
			res.Reason = fmt.Sprintf("Blocked by DNS security (%s)", dns.server())
			s.mu.Lock()
			s.stats.Blocked++
			s.mu.Unlock()
			s.emit(ctx, "URL_BLOCKED", url, res.Reason)
			return res
		}
	}

	s.score(url, &res)

	res.Level = levelForScore(res.Score)
	s.mu.Lock()
	switch res.Level {
	case Dangerous:
		s.stats.Dangerous++
	case Warning, Suspicious:
		s.stats.Suspicious++
	case Safe:
		s.stats.Safe++
	}
	s.mu.Unlock()

	res.Reason = buildReason(&res)
	if res.Level == Dangerous {
		s.emit(ctx, "URL_DANGEROUS", url, res.Reason)
	}
	return res
}

// levelForScore maps an accumulated heuristic score to a verdict.
func levelForScore(score int) ThreatLevel {
	switch {
	case score >= 70:
		return Dangerous
	case score >= 50:
		return Warning
	case score >= 30:
		return Suspicious
	case score >= 10:
		return Unknown
	default:
		return Safe
	}
}

// score runs the heuristic checks and accumulates res.Score and res.Flags.
func (s *Scanner) score(url string, res *Result) {
	if dist, target := checkTyposquat(res.Domain); dist > 0 {
		res.Flags |= FlagTyposquat
		res.TyposquatTarget = target
		res.Score += 40
	}

	if tld := checkTLD(res.Domain); tld != "" {
		res.Flags |= FlagSuspiciousTLD
		res.SuspiciousTLD = tld
		res.Score += 20
	}

	if isIPAddress(res.Domain) {
		res.Flags |= FlagIPAddress
		res.Score += 25
	}

	res.SubdomainDepth = countSubdomains(res.Domain)
	if res.SubdomainDepth > s.maxDepth {
		res.Flags |= FlagDeepSubdomain
		res.Score += 15
	}

	if s.homogs {
		res.HomographCount = checkHomograph(res.Domain)
		if res.HomographCount > 0 {
			res.Flags |= FlagHomograph
			res.Score += res.HomographCount * 10
		}
		if strings.Contains(res.Domain, "xn--") {
			res.Flags |= FlagPunycode
			res.Score += 15
		}
	}

	if p := extractPath(url); p != "" {
		if n := checkPath(p); n > 0 {
			res.Flags |= FlagPhishingWords
			res.Score += n * 10
			if !res.HTTPS && n >= 2 {
				res.Flags |= FlagHTTPLogin
				res.Score += 20
			}
		}
	}

	if len(res.Domain) > 50 {
		res.Flags |= FlagLongDomain
		res.Score += 10
	}
	if looksRandom(res.Domain) {
		res.Flags |= FlagRandomDomain
		res.Score += 15
	}

	for _, host := range freeHostingDomains {
		if strings.Contains(res.Domain, host) {
			res.Flags |= FlagFreeHosting
			res.Score += 10
			break
		}
	}
	for _, svc := range redirectServices {
		if res.Domain == svc {
			res.Flags |= FlagRedirectChain
			res.Score += 15
			break
		}
	}

	if strings.HasPrefix(url, "data:") {
		res.Flags |= FlagDataURI
		res.Score += 50
	}

	if res.Score > 100 {
		res.Score = 100
	}
}

// checkTyposquat compares the registrable domain against the brand list.
// A Levenshtein distance of 1-2, or an exact match after digit-homoglyph
// normalization of the candidate, means a likely typosquat. Returns the
// distance and the impersonated brand name.
func checkTyposquat(domain string) (int, string) {
	main := registrableDomain(domain)
	normalized := normalizeDigits(main)
	for _, b := range knownBrands {
		dist := levenshtein(main, b.Domain)
		if dist > 0 && dist <= 2 {
			return dist, b.Name
		}
		if normalized == b.Domain && main != b.Domain {
			return 1, b.Name
		}
	}
	return 0, ""
}

// checkTLD returns the matching suspicious TLD, or "".
func checkTLD(domain string) string {
	tld := extractTLD(domain)
	if tld == "" {
		return ""
	}
	for _, sus := range suspiciousTLDs {
		if strings.EqualFold(tld, sus) {
			return tld
		}
	}
	return ""
}

// checkHomograph counts lookalike sequences in the NFKC-normalized
// domain. A punycode prefix alone counts as five hits.
func checkHomograph(domain string) int {
	count := 0
	if strings.Contains(domain, "xn--") {
		count += 5
	}
	d := norm.NFKC.String(domain)
	for _, h := range homographChars {
		if strings.Contains(d, h.Lookalike) {
			count++
		}
	}
	return count
}

// checkPath counts phishing keywords in the lowercase URL path.
func checkPath(p string) int {
	lowered := strings.ToLower(p)
	count := 0
	for _, kw := range phishingKeywords {
		if strings.Contains(lowered, kw) {
			count++
		}
	}
	return count
}

func buildReason(res *Result) string {
	var b strings.Builder
	if res.Flags&FlagTyposquat != 0 {
		fmt.Fprintf(&b, "Possible typosquatting of %s. ", res.TyposquatTarget)
	}
	if res.Flags&FlagSuspiciousTLD != 0 {
		fmt.Fprintf(&b, "Suspicious TLD (%s). ", res.SuspiciousTLD)
	}
	if res.Flags&FlagIPAddress != 0 {
		b.WriteString("IP address instead of domain. ")
	}
	if res.Flags&FlagDeepSubdomain != 0 {
		fmt.Fprintf(&b, "Excessive subdomains (%d). ", res.SubdomainDepth)
	}
	if res.Flags&FlagHomograph != 0 {
		b.WriteString("Possible homograph attack. ")
	}
	if res.Flags&FlagPhishingWords != 0 {
		b.WriteString("Suspicious keywords in URL. ")
	}
	if res.Flags&FlagHTTPLogin != 0 {
		b.WriteString("Login page over HTTP (insecure). ")
	}
	if res.Flags&FlagRandomDomain != 0 {
		b.WriteString("Random-looking domain. ")
	}
	if res.Flags&FlagRedirectChain != 0 {
		b.WriteString("URL shortener (destination hidden). ")
	}
	if res.Flags&FlagDataURI != 0 {
		b.WriteString("Data URI (can hide malicious content). ")
	}
	if b.Len() == 0 {
		return "No threats detected"
	}
	return strings.TrimRight(b.String(), " ")
}

func (s *Scanner) emit(ctx context.Context, event, url, details string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(ctx, event, fmt.Sprintf("urlscan:%s", url), details); err != nil {
		slog.Warn("urlscan audit emit failed", "event", event, "error", err)
	}
}
