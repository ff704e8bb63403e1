package urlscan

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// auditRecorder captures emitted scan events.
type auditRecorder struct {
	mu     sync.Mutex
	events []string
}

func (a *auditRecorder) LogEvent(_ context.Context, event, name, details string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, fmt.Sprintf("%s %s %s", event, name, details))
	return nil
}

func (a *auditRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func TestScan_CleanURLIsSafe(t *testing.T) {
	s := New(Config{})
	res := s.Scan(context.Background(), "https://example.com/about")
	assert.Equal(t, Safe, res.Level)
	assert.Equal(t, "example.com", res.Domain)
	assert.True(t, res.HTTPS)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, "No threats detected", res.Reason)
}

func TestScan_UnparsableURL(t *testing.T) {
	s := New(Config{})
	for _, url := range []string{"", "https://", "http://"} {
		res := s.Scan(context.Background(), url)
		assert.Equal(t, Unknown, res.Level, "url %q", url)
		assert.Equal(t, "Could not parse URL", res.Reason)
	}
}

func TestScan_TyposquatWithDigitHomograph(t *testing.T) {
	audit := &auditRecorder{}
	s := New(Config{Audit: audit})

	res := s.Scan(context.Background(), "http://paypa1.com/login")

	// Typosquat 40, homograph "1" 10, keyword "login" 10.
	assert.Equal(t, 60, res.Score)
	assert.Equal(t, Warning, res.Level)
	assert.Equal(t, "PayPal", res.TyposquatTarget)
	assert.NotZero(t, res.Flags&FlagTyposquat)
	assert.NotZero(t, res.Flags&FlagHomograph)
	assert.NotZero(t, res.Flags&FlagPhishingWords)
	assert.Zero(t, res.Flags&FlagHTTPLogin, "one keyword alone does not trip the HTTP login flag")
	assert.Contains(t, res.Reason, "Possible typosquatting of PayPal.")
	assert.False(t, res.HTTPS)
	assert.Equal(t, 0, audit.count(), "warnings are not audit events")
}

func TestScan_PhishingPageOverHTTPIsDangerous(t *testing.T) {
	audit := &auditRecorder{}
	s := New(Config{Audit: audit})

	url := "http://secure-login.example-verify.gq/login.php?account=verify"
	res := s.Scan(context.Background(), url)

	// Four keywords (login, verify, account, .php?) 40, HTTP login combo
	// 20, suspicious TLD 20.
	assert.Equal(t, 80, res.Score)
	assert.Equal(t, Dangerous, res.Level)
	assert.Equal(t, ".gq", res.SuspiciousTLD)
	assert.NotZero(t, res.Flags&FlagSuspiciousTLD)
	assert.NotZero(t, res.Flags&FlagPhishingWords)
	assert.NotZero(t, res.Flags&FlagHTTPLogin)
	assert.Contains(t, res.Reason, "Login page over HTTP")
	assert.Equal(t, 1, audit.count(), "dangerous verdicts are audited")
}

func TestScan_LevelBoundaries(t *testing.T) {
	s := New(Config{})

	// Typosquat 40, digit homograph 10, two keywords 20: exactly 70.
	res := s.Scan(context.Background(), "https://paypa1.com/login?account=1")
	assert.Equal(t, 70, res.Score)
	assert.Equal(t, Dangerous, res.Level)

	// Suspicious TLD 20, one keyword 10: exactly 30.
	res = s.Scan(context.Background(), "https://prizes.tk/login")
	assert.Equal(t, 30, res.Score)
	assert.Equal(t, Suspicious, res.Level)

	// One keyword alone: exactly 10.
	res = s.Scan(context.Background(), "https://example.org/login")
	assert.Equal(t, 10, res.Score)
	assert.Equal(t, Unknown, res.Level)

	// One point under each threshold stays at the lower level.
	assert.Equal(t, Warning, levelForScore(69))
	assert.Equal(t, Suspicious, levelForScore(49))
	assert.Equal(t, Unknown, levelForScore(29))
	assert.Equal(t, Safe, levelForScore(9))
}

func TestScan_SuspiciousTLD(t *testing.T) {
	s := New(Config{})
	res := s.Scan(context.Background(), "http://free-prizes.tk/")
	assert.Equal(t, 20, res.Score)
	assert.Equal(t, Unknown, res.Level)
	assert.Equal(t, ".tk", res.SuspiciousTLD)
	assert.Contains(t, res.Reason, "Suspicious TLD (.tk)")
}

func TestScan_IPLiteral(t *testing.T) {
	s := New(Config{})
	res := s.Scan(context.Background(), "http://192.168.1.50/login")
	assert.Equal(t, 35, res.Score)
	assert.Equal(t, Suspicious, res.Level)
	assert.NotZero(t, res.Flags&FlagIPAddress)
	assert.Contains(t, res.Reason, "IP address instead of domain")
}

func TestScan_DeepSubdomainNesting(t *testing.T) {
	s := New(Config{})
	res := s.Scan(context.Background(), "http://a.b.c.login.example.com/")
	assert.Equal(t, 5, res.SubdomainDepth)
	assert.NotZero(t, res.Flags&FlagDeepSubdomain)
	assert.Contains(t, res.Reason, "Excessive subdomains (5)")

	// A larger configured depth tolerates the same nesting.
	deep := New(Config{MaxSubdomainDepth: 6})
	res = deep.Scan(context.Background(), "http://a.b.c.login.example.com/")
	assert.Zero(t, res.Flags&FlagDeepSubdomain)
}

func TestScan_AsciiPairHomograph(t *testing.T) {
	s := New(Config{})
	res := s.Scan(context.Background(), "http://rnicrosoft.com/")
	assert.Equal(t, 50, res.Score)
	assert.Equal(t, Warning, res.Level)
	assert.Equal(t, "Microsoft", res.TyposquatTarget)
	assert.Equal(t, 1, res.HomographCount)
}

func TestScan_PunycodePrefix(t *testing.T) {
	s := New(Config{})
	res := s.Scan(context.Background(), "http://xn--pypal-4ve.com/")
	// The punycode marker counts as five homograph hits plus its own flag.
	assert.Equal(t, 65, res.Score)
	assert.NotZero(t, res.Flags&FlagHomograph)
	assert.NotZero(t, res.Flags&FlagPunycode)

	off := New(Config{DisableHomographs: true})
	res = off.Scan(context.Background(), "http://xn--pypal-4ve.com/")
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, Safe, res.Level)
}

func TestScan_URLShortener(t *testing.T) {
	s := New(Config{})
	res := s.Scan(context.Background(), "https://bit.ly/3xYz")
	assert.Equal(t, 15, res.Score)
	assert.Equal(t, Unknown, res.Level)
	assert.NotZero(t, res.Flags&FlagRedirectChain)
	assert.Contains(t, res.Reason, "URL shortener")
}

func TestScan_DataURI(t *testing.T) {
	s := New(Config{})
	res := s.Scan(context.Background(), "data:text/html;base64,PGh0bWw+")
	assert.NotZero(t, res.Flags&FlagDataURI)
	assert.Equal(t, 50, res.Score)
	assert.Equal(t, Warning, res.Level)
	assert.Contains(t, res.Reason, "Data URI")
}

func TestScan_AllowlistShortCircuits(t *testing.T) {
	s := New(Config{})
	s.Allow("example.com")

	// Even a keyword-stuffed path is trusted on an allowlisted domain,
	// subdomains included.
	res := s.Scan(context.Background(), "https://sub.example.com/login-verify-account")
	assert.Equal(t, Safe, res.Level)
	assert.Equal(t, "Domain in allowlist", res.Reason)
	assert.Equal(t, 0, res.Score)
}

func TestScan_BlocklistBeatsHeuristics(t *testing.T) {
	audit := &auditRecorder{}
	s := New(Config{Audit: audit})
	require.NoError(t, s.Block("evil.com"))

	res := s.Scan(context.Background(), "http://www.evil.com/harmless")
	assert.Equal(t, Blocked, res.Level)
	assert.NotZero(t, res.Flags&FlagKnownMalware)
	assert.Equal(t, "Domain in malware blocklist", res.Reason)
	assert.Equal(t, 1, audit.count())

	assert.True(t, s.IsBlocked("sub.evil.com"), "blocking a domain blocks its subdomains")
	assert.False(t, s.IsBlocked("evil.com.safe.org"))
}

func TestQuickCheck_SkipsDNS(t *testing.T) {
	// A checker pointed at an unroutable server would stall a Scan until
	// its timeout; QuickCheck must not consult it at all.
	s := New(Config{DNS: &DNSChecker{Server: "127.0.0.1:1"}})
	assert.Equal(t, Safe, s.QuickCheck(context.Background(), "https://example.com/"))

	require.NoError(t, s.Block("evil.com"))
	assert.Equal(t, Blocked, s.QuickCheck(context.Background(), "http://evil.com/"))
}

func TestStats_CountVerdicts(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.Block("evil.com"))
	ctx := context.Background()

	s.Scan(ctx, "https://example.com/")
	s.Scan(ctx, "http://evil.com/")
	s.Scan(ctx, "http://192.168.1.50/login")
	s.Scan(ctx, "http://secure-login.example-verify.gq/login.php?account=verify")

	st := s.Stats()
	assert.Equal(t, 4, st.TotalScans)
	assert.Equal(t, 1, st.Safe)
	assert.Equal(t, 1, st.Blocked)
	assert.Equal(t, 1, st.Suspicious)
	assert.Equal(t, 1, st.Dangerous)
}

func TestThreatLevel_Presentation(t *testing.T) {
	assert.Equal(t, "Safe", Safe.String())
	assert.Equal(t, "Unknown", Unknown.String())
	assert.Equal(t, "Blocked", Blocked.String())
	assert.Equal(t, "✓", Safe.Icon())
	assert.Equal(t, "⚠", Warning.Icon())
	assert.Equal(t, "⛔", Blocked.Icon())
	assert.Equal(t, "secure", Safe.Class())
	assert.Equal(t, "warning", Suspicious.Class())
	assert.Equal(t, "insecure", Dangerous.Class())
}

func TestFlag_String(t *testing.T) {
	f := FlagTyposquat | FlagHomograph | FlagPhishingWords
	assert.Equal(t, "Typosquatting Homograph Phishing", f.String())
	assert.Equal(t, "", Flag(0).String())
}
