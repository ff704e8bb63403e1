package urlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDomain(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://Example.COM/path", "example.com"},
		{"http://example.com:8080/x", "example.com"},
		{"//cdn.example.net/lib.js", "cdn.example.net"},
		{"example.org?q=1", "example.org"},
		{"example.org#frag", "example.org"},
		{"https://", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractDomain(tc.url), "url %q", tc.url)
	}
}

func TestExtractPath(t *testing.T) {
	assert.Equal(t, "/a/b?x=1", extractPath("https://example.com/a/b?x=1"))
	assert.Equal(t, "", extractPath("https://example.com"))
	assert.Equal(t, "/", extractPath("http://example.com/"))
}

func TestExtractTLD(t *testing.T) {
	assert.Equal(t, ".com", extractTLD("example.com"))
	assert.Equal(t, ".tk", extractTLD("a.b.c.tk"))
	assert.Equal(t, "", extractTLD("localhost"))
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.com", registrableDomain("a.b.example.com"))
	assert.Equal(t, "example.com", registrableDomain("example.com"))
	assert.Equal(t, "localhost", registrableDomain("localhost"))
}

func TestNormalizeDigits(t *testing.T) {
	assert.Equal(t, "google.com", normalizeDigits("g00gle.com"))
	assert.Equal(t, "paypal.com", normalizeDigits("paypa1.com"))
	assert.Equal(t, "base.com", normalizeDigits("8a5e.com"))
	assert.Equal(t, "example.com", normalizeDigits("example.com"))
}

func TestLooksRandom(t *testing.T) {
	assert.True(t, looksRandom("xkcdqwrtz.com"), "long consonant run")
	assert.True(t, looksRandom("a1b2c3d4.net"), "digit stuffing")
	assert.False(t, looksRandom("example.com"))
	assert.False(t, looksRandom("ab.cd"), "too short to judge")
	assert.False(t, looksRandom("wikipedia.org"))
}

func TestIsIPAddress(t *testing.T) {
	assert.True(t, isIPAddress("192.168.1.1"))
	assert.True(t, isIPAddress("[::1]"))
	assert.False(t, isIPAddress("example.com"))
	assert.False(t, isIPAddress("1.2.3"), "too few octets")
}

func TestLevenshtein_DomainDistances(t *testing.T) {
	assert.Equal(t, 0, levenshtein("PayPal.com", "paypal.com"), "case-insensitive")
	assert.Equal(t, 1, levenshtein("paypa1.com", "paypal.com"))
	assert.Equal(t, 2, levenshtein("rnicrosoft.com", "microsoft.com"))
	assert.Equal(t, 4, levenshtein("abcd", ""))

	// Oversized inputs short-circuit to a sentinel past any threshold.
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	assert.Equal(t, 100, levenshtein(string(long), "paypal.com"))
}

func TestDJB2(t *testing.T) {
	assert.Equal(t, djb2("evil.com"), djb2("EVIL.com"), "hashing lowercases")
	assert.NotEqual(t, djb2("evil.com"), djb2("evil.org"))
}
