package urlscan

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomos/phantom/internal/fault"
)

// stubResolver answers exactly one A query on a loopback UDP socket.
// answer nil means NXDOMAIN; respond false means swallow the query.
func stubResolver(t *testing.T, answer *[4]byte, respond bool) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	go func() {
		buf := make([]byte, 512)
		n, addr, err := pc.ReadFrom(buf)
		if err != nil || !respond {
			return
		}
		var query dnsmessage.Message
		if err := query.Unpack(buf[:n]); err != nil {
			return
		}
		resp := dnsmessage.Message{
			Header: dnsmessage.Header{
				ID:       query.Header.ID,
				Response: true,
			},
			Questions: query.Questions,
		}
		if answer == nil {
			resp.Header.RCode = dnsmessage.RCodeNameError
		} else {
			resp.Header.RCode = dnsmessage.RCodeSuccess
			resp.Answers = []dnsmessage.Resource{{
				Header: dnsmessage.ResourceHeader{
					Name:  query.Questions[0].Name,
					Type:  dnsmessage.TypeA,
					Class: dnsmessage.ClassINET,
					TTL:   60,
				},
				Body: &dnsmessage.AResource{A: *answer},
			}}
		}
		packed, err := resp.Pack()
		if err != nil {
			return
		}
		pc.WriteTo(packed, addr)
	}()
	return pc.LocalAddr().String()
}

func TestDNSChecker_NXDOMAINIsBlocked(t *testing.T) {
	c := &DNSChecker{Server: stubResolver(t, nil, true), Timeout: 2 * time.Second}
	blocked, err := c.Blocked(context.Background(), "malware.example")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestDNSChecker_NullAnswerIsBlocked(t *testing.T) {
	c := &DNSChecker{Server: stubResolver(t, &[4]byte{0, 0, 0, 0}, true), Timeout: 2 * time.Second}
	blocked, err := c.Blocked(context.Background(), "malware.example")
	require.NoError(t, err)
	assert.True(t, blocked)

	c = &DNSChecker{Server: stubResolver(t, &[4]byte{127, 0, 0, 1}, true), Timeout: 2 * time.Second}
	blocked, err = c.Blocked(context.Background(), "malware.example")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestDNSChecker_RealAnswerIsNotBlocked(t *testing.T) {
	c := &DNSChecker{Server: stubResolver(t, &[4]byte{93, 184, 216, 34}, true), Timeout: 2 * time.Second}
	blocked, err := c.Blocked(context.Background(), "example.com")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestDNSChecker_TimeoutIsInconclusive(t *testing.T) {
	c := &DNSChecker{Server: stubResolver(t, nil, false), Timeout: 200 * time.Millisecond}
	blocked, err := c.Blocked(context.Background(), "example.com")
	assert.NoError(t, err, "a silent resolver is inconclusive, not an error")
	assert.False(t, blocked)
}

// failSource refuses to produce randomness.
type failSource struct{}

func (failSource) Fill([]byte) error {
	return fault.New(fault.KindRandomness, "entropy", "no entropy available")
}

func TestDNSChecker_RandomnessFailureAbortsQuery(t *testing.T) {
	c := &DNSChecker{Server: stubResolver(t, nil, true), Rand: failSource{}}
	blocked, err := c.Blocked(context.Background(), "example.com")
	require.Error(t, err)
	assert.True(t, fault.IsRandomness(err))
	assert.False(t, blocked)
}

func TestDNSChecker_RejectsUnencodableName(t *testing.T) {
	c := &DNSChecker{Server: "127.0.0.1:53"}
	longLabel := make([]byte, 70)
	for i := range longLabel {
		longLabel[i] = 'a'
	}
	_, err := c.Blocked(context.Background(), string(longLabel)+".example")
	require.Error(t, err)
	assert.True(t, fault.IsInvalidInput(err))
}

func TestDNSChecker_ServerDefaults(t *testing.T) {
	c := &DNSChecker{}
	assert.Equal(t, net.JoinHostPort(ResolverQuad9, "53"), c.server())
	c.Server = "1.1.1.1"
	assert.Equal(t, "1.1.1.1:53", c.server())
	c.Server = "10.0.0.1:5353"
	assert.Equal(t, "10.0.0.1:5353", c.server())
}

func TestScan_DNSBlockedVerdict(t *testing.T) {
	addr := stubResolver(t, nil, true)
	s := New(Config{DNS: &DNSChecker{Server: addr, Timeout: 2 * time.Second}})

	res := s.Scan(context.Background(), "http://malware.example/")
	assert.Equal(t, Blocked, res.Level)
	assert.NotZero(t, res.Flags&FlagKnownMalware)
	assert.Contains(t, res.Reason, "Blocked by DNS security")
	assert.Contains(t, res.Reason, addr)
}
