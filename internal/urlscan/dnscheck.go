package urlscan

import (
	"context"
	"net"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/phantomos/phantom/internal/cryptorand"
	"github.com/phantomos/phantom/internal/fault"
)

// Well-known filtering resolvers. Each returns NXDOMAIN or a null address
// for domains on its threat feed.
const (
	ResolverQuad9      = "9.9.9.9"
	ResolverCloudflare = "1.1.1.1"
	ResolverOpenDNS    = "208.67.222.222"

	defaultDNSTimeout = time.Second
)

// DNSChecker asks a filtering resolver whether it blocks a domain. Query
// IDs come from the cryptographic source; without one a query cannot be
// sent, since a predictable ID invites cache-poisoned answers.
type DNSChecker struct {
	Server  string        // resolver address, host or host:port
	Timeout time.Duration // per-query deadline

	Rand cryptorand.Source // nil means the OS source
}

func (c *DNSChecker) server() string {
	s := c.Server
	if s == "" {
		s = ResolverQuad9
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		s = net.JoinHostPort(s, "53")
	}
	return s
}

func (c *DNSChecker) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultDNSTimeout
}

// Blocked sends a single A query for domain and interprets the verdict:
// NXDOMAIN or an answer of 0.0.0.0/127.0.0.1 means the resolver blocks
// the domain. A timeout or any transport failure is not a block; the
// scanner falls through to its heuristics instead.
func (c *DNSChecker) Blocked(ctx context.Context, domain string) (bool, error) {
	src := c.Rand
	if src == nil {
		src = cryptorand.OS
	}
	id, err := cryptorand.Uint16(src)
	if err != nil {
		return false, fault.Wrap(err, fault.KindRandomness, "dns_id",
			"cannot generate DNS query ID")
	}

	name, err := dnsmessage.NewName(domain + ".")
	if err != nil {
		return false, fault.Wrap(err, fault.KindInvalidInput, "dns_name",
			"domain %q is not a valid DNS name", domain)
	}
	query := dnsmessage.Message{
		Header: dnsmessage.Header{ID: id, RecursionDesired: true},
		Questions: []dnsmessage.Question{{
			Name:  name,
			Type:  dnsmessage.TypeA,
			Class: dnsmessage.ClassINET,
		}},
	}
	packed, err := query.Pack()
	if err != nil {
		return false, fault.Wrap(err, fault.KindInvalidInput, "dns_pack",
			"cannot encode query for %q", domain)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "udp", c.server())
	if err != nil {
		return false, fault.Wrap(err, fault.KindIO, "dns_dial",
			"cannot reach resolver %s", c.server())
	}
	defer conn.Close()

	deadline, ok := dialCtx.Deadline()
	if ok {
		conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(packed); err != nil {
		return false, fault.Wrap(err, fault.KindIO, "dns_send",
			"cannot send query to %s", c.server())
	}

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		// Timeout or unreachable resolver: inconclusive, not blocked.
		return false, nil
	}

	var resp dnsmessage.Message
	if err := resp.Unpack(buf[:n]); err != nil {
		return false, nil
	}
	if resp.Header.ID != id {
		return false, nil
	}
	if resp.Header.RCode == dnsmessage.RCodeNameError {
		return true, nil
	}
	if resp.Header.RCode != dnsmessage.RCodeSuccess {
		return false, nil
	}
	for _, ans := range resp.Answers {
		a, ok := ans.Body.(*dnsmessage.AResource)
		if !ok {
			continue
		}
		ip := a.A
		if ip == [4]byte{0, 0, 0, 0} || ip == [4]byte{127, 0, 0, 1} {
			return true, nil
		}
	}
	return false, nil
}
