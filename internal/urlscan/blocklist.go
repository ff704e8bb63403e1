package urlscan

import (
	"strings"

	"github.com/phantomos/phantom/internal/fault"
)

const (
	blocklistBuckets = 65536
	blocklistMax     = 100_000
)

// djb2 hashes a domain, lowercasing as it goes so that lookups never need
// a separate normalization pass.
func djb2(domain string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(domain); i++ {
		h = h*33 + uint32(lower(domain[i]))
	}
	return h
}

type blockEntry struct {
	hash   uint32
	domain string
	next   *blockEntry
}

// blocklist is a chained hash table of blocked domains. Entries store the
// full hash so bucket chains compare one word before touching the string.
type blocklist struct {
	buckets [blocklistBuckets]*blockEntry
	count   int
}

// add inserts a domain. A leading "www." is stripped, duplicates are
// accepted silently, and the table refuses inserts past its capacity.
func (b *blocklist) add(domain string) error {
	domain = strings.TrimPrefix(domain, "www.")
	if domain == "" {
		return fault.New(fault.KindInvalidInput, "blocklist_domain", "empty domain")
	}
	if b.contains(domain) {
		return nil
	}
	if b.count >= blocklistMax {
		return fault.New(fault.KindExhausted, "blocklist_full",
			"blocklist at capacity (%d entries)", blocklistMax)
	}
	lowered := strings.ToLower(domain)
	h := djb2(lowered)
	idx := h % blocklistBuckets
	b.buckets[idx] = &blockEntry{hash: h, domain: lowered, next: b.buckets[idx]}
	b.count++
	return nil
}

func (b *blocklist) lookup(domain string) bool {
	h := djb2(domain)
	for e := b.buckets[h%blocklistBuckets]; e != nil; e = e.next {
		if e.hash == h && e.domain == domain {
			return true
		}
	}
	return false
}

// contains reports whether the domain or any parent domain is blocked:
// blocking evil.com blocks sub.evil.com too.
func (b *blocklist) contains(domain string) bool {
	d := strings.ToLower(strings.TrimPrefix(domain, "www."))
	if b.lookup(d) {
		return true
	}
	for {
		i := strings.IndexByte(d, '.')
		if i < 0 || i+1 >= len(d) {
			return false
		}
		d = d[i+1:]
		if b.lookup(d) {
			return true
		}
	}
}

func (b *blocklist) clear() {
	for i := range b.buckets {
		b.buckets[i] = nil
	}
	b.count = 0
}
