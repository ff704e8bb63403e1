package cli

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/phantomos/phantom/internal/urlscan"
)

// TestScanReportRendering pins the text rendering of a scan verdict.
func TestScanReportRendering(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	s := urlscan.New(urlscan.Config{})
	url := "http://paypa1.com/login"
	res := s.Scan(context.Background(), url)

	out := scanResult{
		URL:             url,
		Domain:          res.Domain,
		HTTPS:           res.HTTPS,
		Level:           res.Level.String(),
		Icon:            res.Level.Icon(),
		Score:           res.Score,
		Flags:           res.Flags.String(),
		Reason:          res.Reason,
		TyposquatTarget: res.TyposquatTarget,
		SuspiciousTLD:   res.SuspiciousTLD,
		SubdomainDepth:  res.SubdomainDepth,
		HomographCount:  res.HomographCount,
	}
	g.Assert(t, "scan_report", []byte(out.String()))
}
