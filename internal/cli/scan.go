package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phantomos/phantom/internal/urlscan"
)

// scanResult is the serializable view of a scan.
type scanResult struct {
	URL             string `json:"url"`
	Domain          string `json:"domain"`
	HTTPS           bool   `json:"https"`
	Level           string `json:"level"`
	Icon            string `json:"icon"`
	Score           int    `json:"score"`
	Flags           string `json:"flags,omitempty"`
	Reason          string `json:"reason"`
	TyposquatTarget string `json:"typosquat_target,omitempty"`
	SuspiciousTLD   string `json:"suspicious_tld,omitempty"`
	SubdomainDepth  int    `json:"subdomain_depth"`
	HomographCount  int    `json:"homograph_count"`
}

func (r scanResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  score=%d", r.Icon, r.Level, r.Score)
	fmt.Fprintf(&b, "\nurl:    %s", r.URL)
	if r.Domain != "" {
		fmt.Fprintf(&b, "\ndomain: %s", r.Domain)
	}
	if r.Flags != "" {
		fmt.Fprintf(&b, "\nflags:  %s", r.Flags)
	}
	fmt.Fprintf(&b, "\nreason: %s", r.Reason)
	return b.String()
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		useDNS   bool
		resolver string
		quick    bool
	)

	cmd := &cobra.Command{
		Use:   "scan <url>...",
		Short: "Classify URLs with the heuristic phishing scanner",
		Long: "Scan runs each URL through the allowlist, blocklist, optional DNS\n" +
			"filter check, and the heuristic scoring pipeline. Exit code 1 means\n" +
			"at least one URL classified Dangerous or Blocked.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			if useDNS || resolver != "" {
				// Flag overrides the configured checker.
				app.Scanner = scannerWithDNS(app, resolver)
			}

			flagged := false
			for _, url := range args {
				if quick {
					level := app.Scanner.QuickCheck(cmd.Context(), url)
					if err := formatter.Success(fmt.Sprintf("%s %s  %s", level.Icon(), level, url)); err != nil {
						return err
					}
					if level >= urlscan.Dangerous {
						flagged = true
					}
					continue
				}

				res := app.Scanner.Scan(cmd.Context(), url)
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
				if err := formatter.Success(out); err != nil {
					return err
				}
				if res.Level >= urlscan.Dangerous {
					flagged = true
				}
			}
			if flagged {
				return &ExitError{Code: ExitFailure, Message: "dangerous or blocked URL"}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useDNS, "dns", false, "consult a filtering DNS resolver")
	cmd.Flags().StringVar(&resolver, "resolver", "", "DNS resolver address (implies --dns, default Quad9)")
	cmd.Flags().BoolVar(&quick, "quick", false, "print only the threat level, skip DNS")

	return cmd
}

func scannerWithDNS(app *App, resolver string) *urlscan.Scanner {
	checker := &urlscan.DNSChecker{
		Server:  resolver,
		Timeout: app.Config.URLScan.DNS.DNSTimeout(),
	}
	s := urlscan.New(urlscan.Config{
		MaxSubdomainDepth: app.Config.URLScan.MaxSubdomainDepth,
		DisableHomographs: app.Config.URLScan.DisableHomographs,
		DNS:               checker,
		Audit:             app.Governor,
	})
	for _, d := range app.Config.URLScan.AllowDomains {
		s.Allow(d)
	}
	if dir := app.Config.URLScan.BlocklistDir; dir != "" {
		s.LoadBlocklistDir(dir)
	}
	return s
}
