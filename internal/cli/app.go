package cli

import (
	"context"

	"github.com/phantomos/phantom/internal/config"
	"github.com/phantomos/phantom/internal/cryptorand"
	"github.com/phantomos/phantom/internal/dna"
	"github.com/phantomos/phantom/internal/dnauth"
	"github.com/phantomos/phantom/internal/fault"
	"github.com/phantomos/phantom/internal/governor"
	"github.com/phantomos/phantom/internal/sink"
	"github.com/phantomos/phantom/internal/urlscan"
)

// credentialStateRef is the sink path holding the persisted DNAuth state
// between invocations.
const credentialStateRef = "dnauth/state"

// App wires the three components over one sink for the duration of a
// command.
type App struct {
	Config   config.Config
	Sink     *sink.Sink
	Governor *governor.Governor
	DNAuth   *dnauth.Service
	Scanner  *urlscan.Scanner
}

// openApp loads configuration, opens the sink, and constructs the
// components. Credential state is restored from the sink if a snapshot
// exists.
func openApp(ctx context.Context, opts *RootOptions) (*App, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	snk, err := sink.Open(cfg.Sink.Path)
	if err != nil {
		return nil, err
	}

	gov, err := governor.New(snk, nil, cryptorand.OS, governor.Config{
		CacheSize:     cfg.Governor.CacheSize,
		HistorySize:   cfg.Governor.HistorySize,
		ScopeSlots:    cfg.Governor.ScopeSlots,
		TrustSlots:    cfg.Governor.TrustSlots,
		Strict:        cfg.Governor.Strict,
		Interactive:   cfg.Governor.Interactive,
		PromptTimeout: cfg.Governor.PromptTimeout(),
		ApprovalTTL:   cfg.Governor.ApprovalTTL(),
	})
	if err != nil {
		snk.Close()
		return nil, err
	}
	if records, err := snk.Decisions(ctx, ""); err == nil {
		gov.RestoreHistory(records)
	}

	dnaOpts := dnauth.Options{
		MaxFailedAttempts:   cfg.DNAuth.MaxFailedAttempts,
		LockoutBase:         cfg.DNAuth.LockoutBase(),
		EvolutionEnabled:    true,
		EvolutionInterval:   cfg.DNAuth.EvolutionInterval(),
		MutationRate:        cfg.DNAuth.MutationRate,
		AllowAncestorAuth:   true,
		MaxAncestorDepth:    cfg.DNAuth.MaxAncestorDepth,
		AncestorPenalty:     cfg.DNAuth.AncestorPenalty,
		DefaultMaxMutations: cfg.DNAuth.MaxMutations,
	}
	if cfg.DNAuth.MinComplexity != "" {
		c, err := dna.ParseComplexity(cfg.DNAuth.MinComplexity)
		if err != nil {
			snk.Close()
			return nil, err
		}
		dnaOpts.MinComplexity = c
	}
	auth := dnauth.New(gov, cryptorand.OS, dnaOpts)
	if err := restoreCredentials(ctx, snk, auth); err != nil {
		snk.Close()
		return nil, err
	}

	var checker *urlscan.DNSChecker
	if cfg.URLScan.DNS.Enabled {
		checker = &urlscan.DNSChecker{
			Server:  cfg.URLScan.DNS.Server,
			Timeout: cfg.URLScan.DNS.DNSTimeout(),
		}
	}
	scanner := urlscan.New(urlscan.Config{
		MaxSubdomainDepth: cfg.URLScan.MaxSubdomainDepth,
		DisableHomographs: cfg.URLScan.DisableHomographs,
		DNS:               checker,
		Audit:             gov,
	})
	for _, d := range cfg.URLScan.AllowDomains {
		scanner.Allow(d)
	}
	if cfg.URLScan.BlocklistDir != "" {
		if _, err := scanner.LoadBlocklistDir(cfg.URLScan.BlocklistDir); err != nil {
			snk.Close()
			return nil, err
		}
	}

	return &App{Config: cfg, Sink: snk, Governor: gov, DNAuth: auth, Scanner: scanner}, nil
}

// Close releases the sink.
func (a *App) Close() error {
	return a.Sink.Close()
}

func restoreCredentials(ctx context.Context, snk *sink.Sink, auth *dnauth.Service) error {
	hash, ok, err := snk.Resolve(ctx, credentialStateRef)
	if err != nil || !ok {
		return err
	}
	data, err := snk.Read(ctx, hash)
	if err != nil {
		return err
	}
	return auth.Restore(data)
}

// SaveCredentials snapshots DNAuth state into the sink and rebinds the
// state ref. Prior snapshots stay reachable through the ref history.
func (a *App) SaveCredentials(ctx context.Context) error {
	data, err := a.DNAuth.Snapshot()
	if err != nil {
		return fault.Wrap(err, fault.KindIO, "state_snapshot", "cannot snapshot credential state")
	}
	hash, err := a.Sink.Store(ctx, data)
	if err != nil {
		return err
	}
	return a.Sink.Ref(ctx, credentialStateRef, hash)
}
