// Package config loads the phantomctl configuration file. Files are YAML,
// decoded strictly and then validated against an embedded CUE schema so
// that a typo or out-of-range value fails with a position instead of
// silently taking a default.
package config

import (
	"bytes"
	_ "embed"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/phantomos/phantom/internal/dna"
	"github.com/phantomos/phantom/internal/fault"
)

//go:embed schema.cue
var schemaSource string

// Config mirrors the on-disk file. Zero values mean "use the default".
type Config struct {
	Sink     Sink     `yaml:"sink"`
	Governor Governor `yaml:"governor"`
	DNAuth   DNAuth   `yaml:"dnauth"`
	URLScan  URLScan  `yaml:"urlscan"`
}

type Sink struct {
	Path string `yaml:"path"`
}

type Governor struct {
	CacheSize         int  `yaml:"cache_size"`
	HistorySize       int  `yaml:"history_size"`
	ScopeSlots        int  `yaml:"scope_slots"`
	TrustSlots        int  `yaml:"trust_slots"`
	Strict            bool `yaml:"strict"`
	Interactive       bool `yaml:"interactive"`
	PromptTimeoutSecs int  `yaml:"prompt_timeout_secs"`
	ApprovalTTLSecs   int  `yaml:"approval_ttl_secs"`
}

type DNAuth struct {
	MinComplexity         string  `yaml:"min_complexity"`
	MaxFailedAttempts     int     `yaml:"max_failed_attempts"`
	LockoutBaseSecs       int     `yaml:"lockout_base_secs"`
	MaxMutations          int     `yaml:"max_mutations"`
	MutationRate          float64 `yaml:"mutation_rate"`
	EvolutionIntervalSecs int     `yaml:"evolution_interval_secs"`
	AncestorPenalty       float64 `yaml:"ancestor_penalty"`
	MaxAncestorDepth      int     `yaml:"max_ancestor_depth"`
}

type URLScan struct {
	MaxSubdomainDepth int      `yaml:"max_subdomain_depth"`
	DisableHomographs bool     `yaml:"disable_homographs"`
	AllowDomains      []string `yaml:"allow_domains"`
	BlocklistDir      string   `yaml:"blocklist_dir"`
	DNS               DNS      `yaml:"dns"`
}

type DNS struct {
	Enabled   bool   `yaml:"enabled"`
	Server    string `yaml:"server"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Sink: Sink{Path: "phantom.db"},
	}
}

// Load reads, decodes, and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fault.Wrap(err, fault.KindIO, "config_read",
			"cannot read config file %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML configuration bytes.
func Parse(data []byte) (Config, error) {
	// Strict decode catches unknown fields before the schema sees them.
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fault.Wrap(err, fault.KindInvalidInput, "config_yaml",
			"cannot parse config")
	}

	// Re-decode loosely for the schema check: CUE validates the document
	// shape and value ranges.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fault.Wrap(err, fault.KindInvalidInput, "config_yaml",
			"cannot parse config")
	}
	if doc == nil {
		doc = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fault.Wrap(err, fault.KindCorruptState, "config_schema",
			"embedded schema does not compile")
	}
	unified := schema.Unify(ctx.Encode(doc))
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return Config{}, fault.Wrap(err, fault.KindInvalidInput, "config_invalid",
			"config fails schema validation")
	}

	if cfg.DNAuth.MinComplexity != "" {
		if _, err := dna.ParseComplexity(cfg.DNAuth.MinComplexity); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// PromptTimeout returns the governor prompt timeout as a duration.
func (g Governor) PromptTimeout() time.Duration {
	return time.Duration(g.PromptTimeoutSecs) * time.Second
}

// ApprovalTTL returns the approval time-to-live as a duration.
func (g Governor) ApprovalTTL() time.Duration {
	return time.Duration(g.ApprovalTTLSecs) * time.Second
}

// LockoutBase returns the first lockout backoff as a duration.
func (d DNAuth) LockoutBase() time.Duration {
	return time.Duration(d.LockoutBaseSecs) * time.Second
}

// EvolutionInterval returns the scheduled evolution period as a duration.
func (d DNAuth) EvolutionInterval() time.Duration {
	return time.Duration(d.EvolutionIntervalSecs) * time.Second
}

// DNSTimeout returns the DNS query deadline as a duration.
func (d DNS) DNSTimeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}
