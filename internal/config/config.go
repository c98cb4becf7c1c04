package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment overrides (e.g. FUNNIER_API_KEY).
const EnvPrefix = "funnier"

// Valid values for KVBackend and Network.
var (
	KVBackends = []string{"sqlite", "pebble"}
	Networks   = []string{"auto", "offline", "metered", "unmetered"}
)

// Duration is a time.Duration that reads and writes as a Go duration string ("6h", "30s").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.Decode(s)
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration must be non-negative: %s", value)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds application configuration.
type Config struct {
	// PhotosetID identifies the remote photoset mirrored by this install.
	PhotosetID string `json:"photoset_id,omitempty" envconfig:"PHOTOSET_ID"`

	// APIKey and APISecret are opaque credentials passed to the photo API.
	APIKey    string `json:"api_key,omitempty" envconfig:"API_KEY"`
	APISecret string `json:"api_secret,omitempty" envconfig:"API_SECRET"`

	// APIBaseURL is the REST endpoint of the photo API.
	APIBaseURL string `json:"api_base_url,omitempty" envconfig:"API_BASE_URL"`

	// APITimeout bounds every remote call (metadata and image downloads).
	APITimeout Duration `json:"api_timeout,omitempty" envconfig:"API_TIMEOUT"`

	// MeteredBudgetBytes caps the bytes downloaded per image pass on a metered network.
	MeteredBudgetBytes int64 `json:"metered_budget_bytes,omitempty" envconfig:"METERED_BUDGET_BYTES"`

	// StaleAfter is how long after the last sync attempt the cache is considered stale.
	StaleAfter Duration `json:"stale_after,omitempty" envconfig:"STALE_AFTER"`

	// DisplayWidth and DisplayHeight are the bounds used to pick an image size variant.
	DisplayWidth  int `json:"display_width,omitempty" envconfig:"DISPLAY_WIDTH"`
	DisplayHeight int `json:"display_height,omitempty" envconfig:"DISPLAY_HEIGHT"`

	// KVBackend selects the snapshot store: "sqlite" (default) or "pebble".
	KVBackend string `json:"kv_backend,omitempty" envconfig:"KV_BACKEND"`

	// Network forces a connectivity class. "auto" probes ProbeHost.
	Network string `json:"network,omitempty" envconfig:"NETWORK"`

	// Metered classifies a reachable network as metered when probing.
	Metered bool `json:"metered,omitempty" envconfig:"METERED"`

	// ProbeHost is the host:port dialed to detect connectivity.
	ProbeHost string `json:"probe_host,omitempty" envconfig:"PROBE_HOST"`

	// ProbeInterval is how often the prober re-checks connectivity.
	ProbeInterval Duration `json:"probe_interval,omitempty" envconfig:"PROBE_INTERVAL"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" envconfig:"LOG_LEVEL"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" envconfig:"DISABLED_TOOLS"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:         "https://api.flickr.com/services/rest",
		APITimeout:         Duration(30 * time.Second),
		MeteredBudgetBytes: 512 * 1024,
		StaleAfter:         Duration(6 * time.Hour),
		DisplayWidth:       1024,
		DisplayHeight:      768,
		KVBackend:          "sqlite",
		Network:            "auto",
		ProbeHost:          "api.flickr.com:443",
		ProbeInterval:      Duration(30 * time.Second),
		LogLevel:           "info",
	}
}

// Load loads configuration from baseDir/config.json, then applies
// FUNNIER_* environment overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.funnier.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}

	env := &Config{}
	if err := envconfig.Process(EnvPrefix, env); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	cfg = Merge(cfg, env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enum fields and ranges.
func (c *Config) Validate() error {
	if !contains(KVBackends, c.KVBackend) {
		return fmt.Errorf("kv_backend must be one of: %s", strings.Join(KVBackends, ", "))
	}
	if !contains(Networks, c.Network) {
		return fmt.Errorf("network must be one of: %s", strings.Join(Networks, ", "))
	}
	if c.MeteredBudgetBytes < 0 {
		return fmt.Errorf("metered_budget_bytes must be non-negative")
	}
	if c.DisplayWidth < 0 || c.DisplayHeight < 0 {
		return fmt.Errorf("display bounds must be non-negative")
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.PhotosetID = pick(overlay.PhotosetID, base.PhotosetID)
	result.APIKey = pick(overlay.APIKey, base.APIKey)
	result.APISecret = pick(overlay.APISecret, base.APISecret)
	result.APIBaseURL = pick(overlay.APIBaseURL, base.APIBaseURL)
	result.APITimeout = pick(overlay.APITimeout, base.APITimeout)
	result.MeteredBudgetBytes = pick(overlay.MeteredBudgetBytes, base.MeteredBudgetBytes)
	result.StaleAfter = pick(overlay.StaleAfter, base.StaleAfter)
	result.DisplayWidth = pick(overlay.DisplayWidth, base.DisplayWidth)
	result.DisplayHeight = pick(overlay.DisplayHeight, base.DisplayHeight)
	result.KVBackend = pick(overlay.KVBackend, base.KVBackend)
	result.Network = pick(overlay.Network, base.Network)
	result.ProbeHost = pick(overlay.ProbeHost, base.ProbeHost)
	result.ProbeInterval = pick(overlay.ProbeInterval, base.ProbeInterval)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)

	// Booleans: overlay wins if true, else base
	result.Metered = base.Metered || overlay.Metered

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
