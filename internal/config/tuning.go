package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/vertex.report/internal/vertex"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/vertex/params endpoint so the same JSON can
// be used for both startup configuration and runtime updates. All fields
// are pointers: fields omitted from the file keep their defaults, so
// partial configs are safe.
type TuningConfig struct {
	// Clustering params
	Eps               *float64 `json:"eps,omitempty"` // neighbourhood radius (cm)
	MinCoreNeighbours *int     `json:"min_core_neighbours,omitempty"`
	MaxSeedError      *float64 `json:"max_seed_error,omitempty"` // errmax (cm)
	Chi2Max           *float64 `json:"chi2_max,omitempty"`
	Workers           *int     `json:"workers,omitempty"`

	// Batch assembly params
	BatchTimeout *string `json:"batch_timeout,omitempty"` // duration string like "500ms"

	// Listener params
	UDPRcvBuf   *int    `json:"udp_rcvbuf,omitempty"`
	LogInterval *string `json:"log_interval,omitempty"` // duration string like "60s"
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable. The eps
// upper bound mirrors the kernel's binning limit; a config beyond it
// would make the kernel panic at the first batch.
func (c *TuningConfig) Validate() error {
	if c.Eps != nil {
		if *c.Eps <= 0 || *c.Eps > vertex.MaxEps {
			return fmt.Errorf("eps must be in (0, %v], got %f", vertex.MaxEps, *c.Eps)
		}
	}
	if c.MinCoreNeighbours != nil && *c.MinCoreNeighbours < 0 {
		return fmt.Errorf("min_core_neighbours must be non-negative, got %d", *c.MinCoreNeighbours)
	}
	if c.MaxSeedError != nil && *c.MaxSeedError <= 0 {
		return fmt.Errorf("max_seed_error must be positive, got %f", *c.MaxSeedError)
	}
	if c.Chi2Max != nil && *c.Chi2Max <= 0 {
		return fmt.Errorf("chi2_max must be positive, got %f", *c.Chi2Max)
	}
	if c.Workers != nil {
		if *c.Workers < 1 || *c.Workers > vertex.MaxWorkers {
			return fmt.Errorf("workers must be in [1, %d], got %d", vertex.MaxWorkers, *c.Workers)
		}
	}
	if c.BatchTimeout != nil && *c.BatchTimeout != "" {
		if _, err := time.ParseDuration(*c.BatchTimeout); err != nil {
			return fmt.Errorf("invalid batch_timeout '%s': %w", *c.BatchTimeout, err)
		}
	}
	if c.LogInterval != nil && *c.LogInterval != "" {
		if _, err := time.ParseDuration(*c.LogInterval); err != nil {
			return fmt.Errorf("invalid log_interval '%s': %w", *c.LogInterval, err)
		}
	}
	return nil
}

// ClusterParams assembles kernel parameters from the config, falling
// back to the kernel defaults for unset fields.
func (c *TuningConfig) ClusterParams() vertex.Params {
	p := vertex.DefaultParams()
	if c.Eps != nil {
		p.Eps = float32(*c.Eps)
	}
	if c.MinCoreNeighbours != nil {
		p.MinCore = *c.MinCoreNeighbours
	}
	if c.MaxSeedError != nil {
		p.ErrMax = float32(*c.MaxSeedError)
	}
	if c.Chi2Max != nil {
		p.Chi2Max = float32(*c.Chi2Max)
	}
	return p
}

// GetWorkers returns the worker count or the single-threaded default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetBatchTimeout parses and returns the BatchTimeout as a duration.
func (c *TuningConfig) GetBatchTimeout() time.Duration {
	if c.BatchTimeout == nil || *c.BatchTimeout == "" {
		return vertex.DefaultBatchTimeout
	}
	d, err := time.ParseDuration(*c.BatchTimeout)
	if err != nil {
		return vertex.DefaultBatchTimeout
	}
	return d
}

// GetUDPRcvBuf returns the udp_rcvbuf value or the default.
func (c *TuningConfig) GetUDPRcvBuf() int {
	if c.UDPRcvBuf == nil {
		return 4 * 1024 * 1024
	}
	return *c.UDPRcvBuf
}

// GetLogInterval parses and returns the LogInterval as a duration.
func (c *TuningConfig) GetLogInterval() time.Duration {
	if c.LogInterval == nil || *c.LogInterval == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(*c.LogInterval)
	if err != nil {
		return time.Minute
	}
	return d
}
