// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/o2csim/o2csim/pkg/artifactstore"
	"github.com/o2csim/o2csim/pkg/confidence"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "O2CSIM_"

// Config holds all simulator configuration.
type Config struct {
	Version int `yaml:"version"`

	Engine     EngineConfig       `yaml:"engine"`
	Confidence confidence.Weights `yaml:"confidence"`
	Server     ServerConfig       `yaml:"server"`
	Store      StoreConfig        `yaml:"store"`
	Telemetry  TelemetryConfig    `yaml:"telemetry"`
}

// EngineConfig controls the simulation pipeline.
type EngineConfig struct {
	// ArtifactURI locates the model artifact. Empty means rule-based fallback.
	ArtifactURI string `yaml:"artifact_uri"`
	// UseOverridesInDuration builds the duration block from kpi_overrides.
	UseOverridesInDuration bool `yaml:"use_overrides_in_duration"`
	// HonorOverridesInBaseline disables the baseline shortcut when overrides are present.
	HonorOverridesInBaseline bool `yaml:"honor_overrides_in_baseline"`
	// BatchConcurrency bounds batch workers; 0 means GOMAXPROCS.
	BatchConcurrency int `yaml:"batch_concurrency"`
	// LoadTimeout bounds artifact loading at startup.
	LoadTimeout time.Duration `yaml:"load_timeout"`
}

// ServerConfig for the HTTP server.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	Host         string   `yaml:"host"`
	CORSOrigins  []string `yaml:"cors_origins"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	// MaxInFlight bounds concurrent simulate calls and running jobs; 0 means unlimited.
	MaxInFlight int `yaml:"max_in_flight"`
	// Finished jobs are evicted after JobRetention, and beyond MaxJobs the
	// oldest go first. Zero disables either bound.
	JobRetention time.Duration `yaml:"job_retention"`
	MaxJobs      int           `yaml:"max_jobs"`
}

// StoreConfig holds artifact store backend settings.
type StoreConfig struct {
	S3    artifactstore.S3Config    `yaml:"s3"`
	Redis artifactstore.RedisConfig `yaml:"redis"`
}

// TelemetryConfig for optional OTLP tracing.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
	Environment   string  `yaml:"environment"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			LoadTimeout: 30 * time.Second,
		},
		Confidence: confidence.DefaultWeights(),
		Server: ServerConfig{
			Port:         8080,
			Host:         "localhost",
			CORSOrigins:  []string{"*"},
			MaxBodyBytes: 1 << 20,
			MaxInFlight:  256,
			JobRetention: time.Hour,
			MaxJobs:      100,
		},
		Store: StoreConfig{
			S3:    artifactstore.S3Config{Timeout: 30 * time.Second},
			Redis: artifactstore.RedisConfig{Timeout: 5 * time.Second},
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			SamplingRatio: 1.0,
			Environment:   "development",
		},
	}
}

// StoreOptions converts the store section for artifactstore.Open.
func (c *Config) StoreOptions() artifactstore.Options {
	return artifactstore.Options{S3: c.Store.S3, Redis: c.Store.Redis}
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string
	lookup func(string) string
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
		lookup: os.Getenv,
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	return m.LoadFiles(m.getConfigPaths()...)
}

// LoadFiles loads defaults, then each path in order, then the environment.
// Missing files are skipped.
func (m *Manager) LoadFiles(paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	for _, path := range paths {
		if err := m.loadFile(path); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("config %s: %w", path, err)
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	return m.loadEnv()
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/o2csim/config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".o2csim", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".o2csim.yaml"))
	}
	return paths
}

// loadFile decodes a single file over the current config. Keys absent from
// the file keep their current values.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, m.config)
}

// loadEnv applies O2CSIM_* environment overrides.
func (m *Manager) loadEnv() error {
	c := m.config

	strs := map[string]*string{
		"ARTIFACT_URI":       &c.Engine.ArtifactURI,
		"HOST":               &c.Server.Host,
		"S3_REGION":          &c.Store.S3.Region,
		"S3_ENDPOINT":        &c.Store.S3.Endpoint,
		"REDIS_PASSWORD":     &c.Store.Redis.Password,
		"TELEMETRY_ENDPOINT": &c.Telemetry.Endpoint,
	}
	for key, dst := range strs {
		if v := m.lookup(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"USE_OVERRIDES_IN_DURATION":   &c.Engine.UseOverridesInDuration,
		"HONOR_OVERRIDES_IN_BASELINE": &c.Engine.HonorOverridesInBaseline,
		"S3_PATH_STYLE":               &c.Store.S3.UsePathStyle,
		"TELEMETRY_ENABLED":           &c.Telemetry.Enabled,
	}
	for key, dst := range bools {
		if v := m.lookup(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	ints := map[string]*int{
		"PORT":              &c.Server.Port,
		"BATCH_CONCURRENCY": &c.Engine.BatchConcurrency,
		"MAX_IN_FLIGHT":     &c.Server.MaxInFlight,
		"MAX_JOBS":          &c.Server.MaxJobs,
		"REDIS_DB":          &c.Store.Redis.Database,
	}
	for key, dst := range ints {
		if v := m.lookup(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	if v := m.lookup(EnvPrefix + "CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	return nil
}

// Get returns a copy of the current configuration. Callers may modify the
// copy (for example from CLI flags) without affecting the manager.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := *m.config
	c.Server.CORSOrigins = append([]string(nil), m.config.Server.CORSOrigins...)
	return &c
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.paths...)
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".o2csim")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0644)
}

// Global instance
var (
	globalManager *Manager
	globalOnce    sync.Once
	globalErr     error
)

// Global returns the process-wide configuration manager, loading it on first use.
func Global() (*Manager, error) {
	globalOnce.Do(func() {
		globalManager = NewManager()
		globalErr = globalManager.Load()
	})
	return globalManager, globalErr
}
