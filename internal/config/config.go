package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kode4food/relay/internal/executor"
	"github.com/kode4food/relay/internal/graph"
	"github.com/kode4food/relay/internal/pipeline"
	"github.com/kode4food/relay/pkg/log"
)

type (
	// Config holds configuration settings for the relay service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Store & Archiving
		Store   StoreConfig
		Archive ArchiveConfig

		// Runs
		StepShell       string
		StepWorkDir     string
		StepEnv         []string
		StepTimeout     time.Duration
		FailurePolicy   string
		CloneAttempts   int
		ShutdownTimeout time.Duration
	}

	// StoreConfig selects and locates the graph store
	StoreConfig struct {
		Backend  string
		Addr     string
		Password string
		DB       int
		Timeout  time.Duration
	}

	// ArchiveConfig locates the blob bucket receiving run reports. An empty
	// URL disables archiving
	ArchiveConfig struct {
		URL    string
		Prefix string
	}
)

const (
	BackendFalkor = "falkor"
	BackendMemory = "memory"
)

const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultStoreTimeout    = 5 * time.Second

	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535
	DefaultRedisDB = 0
	MaxRedisDB     = 15

	DefaultRedisEndpoint = "localhost:6379"
	DefaultArchivePrefix = "runs/"
	DefaultStepShell     = "/bin/sh"

	MaxCloneAttempts = 100
)

var (
	ErrInvalidAPIPort       = errors.New("invalid API port")
	ErrInvalidStepTimeout   = errors.New("step timeout cannot be negative")
	ErrInvalidStoreBackend  = errors.New("invalid store backend")
	ErrInvalidStoreAddr     = errors.New("store address is required")
	ErrInvalidStoreTimeout  = errors.New("store timeout must be positive")
	ErrInvalidCloneAttempts = errors.New("clone attempts must be positive")
	ErrInvalidLogLevel      = errors.New("invalid log level")
	ErrInvalidStepShell     = errors.New("step shell is required")
	ErrInvalidStepEnv       = errors.New("step env entries must be KEY=VALUE")
	ErrInvalidShutdown      = errors.New("shutdown timeout must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// API, the FalkorDB store and run behavior
func NewDefaultConfig() *Config {
	return &Config{
		APIPort:  DefaultAPIPort,
		APIHost:  DefaultAPIHost,
		LogLevel: "info",
		Store: StoreConfig{
			Backend: BackendFalkor,
			Addr:    DefaultRedisEndpoint,
			DB:      DefaultRedisDB,
			Timeout: DefaultStoreTimeout,
		},
		Archive: ArchiveConfig{
			Prefix: DefaultArchivePrefix,
		},
		StepShell:       DefaultStepShell,
		FailurePolicy:   string(pipeline.PolicyContinue),
		CloneAttempts:   pipeline.DefaultCloneAttempts,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	LoadStoreConfigFromEnv(&c.Store, "STORE")

	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if shell := os.Getenv("STEP_SHELL"); shell != "" {
		c.StepShell = shell
	}
	if dir := os.Getenv("STEP_WORKDIR"); dir != "" {
		c.StepWorkDir = dir
	}
	if env := os.Getenv("STEP_ENV"); env != "" {
		c.StepEnv = splitList(env)
	}
	if policy := os.Getenv("FAILURE_POLICY"); policy != "" {
		c.FailurePolicy = policy
	}
	if url := os.Getenv("ARCHIVE_URL"); url != "" {
		c.Archive.URL = url
	}
	if prefix := os.Getenv("ARCHIVE_PREFIX"); prefix != "" {
		c.Archive.Prefix = prefix
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"CLONE_ATTEMPTS", &c.CloneAttempts, 0, MaxCloneAttempts,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"STORE_REDIS_DB", &c.Store.DB, -1, MaxRedisDB,
	); err != nil {
		return err
	}
	if err := loadEnvDuration("STORE_TIMEOUT", &c.Store.Timeout); err != nil {
		return err
	}
	if err := loadEnvDuration("STEP_TIMEOUT", &c.StepTimeout); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout,
	); err != nil {
		return err
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.LogLevel)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFalkor:
		if c.Store.Addr == "" {
			return ErrInvalidStoreAddr
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStoreBackend, c.Store.Backend)
	}

	if c.Store.Timeout <= 0 {
		return ErrInvalidStoreTimeout
	}

	if c.StepShell == "" {
		return ErrInvalidStepShell
	}

	if c.StepTimeout < 0 {
		return ErrInvalidStepTimeout
	}

	for _, kv := range c.StepEnv {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("%w: %q", ErrInvalidStepEnv, kv)
		}
	}

	if _, err := pipeline.ParseFailurePolicy(c.FailurePolicy); err != nil {
		return err
	}

	if c.CloneAttempts <= 0 {
		return ErrInvalidCloneAttempts
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdown
	}

	return nil
}

// PipelineConfig returns the run settings for a pipeline engine. Validate
// must have succeeded
func (c *Config) PipelineConfig() pipeline.Config {
	policy, _ := pipeline.ParseFailurePolicy(c.FailurePolicy)
	return pipeline.Config{
		FailurePolicy: policy,
		CloneAttempts: c.CloneAttempts,
	}
}

// ExecutorOptions returns the options for the step shell executor
func (c *Config) ExecutorOptions() []executor.Option {
	opts := []executor.Option{executor.WithTimeout(c.StepTimeout)}
	if c.StepWorkDir != "" {
		opts = append(opts, executor.WithDir(c.StepWorkDir))
	}
	if len(c.StepEnv) > 0 {
		opts = append(opts, executor.WithEnv(c.StepEnv))
	}
	return opts
}

// GraphOptions returns the FalkorDB connection options
func (c *StoreConfig) GraphOptions() graph.Options {
	return graph.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		Timeout:  c.Timeout,
	}
}

// LoadStoreConfigFromEnv loads store configuration from environment
// variables with the given prefix (e.g., "STORE")
func LoadStoreConfigFromEnv(s *StoreConfig, prefix string) {
	if backend := os.Getenv(prefix + "_BACKEND"); backend != "" {
		s.Backend = backend
	}
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvDuration reads key from the environment as a Go duration string
// such as "30s". A bare integer is taken as seconds
func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}
