package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v2"
)

// =============================================================================
// Dataplane configuration, with environment overrides
// =============================================================================

// Config is the ambient configuration for the four CORE subsystems. None of
// it is mutable at runtime beyond process start: the L2-FIB, policer and
// endpoint registries take their table sizing at construction time, per
// spec section 6.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	L2FIB    L2FIBConfig    `yaml:"l2fib"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Pacer    PacerConfig    `yaml:"pacer"`
}

// ServerConfig configures the read-only introspection HTTP surface in
// cmd/dataplaned. It is not an administrative surface: no route accepts a
// mutating verb.
type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int    `yaml:"idle_timeout_sec"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_sec"`
}

// L2FIBConfig configures the MAC forwarding table (spec section 6).
type L2FIBConfig struct {
	NumBuckets          int   `yaml:"num_buckets"`
	TableSizeBytes      int64 `yaml:"table_size_bytes"`
	EventScanDelayMs    int   `yaml:"event_scan_delay_ms"`
	MaxMACsInEvent      int   `yaml:"max_macs_in_event"`
	ScanYieldBudgetUs   int   `yaml:"scan_yield_budget_us"`
	ScanYieldDurationUs int   `yaml:"scan_yield_duration_us"`
}

// EndpointConfig configures the transport endpoint registry and its port
// allocator (spec section 6).
type EndpointConfig struct {
	Buckets              int    `yaml:"buckets"`
	MemoryBytes          int64  `yaml:"memory_bytes"`
	PortAllocatorMinPort uint16 `yaml:"port_allocator_min_src_port"`
	PortAllocatorMaxPort uint16 `yaml:"port_allocator_max_src_port"`
	FreelistFlushAt      int    `yaml:"freelist_flush_at"`
}

// PacerConfig bounds the per-connection TX pacer's burst window (spec
// section 3.5).
type PacerConfig struct {
	MinBurstBytes   uint32 `yaml:"min_burst_bytes"`
	MaxBurstBytes   uint32 `yaml:"max_burst_bytes"`
	BurstsPerRTT    int    `yaml:"bursts_per_rtt"`
	SecondsPerLoop  float64 `yaml:"seconds_per_loop"`
	LoopFrequencyHz float64 `yaml:"loop_frequency_hz"`
}

// =============================================================================
// Singleton pattern with environment overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton configuration, loading it from
// CONFIG_PATH (default "config.yaml") on first use.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides, then fills in
// defaults for anything still zero-valued.
func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("DATAPLANE_ENV", c.Server.Env)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeout = v
	}

	if v := getEnvInt("L2FIB_NUM_BUCKETS", 0); v > 0 {
		c.L2FIB.NumBuckets = v
	}
	if v := getEnvInt("L2FIB_MAX_MACS_IN_EVENT", 0); v > 0 {
		c.L2FIB.MaxMACsInEvent = v
	}
	if v := getEnvInt("L2FIB_EVENT_SCAN_DELAY_MS", 0); v > 0 {
		c.L2FIB.EventScanDelayMs = v
	}

	if v := getEnvInt("ENDPOINT_BUCKETS", 0); v > 0 {
		c.Endpoint.Buckets = v
	}
	if v := getEnvInt("ENDPOINT_PORT_MIN", 0); v > 0 {
		c.Endpoint.PortAllocatorMinPort = uint16(v)
	}
	if v := getEnvInt("ENDPOINT_PORT_MAX", 0); v > 0 {
		c.Endpoint.PortAllocatorMaxPort = uint16(v)
	}

	c.applyDefaults()
}

// applyDefaults fills in zero-valued fields with production defaults,
// matching the values named in spec section 6.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30
	}

	if c.L2FIB.NumBuckets == 0 {
		c.L2FIB.NumBuckets = 1024
	}
	if c.L2FIB.TableSizeBytes == 0 {
		c.L2FIB.TableSizeBytes = 64 << 20 // 64MiB
	}
	if c.L2FIB.EventScanDelayMs == 0 {
		c.L2FIB.EventScanDelayMs = 10000 // ~10s, per spec section 4.1
	}
	if c.L2FIB.MaxMACsInEvent == 0 {
		c.L2FIB.MaxMACsInEvent = 128
	}
	if c.L2FIB.ScanYieldBudgetUs == 0 {
		c.L2FIB.ScanYieldBudgetUs = 20 // 20us run budget, per spec section 4.1
	}
	if c.L2FIB.ScanYieldDurationUs == 0 {
		c.L2FIB.ScanYieldDurationUs = 100 // 100us yield, per spec section 4.1
	}

	if c.Endpoint.Buckets == 0 {
		c.Endpoint.Buckets = 250000
	}
	if c.Endpoint.MemoryBytes == 0 {
		c.Endpoint.MemoryBytes = 512 << 20 // 512MiB
	}
	if c.Endpoint.PortAllocatorMinPort == 0 {
		c.Endpoint.PortAllocatorMinPort = 1024
	}
	if c.Endpoint.PortAllocatorMaxPort == 0 {
		c.Endpoint.PortAllocatorMaxPort = 65535
	}
	if c.Endpoint.FreelistFlushAt == 0 {
		c.Endpoint.FreelistFlushAt = 32 // per spec section 4.3
	}

	if c.Pacer.MinBurstBytes == 0 {
		c.Pacer.MinBurstBytes = 4096
	}
	if c.Pacer.MaxBurstBytes == 0 {
		c.Pacer.MaxBurstBytes = 4 << 20
	}
	if c.Pacer.BurstsPerRTT == 0 {
		c.Pacer.BurstsPerRTT = 4
	}
	if c.Pacer.SecondsPerLoop == 0 {
		c.Pacer.SecondsPerLoop = 1e-3
	}
	if c.Pacer.LoopFrequencyHz == 0 {
		c.Pacer.LoopFrequencyHz = 1000
	}
}

// =============================================================================
// Helper functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

