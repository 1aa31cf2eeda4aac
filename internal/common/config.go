package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

var configValidator = validator.New()

// Config represents the work queue's application configuration.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Queue       QueueConfig     `toml:"queue"`
	Storage     StorageConfig   `toml:"storage"`
	Cleanup     CleanupConfig   `toml:"cleanup"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Adapters    AdaptersConfig  `toml:"adapters"`
	Specs       SpecsConfig     `toml:"specs"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"required,gt=0,lt=65536"`
	Host string `toml:"host" validate:"required"`
}

// QueueConfig tunes the engine's background loops and matcher behavior.
type QueueConfig struct {
	PollInterval          string `toml:"poll_interval" validate:"required"` // e.g. "30s" - matcher/PullWork cadence
	WorkPerCycle          int    `toml:"work_per_cycle" validate:"gt=0"`    // max elements matched per PullWork call
	CancelGraceTime       string `toml:"cancel_grace_time"`        // e.g. "1h" - grace window for CancelRequested -> Canceled
	StuckElementAlertTime string `toml:"stuck_element_alert_time"` // e.g. "24h" - alert threshold for no-progress elements
	LocationRefreshInterval     string `toml:"location_refresh_interval"`      // e.g. "10m" - incremental PhEDEx/site-catalog refresh
	FullLocationRefreshInterval string `toml:"full_location_refresh_interval"` // e.g. "6h" - full location remap
	OpenRunningTimeout    string `toml:"open_running_timeout"` // e.g. "15m" - continuous-split idle-close timeout
	QueueName             string `toml:"queue_name"`           // Badger collection name prefix

	IsGlobalQueue  bool   `toml:"is_global_queue"`  // true for the top-level queue that runs QueueWork/CloseWork; false for a child that PullWork's from a parent
	ParentQueueUrl string `toml:"parent_queue_url"` // this queue's parent, empty for the global queue
	SelfUrl        string `toml:"self_url"`         // this queue's own address, reported to the parent on PullWork
	WMBSUrl        string `toml:"wmbs_url"`         // the execution substrate this queue injects work into
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// CleanupConfig drives PerformQueueCleanupActions' periodic cadence.
type CleanupConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron expression
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05.000"
}

// WebSocketConfig configures the operator-facing live status stream.
type WebSocketConfig struct {
	MinLevel            string `toml:"min_level"`             // minimum status change severity to broadcast
	EventCountThreshold int    `toml:"event_count_threshold"` // trigger a flush after N buffered events
	TimeThreshold       string `toml:"time_threshold"`        // or after this duration, whichever comes first
}

// AdapterConfig is the shared shape for every outbound adapter endpoint.
type AdapterConfig struct {
	URL            string `toml:"url"`
	Timeout        string `toml:"timeout"`          // e.g. "30s"
	RateLimit      string `toml:"rate_limit"`       // min duration between requests, e.g. "200ms"
	RateBurst      int    `toml:"rate_burst"`       // token bucket burst size
	MockMode       bool   `toml:"mock_mode"`        // use the in-memory mock dispatch table instead of HTTP
}

// AdaptersConfig groups the external collaborator endpoints the engine talks
// to: DBS (metadata), PhEDEx (location), site catalog, the WMBS execution
// substrate, and the upstream request manager.
type AdaptersConfig struct {
	DBS            AdapterConfig `toml:"dbs"`
	PhEDEx         AdapterConfig `toml:"phedex"`
	SiteCatalog    AdapterConfig `toml:"site_catalog"`
	Substrate      AdapterConfig `toml:"substrate"`
	RequestManager AdapterConfig `toml:"request_manager"`
}

// SpecsConfig points at the read-through YAML spec document cache.
type SpecsConfig struct {
	Dir string `toml:"dir"` // directory of <request_name>.yaml spec documents
}

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:                "30s",
			WorkPerCycle:                25,
			CancelGraceTime:             "1h",
			StuckElementAlertTime:       "24h",
			LocationRefreshInterval:     "10m",
			FullLocationRefreshInterval: "6h",
			OpenRunningTimeout:          "15m",
			QueueName:                   "workqueue",
			IsGlobalQueue:               true,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Schedule: "0 */15 * * * *", // every 15 minutes
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		WebSocket: WebSocketConfig{
			MinLevel:            "info",
			EventCountThreshold: 100,
			TimeThreshold:       "10s",
		},
		Adapters: AdaptersConfig{
			DBS:            AdapterConfig{Timeout: "30s", RateLimit: "100ms", RateBurst: 5},
			PhEDEx:         AdapterConfig{Timeout: "30s", RateLimit: "100ms", RateBurst: 5},
			SiteCatalog:    AdapterConfig{Timeout: "15s", RateLimit: "200ms", RateBurst: 3},
			Substrate:      AdapterConfig{Timeout: "30s", RateLimit: "50ms", RateBurst: 10},
			RequestManager: AdapterConfig{Timeout: "30s", RateLimit: "200ms", RateBurst: 3},
		},
		Specs: SpecsConfig{
			Dir: "./specs",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files override
// earlier ones. Priority: CLI flags > environment variables > last config file
// > ... > first config file > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// Validate checks the loaded configuration's struct tags with
// go-playground/validator, catching an unset port or poll interval before
// the application tries to start against it.
func (c *Config) Validate() error {
	return configValidator.Struct(c)
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("WORKQUEUE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("WORKQUEUE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("WORKQUEUE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if pollInterval := os.Getenv("WORKQUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if workPerCycle := os.Getenv("WORKQUEUE_WORK_PER_CYCLE"); workPerCycle != "" {
		if w, err := strconv.Atoi(workPerCycle); err == nil {
			config.Queue.WorkPerCycle = w
		}
	}
	if queueName := os.Getenv("WORKQUEUE_QUEUE_NAME"); queueName != "" {
		config.Queue.QueueName = queueName
	}
	if parentURL := os.Getenv("WORKQUEUE_PARENT_QUEUE_URL"); parentURL != "" {
		config.Queue.ParentQueueUrl = parentURL
		config.Queue.IsGlobalQueue = false
	}
	if selfURL := os.Getenv("WORKQUEUE_SELF_URL"); selfURL != "" {
		config.Queue.SelfUrl = selfURL
	}

	if badgerPath := os.Getenv("WORKQUEUE_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("WORKQUEUE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("WORKQUEUE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("WORKQUEUE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if dbsURL := os.Getenv("WORKQUEUE_DBS_URL"); dbsURL != "" {
		config.Adapters.DBS.URL = dbsURL
	}
	if phedexURL := os.Getenv("WORKQUEUE_PHEDEX_URL"); phedexURL != "" {
		config.Adapters.PhEDEx.URL = phedexURL
	}
	if siteCatalogURL := os.Getenv("WORKQUEUE_SITE_CATALOG_URL"); siteCatalogURL != "" {
		config.Adapters.SiteCatalog.URL = siteCatalogURL
	}
	if substrateURL := os.Getenv("WORKQUEUE_SUBSTRATE_URL"); substrateURL != "" {
		config.Adapters.Substrate.URL = substrateURL
	}
	if rmURL := os.Getenv("WORKQUEUE_REQUEST_MANAGER_URL"); rmURL != "" {
		config.Adapters.RequestManager.URL = rmURL
	}

	if specsDir := os.Getenv("WORKQUEUE_SPECS_DIR"); specsDir != "" {
		config.Specs.Dir = specsDir
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ValidateCleanupSchedule validates a cron schedule expression for the
// cleanup loop. It rejects a minute field of "*" or "*/N" with N below 5;
// other minute lists and ranges are not checked against that interval.
func ValidateCleanupSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 6 {
		return fmt.Errorf("invalid cron format: expected 6 fields (with seconds)")
	}

	minuteField := parts[1]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct, used to hand out
// read-only snapshots without risking shared-memory mutation.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}

// ParseDurationOrDefault parses a config duration string, falling back to
// def on empty input or parse error.
func ParseDurationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
