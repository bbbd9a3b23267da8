package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigDirName is the per-repository configuration directory
	ConfigDirName = ".rp"

	// EnvPrefix is the prefix for environment overrides (RP_HISTORY_CHUNKSIZE, ...)
	EnvPrefix = "RP"

	// DefaultChunkSize balances command-length safety against the number of git invocations
	DefaultChunkSize = 200

	// DefaultTimeoutMs is the per-chunk history query timeout
	DefaultTimeoutMs = 30000
)

// Config represents the complete rp configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	History HistoryConfig `json:"history" mapstructure:"history"`
	Scan    ScanConfig    `json:"scan" mapstructure:"scan"`
	IDR     IDRConfig     `json:"idr" mapstructure:"idr"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// HistoryConfig controls batched last-modified resolution
type HistoryConfig struct {
	ChunkSize   int  `json:"chunkSize" mapstructure:"chunkSize"`
	Workers     int  `json:"workers" mapstructure:"workers"`
	TimeoutMs   int  `json:"timeoutMs" mapstructure:"timeoutMs"`
	StrictOrder bool `json:"strictOrder" mapstructure:"strictOrder"`
}

// ScanConfig controls the filesystem walk
type ScanConfig struct {
	Ignore           []string `json:"ignore" mapstructure:"ignore"`
	Subdirs          []string `json:"subdirs" mapstructure:"subdirs"`
	RespectGitignore bool     `json:"respectGitignore" mapstructure:"respectGitignore"`
	ProcessorsFile   string   `json:"processorsFile,omitempty" mapstructure:"processorsFile"`
}

// IDRConfig controls Implementation Decision Record authoring
type IDRConfig struct {
	Dir        string `json:"dir" mapstructure:"dir"`
	NoComments bool   `json:"noComments" mapstructure:"noComments"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		History: HistoryConfig{
			ChunkSize:   DefaultChunkSize,
			Workers:     1,
			TimeoutMs:   DefaultTimeoutMs,
			StrictOrder: true,
		},
		Scan: ScanConfig{
			Ignore:           []string{},
			Subdirs:          []string{},
			RespectGitignore: true,
		},
		IDR: IDRConfig{
			Dir:        "idrs",
			NoComments: false,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .rp/config.json, applying RP_* environment
// overrides. A missing file yields the defaults (still subject to overrides).
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ConfigDirName))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can override it even
// when no config file exists.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("repoRoot", d.RepoRoot)
	v.SetDefault("history.chunkSize", d.History.ChunkSize)
	v.SetDefault("history.workers", d.History.Workers)
	v.SetDefault("history.timeoutMs", d.History.TimeoutMs)
	v.SetDefault("history.strictOrder", d.History.StrictOrder)
	v.SetDefault("scan.ignore", d.Scan.Ignore)
	v.SetDefault("scan.subdirs", d.Scan.Subdirs)
	v.SetDefault("scan.respectGitignore", d.Scan.RespectGitignore)
	v.SetDefault("scan.processorsFile", d.Scan.ProcessorsFile)
	v.SetDefault("idr.dir", d.IDR.Dir)
	v.SetDefault("idr.noComments", d.IDR.NoComments)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// EnvVar is an environment variable that overrides a configuration key.
type EnvVar struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// EnvVars lists every overridable key, sorted by key. Keys are in viper's
// lowercase form.
func EnvVars() []EnvVar {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	keys := v.AllKeys()
	sort.Strings(keys)
	vars := make([]EnvVar, 0, len(keys))
	for _, key := range keys {
		vars = append(vars, EnvVar{
			Name: EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")),
			Key:  key,
		})
	}
	return vars
}

// Path returns the location of the configuration file for repoRoot.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, ConfigDirName, "config.json")
}

// Save writes the configuration to .rp/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ConfigDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(Path(repoRoot), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.History.ChunkSize < 1 {
		return &ConfigError{Field: "history.chunkSize", Message: "must be at least 1"}
	}
	if c.History.Workers < 1 {
		return &ConfigError{Field: "history.workers", Message: "must be at least 1"}
	}
	if c.History.TimeoutMs < 0 {
		return &ConfigError{Field: "history.timeoutMs", Message: "must not be negative"}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be 'human' or 'json'"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
