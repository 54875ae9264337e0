package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/jarredhawkins/textcatcher/internal/catcher"
)

// Catcher types accepted in the catchers list
const (
	TypeRegex = "regex"
	TypeLine  = "line"
	TypeText  = "text"
	TypeTable = "table"
)

// ConfigName is the config file name without extension
const ConfigName = "textcatcher"

// Config represents the complete textcatcher configuration
type Config struct {
	Log      LogConfig       `mapstructure:"log"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Follow   FollowConfig    `mapstructure:"follow"`
	Catchers []CatcherConfig `mapstructure:"catchers"`
}

// LogConfig controls logrus output
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`
	// Format is text or json (default: text)
	Format string `mapstructure:"format"`
	// File redirects logs away from stderr when set
	File string `mapstructure:"file"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics, empty disables the endpoint
	Addr string `mapstructure:"addr"`
}

// FollowConfig controls follow mode
type FollowConfig struct {
	// DebounceMs coalesces bursts of writes to the followed file (default: 100)
	DebounceMs int `mapstructure:"debounce_ms"`
}

// CatcherConfig describes one queue member
type CatcherConfig struct {
	Name string `mapstructure:"name"`
	// Type is one of regex, line, text, table
	Type string `mapstructure:"type"`
	// Start is the regex (regex), the whole line (line) or the substring (text)
	Start string `mapstructure:"start"`
	// End closes a regex block; empty makes every match a one-line block
	End     string `mapstructure:"end"`
	Listen  bool   `mapstructure:"listen"`
	Muffle  bool   `mapstructure:"muffle"`
	Expects int    `mapstructure:"expects"`
	Count   int    `mapstructure:"count"`
	// Print writes every completed block to the output as it closes
	Print bool `mapstructure:"print"`
	// Summary replaces table blocks with a one-line summary
	Summary bool     `mapstructure:"summary"`
	Tags    []string `mapstructure:"tags"`
	// Priority orders the queue, lower first. Unset means
	// catcher.DefaultPriority; 0 is a valid priority.
	Priority *int `mapstructure:"priority"`
}

// QueuePriority returns the configured priority or catcher.DefaultPriority
func (cc CatcherConfig) QueuePriority() int {
	if cc.Priority == nil {
		return catcher.DefaultPriority
	}
	return *cc.Priority
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Follow: FollowConfig{
			DebounceMs: 100,
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.file", defaults.Log.File)

	v.SetDefault("metrics.addr", defaults.Metrics.Addr)

	v.SetDefault("follow.debounce_ms", defaults.Follow.DebounceMs)
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// DebounceInterval returns the follow debounce as a duration
func (c *FollowConfig) DebounceInterval() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "textcatcher")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".textcatcher"
	}
	return filepath.Join(home, ".config", "textcatcher")
}

// ConfigFile returns the path to the default config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigName+".yaml")
}

// BuildOptions carries the runtime hooks a queue built from config needs
type BuildOptions struct {
	// Emit receives completed blocks of catchers with print set
	Emit func(out string)
	// OnBlock is called with the catcher name after every completed block
	OnBlock func(name string)
}

// BuildQueue turns the catchers list into a queue, in priority order
func (c *Config) BuildQueue(opts BuildOptions) (*catcher.Queue, error) {
	q := catcher.NewQueue()
	if err := c.Populate(q, opts); err != nil {
		return nil, err
	}
	return q, nil
}

// Populate adds the configured catchers to an existing queue
func (c *Config) Populate(q *catcher.Queue, opts BuildOptions) error {
	for i, cc := range c.Catchers {
		m, err := cc.Build(opts)
		if err != nil {
			return fmt.Errorf("catchers[%d] (%s): %w", i, cc.Name, err)
		}
		q.AddWithPriority(m, cc.QueuePriority())
	}
	return nil
}

// Build constructs the catcher described by cc
func (cc CatcherConfig) Build(opts BuildOptions) (*catcher.Machine, error) {
	copts := catcher.Options{
		Name:    cc.Name,
		Listen:  cc.Listen,
		Muffle:  cc.Muffle,
		Expects: cc.Expects,
		Count:   cc.Count,
		Tags:    cc.Tags,
	}
	if cc.Print {
		copts.Emit = opts.Emit
	}

	var (
		m   *catcher.Machine
		err error
	)
	switch cc.Type {
	case TypeRegex:
		m, err = catcher.NewRegex(cc.Start, cc.End, copts)
	case TypeLine:
		m, err = catcher.NewLine(cc.Start, copts)
	case TypeText:
		m, err = catcher.NewText(cc.Start, copts)
	case TypeTable:
		if cc.Summary {
			copts.Parse = catcher.TableSummary
		}
		m, err = catcher.NewTable(copts)
	default:
		return nil, fmt.Errorf("unknown catcher type %q", cc.Type)
	}
	if err != nil {
		return nil, err
	}

	if opts.OnBlock != nil {
		name := m.Name()
		m.AddCallback(catcher.EventEnd, 0, func(*catcher.Machine) {
			opts.OnBlock(name)
		})
	}
	return m, nil
}
