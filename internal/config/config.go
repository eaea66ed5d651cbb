package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models talentops.yml.
type Config struct {
	Server struct {
		Addr      string `yaml:"addr"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		APIKey      string  `yaml:"api_key"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
		TimeoutSec  int     `yaml:"timeout_sec"`
	} `yaml:"llm"`
	Monitor MonitorConfig `yaml:"monitor"`
	Leave   struct {
		MonthlyQuota int `yaml:"monthly_quota"`
	} `yaml:"leave"`
}

// MonitorConfig holds the task monitor thresholds and per-reminder-type
// cooldowns, all in hours.
type MonitorConfig struct {
	IntervalHours        int `yaml:"interval_hours"`
	NotStartedAfterHours int `yaml:"not_started_after_hours"`
	StagnationHours      int `yaml:"stagnation_hours"`
	DeadlineWarningHours int `yaml:"deadline_warning_hours"`
	DeadlineUrgentHours  int `yaml:"deadline_urgent_hours"`
	Cooldowns            struct {
		NotStartedHours      int `yaml:"not_started_hours"`
		StagnationHours      int `yaml:"stagnation_hours"`
		DeadlineWarningHours int `yaml:"deadline_warning_hours"`
		DeadlineUrgentHours  int `yaml:"deadline_urgent_hours"`
		OverdueHours         int `yaml:"overdue_hours"`
	} `yaml:"cooldowns"`
}

func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalHours) * time.Hour
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with tops config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Monitor.IntervalHours <= 0 {
		return fmt.Errorf("config.monitor.interval_hours must be positive")
	}
	if c.Monitor.NotStartedAfterHours <= 0 {
		return fmt.Errorf("config.monitor.not_started_after_hours must be positive")
	}
	if c.Monitor.StagnationHours <= 0 {
		return fmt.Errorf("config.monitor.stagnation_hours must be positive")
	}
	if c.Monitor.DeadlineWarningHours <= c.Monitor.DeadlineUrgentHours {
		return fmt.Errorf("config.monitor.deadline_warning_hours must exceed deadline_urgent_hours")
	}
	if c.Monitor.DeadlineUrgentHours <= 0 {
		return fmt.Errorf("config.monitor.deadline_urgent_hours must be positive")
	}
	cd := c.Monitor.Cooldowns
	for name, hours := range map[string]int{
		"not_started_hours":      cd.NotStartedHours,
		"stagnation_hours":       cd.StagnationHours,
		"deadline_warning_hours": cd.DeadlineWarningHours,
		"deadline_urgent_hours":  cd.DeadlineUrgentHours,
		"overdue_hours":          cd.OverdueHours,
	} {
		if hours <= 0 {
			return fmt.Errorf("config.monitor.cooldowns.%s must be positive", name)
		}
	}
	if c.Leave.MonthlyQuota < 0 {
		return fmt.Errorf("config.leave.monthly_quota must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config.llm.temperature must be in [0,2]")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "talentops.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: ":8787"
  jwt_secret: ""

llm:
  base_url: "http://localhost:11434/v1"
  api_key: ""
  model: "qwen2.5:7b"
  temperature: 0
  timeout_sec: 30

monitor:
  interval_hours: 2
  not_started_after_hours: 24
  stagnation_hours: 48
  deadline_warning_hours: 72
  deadline_urgent_hours: 24
  cooldowns:
    not_started_hours: 24
    stagnation_hours: 48
    deadline_warning_hours: 24
    deadline_urgent_hours: 8
    overdue_hours: 4

leave:
  monthly_quota: 2
`
