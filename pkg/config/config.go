package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up inside a workspace
const FileName = "chaos_runner.yaml"

// Config represents the chaos runner configuration
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Process   ProcessConfig   `yaml:"process"`
	Network   NetworkConfig   `yaml:"network"`
	Container ContainerConfig `yaml:"container"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	Emergency EmergencyConfig `yaml:"emergency"`
	Reporting ReportingConfig `yaml:"reporting"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// FrameworkConfig contains general logging settings
type FrameworkConfig struct {
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	// LogCount is the number of rotated results.log backups to keep
	LogCount int `yaml:"log_count" validate:"gte=0"`
}

// ProcessConfig contains kill group settings
type ProcessConfig struct {
	Targets       []string `yaml:"targets" validate:"dive,required,excludesall=/"`
	Signal        string   `yaml:"signal" validate:"required,startswith=SIG"`
	RebootCommand []string `yaml:"reboot_command" validate:"required,min=1,dive,required"`
}

// NetworkConfig contains net group settings
type NetworkConfig struct {
	Device          string `yaml:"device" validate:"required"`
	StateServerPort int    `yaml:"state_server_port" validate:"min=1,max=65535"`
	APIServerPort   int    `yaml:"api_server_port" validate:"min=1,max=65535"`
	SyslogPort      int    `yaml:"syslog_port" validate:"min=1,max=65535"`
}

// ContainerConfig contains container group settings. No targets disables
// the group.
type ContainerConfig struct {
	Targets      []string      `yaml:"targets" validate:"dive,required"`
	Signal       string        `yaml:"signal" validate:"required,startswith=SIG"`
	StopTimeout  time.Duration `yaml:"stop_timeout" validate:"gte=0"`
	StartTimeout time.Duration `yaml:"start_timeout" validate:"gt=0"`
}

// RecoveryConfig contains boot job settings
type RecoveryConfig struct {
	UnitDir  string `yaml:"unit_dir" validate:"required"`
	WantsDir string `yaml:"wants_dir"`
	UnitName string `yaml:"unit_name" validate:"required,endswith=.service"`
}

// EmergencyConfig contains stop request settings
type EmergencyConfig struct {
	// StopFile defaults to chaos_runner.stop inside the workspace
	StopFile     string        `yaml:"stop_file"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
}

// ReportingConfig contains run report settings
type ReportingConfig struct {
	// OutputDir defaults to reports inside the workspace
	OutputDir string `yaml:"output_dir"`
	KeepLastN int    `yaml:"keep_last_n" validate:"gte=0"`
}

// MetricsConfig contains textfile export settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Textfile defaults to log/chaos_runner.prom inside the workspace
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			LogLevel:  "info",
			LogFormat: "text",
			LogCount:  2,
		},
		Process: ProcessConfig{
			Targets:       []string{"jujud", "mongod"},
			Signal:        "SIGKILL",
			RebootCommand: []string{"shutdown", "-r", "now"},
		},
		Network: NetworkConfig{
			Device:          "eth0",
			StateServerPort: 37017,
			APIServerPort:   17017,
			SyslogPort:      6514,
		},
		Container: ContainerConfig{
			Signal:       "SIGKILL",
			StopTimeout:  10 * time.Second,
			StartTimeout: 30 * time.Second,
		},
		Recovery: RecoveryConfig{
			UnitDir:  "/etc/systemd/system",
			UnitName: "chaos-runner-restart.service",
		},
		Emergency: EmergencyConfig{
			PollInterval: 1 * time.Second,
		},
		Reporting: ReportingConfig{
			KeepLastN: 50,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from a YAML file. An empty path or a missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(expandedData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadForWorkspace loads path when set, otherwise the workspace config file
func LoadForWorkspace(path, workspace string) (*Config, error) {
	if path == "" && workspace != "" {
		path = filepath.Join(workspace, FileName)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ResolvePaths(workspace)
	return cfg, nil
}

// ResolvePaths fills workspace-relative defaults
func (c *Config) ResolvePaths(workspace string) {
	if workspace == "" {
		return
	}
	if c.Emergency.StopFile == "" {
		c.Emergency.StopFile = filepath.Join(workspace, "chaos_runner.stop")
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = filepath.Join(workspace, "reports")
	}
	if c.Metrics.Textfile == "" {
		c.Metrics.Textfile = filepath.Join(workspace, "log", "chaos_runner.prom")
	}
}

// Save writes configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return yamlName(field.Tag.Get("yaml"), field.Name)
	})
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", configPath(fe.Namespace()), tagWithParam(fe), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func tagWithParam(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// configPath turns "Config.framework.log_level" into "framework.log_level"
func configPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func yamlName(tag, fallback string) string {
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "" || name == "-" {
		return fallback
	}
	return name
}
