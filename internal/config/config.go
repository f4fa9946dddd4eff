package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	serial "github.com/allbin/uart-test"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// UART_TEST_SERIAL_BAUD_RATE
const EnvPrefix = "UART_TEST"

// Config is the merged result of defaults, config file, environment and flags
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Serial  SerialConfig  `mapstructure:"serial"`
	Tests   TestsConfig   `mapstructure:"tests"`
}

// LoggingConfig controls the diagnostic logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"` // stderr, stdout or a file path
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SerialConfig is applied to every device the tool opens
type SerialConfig struct {
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	FlowControl string        `mapstructure:"flow_control"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// TestsConfig holds protocol defaults that flags override per run
type TestsConfig struct {
	PingCount        int           `mapstructure:"ping_count"`
	RTSTimeout       time.Duration `mapstructure:"rts_timeout"`
	WaitBreakTimeout time.Duration `mapstructure:"waitbreak_timeout"`
	BreakDuration    time.Duration `mapstructure:"break_duration"`
	SetBaudRate      int           `mapstructure:"set_baud_rate"`
}

// Load reads configuration into v. configFile may be empty.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file not found: %w", err)
			}
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// SetDefaults registers the built-in defaults on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.flow_control", "none")
	v.SetDefault("serial.read_timeout", "0s")

	v.SetDefault("tests.ping_count", 1024)
	v.SetDefault("tests.rts_timeout", "20s")
	v.SetDefault("tests.waitbreak_timeout", "10s")
	v.SetDefault("tests.break_duration", "0s")
	v.SetDefault("tests.set_baud_rate", 115200)
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"console", "json"}
)

func validate(cfg *Config) error {
	if !slices.Contains(validLevels, cfg.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	if !slices.Contains(validFormats, cfg.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}
	if cfg.Logging.Output == "" {
		return fmt.Errorf("logging.output is required")
	}
	if cfg.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", cfg.Serial.BaudRate)
	}
	if _, err := cfg.Serial.Options(); err != nil {
		return err
	}
	if cfg.Tests.PingCount <= 0 {
		return fmt.Errorf("tests.ping_count must be positive, got %d", cfg.Tests.PingCount)
	}
	if cfg.Tests.RTSTimeout <= 0 || cfg.Tests.WaitBreakTimeout <= 0 {
		return fmt.Errorf("tests timeouts must be positive")
	}
	return nil
}

// Options converts the serial section into port options
func (c SerialConfig) Options() ([]serial.Option, error) {
	parity, err := parseParity(c.Parity)
	if err != nil {
		return nil, err
	}
	flow, err := parseFlowControl(c.FlowControl)
	if err != nil {
		return nil, err
	}

	opts := []serial.Option{
		serial.WithBaudRate(c.BaudRate),
		serial.WithDataBits(c.DataBits),
		serial.WithStopBits(c.StopBits),
		serial.WithParity(parity),
		serial.WithFlowControl(flow),
		serial.WithReadTimeout(c.ReadTimeout),
	}

	// Surface bad values now rather than at open time
	probe := serial.DefaultConfig()
	for _, opt := range opts {
		if err := opt(&probe); err != nil {
			return nil, fmt.Errorf("serial settings: %w", err)
		}
	}
	return opts, nil
}

func parseParity(s string) (serial.Parity, error) {
	switch strings.ToLower(s) {
	case "", "none", "n":
		return serial.ParityNone, nil
	case "odd", "o":
		return serial.ParityOdd, nil
	case "even", "e":
		return serial.ParityEven, nil
	default:
		return serial.ParityNone, fmt.Errorf("serial.parity must be none, odd or even, got %q", s)
	}
}

func parseFlowControl(s string) (serial.FlowControl, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return serial.FlowControlNone, nil
	case "rtscts":
		return serial.FlowControlRTSCTS, nil
	default:
		return serial.FlowControlNone, fmt.Errorf("serial.flow_control must be none or rtscts, got %q", s)
	}
}
