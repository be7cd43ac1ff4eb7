package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Defaults applied by the Get* accessors when a field is absent.
const (
	DefaultSerialPort      = "/dev/ttyUSB0"
	DefaultBaudRate        = 115200
	DefaultPollIntervalMs  = 1000
	DefaultOutputDirectory = "."
	DefaultReadTimeout     = time.Second
	DefaultSettleDelay     = 2 * time.Second
	DefaultListen          = ":8080"
)

// Config is the static configuration of one acquisition session. Every field
// is optional; omitted fields fall back to the defaults above, so partial
// files are safe.
type Config struct {
	// Serial link
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	DataBits   *int    `json:"data_bits,omitempty"`
	StopBits   *int    `json:"stop_bits,omitempty"`
	Parity     *string `json:"parity,omitempty"`

	// Loop timing
	PollIntervalMs *int    `json:"poll_interval_ms,omitempty"`
	ReadTimeout    *string `json:"read_timeout,omitempty"` // duration string like "1s"
	SettleDelay    *string `json:"settle_delay,omitempty"` // duration string like "2s"

	// Outputs
	OutputDirectory *string `json:"output_directory,omitempty"`
	Listen          *string `json:"listen,omitempty"`  // empty disables the live view
	DBPath          *string `json:"db_path,omitempty"` // empty disables the SQLite mirror
	SavePNG         *bool   `json:"save_png,omitempty"`

	// Dev replaces the serial port with a simulated DHT11.
	Dev *bool `json:"dev,omitempty"`
}

// LoadConfig loads a Config from a JSON file. The file must have a .json
// extension and be under 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.SerialPort != nil && strings.TrimSpace(*c.SerialPort) == "" {
		return fmt.Errorf("serial_port must not be empty")
	}
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.PollIntervalMs != nil && *c.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", *c.PollIntervalMs)
	}
	if c.OutputDirectory != nil && strings.TrimSpace(*c.OutputDirectory) == "" {
		return fmt.Errorf("output_directory must not be empty")
	}

	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("read_timeout must be positive, got %s", d)
		}
	}

	if c.SettleDelay != nil && *c.SettleDelay != "" {
		d, err := time.ParseDuration(*c.SettleDelay)
		if err != nil {
			return fmt.Errorf("invalid settle_delay '%s': %w", *c.SettleDelay, err)
		}
		if d < 0 {
			return fmt.Errorf("settle_delay must be non-negative, got %s", d)
		}
	}

	return nil
}

// GetSerialPort returns the serial_port value or the default.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return DefaultSerialPort
	}
	return *c.SerialPort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *Config) GetBaudRate() int {
	if c.BaudRate == nil {
		return DefaultBaudRate
	}
	return *c.BaudRate
}

// GetDataBits returns data_bits, or 0 to let the port options default it.
func (c *Config) GetDataBits() int {
	if c.DataBits == nil {
		return 0
	}
	return *c.DataBits
}

// GetStopBits returns stop_bits, or 0 to let the port options default it.
func (c *Config) GetStopBits() int {
	if c.StopBits == nil {
		return 0
	}
	return *c.StopBits
}

// GetParity returns parity, or "" to let the port options default it.
func (c *Config) GetParity() string {
	if c.Parity == nil {
		return ""
	}
	return *c.Parity
}

// GetPollInterval returns poll_interval_ms as a time.Duration.
func (c *Config) GetPollInterval() time.Duration {
	if c.PollIntervalMs == nil {
		return DefaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(*c.PollIntervalMs) * time.Millisecond
}

// GetReadTimeout parses and returns the ReadTimeout as a time.Duration.
func (c *Config) GetReadTimeout() time.Duration {
	if c.ReadTimeout == nil || *c.ReadTimeout == "" {
		return DefaultReadTimeout
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return DefaultReadTimeout
	}
	return d
}

// GetSettleDelay parses and returns the SettleDelay as a time.Duration.
func (c *Config) GetSettleDelay() time.Duration {
	if c.SettleDelay == nil || *c.SettleDelay == "" {
		return DefaultSettleDelay
	}
	d, err := time.ParseDuration(*c.SettleDelay)
	if err != nil {
		return DefaultSettleDelay
	}
	return d
}

// GetOutputDirectory returns the output_directory value or the default.
func (c *Config) GetOutputDirectory() string {
	if c.OutputDirectory == nil {
		return DefaultOutputDirectory
	}
	return *c.OutputDirectory
}

// GetListen returns the listen address; "" disables the live view.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return DefaultListen
	}
	return *c.Listen
}

// GetDBPath returns the SQLite path; "" disables the mirror.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetSavePNG returns save_png, defaulting to true.
func (c *Config) GetSavePNG() bool {
	if c.SavePNG == nil {
		return true
	}
	return *c.SavePNG
}

// GetDev returns dev, defaulting to false.
func (c *Config) GetDev() bool {
	if c.Dev == nil {
		return false
	}
	return *c.Dev
}
