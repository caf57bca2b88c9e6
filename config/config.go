package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for everything that may be omitted from the config file. The SPI
// timing defaults match the board firmware's reset values: with a 204 MHz
// PCLK, prescale 100 and serial clock rate 2 give a bit clock of
// 204 MHz / (100 * (2+1)) = 680 kHz.
const (
	DefaultVendorID          = 0x1d50
	DefaultProductID         = 0x60e6
	DefaultControlTimeout    = time.Second
	DefaultSerialClockRate   = 2
	DefaultClockPrescaleRate = 100
	DefaultBufferSize        = 255
	DefaultHistorySize       = 500
)

type Config struct {
	USB     USBConfig     `yaml:"USB"`
	SPI     SPIConfig     `yaml:"SPI"`
	Monitor MonitorConfig `yaml:"Monitor"`
	Logging LoggingConfig `yaml:"Logging"`
}

// USBConfig identifies the board on the bus. VendorID and ProductID may be
// written as hex integers in YAML (e.g. 0x1d50).
type USBConfig struct {
	VendorID       uint16        `yaml:"VendorID"`
	ProductID      uint16        `yaml:"ProductID"`
	ControlTimeout time.Duration `yaml:"ControlTimeout"`
}

// SPIConfig carries the clock configuration word inputs and the size of the
// board's SPI transfer buffer. The bit frequency on the wire is
// PCLK / (ClockPrescaleRate * (SerialClockRate + 1)).
type SPIConfig struct {
	SerialClockRate   int `yaml:"SerialClockRate"`
	ClockPrescaleRate int `yaml:"ClockPrescaleRate"`
	BufferSize        int `yaml:"BufferSize"`
}

type MonitorConfig struct {
	HistorySize int `yaml:"HistorySize"`
}

type LoggingConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

// ReadConfig loads, defaults and validates the configuration file.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", cfile, err)
	}
	defer f.Close()

	var conf Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", cfile, err)
	}

	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return &conf, nil
}

func (c *Config) applyDefaults() {
	if c.USB.VendorID == 0 {
		c.USB.VendorID = DefaultVendorID
	}
	if c.USB.ProductID == 0 {
		c.USB.ProductID = DefaultProductID
	}
	if c.USB.ControlTimeout == 0 {
		c.USB.ControlTimeout = DefaultControlTimeout
	}
	if c.SPI.SerialClockRate == 0 {
		c.SPI.SerialClockRate = DefaultSerialClockRate
	}
	if c.SPI.ClockPrescaleRate == 0 {
		c.SPI.ClockPrescaleRate = DefaultClockPrescaleRate
	}
	if c.SPI.BufferSize == 0 {
		c.SPI.BufferSize = DefaultBufferSize
	}
	if c.Monitor.HistorySize == 0 {
		c.Monitor.HistorySize = DefaultHistorySize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.SPI.SerialClockRate < 0 || c.SPI.SerialClockRate > 255 {
		return fmt.Errorf("SPI.SerialClockRate %d must be between 0 and 255", c.SPI.SerialClockRate)
	}
	if c.SPI.ClockPrescaleRate < 2 || c.SPI.ClockPrescaleRate > 254 {
		return fmt.Errorf("SPI.ClockPrescaleRate %d must be between 2 and 254", c.SPI.ClockPrescaleRate)
	}
	if c.SPI.ClockPrescaleRate%2 != 0 {
		return fmt.Errorf("SPI.ClockPrescaleRate %d must be even", c.SPI.ClockPrescaleRate)
	}
	if c.SPI.BufferSize < 1 {
		return fmt.Errorf("SPI.BufferSize %d must be positive", c.SPI.BufferSize)
	}
	if c.Monitor.HistorySize < 1 {
		return fmt.Errorf("Monitor.HistorySize %d must be positive", c.Monitor.HistorySize)
	}
	if c.USB.ControlTimeout < 0 {
		return fmt.Errorf("USB.ControlTimeout %s must not be negative", c.USB.ControlTimeout)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("Logging.Format %q must be \"text\" or \"json\"", c.Logging.Format)
	}
	return nil
}
