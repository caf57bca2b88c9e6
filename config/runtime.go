package config

// RuntimeConfig is the subset of the configuration that can be applied to a
// running process without reopening the board. Everything else (USB
// identity, SPI clocking, buffer size) is fixed at open time because the
// board latches it in the init vendor request.
type RuntimeConfig struct {
	Monitor MonitorConfig
	Logging LoggingConfig
}

// Runtime extracts the runtime-applicable subset.
func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{
		Monitor: c.Monitor,
		Logging: c.Logging,
	}
}

// RequiresRestart reports whether the change from old to updated touches
// settings that only take effect on the next board open.
func RequiresRestart(old, updated *Config) bool {
	return old.USB != updated.USB || old.SPI != updated.SPI
}
