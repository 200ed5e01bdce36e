package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultPort            = "arduino"
	DefaultBaudRate        = 38400
	DefaultResetBaudRate   = 1200
	DefaultTimeout         = 10 * time.Second
	DefaultBootloaderDelay = 400 * time.Millisecond
	DefaultDumpFile        = "eeprom.bin"
	DefaultHistoryDir      = ".flashwatch"

	// PortEnv overrides Port for both the reset touch and the upload tool.
	PortEnv = "AVRDUDE_PORT"
)

// Duration is a time.Duration that reads and writes as a string like "10s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds all flashwatch configuration.
type Config struct {
	Family          string   `json:"family,omitempty"`
	Port            string   `json:"port,omitempty"`
	SerialDevice    string   `json:"serial_device,omitempty"`
	BaudRate        int      `json:"baud_rate,omitempty"`
	Timeout         Duration `json:"timeout,omitempty"`
	ReadTimeout     Duration `json:"read_timeout,omitempty"`
	ResetBaudRate   int      `json:"reset_baud_rate,omitempty"`
	BootloaderDelay Duration `json:"bootloader_delay,omitempty"`
	Avrdude         string   `json:"avrdude,omitempty"`
	Bossac          string   `json:"bossac,omitempty"`
	ToolPath        string   `json:"tool_path,omitempty"`
	DumpFile        string   `json:"dump_file,omitempty"`
	HistoryDir      string   `json:"history_dir,omitempty"`
	History         *bool    `json:"history,omitempty"`
	LogLevel        string   `json:"log_level,omitempty"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Family:          "avr",
		Port:            DefaultPort,
		BaudRate:        DefaultBaudRate,
		Timeout:         Duration(DefaultTimeout),
		ReadTimeout:     Duration(DefaultTimeout),
		ResetBaudRate:   DefaultResetBaudRate,
		BootloaderDelay: Duration(DefaultBootloaderDelay),
		Avrdude:         "avrdude",
		Bossac:          "bossac",
		DumpFile:        DefaultDumpFile,
		HistoryDir:      DefaultHistoryDir,
		LogLevel:        "info",
	}
}

// HistoryEnabled reports whether runs should be recorded.
func (c Config) HistoryEnabled() bool {
	if c.HistoryDir == "" {
		return false
	}
	return c.History == nil || *c.History
}

// Load reads and merges the config layers.
// Order: defaults → global (~/.config/flashwatch/config.json) → local
// (<dir>/.flashwatch/config.json) → extra file → $AVRDUDE_PORT.
func Load(dir, extra string) Config {
	return load(dir, extra, os.LookupEnv)
}

func load(dir, extra string, lookupEnv func(string) (string, bool)) Config {
	cfg := Defaults()

	if home, err := os.UserHomeDir(); err == nil {
		mergeFromFile(&cfg, filepath.Join(home, ".config", "flashwatch", "config.json"))
	}

	if dir != "" {
		mergeFromFile(&cfg, filepath.Join(dir, ".flashwatch", "config.json"))
	}

	if extra != "" {
		mergeFromFile(&cfg, extra)
	}

	if port, ok := lookupEnv(PortEnv); ok && port != "" {
		cfg.Port = port
	}

	return cfg
}

// Save writes the config to <dir>/.flashwatch/config.json.
func Save(cfg Config, dir string) error {
	dir = filepath.Join(dir, ".flashwatch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if !cfg.HistoryEnabled() {
		off := false
		cfg.History = &off
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Device returns the serial device path for the configured port. An
// explicit SerialDevice wins; otherwise the port identifier is resolved.
func (c Config) Device() string {
	if c.SerialDevice != "" {
		return c.SerialDevice
	}
	return ResolveDevice(c.Port)
}

// ResolveDevice maps a port identifier such as "arduino" or "ttyACM0" to its
// device node. Absolute paths are returned unchanged.
func ResolveDevice(port string) string {
	if port == "" {
		port = DefaultPort
	}
	if filepath.IsAbs(port) {
		return port
	}
	return filepath.Join("/dev", port)
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return
	}

	if fileCfg.Family != "" {
		cfg.Family = fileCfg.Family
	}
	if fileCfg.Port != "" {
		cfg.Port = fileCfg.Port
	}
	if fileCfg.SerialDevice != "" {
		cfg.SerialDevice = fileCfg.SerialDevice
	}
	if fileCfg.BaudRate != 0 {
		cfg.BaudRate = fileCfg.BaudRate
	}
	if fileCfg.Timeout != 0 {
		cfg.Timeout = fileCfg.Timeout
	}
	if fileCfg.ReadTimeout != 0 {
		cfg.ReadTimeout = fileCfg.ReadTimeout
	}
	if fileCfg.ResetBaudRate != 0 {
		cfg.ResetBaudRate = fileCfg.ResetBaudRate
	}
	if fileCfg.BootloaderDelay != 0 {
		cfg.BootloaderDelay = fileCfg.BootloaderDelay
	}
	if fileCfg.Avrdude != "" {
		cfg.Avrdude = fileCfg.Avrdude
	}
	if fileCfg.Bossac != "" {
		cfg.Bossac = fileCfg.Bossac
	}
	if fileCfg.ToolPath != "" {
		cfg.ToolPath = fileCfg.ToolPath
	}
	if fileCfg.DumpFile != "" {
		cfg.DumpFile = fileCfg.DumpFile
	}
	// An explicit empty history_dir turns history off.
	if _, ok := present["history_dir"]; ok {
		cfg.HistoryDir = fileCfg.HistoryDir
	}
	if fileCfg.History != nil {
		cfg.History = fileCfg.History
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
}
