package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "/etc/epaper/epaperd.yaml"

type Config struct {
	Bind     string
	LogLevel zerolog.Level

	// Reserved configuration block on the backing file.
	BlockPath   string
	BlockOffset int64
	BlockSize   int

	StagingDir     string
	FirmwareMargin uint64

	Radio      string // nmcli | sim
	RadioIface string
	SimJoinOK  bool

	DisplayCommand string

	RestartDelay time.Duration
	RestartMode  string // loop | exec

	CORSOrigins    []string
	MetricsEnabled bool
}

func Defaults() Config {
	return Config{
		Bind:           "0.0.0.0:80",
		LogLevel:       zerolog.InfoLevel,
		BlockPath:      "/var/lib/epaper/config.blk",
		BlockOffset:    0,
		BlockSize:      512,
		StagingDir:     "/var/lib/epaper/firmware",
		FirmwareMargin: 1 << 20,
		Radio:          "nmcli",
		RadioIface:     "wlan0",
		SimJoinOK:      true,
		RestartDelay:   500 * time.Millisecond,
		RestartMode:    "loop",
		MetricsEnabled: true,
	}
}

type fileConfig struct {
	HTTP struct {
		Bind string   `yaml:"bind"`
		CORS []string `yaml:"cors"`
	} `yaml:"http"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Block struct {
		Path   string `yaml:"path"`
		Offset *int64 `yaml:"offset"`
		Size   int    `yaml:"size"`
	} `yaml:"block"`
	Firmware struct {
		StagingDir string  `yaml:"stagingDir"`
		Margin     *uint64 `yaml:"margin"`
	} `yaml:"firmware"`
	Radio struct {
		Backend string `yaml:"backend"`
		Iface   string `yaml:"iface"`
		SimJoin *bool  `yaml:"simJoin"`
	} `yaml:"radio"`
	Display struct {
		Command string `yaml:"command"`
	} `yaml:"display"`
	Restart struct {
		Delay string `yaml:"delay"`
		Mode  string `yaml:"mode"`
	} `yaml:"restart"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// FromEnv loads the file named by EPAPER_CONFIG (or DefaultPath) and applies
// env overrides.
func FromEnv() Config {
	path := os.Getenv("EPAPER_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

// Load reads YAML from path when present, then applies EPAPER_* env vars.
// A missing or unreadable file leaves defaults in place.
func Load(path string) Config {
	cfg := Defaults()
	if b, err := os.ReadFile(path); err == nil {
		var fc fileConfig
		if yaml.Unmarshal(b, &fc) == nil {
			cfg.applyFile(fc)
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyFile(fc fileConfig) {
	if fc.HTTP.Bind != "" {
		c.Bind = fc.HTTP.Bind
	}
	if len(fc.HTTP.CORS) > 0 {
		c.CORSOrigins = fc.HTTP.CORS
	}
	if l, err := zerolog.ParseLevel(fc.Logging.Level); err == nil && fc.Logging.Level != "" {
		c.LogLevel = l
	}
	if fc.Block.Path != "" {
		c.BlockPath = fc.Block.Path
	}
	if fc.Block.Offset != nil && *fc.Block.Offset >= 0 {
		c.BlockOffset = *fc.Block.Offset
	}
	if fc.Block.Size > 0 {
		c.BlockSize = fc.Block.Size
	}
	if fc.Firmware.StagingDir != "" {
		c.StagingDir = fc.Firmware.StagingDir
	}
	if fc.Firmware.Margin != nil {
		c.FirmwareMargin = *fc.Firmware.Margin
	}
	if fc.Radio.Backend != "" {
		c.Radio = fc.Radio.Backend
	}
	if fc.Radio.Iface != "" {
		c.RadioIface = fc.Radio.Iface
	}
	if fc.Radio.SimJoin != nil {
		c.SimJoinOK = *fc.Radio.SimJoin
	}
	if fc.Display.Command != "" {
		c.DisplayCommand = fc.Display.Command
	}
	if d, err := time.ParseDuration(fc.Restart.Delay); err == nil && d >= 0 {
		c.RestartDelay = d
	}
	if fc.Restart.Mode != "" {
		c.RestartMode = fc.Restart.Mode
	}
	if fc.Metrics.Enabled != nil {
		c.MetricsEnabled = *fc.Metrics.Enabled
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EPAPER_HTTP_BIND"); v != "" {
		c.Bind = v
	}
	if v := os.Getenv("EPAPER_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("EPAPER_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			c.LogLevel = l
		}
	}
	if v := os.Getenv("EPAPER_BLOCK_PATH"); v != "" {
		c.BlockPath = v
	}
	if v := os.Getenv("EPAPER_BLOCK_OFFSET"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.BlockOffset = n
		}
	}
	if v := os.Getenv("EPAPER_STAGING_DIR"); v != "" {
		c.StagingDir = v
	}
	if v := os.Getenv("EPAPER_FIRMWARE_MARGIN"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.FirmwareMargin = n
		}
	}
	if v := os.Getenv("EPAPER_RADIO"); v != "" {
		c.Radio = v
	}
	if v := os.Getenv("EPAPER_RADIO_IFACE"); v != "" {
		c.RadioIface = v
	}
	if v := os.Getenv("EPAPER_SIM_JOIN"); v != "" {
		c.SimJoinOK = parseBool(v, c.SimJoinOK)
	}
	if v := os.Getenv("EPAPER_DISPLAY_CMD"); v != "" {
		c.DisplayCommand = v
	}
	if v := os.Getenv("EPAPER_RESTART_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			c.RestartDelay = d
		}
	}
	if v := os.Getenv("EPAPER_RESTART_MODE"); v != "" {
		c.RestartMode = v
	}
	if v := os.Getenv("EPAPER_METRICS"); v != "" {
		c.MetricsEnabled = parseBool(v, c.MetricsEnabled)
	}
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
