package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Device  DeviceConfig  `mapstructure:"device"`
	Capture CaptureConfig `mapstructure:"capture"`
	Gauge   GaugeConfig   `mapstructure:"gauge"`
	Monitor MonitorConfig `mapstructure:"monitor"`
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	StateTTL     time.Duration `mapstructure:"state_ttl"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DeviceConfig describes how the byte stream is acquired.
type DeviceConfig struct {
	ADBPath      string `mapstructure:"adb_path"`
	Serial       string `mapstructure:"serial"`
	OutputFormat string `mapstructure:"output_format"`
	ReplayFile   string `mapstructure:"replay_file"` // read a recorded stream instead of adb
}

// CaptureConfig configures decoding and frame normalization.
type CaptureConfig struct {
	Codec        string        `mapstructure:"codec"`
	Width        int           `mapstructure:"width"`
	Height       int           `mapstructure:"height"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	FrameTimeout time.Duration `mapstructure:"frame_timeout"` // 0 waits forever
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`
}

// GaugeConfig holds the calibration of the gauge region, in capture coordinates.
type GaugeConfig struct {
	StartX          int      `mapstructure:"start_x"`
	StartY          int      `mapstructure:"start_y"`
	Width           int      `mapstructure:"width"`
	Height          int      `mapstructure:"height"`
	CellCount       int      `mapstructure:"cell_count"`
	CellWidth       int      `mapstructure:"cell_width"`
	CellHeight      int      `mapstructure:"cell_height"`
	AnalysisOffsetY int      `mapstructure:"analysis_offset_y"`
	InitialOffsetX  int      `mapstructure:"initial_offset_x"`
	ColorLower      [3]uint8 `mapstructure:"color_lower"`
	ColorUpper      [3]uint8 `mapstructure:"color_upper"`
}

type MonitorConfig struct {
	Rate  float64 `mapstructure:"rate"` // analyses per second
	Burst int     `mapstructure:"burst"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SCREENWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.health_interval", "30s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.key_prefix", "screenwatch:")
	v.SetDefault("redis.state_ttl", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Device defaults
	v.SetDefault("device.adb_path", "")
	v.SetDefault("device.serial", "")
	v.SetDefault("device.output_format", "h264")
	v.SetDefault("device.replay_file", "")

	// Capture defaults
	v.SetDefault("capture.codec", "h264")
	v.SetDefault("capture.width", 432)
	v.SetDefault("capture.height", 768)
	v.SetDefault("capture.chunk_size", 65536)
	v.SetDefault("capture.frame_timeout", "5s")
	v.SetDefault("capture.stop_timeout", "1s")
	v.SetDefault("capture.ffmpeg_path", "")

	// Gauge calibration defaults (432x768 capture)
	v.SetDefault("gauge.start_x", 72)
	v.SetDefault("gauge.start_y", 625)
	v.SetDefault("gauge.width", 288)
	v.SetDefault("gauge.height", 20)
	v.SetDefault("gauge.cell_count", 10)
	v.SetDefault("gauge.cell_width", 28)
	v.SetDefault("gauge.cell_height", 20)
	v.SetDefault("gauge.analysis_offset_y", 3)
	v.SetDefault("gauge.initial_offset_x", 13)
	v.SetDefault("gauge.color_lower", []int{190, 10, 190})
	v.SetDefault("gauge.color_upper", []int{255, 120, 255})

	// Monitor defaults
	v.SetDefault("monitor.rate", 10.0)
	v.SetDefault("monitor.burst", 1)
}
