package config

import (
	"fmt"
	"time"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Gauge.Validate(); err != nil {
		return fmt.Errorf("gauge config: %w", err)
	}

	// The gauge region is expressed in capture coordinates.
	if c.Gauge.StartX+c.Gauge.Width > c.Capture.Width || c.Gauge.StartY+c.Gauge.Height > c.Capture.Height {
		return fmt.Errorf("gauge region (%d,%d %dx%d) exceeds capture size %dx%d",
			c.Gauge.StartX, c.Gauge.StartY, c.Gauge.Width, c.Gauge.Height, c.Capture.Width, c.Capture.Height)
	}

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}

	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	if s.HealthInterval < time.Second {
		return fmt.Errorf("health_interval must be at least 1s")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.KeyPrefix == "" {
		return fmt.Errorf("key_prefix cannot be empty")
	}

	if r.StateTTL < 0 {
		return fmt.Errorf("state_ttl cannot be negative")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Path == "" {
		return fmt.Errorf("metrics path cannot be empty")
	}
	return nil
}

func (d *DeviceConfig) Validate() error {
	if d.ReplayFile != "" {
		return nil
	}

	if d.OutputFormat != "h264" {
		return fmt.Errorf("unsupported screenrecord output format: %s", d.OutputFormat)
	}

	return nil
}

func (c *CaptureConfig) Validate() error {
	if c.Codec != "h264" && c.Codec != "mjpeg" {
		return fmt.Errorf("unsupported codec: %s", c.Codec)
	}

	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("capture size must be positive, got %dx%d", c.Width, c.Height)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}

	if c.FrameTimeout < 0 {
		return fmt.Errorf("frame_timeout cannot be negative")
	}

	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be positive")
	}

	return nil
}

func (g *GaugeConfig) Validate() error {
	if g.StartX < 0 || g.StartY < 0 {
		return fmt.Errorf("gauge origin cannot be negative")
	}

	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("gauge size must be positive")
	}

	if g.CellCount <= 0 {
		return fmt.Errorf("cell_count must be positive")
	}

	if g.CellWidth <= 0 || g.CellHeight <= 0 {
		return fmt.Errorf("cell size must be positive")
	}

	// Every sample point has to land inside the cropped region.
	lastX := (g.CellCount-1)*g.CellWidth + g.CellWidth/2
	firstX := g.CellWidth/2 + g.InitialOffsetX
	sampleY := g.CellHeight/2 + g.AnalysisOffsetY
	if lastX >= g.Width || firstX < 0 || firstX >= g.Width {
		return fmt.Errorf("sample points fall outside gauge width %d", g.Width)
	}
	if sampleY < 0 || sampleY >= g.Height {
		return fmt.Errorf("sample row %d falls outside gauge height %d", sampleY, g.Height)
	}

	for i := 0; i < 3; i++ {
		if g.ColorLower[i] > g.ColorUpper[i] {
			return fmt.Errorf("color_lower exceeds color_upper on channel %d", i)
		}
	}

	return nil
}

func (m *MonitorConfig) Validate() error {
	if m.Rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}

	if m.Burst < 1 {
		return fmt.Errorf("burst must be at least 1")
	}

	return nil
}
