package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validGauge() GaugeConfig {
	return GaugeConfig{
		StartX:          72,
		StartY:          625,
		Width:           288,
		Height:          20,
		CellCount:       10,
		CellWidth:       28,
		CellHeight:      20,
		AnalysisOffsetY: 3,
		InitialOffsetX:  13,
		ColorLower:      [3]uint8{190, 10, 190},
		ColorUpper:      [3]uint8{255, 120, 255},
	}
}

func TestGaugeConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *GaugeConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(g *GaugeConfig) {}},
		{name: "zero cells", mutate: func(g *GaugeConfig) { g.CellCount = 0 }, wantErr: "cell_count"},
		{name: "negative origin", mutate: func(g *GaugeConfig) { g.StartX = -1 }, wantErr: "origin"},
		{name: "cells wider than region", mutate: func(g *GaugeConfig) { g.CellWidth = 40 }, wantErr: "outside gauge width"},
		{name: "sample row below region", mutate: func(g *GaugeConfig) { g.AnalysisOffsetY = 15 }, wantErr: "outside gauge height"},
		{name: "inverted color range", mutate: func(g *GaugeConfig) { g.ColorLower[1] = 200 }, wantErr: "channel 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGauge()
			tt.mutate(&g)
			err := g.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCaptureConfigValidate(t *testing.T) {
	base := CaptureConfig{Codec: "h264", Width: 432, Height: 768, ChunkSize: 1024, StopTimeout: time.Second}
	assert.NoError(t, base.Validate())

	bad := base
	bad.StopTimeout = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.FrameTimeout = -time.Second
	assert.Error(t, bad.Validate())

	bad = base
	bad.Width = 0
	assert.Error(t, bad.Validate())
}

func TestLoggingConfigValidate(t *testing.T) {
	assert.NoError(t, (&LoggingConfig{Level: "info", Format: "json", Output: "stdout"}).Validate())
	assert.Error(t, (&LoggingConfig{Level: "verbose", Format: "json", Output: "stdout"}).Validate())
	assert.Error(t, (&LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}).Validate())
	assert.Error(t, (&LoggingConfig{Level: "info", Format: "text", Output: "/tmp/sw.log", MaxSize: 0}).Validate())
}

func TestRedisConfigValidate(t *testing.T) {
	assert.NoError(t, (&RedisConfig{Enabled: false}).Validate())
	assert.Error(t, (&RedisConfig{Enabled: true}).Validate())
	assert.NoError(t, (&RedisConfig{Enabled: true, Addresses: []string{"localhost:6379"}, KeyPrefix: "sw:"}).Validate())
}

func TestServerAndMonitorValidate(t *testing.T) {
	assert.NoError(t, (&ServerConfig{Enabled: false}).Validate())
	assert.Error(t, (&ServerConfig{Enabled: true, Port: 70000, ShutdownTimeout: time.Second, HealthInterval: time.Second}).Validate())
	assert.NoError(t, (&ServerConfig{Enabled: true, Port: 8080, ShutdownTimeout: time.Second, HealthInterval: time.Second}).Validate())

	assert.Error(t, (&MonitorConfig{Rate: 0, Burst: 1}).Validate())
	assert.Error(t, (&MonitorConfig{Rate: 1, Burst: 0}).Validate())
}

func TestDeviceConfigValidate(t *testing.T) {
	assert.NoError(t, (&DeviceConfig{OutputFormat: "h264"}).Validate())
	assert.Error(t, (&DeviceConfig{OutputFormat: "raw-frames"}).Validate())
	assert.NoError(t, (&DeviceConfig{ReplayFile: "capture.h264"}).Validate())
}
