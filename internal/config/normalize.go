package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.Temp) != "" {
		if c.Paths.Temp, err = expandPath(c.Paths.Temp); err != nil {
			return fmt.Errorf("paths.temp: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDirDefault
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Encode.Encoder = strings.ToLower(strings.TrimSpace(c.Encode.Encoder))
	if c.Encode.Encoder == "" {
		c.Encode.Encoder = defaultEncoder
	}
	c.Encode.ChunkMethod = strings.ToLower(strings.TrimSpace(c.Encode.ChunkMethod))
	c.Encode.ChunkOrder = strings.ToLower(strings.TrimSpace(c.Encode.ChunkOrder))
	c.Encode.Concat = strings.ToLower(strings.TrimSpace(c.Encode.Concat))
	if c.Encode.MaxTries <= 0 {
		c.Encode.MaxTries = defaultMaxTries
	}
	if strings.TrimSpace(c.Encode.PixelFormat) == "" {
		c.Encode.PixelFormat = defaultPixelFormat
	}

	if strings.TrimSpace(c.Scenes.ScenesFile) != "" {
		if c.Scenes.ScenesFile, err = expandPath(c.Scenes.ScenesFile); err != nil {
			return fmt.Errorf("scenes.scenes_file: %w", err)
		}
	}
	if strings.TrimSpace(c.Scenes.ZonesFile) != "" {
		if c.Scenes.ZonesFile, err = expandPath(c.Scenes.ZonesFile); err != nil {
			return fmt.Errorf("scenes.zones_file: %w", err)
		}
	}

	c.TargetQuality.Metric = strings.ToLower(strings.TrimSpace(c.TargetQuality.Metric))
	if c.TargetQuality.Metric == "" {
		c.TargetQuality.Metric = defaultTargetMetric
	}
	c.TargetQuality.ProbingSpeed = strings.ToLower(strings.TrimSpace(c.TargetQuality.ProbingSpeed))
	if c.TargetQuality.ProbingSpeed == "" {
		c.TargetQuality.ProbingSpeed = defaultProbingSpeed
	}
	c.TargetQuality.ProbingStatistic = strings.ToLower(strings.TrimSpace(c.TargetQuality.ProbingStatistic))
	if c.TargetQuality.ProbingStatistic == "" {
		c.TargetQuality.ProbingStatistic = defaultProbingStat
	}
	if c.TargetQuality.Probes <= 0 {
		c.TargetQuality.Probes = defaultProbes
	}
	if c.TargetQuality.ProbingRate <= 0 {
		c.TargetQuality.ProbingRate = defaultProbingRate
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
