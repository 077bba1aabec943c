package config

import (
	"errors"
	"fmt"

	"lathe/internal/chunk"
	"lathe/internal/concat"
	"lathe/internal/encoder"
	"lathe/internal/framesource"
	"lathe/internal/metrics"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateScenes(); err != nil {
		return err
	}
	if err := c.validateTargetQuality(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateEncode() error {
	if _, err := encoder.Parse(c.Encode.Encoder); err != nil {
		return fmt.Errorf("encode.encoder: %w", err)
	}
	if c.Encode.Passes < 0 || c.Encode.Passes > 2 {
		return errors.New("encode.passes must be 0 (encoder default), 1 or 2")
	}
	if c.Encode.Workers < 0 {
		return errors.New("encode.workers must be >= 0 (0 selects automatically)")
	}
	if c.Encode.SetThreadAffinity < 0 {
		return errors.New("encode.set_thread_affinity must be >= 0")
	}
	if _, err := framesource.ParseMethod(c.Encode.ChunkMethod); err != nil {
		return fmt.Errorf("encode.chunk_method: %w", err)
	}
	if _, err := chunk.ParseOrder(c.Encode.ChunkOrder); err != nil {
		return fmt.Errorf("encode.chunk_order: %w", err)
	}
	if _, err := concat.ParseMethod(c.Encode.Concat); err != nil {
		return fmt.Errorf("encode.concat: %w", err)
	}
	return nil
}

func (c *Config) validateScenes() error {
	if c.Scenes.MinSceneLen < 1 {
		return errors.New("scenes.min_scene_len must be >= 1")
	}
	if c.Scenes.ExtraSplit < 0 {
		return errors.New("scenes.extra_split must be >= 0 (0 disables)")
	}
	if c.Scenes.ExtraSplit > 0 && c.Scenes.ExtraSplit < c.Scenes.MinSceneLen {
		return errors.New("scenes.extra_split must not be smaller than scenes.min_scene_len")
	}
	for _, kf := range c.Scenes.ForceKeyframes {
		if kf < 0 {
			return fmt.Errorf("scenes.force_keyframes contains negative frame %d", kf)
		}
	}
	return nil
}

func (c *Config) validateTargetQuality() error {
	tq := c.TargetQuality
	if _, err := metrics.Parse(tq.Metric); err != nil {
		return fmt.Errorf("target_quality.metric: %w", err)
	}
	if _, err := metrics.ParseStatistic(tq.ProbingStatistic); err != nil {
		return fmt.Errorf("target_quality.probing_statistic: %w", err)
	}
	if _, err := encoder.ParseProbingSpeed(tq.ProbingSpeed); err != nil {
		return fmt.Errorf("target_quality.probing_speed: %w", err)
	}
	if tq.ProbingRate < 1 || tq.ProbingRate > 4 {
		return errors.New("target_quality.probing_rate must be in 1..4")
	}
	if tq.Target < 0 {
		return errors.New("target_quality.target must be >= 0")
	}
	if tq.MinQ < 0 || tq.MaxQ < 0 {
		return errors.New("target_quality quantizer bounds must be >= 0")
	}
	if tq.MinQ != 0 && tq.MaxQ != 0 && tq.MinQ > tq.MaxQ {
		return errors.New("target_quality.min_q must not exceed max_q")
	}
	return nil
}

// TargetQualityEnabled reports whether the search runs for this config.
func (c *Config) TargetQualityEnabled() bool {
	return c.TargetQuality.Target > 0
}
