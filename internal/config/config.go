package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// Temp overrides the hash-derived working directory location.
	Temp string `toml:"temp"`
	// LogDir receives the global log file; the per-run log always lives in
	// the working directory.
	LogDir string `toml:"log_dir"`
}

// Encode contains encoder and scheduling configuration.
type Encode struct {
	Encoder             string   `toml:"encoder"`
	VideoParams         []string `toml:"video_params"`
	AudioParams         []string `toml:"audio_params"`
	Passes              int      `toml:"passes"`
	Workers             int      `toml:"workers"`
	ChunkMethod         string   `toml:"chunk_method"`
	ChunkOrder          string   `toml:"chunk_order"`
	Concat              string   `toml:"concat"`
	MaxTries            int      `toml:"max_tries"`
	SetThreadAffinity   int      `toml:"set_thread_affinity"`
	IgnoreFrameMismatch bool     `toml:"ignore_frame_mismatch"`
	PixelFormat         string   `toml:"pix_format"`
	Keep                bool     `toml:"keep"`
}

// Scenes contains split planner configuration.
type Scenes struct {
	MinSceneLen       int    `toml:"min_scene_len"`
	ExtraSplit        int    `toml:"extra_split"`
	ScenesFile        string `toml:"scenes_file"`
	ZonesFile         string `toml:"zones_file"`
	ForceKeyframes    []int  `toml:"force_keyframes"`
	DownscaleHeight   int    `toml:"sc_downscale_height"`
	DetectPixelFormat string `toml:"sc_pix_format"`
}

// TargetQuality contains the per-chunk quantizer search configuration. A
// zero Target disables the search.
type TargetQuality struct {
	Target           float64 `toml:"target"`
	Metric           string  `toml:"metric"`
	Probes           int     `toml:"probes"`
	ProbingRate      int     `toml:"probing_rate"`
	ProbingSpeed     string  `toml:"probing_speed"`
	ProbeSlow        bool    `toml:"probe_slow"`
	ProbingStatistic string  `toml:"probing_statistic"`
	MinQ             int     `toml:"min_q"`
	MaxQ             int     `toml:"max_q"`
	VMAFModel        string  `toml:"vmaf_model"`
	ScoreRes         string  `toml:"score_res"`
	ScoreFilter      string  `toml:"score_filter"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lathe.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Encode        Encode        `toml:"encode"`
	Scenes        Scenes        `toml:"scenes"`
	TargetQuality TargetQuality `toml:"target_quality"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lathe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("lathe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
