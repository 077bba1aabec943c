package main

import (
	"strings"

	"github.com/spf13/cobra"

	"lathe/internal/config"
)

// encodeFlags holds the raw CLI values that override config file entries.
type encodeFlags struct {
	input  string
	output string
	resume bool

	temp                string
	enc                 string
	videoParams         string
	audioParams         string
	passes              int
	workers             int
	chunkMethod         string
	chunkOrder          string
	concatMethod        string
	maxTries            int
	affinity            int
	ignoreFrameMismatch bool
	pixFormat           string
	keep                bool

	minSceneLen    int
	extraSplit     int
	scenesFile     string
	zonesFile      string
	forceKeyframes []int

	targetQuality    float64
	targetMetric     string
	probes           int
	probingRate      int
	probingSpeed     string
	probeSlow        bool
	probingStatistic string
	minQ             int
	maxQ             int
	probeRes         string
	vmafRes          string
	vmafFilter       string
	vmafModel        string

	logLevel string
}

func (f *encodeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVarP(&f.input, "input", "i", "", "Input video file or script")
	flags.StringVarP(&f.output, "output", "o", "", "Output file")
	flags.BoolVar(&f.resume, "resume", false, "Resume a previous run from its journal")

	flags.StringVar(&f.temp, "temp", "", "Working directory (default: hash of the input path)")
	flags.StringVarP(&f.enc, "encoder", "e", "", "Encoder: aom, rav1e, svt-av1, vpx, x264, x265")
	flags.StringVarP(&f.videoParams, "video-params", "v", "", "Encoder parameters (single string, space separated)")
	flags.StringVarP(&f.audioParams, "audio-params", "a", "", "ffmpeg audio parameters")
	flags.IntVar(&f.passes, "passes", 0, "Encoder passes, 1 or 2 (0 = encoder default)")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Parallel workers (0 = auto)")
	flags.StringVarP(&f.chunkMethod, "chunk-method", "m", "", "Frame source backend")
	flags.StringVar(&f.chunkOrder, "chunk-order", "", "Queue order: long-to-short, short-to-long, sequential, random")
	flags.StringVar(&f.concatMethod, "concat", "", "Concat method: mkvmerge, ffmpeg, ivf")
	flags.IntVar(&f.maxTries, "max-tries", 0, "Attempts per chunk before the run aborts")
	flags.IntVar(&f.affinity, "set-thread-affinity", 0, "Pin each worker's processes to N cores")
	flags.BoolVar(&f.ignoreFrameMismatch, "ignore-frame-mismatch", false, "Skip output frame count checks")
	flags.StringVar(&f.pixFormat, "pix-format", "", "Pipe pixel format")
	flags.BoolVar(&f.keep, "keep", false, "Keep the working directory after success")

	flags.IntVar(&f.minSceneLen, "min-scene-len", 0, "Minimum scene length in frames")
	flags.IntVarP(&f.extraSplit, "extra-split", "x", 0, "Maximum scene length in frames (0 disables)")
	flags.StringVarP(&f.scenesFile, "scenes", "s", "", "Persisted scene plan file")
	flags.StringVar(&f.zonesFile, "zones", "", "Zones file with per-range overrides")
	flags.IntSliceVar(&f.forceKeyframes, "force-keyframes", nil, "Frame indexes forced as chunk starts")

	flags.Float64Var(&f.targetQuality, "target-quality", 0, "Perceptual score target (enables the search)")
	flags.StringVar(&f.targetMetric, "target-metric", "", "Metric: vmaf, ssimulacra2, xpsnr, butteraugli-inf, butteraugli-3")
	flags.IntVar(&f.probes, "probes", 0, "Maximum probes per chunk")
	flags.IntVar(&f.probingRate, "probing-rate", 0, "Probe frame sub-sample rate 1..4")
	flags.StringVar(&f.probingSpeed, "probing-speed", "", "Probe preset: veryslow..veryfast")
	flags.BoolVar(&f.probeSlow, "probe-slow", false, "Probe with the user's encoder parameters")
	flags.StringVar(&f.probingStatistic, "probing-statistic", "", "Score aggregation statistic")
	flags.IntVar(&f.minQ, "min-q", 0, "Quantizer search lower bound")
	flags.IntVar(&f.maxQ, "max-q", 0, "Quantizer search upper bound")
	flags.StringVar(&f.probeRes, "probe-res", "", "Scoring resolution WxH")
	flags.StringVar(&f.vmafRes, "vmaf-res", "", "Scoring resolution WxH (alias of --probe-res)")
	flags.StringVar(&f.vmafFilter, "vmaf-filter", "", "Extra filter applied to the reference")
	flags.StringVar(&f.vmafModel, "vmaf-model", "", "libvmaf model path")

	flags.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// apply copies flag values the user actually set onto the loaded config,
// then revalidates.
func (f *encodeFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	set := flags.Changed

	if set("temp") {
		cfg.Paths.Temp = f.temp
	}
	if set("encoder") {
		cfg.Encode.Encoder = strings.ToLower(strings.TrimSpace(f.enc))
	}
	if set("video-params") {
		cfg.Encode.VideoParams = strings.Fields(f.videoParams)
	}
	if set("audio-params") {
		cfg.Encode.AudioParams = strings.Fields(f.audioParams)
	}
	if set("passes") {
		cfg.Encode.Passes = f.passes
	}
	if set("workers") {
		cfg.Encode.Workers = f.workers
	}
	if set("chunk-method") {
		cfg.Encode.ChunkMethod = strings.ToLower(f.chunkMethod)
	}
	if set("chunk-order") {
		cfg.Encode.ChunkOrder = strings.ToLower(f.chunkOrder)
	}
	if set("concat") {
		cfg.Encode.Concat = strings.ToLower(f.concatMethod)
	}
	if set("max-tries") {
		cfg.Encode.MaxTries = f.maxTries
	}
	if set("set-thread-affinity") {
		cfg.Encode.SetThreadAffinity = f.affinity
	}
	if set("ignore-frame-mismatch") {
		cfg.Encode.IgnoreFrameMismatch = f.ignoreFrameMismatch
	}
	if set("pix-format") {
		cfg.Encode.PixelFormat = f.pixFormat
	}
	if set("keep") {
		cfg.Encode.Keep = f.keep
	}

	if set("min-scene-len") {
		cfg.Scenes.MinSceneLen = f.minSceneLen
	}
	if set("extra-split") {
		cfg.Scenes.ExtraSplit = f.extraSplit
	}
	if set("scenes") {
		cfg.Scenes.ScenesFile = f.scenesFile
	}
	if set("zones") {
		cfg.Scenes.ZonesFile = f.zonesFile
	}
	if set("force-keyframes") {
		cfg.Scenes.ForceKeyframes = f.forceKeyframes
	}

	if set("target-quality") {
		cfg.TargetQuality.Target = f.targetQuality
	}
	if set("target-metric") {
		cfg.TargetQuality.Metric = strings.ToLower(f.targetMetric)
	}
	if set("probes") {
		cfg.TargetQuality.Probes = f.probes
	}
	if set("probing-rate") {
		cfg.TargetQuality.ProbingRate = f.probingRate
	}
	if set("probing-speed") {
		cfg.TargetQuality.ProbingSpeed = strings.ToLower(f.probingSpeed)
	}
	if set("probe-slow") {
		cfg.TargetQuality.ProbeSlow = f.probeSlow
	}
	if set("probing-statistic") {
		cfg.TargetQuality.ProbingStatistic = strings.ToLower(f.probingStatistic)
	}
	if set("min-q") {
		cfg.TargetQuality.MinQ = f.minQ
	}
	if set("max-q") {
		cfg.TargetQuality.MaxQ = f.maxQ
	}
	if set("probe-res") {
		cfg.TargetQuality.ScoreRes = f.probeRes
	}
	if set("vmaf-res") && !set("probe-res") {
		cfg.TargetQuality.ScoreRes = f.vmafRes
	}
	if set("vmaf-filter") {
		cfg.TargetQuality.ScoreFilter = f.vmafFilter
	}
	if set("vmaf-model") {
		cfg.TargetQuality.VMAFModel = f.vmafModel
	}

	if set("log-level") {
		cfg.Logging.Level = strings.ToLower(f.logLevel)
	}

	return cfg.Validate()
}

func loadConfig(configFlag *string) (*config.Config, error) {
	path := ""
	if configFlag != nil {
		path = *configFlag
	}
	cfg, _, _, err := config.Load(path)
	return cfg, err
}
