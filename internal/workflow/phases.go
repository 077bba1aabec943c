package workflow

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"lathe/internal/chunk"
	"lathe/internal/deps"
	"lathe/internal/framesource"
	"lathe/internal/journal"
	"lathe/internal/logging"
	"lathe/internal/media/ffprobe"
	"lathe/internal/metrics"
	"lathe/internal/scenes"
	"lathe/internal/services"
	"lathe/internal/services/scenedetect"
	"lathe/internal/services/vspipe"
)

// probePhase inspects the input, verifies external binaries, and sets up
// the frame source.
func (r *Runner) probePhase(ctx context.Context) error {
	logger := logging.WithComponent(r.logger, "probe")

	if missing := deps.MissingRequired(deps.CheckBinaries(r.requirements())); len(missing) > 0 {
		return services.Wrap(services.ErrToolMissing, "probe", "preflight",
			"missing required binaries: "+joinNames(missing), nil)
	}

	scriptInput := strings.EqualFold(filepath.Ext(r.opts.Input), ".vpy")

	var info ffprobe.VideoInfo
	if !scriptInput {
		result, err := ffprobe.Inspect(ctx, "", r.opts.Input)
		if err != nil {
			return services.Wrap(services.ErrInvalidInput, "probe", "inspect", r.opts.Input, err)
		}
		if info, err = result.Video(); err != nil {
			return services.Wrap(services.ErrInvalidInput, "probe", "inspect", r.opts.Input, err)
		}
	}

	var source *framesource.Source
	if scriptInput {
		// Script inputs route straight through the script runtime; the
		// script's output clip defines the geometry.
		source = framesource.NewFromScript(r.opts.Input, r.tempDir, r.cfg.Encode.PixelFormat)
	} else {
		method, err := framesource.ParseMethod(r.cfg.Encode.ChunkMethod)
		if err != nil {
			return services.Wrap(services.ErrInvalidInput, "probe", "chunk method", "", err)
		}
		if method == "" {
			method = framesource.AutoSelect(ctx)
			logger.Info("chunk method selected", logging.String("method", string(method)))
		}
		if source, err = framesource.New(method, r.opts.Input, r.tempDir, r.cfg.Encode.PixelFormat); err != nil {
			return err
		}
	}
	source.FrameRate = info.FrameRate

	// The frame source owns the authoritative frame count; containers can
	// lie about nb_frames.
	frames, err := source.FrameCount(ctx)
	if err != nil {
		logger.Warn("frame source count failed, trusting container metadata", logging.Error(err))
		frames = info.FrameCount
	}
	if frames <= 0 {
		return services.Wrap(services.ErrInvalidInput, "probe", "frame count",
			"could not determine source length", nil)
	}
	info.FrameCount = frames

	r.info = info
	r.source = source

	logger.Info("source probed",
		logging.Int("frames", info.FrameCount),
		logging.Float64("fps", info.FrameRate),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.Int("bit_depth", info.BitDepth),
		logging.Bool("audio", info.HasAudio))
	return nil
}

// planPhase produces the chunk list: persisted scene file when present,
// otherwise detector output run through the split planner.
func (r *Runner) planPhase(ctx context.Context) error {
	logger := logging.WithComponent(r.logger, "plan")

	var zones []scenes.Zone
	if r.cfg.Scenes.ZonesFile != "" {
		var err error
		zones, err = scenes.ParseZonesFile(r.cfg.Scenes.ZonesFile, r.info.FrameCount, r.enc)
		if err != nil {
			return services.Wrap(services.ErrInvalidInput, "plan", "zones", "", err)
		}
	}

	sceneFile := r.cfg.Scenes.ScenesFile
	if sceneFile == "" {
		sceneFile = filepath.Join(r.tempDir, scenes.FileName)
	}

	var plan []scenes.Scene
	if _, err := os.Stat(sceneFile); err == nil {
		plan, _, err = scenes.ReadFile(sceneFile, r.info.FrameCount, r.cfg.Encode.IgnoreFrameMismatch)
		if err != nil {
			return services.Wrap(services.ErrInvalidInput, "plan", "scene file", "", err)
		}
		logger.Info("scene plan loaded", logging.String("file", sceneFile),
			logging.Int("scenes", len(plan)))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrInvalidInput, "plan", "scene file", sceneFile, err)
	} else {
		detectOpts := scenedetect.Options{
			MinSceneLen:     r.cfg.Scenes.MinSceneLen,
			DownscaleHeight: r.cfg.Scenes.DownscaleHeight,
			PixelFormat:     r.cfg.Scenes.DetectPixelFormat,
		}
		if strings.EqualFold(filepath.Ext(r.opts.Input), ".vpy") {
			detectOpts.SourceCmd = vspipe.PipeCmd(ctx, r.opts.Input, 0, r.info.FrameCount)
		}
		detected, err := scenedetect.Detect(ctx, r.opts.Input, detectOpts)
		if err != nil {
			return err
		}
		plan, err = scenes.Plan(scenes.PlanInput{
			FrameCount:     r.info.FrameCount,
			DetectedCuts:   detected.SceneChanges,
			ForceKeyframes: r.cfg.Scenes.ForceKeyframes,
			Zones:          zones,
			MinSceneLen:    r.cfg.Scenes.MinSceneLen,
			ExtraSplit:     r.cfg.Scenes.ExtraSplit,
		})
		if err != nil {
			return services.Wrap(services.ErrInvalidInput, "plan", "split", "", err)
		}
		if err := scenes.WriteFile(sceneFile, plan, r.info.FrameCount); err != nil {
			return err
		}
		logger.Info("scene plan computed",
			logging.Int("cuts", len(detected.SceneChanges)),
			logging.Int("scenes", len(plan)))
	}

	if err := scenes.Validate(plan, r.info.FrameCount); err != nil {
		return services.Wrap(services.ErrInvalidInput, "plan", "validate", "", err)
	}

	r.chunks = chunk.FromScenes(plan, r.enc, r.videoParams(), r.passes(), r.tempDir, r.info.FrameRate)
	if err := r.source.Prepare(ctx, r.chunks); err != nil {
		return err
	}

	var err error
	if r.journal, err = journal.Open(filepath.Join(r.tempDir, journal.FileName)); err != nil {
		return services.Wrap(services.ErrJournal, "plan", "journal", "", err)
	}
	if r.opts.Resume && r.journal.Len() > 0 {
		logger.Info("resuming from journal", logging.Int("completed", r.journal.Len()))
	}
	return nil
}

// requirements lists the external binaries this run needs.
func (r *Runner) requirements() []deps.Requirement {
	reqs := []deps.Requirement{
		{Name: "ffmpeg", Command: "ffmpeg", Description: "frame decoding, audio, scoring"},
		{Name: "ffprobe", Command: "ffprobe", Description: "source inspection"},
		{Name: r.enc.Binary(), Command: r.enc.Binary(), Description: "video encoder"},
	}
	method, _ := framesource.ParseMethod(r.cfg.Encode.ChunkMethod)
	switch method {
	case framesource.MethodLSmash, framesource.MethodFFMS2,
		framesource.MethodBestSource, framesource.MethodDGDecNV:
		reqs = append(reqs, deps.Requirement{
			Name: vspipe.Binary, Command: vspipe.Binary,
			Description: "script runtime for indexed frame sources",
		})
	default:
		if strings.EqualFold(filepath.Ext(r.opts.Input), ".vpy") {
			reqs = append(reqs, deps.Requirement{
				Name: vspipe.Binary, Command: vspipe.Binary,
				Description: "script runtime for script inputs",
			})
		}
	}
	if r.cfg.Encode.Concat == "mkvmerge" {
		reqs = append(reqs, deps.Requirement{
			Name: "mkvmerge", Command: "mkvmerge", Description: "segment concatenation",
		})
	}
	if sceneFile := r.cfg.Scenes.ScenesFile; sceneFile == "" {
		if _, err := os.Stat(filepath.Join(r.tempDir, scenes.FileName)); err != nil {
			reqs = append(reqs, deps.Requirement{
				Name: scenedetect.Binary, Command: scenedetect.Binary,
				Description: "scene change detection",
			})
		}
	}
	if r.cfg.TargetQualityEnabled() {
		switch r.cfg.TargetQuality.Metric {
		case "ssimulacra2", "butteraugli-inf", "butteraugli-3":
			reqs = append(reqs, deps.Requirement{
				Name: metrics.ScriptRuntimeBinary, Command: metrics.ScriptRuntimeBinary,
				Description: "script runtime for metric scoring",
			})
		}
	}
	return reqs
}

func joinNames(names []string) string {
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}
