package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"lathe/internal/audio"
	"lathe/internal/chunk"
	"lathe/internal/concat"
	"lathe/internal/config"
	"lathe/internal/encoder"
	"lathe/internal/fileutil"
	"lathe/internal/framesource"
	"lathe/internal/journal"
	"lathe/internal/logging"
	"lathe/internal/media/ffprobe"
	"lathe/internal/metrics"
	"lathe/internal/runstate"
	"lathe/internal/services"
	"lathe/internal/targetquality"
	"lathe/internal/worker"
)

// Options describes one encode run.
type Options struct {
	Config *config.Config
	Input  string
	Output string
	Resume bool
	Logger *slog.Logger
	// OnEvent receives worker progress events for the UI layer.
	OnEvent func(worker.Event)
}

// Runner executes the phase sequence for one input.
type Runner struct {
	opts    Options
	cfg     *config.Config
	logger  *slog.Logger
	tempDir string

	onPlan  func(totalFrames, totalChunks int)
	lock    *flock.Flock
	info    ffprobe.VideoInfo
	source  *framesource.Source
	chunks  []*chunk.Chunk
	journal *journal.Journal
	state   *runstate.Store
	runID   string
	enc     encoder.Encoder
}

// New builds a Runner. The working directory is derived from a hash of the
// input path unless the config overrides it, so concurrent runs on
// different inputs never collide.
func New(opts Options) (*Runner, error) {
	if strings.TrimSpace(opts.Input) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "driver", "options", "input path required", nil)
	}
	if strings.TrimSpace(opts.Output) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "driver", "options", "output path required", nil)
	}
	enc, err := encoder.Parse(opts.Config.Encode.Encoder)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, "driver", "options", "", err)
	}

	tempDir := opts.Config.Paths.Temp
	if strings.TrimSpace(tempDir) == "" {
		tempDir = filepath.Join(".", "."+fileutil.InputHash(opts.Input)+"_lathe")
	}
	tempDir, err = filepath.Abs(tempDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Runner{
		opts:    opts,
		cfg:     opts.Config,
		logger:  logger,
		tempDir: tempDir,
		enc:     enc,
	}, nil
}

// TempDir returns the run's working directory.
func (r *Runner) TempDir() string {
	return r.tempDir
}

// SetLogger replaces the runner's logger; the CLI needs the working
// directory (for the per-run log file) before it can build the logger.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetOnEvent installs the progress callback.
func (r *Runner) SetOnEvent(fn func(worker.Event)) {
	r.opts.OnEvent = fn
}

// SetOnPlan installs a callback fired once the chunk plan is known, before
// encoding starts.
func (r *Runner) SetOnPlan(fn func(totalFrames, totalChunks int)) {
	r.onPlan = fn
}

// Run executes the full phase sequence. On cancellation the journal is
// flushed and the working directory left intact for resume.
func (r *Runner) Run(ctx context.Context) (err error) {
	if err := r.acquireWorkDir(); err != nil {
		return err
	}
	defer r.releaseWorkDir()

	logger := logging.WithComponent(r.logger, "driver")

	if err := r.probePhase(ctx); err != nil {
		return err
	}
	if err := r.planPhase(ctx); err != nil {
		return err
	}
	if r.onPlan != nil {
		r.onPlan(r.info.FrameCount, len(r.chunks))
	}

	if r.state, err = runstate.Open(r.tempDir); err != nil {
		return err
	}
	defer r.state.Close()

	run, err := r.state.StartRun(ctx, r.opts.Input, r.opts.Output, string(r.enc),
		r.workerCount(), r.info.FrameCount, r.chunks)
	if err != nil {
		return err
	}
	r.runID = run.ID

	encodeErr := r.encodePhase(ctx)

	if flushErr := r.journal.Flush(); flushErr != nil && encodeErr == nil {
		encodeErr = flushErr
	}
	if encodeErr != nil {
		_ = r.state.FinishRun(ctx, r.runID, runstate.RunFailed)
		return encodeErr
	}

	if err := r.concatPhase(ctx); err != nil {
		_ = r.state.FinishRun(ctx, r.runID, runstate.RunFailed)
		return err
	}
	if err := r.validateOutput(ctx); err != nil {
		_ = r.state.FinishRun(ctx, r.runID, runstate.RunFailed)
		return err
	}
	if err := r.state.FinishRun(ctx, r.runID, runstate.RunCompleted); err != nil {
		return err
	}

	logger.Info("encode complete",
		logging.String("output", r.opts.Output),
		logging.Int("frames", r.info.FrameCount),
		logging.Int("chunks", len(r.chunks)))

	r.cleanupPhase()
	return nil
}

// acquireWorkDir creates the working directory and takes its lock so two
// runs never share scratch space. A fresh (non-resume) run clears a
// directory that holds a previous run's journal.
func (r *Runner) acquireWorkDir() error {
	if !r.opts.Resume {
		if _, err := os.Stat(filepath.Join(r.tempDir, journal.FileName)); err == nil {
			r.logger.Warn("working directory holds a previous run; starting clean (use --resume to continue it)",
				logging.String("temp", r.tempDir))
			if err := os.RemoveAll(r.tempDir); err != nil {
				return fmt.Errorf("clear working directory: %w", err)
			}
		}
	}
	for _, dir := range []string{r.tempDir, filepath.Join(r.tempDir, "encode"), filepath.Join(r.tempDir, "split")} {
		if err := fileutil.EnsureDir(dir); err != nil {
			return err
		}
	}

	r.lock = flock.New(filepath.Join(r.tempDir, "run.lock"))
	locked, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock working directory: %w", err)
	}
	if !locked {
		return services.Wrap(services.ErrInvalidInput, "driver", "lock",
			fmt.Sprintf("another run is active in %s", r.tempDir), nil)
	}
	return nil
}

func (r *Runner) releaseWorkDir() {
	if r.lock != nil {
		_ = r.lock.Unlock()
	}
}

func (r *Runner) workerCount() int {
	if r.cfg.Encode.Workers > 0 {
		return r.cfg.Encode.Workers
	}
	return worker.DefaultWorkers(r.enc)
}

func (r *Runner) passes() int {
	if r.cfg.Encode.Passes > 0 {
		return r.cfg.Encode.Passes
	}
	return r.enc.DefaultPasses()
}

// videoParams resolves the default argument list for chunks outside zones.
func (r *Runner) videoParams() []string {
	if len(r.cfg.Encode.VideoParams) > 0 {
		return r.cfg.Encode.VideoParams
	}
	return r.enc.DefaultArgs()
}

func (r *Runner) encodePhase(ctx context.Context) error {
	order, err := chunk.ParseOrder(r.cfg.Encode.ChunkOrder)
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, "encode", "chunk order", "", err)
	}
	queue := chunk.NewQueue(r.chunks, order)

	var search *targetquality.Search
	if r.cfg.TargetQualityEnabled() {
		search, err = r.buildSearch()
		if err != nil {
			return err
		}
	}

	pool := &worker.Pool{
		Queue:               queue,
		Source:              r.source,
		Journal:             r.journal,
		State:               r.state,
		RunID:               r.runID,
		TempDir:             r.tempDir,
		Workers:             r.workerCount(),
		MaxTries:            r.cfg.Encode.MaxTries,
		TargetQuality:       search,
		IgnoreFrameMismatch: r.cfg.Encode.IgnoreFrameMismatch,
		SetThreadAffinity:   r.cfg.Encode.SetThreadAffinity,
		Logger:              r.logger,
		OnEvent:             r.opts.OnEvent,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if r.info.HasAudio {
		task := &audio.Task{
			Input:   r.opts.Input,
			TempDir: r.tempDir,
			Params:  r.cfg.Encode.AudioParams,
			Logger:  r.logger,
		}
		group.Go(func() error {
			return task.Run(groupCtx)
		})
	}
	group.Go(func() error {
		return pool.Run(groupCtx)
	})

	return group.Wait()
}

func (r *Runner) buildSearch() (*targetquality.Search, error) {
	metric, err := metrics.Parse(r.cfg.TargetQuality.Metric)
	if err != nil {
		return nil, err
	}
	statistic, err := metrics.ParseStatistic(r.cfg.TargetQuality.ProbingStatistic)
	if err != nil {
		return nil, err
	}
	speed, err := encoder.ParseProbingSpeed(r.cfg.TargetQuality.ProbingSpeed)
	if err != nil {
		return nil, err
	}

	minQ, maxQ := r.enc.QuantizerRange()
	if r.cfg.TargetQuality.MinQ > 0 {
		minQ = r.cfg.TargetQuality.MinQ
	}
	if r.cfg.TargetQuality.MaxQ > 0 {
		maxQ = r.cfg.TargetQuality.MaxQ
	}

	prober := &targetquality.ProbeRunner{
		Source:       r.source,
		Metric:       metric,
		Statistic:    statistic,
		ProbingRate:  r.cfg.TargetQuality.ProbingRate,
		ProbingSpeed: speed,
		ProbeSlow:    r.cfg.TargetQuality.ProbeSlow,
		VMAFModel:    r.cfg.TargetQuality.VMAFModel,
		ScoreRes:     r.cfg.TargetQuality.ScoreRes,
		ScoreFilter:  r.cfg.TargetQuality.ScoreFilter,
		PixelFormat:  r.cfg.Encode.PixelFormat,
	}

	return &targetquality.Search{
		Metric:    metric,
		Target:    r.cfg.TargetQuality.Target,
		MinQ:      minQ,
		MaxQ:      maxQ,
		MaxProbes: r.cfg.TargetQuality.Probes,
		Prober:    prober,
		Logger:    r.logger,
	}, nil
}

func (r *Runner) concatPhase(ctx context.Context) error {
	method, err := concat.ParseMethod(r.cfg.Encode.Concat)
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, "concat", "method", "", err)
	}
	if method == "" {
		method = concat.AutoSelect()
	}

	audioFile := ""
	if r.info.HasAudio {
		audioFile = filepath.Join(r.tempDir, audio.FileName)
	}
	return concat.Run(ctx, concat.Request{
		Method:    method,
		TempDir:   r.tempDir,
		Output:    r.opts.Output,
		AudioFile: audioFile,
	})
}

// validateOutput checks the final container's frame count against the
// source.
func (r *Runner) validateOutput(ctx context.Context) error {
	if r.cfg.Encode.IgnoreFrameMismatch {
		return nil
	}
	frames, err := ffprobe.CountFrames(ctx, "", r.opts.Output)
	if err != nil {
		// Some containers (raw ivf) are cheap to check directly.
		if ivfFrames, ivfErr := concat.IvfFrameCount(r.opts.Output); ivfErr == nil {
			frames = ivfFrames
		} else {
			return services.Wrap(services.ErrEncoderRun, "concat", "validate", "count output frames", err)
		}
	}
	if frames != r.info.FrameCount {
		return services.Wrap(services.ErrEncoderRun, "concat", "validate",
			fmt.Sprintf("output has %d frames, source has %d", frames, r.info.FrameCount), nil)
	}
	return nil
}

// cleanupPhase deletes the working directory after success unless retention
// was requested.
func (r *Runner) cleanupPhase() {
	if r.cfg.Encode.Keep {
		r.logger.Info("keeping working directory", logging.String("temp", r.tempDir))
		return
	}
	r.releaseWorkDir()
	if err := os.RemoveAll(r.tempDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("failed to remove working directory",
			logging.String("temp", r.tempDir), logging.Error(err))
	}
}
