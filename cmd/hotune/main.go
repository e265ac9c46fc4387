package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thalesfsp/hotune"
	"github.com/thalesfsp/hotune/internal/config"
	"github.com/thalesfsp/hotune/internal/dataset"
	"github.com/thalesfsp/hotune/internal/tuning"
)

var (
	name    = "hotune"
	version = "0.1.0"
)

type args struct {
	Data     string `arg:"--data" help:"CSV file with a header row"`
	Label    string `arg:"--label" help:"name of the label column"`
	Trials   int    `arg:"--trials" help:"number of configurations to evaluate"`
	Folds    int    `arg:"--folds" help:"number of stratified cross-validation folds"`
	Sampler  string `arg:"--sampler" help:"proposal strategy: gp or tpe"`
	Seed     *int64 `arg:"--seed" help:"random seed; 0 seeds from the clock"`
	Config   string `arg:"--config" help:"YAML settings file (default $HOTUNE_CONFIG)"`
	LogLevel string `arg:"--log-level" help:"debug, info, warn or error"`
	Progress bool   `arg:"--progress" help:"draw a progress bar on stderr"`
}

func (args) Version() string {
	return fmt.Sprintf("%s %s", name, version)
}

func (args) Description() string {
	return "hotune searches random forest hyperparameters by stratified cross-validated accuracy."
}

func main() {
	var a args
	arg.MustParse(&a)

	settings, err := config.Load(a.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	applyArgs(&settings, a)

	if err := config.Validate(&settings); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Setup logging
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().
		Str("run", uuid.NewString()).
		Logger()

	if settings.Seed == 0 {
		settings.Seed = time.Now().UnixNano()
	}

	ds, err := dataset.Load(settings.DataPath, settings.LabelColumn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	log.Info().
		Str("data", settings.DataPath).
		Int("rows", ds.Len()).
		Int("features", ds.NumFeatures()).
		Int("classes", len(ds.Classes)).
		Int("trials", settings.Trials).
		Int("folds", settings.Folds).
		Str("sampler", settings.Sampler).
		Int64("seed", settings.Seed).
		Msg("Starting search")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	objective, err := tuning.NewObjective(ds, tuning.Options{
		Folds:     settings.Folds,
		Seed:      settings.Seed,
		Workers:   settings.Workers,
		CacheSize: settings.CacheSize,
		Logger:    log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build objective")
	}

	cfg := optimizationConfig(settings, log.Logger)

	var done chan struct{}

	if a.Progress {
		progress := make(chan hotune.ProgressUpdate, settings.Trials)
		cfg.ProgressChan = progress
		done = trackProgress(progress, settings.Trials)
	}

	result, err := hotune.Optimize(ctx, cfg, tuning.ForestSpace(bounds(settings.Space)), objective)

	if cfg.ProgressChan != nil {
		close(cfg.ProgressChan)
		<-done
	}

	if result != nil {
		report(os.Stdout, result)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Search failed")
	}
}

// applyArgs lets flags that were given override settings.
func applyArgs(s *config.Settings, a args) {
	if a.Data != "" {
		s.DataPath = a.Data
	}

	if a.Label != "" {
		s.LabelColumn = a.Label
	}

	if a.Trials != 0 {
		s.Trials = a.Trials
	}

	if a.Folds != 0 {
		s.Folds = a.Folds
	}

	if a.Sampler != "" {
		s.Sampler = a.Sampler
	}

	if a.Seed != nil {
		s.Seed = *a.Seed
	}

	if a.LogLevel != "" {
		s.LogLevel = a.LogLevel
	}
}

func bounds(sp config.Space) tuning.Bounds {
	return tuning.Bounds{
		Criteria:    sp.Criteria,
		NEstimators: hotune.ParameterRange[int]{Min: sp.NEstimators.Min, Max: sp.NEstimators.Max},
		MaxDepth:    hotune.ParameterRange[int]{Min: sp.MaxDepth.Min, Max: sp.MaxDepth.Max},
		MaxFeatures: hotune.ParameterRange[float64]{Min: sp.MaxFeatures.Min, Max: sp.MaxFeatures.Max},
	}
}

func acquisition(name string) hotune.AcquisitionFunc {
	switch name {
	case config.AcquisitionPI:
		return hotune.ProbabilityOfImprovement
	case config.AcquisitionEI:
		return hotune.ExpectedImprovement
	case config.AcquisitionThompson:
		return hotune.ThompsonSampling
	default:
		return hotune.UCB
	}
}

func optimizationConfig(s config.Settings, logger zerolog.Logger) hotune.OptimizationConfig {
	cfg := hotune.DefaultConfig()

	cfg.Trials = s.Trials
	cfg.InitialSamples = s.InitialSamples
	cfg.NumCandidates = s.Candidates
	cfg.Direction = hotune.Minimize
	cfg.Sampler = hotune.Sampler(s.Sampler)
	cfg.AcquisitionFunc = acquisition(s.Acquisition)
	cfg.LengthScale = s.LengthScale
	cfg.Seed = s.Seed
	cfg.ContinueOnError = s.ContinueOnError
	cfg.Logger = logger

	return cfg
}

// trackProgress advances a bar for every finished trial until updates is
// closed.
func trackProgress(updates <-chan hotune.ProgressUpdate, total int) chan struct{} {
	done := make(chan struct{})
	bar := pb.StartNew(total)

	go func() {
		defer close(done)
		defer bar.Finish()

		for range updates {
			bar.Increment()
		}
	}()

	return done
}

// report prints the best configuration and its mean accuracy. The objective
// is negated accuracy, so the sign flips back here.
func report(w io.Writer, result *hotune.Result) {
	best := result.BestParams()

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "Completed trials: %d (failed: %d)\n", len(result.Completed()), result.Failed())
	fmt.Fprintln(w, "Best configuration:")

	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, best[k])
	}

	fmt.Fprintf(w, "Mean accuracy: %.4f\n", -result.BestValue())
}
