package hotune

import (
	"context"
	"fmt"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/rs/zerolog"
)

const tpeStudyName = "hotune"

// optimizeTPE runs the search through a goptuna study using the TPE
// sampler seeded from config.Seed. The study always minimizes; Maximize runs
// see negated values.
//
// goptuna owns trial scheduling, so cancellation and abort are applied by
// short-circuiting the remaining objective calls.
func optimizeTPE(
	ctx context.Context,
	config OptimizationConfig,
	space SearchSpace,
	objective ObjectiveFunc,
	rec *recorder,
) error {
	study, err := goptuna.CreateStudy(
		tpeStudyName,
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(config.Seed))),
		goptuna.StudyOptionLogger(&goptunaLogger{logger: config.Logger}),
		// Without it the study returns on the first failed trial.
		goptuna.StudyOptionIgnoreError(config.ContinueOnError),
	)
	if err != nil {
		return fmt.Errorf("create study: %w", err)
	}

	// stop is the first error that must end the run.
	var stop error

	studyObjective := func(trial goptuna.Trial) (float64, error) {
		if stop != nil {
			return 0, stop
		}

		if err := ctx.Err(); err != nil {
			stop = err

			return 0, err
		}

		params, err := suggest(trial, space)
		if err != nil {
			stop = err

			return 0, err
		}

		value, duration, objErr := measure(ctx, objective, params)

		recorded, err := rec.record("TPE", params, value, duration, objErr)
		if err != nil {
			stop = err

			return 0, err
		}

		if recorded.State == TrialFailed {
			return 0, recorded.Err
		}

		return internalValue(value, config.Direction), nil
	}

	optErr := study.Optimize(studyObjective, config.Trials)

	if stop != nil {
		return stop
	}

	if optErr != nil {
		return fmt.Errorf("optimize study: %w", optErr)
	}

	return nil
}

// suggest asks the goptuna trial for one value per dimension.
func suggest(trial goptuna.Trial, space SearchSpace) (Params, error) {
	params := make(Params, len(space))

	for _, d := range space {
		switch d.Kind {
		case Int:
			v, err := trial.SuggestInt(d.Name, int(d.Min), int(d.Max))
			if err != nil {
				return nil, fmt.Errorf("suggest %q: %w", d.Name, err)
			}

			params[d.Name] = v
		case Float:
			v, err := trial.SuggestUniform(d.Name, d.Min, d.Max)
			if err != nil {
				return nil, fmt.Errorf("suggest %q: %w", d.Name, err)
			}

			params[d.Name] = v
		case Categorical:
			v, err := trial.SuggestCategorical(d.Name, d.Choices)
			if err != nil {
				return nil, fmt.Errorf("suggest %q: %w", d.Name, err)
			}

			params[d.Name] = v
		}
	}

	return params, nil
}

// goptunaLogger routes goptuna's study logs into zerolog at debug level;
// trial outcomes are already logged by the recorder.
type goptunaLogger struct {
	logger zerolog.Logger
}

func (l *goptunaLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}

func (l *goptunaLogger) Info(msg string, fields ...interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}

func (l *goptunaLogger) Warn(msg string, fields ...interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}

func (l *goptunaLogger) Error(msg string, fields ...interface{}) {
	l.logger.Debug().Fields(fields).Msg(msg)
}
