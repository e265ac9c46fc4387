// Package config loads search settings from a YAML file, a .env file and
// HOTUNE_* environment variables.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Settings is the resolved configuration of one search run.
type Settings struct {
	DataPath    string
	LabelColumn string

	Trials          int
	InitialSamples  int
	Candidates      int
	Folds           int
	Sampler         string
	Acquisition     string
	Seed            int64
	Workers         int
	CacheSize       int
	LengthScale     float64
	ContinueOnError bool

	Space Space

	LogLevel string
}

// Space holds the forest search ranges.
type Space struct {
	Criteria    []string   `yaml:"criteria"`
	NEstimators IntRange   `yaml:"nEstimators"`
	MaxDepth    IntRange   `yaml:"maxDepth"`
	MaxFeatures FloatRange `yaml:"maxFeatures"`
}

// IntRange is an inclusive integer search range.
type IntRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// FloatRange is a real-valued search range.
type FloatRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// ConfigFile mirrors the YAML layout. Zero values keep the defaults.
type ConfigFile struct {
	Data struct {
		Path  string `yaml:"path"`
		Label string `yaml:"label"`
	} `yaml:"data"`

	Search struct {
		Trials          int     `yaml:"trials"`
		InitialSamples  int     `yaml:"initialSamples"`
		Candidates      int     `yaml:"candidates"`
		Folds           int     `yaml:"folds"`
		Sampler         string  `yaml:"sampler"`
		Acquisition     string  `yaml:"acquisition"`
		Seed            int64   `yaml:"seed"`
		Workers         int     `yaml:"workers"`
		CacheSize       int     `yaml:"cacheSize"`
		LengthScale     float64 `yaml:"lengthScale"`
		ContinueOnError bool    `yaml:"continueOnError"`
	} `yaml:"search"`

	Space *Space `yaml:"space"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Acquisition function names accepted in Settings.Acquisition.
const (
	AcquisitionUCB      = "ucb"
	AcquisitionPI       = "pi"
	AcquisitionEI       = "ei"
	AcquisitionThompson = "thompson"
)

// Defaults reproduce the classic run: train.csv, label price_range, 15
// trials scored by 5-fold stratified accuracy.
func Defaults() Settings {
	return Settings{
		DataPath:       "train.csv",
		LabelColumn:    "price_range",
		Trials:         15,
		InitialSamples: 5,
		Candidates:     100,
		Folds:          5,
		Sampler:        "gp",
		Acquisition:    AcquisitionUCB,
		CacheSize:      128,
		Space: Space{
			Criteria:    []string{"gini", "entropy"},
			NEstimators: IntRange{Min: 100, Max: 1500},
			MaxDepth:    IntRange{Min: 3, Max: 15},
			MaxFeatures: FloatRange{Min: 0.01, Max: 1.0},
		},
		LogLevel: "info",
	}
}

// Load resolves settings. Precedence, lowest first: defaults, the YAML file
// at path (or HOTUNE_CONFIG when path is empty), .env, the environment.
func Load(path string) (Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Settings{}, err
	}

	settings := Defaults()

	if path == "" {
		path = os.Getenv("HOTUNE_CONFIG")
	}

	if path != "" {
		if err := mergeYAML(&settings, path); err != nil {
			return Settings{}, err
		}
	}

	if err := mergeEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := Validate(&settings); err != nil {
		return Settings{}, errors.Wrap(err, "configuration validation failed")
	}

	return settings, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	return errors.Wrapf(godotenv.Load(path), "failed to load %s", path)
}

func mergeYAML(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}

	setString(&s.DataPath, file.Data.Path)
	setString(&s.LabelColumn, file.Data.Label)
	setInt(&s.Trials, file.Search.Trials)
	setInt(&s.InitialSamples, file.Search.InitialSamples)
	setInt(&s.Candidates, file.Search.Candidates)
	setInt(&s.Folds, file.Search.Folds)
	setString(&s.Sampler, file.Search.Sampler)
	setString(&s.Acquisition, file.Search.Acquisition)
	setInt(&s.Workers, file.Search.Workers)
	setInt(&s.CacheSize, file.Search.CacheSize)

	if file.Search.LengthScale != 0 {
		s.LengthScale = file.Search.LengthScale
	}
	setString(&s.LogLevel, file.Log.Level)

	if file.Search.Seed != 0 {
		s.Seed = file.Search.Seed
	}

	if file.Search.ContinueOnError {
		s.ContinueOnError = true
	}

	if file.Space != nil {
		if len(file.Space.Criteria) > 0 {
			s.Space.Criteria = file.Space.Criteria
		}

		if file.Space.NEstimators != (IntRange{}) {
			s.Space.NEstimators = file.Space.NEstimators
		}

		if file.Space.MaxDepth != (IntRange{}) {
			s.Space.MaxDepth = file.Space.MaxDepth
		}

		if file.Space.MaxFeatures != (FloatRange{}) {
			s.Space.MaxFeatures = file.Space.MaxFeatures
		}
	}

	return nil
}

func mergeEnv(s *Settings) error {
	s.DataPath = getEnvOrDefault("HOTUNE_DATA", s.DataPath)
	s.LabelColumn = getEnvOrDefault("HOTUNE_LABEL", s.LabelColumn)
	s.Sampler = getEnvOrDefault("HOTUNE_SAMPLER", s.Sampler)
	s.Acquisition = getEnvOrDefault("HOTUNE_ACQUISITION", s.Acquisition)
	s.LogLevel = getEnvOrDefault("HOTUNE_LOG_LEVEL", s.LogLevel)

	var err error

	if s.Trials, err = getIntFromEnv("HOTUNE_TRIALS", s.Trials); err != nil {
		return err
	}

	if s.Folds, err = getIntFromEnv("HOTUNE_FOLDS", s.Folds); err != nil {
		return err
	}

	if s.Workers, err = getIntFromEnv("HOTUNE_WORKERS", s.Workers); err != nil {
		return err
	}

	if v := os.Getenv("HOTUNE_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid HOTUNE_SEED %q", v)
		}

		s.Seed = seed
	}

	if v := os.Getenv("HOTUNE_CONTINUE_ON_ERROR"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid HOTUNE_CONTINUE_ON_ERROR %q", v)
		}

		s.ContinueOnError = b
	}

	return nil
}

// Validate normalizes names to lower case and rejects settings the search
// cannot run with.
func Validate(s *Settings) error {
	s.Sampler = strings.ToLower(s.Sampler)
	s.Acquisition = strings.ToLower(s.Acquisition)

	if s.DataPath == "" {
		return errors.New("data path is required")
	}

	if s.LabelColumn == "" {
		return errors.New("label column is required")
	}

	if s.Trials < 1 {
		return errors.Errorf("trials must be positive, got %d", s.Trials)
	}

	if s.InitialSamples < 1 {
		return errors.Errorf("initial samples must be positive, got %d", s.InitialSamples)
	}

	if s.Candidates < 1 {
		return errors.Errorf("candidates must be positive, got %d", s.Candidates)
	}

	if s.Folds < 2 {
		return errors.Errorf("folds must be at least 2, got %d", s.Folds)
	}

	if s.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", s.Workers)
	}

	if s.CacheSize < 0 {
		return errors.Errorf("cache size must not be negative, got %d", s.CacheSize)
	}

	if s.LengthScale < 0 {
		return errors.Errorf("length scale must not be negative, got %v", s.LengthScale)
	}

	switch s.Sampler {
	case "gp", "tpe":
	default:
		return errors.Errorf("unknown sampler %q (want gp or tpe)", s.Sampler)
	}

	switch s.Acquisition {
	case AcquisitionUCB, AcquisitionPI, AcquisitionEI, AcquisitionThompson:
	default:
		return errors.Errorf("unknown acquisition %q (want ucb, pi, ei or thompson)", s.Acquisition)
	}

	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level %q", s.LogLevel)
	}

	return validateSpace(s.Space)
}

func validateSpace(sp Space) error {
	if len(sp.Criteria) == 0 {
		return errors.New("at least one criterion is required")
	}

	for _, c := range sp.Criteria {
		if c != "gini" && c != "entropy" {
			return errors.Errorf("unknown criterion %q", c)
		}
	}

	if sp.NEstimators.Min < 1 || sp.NEstimators.Min > sp.NEstimators.Max {
		return errors.Errorf("invalid n_estimators range [%d, %d]", sp.NEstimators.Min, sp.NEstimators.Max)
	}

	if sp.MaxDepth.Min < 1 || sp.MaxDepth.Min > sp.MaxDepth.Max {
		return errors.Errorf("invalid max_depth range [%d, %d]", sp.MaxDepth.Min, sp.MaxDepth.Max)
	}

	if sp.MaxFeatures.Min <= 0 || sp.MaxFeatures.Max > 1 || sp.MaxFeatures.Min > sp.MaxFeatures.Max {
		return errors.Errorf("invalid max_features range [%v, %v]", sp.MaxFeatures.Min, sp.MaxFeatures.Max)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getIntFromEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}

	return n, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
