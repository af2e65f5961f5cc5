// Package config loads an experiment description for the hyperopt command.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thalesfsp/hyperopt"
	"github.com/thalesfsp/hyperopt/internal/logger"
	"github.com/thalesfsp/hyperopt/internal/objective"
)

// EnvPrefix prefixes environment overrides, e.g. HYPEROPT_MAX_EVALS or
// HYPEROPT_STORE_DSN.
const EnvPrefix = "HYPEROPT"

// Config is the top-level experiment file, in TOML, YAML or JSON.
type Config struct {
	ExpKey          string            `mapstructure:"exp_key"`
	MaxEvals        int               `mapstructure:"max_evals"`
	MaxQueueLen     int               `mapstructure:"max_queue_len"`
	CatchExceptions bool              `mapstructure:"catch_exceptions"`
	Seed            int64             `mapstructure:"seed"` // 0 seeds from the clock
	Algo            AlgoConfig        `mapstructure:"algo"`
	Store           StoreConfig       `mapstructure:"store"`
	Log             logger.Config     `mapstructure:"log"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
	Dimensions      []DimensionConfig `mapstructure:"dimensions"`
	Objective       ObjectiveConfig   `mapstructure:"objective"`
}

type AlgoConfig struct {
	Name  string      `mapstructure:"name"`  // random or bayes
	Limit int         `mapstructure:"limit"` // total proposals, 0 for no cap
	Bayes BayesConfig `mapstructure:"bayes"`
}

type BayesConfig struct {
	InitialSamples int     `mapstructure:"initial_samples"`
	NumCandidates  int     `mapstructure:"num_candidates"`
	Acquisition    string  `mapstructure:"acquisition"` // ucb, pi, ei, thompson
	Beta           float64 `mapstructure:"beta"`
	Xi             float64 `mapstructure:"xi"`
	KernelWidth    float64 `mapstructure:"kernel_width"`
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn"` // empty keeps trials in memory
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

type DimensionConfig struct {
	Name string  `mapstructure:"name"`
	Type string  `mapstructure:"type"` // float or int
	Min  float64 `mapstructure:"min"`
	Max  float64 `mapstructure:"max"`
}

// ObjectiveConfig names exactly one way to compute the loss.
type ObjectiveConfig struct {
	Expr    string   `mapstructure:"expr"`    // CEL expression over the dimensions
	Command []string `mapstructure:"command"` // program and arguments
}

// Load reads path, if not empty, applies HYPEROPT_* environment overrides
// and defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exp_key", "")
	v.SetDefault("max_evals", 100)
	v.SetDefault("max_queue_len", 1)
	v.SetDefault("catch_exceptions", false)
	v.SetDefault("seed", 0)
	v.SetDefault("algo.name", "random")
	v.SetDefault("algo.limit", 0)
	v.SetDefault("algo.bayes.initial_samples", 10)
	v.SetDefault("algo.bayes.num_candidates", 50)
	v.SetDefault("algo.bayes.acquisition", "ucb")
	v.SetDefault("algo.bayes.beta", 2.0)
	v.SetDefault("algo.bayes.xi", 0.01)
	v.SetDefault("algo.bayes.kernel_width", 1.0)
	v.SetDefault("store.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	if c.MaxEvals < 0 {
		return errors.New("max_evals must not be negative")
	}

	if c.MaxQueueLen < 1 {
		return errors.New("max_queue_len must be at least 1")
	}

	if len(c.Dimensions) == 0 {
		return errors.New("at least one dimension is required")
	}

	seen := make(map[string]struct{}, len(c.Dimensions))
	for i, d := range c.Dimensions {
		if d.Name == "" {
			return fmt.Errorf("dimension %d: name is required", i)
		}

		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("dimension %q: duplicate name", d.Name)
		}

		seen[d.Name] = struct{}{}

		if d.Max < d.Min {
			return fmt.Errorf("dimension %q: max %v below min %v", d.Name, d.Max, d.Min)
		}

		switch strings.ToLower(d.Type) {
		case "", "float", "int":
		default:
			return fmt.Errorf("dimension %q: unknown type %q", d.Name, d.Type)
		}
	}

	switch strings.ToLower(c.Algo.Name) {
	case "random", "bayes":
	default:
		return fmt.Errorf("unknown algo %q", c.Algo.Name)
	}

	if _, err := acquisition(c.Algo.Bayes.Acquisition); err != nil {
		return err
	}

	hasExpr := strings.TrimSpace(c.Objective.Expr) != ""
	hasCmd := len(c.Objective.Command) > 0

	if hasExpr == hasCmd {
		return errors.New("objective needs exactly one of expr or command")
	}

	return nil
}

// Space converts the dimensions into a search space, in file order.
func (c *Config) Space() hyperopt.Space {
	space := make(hyperopt.Space, 0, len(c.Dimensions))
	for _, d := range c.Dimensions {
		space = append(space, hyperopt.Dimension{
			Name:    d.Name,
			Min:     d.Min,
			Max:     d.Max,
			Integer: strings.EqualFold(d.Type, "int"),
		})
	}

	return space
}

// Strategy builds the configured search strategy.
func (c *Config) Strategy() (hyperopt.Algo, error) {
	var algo hyperopt.Algo

	switch strings.ToLower(c.Algo.Name) {
	case "random":
		algo = hyperopt.RandomSearch()
	case "bayes":
		acq, err := acquisition(c.Algo.Bayes.Acquisition)
		if err != nil {
			return nil, err
		}

		bc := hyperopt.DefaultBayesConfig()
		bc.InitialSamples = c.Algo.Bayes.InitialSamples
		bc.NumCandidates = c.Algo.Bayes.NumCandidates
		bc.AcquisitionFunc = acq
		bc.AcqParams.Beta = c.Algo.Bayes.Beta
		bc.AcqParams.Xi = c.Algo.Bayes.Xi
		bc.KernelWidth = c.Algo.Bayes.KernelWidth

		algo = hyperopt.BayesSearch(bc)
	default:
		return nil, fmt.Errorf("unknown algo %q", c.Algo.Name)
	}

	if c.Algo.Limit > 0 {
		algo = hyperopt.Limit(algo, c.Algo.Limit)
	}

	return algo, nil
}

// ObjectiveFunc builds the configured objective.
func (c *Config) ObjectiveFunc() (hyperopt.ObjectiveFunc, error) {
	if len(c.Objective.Command) > 0 {
		return objective.Command(c.Objective.Command[0], c.Objective.Command[1:]...)
	}

	return objective.CEL(c.Objective.Expr, c.Space())
}

// Options maps the run settings onto hyperopt.Options. The store is left
// for the caller to set.
func (c *Config) Options(log *slog.Logger) hyperopt.Options {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	opts := hyperopt.DefaultOptions()
	opts.RandomState = hyperopt.NewRandomState(seed)
	opts.CatchExceptions = c.CatchExceptions
	opts.MaxQueueLen = c.MaxQueueLen
	opts.Logger = log

	return opts
}

func acquisition(name string) (hyperopt.AcquisitionFunc, error) {
	switch strings.ToLower(name) {
	case "", "ucb":
		return hyperopt.UCB, nil
	case "pi":
		return hyperopt.ProbabilityOfImprovement, nil
	case "ei":
		return hyperopt.ExpectedImprovement, nil
	case "thompson":
		return hyperopt.ThompsonSampling, nil
	default:
		return nil, fmt.Errorf("unknown acquisition function %q", name)
	}
}
