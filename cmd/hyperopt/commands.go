package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/hyperopt"
	"github.com/thalesfsp/hyperopt/internal/config"
	"github.com/thalesfsp/hyperopt/internal/logger"
	"github.com/thalesfsp/hyperopt/pkg/store"
)

// summary is the YAML printed after a run.
type summary struct {
	ExpKey string          `yaml:"exp_key,omitempty"`
	Trials int             `yaml:"trials"`
	Done   int             `yaml:"done"`
	Failed int             `yaml:"failed"`
	Best   *hyperopt.Trial `yaml:"best,omitempty"`
}

func runCommand(cmd *cobra.Command, flags *RunFlags) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}

	if flags.DSN != "" {
		cfg.Store.DSN = flags.DSN
	}
	if flags.ExpKey != "" {
		cfg.ExpKey = flags.ExpKey
	}
	if flags.MaxEvals > 0 {
		cfg.MaxEvals = flags.MaxEvals
	}
	if flags.MetricsAddr != "" {
		cfg.Metrics.Addr = flags.MetricsAddr
	}

	log, closer, err := logger.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		shutdown, err := serveMetrics(cfg.Metrics.Addr, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	return runExperiment(ctx, cfg, cmd.OutOrStdout(), log)
}

// runExperiment minimizes the configured objective and prints a summary.
func runExperiment(ctx context.Context, cfg *config.Config, out io.Writer, log *slog.Logger) error {
	algo, err := cfg.Strategy()
	if err != nil {
		return err
	}

	objective, err := cfg.ObjectiveFunc()
	if err != nil {
		return err
	}

	opts := cfg.Options(log)

	if cfg.Store.DSN != "" {
		if cfg.ExpKey == "" {
			cfg.ExpKey = store.NewExpKey()
		}

		s, err := store.Open(ctx, cfg.Store.DSN, cfg.ExpKey)
		if err != nil {
			return fmt.Errorf("open trial store: %w", err)
		}
		defer s.Close()

		s.SetLogger(log)

		log.Info("trial store opened", "exp_key", cfg.ExpKey, "existing", s.Len())

		opts.Trials = s
	}

	progress := make(chan hyperopt.ProgressUpdate, cfg.MaxQueueLen)
	opts.ProgressChan = progress

	done := make(chan struct{})

	go func() {
		defer close(done)

		for update := range progress {
			log.Debug("trial finished",
				"tid", update.TID,
				"state", update.State,
				"loss", update.Loss,
				"best_loss", update.BestLoss,
				"done", update.Done,
				"total", update.Total,
			)
		}
	}()

	start := time.Now()

	trials, runErr := hyperopt.Minimize(ctx, objective, cfg.Space(), algo, cfg.MaxEvals, opts)

	close(progress)
	<-done

	log.Info("run finished", "trials", trials.Len(), "elapsed", time.Since(start).Round(time.Millisecond))

	if err := printSummary(out, cfg.ExpKey, trials); err != nil {
		return errors.Join(runErr, err)
	}

	return runErr
}

func trialsCommand(cmd *cobra.Command, flags *TrialsFlags) error {
	s, err := store.Open(cmd.Context(), flags.DSN, flags.ExpKey)
	if err != nil {
		return fmt.Errorf("open trial store: %w", err)
	}
	defer s.Close()

	if flags.Best {
		best, ok := hyperopt.BestTrial(s)
		if !ok {
			return errors.New("no completed trial")
		}

		return writeYAML(cmd.OutOrStdout(), best)
	}

	return writeYAML(cmd.OutOrStdout(), s.Trials())
}

// serveMetrics exposes Prometheus metrics on addr until shutdown is called.
func serveMetrics(addr string, log *slog.Logger) (func(), error) {
	if err := hyperopt.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", hyperopt.MetricsHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	log.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(ctx)
	}, nil
}

func printSummary(out io.Writer, expKey string, trials hyperopt.Trials) error {
	sum := summary{
		ExpKey: expKey,
		Trials: trials.Len(),
		Done:   trials.CountByStateSynced(hyperopt.StateDone),
		Failed: trials.CountByStateSynced(hyperopt.StateError),
	}

	if best, ok := hyperopt.BestTrial(trials); ok {
		sum.Best = best
	}

	return writeYAML(out, sum)
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return err
	}

	return enc.Close()
}
