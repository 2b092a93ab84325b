package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cepro/gridrl/checkpoint"
	"github.com/cepro/gridrl/config"
	"github.com/cepro/gridrl/controller"
	dataplatform "github.com/cepro/gridrl/data_platform"
	"github.com/cepro/gridrl/feed"
	"github.com/cepro/gridrl/metrics"
	"github.com/cepro/gridrl/microgrid"
	"github.com/cepro/gridrl/plotting"
	"github.com/cepro/gridrl/ppo"
	"github.com/cepro/gridrl/repository"
	"github.com/cepro/gridrl/supabase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {

	configFilePath := flag.String("config", "./config.yaml", "Path to the YAML configuration file")
	feedFilePath := flag.String("feed", "", "Path to the feed CSV, overrides the path in the configuration file")
	resumeFilePath := flag.String("resume", "", "Path to a checkpoint to resume training from")
	flag.Parse()

	config, err := config.Read(*configFilePath)
	if err != nil {
		slog.Error("Failed to read config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(config.Logging.Level)}))
	slog.SetDefault(logger)

	slog.Info("Starting trainer...")

	if *feedFilePath != "" {
		config.Feed.Path = *feedFilePath
	}
	siteFeed, err := feed.ReadCSV(config.Feed.Path, config.Feed.Start, config.Feed.Step)
	if err != nil {
		slog.Error("Failed to read feed", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded feed", "path", config.Feed.Path, "samples", siteFeed.Len(), "start", siteFeed.Start(), "step", siteFeed.Step())

	newEnv := func() (ppo.Environment, error) {
		env, err := microgrid.New(config.Environment, siteFeed)
		if err != nil {
			return nil, err
		}
		return env, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	repository, err := repository.New(config.Diagnostics.DatabasePath)
	if err != nil {
		slog.Error("Failed to create repository", "error", err)
		os.Exit(1)
	}

	var uploader dataplatform.Uploader
	uploadInterval := time.Minute
	if config.Diagnostics.Supabase != nil {
		supabaseClient, err := supabase.New(
			config.Diagnostics.Supabase.Url,
			os.Getenv("GRIDRL_SUPABASE_KEY"),
			os.Getenv("GRIDRL_SUPABASE_USER_KEY"),
			config.Diagnostics.Supabase.Schema,
		)
		if err != nil {
			slog.Error("Failed to create supabase client", "error", err)
			os.Exit(1)
		}
		uploader = supabaseClient
		uploadInterval = time.Duration(config.Diagnostics.Supabase.UploadIntervalSecs) * time.Second
	}
	dataPlatform := dataplatform.New(repository, uploader, uploadInterval)
	dataPlatformDone := make(chan struct{})
	go func() {
		dataPlatform.Run(ctx)
		close(dataPlatformDone)
	}()

	registry := prometheus.NewRegistry()
	trainingMetrics := metrics.New(registry)
	if config.Diagnostics.MetricsAddr != "" {
		go serveMetrics(config.Diagnostics.MetricsAddr, registry)
	}

	history := &plotting.History{}
	options := []ppo.Option{
		ppo.WithEpisodeSink(dataPlatform.Episodes),
		ppo.WithUpdateSink(dataPlatform.Updates),
		ppo.WithObserver(trainingMetrics),
		ppo.WithObserver(history),
	}
	if *resumeFilePath != "" {
		c, err := checkpoint.Load(*resumeFilePath)
		if err != nil {
			slog.Error("Failed to load checkpoint", "path", *resumeFilePath, "error", err)
			os.Exit(1)
		}
		options = append(options, ppo.WithCheckpoint(c))
	}

	trainer, err := ppo.New(config.Training, newEnv, options...)
	if err != nil {
		slog.Error("Failed to create trainer", "error", err)
		os.Exit(1)
	}

	// a ctrl-c interrupt stops training once the current update cycle is complete
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	trainCtx, stopTraining := context.WithCancel(ctx)
	go func() {
		select {
		case <-signalChan:
			slog.Info("Interrupted, stopping after the current update cycle")
			stopTraining()
		case <-trainCtx.Done():
		}
	}()

	trainErr := trainer.Train(trainCtx)
	stopTraining()
	if trainErr != nil {
		slog.Error("Training failed", "error", trainErr)
	} else if err := evaluate(config, siteFeed, trainer, newEnv, history); err != nil {
		slog.Error("Failed to evaluate policy", "error", err)
	}

	// cancel the data platform, which stores any queued records before returning
	cancel()
	<-dataPlatformDone

	if trainErr != nil {
		os.Exit(1)
	}
	slog.Info("Exiting")
}

// evaluate runs the trained policy deterministically and draws the learning curve and one evaluation episode. When
// a baseline is configured it faces the same episodes and the two are compared.
func evaluate(cfg config.Config, siteFeed feed.Feed, trainer *ppo.Trainer, newEnv ppo.EnvFactory, history *plotting.History) error {
	diagnostics := cfg.Diagnostics
	if diagnostics.PlotDir != "" {
		err := plotting.LearningCurve(filepath.Join(diagnostics.PlotDir, "learning_curve.png"), history.Updates())
		if err != nil && !errors.Is(err, plotting.ErrNothingToPlot) {
			return fmt.Errorf("plot learning curve: %w", err)
		}
	}

	if diagnostics.EvaluationEpisodes == 0 {
		return nil
	}
	env, err := newEnv()
	if err != nil {
		return fmt.Errorf("create evaluation environment: %w", err)
	}
	seed := int64(trainer.State().Iteration)
	evaluation, err := trainer.Evaluate(env, diagnostics.EvaluationEpisodes, seed)
	if err != nil {
		return err
	}

	if diagnostics.PlotDir != "" {
		err = plotting.EpisodeTrace(filepath.Join(diagnostics.PlotDir, "evaluation_episode.png"), evaluation.Trace)
		if err != nil {
			return fmt.Errorf("plot evaluation episode: %w", err)
		}
	}

	if diagnostics.Baseline == nil {
		return nil
	}
	baseline, err := controller.New(*diagnostics.Baseline, cfg.Environment.Safety)
	if err != nil {
		return fmt.Errorf("create baseline controller: %w", err)
	}
	baselineEnv, err := microgrid.New(cfg.Environment, siteFeed)
	if err != nil {
		return fmt.Errorf("create baseline environment: %w", err)
	}
	baselineEvaluation, err := baseline.Evaluate(baselineEnv, diagnostics.EvaluationEpisodes, seed)
	if err != nil {
		return err
	}
	slog.Info("Compared policy with baseline", "policy_mean_reward", evaluation.MeanReward, "baseline_mean_reward", baselineEvaluation.MeanReward, "improvement", evaluation.MeanReward-baselineEvaluation.MeanReward)
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	slog.Info("Serving metrics", "addr", addr)
	err := http.ListenAndServe(addr, mux)
	if err != nil {
		slog.Error("Metrics server stopped", "error", err)
	}
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
