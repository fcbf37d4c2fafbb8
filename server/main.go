package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zhaobenny/ccsessions/internal/config"
	"github.com/zhaobenny/ccsessions/internal/engine"
	"github.com/zhaobenny/ccsessions/server/internal/handlers"
	"github.com/zhaobenny/ccsessions/server/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("ccsessions-server: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	logger, err := config.NewLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Load configuration from environment
	port := config.GetEnv("PORT", "8080")
	rps, err := strconv.ParseFloat(config.GetEnv("RATE_LIMIT_RPS", "10"), 64)
	if err != nil {
		return errors.New("RATE_LIMIT_RPS must be a number")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	e, err := engine.New(engine.Options{
		ProjectsPath: cfg.ProjectsPath,
		Workers:      cfg.Workers,
		Pricing:      cfg.PriceTable(),
		Location:     loc,
		TopProjects:  cfg.TopProjects,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	h := handlers.New(e, cfg, logger.Named("http"))
	limiter := middleware.NewIPRateLimiter(rate.Limit(rps), int(rps)*2+1)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handlers.NewRouter(h, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting ccsessions-server",
			zap.String("addr", srv.Addr),
			zap.String("projects_path", cfg.ProjectsPath),
			zap.String("timezone", loc.String()),
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
