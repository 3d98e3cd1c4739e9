// labserver is the anatomy lab backend: it stores uploaded 3D models,
// their labels and quiz questions, serves the REST API and embed pages,
// and pushes live annotation updates to connected viewers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openanatomy/lab/internal/config"
	"github.com/openanatomy/lab/internal/database"
	"github.com/openanatomy/lab/internal/handlers"
	"github.com/openanatomy/lab/internal/live"
	"github.com/openanatomy/lab/internal/logging"
	"github.com/openanatomy/lab/internal/metrics"
	"github.com/openanatomy/lab/internal/store"
)

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.ConfigName+".json")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, "labserver:", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	if err := config.Load(configDir); err != nil {
		return err
	}
	log := logging.New(logging.OptionsFromConfig())

	if err := os.MkdirAll(config.GetString("server.assetsDir"), 0o755); err != nil {
		return fmt.Errorf("creating assets dir: %w", err)
	}

	db := database.NewManager(log)
	if err := db.Connect(); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()
	if err := db.Setup(); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	recorder := metrics.NewInfluxRecorder(log)
	defer func() {
		if c, ok := recorder.(*metrics.InfluxRecorder); ok {
			c.Close()
		}
	}()

	inst, err := metrics.NewHTTPInstrumentation()
	if err != nil {
		log.Warn().Err(err).Msg("HTTP instrumentation disabled")
		inst = nil
	}

	hub := live.NewHub(log)
	srv := handlers.New(handlers.Config{
		AssetsDir:      config.GetString("server.assetsDir"),
		MaxUploadBytes: int64(config.GetInt("server.maxUploadMB")) << 20,
		AuthEnabled:    config.GetBool("auth.enabled"),
		Users:          config.GetStringMapString("auth.users"),
	}, store.New(db.DB, log), hub, recorder, log)

	addr := net.JoinHostPort(config.GetString("server.host"), config.GetString("server.port"))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(inst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
