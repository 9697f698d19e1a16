package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trast/internal/config"
	"trast/internal/engine"
	"trast/internal/health"
	"trast/internal/httpapi"
	"trast/internal/model"
)

func buildServeCmd() *cobra.Command {
	var (
		cfgPath  string
		addr     string
		mdlPath  string
		device   string
		parallel bool
		slots    int
		backlog  int
		logLevel string
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Load the model and serve predictions over HTTP",
		Example: "  trast serve --model ~/models/identity.trsm\n  trast serve --config /etc/trast/trast.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cfgPath)
			if err != nil {
				return err
			}
			// CLI flags override the file; environment fills the gaps.
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("model") {
				cfg.ModelPath = mdlPath
			}
			if cmd.Flags().Changed("device") {
				cfg.Device = device
			}
			if cmd.Flags().Changed("parallel") {
				cfg.Parallel = parallel
			}
			if cmd.Flags().Changed("slots") {
				cfg.Slots = slots
			}
			if cmd.Flags().Changed("backlog") {
				cfg.Backlog = backlog
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (.yaml/.json/.toml), defaults TRAST_CONFIG")
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "HTTP listen address, e.g. :8000")
	cmd.Flags().StringVar(&mdlPath, "model", "", "Path to the model artifact (.trsm)")
	cmd.Flags().StringVar(&device, "device", "cpu", "Compute device")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Allow concurrent inference on the backend")
	cmd.Flags().IntVar(&slots, "slots", config.DefaultSlots, "Concurrent execution slots")
	cmd.Flags().IntVar(&backlog, "backlog", config.DefaultBacklog, "Bounded queue capacity beyond the slots")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error|off")
	return cmd
}

// resolveConfig loads the config file when one is given via flag or
// TRAST_CONFIG; otherwise serve runs on flags alone.
func resolveConfig(path string) (config.Config, error) {
	if path == "" {
		path = os.Getenv("TRAST_CONFIG")
	}
	if path == "" {
		return config.Config{}, nil
	}
	return config.Load(path)
}

func newLogger(level string) zerolog.Logger {
	if level == "off" {
		return zerolog.Nop()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func runServe(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)

	rep := health.New(health.LogPublisher{Log: log})

	hdl, err := model.Load(cfg.ModelPath, model.DeviceConfig{Device: cfg.Device, Parallel: cfg.Parallel})
	if err != nil {
		rep.LoadFailed(err)
		log.Error().Err(err).Str("path", cfg.ModelPath).Msg("model load failed")
		return fmt.Errorf("load model: %w", err)
	}
	defer hdl.Close()

	eng := engine.New(engine.Config{
		Model:           hdl,
		Reporter:        rep,
		Slots:           cfg.Slots,
		Backlog:         cfg.Backlog,
		DefaultDeadline: cfg.DefaultDeadline(),
	})
	rep.ModelLoaded()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	// Flip Ready/Degraded on sustained backlog saturation.
	go rep.WatchOverload(baseCtx, eng.Saturated, cfg.OverloadWindow(), 100*time.Millisecond)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(eng)}
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("model", hdl.ID()).
			Str("device", hdl.Device()).
			Bool("parallel_safe", hdl.ParallelSafe()).
			Msg("trast listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// systemd readiness; a no-op outside a notify socket.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Stop admitting work and drain in-flight jobs, then close the listener.
	if err := eng.Shutdown(cfg.DrainTimeout()); err != nil {
		log.Warn().Err(err).Msg("drain incomplete")
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout()+time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown error")
	}
	return nil
}
