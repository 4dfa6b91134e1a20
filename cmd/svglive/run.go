package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/svglive/internal/clip"
	"go.klb.dev/svglive/internal/convert"
	"go.klb.dev/svglive/internal/daemon"
	"go.klb.dev/svglive/internal/ipc"
	"go.klb.dev/svglive/internal/metrics"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the clipboard and replace SVG with PNG",
		Long: `Starts the svglive daemon. Every time SVG markup lands on the clipboard it
is rendered to PNG and the clipboard is replaced with the image.

Only one daemon runs per user: "run" refuses to start when another instance
answers on the control socket. When a config file is in use it is watched and
changes apply to the next conversion.

Config file search order:
  /etc/svglive/svglive.toml
  $HOME/.config/svglive/svglive.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → SVGLIVE_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd.Context(), v) },
	}

	f := cmd.Flags()
	addRenderFlags(cmd)
	f.Duration("debounce", convert.DefaultSettings().Debounce, "wait this long after the last clipboard change before converting")
	f.Bool("listen", true, "start listening immediately (false = wait for \"svglive listen\")")
	f.Bool("save", false, "also save every converted PNG to --save-dir")
	f.String("save-dir", "", "directory for saved PNGs (~ is expanded)")
	f.Duration("suppress", daemon.DefaultSuppress, "ignore clipboard changes for this long after writing an image")
	f.Int("dib-max-bytes", clip.DefaultDIBMaxBytes, "skip the Windows CF_DIBV5 format above this pixel buffer size")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464 (empty = off)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(ctx context.Context, v *viper.Viper) error {
	log, closer := setupLogging(v)
	defer closer.Close()

	if ipc.IsRunning() {
		return fmt.Errorf("svglive is already running (%s)", ipc.SocketPath())
	}

	cfg, err := daemonConfig(v)
	if err != nil {
		return err
	}
	r, rendererPath, err := resolveRenderer(v, log)
	if err != nil {
		return err
	}
	pipeline, err := convert.New(r, cfg.Settings, log)
	if err != nil {
		return err
	}

	backend := clip.New(clipOptions(v, log))
	defer backend.Close()

	d := daemon.New(backend, pipeline, cfg, Version, log)
	d.SetRenderer(r, rendererPath)

	log.Info("svglive starting",
		"version", Version,
		"backend", backend.Name(),
		"renderer", r.Name(),
		"dpi", cfg.Settings.DPI,
		"config", v.ConfigFileUsed(),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if v.ConfigFileUsed() != "" {
		watchConfig(v, d, log)
	}
	if v.GetBool("listen") {
		d.Monitor().Start()
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.Run(gCtx) })

	// Control socket for status/listen/stop.
	ln, err := ipc.Listen()
	if err != nil {
		log.Warn("IPC socket unavailable", "err", err)
	} else {
		log.Info("IPC socket listening", "path", ipc.SocketPath())
		g.Go(func() error { return ipc.Serve(gCtx, ln, d.Handle, log) })
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		serveMetrics(gCtx, g, addr, log)
	}

	if err := g.Wait(); err != nil {
		log.Error("shutdown error", "err", err)
		return err
	}
	log.Info("svglive stopped")
	return nil
}

// watchConfig reloads the config file on change. A bad file is logged and
// the previous configuration stays in force.
func watchConfig(v *viper.Viper, d *daemon.Daemon, log *slog.Logger) {
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config changed", "file", e.Name, "op", e.Op.String())
		cfg, err := daemonConfig(v)
		if err != nil {
			log.Error("config reload rejected", "err", err)
			return
		}
		r, path, err := resolveRenderer(v, log)
		if err != nil {
			log.Error("config reload rejected", "err", err)
			return
		}
		if err := d.Apply(cfg); err != nil {
			log.Error("config reload failed", "err", err)
			return
		}
		d.SetRenderer(r, path)
		log.Info("config applied", "dpi", cfg.Settings.DPI, "renderer", r.Name())
	})
	v.WatchConfig()
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
