package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/svglive/internal/clip"
	"go.klb.dev/svglive/internal/convert"
	"go.klb.dev/svglive/internal/daemon"
	"go.klb.dev/svglive/internal/imaging"
	"go.klb.dev/svglive/internal/logging"
	"go.klb.dev/svglive/internal/render"
	"go.klb.dev/svglive/internal/save"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and SVGLIVE_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → SVGLIVE_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("svglive")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/svglive/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "svglive"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("SVGLIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
	cmd.Flags().String("log-file", "", "also write JSON logs to this file, rotated by size")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// setupLogging reads logging flags from viper and configures slog. The
// closer releases the log file, if any.
func setupLogging(v *viper.Viper) (*slog.Logger, io.Closer) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	return resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"), v.GetString("log-file"))
}

// addRenderFlags adds the flags that shape a single conversion. They are
// shared by run and convert.
func addRenderFlags(cmd *cobra.Command) {
	d := convert.DefaultSettings()
	f := cmd.Flags()
	f.Int("dpi", d.DPI, "render resolution in dots per inch (96 = 1:1)")
	f.String("background", d.Background.Hex(), "background colour #RRGGBB")
	f.Duration("timeout", d.Timeout, "per-render timeout")
	f.Int("max-svg-chars", d.MaxSVGChars, "ignore clipboard text longer than this (0 = unlimited)")
	f.Int("max-dim", d.MaxDimension, "clamp the longer output side to this many pixels (0 = unbounded)")
	f.Int("max-bytes", d.MaxBytes, "shrink the PNG until it fits this many bytes (0 = no budget)")
	f.Bool("trim-border", d.TrimBorder, "crop borders matching the background colour")
	f.Int("trim-tolerance", d.TrimTolerance, "per-channel tolerance for --trim-border (0-255)")
	f.Bool("cache", d.CacheEnabled, "memoize recent conversions")
	f.Int("cache-size", d.CacheSize, "number of conversions to memoize")
	f.String("renderer", "resvg", "rasterizer: resvg|builtin")
	f.String("resvg-path", "", "path to the resvg executable (default: "+render.EnvResvgPath+", then PATH)")
}

// settingsFromViper builds and validates a settings snapshot.
func settingsFromViper(v *viper.Viper) (convert.Settings, error) {
	bg, err := imaging.ParseHex(v.GetString("background"))
	if err != nil {
		return convert.Settings{}, fmt.Errorf("background: %w", err)
	}
	s := convert.Settings{
		DPI:           v.GetInt("dpi"),
		Background:    bg,
		Debounce:      v.GetDuration("debounce"),
		Timeout:       v.GetDuration("timeout"),
		MaxSVGChars:   v.GetInt("max-svg-chars"),
		MaxDimension:  v.GetInt("max-dim"),
		MaxBytes:      v.GetInt("max-bytes"),
		TrimBorder:    v.GetBool("trim-border"),
		TrimTolerance: v.GetInt("trim-tolerance"),
		CacheEnabled:  v.GetBool("cache"),
		CacheSize:     v.GetInt("cache-size"),
	}
	return s.Validate()
}

// daemonConfig builds everything a reload may change.
func daemonConfig(v *viper.Viper) (daemon.Config, error) {
	s, err := settingsFromViper(v)
	if err != nil {
		return daemon.Config{}, err
	}
	return daemon.Config{
		Settings: s,
		Save:     save.Config{Enabled: v.GetBool("save"), Dir: v.GetString("save-dir")},
		Suppress: v.GetDuration("suppress"),
	}, nil
}

func clipOptions(v *viper.Viper, log *slog.Logger) clip.Options {
	return clip.Options{DIBMaxBytes: v.GetInt("dib-max-bytes"), Log: log}
}

// resolveRenderer returns the configured renderer and, for resvg, its path.
// A resvg that cannot be found yields render.Missing so the daemon keeps
// running and reports the problem on every conversion.
func resolveRenderer(v *viper.Viper, log *slog.Logger) (render.Renderer, string, error) {
	switch name := v.GetString("renderer"); name {
	case "builtin":
		return render.Builtin{}, "", nil
	case "resvg", "":
		path, err := render.Locate(v.GetString("resvg-path"))
		if err != nil {
			log.Warn("rasterizer unavailable", "err", err)
			return render.Missing{Reason: err}, "", nil
		}
		return render.NewProcess(path, log), path, nil
	default:
		return nil, "", fmt.Errorf("unknown renderer %q (want resvg or builtin)", name)
	}
}
