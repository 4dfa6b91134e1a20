// svglive: turns SVG markup copied to the clipboard into a PNG image.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/svglive/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "svglive",
		Short: "Replace SVG on the clipboard with a PNG",
		Long: `svglive watches the system clipboard for SVG markup, renders it to PNG
at the configured DPI and puts the image back on the clipboard so the next
paste produces a bitmap.

Run "svglive run" to start the daemon. Use "svglive status/listen/stop" to
inspect or control a running daemon, and "svglive convert" for one-off files.

Config file search order (first found wins):
  /etc/svglive/svglive.toml
  $HOME/.config/svglive/svglive.toml
  path supplied via --config

All flags can be set via SVGLIVE_<FLAG> env vars or config-file keys.
See "svglive run --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newConvertCmd(),
		newStatusCmd(),
		newListenCmd(),
		newStopCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "svglive %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr, file string) (*slog.Logger, io.Closer) {
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = slog.LevelDebug
		} else {
			level = slog.LevelInfo
		}
	}
	return logging.Setup(logging.Options{
		Format: logging.ParseFormat(formatStr),
		Level:  level,
		File:   file,
	})
}
