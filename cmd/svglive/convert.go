package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/svglive/internal/convert"
	"go.klb.dev/svglive/internal/save"
	"go.klb.dev/svglive/internal/svg"
)

func newConvertCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "convert [FILE|-]",
		Short: "Render an SVG file to PNG without touching the clipboard",
		Long: `Runs the same pipeline as the daemon on a file or stdin.

The PNG is written to --output. Without --output, FILE.svg becomes FILE.png
next to the input and stdin input is written to stdout.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runConvert(cmd, v, args) },
	}

	cmd.Flags().StringP("output", "o", "", "output PNG path (- = stdout)")
	addRenderFlags(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runConvert(cmd *cobra.Command, v *viper.Viper, args []string) error {
	log, closer := setupLogging(v)
	defer closer.Close()

	in := "-"
	if len(args) == 1 {
		in = args[0]
	}
	text, err := readInput(cmd.InOrStdin(), in)
	if err != nil {
		return err
	}

	s, err := settingsFromViper(v)
	if err != nil {
		return err
	}
	markup, ok := svg.Normalize(text, s.MaxSVGChars)
	if !ok {
		return errors.New("no SVG markup found in input")
	}

	r, _, err := resolveRenderer(v, log)
	if err != nil {
		return err
	}
	// One-shot: nothing to memoize.
	s.CacheEnabled = false
	pipeline, err := convert.New(r, s, log)
	if err != nil {
		return err
	}
	res, err := pipeline.Convert(cmd.Context(), markup)
	if err != nil {
		return err
	}

	out := outputPath(in, v.GetString("output"))
	if out == "-" {
		_, err = cmd.OutOrStdout().Write(res.PNG)
		return err
	}
	if err := save.WriteAtomic(out, res.PNG); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	log.Info("converted",
		"output", out,
		"width", res.Width, "height", res.Height,
		"bytes", len(res.PNG), "attempts", res.Attempts,
		"took", res.Duration)
	return nil
}

func readInput(stdin io.Reader, in string) (string, error) {
	var (
		b   []byte
		err error
	)
	if in == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(in)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", in, err)
	}
	return string(b), nil
}

// outputPath picks the destination: an explicit flag wins, then FILE.png
// beside the input, then stdout.
func outputPath(in, flag string) string {
	if flag != "" {
		return flag
	}
	if in == "-" {
		return "-"
	}
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".png"
}
