package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/svglive/internal/ipc"
	"go.klb.dev/svglive/internal/message"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running daemon",
		Long: `Asks the running svglive daemon over its control socket for its state,
renderer, settings, and the last conversion.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}

	f := cmd.Flags()
	f.Bool("json", false, "output raw JSON")
	f.Bool("no-color", false, "disable colour output")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	if v.GetBool("no-color") {
		color.NoColor = true
	}

	resp, err := ipc.Request(&message.Message{Type: message.TypeStatus, Source: "cli"})
	if err != nil {
		return err
	}
	if resp.Status == nil {
		return fmt.Errorf("daemon sent %s without status", resp.Type)
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(resp.Status, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(enc))
		return nil
	}
	printStatus(cmd.OutOrStdout(), resp.Status, fmt.Sprintf("ipc (%s)", ipc.SocketPath()))
	return nil
}

func printStatus(out io.Writer, st *message.Status, transport string) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)

	fmt.Fprintf(w, "State:\t%s\n", stateColor(st.State))
	fmt.Fprintf(w, "Version:\t%s (pid %d)\n", st.Version, st.PID)
	fmt.Fprintf(w, "Transport:\t%s\n", transport)
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started:\t%s (%s)\n", st.StartedAt.UTC().Format(time.RFC3339), fmtAge(st.StartedAt))
	}
	fmt.Fprintf(w, "Clipboard:\t%s\n", st.Backend)
	renderer := st.Renderer
	if st.RendererPath != "" {
		renderer += " (" + st.RendererPath + ")"
	}
	if st.Renderer == "missing" {
		renderer = color.RedString(renderer)
	}
	fmt.Fprintf(w, "Renderer:\t%s\n", renderer)
	fmt.Fprintf(w, "Settings:\t%d dpi, background %s, max bytes %s, cache %s\n",
		st.DPI, st.Background, orDash(st.MaxBytes), onOff(st.Cache))
	if st.SaveDir != "" {
		fmt.Fprintf(w, "Saving to:\t%s\n", st.SaveDir)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Converted:\t%d\n", st.Converted)
	fmt.Fprintf(w, "Failed:\t%d\n", st.Failed)
	fmt.Fprintf(w, "Duplicates:\t%d\n", st.Duplicates)
	fmt.Fprintf(w, "Saved:\t%d\n", st.Saved)
	if st.Pending || st.InFlight {
		fmt.Fprintf(w, "Busy:\tpending=%t in_flight=%t\n", st.Pending, st.InFlight)
	}
	if st.LastHash != "" {
		fmt.Fprintf(w, "Last:\t%s %dx%d in %s, %s\n",
			st.LastHash[:min(10, len(st.LastHash))],
			st.LastWidth, st.LastHeight,
			st.LastTook.Round(time.Millisecond), fmtAge(st.LastAt))
	}
	if st.LastError != "" {
		fmt.Fprintf(w, "Last error:\t%s\n", color.RedString(st.LastError))
	}
	_ = w.Flush()
}

func stateColor(state string) string {
	switch state {
	case "listening":
		return color.GreenString(state)
	case "stopped":
		return color.YellowString(state)
	default:
		return state
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orDash(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func fmtAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
