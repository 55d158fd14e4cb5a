package windowscmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"refcheck/src/cmd/refcheck/cmdutil"
	"refcheck/src/internal/window"
)

const previewLen = 48

// New returns the windows command which prints how a document would be
// split before any extraction call is made.
func New() *cobra.Command {
	var size, overlap int
	var showText bool
	cmd := &cobra.Command{
		Use:   "windows [file]",
		Short: "Show the overlapping windows a document is split into",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("window-size") {
				cfg.WindowSize = size
			}
			if cmd.Flags().Changed("overlap") {
				cfg.Overlap = overlap
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			text, _, err := cmdutil.ReadInput(cmd, args)
			if err != nil {
				return err
			}
			ws := window.Create(text, cfg.WindowSize, cfg.Overlap)
			if len(ws) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no windows (empty input)")
				return nil
			}
			if showText {
				for _, w := range ws {
					fmt.Fprintf(cmd.OutOrStdout(), "=== window %d [%d, %d) ===\n%s\n", w.Index+1, w.Start, w.End, w.Text)
				}
				return nil
			}
			headers := []string{"#", "start", "end", "length", "preview"}
			rows := make([][]string, 0, len(ws))
			for _, w := range ws {
				rows = append(rows, []string{
					strconv.Itoa(w.Index + 1),
					strconv.Itoa(w.Start),
					strconv.Itoa(w.End),
					strconv.Itoa(w.Length),
					cmdutil.Preview(w.Text, previewLen),
				})
			}
			cmdutil.RenderTable(cmd, headers, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "window-size", 0, "Window size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "Overlap between windows in characters")
	cmd.Flags().BoolVar(&showText, "text", false, "Print each window's full text instead of a table")
	return cmd
}
