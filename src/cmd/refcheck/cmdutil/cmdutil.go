// Package cmdutil holds helpers shared by the refcheck subcommands.
package cmdutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"refcheck/src/internal/config"
	"refcheck/src/internal/gitutil"
	"refcheck/src/internal/logging"
	"refcheck/src/internal/sanitize"
)

// Load reads the configuration named by the persistent --config flag and
// builds a logger at the configured level; --log-level overrides it. An
// unset contact email falls back to git's user.email.
func Load(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path := ""
	if f := cmd.Flag("config"); f != nil {
		path = f.Value.String()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if cfg.ContactEmail == "" {
		cfg.ContactEmail = gitutil.UserEmail()
	}
	if f := cmd.Flag("log-level"); f != nil && f.Changed {
		cfg.LogLevel = f.Value.String()
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// ReadInput returns the text of the file named by args[0], or stdin when
// there is no argument or it is "-".
func ReadInput(cmd *cobra.Command, args []string) (text, source string, err error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), "stdin", nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(b), args[0], nil
}

// RenderTable writes rows under headers as aligned columns.
func RenderTable(cmd *cobra.Command, headers []string, rows [][]string) {
	widths := ComputeColWidths(headers, rows)
	WriteColumns(cmd, headers, widths)
	WriteSeparator(cmd, widths)
	for _, r := range rows {
		WriteColumns(cmd, r, widths)
	}
}

func ComputeColWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i := range headers {
			if i < len(r) {
				if l := len(r[i]); l > widths[i] {
					widths[i] = l
				}
			}
		}
	}
	return widths
}

func WriteSeparator(cmd *cobra.Command, widths []int) {
	cols := make([]string, len(widths))
	for i, w := range widths {
		cols[i] = strings.Repeat("-", w)
	}
	WriteColumns(cmd, cols, widths)
}

func WriteColumns(cmd *cobra.Command, cols []string, widths []int) {
	for i, w := range widths {
		val := ""
		if i < len(cols) {
			val = cols[i]
		}
		if i == len(widths)-1 {
			fmt.Fprint(cmd.OutOrStdout(), val)
			break
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-*s  ", w, val)
	}
	fmt.Fprint(cmd.OutOrStdout(), "\n")
}

// Preview collapses whitespace in s and cuts it to max runes.
func Preview(s string, max int) string {
	s = sanitize.CollapseSpace(s)
	r := []rune(s)
	if max > 0 && len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
