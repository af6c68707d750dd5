package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mixlingo/internal/logging"
	"mixlingo/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var level string
	var connection string
	var raw bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the server's JSON log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := strings.TrimSpace(cfg.Logging.Dir)
			if dir == "" {
				return fmt.Errorf("logging.dir is not configured; set it so the server records a log file")
			}
			path := filepath.Join(dir, logging.LogFileName)
			if _, err := os.Stat(path); err != nil && !follow {
				return fmt.Errorf("no log file at %s", path)
			}

			filter := logs.Filter{MinLevel: slog.LevelDebug, ConnectionID: strings.TrimSpace(connection)}
			if level != "" {
				if !logging.ValidLevel(level) {
					return fmt.Errorf("invalid level %q", level)
				}
				filter.MinLevel = logging.ParseLevel(level)
			}
			filtered := level != "" || filter.ConnectionID != ""

			out := cmd.OutOrStdout()
			show := func(line string) {
				entry, ok := logs.Parse(line)
				if !ok {
					if !filtered {
						fmt.Fprintln(out, line)
					}
					return
				}
				if !filter.Match(entry) {
					return
				}
				if raw {
					fmt.Fprintln(out, line)
					return
				}
				fmt.Fprintln(out, entry.Format())
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				show(line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 250*time.Millisecond, show)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing records to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing records as they are written")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&connection, "connection", "", "Only show records for this relay connection ID (prefix match)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print matching records as raw JSON")
	return cmd
}
