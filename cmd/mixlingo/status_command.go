package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mixlingo/internal/server"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.api()
			if err != nil {
				return err
			}
			base, _ := ctx.baseURL()
			status, err := api.Status(cmd.Context())
			if err != nil {
				if jsonOutput {
					return err
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine("Server", statusError, fmt.Sprintf("unreachable at %s", base), colorize))
				return fmt.Errorf("query status: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(base, status, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func renderStatus(base string, status server.StatusResponse, colorize bool) string {
	var b strings.Builder
	writeLines := func(lines ...string) {
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	writeLines(renderSectionHeader("Server", colorize)...)
	serverKind := statusOK
	if status.Status != "ok" {
		serverKind = statusWarn
	}
	writeLines(
		renderStatusLine("Server", serverKind, fmt.Sprintf("%s (%s)", status.Status, base), colorize),
		renderStatusLine("Uptime", statusInfo, status.Uptime, colorize),
	)
	if status.GRPCAddress != "" {
		writeLines(renderStatusLine("gRPC relay", statusInfo, status.GRPCAddress, colorize))
	}

	writeLines("")
	writeLines(renderSectionHeader("Capabilities", colorize)...)
	writeLines(
		renderStatusLine("Text generation", capabilityKind(status.Capabilities.TextGeneration), capabilityMessage(status.Capabilities.TextGeneration), colorize),
		renderStatusLine("Speech to text", capabilityKind(status.Capabilities.SpeechToText), capabilityMessage(status.Capabilities.SpeechToText), colorize),
	)

	writeLines("")
	writeLines(renderSectionHeader("Relay", colorize)...)
	rows := [][]string{
		{"Open connections", strconv.FormatInt(status.Connections, 10)},
		{"Sessions served", strconv.FormatUint(status.SessionsServed, 10)},
		{"Awaiting mapping", strconv.FormatInt(status.InFlight.AwaitingMap, 10)},
		{"Awaiting translation", strconv.FormatInt(status.InFlight.AwaitingTranslation, 10)},
	}
	writeLines(renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	return b.String()
}
