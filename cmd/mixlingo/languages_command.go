package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mixlingo/internal/language"
	"mixlingo/internal/server"
)

func newLanguagesCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "languages",
		Short:       "List the languages offered for hints and translation targets",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			options := language.Supported()
			if jsonOutput {
				return writeJSON(cmd, server.LanguagesResponse{
					Languages:     options,
					DefaultInput:  language.Auto,
					DefaultOutput: language.DefaultTarget,
				})
			}
			rows := make([][]string, 0, len(options))
			for _, opt := range options {
				rows = append(rows, []string{opt.Code, opt.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Code", "Language"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
