package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mixlingo/internal/transcriber"
)

type transcribeOutput struct {
	TranscribedText string `json:"transcribedText"`
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var remote bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe an audio file",
		Long: "Transcribe an audio file with the configured speech-to-text capability.\n" +
			"With --remote the file is uploaded to a running server instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect audio file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}
			if info.Size() == 0 {
				return fmt.Errorf("audio file %s is empty", path)
			}
			if limit := cfg.MaxUploadBytes(); limit > 0 && info.Size() > limit {
				return fmt.Errorf("audio file %s exceeds the %d MiB upload limit", path, cfg.Server.MaxUploadMB)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read audio file: %w", err)
			}
			filename := filepath.Base(path)

			var text string
			if remote {
				api, err := ctx.api()
				if err != nil {
					return err
				}
				text, err = api.Transcribe(cmd.Context(), filename, data)
				if err != nil {
					return fmt.Errorf("transcribe: %w", err)
				}
			} else {
				pipeline, err := ctx.pipeline(cmd)
				if err != nil {
					return err
				}
				text, err = pipeline.Transcriber.Transcribe(cmd.Context(), transcriber.AudioClip{Data: data, Filename: filename})
				if err != nil {
					return fmt.Errorf("transcribe: %w", err)
				}
			}

			if jsonOutput {
				return writeJSON(cmd, transcribeOutput{TranscribedText: text})
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Upload to a running server instead of transcribing locally")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
