package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mixlingo/internal/language"
	"mixlingo/internal/mapper"
	"mixlingo/internal/relayclient"
	"mixlingo/internal/tags"
)

var errEmptyText = errors.New("text is empty")

type mapOutput struct {
	mapper.Result
	Segments []tags.Segment `json:"segments"`
}

type translateOutput struct {
	mapper.Result
	TargetLanguage string `json:"targetLanguage"`
	Translation    string `json:"translation"`
}

type detectOutput struct {
	TaggedText        string   `json:"taggedText"`
	DetectedLanguages []string `json:"detectedLanguages"`
}

func newMapCommand(ctx *commandContext) *cobra.Command {
	var hints []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "map <text>",
		Short: "Annotate text with per-segment language tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if !tags.HasContent(text) {
				return errEmptyText
			}
			pipeline, err := ctx.pipeline(cmd)
			if err != nil {
				return err
			}
			mapped, err := pipeline.Mapper.Map(cmd.Context(), text, hints)
			if err != nil {
				return fmt.Errorf("map text: %w", err)
			}
			out := mapOutput{Result: mapper.Annotate(mapped), Segments: tags.Segments(mapped)}
			if jsonOutput {
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.MappedText)
			rows := make([][]string, 0, len(out.Segments))
			for i, segment := range out.Segments {
				tag, name := segment.Tag, "-"
				if tag == "" {
					tag = "-"
				} else {
					name = language.DisplayName(tags.Language(tag))
				}
				rows = append(rows, []string{strconv.Itoa(i + 1), tag, name, strings.TrimSpace(segment.Text)})
			}
			if len(rows) > 0 {
				fmt.Fprintln(w, renderTable([]string{"#", "Tag", "Language", "Text"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&hints, "lang", "l", nil, "Language hints in preference order (default auto-detect)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var hints []string
	var target string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Map and translate mixed-language text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if !tags.HasContent(text) {
				return errEmptyText
			}
			pipeline, err := ctx.pipeline(cmd)
			if err != nil {
				return err
			}
			mapped, err := pipeline.Mapper.Map(cmd.Context(), text, hints)
			if err != nil {
				return fmt.Errorf("map text: %w", err)
			}
			translation, err := pipeline.Translator.Translate(cmd.Context(), mapped, target, hints)
			if err != nil {
				return fmt.Errorf("translate: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, translateOutput{
					Result:         mapper.Annotate(mapped),
					TargetLanguage: target,
					Translation:    translation,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), translation)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&hints, "lang", "l", nil, "Source language hints in preference order (default auto-detect)")
	cmd.Flags().StringVarP(&target, "to", "t", language.DefaultTarget, "Target language code")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "detect <text>",
		Short: "Ask a running server to detect the languages in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			var tagged string
			err := ctx.withRelay(cmd.Context(), func(client *relayclient.Client) error {
				var err error
				tagged, err = client.DetectLanguages(cmd.Context(), text)
				return err
			})
			if err != nil {
				return fmt.Errorf("detect languages: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, detectOutput{TaggedText: tagged, DetectedLanguages: tags.Parse(tagged)})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, tagged)
			if codes := tags.Parse(tagged); len(codes) > 0 {
				fmt.Fprintf(w, "Languages: %s\n", strings.Join(codes, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
