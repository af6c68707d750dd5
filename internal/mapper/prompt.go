package mapper

import (
	"fmt"
	"strings"

	"mixlingo/internal/capability"
	"mixlingo/internal/language"
)

const systemPrompt = `You annotate mixed-language text with language tags.
Insert [[XX]] before every segment, where XX is the uppercase ISO 639-1 code of the segment's language.
Rules:
- Insert a tag wherever the language changes, and at the very start.
- Group the largest possible segments (phrases or clauses) of the same language.
- Use [[UNK]] for segments whose language cannot be identified.
- Use [[AMB:xx/yy]] for segments that are equally valid in two languages.
- Do not translate, correct, reorder, or remove any characters of the input.
- Return only the tagged text, with no quotes, commentary, or code fences.`

func buildPrompt(text string, hints []string, temperature float64) capability.Prompt {
	var b strings.Builder
	if language.IsAuto(hints) {
		b.WriteString("Detect the languages automatically.\n")
	} else {
		normalized := language.NormalizeHints(hints)
		if language.IsAuto(normalized) {
			b.WriteString("Detect the languages automatically.\n")
		} else {
			names := make([]string, 0, len(normalized))
			for _, code := range normalized {
				names = append(names, fmt.Sprintf("%s (%s)", strings.ToUpper(code), language.DisplayName(code)))
			}
			fmt.Fprintf(&b, "The speaker uses these languages: %s.\n", strings.Join(names, ", "))
			fmt.Fprintf(&b, "Prefer them when resolving ambiguity, %s first. ", names[0])
			b.WriteString("Use [[UNK]] or [[AMB:xx/yy]] only when none of them applies.\n")
		}
	}
	b.WriteString("\nText:\n")
	b.WriteString(text)
	return capability.Prompt{
		System:      systemPrompt,
		User:        b.String(),
		Temperature: temperature,
	}
}
