package translator

import (
	"fmt"
	"strings"

	"mixlingo/internal/capability"
	"mixlingo/internal/language"
	"mixlingo/internal/tags"
)

const systemPrompt = `You translate mixed-language text.
The input carries [[XX]] tags naming the language of the segment that follows; treat them as hints only.
Translate every segment into the target language, keeping segments already in the target language as they are.
Produce one natural, fluent text. Do not output tags, quotes, notes, or explanations.`

func buildPrompt(tagged tags.TaggedText, target string, hints []string, temperature float64) capability.Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s (%s)\n", language.DisplayName(target), strings.ToUpper(target))
	if !language.IsAuto(hints) {
		normalized := language.NormalizeHints(hints)
		if !language.IsAuto(normalized) {
			fmt.Fprintf(&b, "The speaker said they use: %s\n", strings.ToUpper(strings.Join(normalized, ", ")))
		}
	}
	b.WriteString("\nTagged text:\n")
	b.WriteString(tagged)
	return capability.Prompt{
		System:      systemPrompt,
		User:        b.String(),
		Temperature: temperature,
	}
}
