package mapper

import (
	"context"
	"log/slog"
	"strings"

	"mixlingo/internal/capability"
	"mixlingo/internal/logging"
	"mixlingo/internal/tags"
)

// Mapper annotates text with per-segment language tags.
type Mapper interface {
	Map(ctx context.Context, text string, hints []string) (tags.TaggedText, error)
	Mode() capability.Mode
}

// Result is the annotated form emitted to clients.
type Result struct {
	MappedText        tags.TaggedText `json:"annotatedText"`
	DetectedLanguages []string        `json:"detectedLanguages"`
}

// Annotate pairs mapped text with the codes it carries.
func Annotate(mapped tags.TaggedText) Result {
	return Result{MappedText: mapped, DetectedLanguages: tags.Parse(mapped)}
}

// New returns a Live mapper when gen is non-nil and a Fallback otherwise.
func New(gen capability.TextGenerator, temperature float64, logger *slog.Logger) Mapper {
	if gen == nil {
		return Fallback{}
	}
	return NewLive(gen, temperature, logger)
}

// Fallback tags untagged input as English and standardizes input that
// already carries tags. It never calls a capability.
type Fallback struct{}

// Map implements Mapper.
func (Fallback) Map(ctx context.Context, text string, _ []string) (tags.TaggedText, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fallback(text), nil
}

// Mode implements Mapper.
func (Fallback) Mode() capability.Mode { return capability.ModeFallback }

func fallback(text string) tags.TaggedText {
	if !tags.HasContent(text) {
		return ""
	}
	if tags.HasTags(text) {
		return tags.Standardize(text)
	}
	return tags.Wrap(tags.CodeDefault, text)
}

// Live asks a text generator to tag the input and verifies the answer kept
// the input's content. Any capability failure or unusable answer degrades to
// the Fallback result.
type Live struct {
	gen         capability.TextGenerator
	temperature float64
	logger      *slog.Logger
}

// NewLive constructs a Live mapper.
func NewLive(gen capability.TextGenerator, temperature float64, logger *slog.Logger) *Live {
	return &Live{
		gen:         gen,
		temperature: temperature,
		logger:      logging.NewComponentLogger(logger, "mapper"),
	}
}

// Mode implements Mapper.
func (m *Live) Mode() capability.Mode { return capability.ModeLive }

// Map implements Mapper. The only error it returns is ctx.Err().
func (m *Live) Map(ctx context.Context, text string, hints []string) (tags.TaggedText, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !tags.HasContent(text) {
		return "", nil
	}
	logger := logging.WithContext(ctx, m.logger)

	out, err := m.gen.Generate(ctx, buildPrompt(text, hints, m.temperature))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		m.degrade(logger, "capability_error", logging.Error(err))
		return fallback(text), nil
	}

	mapped, ok := accept(text, out)
	if !ok {
		m.degrade(logger, "content_mismatch", logging.String("output", snippet(out)))
		return fallback(text), nil
	}
	logger.Debug("text mapped", logging.Any("languages", tags.Parse(mapped)))
	return mapped, nil
}

func (m *Live) degrade(logger *slog.Logger, reason string, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "text tagged by fallback rule"),
	)
	logging.WarnWithContext(logger, "language mapping fell back", "mapper_fallback", attrs...)
}

// accept cleans a model answer and checks that removing its tags yields the
// original text modulo whitespace. Wrapping quotes echoed from the prompt are
// dropped only when doing so makes the content match.
func accept(input, output string) (tags.TaggedText, bool) {
	cleaned := strings.TrimSpace(capability.Unwrap(output))
	if cleaned == "" {
		return "", false
	}
	want := collapse(tags.Strip(input))
	for _, candidate := range []string{cleaned, unquote(cleaned)} {
		standardized := tags.Standardize(candidate)
		if tags.HasTags(standardized) && collapse(tags.Strip(standardized)) == want {
			return standardized, true
		}
	}
	return "", false
}

func unquote(s string) string {
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func snippet(s string) string {
	s = collapse(s)
	if r := []rune(s); len(r) > 120 {
		return string(r[:120]) + "..."
	}
	return s
}
