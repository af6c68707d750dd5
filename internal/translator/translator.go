package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mixlingo/internal/capability"
	"mixlingo/internal/language"
	"mixlingo/internal/logging"
	"mixlingo/internal/services"
	"mixlingo/internal/tags"
)

// ErrUnavailable marks translation failures that a fallback cannot hide,
// such as a missing or rejected credential.
var ErrUnavailable = errors.New("translation unavailable")

const (
	mockPrefix = "[MOCK TRANSLATION TO "
	mockMarker = "] [MOCK] "
)

// Translator renders tagged text into a target language.
type Translator interface {
	Translate(ctx context.Context, tagged tags.TaggedText, target string, sourceHints []string) (string, error)
	Mode() capability.Mode
}

// New returns a Live translator when gen is non-nil and a Fallback otherwise.
func New(gen capability.TextGenerator, temperature float64, logger *slog.Logger) Translator {
	if gen == nil {
		return Fallback{}
	}
	return NewLive(gen, temperature, logger)
}

// Fallback produces a deterministic, reversible mock translation.
type Fallback struct{}

// Translate implements Translator.
func (Fallback) Translate(ctx context.Context, tagged tags.TaggedText, target string, _ []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Mock(tagged, target), nil
}

// Mode implements Translator.
func (Fallback) Mode() capability.Mode { return capability.ModeFallback }

// Mock formats "[MOCK TRANSLATION TO <TARGET>] [MOCK] <reversed text>" where
// the text has its tags stripped and its runes reversed. Text with no
// content yields "".
func Mock(tagged tags.TaggedText, target string) string {
	text := tags.Strip(tagged)
	if text == "" {
		return ""
	}
	return mockPrefix + strings.ToUpper(language.NormalizeTarget(target)) + mockMarker + Unreverse(text)
}

// Unreverse reverses the runes of s. Applying it to the body of a Mock
// result recovers the stripped source text.
func Unreverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// ParseMock splits a Mock result into its target and recovered source text.
func ParseMock(translation string) (target, source string, ok bool) {
	rest, found := strings.CutPrefix(translation, mockPrefix)
	if !found {
		return "", "", false
	}
	target, body, found := strings.Cut(rest, mockMarker)
	if !found {
		return "", "", false
	}
	return target, Unreverse(body), true
}

// Live translates through a text generator. Transient failures degrade to
// the Mock result; configuration failures are returned wrapped with
// ErrUnavailable.
type Live struct {
	gen         capability.TextGenerator
	temperature float64
	logger      *slog.Logger
}

// NewLive constructs a Live translator.
func NewLive(gen capability.TextGenerator, temperature float64, logger *slog.Logger) *Live {
	return &Live{
		gen:         gen,
		temperature: temperature,
		logger:      logging.NewComponentLogger(logger, "translator"),
	}
}

// Mode implements Translator.
func (t *Live) Mode() capability.Mode { return capability.ModeLive }

// Translate implements Translator.
func (t *Live) Translate(ctx context.Context, tagged tags.TaggedText, target string, sourceHints []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !tags.HasContent(tagged) {
		return "", nil
	}
	logger := logging.WithContext(ctx, t.logger)
	target = language.NormalizeTarget(target)

	out, err := t.gen.Generate(ctx, buildPrompt(tagged, target, sourceHints, t.temperature))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			logger.Error("translation capability rejected request",
				logging.String(logging.FieldEventType, "translator_unavailable"),
				logging.Error(err),
			)
			return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		t.degrade(logger, "capability_error", logging.Error(err))
		return Mock(tagged, target), nil
	}

	translated := clean(out)
	if translated == "" {
		t.degrade(logger, "empty_output")
		return Mock(tagged, target), nil
	}
	return translated, nil
}

func (t *Live) degrade(logger *slog.Logger, reason string, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "client receives mock translation"),
	)
	logging.WarnWithContext(logger, "translation fell back", "translator_fallback", attrs...)
}

// clean removes fences, wrapping quotes, and any tags the model echoed.
func clean(out string) string {
	text := strings.TrimSpace(capability.Unwrap(out))
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = text[1 : len(text)-1]
	}
	return tags.Strip(text)
}
