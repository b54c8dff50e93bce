package moderation

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode"
)

// Default term lists, carried over from the heuristic the service launched
// with. Deployments override these with their own lists.
var (
	DefaultBlockedTerms = []string{
		"spam", "ofensivo", "inapropiado", "violencia", "drogas", "estafa",
	}
	DefaultSuspiciousMedia = []string{
		"virus", "malware", "hack",
	}
)

// KeywordClassifier is a deterministic classifier that scans text for blocked
// terms and media locators for suspicious names. It stands in for an external
// classification model behind the same interface, including an optional
// artificial latency per sub-check.
type KeywordClassifier struct {
	BlockedTerms    []string
	SuspiciousMedia []string

	// Delay is applied once per present sub-check (text, media) to mimic
	// upstream model latency. Zero means no delay.
	Delay time.Duration
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		BlockedTerms:    DefaultBlockedTerms,
		SuspiciousMedia: DefaultSuspiciousMedia,
	}
}

// Classify checks each present part of the input and approves only if every
// check approves.
func (k *KeywordClassifier) Classify(ctx context.Context, input Input) (Verdict, error) {
	if input.Text != "" {
		v, err := k.classifyText(ctx, input.Text)
		if err != nil {
			return "", err
		}
		if v == VerdictRejected {
			return VerdictRejected, nil
		}
	}
	if input.MediaURL != "" {
		v, err := k.classifyMedia(ctx, input.MediaURL)
		if err != nil {
			return "", err
		}
		if v == VerdictRejected {
			return VerdictRejected, nil
		}
	}
	return VerdictApproved, nil
}

func (k *KeywordClassifier) classifyText(ctx context.Context, text string) (Verdict, error) {
	if err := k.sleep(ctx); err != nil {
		return "", err
	}
	for _, tok := range tokenize(text) {
		if slices.Contains(k.BlockedTerms, tok) {
			return VerdictRejected, nil
		}
	}
	return VerdictApproved, nil
}

func (k *KeywordClassifier) classifyMedia(ctx context.Context, mediaURL string) (Verdict, error) {
	if err := k.sleep(ctx); err != nil {
		return "", err
	}
	if len(mediaURL) < 5 {
		return VerdictRejected, nil
	}
	lower := strings.ToLower(mediaURL)
	for _, name := range k.SuspiciousMedia {
		if strings.Contains(lower, name) {
			return VerdictRejected, nil
		}
	}
	return VerdictApproved, nil
}

func (k *KeywordClassifier) sleep(ctx context.Context) error {
	if k.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(k.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func splitTokenRune(c rune) bool {
	return !unicode.IsLetter(c) && !unicode.IsNumber(c)
}

// tokenize lower-cases and splits free-form text on non-letter/digit runes so
// blocked terms match regardless of surrounding punctuation.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), splitTokenRune)
}
