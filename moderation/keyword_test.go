package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeywordClassifierText(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	k := NewKeywordClassifier()

	tests := []struct {
		text string
		want Verdict
	}{
		{"accident on the highway, stay clear", VerdictApproved},
		{"this is SPAM!!!", VerdictRejected},
		{"reporte de violencia en el parque", VerdictRejected},
		{"", VerdictApproved},
		{"spamless but fine", VerdictApproved}, // token match, not substring
	}

	for _, tc := range tests {
		got, err := k.Classify(ctx, Input{Text: tc.text})
		assert.NoError(err)
		assert.Equal(tc.want, got, "text: %q", tc.text)
	}
}

func TestKeywordClassifierMedia(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	k := NewKeywordClassifier()

	tests := []struct {
		url  string
		want Verdict
	}{
		{"/media/abc-photo.jpg", VerdictApproved},
		{"/media/totally-not-a-VIRUS.png", VerdictRejected},
		{"x.io", VerdictRejected}, // too short to be a stored blob
	}

	for _, tc := range tests {
		got, err := k.Classify(ctx, Input{MediaURL: tc.url})
		assert.NoError(err)
		assert.Equal(tc.want, got, "url: %q", tc.url)
	}
}

func TestKeywordClassifierCompositeAND(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	k := NewKeywordClassifier()

	// clean text but bad media still rejects the whole item
	got, err := k.Classify(ctx, Input{Text: "lovely sunset", MediaURL: "/media/malware.jpg"})
	assert.NoError(err)
	assert.Equal(VerdictRejected, got)

	got, err = k.Classify(ctx, Input{Text: "estafa piramidal", MediaURL: "/media/fine.jpg"})
	assert.NoError(err)
	assert.Equal(VerdictRejected, got)

	got, err = k.Classify(ctx, Input{Text: "all good here", MediaURL: "/media/fine.jpg"})
	assert.NoError(err)
	assert.Equal(VerdictApproved, got)
}

func TestKeywordClassifierHonorsContext(t *testing.T) {
	assert := assert.New(t)

	k := NewKeywordClassifier()
	k.Delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := k.Classify(ctx, Input{Text: "anything"})
	assert.ErrorIs(err, context.DeadlineExceeded)
}
