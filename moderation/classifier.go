package moderation

import (
	"context"
)

// Verdict is the outcome of a classification pass.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// Input carries the classifiable parts of a content item. Either field may be
// empty; a classifier checks whatever is present and rejects the whole item
// if any present part fails (logical AND over approvals).
type Input struct {
	Text     string
	MediaURL string
}

// Classifier produces a verdict for a content item. Implementations may take
// seconds and are treated as a black box: the orchestrator calls Classify at
// most once per item and never retries a verdict. A returned error means the
// classification could not be completed, not that the content is bad; the
// orchestrator converts it to a deny-by-default rejection.
type Classifier interface {
	Classify(ctx context.Context, input Input) (Verdict, error)
}
