package llm

import "context"

// PurposeDocQA labels document question answering in the request log.
const PurposeDocQA = "doc-qa"

type purposeKey struct{}

// WithPurpose tags ctx with the feature making the request.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the tag set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if p, ok := ctx.Value(purposeKey{}).(string); ok && p != "" {
		return p
	}
	return "unknown"
}
