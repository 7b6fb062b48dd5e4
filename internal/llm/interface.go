package llm

import "context"

// CompletionInterface defines the contract for LLM completion calls. The
// pipeline treats the model as a non-deterministic black box that is asked
// for JSON and returns free-form text; enforcing the output contract is the
// caller's job.
type CompletionInterface interface {
	Complete(ctx context.Context, req Request) (string, error)
}
