package credentials

import (
	"context"

	"github.com/glorpus-work/fetch/pkg/model"
)

// PromptSource adapts an injected Prompter into a chain source. It always
// asks fresh and therefore does not implement Invalidatable: a rejected
// answer is something to tell the user about, not something to evict.
type PromptSource struct {
	prompter Prompter
}

// NewPromptSource wraps the given prompter. Callers append it to a Chain only
// when running interactively.
func NewPromptSource(prompter Prompter) *PromptSource {
	return &PromptSource{prompter: prompter}
}

// Resolve asks the user. A prompt error (for example the user aborting)
// propagates as a real error and stops the chain.
func (s *PromptSource) Resolve(ctx context.Context, origin model.Origin, retry bool) (*model.Credential, error) {
	return s.prompter.Prompt(ctx, origin, retry)
}
