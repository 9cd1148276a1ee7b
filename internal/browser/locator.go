package browser

import (
	"context"

	"go.uber.org/zap"
)

// ElementRef is a resolved element: the semantic role it fills and the
// candidate selector that matched. Callers interact with it through the page
// using the winning selector.
type ElementRef struct {
	Role     string
	Selector Selector
}

// Resolver finds page elements for semantic roles by trying ranked candidate
// selectors in order. Target markup varies and changes over time, so a
// single hardcoded selector is brittle; resolution degrades through the
// fallback list instead of failing on the first miss.
type Resolver struct {
	page   Page
	logger *zap.Logger
}

// NewResolver wraps a page.
func NewResolver(page Page, logger *zap.Logger) *Resolver {
	return &Resolver{page: page, logger: logger.Named("locator")}
}

// Resolve tries each candidate in declared order and returns the first that
// matches an interactable element. A nil ElementRef with a nil error means
// no candidate matched; that is a normal outcome (the target may simply lack
// the role) and callers decide whether absence is fatal for their operation.
// The error is non-nil only when the context ended before resolution could
// finish.
func (r *Resolver) Resolve(ctx context.Context, role string, candidates []Selector) (*ElementRef, error) {
	for _, sel := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := r.page.Exists(ctx, sel)
		if err != nil {
			// A failed probe disqualifies the candidate, not the role.
			r.logger.Debug("Candidate probe failed.",
				zap.String("role", role),
				zap.String("by", string(sel.By)),
				zap.String("value", sel.Value),
				zap.Error(err))
			continue
		}
		if found {
			r.logger.Debug("Resolved role.",
				zap.String("role", role),
				zap.String("by", string(sel.By)),
				zap.String("value", sel.Value))
			return &ElementRef{Role: role, Selector: sel}, nil
		}
	}
	r.logger.Debug("No candidate matched role.", zap.String("role", role), zap.Int("candidates", len(candidates)))
	return nil, nil
}
