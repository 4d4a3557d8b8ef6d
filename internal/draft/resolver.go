package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// State is the outcome of a recovery attempt.
type State string

const (
	StateRecoveredWithAttachment State = "recovered_with_attachment"
	StateRecoveredNeedsReupload  State = "recovered_needs_reupload"
	StateLost                    State = "lost"
)

// Result names the recovered draft and the tier it came from.
type Result struct {
	State  State
	Source string
	Draft  *Draft
}

// Resolver walks an ordered provider chain. A complete draft ends the walk;
// otherwise the first partial draft is returned after every tier was tried.
// Each lookup is bounded by timeout and a tier that does not answer in time
// is skipped.
type Resolver struct {
	providers []Provider
	timeout   time.Duration
}

func NewResolver(timeout time.Duration, providers ...Provider) *Resolver {
	return &Resolver{providers: providers, timeout: timeout}
}

// Resolve tries first (request-scoped providers such as the URL token)
// before the configured chain.
func (r *Resolver) Resolve(ctx context.Context, id string, first ...Provider) Result {
	chain := append(append([]Provider{}, first...), r.providers...)
	var partial *Result
	for _, p := range chain {
		d, err := r.lookup(ctx, p, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Warn().Err(err).Str("source", p.Source()).Str("draft_id", id).Msg("draft tier unavailable")
			}
			continue
		}
		if d.Complete() {
			return Result{State: StateRecoveredWithAttachment, Source: p.Source(), Draft: d}
		}
		if partial == nil {
			partial = &Result{State: StateRecoveredNeedsReupload, Source: p.Source(), Draft: d}
		}
	}
	if partial != nil {
		return *partial
	}
	return Result{State: StateLost}
}

type lookupResult struct {
	draft *Draft
	err   error
}

// lookup abandons the provider when it exceeds the timeout; the provider's
// context is cancelled so a well-behaved tier stops on its own.
func (r *Resolver) lookup(ctx context.Context, p Provider, id string) (*Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		d, err := p.Lookup(ctx, id)
		done <- lookupResult{draft: d, err: err}
	}()
	select {
	case res := <-done:
		if res.err == nil && res.draft == nil {
			return nil, ErrNotFound
		}
		return res.draft, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s tier: %w", p.Source(), ctx.Err())
	}
}
