package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/metrics"
)

// Cache ties the tiers together: Create writes every tier, Recover runs the
// resolver, Discard removes the draft once the registration is submitted.
type Cache struct {
	durable  Store
	session  Store
	resolver *Resolver
}

// NewCache builds the URL, durable, session chain. durable may be nil when
// Redis is not configured.
func NewCache(durable, session Store, lookupTimeout time.Duration) *Cache {
	var chain []Provider
	if durable != nil {
		chain = append(chain, durable)
	}
	chain = append(chain, session)
	return &Cache{durable: durable, session: session, resolver: NewResolver(lookupTimeout, chain...)}
}

// NewID returns a fresh draft identifier.
func NewID() string { return "REG_" + uuid.NewString() }

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	rest, ok := strings.CutPrefix(id, "REG_")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

// Create stores a new draft and returns it with its URL token. A failing
// tier is logged and skipped.
func (c *Cache) Create(ctx context.Context, fields map[string]string, att *Attachment) (*Draft, string, error) {
	d := &Draft{ID: NewID(), Fields: fields, Attachment: att, CreatedAt: time.Now().UTC()}
	stored := 0
	for _, s := range []Store{c.durable, c.session} {
		if s == nil {
			continue
		}
		if err := s.Save(ctx, d); err != nil {
			log.Warn().Err(err).Str("source", s.Source()).Str("draft_id", d.ID).Msg("draft save failed")
			continue
		}
		stored++
	}
	token, err := EncodeToken(d)
	if err != nil {
		return nil, "", fmt.Errorf("encode draft token: %w", err)
	}
	if stored == 0 {
		// The URL tier still works without server-side storage.
		log.Warn().Str("draft_id", d.ID).Msg("draft kept in URL token only")
	}
	return d, token, nil
}

// Recover resolves id across the tiers. token may be empty.
func (c *Cache) Recover(ctx context.Context, id, token string) Result {
	var res Result
	if token != "" {
		res = c.resolver.Resolve(ctx, id, TokenProvider{Token: token})
	} else {
		res = c.resolver.Resolve(ctx, id)
	}
	metrics.DraftRecoveries.WithLabelValues(string(res.State), res.Source).Inc()
	return res
}

// Discard deletes the draft from both server-side tiers.
func (c *Cache) Discard(ctx context.Context, id string) error {
	var errs []error
	for _, s := range []Store{c.durable, c.session} {
		if s == nil {
			continue
		}
		if err := s.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Source(), err))
		}
	}
	return errors.Join(errs...)
}
