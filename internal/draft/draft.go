// Package draft holds in-progress registrations between the registration
// form and the payment page. Drafts live in up to three tiers: a token the
// client carries in the URL, a durable Redis entry holding the attachment,
// and a short-lived in-process session entry holding fields only.
package draft

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a tier that has no entry for the id.
var ErrNotFound = errors.New("draft not found")

// Attachment is the raw ID-proof upload kept with a durable draft.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Draft is a registration awaiting payment. Fields carries the form values
// exactly as submitted.
type Draft struct {
	ID         string            `json:"id"`
	Fields     map[string]string `json:"fields"`
	Attachment *Attachment       `json:"attachment,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Complete reports whether the draft can be submitted without a re-upload.
func (d *Draft) Complete() bool {
	return d != nil && d.Attachment != nil && len(d.Attachment.Data) > 0
}

// withoutAttachment returns a copy carrying fields only.
func (d *Draft) withoutAttachment() *Draft {
	fields := make(map[string]string, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	return &Draft{ID: d.ID, Fields: fields, CreatedAt: d.CreatedAt}
}

// Store is a tier that can persist drafts.
type Store interface {
	Provider
	Save(ctx context.Context, d *Draft) error
	Delete(ctx context.Context, id string) error
}

// Provider is one step of the recovery chain.
type Provider interface {
	Source() string
	Lookup(ctx context.Context, id string) (*Draft, error)
}
