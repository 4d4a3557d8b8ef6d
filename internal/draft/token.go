package draft

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ErrBadToken is returned for tokens that do not decode.
var ErrBadToken = errors.New("malformed draft token")

type tokenPayload struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// EncodeToken packs the draft's fields into a URL-safe string that the
// client appends to the payment page link.
func EncodeToken(d *Draft) (string, error) {
	b, err := json.Marshal(tokenPayload{ID: d.ID, Fields: d.Fields})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeToken reverses EncodeToken. Padded and standard-alphabet input is
// accepted as well.
func DecodeToken(token string) (*Draft, error) {
	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding, base64.RawStdEncoding} {
		if raw, err = enc.DecodeString(token); err == nil {
			break
		}
	}
	if err != nil {
		return nil, ErrBadToken
	}
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil || len(p.Fields) == 0 {
		return nil, ErrBadToken
	}
	return &Draft{ID: p.ID, Fields: p.Fields}, nil
}

// TokenProvider is the URL tier for one request.
type TokenProvider struct {
	Token string
}

func (p TokenProvider) Source() string { return "url" }

// Lookup decodes the token. A token minted for another draft is ignored.
func (p TokenProvider) Lookup(_ context.Context, id string) (*Draft, error) {
	if p.Token == "" {
		return nil, ErrNotFound
	}
	d, err := DecodeToken(p.Token)
	if err != nil {
		return nil, err
	}
	if d.ID != "" && d.ID != id {
		return nil, ErrNotFound
	}
	d.ID = id
	return d, nil
}
