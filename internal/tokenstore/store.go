package tokenstore

import (
	"context"
	"errors"

	"digiclassroom/session/internal/model"
)

var ErrNoTokens = errors.New("no stored tokens")

// Record is the credential pair plus the role it was issued for. The pair
// is written and cleared as one unit; callers never see a half-written
// record. Role may be empty for records written before roles were stored.
type Record struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	Role         model.Role `json:"role,omitempty"`
}

func (r Record) IsZero() bool {
	return r.AccessToken == ""
}

// Store persists the credential record across process restarts. Load
// returns ErrNoTokens when nothing is stored; Clear on an empty store is
// a no-op.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context) (Record, error)
	Clear(ctx context.Context) error
}
