// Package auth abstracts the external identity provider that issues and
// verifies bearer identity tokens.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/pkg/errors"
)

// Identity is a verified caller identity extracted from a bearer token.
type Identity struct {
	Uid         string
	Email       string
	DisplayName string
}

// Provider issues accounts and verifies bearer tokens. Verification and
// account creation failures use the shared error kinds: ErrUnauthenticated
// for bad tokens, ErrConflict for duplicate emails.
type Provider interface {
	Register(ctx context.Context, email, password, name string) (uid string, err error)
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// FakeProvider is an in-memory Provider for tests and local development.
// Tokens have the shape "token-<uid>".
type FakeProvider struct {
	mu         sync.Mutex
	identities map[string]*Identity // keyed by uid
	emails     map[string]string    // email -> uid
}

var _ Provider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		identities: make(map[string]*Identity),
		emails:     make(map[string]string),
	}
}

func (p *FakeProvider) Register(ctx context.Context, email, password, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.emails[email]; ok {
		return "", errors.Wrapf(model.ErrConflict, "this email is already registered: %s", email)
	}
	uid := uuid.New().String()
	p.identities[uid] = &Identity{Uid: uid, Email: email, DisplayName: name}
	p.emails[email] = uid
	return uid, nil
}

func (p *FakeProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	uid := strings.TrimPrefix(token, "token-")
	ident, ok := p.identities[uid]
	if uid == token || !ok {
		return nil, errors.Wrap(model.ErrUnauthenticated, "invalid token")
	}
	return ident, nil
}

// TokenFor returns the bearer token the fake accepts for uid.
func (p *FakeProvider) TokenFor(uid string) string {
	return fmt.Sprintf("token-%s", uid)
}
