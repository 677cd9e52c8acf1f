package signin

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/roster/internal/session"
	"github.com/MarcoPoloResearchLab/roster/internal/users"
)

var errMissingUserFinder = errors.New("signin: user finder required")

// UserFinder resolves a user by surrogate id.
type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*users.User, error)
}

// Gate computes signed-in state from a session.
type Gate struct {
	users UserFinder
}

// NewGate constructs a Gate backed by the given finder.
func NewGate(finder UserFinder) (*Gate, error) {
	if finder == nil {
		return nil, errMissingUserFinder
	}
	return &Gate{users: finder}, nil
}

// CurrentUser resolves the session's user. A missing id or a stale id that matches no row yields nil.
func (g *Gate) CurrentUser(ctx context.Context, state *session.Session) (*users.User, error) {
	if state == nil || state.UserID() == 0 {
		return nil, nil
	}
	return g.users.FindByID(ctx, state.UserID())
}

// IsSignedIn reports whether CurrentUser resolves to a user.
func (g *Gate) IsSignedIn(ctx context.Context, state *session.Session) (bool, error) {
	user, err := g.CurrentUser(ctx, state)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// RequireAuthenticated lets signed-in sessions proceed and redirects everyone else home.
func (g *Gate) RequireAuthenticated(ctx context.Context, state *session.Session) (Outcome, error) {
	signedIn, err := g.IsSignedIn(ctx, state)
	if err != nil {
		return Outcome{}, err
	}
	if !signedIn {
		return Redirect(HomePath, NoticeSignInRequired), nil
	}
	return Proceed(), nil
}
