package signin

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/roster/internal/auth"
	"github.com/MarcoPoloResearchLab/roster/internal/session"
	"github.com/MarcoPoloResearchLab/roster/internal/users"
	"go.uber.org/zap"
)

var (
	errMissingUserStore = errors.New("signin: user store required")
	// ErrIdentityVanished means a create lost a uniqueness race but the winning row could not be read back.
	ErrIdentityVanished = errors.New("signin: identity created concurrently but not found")
)

// UserStore is the part of the user store the callback needs.
type UserStore interface {
	FindByUID(ctx context.Context, provider, uid string) (*users.User, error)
	Create(ctx context.Context, attrs users.Attributes) (*users.User, error)
}

// CallbackHandler completes a provider callback: find-or-create the user and sign the session in.
type CallbackHandler struct {
	users  UserStore
	logger *zap.Logger
}

// NewCallbackHandler constructs a CallbackHandler.
func NewCallbackHandler(store UserStore, logger *zap.Logger) (*CallbackHandler, error) {
	if store == nil {
		return nil, errMissingUserStore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackHandler{users: store, logger: logger}, nil
}

// HandleCallback signs the session in as the user owning the claims, creating that user on first sight.
// The session is only modified once the user is resolved, so a failure leaves it untouched.
func (h *CallbackHandler) HandleCallback(ctx context.Context, claims auth.Claims, state *session.Session) (Outcome, error) {
	attrs := users.AttributesFromClaims(claims)

	user, err := h.findOrCreate(ctx, attrs)
	if err != nil {
		return Outcome{}, err
	}

	state.SignIn(user.ID)
	h.logger.Info("user signed in",
		zap.Uint("user_id", user.ID),
		zap.String("provider", user.Provider),
		zap.String("uid", user.UID),
	)
	return Redirect(UsersPath, NoticeSignedIn), nil
}

// SignOut clears the session's user.
func (h *CallbackHandler) SignOut(state *session.Session) Outcome {
	state.SignOut()
	return Redirect(HomePath, NoticeSignedOut)
}

func (h *CallbackHandler) findOrCreate(ctx context.Context, attrs users.Attributes) (*users.User, error) {
	existing, err := h.users.FindByUID(ctx, attrs.Provider, attrs.UID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := h.users.Create(ctx, attrs)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, users.ErrDuplicateIdentity) {
		return nil, err
	}

	// Another request inserted the same identity between our lookup and insert.
	h.logger.Debug("user created concurrently, re-reading",
		zap.String("provider", attrs.Provider),
		zap.String("uid", attrs.UID),
	)
	winner, err := h.users.FindByUID(ctx, attrs.Provider, attrs.UID)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrIdentityVanished, attrs.Provider, attrs.UID)
	}
	return winner, nil
}
