package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the attributes did not contain a usable provider identity.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrDuplicateIdentity indicates a row for the (provider, uid) pair already exists.
	ErrDuplicateIdentity = errors.New("users: duplicate identity")
	// ErrStoreUnavailable wraps every other failure reported by the backing database.
	ErrStoreUnavailable = errors.New("users: store unavailable")

	errMissingDatabase = errors.New("users: database connection required")
)

const (
	opFindByUID = "users.find_by_uid"
	opFindByID  = "users.find_by_id"
	opCreate    = "users.create"
	opListAll   = "users.list_all"
)

// StoreError reports a failed store operation together with its kind.
type StoreError struct {
	op   string
	kind error
	err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.err)
}

func (e *StoreError) Unwrap() []error {
	return []error{e.kind, e.err}
}

// Op returns the failed operation code, e.g. "users.create".
func (e *StoreError) Op() string {
	return e.op
}

func newStoreError(operation string, cause error) error {
	kind := ErrStoreUnavailable
	if isDuplicateKey(cause) {
		kind = ErrDuplicateIdentity
	}
	return &StoreError{op: operation, kind: kind, err: cause}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value")
}

// StoreConfig describes the dependencies required by Store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store persists users. Every method issues at most one database round trip and caches nothing.
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewStore constructs a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// FindByUID returns the user registered for the provider identity, or nil when none exists.
func (s *Store) FindByUID(ctx context.Context, provider, uid string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("provider = ? AND uid = ?", normalize(provider), normalize(uid)).
		Limit(1).
		Find(&user).
		Error
	if err != nil {
		return nil, newStoreError(opFindByUID, err)
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

// FindByID returns the user with the given surrogate id, or nil when none exists.
// An id of zero stands for "no id" and resolves to nil without querying.
func (s *Store) FindByID(ctx context.Context, id uint) (*User, error) {
	if id == 0 {
		return nil, nil
	}
	var user User
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&user).
		Error
	if err != nil {
		return nil, newStoreError(opFindByID, err)
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

// Create inserts a new user and returns it with the generated id.
// It does not look for an existing row; a duplicate identity fails with ErrDuplicateIdentity.
func (s *Store) Create(ctx context.Context, attrs Attributes) (*User, error) {
	user := User{
		UID:       normalize(attrs.UID),
		Provider:  normalize(attrs.Provider),
		Username:  attrs.Username,
		Name:      attrs.Name,
		Email:     attrs.Email,
		AvatarURL: attrs.AvatarURL,
		CreatedAt: s.now().UTC(),
	}
	if user.UID == "" || user.Provider == "" {
		return nil, ErrInvalidIdentity
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, newStoreError(opCreate, err)
	}

	s.logger.Debug("user created",
		zap.Uint("user_id", user.ID),
		zap.String("provider", user.Provider),
		zap.String("uid", user.UID),
	)
	return &user, nil
}

// ListAll returns every user in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]User, error) {
	var all []User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&all).Error; err != nil {
		return nil, newStoreError(opListAll, err)
	}
	return all, nil
}
