package users

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func stringPointer(value string) *string {
	return &value
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "users.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate users schema: %v", err)
	}
	return db
}

func newTestStore(t *testing.T, db *gorm.DB) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1_700_000_000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func adaAttributes() Attributes {
	return Attributes{
		UID:       "42",
		Provider:  "github",
		Username:  stringPointer("ada"),
		Name:      stringPointer("Ada L."),
		Email:     stringPointer("ada@x.io"),
		AvatarURL: stringPointer("http://x/ada.png"),
	}
}

func TestStoreCreateReturnsGeneratedID(t *testing.T) {
	store := newTestStore(t, newTestDatabase(t))

	created, err := store.Create(context.Background(), adaAttributes())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected first user to receive id 1, got %d", created.ID)
	}
	if created.UID != "42" || created.Provider != "github" {
		t.Fatalf("unexpected identity %s/%s", created.Provider, created.UID)
	}
	if created.Username == nil || *created.Username != "ada" {
		t.Fatalf("unexpected username %v", created.Username)
	}
	if !created.CreatedAt.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("unexpected created_at %v", created.CreatedAt)
	}
}

func TestStoreFindByUID(t *testing.T) {
	store := newTestStore(t, newTestDatabase(t))
	created, err := store.Create(context.Background(), adaAttributes())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	found, err := store.FindByUID(context.Background(), "github", "42")
	if err != nil {
		t.Fatalf("find by uid failed: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("expected user %d, got %+v", created.ID, found)
	}
	if found.Email == nil || *found.Email != "ada@x.io" {
		t.Fatalf("unexpected email %v", found.Email)
	}
}

func TestStoreLookupsReturnNilWhenMissing(t *testing.T) {
	store := newTestStore(t, newTestDatabase(t))

	byUID, err := store.FindByUID(context.Background(), "github", "missing")
	if err != nil || byUID != nil {
		t.Fatalf("expected nil result without error, got %+v, %v", byUID, err)
	}
	byID, err := store.FindByID(context.Background(), 99)
	if err != nil || byID != nil {
		t.Fatalf("expected nil result without error, got %+v, %v", byID, err)
	}
	noID, err := store.FindByID(context.Background(), 0)
	if err != nil || noID != nil {
		t.Fatalf("expected zero id to resolve to nil, got %+v, %v", noID, err)
	}
}

func TestStoreCreateDuplicateIdentityIsDistinguishable(t *testing.T) {
	store := newTestStore(t, newTestDatabase(t))
	if _, err := store.Create(context.Background(), adaAttributes()); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := store.Create(context.Background(), adaAttributes())
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate identity error, got %v", err)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("duplicate identity must not be reported as unavailable: %v", err)
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Op() != opCreate {
		t.Fatalf("expected store error for %s, got %v", opCreate, err)
	}

	all, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(all))
	}
}

func TestStoreSameUIDDifferentProviderIsAllowed(t *testing.T) {
	store := newTestStore(t, newTestDatabase(t))
	if _, err := store.Create(context.Background(), adaAttributes()); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	other := adaAttributes()
	other.Provider = "gitlab"
	if _, err := store.Create(context.Background(), other); err != nil {
		t.Fatalf("expected distinct provider to be accepted: %v", err)
	}
}

func TestStoreCreateRejectsMissingIdentity(t *testing.T) {
	store := newTestStore(t, newTestDatabase(t))
	_, err := store.Create(context.Background(), Attributes{Provider: "github", UID: "  "})
	if !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity error, got %v", err)
	}
}

func TestStoreListAllKeepsInsertionOrder(t *testing.T) {
	store := newTestStore(t, newTestDatabase(t))
	for _, uid := range []string{"3", "1", "2"} {
		attrs := Attributes{UID: uid, Provider: "github"}
		if _, err := store.Create(context.Background(), attrs); err != nil {
			t.Fatalf("create %s failed: %v", uid, err)
		}
	}

	all, err := store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected three users, got %d", len(all))
	}
	for index, want := range []string{"3", "1", "2"} {
		if all[index].UID != want {
			t.Fatalf("position %d: expected uid %s, got %s", index, want, all[index].UID)
		}
		if all[index].Email != nil {
			t.Fatalf("expected absent email to stay nil")
		}
	}
}

func TestStoreReportsUnavailableDatabase(t *testing.T) {
	db := newTestDatabase(t)
	store := newTestStore(t, db)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("failed to close sql db: %v", err)
	}

	if _, err := store.FindByID(context.Background(), 1); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected unavailable error from find by id, got %v", err)
	}
	if _, err := store.Create(context.Background(), adaAttributes()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected unavailable error from create, got %v", err)
	}
	if _, err := store.ListAll(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected unavailable error from list, got %v", err)
	}
}

func TestNewStoreRequiresDatabase(t *testing.T) {
	if _, err := NewStore(StoreConfig{}); !errors.Is(err, errMissingDatabase) {
		t.Fatalf("expected missing database error, got %v", err)
	}
}
