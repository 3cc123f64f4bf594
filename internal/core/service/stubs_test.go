package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
)

var nopLog = zerolog.Nop()

type stubUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int
	// failFind, when set, is returned by every lookup.
	failFind error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.WatchHistory = append([]string(nil), u.WatchHistory...)
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	stored := cloneUser(user)
	stored.ID = fmt.Sprintf("u%d", r.nextID)
	r.users[stored.ID] = stored
	return cloneUser(stored), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFind != nil {
		return nil, r.failFind
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByIdentifier(_ context.Context, username, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFind != nil {
		return nil, r.failFind
	}
	for _, u := range r.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) SetRefreshTokenHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RefreshTokenHash = hash
	return nil
}

func (r *stubUserRepo) SwapRefreshTokenHash(_ context.Context, id, previous, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.RefreshTokenHash != previous {
		return domain.ErrSessionSlotMismatch
	}
	u.RefreshTokenHash = next
	return nil
}

func (r *stubUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *stubUserRepo) update(id string, fn func(u *domain.User)) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	fn(u)
	return cloneUser(u), nil
}

func (r *stubUserRepo) UpdateAccount(_ context.Context, id, fullName, email string) (*domain.User, error) {
	return r.update(id, func(u *domain.User) {
		u.FullName = fullName
		u.Email = email
	})
}

func (r *stubUserRepo) UpdateAvatar(_ context.Context, id, url string) (*domain.User, error) {
	return r.update(id, func(u *domain.User) { u.Avatar = url })
}

func (r *stubUserRepo) UpdateCoverImage(_ context.Context, id, url string) (*domain.User, error) {
	return r.update(id, func(u *domain.User) { u.CoverImage = &url })
}

func (r *stubUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *stubUserRepo) slot(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u.RefreshTokenHash
	}
	return ""
}

type stubMedia struct {
	uploads []string
	err     error
}

func (m *stubMedia) Delete(context.Context, string) error { return nil }

type stubCleaner struct {
	discarded []string
}

func (c *stubCleaner) Discard(_ string, url string) {
	c.discarded = append(c.discarded, url)
}

func (m *stubMedia) Upload(_ context.Context, kind string, file domain.Upload) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.uploads = append(m.uploads, kind)
	return "https://cdn.example.com/" + kind + "/" + file.Filename, nil
}

func testUpload(name string) *domain.Upload {
	return &domain.Upload{Filename: name, ContentType: "image/png", Size: 3, Body: bytes.NewReader([]byte("png"))}
}

// newTestStore returns a credential store with a cheap bcrypt cost.
func newTestStore(repo *stubUserRepo, media *stubMedia) *CredentialStore {
	s := NewCredentialStore(repo, media, nil, nopLog)
	s.bcryptCost = bcrypt.MinCost
	return s
}

func aliceInput() ports.RegisterInput {
	return ports.RegisterInput{
		FullName: "Alice Liddell",
		Email:    "Alice@Example.com",
		Username: "Alice",
		Password: "wonderland",
		Avatar:   testUpload("alice.png"),
	}
}

func registerAlice(t testing.TB, s *CredentialStore) *domain.User {
	t.Helper()
	user, err := s.Register(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	return user
}

var errBoom = errors.New("boom")
