package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
	"github.com/videotube/account-service/internal/pkg/metrics"
)

// dummyHash is compared against when no user matches, so a missing account
// costs the same bcrypt work as a wrong password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// CredentialStore owns user records, password hashing and the refresh slot.
type CredentialStore struct {
	repo       ports.UserRepository
	media      ports.MediaStore
	cleaner    ports.MediaCleaner
	log        zerolog.Logger
	bcryptCost int
}

// NewCredentialStore wires the store. cleaner may be nil, in which case
// replaced images are left in the bucket.
func NewCredentialStore(repo ports.UserRepository, media ports.MediaStore, cleaner ports.MediaCleaner, log zerolog.Logger) *CredentialStore {
	return &CredentialStore{
		repo:       repo,
		media:      media,
		cleaner:    cleaner,
		log:        log,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Register creates a new account. Username and email are lowercased and must
// both be unused. Images are uploaded only once the account is known to be new.
func (s *CredentialStore) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))

	var problems []string
	if fullName == "" {
		problems = append(problems, "fullName is required")
	}
	if email == "" {
		problems = append(problems, "email is required")
	}
	if username == "" {
		problems = append(problems, "username is required")
	}
	if strings.TrimSpace(in.Password) == "" {
		problems = append(problems, "password is required")
	}
	if in.Avatar == nil {
		problems = append(problems, "avatar file is required")
	}
	if len(problems) > 0 {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError(problems...)
	}

	if _, err := s.repo.FindByIdentifier(ctx, username, email); err == nil {
		metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("hash password: %w", err)
	}

	avatarURL, err := s.media.Upload(ctx, domain.MediaAvatar, *in.Avatar)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	var coverURL *string
	if in.CoverImage != nil {
		url, err := s.media.Upload(ctx, domain.MediaCoverImage, *in.CoverImage)
		if err != nil {
			s.discard(username, avatarURL)
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("upload cover image: %w", err)
		}
		coverURL = &url
	}

	now := time.Now().UTC()
	created, err := s.repo.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		WatchHistory: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		s.discard(username, avatarURL)
		if coverURL != nil {
			s.discard(username, *coverURL)
		}
		if errors.Is(err, domain.ErrUserExists) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("user_id", created.ID).Str("username", created.Username).Msg("user registered")
	return created.Safe(), nil
}

// VerifyCredentials finds the user by username OR email and checks the password.
// The returned user still carries its secrets; callers hand out Safe() copies.
func (s *CredentialStore) VerifyCredentials(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" && email == "" {
		return nil, domain.NewValidationError("username or email is required")
	}
	if password == "" {
		return nil, domain.NewValidationError("password is required")
	}

	user, findErr := s.repo.FindByIdentifier(ctx, username, email)
	if findErr != nil && !errors.Is(findErr, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("verify credentials: %w", findErr)
	}

	hash := dummyHash
	if findErr == nil {
		hash = user.PasswordHash
	}
	cmpErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	if findErr != nil {
		return nil, domain.ErrUserNotFound
	}
	if cmpErr != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// FindUser loads the full record, secrets included.
func (s *CredentialStore) FindUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// CurrentUser returns the safe view of the user.
func (s *CredentialStore) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Safe(), nil
}

// SetRefreshToken overwrites the refresh slot. An empty token ends the session.
func (s *CredentialStore) SetRefreshToken(ctx context.Context, userID, token string) error {
	hash := ""
	if token != "" {
		hash = refreshDigest(token)
	}
	return s.repo.SetRefreshTokenHash(ctx, userID, hash)
}

// RotateRefreshToken replaces previous with next in a single conditional write.
func (s *CredentialStore) RotateRefreshToken(ctx context.Context, userID, previous, next string) error {
	if previous == "" || next == "" {
		return domain.ErrSessionSlotMismatch
	}
	return s.repo.SwapRefreshTokenHash(ctx, userID, refreshDigest(previous), refreshDigest(next))
}

// MatchesRefreshToken reports whether token is the one held in the user's
// refresh slot. A user without a session matches nothing.
func (s *CredentialStore) MatchesRefreshToken(user *domain.User, token string) bool {
	if !user.HasSession() || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(refreshDigest(token)), []byte(user.RefreshTokenHash)) == 1
}

// ChangePassword rehashes the password once the old one verifies.
func (s *CredentialStore) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return domain.NewValidationError("oldPassword and newPassword are required")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.log.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

// UpdateAccount changes the display name and email of the user.
func (s *CredentialStore) UpdateAccount(ctx context.Context, userID, fullName, email string) (*domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" {
		return nil, domain.NewValidationError("fullName and email are required")
	}

	user, err := s.repo.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		return nil, err
	}
	return user.Safe(), nil
}

// UpdateAvatar uploads a new avatar for the user and stores its URL. The
// previous image is handed to the cleaner once the record points elsewhere.
func (s *CredentialStore) UpdateAvatar(ctx context.Context, userID string, file *domain.Upload) (*domain.User, error) {
	if file == nil {
		return nil, domain.NewValidationError("avatar file is required")
	}
	current, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.media.Upload(ctx, domain.MediaAvatar, *file)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	user, err := s.repo.UpdateAvatar(ctx, userID, url)
	if err != nil {
		s.discard(userID, url)
		return nil, err
	}

	if current.Avatar != url {
		s.discard(userID, current.Avatar)
	}
	return user.Safe(), nil
}

// UpdateCoverImage uploads a new cover image for the user and stores its URL.
func (s *CredentialStore) UpdateCoverImage(ctx context.Context, userID string, file *domain.Upload) (*domain.User, error) {
	if file == nil {
		return nil, domain.NewValidationError("cover image file is required")
	}
	current, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.media.Upload(ctx, domain.MediaCoverImage, *file)
	if err != nil {
		return nil, fmt.Errorf("upload cover image: %w", err)
	}
	user, err := s.repo.UpdateCoverImage(ctx, userID, url)
	if err != nil {
		s.discard(userID, url)
		return nil, err
	}

	if current.CoverImage != nil && *current.CoverImage != url {
		s.discard(userID, *current.CoverImage)
	}
	return user.Safe(), nil
}

func (s *CredentialStore) discard(userID, url string) {
	if s.cleaner == nil || url == "" {
		return
	}
	s.cleaner.Discard(userID, url)
}

// refreshDigest is what the slot stores instead of the raw refresh token.
func refreshDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
