package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/service"
)

// memoryStore backs both the user and the profile repository.
type memoryStore struct {
	mu            sync.Mutex
	users         map[string]*domain.User
	subscriptions []domain.Subscription
	nextID        int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]*domain.User)}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.WatchHistory = append([]string{}, u.WatchHistory...)
	return &c
}

func (m *memoryStore) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	m.nextID++
	stored := copyUser(user)
	stored.ID = fmt.Sprintf("user-%d", m.nextID)
	m.users[stored.ID] = stored
	return copyUser(stored), nil
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *memoryStore) FindByIdentifier(_ context.Context, username, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memoryStore) mutate(id string, fn func(u *domain.User) error) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	return copyUser(u), nil
}

func (m *memoryStore) SetRefreshTokenHash(_ context.Context, id, hash string) error {
	_, err := m.mutate(id, func(u *domain.User) error { u.RefreshTokenHash = hash; return nil })
	return err
}

func (m *memoryStore) SwapRefreshTokenHash(_ context.Context, id, previous, next string) error {
	_, err := m.mutate(id, func(u *domain.User) error {
		if u.RefreshTokenHash != previous {
			return domain.ErrSessionSlotMismatch
		}
		u.RefreshTokenHash = next
		return nil
	})
	return err
}

func (m *memoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	_, err := m.mutate(id, func(u *domain.User) error { u.PasswordHash = hash; return nil })
	return err
}

func (m *memoryStore) UpdateAccount(_ context.Context, id, fullName, email string) (*domain.User, error) {
	return m.mutate(id, func(u *domain.User) error { u.FullName, u.Email = fullName, email; return nil })
}

func (m *memoryStore) UpdateAvatar(_ context.Context, id, url string) (*domain.User, error) {
	return m.mutate(id, func(u *domain.User) error { u.Avatar = url; return nil })
}

func (m *memoryStore) UpdateCoverImage(_ context.Context, id, url string) (*domain.User, error) {
	return m.mutate(id, func(u *domain.User) error { u.CoverImage = &url; return nil })
}

func (m *memoryStore) ChannelProfile(_ context.Context, viewerID, username string) (*domain.ChannelProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username != username {
			continue
		}
		p := &domain.ChannelProfile{ID: u.ID, FullName: u.FullName, Username: u.Username, Email: u.Email, Avatar: u.Avatar, CoverImage: u.CoverImage}
		for _, s := range m.subscriptions {
			if s.Channel == u.ID {
				p.SubscribersCount++
				if s.Subscriber == viewerID {
					p.IsSubscribed = true
				}
			}
			if s.Subscriber == u.ID {
				p.ChannelsSubscribedToCount++
			}
		}
		return p, nil
	}
	return nil, domain.ErrChannelNotFound
}

func (m *memoryStore) WatchHistory(_ context.Context, userID string) ([]domain.VideoView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	videos := make([]domain.VideoView, 0, len(u.WatchHistory))
	for _, id := range u.WatchHistory {
		videos = append(videos, domain.VideoView{ID: id})
	}
	return videos, nil
}

func (m *memoryStore) subscribe(subscriberID, channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, domain.Subscription{Subscriber: subscriberID, Channel: channelID})
}

type memoryMedia struct{}

func (memoryMedia) Upload(_ context.Context, kind string, file domain.Upload) (string, error) {
	return "https://cdn.example.com/" + kind + "/" + file.Filename, nil
}

func (memoryMedia) Delete(context.Context, string) error { return nil }

const testOrigin = "http://localhost:3000"

func newTestServer(t *testing.T) (*echo.Echo, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	log := zerolog.Nop()

	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    24 * time.Hour,
	})
	creds := service.NewCredentialStore(store, memoryMedia{}, nil, log)

	e := NewRouter(RouterConfig{
		CORSOrigin:     testOrigin,
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     24 * time.Hour,
		MaxUploadBytes: 1 << 20,
	}, Dependencies{
		Accounts: creds,
		Sessions: service.NewSessionService(creds, tokens, nil, log),
		Guard:    service.NewSessionGuard(tokens, creds),
		Profiles: service.NewProfileAggregator(store, log),
		Checks:   map[string]handler.DependencyCheck{},
	}, log)
	return e, store
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func do(t *testing.T, e *echo.Echo, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json from %s %s: %v (%s)", req.Method, req.URL.Path, err, rec.Body.String())
	}
	return rec.Code, env
}

func registerReq(t *testing.T, username, email string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"fullName": "Test " + username, "email": email, "username": username, "password": "secret-" + username} {
		_ = w.WriteField(k, v)
	}
	fw, err := w.CreateFormFile("avatar", username+".png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("png"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func jsonReq(method, path, body, bearer string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func register(t *testing.T, e *echo.Echo, username string) string {
	t.Helper()
	code, env := do(t, e, registerReq(t, username, username+"@example.com"))
	if code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, code, env.Message)
	}
	var user struct {
		ID string `json:"_id"`
	}
	_ = json.Unmarshal(env.Data, &user)
	return user.ID
}

func login(t *testing.T, e *echo.Echo, username string) domain.TokenPair {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, "secret-"+username)
	code, env := do(t, e, jsonReq(http.MethodPost, "/api/v1/users/login", body, ""))
	if code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, code, env.Message)
	}
	var pair domain.TokenPair
	_ = json.Unmarshal(env.Data, &pair)
	return pair
}

func TestAPI_SessionLifecycle(t *testing.T) {
	e, store := newTestServer(t)

	aliceID := register(t, e, "alice")
	original := login(t, e, "alice")

	code, env := do(t, e, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", fmt.Sprintf(`{"refreshToken":%q}`, original.RefreshToken), ""))
	if code != http.StatusOK {
		t.Fatalf("refresh: %d %s", code, env.Message)
	}
	var rotated domain.TokenPair
	_ = json.Unmarshal(env.Data, &rotated)
	if rotated.RefreshToken == "" || rotated.RefreshToken == original.RefreshToken {
		t.Fatalf("expected a different refresh token")
	}

	code, env = do(t, e, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", fmt.Sprintf(`{"refreshToken":%q}`, original.RefreshToken), ""))
	if code != http.StatusUnauthorized || env.Success || env.Message != domain.ErrRefreshRejected.Error() {
		t.Fatalf("reused refresh token: %d %+v", code, env)
	}

	for _, name := range []string{"bob", "carol", "dave"} {
		store.subscribe(register(t, e, name), aliceID)
	}

	code, env = do(t, e, jsonReq(http.MethodGet, "/api/v1/users/channel/alice", "", rotated.AccessToken))
	if code != http.StatusOK {
		t.Fatalf("channel: %d %s", code, env.Message)
	}
	var profile domain.ChannelProfile
	_ = json.Unmarshal(env.Data, &profile)
	if profile.SubscribersCount != 3 || profile.IsSubscribed {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	code, _ = do(t, e, jsonReq(http.MethodPost, "/api/v1/users/logout", "", rotated.AccessToken))
	if code != http.StatusOK {
		t.Fatalf("logout: %d", code)
	}
	code, _ = do(t, e, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", fmt.Sprintf(`{"refreshToken":%q}`, rotated.RefreshToken), ""))
	if code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: %d", code)
	}
}

func TestAPI_RegisterConflict(t *testing.T) {
	e, _ := newTestServer(t)
	register(t, e, "alice")

	code, env := do(t, e, registerReq(t, "alice", "other@example.com"))
	if code != http.StatusConflict || env.Message != domain.ErrUserExists.Error() {
		t.Fatalf("expected 409, got %d %+v", code, env)
	}
}

func TestAPI_LoginErrors(t *testing.T) {
	e, _ := newTestServer(t)
	register(t, e, "alice")

	code, _ := do(t, e, jsonReq(http.MethodPost, "/api/v1/users/login", `{"username":"alice","password":"wrong"}`, ""))
	if code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", code)
	}
	code, _ = do(t, e, jsonReq(http.MethodPost, "/api/v1/users/login", `{"username":"nobody","password":"x"}`, ""))
	if code != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", code)
	}
	code, env := do(t, e, jsonReq(http.MethodPost, "/api/v1/users/login", `{"password":"x"}`, ""))
	if code != http.StatusBadRequest || len(env.Errors) == 0 {
		t.Fatalf("no identifier: expected 400 with details, got %d %+v", code, env)
	}
}

func TestAPI_ProtectedRoutesRequireToken(t *testing.T) {
	e, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/users/current-user", "/api/v1/users/watch-history", "/api/v1/users/channel/alice"} {
		code, env := do(t, e, jsonReq(http.MethodGet, path, "", ""))
		if code != http.StatusUnauthorized || env.Success || (env.Data != nil && string(env.Data) != "null") {
			t.Fatalf("%s: expected 401 envelope, got %d %+v", path, code, env)
		}
	}
}

func TestAPI_CurrentUserAndChannelNotFound(t *testing.T) {
	e, _ := newTestServer(t)
	aliceID := register(t, e, "alice")
	pair := login(t, e, "alice")

	code, env := do(t, e, jsonReq(http.MethodGet, "/api/v1/users/current-user", "", pair.AccessToken))
	if code != http.StatusOK {
		t.Fatalf("current-user: %d", code)
	}
	var user map[string]any
	_ = json.Unmarshal(env.Data, &user)
	if user["_id"] != aliceID {
		t.Fatalf("unexpected user: %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatalf("password leaked")
	}

	code, _ = do(t, e, jsonReq(http.MethodGet, "/api/v1/users/channel/ghost", "", pair.AccessToken))
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestAPI_HealthProbes(t *testing.T) {
	e, _ := newTestServer(t)

	for _, path := range []string{"/health", "/health/ready"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestAPI_CORSAllowsConfiguredOriginWithCredentials(t *testing.T) {
	e, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderOrigin, testOrigin)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != testOrigin {
		t.Fatalf("allow-origin = %q, want %q", got, testOrigin)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowCredentials); got != "true" {
		t.Fatalf("allow-credentials = %q, want true", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Fatalf("foreign origin must not be allowed, got %q", got)
	}
}

func TestMultipartLimit(t *testing.T) {
	if got := multipartLimit(1024); got != "66K" {
		t.Fatalf("unexpected limit %q", got)
	}
	if got := multipartLimit(0); got != "10M" {
		t.Fatalf("unexpected default %q", got)
	}
}
