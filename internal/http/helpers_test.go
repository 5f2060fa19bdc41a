package http_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tazhibayda/account-service/internal/config"
	"github.com/tazhibayda/account-service/internal/domain"
	api "github.com/tazhibayda/account-service/internal/http"
	"github.com/tazhibayda/account-service/internal/repo"
)

// fakeStore is an in-memory stand-in for the Mongo store, mirroring its
// contract: sentinel errors, unique email, credential fields stripped from
// default reads, atomic reset-token consumption.
type fakeStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[primitive.ObjectID]*domain.User{}}
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }

func stripSecrets(u domain.User) *domain.User {
	u.PasswordHash = ""
	u.ResetTokenHash = ""
	u.ResetExpiresAt = nil
	return &u
}

func (s *fakeStore) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.users {
		if e.Email == u.Email {
			return repo.ErrDuplicateEmail
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeStore) byEmail(email string) *domain.User {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *fakeStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byEmail(email); u != nil {
		return stripSecrets(*u), nil
	}
	return nil, repo.ErrNotFound
}

func (s *fakeStore) FindUserByEmailWithPassword(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byEmail(email); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, repo.ErrNotFound
}

func (s *fakeStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return stripSecrets(*u), nil
	}
	return nil, repo.ErrNotFound
}

func (s *fakeStore) FindUserByIDWithPassword(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repo.ErrNotFound
}

func (s *fakeStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, set bson.M) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if email, ok := set["email"].(string); ok {
		if other := s.byEmail(email); other != nil && other.ID != id {
			return nil, repo.ErrDuplicateEmail
		}
		u.Email = email
	}
	if name, ok := set["name"].(string); ok {
		u.Name = name
	}
	if url, ok := set["avatar_url"].(string); ok {
		u.AvatarURL = url
	}
	u.UpdatedAt = time.Now().UTC()
	return stripSecrets(*u), nil
}

func (s *fakeStore) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *fakeStore) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	exp := expiresAt.UTC()
	u.ResetTokenHash = tokenHash
	u.ResetExpiresAt = &exp
	return nil
}

func (s *fakeStore) ResetPasswordByTokenHash(ctx context.Context, tokenHash, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, u := range s.users {
		if u.ResetTokenHash == tokenHash && u.ResetExpiresAt != nil && u.ResetExpiresAt.After(now) {
			u.PasswordHash = passwordHash
			u.ResetTokenHash = ""
			u.ResetExpiresAt = nil
			return stripSecrets(*u), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *fakeStore) DeleteUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	delete(s.users, id)
	cp := *u
	return &cp, nil
}

// expireReset backdates the stored reset pair.
func (s *fakeStore) expireReset(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byEmail(email); u != nil && u.ResetExpiresAt != nil {
		past := time.Now().Add(-time.Minute).UTC()
		u.ResetExpiresAt = &past
	}
}

type fakeMedia struct {
	mu      sync.Mutex
	n       int
	deletes []string
}

func (m *fakeMedia) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return fmt.Sprintf("http://media.local/avatars/obj-%d", m.n), nil
}

func (m *fakeMedia) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	return nil
}

func (m *fakeMedia) deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

type published struct {
	Key   string
	Event any
}

type fakePub struct{ ch chan published }

func newFakePub() *fakePub { return &fakePub{ch: make(chan published, 16)} }

func (p *fakePub) Publish(ctx context.Context, exchange, key string, event any, reqID string) error {
	p.ch <- published{Key: key, Event: event}
	return nil
}
func (p *fakePub) Close() error { return nil }

// wait returns the next published event with the given routing key.
func (p *fakePub) wait(t *testing.T, key string) any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-p.ch:
			if ev.Key == key {
				return ev.Event
			}
		case <-deadline:
			t.Fatalf("no %q event published", key)
			return nil
		}
	}
}

type testEnv struct {
	Router *gin.Engine
	Store  *fakeStore
	Media  *fakeMedia
	Events *fakePub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	med := &fakeMedia{}
	pub := newFakePub()

	cfg := &config.Config{
		JWTSecret:      "test_secret",
		AccessTTLMin:   60,
		ResetTTLMin:    15,
		RabbitExchange: "account.events",
	}
	h := api.NewHandler(store, med, pub, nil, cfg)
	return &testEnv{Router: api.NewRouter(h), Store: store, Media: med, Events: pub}
}

// doForm sends a urlencoded form body, as the profile PATCH accepts.
func (e *testEnv) doForm(method, path string, form url.Values, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	e.Router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *stdhttp.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	e.Router.ServeHTTP(w, req)
	return w
}

// signup posts a multipart signup form; empty field values are omitted so
// validation paths can be exercised.
func (e *testEnv) signup(t *testing.T, fields map[string]string, withAvatar bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if withAvatar {
		fw, err := mw.CreateFormFile("avatar", "avatar.png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte("\x89PNG fake image bytes")); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/users/signup", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	e.Router.ServeHTTP(w, req)
	return w
}

func validSignup(email string) map[string]string {
	return map[string]string{
		"name":     "John",
		"email":    email,
		"password": "Secret1!",
		"role":     "student",
		"bio":      "hello there",
	}
}
