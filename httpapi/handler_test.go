package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	advancedauth "github.com/DevDad-Main/advanced-auth"
	"github.com/DevDad-Main/advanced-auth/logging"
	"github.com/DevDad-Main/advanced-auth/password"
)

type stubDirectory struct {
	mu      sync.Mutex
	byEmail map[string]advancedauth.UserRecord
	byID    map[string]advancedauth.UserRecord
	nextID  int
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		byEmail: make(map[string]advancedauth.UserRecord),
		byID:    make(map[string]advancedauth.UserRecord),
	}
}

func (s *stubDirectory) FindByEmail(_ context.Context, email string) (advancedauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byEmail[email]
	if !ok {
		return advancedauth.UserRecord{}, advancedauth.ErrUserNotFound
	}
	return user, nil
}

func (s *stubDirectory) FindByID(_ context.Context, id string) (advancedauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return advancedauth.UserRecord{}, advancedauth.ErrUserNotFound
	}
	return user, nil
}

func (s *stubDirectory) Create(_ context.Context, user advancedauth.NewUser) (advancedauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return advancedauth.UserRecord{}, advancedauth.ErrEmailTaken
	}
	s.nextID++
	record := advancedauth.UserRecord{
		ID:           "u" + strconv.Itoa(s.nextID),
		Email:        user.Email,
		FullName:     user.FullName,
		PasswordHash: user.PasswordHash,
		Verified:     user.Verified,
		CreatedAt:    time.Now(),
	}
	s.byEmail[record.Email] = record
	s.byID[record.ID] = record
	return record, nil
}

type stubRefreshStore struct {
	mu      sync.Mutex
	records map[[32]byte]advancedauth.RefreshTokenRecord
}

func newStubRefreshStore() *stubRefreshStore {
	return &stubRefreshStore{records: make(map[[32]byte]advancedauth.RefreshTokenRecord)}
}

func (s *stubRefreshStore) Create(_ context.Context, userID string, hash [32]byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[hash] = advancedauth.RefreshTokenRecord{
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *stubRefreshStore) Consume(_ context.Context, hash [32]byte) (advancedauth.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[hash]
	if !ok {
		return advancedauth.RefreshTokenRecord{}, advancedauth.ErrRefreshInvalid
	}
	delete(s.records, hash)
	return record, nil
}

func (s *stubRefreshStore) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for hash, record := range s.records {
		if record.UserID == userID {
			delete(s.records, hash)
			deleted++
		}
	}
	return deleted, nil
}

func (s *stubRefreshStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for hash, record := range s.records {
		if now.After(record.ExpiresAt) {
			delete(s.records, hash)
			deleted++
		}
	}
	return deleted, nil
}

type stubMailer struct {
	mu     sync.Mutex
	bodies []string
}

func (m *stubMailer) Send(_ context.Context, _, _, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, htmlBody)
	return nil
}

var codePattern = regexp.MustCompile(`">([0-9]+)</p>`)

func (m *stubMailer) lastCode(t *testing.T) string {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.bodies, "no mail was sent")
	match := codePattern.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	require.NotNil(t, match, "no otp code in mail body")
	return match[1]
}

type testServer struct {
	handler *Handler
	mux     http.Handler
	mailer  *stubMailer
}

func newTestServer(t *testing.T, throttleBurst int) *testServer {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	cfg := advancedauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "test"
	cfg.Password.Hash = password.Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	if throttleBurst > 0 {
		cfg.Throttle.Burst = throttleBurst
		cfg.Throttle.RefillPerSecond = 0.01
	} else {
		cfg.Throttle.Enabled = false
	}

	mailer := &stubMailer{}
	engine, err := advancedauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(newStubDirectory()).
		WithRefreshTokenStore(newStubRefreshStore()).
		WithMailer(mailer).
		Build()
	require.NoError(t, err)

	handler := New(engine, logging.Nop(), Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.Refresh.TTL,
	})

	return &testServer{
		handler: handler,
		mux:     handler.Routes(),
		mailer:  mailer,
	}
}

func (ts *testServer) post(t *testing.T, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.RemoteAddr = "10.0.0.1:50000"
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var out map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestFullRegistrationAndSessionFlow(t *testing.T) {
	ts := newTestServer(t, 0)

	rec := ts.post(t, "/auth/register", map[string]string{
		"email":     "Alice@Example.com",
		"firstName": "Alice",
		"lastName":  "Smith",
		"password":  "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody(t, rec)["registrationToken"]
	require.NotEmpty(t, token)

	code := ts.mailer.lastCode(t)

	// A wrong code burns an attempt and reports 400.
	wrong := "0000"
	if code == wrong {
		wrong = "1111"
	}
	rec = ts.post(t, "/auth/verify", map[string]string{
		"registrationToken": token,
		"otp":               wrong,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.post(t, "/auth/verify", map[string]string{
		"registrationToken": token,
		"otp":               code,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "alice@example.com", decodeBody(t, rec)["email"])

	rec = ts.post(t, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	accessCookie := cookieByName(rec, "accessToken")
	refreshCookie := cookieByName(rec, "refreshToken")
	require.NotNil(t, accessCookie)
	require.NotNil(t, refreshCookie)
	require.True(t, accessCookie.HttpOnly)
	require.True(t, refreshCookie.HttpOnly)
	require.Equal(t, "/auth", refreshCookie.Path)

	rec = ts.post(t, "/auth/refresh", nil, refreshCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := cookieByName(rec, "refreshToken")
	require.NotNil(t, rotated)
	require.NotEqual(t, refreshCookie.Value, rotated.Value)

	// The rotated-away token is dead.
	rec = ts.post(t, "/auth/refresh", nil, refreshCookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.post(t, "/auth/logout", nil, rotated)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := cookieByName(rec, "refreshToken")
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)

	rec = ts.post(t, "/auth/refresh", nil, rotated)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t, 0)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"firstName": "A", "password": "correct-horse-battery"}},
		{"bad email", map[string]string{"email": "not-an-email", "firstName": "A", "password": "correct-horse-battery"}},
		{"missing first name", map[string]string{"email": "a@example.com", "password": "correct-horse-battery"}},
		{"missing password", map[string]string{"email": "a@example.com", "firstName": "A"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.post(t, "/auth/register", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterRejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t, 0)

	rec := ts.post(t, "/auth/register", map[string]string{
		"email":     "a@example.com",
		"firstName": "A",
		"password":  "correct-horse-battery",
		"isAdmin":   "true",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailureStatusIsUniform(t *testing.T) {
	ts := newTestServer(t, 0)

	rec := ts.post(t, "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid credentials", decodeBody(t, rec)["error"])
}

func TestVerifyUnknownSessionReturns404(t *testing.T) {
	ts := newTestServer(t, 0)

	rec := ts.post(t, "/auth/verify", map[string]string{
		"registrationToken": strings.Repeat("A", 43),
		"otp":               "1234",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicateRegistrationReturns409(t *testing.T) {
	ts := newTestServer(t, 0)

	body := map[string]string{
		"email":     "alice@example.com",
		"firstName": "Alice",
		"password":  "correct-horse-battery",
	}

	rec := ts.post(t, "/auth/register", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody(t, rec)["registrationToken"]

	rec = ts.post(t, "/auth/verify", map[string]string{
		"registrationToken": token,
		"otp":               ts.mailer.lastCode(t),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.post(t, "/auth/register", body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestResendOTPRequiresToken(t *testing.T) {
	ts := newTestServer(t, 0)

	rec := ts.post(t, "/auth/resend-otp", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshWithoutTokenReturns401(t *testing.T) {
	ts := newTestServer(t, 0)

	rec := ts.post(t, "/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestThrottleRejectsBurst(t *testing.T) {
	ts := newTestServer(t, 2)

	body := map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	}

	for i := 0; i < 2; i++ {
		rec := ts.post(t, "/auth/login", body)
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}

	rec := ts.post(t, "/auth/login", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestThrottleIgnoresForwardedForByDefault(t *testing.T) {
	ts := newTestServer(t, 2)

	body := map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	}

	// Every request rotates X-Forwarded-For. Without TrustProxy the
	// bucket still keys on the peer address, so the burst runs out.
	throttled := 0
	for i := 0; i < 10; i++ {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))

		req := httptest.NewRequest(http.MethodPost, "/auth/login", &buf)
		req.RemoteAddr = "10.0.0.1:50000"
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i))

		rec := httptest.NewRecorder()
		ts.mux.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			throttled++
		}
	}

	require.Equal(t, 8, throttled)
}

func TestClientIPHonorsForwardedForOnlyBehindProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	direct := &Handler{config: Config{}}
	require.Equal(t, "10.0.0.1", direct.clientIP(req))

	proxied := &Handler{config: Config{TrustProxy: true}}
	require.Equal(t, "203.0.113.7", proxied.clientIP(req))
}

func TestRequireAuth(t *testing.T) {
	ts := newTestServer(t, 0)

	// Seed an account through the public flow.
	rec := ts.post(t, "/auth/register", map[string]string{
		"email":     "alice@example.com",
		"firstName": "Alice",
		"password":  "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody(t, rec)["registrationToken"]

	rec = ts.post(t, "/auth/verify", map[string]string{
		"registrationToken": token,
		"otp":               ts.mailer.lastCode(t),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.post(t, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieByName(rec, "accessToken")
	require.NotNil(t, access)

	var gotUserID string
	protected := ts.handler.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = r.Header.Get("X-User-ID")
		w.WriteHeader(http.StatusOK)
	}))

	// Valid token via the Authorization header.
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	out := httptest.NewRecorder()
	protected.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	require.NotEmpty(t, gotUserID)

	// No token.
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	out = httptest.NewRecorder()
	protected.ServeHTTP(out, req)
	require.Equal(t, http.StatusUnauthorized, out.Code)

	// Garbage token.
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	out = httptest.NewRecorder()
	protected.ServeHTTP(out, req)
	require.Equal(t, http.StatusUnauthorized, out.Code)
}
