package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/api/cookie"
	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
	"github.com/99minutos/accounts-api/internal/core/service"
	"github.com/99minutos/accounts-api/internal/infrastructure/config"
	"github.com/99minutos/accounts-api/internal/infrastructure/hasher"
)

// memRepo is an in-memory credential store with the same uniqueness rules
// as the Mongo repository.
type memRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	seq      int
}

func newMemRepo() *memRepo {
	return &memRepo{accounts: make(map[string]*domain.Account)}
}

func (r *memRepo) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.accounts {
		if other.Username == a.Username || other.Email == a.Email {
			return nil, domain.ErrDuplicateAccount
		}
	}
	r.seq++
	clone := *a
	clone.ID = fmt.Sprintf("acc-%d", r.seq)
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	r.accounts[clone.Username] = &clone
	out := clone
	return &out, nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			out := *a
			return &out, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memRepo) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *a
	return &out, nil
}

func (r *memRepo) ListUsernames(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.accounts))
	for name := range r.accounts {
		names = append(names, name)
	}
	return names, nil
}

func (r *memRepo) Update(_ context.Context, username string, ch ports.AccountChanges) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if ch.Email != nil {
		for _, other := range r.accounts {
			if other.Username != username && other.Email == *ch.Email {
				return nil, domain.ErrDuplicateAccount
			}
		}
		a.Email = *ch.Email
	}
	if ch.PasswordHash != nil {
		a.PasswordHash = *ch.PasswordHash
	}
	if ch.Role != nil {
		a.Role = *ch.Role
	}
	a.UpdatedAt = time.Now().UTC()
	out := *a
	return &out, nil
}

func (r *memRepo) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[username]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.accounts, username)
	return nil
}

func (r *memRepo) setRole(username string, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[username].Role = role
}

func (r *memRepo) remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, username)
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	repo   *memRepo
	tokens *service.TokenService
}

func newTestConfig(env string) *config.Config {
	return &config.Config{
		Env:        env,
		APIPrefix:  "/api",
		AppVersion: "1.0.0",
		RateLimit: config.RateLimitConfig{
			Enabled:          true,
			MaxRequests:      100,
			LoginMaxRequests: 5,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, deps func(*Deps)) *testServer {
	t.Helper()

	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	repo := newMemRepo()
	h := hasher.NewArgon2(hasher.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1}, nil)
	log := zerolog.Nop()

	d := Deps{
		Config:   cfg,
		Log:      log,
		Accounts: service.NewAccountService(repo, h, tokens, log),
		Sessions: service.NewSessionService(tokens, repo, log),
		Database: okPinger{},
	}
	if deps != nil {
		deps(&d)
	}

	srv := httptest.NewServer(NewRouter(d))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, repo: repo, tokens: tokens}
}

type response struct {
	status  int
	body    map[string]any
	cookies map[string]*http.Cookie
}

func (s *testServer) do(method, path, body string, cookies ...*http.Cookie) response {
	s.t.Helper()

	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	if err != nil {
		s.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	res, err := s.srv.Client().Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	out := response{status: res.StatusCode, cookies: map[string]*http.Cookie{}}
	_ = json.NewDecoder(res.Body).Decode(&out.body)
	for _, ck := range res.Cookies() {
		out.cookies[ck.Name] = ck
	}
	return out
}

func (s *testServer) register(username string) {
	s.t.Helper()
	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"secret1"}`, username, username)
	if r := s.do(http.MethodPost, "/api/users", body); r.status != http.StatusCreated {
		s.t.Fatalf("register %s: status %d body %v", username, r.status, r.body)
	}
}

func (s *testServer) login(username string) (access, refresh *http.Cookie) {
	s.t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":"secret1"}`, username)
	r := s.do(http.MethodPost, "/api/login", body)
	if r.status != http.StatusOK {
		s.t.Fatalf("login %s: status %d body %v", username, r.status, r.body)
	}
	access, refresh = r.cookies[cookie.AccessName], r.cookies[cookie.RefreshName]
	if access == nil || refresh == nil {
		s.t.Fatalf("login %s: missing cookies %v", username, r.cookies)
	}
	return access, refresh
}

func TestRouter_RegistrationAndLogin(t *testing.T) {
	s := newTestServer(t, newTestConfig("test"), nil)

	r := s.do(http.MethodPost, "/api/users", `{"username":" newuser ","email":"New@Test.com","password":"secret1"}`)
	if r.status != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", r.status, r.body)
	}
	user := r.body["user"].(map[string]any)
	if user["username"] != "newuser" || user["email"] != "new@test.com" || user["role"] != "user" {
		t.Fatalf("unexpected user %v", user)
	}
	if _, ok := user["password"]; ok {
		t.Fatalf("password rendered")
	}
	if len(r.cookies) != 0 {
		t.Fatalf("registration must not set cookies")
	}

	r = s.do(http.MethodPost, "/api/users", `{"username":"other","email":"new@test.com","password":"secret1"}`)
	if r.status != http.StatusBadRequest || r.body["error"] != "user with this email or username already exists" {
		t.Fatalf("expected duplicate 400, got %d %v", r.status, r.body)
	}

	r = s.do(http.MethodPost, "/api/users", `{"username":"x","email":"x@test.com","password":"123"}`)
	if r.status != http.StatusBadRequest || !strings.Contains(r.body["error"].(string), "at least 6") {
		t.Fatalf("expected short password 400, got %d %v", r.status, r.body)
	}

	r = s.do(http.MethodPost, "/api/login", `{"username":"newuser","password":"wrong-pass"}`)
	if r.status != http.StatusUnauthorized || r.body["error"] != "invalid credentials" {
		t.Fatalf("expected 401 invalid credentials, got %d %v", r.status, r.body)
	}

	access, refresh := s.login("newuser")
	if !access.HttpOnly || access.SameSite != http.SameSiteStrictMode || access.Secure {
		t.Fatalf("unexpected access cookie attributes %+v", access)
	}
	if !refresh.Expires.After(access.Expires) {
		t.Fatalf("refresh cookie should outlive access cookie")
	}
}

func TestRouter_AuthenticationStates(t *testing.T) {
	s := newTestServer(t, newTestConfig("test"), nil)
	s.register("alice")
	s.register("bob")
	access, refresh := s.login("alice")

	r := s.do(http.MethodGet, "/api/users", "")
	if r.status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookies, got %d", r.status)
	}

	r = s.do(http.MethodGet, "/api/users", "", access)
	if r.status != http.StatusOK || r.body["count"] != float64(2) {
		t.Fatalf("expected 2 users, got %d %v", r.status, r.body)
	}
	if len(r.cookies) != 0 {
		t.Fatalf("valid access token must not be renewed")
	}

	r = s.do(http.MethodGet, "/api/users/bob", "", refresh)
	if r.status != http.StatusOK {
		t.Fatalf("expected 200 with refresh only, got %d %v", r.status, r.body)
	}
	renewed := r.cookies[cookie.AccessName]
	if renewed == nil || renewed.Value == "" {
		t.Fatalf("expected renewed access cookie, got %v", r.cookies)
	}
	if r := s.do(http.MethodGet, "/api/users/bob", "", renewed); r.status != http.StatusOK {
		t.Fatalf("renewed access cookie rejected: %d", r.status)
	}

	forged := &http.Cookie{Name: cookie.AccessName, Value: "forged.token.value"}
	if r := s.do(http.MethodGet, "/api/users", "", forged, refresh); r.status != http.StatusUnauthorized {
		t.Fatalf("forged access token must not fall back to refresh, got %d", r.status)
	}

	asAccess := &http.Cookie{Name: cookie.AccessName, Value: refresh.Value}
	if r := s.do(http.MethodGet, "/api/users", "", asAccess); r.status != http.StatusUnauthorized {
		t.Fatalf("refresh token accepted as access token, got %d", r.status)
	}

	if r := s.do(http.MethodGet, "/api/users/ghost", "", access); r.status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", r.status)
	}

	// Deleting the account invalidates its outstanding tokens.
	s.repo.remove("alice")
	if r := s.do(http.MethodGet, "/api/users", "", access); r.status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deleted account, got %d", r.status)
	}
}

func TestRouter_UpdateAndDeleteAuthorization(t *testing.T) {
	s := newTestServer(t, newTestConfig("test"), nil)
	s.register("admin")
	s.register("alice")
	s.register("bob")
	s.repo.setRole("admin", domain.RoleAdmin)

	aliceAccess, _ := s.login("alice")
	adminAccess, _ := s.login("admin")

	r := s.do(http.MethodPut, "/api/users/alice", `{"email":"Updated@Test.com"}`, aliceAccess)
	if r.status != http.StatusOK || r.body["user"].(map[string]any)["email"] != "updated@test.com" {
		t.Fatalf("self update failed: %d %v", r.status, r.body)
	}

	r = s.do(http.MethodPut, "/api/users/alice", `{"role":"admin"}`, aliceAccess)
	if r.status != http.StatusOK || r.body["user"].(map[string]any)["role"] != "user" {
		t.Fatalf("non-admin role change must be ignored: %d %v", r.status, r.body)
	}

	r = s.do(http.MethodPut, "/api/users/alice", `{"role":"superuser"}`, aliceAccess)
	if r.status != http.StatusBadRequest || !strings.Contains(r.body["error"].(string), "role") {
		t.Fatalf("expected invalid role 400, got %d %v", r.status, r.body)
	}

	if r := s.do(http.MethodPut, "/api/users/bob", `{"email":"x@test.com"}`, aliceAccess); r.status != http.StatusForbidden {
		t.Fatalf("expected 403 updating another user, got %d", r.status)
	}

	r = s.do(http.MethodPut, "/api/users/bob", `{"email":"admin-updated@test.com","role":"admin"}`, adminAccess)
	if r.status != http.StatusOK || r.body["user"].(map[string]any)["role"] != "admin" {
		t.Fatalf("admin update failed: %d %v", r.status, r.body)
	}

	if r := s.do(http.MethodDelete, "/api/users/bob", "", aliceAccess); r.status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin delete, got %d", r.status)
	}
	if r := s.do(http.MethodDelete, "/api/users/alice", "", aliceAccess); r.status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin self delete, got %d", r.status)
	}

	r = s.do(http.MethodDelete, "/api/users/admin", "", adminAccess)
	if r.status != http.StatusBadRequest || r.body["error"] != "you cannot delete your own account" {
		t.Fatalf("expected self-delete 400, got %d %v", r.status, r.body)
	}

	if r := s.do(http.MethodDelete, "/api/users/alice", "", adminAccess); r.status != http.StatusOK {
		t.Fatalf("admin delete failed: %d %v", r.status, r.body)
	}
	if r := s.do(http.MethodDelete, "/api/users/alice", "", adminAccess); r.status != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", r.status)
	}
}

func TestRouter_LogoutAndMisc(t *testing.T) {
	s := newTestServer(t, newTestConfig("test"), nil)

	r := s.do(http.MethodPost, "/api/logout", "")
	if r.status != http.StatusOK || len(r.cookies) != 2 {
		t.Fatalf("expected logout to clear two cookies, got %d %v", r.status, r.cookies)
	}

	r = s.do(http.MethodGet, "/api/health", "")
	if r.status != http.StatusOK || r.body["status"] != "OK" || r.body["database"] != "connected" {
		t.Fatalf("unexpected health %d %v", r.status, r.body)
	}

	r = s.do(http.MethodGet, "/nope", "")
	if r.status != http.StatusNotFound || r.body["error"] != "Not found" {
		t.Fatalf("unexpected not-found response %d %v", r.status, r.body)
	}

	r = s.do(http.MethodPost, "/api/users", `{"username":`)
	if r.status != http.StatusBadRequest || r.body["error"] != "invalid payload" {
		t.Fatalf("unexpected bad-json response %d %v", r.status, r.body)
	}
}

type countingStore struct {
	mu    sync.Mutex
	limit int
	seen  map[string]int
}

func (s *countingStore) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[string]int{}
	}
	s.seen[identifier]++
	return s.seen[identifier] <= s.limit, nil
}

func TestRouter_LoginRateLimit(t *testing.T) {
	s := newTestServer(t, newTestConfig("development"), func(d *Deps) {
		d.LoginLimiter = &countingStore{limit: 2}
	})

	for i := 0; i < 2; i++ {
		if r := s.do(http.MethodPost, "/api/login", `{"username":"x","password":"y"}`); r.status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, r.status)
		}
	}
	r := s.do(http.MethodPost, "/api/login", `{"username":"x","password":"y"}`)
	if r.status != http.StatusTooManyRequests || r.body["error"] != "Too many login attempts, please try again later" {
		t.Fatalf("expected 429, got %d %v", r.status, r.body)
	}

	if r := s.do(http.MethodGet, "/api/health", ""); r.status != http.StatusOK {
		t.Fatalf("login limiter must not affect other routes, got %d", r.status)
	}
}

func TestRouter_RateLimitDisabledInTest(t *testing.T) {
	s := newTestServer(t, newTestConfig("test"), func(d *Deps) {
		d.APILimiter = &countingStore{limit: 0}
	})

	if r := s.do(http.MethodGet, "/api/health", ""); r.status != http.StatusOK {
		t.Fatalf("limiter must be inactive in test env, got %d", r.status)
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestServer(t, newTestConfig("test"), func(d *Deps) {
		d.Registerer = reg
		d.Gatherer = reg
	})

	_ = s.do(http.MethodGet, "/api/health", "")

	res, err := s.srv.Client().Get(s.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	families, err := reg.Gather()
	if err != nil || len(families) == 0 {
		t.Fatalf("expected request metrics, got %d families err=%v", len(families), err)
	}
}

func TestRouter_Scenario(t *testing.T) {
	s := newTestServer(t, newTestConfig("test"), nil)

	if r := s.do(http.MethodPost, "/api/users", `{"username":"alice","email":"alice@x.com","password":"secret1"}`); r.status != http.StatusCreated {
		t.Fatalf("register alice: %d %v", r.status, r.body)
	}
	if r := s.do(http.MethodPost, "/api/users", `{"username":"alice","email":"bob@x.com","password":"secret2"}`); r.status != http.StatusBadRequest {
		t.Fatalf("duplicate username: %d %v", r.status, r.body)
	}
	if r := s.do(http.MethodPost, "/api/login", `{"username":"alice","password":"wrong"}`); r.status != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d %v", r.status, r.body)
	}

	access, _ := s.login("alice")

	if r := s.do(http.MethodGet, "/api/users/alice", ""); r.status != http.StatusUnauthorized {
		t.Fatalf("anonymous get: %d", r.status)
	}

	r := s.do(http.MethodPut, "/api/users/alice", `{"role":"admin"}`, access)
	if r.status != http.StatusOK {
		t.Fatalf("role update: %d %v", r.status, r.body)
	}
	stored, err := s.repo.FindByUsername(context.Background(), "alice")
	if err != nil || stored.Role != domain.RoleUser {
		t.Fatalf("stored role changed: %+v err=%v", stored, err)
	}
}

func TestRouter_ExpiredAccessRenewedFromRefresh(t *testing.T) {
	s := newTestServer(t, newTestConfig("test"), nil)
	s.register("alice")
	_, refresh := s.login("alice")

	account, err := s.repo.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find alice: %v", err)
	}

	issued := time.Now().Add(-time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"typ": string(domain.TokenAccess),
		"sub": account.ID,
		"iat": issued.Unix(),
		"exp": issued.Add(15 * time.Minute).Unix(),
	}).SignedString([]byte("access-secret"))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	stale := &http.Cookie{Name: cookie.AccessName, Value: expired}

	if r := s.do(http.MethodGet, "/api/users/alice", "", stale); r.status != http.StatusUnauthorized {
		t.Fatalf("expired access alone: expected 401, got %d", r.status)
	}

	r := s.do(http.MethodGet, "/api/users/alice", "", stale, refresh)
	if r.status != http.StatusOK {
		t.Fatalf("expected 200 via refresh, got %d %v", r.status, r.body)
	}
	renewed := r.cookies[cookie.AccessName]
	if renewed == nil || renewed.Value == "" || renewed.Value == expired {
		t.Fatalf("expected a new jwt cookie, got %v", r.cookies)
	}
	refreshID, err := s.tokens.Verify(refresh.Value, domain.TokenRefresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	renewedID, err := s.tokens.Verify(renewed.Value, domain.TokenAccess)
	if err != nil {
		t.Fatalf("renewed cookie does not verify: %v", err)
	}
	if renewedID != refreshID || renewedID != account.ID {
		t.Fatalf("renewed token bound to %q, refresh to %q, account %q", renewedID, refreshID, account.ID)
	}
	if _, ok := r.cookies[cookie.RefreshName]; ok {
		t.Fatalf("refresh cookie must not be rotated")
	}
}
