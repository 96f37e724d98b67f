package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gymslim/portal/internal/portal/domain"
	"github.com/gymslim/portal/internal/portal/service"
	"github.com/gymslim/portal/internal/portal/session"
	"github.com/gymslim/portal/internal/portal/store"
	"github.com/gymslim/portal/internal/portal/store/drivers/sqlite"
	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/gymslim/portal/pkg/idx"
)

type testEnv struct {
	store   store.Store
	cipher  *cryptox.SecretCipher
	devices *service.TrustedDeviceService
	server  *httptest.Server
	client  *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	cipher, err := cryptox.NewSecretCipher(bytes.Repeat([]byte{0x42}, cryptox.KeySize))
	require.NoError(t, err)

	settings := &service.SettingsService{Store: st}
	require.NoError(t, settings.Load(context.Background()))

	devices := &service.TrustedDeviceService{Store: st, Settings: settings}
	sessions := &session.Manager{Store: session.NewMemoryStore(), TTL: time.Hour}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter("test", st, sessions, false, logger)
	router.AuthService = &service.AuthService{Store: st, Cipher: cipher, Devices: devices}
	router.MFAService = &service.MFAService{Store: st, Cipher: cipher, Devices: devices, Issuer: "GYMSLIM"}
	router.DeviceService = devices
	router.SettingsService = settings
	router.UserService = &service.UserService{Store: st}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{store: st, cipher: cipher, devices: devices, server: server, client: client}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) seedUser(t *testing.T, username, password string, mutate ...func(*domain.User)) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Name:         "Test User",
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, fn := range mutate {
		fn(&u)
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) seedMFAUser(t *testing.T, username, password string, mutate ...func(*domain.User)) (domain.User, string) {
	t.Helper()

	const secret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	encrypted, err := e.cipher.Encrypt(secret)
	require.NoError(t, err)

	u := e.seedUser(t, username, password, mutate...)
	require.NoError(t, e.store.Users().EnableMFA(context.Background(), u.ID, encrypted))
	return u, secret
}

// login drives POST /login for an existing user.
func (e *testEnv) login(t *testing.T, username, password string) *http.Response {
	t.Helper()
	return e.postForm(t, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
}

// cookieNamed digs a named cookie out of the client jar for the test
// server's origin; nil when absent.
func (e *testEnv) cookieNamed(t *testing.T, name string) *http.Cookie {
	t.Helper()
	u, err := url.Parse(e.server.URL)
	require.NoError(t, err)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func location(t *testing.T, resp *http.Response) string {
	t.Helper()
	loc, err := resp.Location()
	require.NoError(t, err)
	return loc.Path
}
