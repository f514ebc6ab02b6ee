package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfchess/identity/modules/user"
	"github.com/kfchess/identity/pkg/auth"
	"github.com/kfchess/identity/pkg/cookie"
	"github.com/kfchess/identity/pkg/csrf"
	"github.com/kfchess/identity/pkg/file"
	"github.com/kfchess/identity/pkg/session"
	"github.com/kfchess/identity/svc/account"
	"github.com/kfchess/identity/svc/directory"
	"github.com/kfchess/identity/svc/history"
	"github.com/kfchess/identity/svc/profile"
)

// fakeProvider accepts codes registered in identities.
type fakeProvider struct {
	mu         sync.Mutex
	identities map[string]auth.ExternalIdentity
}

func (p *fakeProvider) ProviderID() string { return "fake" }

func (p *fakeProvider) AuthURL(state, nonce, redirectURL string) string {
	return "https://idp.example/authorize?" + url.Values{
		"state":        {state},
		"nonce":        {nonce},
		"redirect_uri": {redirectURL},
	}.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code, _, _ string) (auth.ExternalIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.identities[code]
	if !ok {
		return auth.ExternalIdentity{}, auth.ErrProviderError
	}
	return id, nil
}

type recordingMetrics struct {
	mu     sync.Mutex
	logins []string
}

func (m *recordingMetrics) LoginCompleted(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, result)
}
func (m *recordingMetrics) UserProvisioned()           {}
func (m *recordingMetrics) UsernameCollision()         {}
func (m *recordingMetrics) AvatarUploaded(string, int) {}

func (m *recordingMetrics) results() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.logins...)
}

type env struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	provider *fakeProvider
	dir      *directory.MemoryDirectory
	history  *history.MemoryStore
	metrics  *recordingMetrics
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cm, err := cookie.New([]string{"module-test-secret-that-is-long-enough"})
	require.NoError(t, err)
	cfg := session.DefaultConfig()
	cfg.CleanupInterval = 0
	manager := session.New(session.WithCookieManager(cm), session.WithConfig(cfg), session.WithStore(session.NewMemoryStore(0)))

	storage, err := file.NewLocalStorage(t.TempDir(), "/uploads/")
	require.NoError(t, err)

	dir := directory.NewMemoryDirectory()
	hist := history.NewMemoryStore()
	provider := &fakeProvider{identities: map[string]auth.ExternalIdentity{}}
	m := &recordingMetrics{}
	sessions := account.NewSessions(manager, dir, nil)

	h := user.New(user.Options{
		Auth:     auth.NewClient(provider),
		Resolver: account.NewResolver(dir, account.WithMetrics(m)),
		Sessions: sessions,
		Manager:  manager,
		Profile:  profile.NewService(dir, sessions, storage, profile.WithMetrics(m)),
		History:  hist,
		CSRF:     csrf.Config{Enforce: true},
		Metrics:  m,
	})
	srv := httptest.NewServer(h.Handle())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &env{t: t, srv: srv, client: client, provider: provider, dir: dir, history: hist, metrics: m}
}

func (e *env) get(path string) *http.Response {
	e.t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *env) post(path, token string, body []byte) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, bytes.NewReader(body))
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set(csrf.HeaderName, token)
	}
	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *env) sessionCookie() string {
	u, _ := url.Parse(e.srv.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == session.DefaultConfig().CookieName {
			return c.Value
		}
	}
	return ""
}

func (e *env) csrfToken() string {
	e.t.Helper()
	body := decode(e.t, e.get("/api/user/info"))
	token, _ := body["csrfToken"].(string)
	require.Len(e.t, token, csrf.TokenLength)
	return token
}

// login runs the full redirect dance for email and returns the final
// redirect target.
func (e *env) login(email, next string) string {
	e.t.Helper()
	code := "code-" + email
	e.provider.mu.Lock()
	e.provider.identities[code] = auth.ExternalIdentity{Subject: "sub-" + email, Email: email, EmailVerified: true}
	e.provider.mu.Unlock()

	resp := e.get("/login?next=" + url.QueryEscape(next))
	require.Equal(e.t, http.StatusFound, resp.StatusCode)
	consent, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(e.t, err)
	require.Equal(e.t, "idp.example", consent.Host)

	cb := e.get("/api/user/oauth2callback?" + url.Values{
		"state": {consent.Query().Get("state")},
		"code":  {code},
	}.Encode())
	require.Equal(e.t, http.StatusFound, cb.StatusCode)
	return cb.Header.Get("Location")
}

func TestLoginFlow(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	before := e.get("/api/user/info")
	require.Equal(t, http.StatusOK, before.StatusCode)
	assert.Equal(t, false, decode(t, before)["loggedIn"])
	anonCookie := e.sessionCookie()
	require.NotEmpty(t, anonCookie)

	target := e.login("player@example.com", "/game/42")
	assert.Equal(t, "/game/42", target)
	assert.NotEqual(t, anonCookie, e.sessionCookie(), "session token rotates on login")

	info := decode(t, e.get("/api/user/info"))
	assert.Equal(t, true, info["loggedIn"])
	u, ok := info["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "player@example.com", u["email"])
	assert.Regexp(t, `^(Tiger|Leopard|Crane|Snake|Dragon) (Pawn|Knight|Bishop|Rook|Queen|King) [1-9][0-9]{2}$`, u["username"])
	assert.Nil(t, u["pictureUrl"])
	assert.Equal(t, []string{"success"}, e.metrics.results())

	// already logged in: /login skips the provider
	again := e.get("/login?next=/campaign")
	assert.Equal(t, http.StatusFound, again.StatusCode)
	assert.Equal(t, "/campaign", again.Header.Get("Location"))
}

func TestLogin_SecondLoginResolvesSameUser(t *testing.T) {
	t.Parallel()
	first := newEnv(t)
	first.login("same@example.com", "/")

	users, err := first.dir.GetUsersByID(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, users, 1)

	// fresh browser, same account
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	first.client.Jar = jar
	first.login("same@example.com", "/")

	users, err = first.dir.GetUsersByID(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCallback_Failures(t *testing.T) {
	t.Parallel()

	t.Run("forged state", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp := e.get("/login?next=/game/1")
		require.Equal(t, http.StatusFound, resp.StatusCode)

		cb := e.get("/api/user/oauth2callback?state=forged&code=whatever")
		assert.Equal(t, http.StatusFound, cb.StatusCode)
		assert.Equal(t, "/game/1", cb.Header.Get("Location"))
		assert.Equal(t, false, decode(t, e.get("/api/user/info"))["loggedIn"])
		assert.Equal(t, []string{auth.KindInvalidState}, e.metrics.results())
	})

	t.Run("provider error", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp := e.get("/login")
		consent, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)

		cb := e.get("/api/user/oauth2callback?error=access_denied&state=" + consent.Query().Get("state"))
		assert.Equal(t, http.StatusFound, cb.StatusCode)
		assert.Equal(t, "/", cb.Header.Get("Location"))
		assert.Equal(t, []string{auth.KindProvider}, e.metrics.results())
	})

	t.Run("unknown code", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		resp := e.get("/login")
		consent, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)

		cb := e.get("/api/user/oauth2callback?code=nope&state=" + consent.Query().Get("state"))
		assert.Equal(t, http.StatusFound, cb.StatusCode)
		assert.Equal(t, "/", cb.Header.Get("Location"))
		assert.Equal(t, false, decode(t, e.get("/api/user/info"))["loggedIn"])
	})

	t.Run("unverified email", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.provider.mu.Lock()
		e.provider.identities["unverified"] = auth.ExternalIdentity{Subject: "sub-x", Email: "x@example.com"}
		e.provider.mu.Unlock()
		resp := e.get("/login")
		consent, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)

		cb := e.get("/api/user/oauth2callback?code=unverified&state=" + consent.Query().Get("state"))
		assert.Equal(t, http.StatusFound, cb.StatusCode)
		assert.Equal(t, false, decode(t, e.get("/api/user/info"))["loggedIn"])
		assert.Equal(t, []string{auth.KindUnverified}, e.metrics.results())

		_, err = e.dir.GetUserByEmail(context.Background(), "x@example.com")
		assert.ErrorIs(t, err, directory.ErrUserNotFound)
	})

	t.Run("open redirect", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		assert.Equal(t, "/", e.login("a@example.com", "https://evil.example/"))
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.login("player@example.com", "/")
	token := e.csrfToken()

	t.Run("requires csrf token", func(t *testing.T) {
		resp := e.post("/logout", "", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Invalid CSRF token.", body["message"])

		resp = e.post("/logout", "WRONGTOKEN0000000000000A", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, true, decode(t, e.get("/api/user/info"))["loggedIn"])
	})

	t.Run("ends session", func(t *testing.T) {
		resp := e.post("/logout", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, false, body["loggedIn"])
		newToken, _ := body["csrfToken"].(string)
		assert.Len(t, newToken, csrf.TokenLength)
		assert.NotEqual(t, token, newToken)

		info := decode(t, e.get("/api/user/info"))
		assert.Equal(t, false, info["loggedIn"])
		assert.Equal(t, newToken, info["csrfToken"])
	})
}

func TestInfo_Others(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	a, err := e.dir.CreateUser(ctx, "a@example.com", "Crane Knight 111", nil, nil)
	require.NoError(t, err)
	b, err := e.dir.CreateUser(ctx, "b@example.com", "Crane Knight 222", nil, nil)
	require.NoError(t, err)

	body := decode(t, e.get("/api/user/info?userId=1&userId=2&userId=99"))
	users, ok := body["users"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, users, 2)
	ua := users["1"].(map[string]any)
	assert.Equal(t, a.Username, ua["username"])
	assert.NotContains(t, ua, "email")
	assert.Equal(t, b.Username, users["2"].(map[string]any)["username"])

	bad := decode(t, e.get("/api/user/info?userId=1&userId=abc"))
	assert.Equal(t, false, bad["success"])
	assert.Equal(t, "Invalid request.", bad["message"])
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	token := e.csrfToken()
	anon := decode(t, e.post("/api/user/update", token, []byte(`{"username":"Someone"}`)))
	assert.Equal(t, "User is not logged in.", anon["message"])

	e.login("player@example.com", "/")
	token = e.csrfToken()

	short := decode(t, e.post("/api/user/update", token, []byte(`{"username":"ab"}`)))
	assert.Equal(t, false, short["success"])
	assert.Equal(t, "Username too short.", short["message"])

	long := decode(t, e.post("/api/user/update", token, []byte(`{"username":"`+strings.Repeat("z", 25)+`"}`)))
	assert.Equal(t, "Username too long.", long["message"])

	ok := decode(t, e.post("/api/user/update", token, []byte(`{"username":"  Magnus  "}`)))
	assert.Equal(t, true, ok["success"])
	assert.Equal(t, "Magnus", ok["user"].(map[string]any)["username"])
	assert.NotContains(t, ok["user"], "email")

	_, err := e.dir.CreateUser(context.Background(), "x@example.com", "Taken", nil, nil)
	require.NoError(t, err)
	taken := decode(t, e.post("/api/user/update", token, []byte(`{"username":"Taken"}`)))
	assert.Equal(t, "Username already taken.", taken["message"])

	malformed := decode(t, e.post("/api/user/update", token, []byte(`{"username":42}`)))
	assert.Equal(t, "Invalid request.", malformed["message"])
}

func TestUploadPic(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 128)...)

	token := e.csrfToken()
	anon := decode(t, e.post("/api/user/uploadPic", token, make([]byte, profile.MaxAvatarBytes+10)))
	assert.Equal(t, "User is not logged in.", anon["message"], "login is checked before size")

	e.login("player@example.com", "/")
	token = e.csrfToken()

	tooBig := decode(t, e.post("/api/user/uploadPic", token, make([]byte, profile.MaxAvatarBytes+1)))
	assert.Equal(t, false, tooBig["success"])
	assert.Equal(t, "File is too large (max size 64KB).", tooBig["message"])

	ok := decode(t, e.post("/api/user/uploadPic", token, png))
	require.Equal(t, true, ok["success"])
	pic, _ := ok["user"].(map[string]any)["pictureUrl"].(string)
	assert.True(t, strings.HasPrefix(pic, "/uploads/profile-pics/"), pic)

	atLimit := decode(t, e.post("/api/user/uploadPic", token, make([]byte, profile.MaxAvatarBytes)))
	assert.Equal(t, true, atLimit["success"])
}

func TestHistory(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := e.dir.CreateUser(ctx, email, "User "+email, nil, nil)
		require.NoError(t, err)
	}
	for i := 0; i < 12; i++ {
		_, err := e.dir.CreateUser(ctx, "filler"+string(rune('a'+i))+"@example.com", "Filler "+string(rune('a'+i)), nil, nil)
		require.NoError(t, err)
	}

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	e.history.AddEntry(history.Entry{UserID: 5, GameTime: base, GameInfo: map[string]any{"opponents": []any{"u:9"}}})
	e.history.AddEntry(history.Entry{UserID: 5, GameTime: base.Add(time.Hour), GameInfo: map[string]any{"opponents": []any{"u:12", "b:novice"}}})

	body := decode(t, e.get("/api/user/history?userId=5&offset=0&count=10"))
	entries, ok := body["history"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 2)

	users, ok := body["users"].(map[string]any)
	require.True(t, ok)
	keys := make([]string, 0, len(users))
	for k := range users {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"9", "12"}, keys)

	for _, q := range []string{
		"userId=abc&offset=0&count=10",
		"userId=5&offset=x&count=10",
		"userId=5&offset=0",
		"userId=5&offset=-1&count=10",
	} {
		bad := decode(t, e.get("/api/user/history?"+q))
		assert.Equal(t, "Invalid request.", bad["message"], q)
	}

	empty := decode(t, e.get("/api/user/history?userId=77&offset=0&count=10"))
	assert.Empty(t, empty["history"])
	assert.Empty(t, empty["users"])
}

func TestCampaign(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.history.SetCampaignProgress(history.CampaignProgress{
		UserID:          3,
		LevelsCompleted: map[string]bool{"0": true},
		BeltsCompleted:  map[string]bool{},
	})

	body := decode(t, e.get("/api/user/campaign?userId=3"))
	progress, ok := body["progress"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"0": true}, progress["levelsCompleted"])

	missing := decode(t, e.get("/api/user/campaign?userId=4"))
	assert.Equal(t, map[string]any{}, missing["progress"].(map[string]any)["levelsCompleted"])

	bad := decode(t, e.get("/api/user/campaign?userId=four"))
	assert.Equal(t, "Invalid request.", bad["message"])
}
