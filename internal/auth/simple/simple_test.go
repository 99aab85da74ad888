package simple

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"skein.org/internal/auth"
	"skein.org/internal/config"
)

func newTestManager(t *testing.T, extra map[string]string) *Manager {
	t.Helper()
	values := map[string]string{
		config.KeyJWTSecret:       "test-secret",
		config.KeySimpleAuthUsers: "vera:viewer,uma:user,otto:op,ada:admin",
	}
	for k, v := range extra {
		values[k] = v
	}
	m, err := New(config.NewStatic(values))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func ctxFor(m *Manager, username string) context.Context {
	return auth.ContextWithUser(context.Background(), m.users[username])
}

func TestParseUsersCompact(t *testing.T) {
	users, err := parseUsers(" alice:admin , bob:viewer ")
	if err != nil {
		t.Fatalf("parseUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("want 2 users, got %d", len(users))
	}
	if users[0].Username != "alice" || users[0].Role != RoleAdmin {
		t.Fatalf("unexpected first user: %+v", users[0])
	}
	if users[1].Username != "bob" || users[1].Role != RoleViewer {
		t.Fatalf("unexpected second user: %+v", users[1])
	}
}

func TestParseUsersJSON(t *testing.T) {
	raw := `[{"username":"alice","name":"Alice","role":"ADMIN","password_hash":"x"}]`
	users, err := parseUsers(raw)
	if err != nil {
		t.Fatalf("parseUsers failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("want 1 user, got %d", len(users))
	}
	u := users[0]
	if u.Username != "alice" || u.Role != RoleAdmin || u.Name != "Alice" || u.PasswordHash != "x" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestParseUsersErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"bad role", "alice:overlord"},
		{"missing role", "alice"},
		{"json bad role", `[{"username":"alice","role":"overlord"}]`},
		{"json missing username", `[{"role":"admin"}]`},
		{"malformed json", `[{"username":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseUsers(tc.raw); err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
		})
	}
}

func TestNewRejectsDuplicateUsernames(t *testing.T) {
	_, err := New(config.NewStatic(map[string]string{
		config.KeyJWTSecret:       "test-secret",
		config.KeySimpleAuthUsers: "alice:admin,alice:viewer",
	}))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate username error, got %v", err)
	}
}

func TestNewWithoutSecretComposesForCLI(t *testing.T) {
	m, err := New(config.NewStatic(map[string]string{
		config.KeySimpleAuthUsers: "ada:admin",
	}))
	if err != nil {
		t.Fatalf("New without a secret must compose: %v", err)
	}
	if len(m.CLICommands()) == 0 {
		t.Fatal("CLI commands must be available without a signing secret")
	}

	// Token issuance is the one thing that needs the secret.
	_, handler := m.SubApp()
	srv := httptest.NewServer(handler)
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/token", "application/json",
		strings.NewReader(`{"username":"ada","password":"x"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("want 501 without a signing secret, got %d", resp.StatusCode)
	}
}

func TestRoleMatrix(t *testing.T) {
	m := newTestManager(t, nil)

	type checkFn func(ctx context.Context, method auth.ResourceMethod) (bool, error)
	dag := func(ctx context.Context, method auth.ResourceMethod) (bool, error) {
		return m.IsAuthorizedDag(ctx, auth.DagRequest{Method: method})
	}
	connection := func(ctx context.Context, method auth.ResourceMethod) (bool, error) {
		return m.IsAuthorizedConnection(ctx, auth.ConnectionRequest{Method: method})
	}
	pool := func(ctx context.Context, method auth.ResourceMethod) (bool, error) {
		return m.IsAuthorizedPool(ctx, auth.PoolRequest{Method: method})
	}
	variable := func(ctx context.Context, method auth.ResourceMethod) (bool, error) {
		return m.IsAuthorizedVariable(ctx, auth.VariableRequest{Method: method})
	}
	configuration := func(ctx context.Context, method auth.ResourceMethod) (bool, error) {
		return m.IsAuthorizedConfiguration(ctx, auth.ConfigurationRequest{Method: method})
	}
	asset := func(ctx context.Context, method auth.ResourceMethod) (bool, error) {
		return m.IsAuthorizedAsset(ctx, auth.AssetRequest{Method: method})
	}

	cases := []struct {
		name   string
		check  checkFn
		method auth.ResourceMethod
		user   string
		want   bool
	}{
		{"viewer reads dag", dag, auth.MethodGet, "vera", true},
		{"viewer cannot write dag", dag, auth.MethodPut, "vera", false},
		{"user writes dag", dag, auth.MethodPut, "uma", true},
		{"user deletes dag", dag, auth.MethodDelete, "uma", true},
		{"user writes asset", asset, auth.MethodPost, "uma", true},
		{"viewer cannot write asset", asset, auth.MethodPost, "vera", false},
		{"user cannot write connection", connection, auth.MethodPut, "uma", false},
		{"op writes connection", connection, auth.MethodPut, "otto", true},
		{"viewer reads connection", connection, auth.MethodGet, "vera", true},
		{"user cannot write pool", pool, auth.MethodPost, "uma", false},
		{"op writes pool", pool, auth.MethodPost, "otto", true},
		{"op writes variable", variable, auth.MethodPut, "otto", true},
		{"user cannot write variable", variable, auth.MethodPut, "uma", false},
		{"op writes configuration", configuration, auth.MethodPut, "otto", true},
		{"user cannot write configuration", configuration, auth.MethodPut, "uma", false},
		{"admin writes everything", configuration, auth.MethodDelete, "ada", true},
		{"menu access is read access", dag, auth.MethodMenu, "vera", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.check(ctxFor(m, tc.user), tc.method)
			if err != nil {
				t.Fatalf("check failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCustomViewIsAdminOnly(t *testing.T) {
	m := newTestManager(t, nil)
	req := auth.CustomViewRequest{Action: auth.CustomAction("can_do_magic"), ResourceName: "magic"}

	allowed, err := m.IsAuthorizedCustomView(ctxFor(m, "otto"), req)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if allowed {
		t.Fatal("op must not access custom views")
	}

	allowed, err = m.IsAuthorizedCustomView(ctxFor(m, "ada"), req)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !allowed {
		t.Fatal("admin must access custom views")
	}
}

func TestViewIsOpenToViewers(t *testing.T) {
	m := newTestManager(t, nil)
	allowed, err := m.IsAuthorizedView(ctxFor(m, "vera"), auth.ViewRequest{View: auth.ViewDocs})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !allowed {
		t.Fatal("viewer must see installation views")
	}
}

func TestExplicitUserOverridesContext(t *testing.T) {
	m := newTestManager(t, nil)
	// Context carries a viewer, but the check is about the admin.
	allowed, err := m.IsAuthorizedConfiguration(ctxFor(m, "vera"), auth.ConfigurationRequest{
		Method: auth.MethodPut,
		User:   m.users["ada"],
	})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !allowed {
		t.Fatal("explicit admin subject must be allowed")
	}
}

func TestUnauthenticatedCheck(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.IsAuthorizedDag(context.Background(), auth.DagRequest{Method: auth.MethodGet})
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
}

func TestUnknownIdentityIsDeniedNotError(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := auth.ContextWithUser(context.Background(), nobody("mallory"))

	allowed, err := m.IsAuthorizedDag(ctx, auth.DagRequest{Method: auth.MethodGet})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if allowed {
		t.Fatal("unknown identity must be denied")
	}
}

type nobody string

func (n nobody) GetID() string   { return string(n) }
func (n nobody) GetName() string { return string(n) }

func TestAllAdminsGrantsEverything(t *testing.T) {
	m := newTestManager(t, map[string]string{config.KeySimpleAuthAllAdmins: "true"})
	ctx := auth.ContextWithUser(context.Background(), nobody("drive-by"))

	allowed, err := m.IsAuthorizedConfiguration(ctx, auth.ConfigurationRequest{Method: auth.MethodDelete})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !allowed {
		t.Fatal("all-admins mode must allow any identity")
	}
}

func TestDeserializeUser(t *testing.T) {
	m := newTestManager(t, nil)

	user, err := m.DeserializeUser(map[string]any{"username": "otto", "name": "ignored"})
	if err != nil {
		t.Fatalf("DeserializeUser failed: %v", err)
	}
	su, ok := user.(StaticUser)
	if !ok {
		t.Fatalf("want StaticUser, got %T", user)
	}
	// Role comes from configuration, not from the payload.
	if su.Role != RoleOp {
		t.Fatalf("want role op, got %s", su.Role)
	}

	_, err = m.DeserializeUser(map[string]any{"username": "ghost"})
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken for unknown user, got %v", err)
	}
	_, err = m.DeserializeUser(map[string]any{})
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken for missing username, got %v", err)
	}
}

func TestDeserializeUserAllAdmins(t *testing.T) {
	m := newTestManager(t, map[string]string{config.KeySimpleAuthAllAdmins: "yes"})
	user, err := m.DeserializeUser(map[string]any{"username": "ghost", "name": "Ghost"})
	if err != nil {
		t.Fatalf("DeserializeUser failed: %v", err)
	}
	su := user.(StaticUser)
	if su.Role != RoleAdmin || su.GetName() != "Ghost" {
		t.Fatalf("unexpected synthesized user: %+v", su)
	}
}

func TestLoginURL(t *testing.T) {
	m := newTestManager(t, nil)
	if got := m.LoginURL(""); got != "/auth/token" {
		t.Fatalf("unexpected login url: %s", got)
	}
	if got := m.LoginURL("/v1/dags?limit=5"); got != "/auth/token?next=%2Fv1%2Fdags%3Flimit%3D5" {
		t.Fatalf("unexpected login url: %s", got)
	}
	if got := m.LogoutURL(); got != "/auth/logout" {
		t.Fatalf("unexpected logout url: %s", got)
	}
}

func TestFilterPermittedMenuItems(t *testing.T) {
	m := newTestManager(t, nil)
	items := []auth.MenuItem{
		{Name: "dags", Label: "Dags", Href: "/v1/dags"},
		{Name: "connections", Label: "Connections", Href: "/v1/connections"},
		{Name: "Admin", Label: "Admin", Href: "/admin"},
	}

	got, err := m.FilterPermittedMenuItems(ctxFor(m, "vera"), items)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "dags" {
		t.Fatalf("viewer menu wrong: %+v", got)
	}

	got, err = m.FilterPermittedMenuItems(ctxFor(m, "otto"), items)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("op menu wrong: %+v", got)
	}

	got, err = m.FilterPermittedMenuItems(ctxFor(m, "ada"), items)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("admin menu wrong: %+v", got)
	}
}

func TestFilterPermittedMenuItemsUnknownIdentity(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := auth.ContextWithUser(context.Background(), nobody("mallory"))
	got, err := m.FilterPermittedMenuItems(ctx, []auth.MenuItem{{Name: "dags"}})
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unknown identity must see nothing, got %+v", got)
	}
}

func TestSubAppLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	usersJSON, _ := json.Marshal([]StaticUser{
		{Username: "ada", Role: RoleAdmin, PasswordHash: string(hash)},
	})
	m, err := New(config.NewStatic(map[string]string{
		config.KeyJWTSecret:       "test-secret",
		config.KeySimpleAuthUsers: string(usersJSON),
	}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	prefix, handler := m.SubApp()
	if prefix != "/auth" {
		t.Fatalf("unexpected prefix: %s", prefix)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	post := func(body string) *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+"/token", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		return resp
	}

	resp := post(`{"username":"ada","password":"open-sesame"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if tok.Token == "" {
		t.Fatal("expected a token")
	}

	// The minted token must round-trip through the backend's own codec.
	payload, err := m.codec.Verify(tok.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	user, err := m.DeserializeUser(payload)
	if err != nil {
		t.Fatalf("DeserializeUser failed: %v", err)
	}
	if user.GetID() != "ada" {
		t.Fatalf("unexpected user: %s", user.GetID())
	}

	bad := post(`{"username":"ada","password":"wrong"}`)
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 for bad password, got %d", bad.StatusCode)
	}

	unknown := post(`{"username":"ghost","password":"open-sesame"}`)
	defer unknown.Body.Close()
	if unknown.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 for unknown user, got %d", unknown.StatusCode)
	}

	empty := post(`{}`)
	defer empty.Body.Close()
	if empty.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for missing credentials, got %d", empty.StatusCode)
	}

	get, err := http.Get(srv.URL + "/token")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("want 405 for GET, got %d", get.StatusCode)
	}

	logout, err := http.Get(srv.URL + "/logout")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer logout.Body.Close()
	if logout.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204 for logout, got %d", logout.StatusCode)
	}
}

func TestCLICommands(t *testing.T) {
	m := newTestManager(t, nil)
	commands := m.CLICommands()
	if len(commands) != 2 {
		t.Fatalf("want 2 commands, got %d", len(commands))
	}
	names := map[string]bool{}
	for _, c := range commands {
		names[c.Name] = true
	}
	if !names["users-list"] || !names["password-hash"] {
		t.Fatalf("unexpected command set: %v", names)
	}
	if err := runPasswordHash(context.Background(), nil); err == nil {
		t.Fatal("expected usage error without arguments")
	}
}
