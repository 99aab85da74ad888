// Package simple is a role-based auth manager backed by a static user list
// from configuration. It is the default backend: four ordered roles with
// admin able to do everything, and a login endpoint that exchanges
// credentials for a signed identity token.
package simple

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"skein.org/internal/auth"
	"skein.org/internal/config"
	"skein.org/internal/obs"
)

// Name is the registry name of this backend.
const Name = "simple"

func init() {
	auth.Register(Name, func(cfg *config.Config) (auth.Manager, error) {
		return New(cfg)
	})
}

// Role orders the capabilities of a static user. Each role includes
// everything the roles below it can do.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleUser   Role = "user"
	RoleOp     Role = "op"
	RoleAdmin  Role = "admin"
)

var roleOrder = map[Role]int{
	RoleViewer: 0,
	RoleUser:   1,
	RoleOp:     2,
	RoleAdmin:  3,
}

// ParseRole validates a configured role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := roleOrder[role]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// StaticUser is one configured identity.
type StaticUser struct {
	Username     string `json:"username"`
	Name         string `json:"name,omitempty"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"password_hash,omitempty"`
}

func (u StaticUser) GetID() string { return u.Username }

func (u StaticUser) GetName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Manager implements auth.Manager over the configured user list.
type Manager struct {
	users     map[string]StaticUser
	allAdmins bool
	codec     *auth.TokenCodec
}

var _ auth.Manager = (*Manager)(nil)

// New builds the backend from api.simple_auth_users (a JSON array of users
// or a compact "alice:admin,bob:viewer" list) and the JWT options. Without a
// signing secret the backend still composes (its CLI commands need no
// tokens) but cannot mint them; serving processes reject the missing secret
// at startup via config validation.
func New(cfg *config.Config) (*Manager, error) {
	users, err := parseUsers(cfg.Get(config.KeySimpleAuthUsers))
	if err != nil {
		return nil, fmt.Errorf("simple auth users: %w", err)
	}
	var codec *auth.TokenCodec
	if cfg.Get(config.KeyJWTSecret) != "" {
		codec, err = auth.NewTokenCodecFromConfig(cfg)
		if err != nil {
			return nil, err
		}
	}
	byName := make(map[string]StaticUser, len(users))
	for _, u := range users {
		if _, dup := byName[u.Username]; dup {
			return nil, fmt.Errorf("simple auth users: duplicate username %q", u.Username)
		}
		byName[u.Username] = u
	}
	return &Manager{
		users:     byName,
		allAdmins: cfg.GetBool(config.KeySimpleAuthAllAdmins),
		codec:     codec,
	}, nil
}

func parseUsers(raw string) ([]StaticUser, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var users []StaticUser
		if err := json.Unmarshal([]byte(raw), &users); err != nil {
			return nil, err
		}
		for i, u := range users {
			if strings.TrimSpace(u.Username) == "" {
				return nil, fmt.Errorf("user %d: username is required", i)
			}
			role, err := ParseRole(string(u.Role))
			if err != nil {
				return nil, fmt.Errorf("user %q: %w", u.Username, err)
			}
			users[i].Role = role
		}
		return users, nil
	}

	var users []StaticUser
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		username, roleRaw, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: want username:role", entry)
		}
		role, err := ParseRole(roleRaw)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", username, err)
		}
		users = append(users, StaticUser{
			Username: strings.TrimSpace(username),
			Role:     role,
		})
	}
	return users, nil
}

// Init logs the backend composition once at startup.
func (m *Manager) Init(_ context.Context) error {
	obs.Info("simple auth manager ready", map[string]any{
		"users":      len(m.users),
		"all_admins": m.allAdmins,
	})
	return nil
}

// --- identity ---------------------------------------------------------------

func (m *Manager) GetUser(ctx context.Context) (auth.User, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return user, nil
}

func (m *Manager) SerializeUser(user auth.User) (map[string]any, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: no user to serialize", auth.ErrUnauthenticated)
	}
	return map[string]any{
		"username": user.GetID(),
		"name":     user.GetName(),
	}, nil
}

// DeserializeUser resolves the token payload against the configured user
// list; the role always comes from configuration, never from the token.
func (m *Manager) DeserializeUser(payload map[string]any) (auth.User, error) {
	username, _ := payload["username"].(string)
	if username == "" {
		return nil, fmt.Errorf("%w: username missing", auth.ErrInvalidToken)
	}
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	if m.allAdmins {
		name, _ := payload["name"].(string)
		return StaticUser{Username: username, Name: name, Role: RoleAdmin}, nil
	}
	return nil, fmt.Errorf("%w: unknown user %q", auth.ErrInvalidToken, username)
}

func (m *Manager) IsLoggedIn(ctx context.Context) bool {
	_, ok := auth.UserFromContext(ctx)
	return ok
}

func (m *Manager) LoginURL(next string) string {
	if next == "" {
		return "/auth/token"
	}
	return "/auth/token?next=" + url.QueryEscape(next)
}

func (m *Manager) LogoutURL() string { return "/auth/logout" }

// --- authorization ------------------------------------------------------------

// resolve picks the identity a check is about: the explicit override when
// given, otherwise the one bound to the context. Unknown identities resolve
// to no role and are denied rather than erroring.
func (m *Manager) resolve(ctx context.Context, override auth.User) (StaticUser, bool, error) {
	subject := override
	if subject == nil {
		bound, ok := auth.UserFromContext(ctx)
		if !ok {
			return StaticUser{}, false, auth.ErrUnauthenticated
		}
		subject = bound
	}
	if su, ok := subject.(StaticUser); ok {
		return su, true, nil
	}
	if su, ok := m.users[subject.GetID()]; ok {
		return su, true, nil
	}
	if m.allAdmins {
		return StaticUser{Username: subject.GetID(), Role: RoleAdmin}, true, nil
	}
	return StaticUser{}, false, nil
}

func (m *Manager) allows(u StaticUser, required Role) bool {
	if m.allAdmins {
		return true
	}
	return roleOrder[u.Role] >= roleOrder[required]
}

// requiredRole maps a (kind, method) pair onto the minimum role: reads are
// open to viewers, dag and asset writes to users, writes on shared
// infrastructure (connections, pools, variables, configuration) to ops.
func requiredRole(writes Role, method auth.ResourceMethod) Role {
	switch method {
	case auth.MethodGet, auth.MethodMenu:
		return RoleViewer
	default:
		return writes
	}
}

func (m *Manager) check(ctx context.Context, override auth.User, required Role) (bool, error) {
	subject, known, err := m.resolve(ctx, override)
	if err != nil {
		return false, err
	}
	if !known {
		return false, nil
	}
	return m.allows(subject, required), nil
}

func (m *Manager) IsAuthorizedConfiguration(ctx context.Context, req auth.ConfigurationRequest) (bool, error) {
	return m.check(ctx, req.User, requiredRole(RoleOp, req.Method))
}

func (m *Manager) IsAuthorizedConnection(ctx context.Context, req auth.ConnectionRequest) (bool, error) {
	return m.check(ctx, req.User, requiredRole(RoleOp, req.Method))
}

func (m *Manager) IsAuthorizedDag(ctx context.Context, req auth.DagRequest) (bool, error) {
	return m.check(ctx, req.User, requiredRole(RoleUser, req.Method))
}

func (m *Manager) IsAuthorizedAsset(ctx context.Context, req auth.AssetRequest) (bool, error) {
	return m.check(ctx, req.User, requiredRole(RoleUser, req.Method))
}

func (m *Manager) IsAuthorizedPool(ctx context.Context, req auth.PoolRequest) (bool, error) {
	return m.check(ctx, req.User, requiredRole(RoleOp, req.Method))
}

func (m *Manager) IsAuthorizedVariable(ctx context.Context, req auth.VariableRequest) (bool, error) {
	return m.check(ctx, req.User, requiredRole(RoleOp, req.Method))
}

func (m *Manager) IsAuthorizedView(ctx context.Context, req auth.ViewRequest) (bool, error) {
	// Read-only installation views are open to every signed-in role.
	return m.check(ctx, req.User, RoleViewer)
}

func (m *Manager) IsAuthorizedCustomView(ctx context.Context, req auth.CustomViewRequest) (bool, error) {
	// Custom views, including plugin-defined action names, are admin
	// territory. The action name itself is not interpreted here.
	return m.check(ctx, req.User, RoleAdmin)
}

// menuRole maps well-known menu entries to the role that may see them.
// Entries this backend does not know about are visible to everyone.
var menuRole = map[string]Role{
	"connections":   RoleOp,
	"pools":         RoleOp,
	"variables":     RoleOp,
	"configuration": RoleOp,
	"admin":         RoleAdmin,
}

func (m *Manager) FilterPermittedMenuItems(ctx context.Context, items []auth.MenuItem) ([]auth.MenuItem, error) {
	subject, known, err := m.resolve(ctx, nil)
	if err != nil {
		return nil, err
	}
	if !known {
		return []auth.MenuItem{}, nil
	}
	permitted := make([]auth.MenuItem, 0, len(items))
	for _, item := range items {
		required, restricted := menuRole[strings.ToLower(item.Name)]
		if restricted && !m.allows(subject, required) {
			continue
		}
		permitted = append(permitted, item)
	}
	return permitted, nil
}
