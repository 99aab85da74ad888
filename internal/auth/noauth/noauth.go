// Package noauth is the no-op auth manager: every check passes and every
// request runs as a shared anonymous identity. Strictly for development and
// single-user deployments.
package noauth

import (
	"context"

	"skein.org/internal/auth"
	"skein.org/internal/config"
)

// Name is the registry name of this backend.
const Name = "noauth"

func init() {
	auth.Register(Name, func(cfg *config.Config) (auth.Manager, error) {
		return Manager{}, nil
	})
}

type anonymous struct{}

func (anonymous) GetID() string   { return "anonymous" }
func (anonymous) GetName() string { return "Anonymous" }

// Manager allows everything. It implements only the core contract; the
// optional extension hooks are deliberately absent.
type Manager struct{}

var _ auth.Manager = Manager{}

func (Manager) GetUser(ctx context.Context) (auth.User, error) {
	if user, ok := auth.UserFromContext(ctx); ok {
		return user, nil
	}
	return anonymous{}, nil
}

func (Manager) SerializeUser(user auth.User) (map[string]any, error) {
	return map[string]any{"username": user.GetID(), "name": user.GetName()}, nil
}

// DeserializeUser ignores the payload: this backend knows exactly one
// identity, so every token resolves to it regardless of what was serialized.
func (Manager) DeserializeUser(payload map[string]any) (auth.User, error) {
	return anonymous{}, nil
}

func (Manager) IsLoggedIn(ctx context.Context) bool { return true }

func (Manager) LoginURL(next string) string { return "/" }
func (Manager) LogoutURL() string           { return "/" }

func (Manager) IsAuthorizedConfiguration(ctx context.Context, req auth.ConfigurationRequest) (bool, error) {
	return true, nil
}

func (Manager) IsAuthorizedConnection(ctx context.Context, req auth.ConnectionRequest) (bool, error) {
	return true, nil
}

func (Manager) IsAuthorizedDag(ctx context.Context, req auth.DagRequest) (bool, error) {
	return true, nil
}

func (Manager) IsAuthorizedAsset(ctx context.Context, req auth.AssetRequest) (bool, error) {
	return true, nil
}

func (Manager) IsAuthorizedPool(ctx context.Context, req auth.PoolRequest) (bool, error) {
	return true, nil
}

func (Manager) IsAuthorizedVariable(ctx context.Context, req auth.VariableRequest) (bool, error) {
	return true, nil
}

func (Manager) IsAuthorizedView(ctx context.Context, req auth.ViewRequest) (bool, error) {
	return true, nil
}

func (Manager) IsAuthorizedCustomView(ctx context.Context, req auth.CustomViewRequest) (bool, error) {
	return true, nil
}

func (Manager) FilterPermittedMenuItems(ctx context.Context, items []auth.MenuItem) ([]auth.MenuItem, error) {
	return items, nil
}
