package auth

import "context"

// Request structs carry the parameters of a single authorization check.
// User, when non-nil, asks the question on behalf of that identity instead
// of the one bound to the context (service-to-service checks).

// ConfigurationRequest checks an action on configuration.
type ConfigurationRequest struct {
	Method  ResourceMethod
	Details *ConfigurationDetails
	User    User
}

// ConnectionRequest checks an action on a connection.
type ConnectionRequest struct {
	Method  ResourceMethod
	Details *ConnectionDetails
	User    User
}

// DagRequest checks an action on a dag. AccessEntity, when set, targets a
// kind of dag information (runs, task logs, ...) rather than the dag itself.
type DagRequest struct {
	Method       ResourceMethod
	AccessEntity DagAccessEntity
	Details      *DagDetails
	User         User
}

// AssetRequest checks an action on an asset.
type AssetRequest struct {
	Method  ResourceMethod
	Details *AssetDetails
	User    User
}

// PoolRequest checks an action on a pool.
type PoolRequest struct {
	Method  ResourceMethod
	Details *PoolDetails
	User    User
}

// VariableRequest checks an action on a variable.
type VariableRequest struct {
	Method  ResourceMethod
	Details *VariableDetails
	User    User
}

// ViewRequest checks access to a read-only installation view.
type ViewRequest struct {
	View AccessView
	User User
}

// CustomViewRequest checks an action on a view the backend or a plugin
// registered itself. The action may carry an arbitrary plugin-defined name.
type CustomViewRequest struct {
	Action       Action
	ResourceName string
	User         User
}

// Manager is the decision contract every authorization backend implements.
// Every method is mandatory; the compiler rejects partial implementations.
//
// Predicates return false for "not authorized" and reserve errors for
// genuinely exceptional conditions: a missing identity
// (ErrUnauthenticated) or a collaborator failure (ErrDependency). Managers
// hold no mutable state of their own and must be safe for concurrent use.
type Manager interface {
	// GetUser returns the identity bound to the context, or
	// ErrUnauthenticated when nobody is signed in.
	GetUser(ctx context.Context) (User, error)

	// SerializeUser produces the canonical map form of an identity, the
	// payload embedded in issued tokens.
	SerializeUser(user User) (map[string]any, error)

	// DeserializeUser is the inverse of SerializeUser.
	DeserializeUser(payload map[string]any) (User, error)

	// IsLoggedIn reports whether an identity is bound to the context.
	IsLoggedIn(ctx context.Context) bool

	// LoginURL returns the login page, optionally redirecting to next
	// after completion.
	LoginURL(next string) string

	// LogoutURL returns the logout page.
	LogoutURL() string

	IsAuthorizedConfiguration(ctx context.Context, req ConfigurationRequest) (bool, error)
	IsAuthorizedConnection(ctx context.Context, req ConnectionRequest) (bool, error)
	IsAuthorizedDag(ctx context.Context, req DagRequest) (bool, error)
	IsAuthorizedAsset(ctx context.Context, req AssetRequest) (bool, error)
	IsAuthorizedPool(ctx context.Context, req PoolRequest) (bool, error)
	IsAuthorizedVariable(ctx context.Context, req VariableRequest) (bool, error)
	IsAuthorizedView(ctx context.Context, req ViewRequest) (bool, error)
	IsAuthorizedCustomView(ctx context.Context, req CustomViewRequest) (bool, error)

	// FilterPermittedMenuItems reduces menu items to those the current
	// identity may see. Menu-to-resource mapping is backend knowledge.
	FilterPermittedMenuItems(ctx context.Context, items []MenuItem) ([]MenuItem, error)
}

// Batcher interfaces are optional upgrades a Manager may implement when its
// policy store answers bulk questions more efficiently than a loop of
// single checks. The Service detects them by type assertion.

type ConnectionBatcher interface {
	BatchIsAuthorizedConnection(ctx context.Context, reqs []ConnectionRequest) (bool, error)
}

type DagBatcher interface {
	BatchIsAuthorizedDag(ctx context.Context, reqs []DagRequest) (bool, error)
}

type PoolBatcher interface {
	BatchIsAuthorizedPool(ctx context.Context, reqs []PoolRequest) (bool, error)
}

type VariableBatcher interface {
	BatchIsAuthorizedVariable(ctx context.Context, reqs []VariableRequest) (bool, error)
}
