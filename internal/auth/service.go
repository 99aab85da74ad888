package auth

import (
	"context"
	"fmt"
	"time"

	"skein.org/internal/obs"
)

// Service wraps a Manager with the batch and bulk operations every backend
// gets for free: request-sequence authorization, permitted-dag-id filtering,
// token issuance and current-identity helpers. Backends with an efficient
// bulk policy query override the defaults by implementing the Batcher
// interfaces; everything here is otherwise expressed purely in terms of the
// Manager contract.
//
// A Service holds no mutable state and is safe for concurrent use.
type Service struct {
	manager Manager
	dags    DagStore
	codec   *TokenCodec
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithDagStore wires the workflow-id enumeration used by GetPermittedDagIDs.
func WithDagStore(store DagStore) ServiceOption {
	return func(s *Service) error {
		s.dags = store
		return nil
	}
}

// WithTokenCodec enables token issuance and verification.
func WithTokenCodec(codec *TokenCodec) ServiceOption {
	return func(s *Service) error {
		s.codec = codec
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService composes the batch/bulk layer over a backend.
func NewService(manager Manager, opts ...ServiceOption) (*Service, error) {
	if manager == nil {
		return nil, fmt.Errorf("%w: auth manager is required", ErrNotImplemented)
	}
	svc := &Service{
		manager: manager,
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Manager exposes the wrapped backend for capability probing.
func (s *Service) Manager() Manager {
	return s.manager
}

// --- identity helpers ------------------------------------------------------

// GetUser returns the current identity, or ErrUnauthenticated.
func (s *Service) GetUser(ctx context.Context) (User, error) {
	return s.manager.GetUser(ctx)
}

// GetUserID returns the current identity's id. A missing identity is logged
// at error level before the ErrUnauthenticated surfaces.
func (s *Service) GetUserID(ctx context.Context) (string, error) {
	user, err := s.manager.GetUser(ctx)
	if err != nil {
		obs.Error("current user id requested but nobody is signed in", nil)
		return "", err
	}
	return user.GetID(), nil
}

// GetUserName returns the current identity's display name. A missing
// identity is logged at error level before the ErrUnauthenticated surfaces.
func (s *Service) GetUserName(ctx context.Context) (string, error) {
	user, err := s.manager.GetUser(ctx)
	if err != nil {
		obs.Error("current user name requested but nobody is signed in", nil)
		return "", err
	}
	return user.GetName(), nil
}

// IsLoggedIn reports whether an identity is bound to the context.
func (s *Service) IsLoggedIn(ctx context.Context) bool {
	return s.manager.IsLoggedIn(ctx)
}

// --- tokens -----------------------------------------------------------------

// IssueToken serializes the identity through the backend and wraps it in a
// signed, time-bounded token.
func (s *Service) IssueToken(user User) (string, time.Time, error) {
	if s.codec == nil {
		return "", time.Time{}, fmt.Errorf("%w: token codec is not configured", ErrNotImplemented)
	}
	payload, err := s.manager.SerializeUser(user)
	if err != nil {
		return "", time.Time{}, err
	}
	token, exp, err := s.codec.Issue(payload)
	if err != nil {
		return "", time.Time{}, err
	}
	obs.ObserveTokenIssued()
	return token, exp, nil
}

// UserFromToken verifies a bearer token and reconstructs the identity it
// carries. Any failure is ErrInvalidToken.
func (s *Service) UserFromToken(token string) (User, error) {
	if s.codec == nil {
		return nil, fmt.Errorf("%w: token codec is not configured", ErrNotImplemented)
	}
	payload, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.manager.DeserializeUser(payload)
	if err != nil || user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// --- instrumented single checks ----------------------------------------------

func (s *Service) IsAuthorizedConfiguration(ctx context.Context, req ConfigurationRequest) (bool, error) {
	return s.observe("configuration", string(req.Method))(s.manager.IsAuthorizedConfiguration(ctx, req))
}

func (s *Service) IsAuthorizedConnection(ctx context.Context, req ConnectionRequest) (bool, error) {
	return s.observe("connection", string(req.Method))(s.manager.IsAuthorizedConnection(ctx, req))
}

func (s *Service) IsAuthorizedDag(ctx context.Context, req DagRequest) (bool, error) {
	return s.observe("dag", string(req.Method))(s.manager.IsAuthorizedDag(ctx, req))
}

func (s *Service) IsAuthorizedAsset(ctx context.Context, req AssetRequest) (bool, error) {
	return s.observe("asset", string(req.Method))(s.manager.IsAuthorizedAsset(ctx, req))
}

func (s *Service) IsAuthorizedPool(ctx context.Context, req PoolRequest) (bool, error) {
	return s.observe("pool", string(req.Method))(s.manager.IsAuthorizedPool(ctx, req))
}

func (s *Service) IsAuthorizedVariable(ctx context.Context, req VariableRequest) (bool, error) {
	return s.observe("variable", string(req.Method))(s.manager.IsAuthorizedVariable(ctx, req))
}

func (s *Service) IsAuthorizedView(ctx context.Context, req ViewRequest) (bool, error) {
	return s.observe("view", string(req.View))(s.manager.IsAuthorizedView(ctx, req))
}

func (s *Service) IsAuthorizedCustomView(ctx context.Context, req CustomViewRequest) (bool, error) {
	return s.observe("custom_view", req.Action.String())(s.manager.IsAuthorizedCustomView(ctx, req))
}

// FilterPermittedMenuItems delegates to the backend; menu-to-resource
// mapping is backend knowledge.
func (s *Service) FilterPermittedMenuItems(ctx context.Context, items []MenuItem) ([]MenuItem, error) {
	return s.manager.FilterPermittedMenuItems(ctx, items)
}

func (s *Service) observe(resource, method string) func(bool, error) (bool, error) {
	return func(allowed bool, err error) (bool, error) {
		if err == nil {
			obs.ObserveDecision(resource, method, allowed)
		}
		return allowed, err
	}
}

// --- batch checks -------------------------------------------------------------

// BatchIsAuthorizedConnection authorizes a request sequence as a whole:
// true iff every element is individually authorized; an empty sequence is
// vacuously true. Delegates to the backend when it implements
// ConnectionBatcher.
func (s *Service) BatchIsAuthorizedConnection(ctx context.Context, reqs []ConnectionRequest) (bool, error) {
	if b, ok := s.manager.(ConnectionBatcher); ok {
		return b.BatchIsAuthorizedConnection(ctx, reqs)
	}
	for _, req := range reqs {
		ok, err := s.manager.IsAuthorizedConnection(ctx, req)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// BatchIsAuthorizedDag is the dag counterpart of BatchIsAuthorizedConnection.
func (s *Service) BatchIsAuthorizedDag(ctx context.Context, reqs []DagRequest) (bool, error) {
	if b, ok := s.manager.(DagBatcher); ok {
		return b.BatchIsAuthorizedDag(ctx, reqs)
	}
	for _, req := range reqs {
		ok, err := s.manager.IsAuthorizedDag(ctx, req)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// BatchIsAuthorizedPool is the pool counterpart of BatchIsAuthorizedConnection.
func (s *Service) BatchIsAuthorizedPool(ctx context.Context, reqs []PoolRequest) (bool, error) {
	if b, ok := s.manager.(PoolBatcher); ok {
		return b.BatchIsAuthorizedPool(ctx, reqs)
	}
	for _, req := range reqs {
		ok, err := s.manager.IsAuthorizedPool(ctx, req)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// BatchIsAuthorizedVariable is the variable counterpart of
// BatchIsAuthorizedConnection.
func (s *Service) BatchIsAuthorizedVariable(ctx context.Context, reqs []VariableRequest) (bool, error) {
	if b, ok := s.manager.(VariableBatcher); ok {
		return b.BatchIsAuthorizedVariable(ctx, reqs)
	}
	for _, req := range reqs {
		ok, err := s.manager.IsAuthorizedVariable(ctx, req)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// --- permitted dag ids ----------------------------------------------------------

// PermittedDagsRequest parameterizes dag-id filtering. Methods defaults to
// {GET, PUT}; User, when non-nil, overrides the current identity.
type PermittedDagsRequest struct {
	Methods []ResourceMethod
	User    User
}

// GetPermittedDagIDs enumerates every workflow id from the store and filters
// it down to the permitted subset. Enumeration failure surfaces as
// ErrDependency with no partial result.
func (s *Service) GetPermittedDagIDs(ctx context.Context, req PermittedDagsRequest) (map[string]struct{}, error) {
	if s.dags == nil {
		return nil, fmt.Errorf("%w: dag store is not configured", ErrDependency)
	}
	ids, err := s.dags.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list dag ids: %v", ErrDependency, err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return s.FilterPermittedDagIDs(ctx, set, req)
}

// FilterPermittedDagIDs reduces a candidate id set to the ids the identity
// may read or edit.
//
// Two tiers: an identity authorized for the unscoped GET or PUT dag check
// gets the whole input set back without per-id calls; otherwise each id is
// included iff any requested method authorizes that specific dag. The fast
// path checks only the two unscoped predicates, by design.
func (s *Service) FilterPermittedDagIDs(ctx context.Context, dagIDs map[string]struct{}, req PermittedDagsRequest) (map[string]struct{}, error) {
	methods := req.Methods
	if len(methods) == 0 {
		methods = []ResourceMethod{MethodGet, MethodPut}
	}
	requested := func(m ResourceMethod) bool {
		for _, v := range methods {
			if v == m {
				return true
			}
		}
		return false
	}

	for _, m := range []ResourceMethod{MethodGet, MethodPut} {
		if !requested(m) {
			continue
		}
		ok, err := s.manager.IsAuthorizedDag(ctx, DagRequest{Method: m, User: req.User})
		if err != nil {
			return nil, err
		}
		if ok {
			return dagIDs, nil
		}
	}

	permitted := make(map[string]struct{})
	for id := range dagIDs {
		for _, m := range []ResourceMethod{MethodGet, MethodPut} {
			if !requested(m) {
				continue
			}
			ok, err := s.manager.IsAuthorizedDag(ctx, DagRequest{
				Method:  m,
				Details: &DagDetails{ID: id},
				User:    req.User,
			})
			if err != nil {
				return nil, err
			}
			if ok {
				permitted[id] = struct{}{}
				break
			}
		}
	}
	return permitted, nil
}
