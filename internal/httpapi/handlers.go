package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skein.org/internal/auth"
	"skein.org/internal/obs"
)

// ReadyProbe checks serving readiness (for example, a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// defaultMenu is the navigation skeleton offered to every identity before
// backend filtering. Backends append their own views via AddView.
var defaultMenu = []auth.MenuItem{
	{Name: "dags", Label: "Dags", Href: "/v1/dags"},
	{Name: "connections", Label: "Connections", Href: "/v1/connections"},
	{Name: "pools", Label: "Pools", Href: "/v1/pools"},
	{Name: "variables", Label: "Variables", Href: "/v1/variables"},
	{Name: "configuration", Label: "Configuration", Href: "/v1/configuration"},
	{Name: "admin", Label: "Admin", Href: "/v1/admin"},
}

// API is the HTTP layer over the authorization service.
type API struct {
	mux          *http.ServeMux
	readyProbe   ReadyProbe
	version      string
	svc          *auth.Service
	menu         []auth.MenuItem
	subAppPrefix string
}

func New(svc *auth.Service, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		svc:        svc,
		menu:       append([]auth.MenuItem(nil), defaultMenu...),
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.HandleFunc("/v1/whoami", a.handleWhoami)
	a.mux.HandleFunc("/v1/dags", a.handlePermittedDags)
	a.mux.HandleFunc("/v1/permissions/check", a.handlePermissionsCheck)
	a.mux.HandleFunc("/v1/menu", a.handleMenu)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// Backend contributions: a mountable sub-app (login endpoints) and views.
	manager := svc.Manager()
	if prefix, handler, ok := auth.SubAppOf(manager); ok {
		a.subAppPrefix = prefix
		a.mux.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	}
	auth.RegisterManagerViews(manager, a)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// AddView implements auth.ViewRegistry; backends call it during composition.
func (a *API) AddView(name, href string) {
	a.menu = append(a.menu, auth.MenuItem{Name: name, Label: name, Href: href})
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- platform handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "skein-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "skein-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- identity and authorization handlers ---

func (a *API) handleWhoami(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, err := a.svc.GetUser(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         user.GetID(),
		"name":       user.GetName(),
		"logged_in":  a.svc.IsLoggedIn(r.Context()),
		"logout_url": a.svc.Manager().LogoutURL(),
	})
}

// handlePermittedDags returns the dag ids the caller may touch. The optional
// methods query parameter is a comma-separated list (GET,PUT); unset means
// read-or-edit.
func (a *API) handlePermittedDags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	methods, err := parseMethods(r.URL.Query().Get("methods"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ids, err := a.svc.GetPermittedDagIDs(r.Context(), auth.PermittedDagsRequest{Methods: methods})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"dag_ids": out, "count": len(out)})
}

type permissionCheck struct {
	Resource     string `json:"resource"`
	Method       string `json:"method"`
	Name         string `json:"name,omitempty"`
	AccessEntity string `json:"access_entity,omitempty"`
	Action       string `json:"action,omitempty"`
}

type permissionsCheckRequest struct {
	Checks []permissionCheck `json:"checks"`
}

// handlePermissionsCheck authorizes a request sequence as a whole: the
// response is allowed only when every check in the body passes.
func (a *API) handlePermissionsCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req permissionsCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	allowed := true
	for _, check := range req.Checks {
		ok, err := a.runCheck(r.Context(), check)
		if err != nil {
			if errors.Is(err, errBadCheck) {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			handleAuthError(w, r, err)
			return
		}
		if !ok {
			allowed = false
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

var errBadCheck = errors.New("invalid check")

func (a *API) runCheck(ctx context.Context, check permissionCheck) (bool, error) {
	resource := strings.ToLower(strings.TrimSpace(check.Resource))
	method := auth.ResourceMethod(strings.ToUpper(strings.TrimSpace(check.Method)))
	if resource != "custom_view" && resource != "view" && !method.Valid() {
		return false, fmt.Errorf("%w: unknown method %q", errBadCheck, check.Method)
	}
	switch resource {
	case "configuration":
		var details *auth.ConfigurationDetails
		if check.Name != "" {
			details = &auth.ConfigurationDetails{Section: check.Name}
		}
		return a.svc.IsAuthorizedConfiguration(ctx, auth.ConfigurationRequest{Method: method, Details: details})
	case "connection":
		var details *auth.ConnectionDetails
		if check.Name != "" {
			details = &auth.ConnectionDetails{ConnID: check.Name}
		}
		return a.svc.IsAuthorizedConnection(ctx, auth.ConnectionRequest{Method: method, Details: details})
	case "dag":
		var details *auth.DagDetails
		if check.Name != "" {
			details = &auth.DagDetails{ID: check.Name}
		}
		return a.svc.IsAuthorizedDag(ctx, auth.DagRequest{
			Method:       method,
			AccessEntity: auth.DagAccessEntity(check.AccessEntity),
			Details:      details,
		})
	case "asset":
		var details *auth.AssetDetails
		if check.Name != "" {
			details = &auth.AssetDetails{URI: check.Name}
		}
		return a.svc.IsAuthorizedAsset(ctx, auth.AssetRequest{Method: method, Details: details})
	case "pool":
		var details *auth.PoolDetails
		if check.Name != "" {
			details = &auth.PoolDetails{Name: check.Name}
		}
		return a.svc.IsAuthorizedPool(ctx, auth.PoolRequest{Method: method, Details: details})
	case "variable":
		var details *auth.VariableDetails
		if check.Name != "" {
			details = &auth.VariableDetails{Key: check.Name}
		}
		return a.svc.IsAuthorizedVariable(ctx, auth.VariableRequest{Method: method, Details: details})
	case "view":
		return a.svc.IsAuthorizedView(ctx, auth.ViewRequest{View: auth.AccessView(check.Name)})
	case "custom_view":
		if check.Action == "" {
			return false, fmt.Errorf("%w: custom_view checks require an action", errBadCheck)
		}
		return a.svc.IsAuthorizedCustomView(ctx, auth.CustomViewRequest{
			Action:       actionFor(check.Action),
			ResourceName: check.Name,
		})
	default:
		return false, fmt.Errorf("%w: unknown resource %q", errBadCheck, check.Resource)
	}
}

// actionFor maps a wire action onto the well-known method actions, falling
// back to a named custom action.
func actionFor(raw string) auth.Action {
	method := auth.ResourceMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if method.Valid() {
		return auth.MethodAction(method)
	}
	return auth.CustomAction(raw)
}

func (a *API) handleMenu(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	items, err := a.svc.FilterPermittedMenuItems(r.Context(), a.menu)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func parseMethods(raw string) ([]auth.ResourceMethod, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var methods []auth.ResourceMethod
	for _, part := range strings.Split(raw, ",") {
		m := auth.ResourceMethod(strings.ToUpper(strings.TrimSpace(part)))
		if !m.Valid() {
			return nil, fmt.Errorf("methods parameter: unknown method %q", part)
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		unauthorized(w, r, "authentication required")
	case errors.Is(err, auth.ErrNotImplemented):
		writeError(w, r, http.StatusNotImplemented, "not supported by the configured auth manager")
	case errors.Is(err, auth.ErrDependency):
		writeError(w, r, http.StatusServiceUnavailable, "dependency failure")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{"error": msg}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
