package auth

// ResourceMethod is the closed set of actions an authorization check can be
// about. Plugin-defined action names on custom views go through Action
// instead; the enum itself is not extensible at runtime.
type ResourceMethod string

const (
	MethodGet    ResourceMethod = "GET"
	MethodPost   ResourceMethod = "POST"
	MethodPut    ResourceMethod = "PUT"
	MethodDelete ResourceMethod = "DELETE"
	MethodMenu   ResourceMethod = "MENU"
)

// Valid reports whether m is one of the closed enum values.
func (m ResourceMethod) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodMenu:
		return true
	}
	return false
}

// DagAccessEntity narrows a dag check from the dag definition itself to a
// particular kind of dag information. The zero value targets the dag itself.
type DagAccessEntity string

const (
	DagEntityAuditLog     DagAccessEntity = "AUDIT_LOG"
	DagEntityCode         DagAccessEntity = "CODE"
	DagEntityDependencies DagAccessEntity = "DEPENDENCIES"
	DagEntityRun          DagAccessEntity = "RUN"
	DagEntityTaskInstance DagAccessEntity = "TASK_INSTANCE"
	DagEntityTaskLogs     DagAccessEntity = "TASK_LOGS"
	DagEntityWarning      DagAccessEntity = "WARNING"
	DagEntityXCom         DagAccessEntity = "XCOM"
)

// AccessView identifies a read-only page of the installation.
type AccessView string

const (
	ViewClusterActivity AccessView = "CLUSTER_ACTIVITY"
	ViewDocs            AccessView = "DOCS"
	ViewImportErrors    AccessView = "IMPORT_ERRORS"
	ViewJobs            AccessView = "JOBS"
	ViewPlugins         AccessView = "PLUGINS"
	ViewProviders       AccessView = "PROVIDERS"
	ViewTriggers        AccessView = "TRIGGERS"
	ViewWebsite         AccessView = "WEBSITE"
)

// Details structs narrow a check from "any resource of this kind" to a
// specific instance. A nil details pointer means the kind in general.

// ConfigurationDetails identifies a configuration section.
type ConfigurationDetails struct {
	Section string
}

// ConnectionDetails identifies a stored connection.
type ConnectionDetails struct {
	ConnID string
}

// DagDetails identifies a workflow.
type DagDetails struct {
	ID string
}

// AssetDetails identifies an asset by URI.
type AssetDetails struct {
	URI string
}

// PoolDetails identifies a slot pool.
type PoolDetails struct {
	Name string
}

// VariableDetails identifies a stored variable.
type VariableDetails struct {
	Key string
}

// MenuItem describes one entry of the UI navigation menu.
type MenuItem struct {
	Name  string
	Label string
	Href  string
}

// Action is either one of the closed resource methods or a free-form,
// plugin-defined action name used with custom views. Custom names are passed
// through to backends verbatim, without validation against the enum.
type Action struct {
	method ResourceMethod
	custom string
}

// MethodAction wraps a closed-enum method.
func MethodAction(m ResourceMethod) Action {
	return Action{method: m}
}

// CustomAction wraps a plugin-defined action name such as "can_do".
func CustomAction(name string) Action {
	return Action{custom: name}
}

// IsCustom reports whether the action carries a plugin-defined name.
func (a Action) IsCustom() bool {
	return a.custom != ""
}

// Method returns the closed-enum method when the action is not custom.
func (a Action) Method() (ResourceMethod, bool) {
	if a.custom != "" {
		return "", false
	}
	return a.method, true
}

// String returns the verbatim action name seen by backends.
func (a Action) String() string {
	if a.custom != "" {
		return a.custom
	}
	return string(a.method)
}
