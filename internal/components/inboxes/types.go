// Package inboxes discovers the notification inboxes of a Solid pod user.
//
// A discovery run looks for the global inbox declared by the WebID profile,
// then resolves the user's storage root and looks for the application inbox
// declared by the settings document inside it. Both are merged into one
// ordered list, global first.
package inboxes

// Shape is the rendering hint attached to a descriptor.
type Shape string

// ShapeDefault is the only shape discovery produces.
const ShapeDefault Shape = "default"

// SettingsDocument is the app settings document name, relative to the storage root.
const SettingsDocument = "settings.ttl"

// Descriptor is one discovered inbox.
type Descriptor struct {
	Path      string `json:"path"`
	InboxName string `json:"inboxName"`
	Shape     Shape  `json:"shape"`
}

// Stage names one step of a discovery run.
type Stage string

const (
	StageGlobal  Stage = "global"
	StageStorage Stage = "storage"
	StageApp     Stage = "app"
)

// Failure records a stage that could not be determined. The run continued without it.
type Failure struct {
	Stage   Stage  `json:"stage"`
	Target  string `json:"target"`
	Message string `json:"message"`
}

// Result is the snapshot a run hands to its caller. It is never mutated after return.
type Result struct {
	RunID    string       `json:"run_id"`
	WebID    string       `json:"webid"`
	Inboxes  []Descriptor `json:"inboxes"`
	Failures []Failure    `json:"failures,omitempty"`
}
