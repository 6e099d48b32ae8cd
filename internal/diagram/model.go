package diagram

// NodeKind classifies a diagram node by its workflow step type.
type NodeKind string

const (
	NodeKindTrigger NodeKind = "trigger"
	NodeKindTask    NodeKind = "task"
	NodeKindMessage NodeKind = "message"
	NodeKindEvent   NodeKind = "event"
	NodeKindData    NodeKind = "data"
	NodeKindWebhook NodeKind = "webhook"
	NodeKindDelay   NodeKind = "delay"
)

// Model is the intermediate representation consumed by renderers.
type Model struct {
	Title string
	Nodes []*Node
	Edges []Edge
}

// Node represents the trigger or a single step.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries runtime state for a node when rendering a live
// execution rather than a bare definition.
type StatusOverlay struct {
	Status     string
	DurationMs int64
	Error      string
}

// Edge is a directed connection, optionally labelled with its guard.
type Edge struct {
	From  string
	To    string
	Label string
}
