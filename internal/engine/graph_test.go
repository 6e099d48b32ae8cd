package engine

import (
	"testing"

	"github.com/relayworks/relay/pkg/schema"
)

// --- helpers ---

func notifyStep(id string) schema.Step {
	return schema.Step{
		ID:   id,
		Type: schema.StepSendNotification,
		Name: id,
	}
}

func conn(from, to string) schema.Connection {
	return schema.Connection{
		ID:     from + "-" + to,
		FromID: from,
		ToID:   to,
	}
}

func guardedConn(from, to string, guard schema.Condition) schema.Connection {
	c := conn(from, to)
	c.Guard = &guard
	return c
}

func defWith(steps []schema.Step, conns []schema.Connection) *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		ID:      "wf-1",
		Name:    "test workflow",
		Trigger: schema.Trigger{ID: "trigger", Type: schema.TriggerManual, Enabled: true},
		Steps:   steps,
		Connections: conns,
		Enabled: true,
	}
}

func assertError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	relayErr, ok := err.(*schema.RelayError)
	if !ok {
		t.Fatalf("expected RelayError, got %T: %v", err, err)
	}
	if relayErr.Code != expectedCode {
		t.Errorf("expected code %s, got %s: %s", expectedCode, relayErr.Code, relayErr.Message)
	}
}

// indexOf returns the position of each step in the sorted order.
func indexOf(g *Graph) map[string]int {
	m := make(map[string]int, len(g.Sorted))
	for i, s := range g.Sorted {
		m[s] = i
	}
	return m
}

// --- graph structure tests ---

func TestParseGraph_LinearChain(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a"), notifyStep("b"), notifyStep("c")},
		[]schema.Connection{conn("trigger", "a"), conn("a", "b"), conn("b", "c")},
	)

	g, err := ParseGraph(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Entry) != 1 || g.Entry[0].ToID != "a" {
		t.Errorf("expected entry connection to a, got %+v", g.Entry)
	}

	pos := indexOf(g)
	if !(pos["a"] < pos["b"] && pos["b"] < pos["c"]) {
		t.Errorf("sorted order violates chain: %v", g.Sorted)
	}
}

func TestParseGraph_BranchingPreservesDeclarationOrder(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("classify"), notifyStep("escalate"), notifyStep("archive")},
		[]schema.Connection{
			conn("trigger", "classify"),
			guardedConn("classify", "escalate", schema.Condition{Field: "priority", Operator: schema.OpEquals, Value: "high"}),
			conn("classify", "archive"),
		},
	)

	g, err := ParseGraph(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := g.Outgoing["classify"]
	if len(out) != 2 {
		t.Fatalf("expected 2 outgoing connections, got %d", len(out))
	}
	if out[0].ToID != "escalate" || out[1].ToID != "archive" {
		t.Errorf("declaration order not preserved: %s, %s", out[0].ToID, out[1].ToID)
	}
	if out[0].Guard == nil {
		t.Error("expected guard on first connection")
	}
}

func TestParseGraph_MultipleEntryConnections(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a"), notifyStep("b")},
		[]schema.Connection{
			guardedConn("trigger", "a", schema.Condition{Field: "urgent", Operator: schema.OpEquals, Value: true}),
			conn("trigger", "b"),
		},
	)

	g, err := ParseGraph(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Entry) != 2 {
		t.Fatalf("expected 2 entry connections, got %d", len(g.Entry))
	}
	if g.Entry[0].ToID != "a" || g.Entry[1].ToID != "b" {
		t.Errorf("entry order not preserved: %s, %s", g.Entry[0].ToID, g.Entry[1].ToID)
	}
}

// --- validation tests ---

func TestParseGraph_NilDefinition(t *testing.T) {
	_, err := ParseGraph(nil)
	assertError(t, err, schema.ErrCodeValidation)
}

func TestParseGraph_NoSteps(t *testing.T) {
	_, err := ParseGraph(defWith(nil, nil))
	assertError(t, err, schema.ErrCodeValidation)
}

func TestParseGraph_EmptyStepID(t *testing.T) {
	def := defWith(
		[]schema.Step{{Type: schema.StepSendNotification}},
		[]schema.Connection{conn("trigger", "a")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeValidation)
}

func TestParseGraph_DuplicateStepID(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a"), notifyStep("a")},
		[]schema.Connection{conn("trigger", "a")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeValidation)
}

func TestParseGraph_UnknownStepType(t *testing.T) {
	def := defWith(
		[]schema.Step{{ID: "a", Type: "teleport"}},
		[]schema.Connection{conn("trigger", "a")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeValidation)
}

func TestParseGraph_ConnectionToUnknownStep(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a")},
		[]schema.Connection{conn("trigger", "a"), conn("a", "ghost")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeValidation)
}

func TestParseGraph_ConnectionFromUnknownStep(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a")},
		[]schema.Connection{conn("trigger", "a"), conn("ghost", "a")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeValidation)
}

func TestParseGraph_NoEntryConnection(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a"), notifyStep("b")},
		[]schema.Connection{conn("a", "b")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeValidation)
}

// --- cycle detection tests ---

func TestParseGraph_SelfLoop(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a")},
		[]schema.Connection{conn("trigger", "a"), conn("a", "a")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeCycleDetected)
}

func TestParseGraph_TwoNodeCycle(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a"), notifyStep("b")},
		[]schema.Connection{conn("trigger", "a"), conn("a", "b"), conn("b", "a")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeCycleDetected)
}

func TestParseGraph_LongCycle(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a"), notifyStep("b"), notifyStep("c")},
		[]schema.Connection{conn("trigger", "a"), conn("a", "b"), conn("b", "c"), conn("c", "a")},
	)
	_, err := ParseGraph(def)
	assertError(t, err, schema.ErrCodeCycleDetected)
}

func TestParseGraph_DiamondIsNotACycle(t *testing.T) {
	def := defWith(
		[]schema.Step{notifyStep("a"), notifyStep("b"), notifyStep("c"), notifyStep("d")},
		[]schema.Connection{
			conn("trigger", "a"),
			conn("a", "b"), conn("a", "c"),
			conn("b", "d"), conn("c", "d"),
		},
	)
	g, err := ParseGraph(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := indexOf(g)
	if !(pos["a"] < pos["b"] && pos["a"] < pos["c"] && pos["b"] < pos["d"] && pos["c"] < pos["d"]) {
		t.Errorf("sorted order violates diamond: %v", g.Sorted)
	}
}
