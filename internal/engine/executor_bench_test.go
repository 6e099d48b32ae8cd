package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/relayworks/relay/internal/handlers"
	"github.com/relayworks/relay/internal/store"
	"github.com/relayworks/relay/pkg/schema"
)

func newBenchExecutor(b *testing.B) (*mockStore, Executor) {
	b.Helper()
	ms := newMockStore()
	registry := handlers.NewRegistry()
	if err := registry.Register(&testHandler{stepType: schema.StepSendNotification}); err != nil {
		b.Fatal(err)
	}
	exec := NewExecutor(ms, ms, registry, ExecutorConfig{StepTimeout: time.Minute}, nil)
	return ms, exec
}

// chainDef builds a linear chain of n notification steps.
func chainDef(n int) *schema.WorkflowDefinition {
	steps := make([]schema.Step, n)
	conns := make([]schema.Connection, n)
	prev := "trigger"
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		steps[i] = notifyStep(id)
		conns[i] = conn(prev, id)
		prev = id
	}
	return defWith(steps, conns)
}

func BenchmarkExecutorRun_Chain(b *testing.B) {
	for _, n := range []int{5, 20, 50, 100} {
		b.Run(fmt.Sprintf("steps=%d", n), func(b *testing.B) {
			ms, exec := newBenchExecutor(b)
			def := chainDef(n)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				id := fmt.Sprintf("exec-%d", i)
				record := &store.Execution{ID: id, WorkflowID: def.ID, Status: schema.ExecutionStatusPending}
				if err := ms.CreateExecution(ctx, record); err != nil {
					b.Fatal(err)
				}
				result := exec.Run(ctx, def, record)
				if result.Status != schema.ExecutionStatusCompleted {
					b.Fatalf("unexpected status %s", result.Status)
				}
			}
		})
	}
}

func BenchmarkExecutorRun_GuardedBranching(b *testing.B) {
	ms, exec := newBenchExecutor(b)
	def := defWith(
		[]schema.Step{notifyStep("classify"), notifyStep("a"), notifyStep("b"), notifyStep("c")},
		[]schema.Connection{
			conn("trigger", "classify"),
			guardedConn("classify", "a", schema.Condition{Field: "route", Operator: schema.OpEquals, Value: "a"}),
			guardedConn("classify", "b", schema.Condition{Field: "route", Operator: schema.OpEquals, Value: "b"}),
			conn("classify", "c"),
		},
	)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := fmt.Sprintf("exec-%d", i)
		record := &store.Execution{
			ID: id, WorkflowID: def.ID, Status: schema.ExecutionStatusPending,
			TriggerPayload: map[string]any{"route": "b"},
		}
		if err := ms.CreateExecution(ctx, record); err != nil {
			b.Fatal(err)
		}
		exec.Run(ctx, def, record)
	}
}

func BenchmarkParseGraph(b *testing.B) {
	def := chainDef(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseGraph(def); err != nil {
			b.Fatal(err)
		}
	}
}
