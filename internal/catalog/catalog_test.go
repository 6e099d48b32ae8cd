package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/relay/internal/validation"
	"github.com/relayworks/relay/pkg/schema"
)

func TestBuiltin_StableSlugsAndOrder(t *testing.T) {
	templates := Builtin()
	require.Len(t, templates, 3)
	assert.Equal(t, "email-to-task", templates[0].Slug)
	assert.Equal(t, "meeting-followup", templates[1].Slug)
	assert.Equal(t, "sales-lead", templates[2].Slug)
}

func TestBuiltin_DefinitionsPassValidation(t *testing.T) {
	wv, err := validation.NewWorkflowValidator(nil)
	require.NoError(t, err)

	for _, tmpl := range Builtin() {
		t.Run(tmpl.Slug, func(t *testing.T) {
			def := tmpl.Definition()
			result := wv.Validate(def)
			assert.True(t, result.Valid(), "errors: %+v", result.Errors)
			assert.Empty(t, result.Warnings)
		})
	}
}

func TestGet_KnownSlug(t *testing.T) {
	tmpl, ok := Get("meeting-followup")
	require.True(t, ok)
	assert.Equal(t, "Meeting Follow-up", tmpl.Name)
}

func TestGet_UnknownSlug(t *testing.T) {
	_, ok := Get("does-not-exist")
	assert.False(t, ok)
}

func TestInstantiate_FreshIdentity(t *testing.T) {
	tmpl, ok := Get("email-to-task")
	require.True(t, ok)

	a := tmpl.Instantiate("")
	b := tmpl.Instantiate("")

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, "email-to-task-template", a.ID)
	assert.True(t, a.Enabled)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, "Email to Task", a.Name)
}

func TestInstantiate_CustomName(t *testing.T) {
	tmpl, ok := Get("sales-lead")
	require.True(t, ok)

	def := tmpl.Instantiate("EMEA leads")
	assert.Equal(t, "EMEA leads", def.Name)
	assert.Equal(t, "Sales Lead Processing", tmpl.Name)
}

func TestInstantiate_CopiesAreIndependent(t *testing.T) {
	tmpl, ok := Get("email-to-task")
	require.True(t, ok)

	a := tmpl.Instantiate("")
	a.Steps[0].Config["project"] = "Mutated"
	a.Connections[0].ToID = "mutated"

	b := tmpl.Instantiate("")
	assert.Equal(t, "Inbox", b.Steps[0].Config["project"])
	assert.Equal(t, "create-task", b.Connections[0].ToID)
}

func TestTemplates_TriggerTypesAreKnown(t *testing.T) {
	known := map[schema.TriggerType]bool{
		schema.TriggerEmailReceived: true,
		schema.TriggerScheduled:     true,
	}
	for _, tmpl := range Builtin() {
		def := tmpl.Definition()
		assert.True(t, known[def.Trigger.Type], "template %s", tmpl.Slug)
	}
}
