package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadShippedRegistry(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)

	for _, taskType := range []string{"send-notification", "check-step-deadline"} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.Equal(t, "implemented", a.ImplementationStatus)
		assert.NotEmpty(t, reg.InputSchema(taskType))
	}
}

func TestFindUnknownTask(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{{TaskType: "send-notification"}}}
	_, ok := reg.Find("ai-conversation")
	assert.False(t, ok)
	assert.Nil(t, reg.InputSchema("ai-conversation"))

	var missing *ActivityRegistry
	assert.Nil(t, missing.InputSchema("send-notification"))
}

func TestLoadRegistryRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"activities": [`), 0o600))

	_, err := LoadRegistry(path)
	assert.ErrorContains(t, err, "parse registry")
}

func TestShippedRegistryIsValid(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	assert.Empty(t, reg.Validate())
}

func TestValidateReportsProblems(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{
		{ID: "a", DisplayName: "A", TaskType: "send-notification", ImplementationStatus: StatusImplemented},
		{ID: "a", DisplayName: "B", TaskType: "send-notification", ImplementationStatus: StatusPlanned},
		{ID: "c", TaskType: "check-step-deadline", ImplementationStatus: "done", InputSchema: map[string]interface{}{"type": 12}},
	}}

	problems := reg.Validate()
	require.Len(t, problems, 5)
	assert.ErrorContains(t, problems[0], "duplicate activity id: a")
	assert.ErrorContains(t, problems[1], "registered twice")
	assert.ErrorContains(t, problems[2], "displayName")
	assert.ErrorContains(t, problems[3], `unknown implementation status "done"`)
	assert.ErrorContains(t, problems[4], "input schema")

	assert.Len(t, (&ActivityRegistry{}).Validate(), 1)
}

func TestSetStatusAndSave(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{{ID: "dar.review.deadline", TaskType: "check-step-deadline"}}}
	require.NoError(t, reg.SetStatus("dar.review.deadline", StatusVerified, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))
	assert.Error(t, reg.SetStatus("missing", StatusVerified, time.Now()))
	assert.Error(t, reg.SetStatus("dar.review.deadline", "shipped", time.Now()))

	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "verified", loaded.Activities[0].ImplementationStatus)
	assert.Equal(t, "2024-06-03", loaded.LastUpdated)
}
