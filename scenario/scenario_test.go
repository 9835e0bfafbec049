package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	sc, err := Load("")
	require.NoError(t, err)

	assert.Len(t, sc.QuestionTypes, 4)
	assert.Equal(t, 10, sc.Rules.MaxQuestions)
	assert.Equal(t, 80, sc.Rules.TargetClarity)
	assert.NotEmpty(t, sc.Achievements)
	assert.NotEmpty(t, sc.Levels)
	assert.NotEmpty(t, sc.Cases.Positions)
	assert.NotEmpty(t, sc.Messages["start_hint"])
	assert.NotEmpty(t, sc.Prompts["classification"])
}

func TestLoadMergesOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	override := `
game_rules:
  max_questions: 3
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0644))

	sc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, sc.Rules.MaxQuestions)
	// Untouched defaults survive the merge.
	assert.Equal(t, 80, sc.Rules.TargetClarity)
	assert.Len(t, sc.QuestionTypes, 4)
}

func TestLoadRejectsBrokenCondition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	override := `
achievements:
  - id: broken
    name: Сломанное
    condition: "total_xp >="
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "broken")
}

func TestDefaultQuestionType(t *testing.T) {
	sc, err := Load("")
	require.NoError(t, err)

	def := sc.DefaultQuestionType()
	assert.Equal(t, "situational", def.ID)
	for _, qt := range sc.QuestionTypes {
		assert.GreaterOrEqual(t, qt.Weight, def.Weight)
	}
}

func TestMessageRendering(t *testing.T) {
	sc := &Scenario{Messages: map[string]string{
		"greeting": "Привет, {name}! Счёт: {score}",
	}}

	got := sc.Message("greeting", map[string]any{"name": "Анна", "score": 42})
	assert.Equal(t, "Привет, Анна! Счёт: 42", got)

	// Unknown keys render empty instead of panicking.
	assert.Empty(t, sc.Message("missing", map[string]any{"x": 1}))
}
