package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Deterministic(t *testing.T) {
	s := New()

	first := s.Snapshot()
	second := s.Snapshot()

	assert.Equal(t, first, second)
}

func TestSnapshot_Content(t *testing.T) {
	snapshot := New().Snapshot()

	require.False(t, snapshot.IsEmpty())
	require.NotEmpty(t, snapshot.Users)
	require.NotEmpty(t, snapshot.Subjects)
	require.NotEmpty(t, snapshot.Questions)

	subjects := map[string]bool{}
	for _, subject := range snapshot.Subjects {
		subjects[subject.ID] = true
	}
	for _, question := range snapshot.Questions {
		assert.True(t, subjects[question.SubjectID], "question %s references unknown subject %s", question.ID, question.SubjectID)
		require.NotEmpty(t, question.Options)
		assert.GreaterOrEqual(t, question.CorrectOption, 0)
		assert.Less(t, question.CorrectOption, len(question.Options))
	}
}

func TestSnapshot_IndependentCopies(t *testing.T) {
	s := New()

	first := s.Snapshot()
	first.Users[0].Name = "mutated"
	first.Questions[0].Options[0] = "mutated"

	second := s.Snapshot()
	assert.Equal(t, "Demo Student", second.Users[0].Name)
	assert.Equal(t, "54", second.Questions[0].Options[0])
}
