package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-trainer-bot/scenario"
)

func testScenario(t *testing.T) *scenario.Scenario {
	t.Helper()
	sc, err := scenario.Load("")
	require.NoError(t, err)
	return sc
}

func TestComputeScore(t *testing.T) {
	sc := testScenario(t)

	session := NewSession(sc)
	session.PerTypeCounts["situational"] = 2 // weight 5
	session.PerTypeCounts["problem"] = 1     // weight 10
	session.PerTypeCounts["implication"] = 3 // weight 15
	session.PerTypeCounts["need_payoff"] = 1 // weight 20

	assert.Equal(t, 2*5+10+3*15+20, ComputeScore(session, sc.QuestionTypes))
}

func TestComputeScoreEmptySession(t *testing.T) {
	sc := testScenario(t)
	assert.Zero(t, ComputeScore(NewSession(sc), sc.QuestionTypes))
}

func TestLevelFromXP(t *testing.T) {
	sc := testScenario(t)

	tests := []struct {
		xp   int
		want int
	}{
		{xp: 0, want: 1},
		{xp: 99, want: 1},
		{xp: 100, want: 2},
		{xp: 300, want: 3},
		{xp: 699, want: 3},
		{xp: 700, want: 4},
		{xp: 1500, want: 5},
		{xp: 99999, want: 5},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, LevelFromXP(tc.xp, sc.Levels), "xp=%d", tc.xp)
	}
}

func TestApplyRoundStats(t *testing.T) {
	sc := testScenario(t)
	session := NewSession(sc)
	session.QuestionCount = 7
	stats := NewStats()

	ApplyRoundStats(session, stats, 120, sc)

	assert.Equal(t, 1, stats.TotalTrainings)
	assert.Equal(t, 7, stats.TotalQuestions)
	assert.Equal(t, 120, stats.BestScore)
	assert.Equal(t, 120, stats.TotalXP)
	assert.Equal(t, 2, stats.CurrentLevel)
	assert.True(t, stats.LevelUp.ShouldShow)
	assert.Equal(t, 1, stats.LevelUp.OldLevel)
	assert.Equal(t, 2, stats.LevelUp.NewLevel)
	assert.NotEmpty(t, stats.LastTrainingDate)
}

func TestApplyRoundStatsBestScoreKept(t *testing.T) {
	sc := testScenario(t)
	stats := NewStats()
	stats.BestScore = 200

	ApplyRoundStats(NewSession(sc), stats, 150, sc)
	assert.Equal(t, 200, stats.BestScore)
}

func TestMaestroStreak(t *testing.T) {
	sc := testScenario(t)
	stats := NewStats()

	ApplyRoundStats(NewSession(sc), stats, sc.Rules.MaestroScore, sc)
	assert.Equal(t, 1, stats.MaestroStreak)

	ApplyRoundStats(NewSession(sc), stats, sc.Rules.MaestroScore+30, sc)
	assert.Equal(t, 2, stats.MaestroStreak)

	// A score below the bar resets the streak.
	ApplyRoundStats(NewSession(sc), stats, sc.Rules.MaestroScore-1, sc)
	assert.Zero(t, stats.MaestroStreak)
}

func TestEvaluateAchievements(t *testing.T) {
	sc := testScenario(t)
	session := NewSession(sc)
	stats := NewStats()
	stats.TotalTrainings = 1

	first := EvaluateAchievements(session, stats, sc.Achievements)
	require.NotEmpty(t, first, "finishing the first training unlocks something")

	// Already-unlocked achievements never unlock twice.
	again := EvaluateAchievements(session, stats, sc.Achievements)
	for _, a := range again {
		assert.False(t, containsAchievement(first, a.ID))
	}
}

func TestEvaluateAchievementsSkipsBrokenCondition(t *testing.T) {
	sc := testScenario(t)
	defs := []scenario.Achievement{
		{ID: "broken", Name: "Сломанное", Condition: "total_xp >="},
		{ID: "works", Name: "Рабочее", Condition: "total_xp >= 0"},
	}

	unlocked := EvaluateAchievements(NewSession(sc), NewStats(), defs)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "works", unlocked[0].ID)
}

func TestRememberCaseKeepsLastFive(t *testing.T) {
	stats := NewStats()
	for _, h := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		stats.RememberCase(h)
	}
	assert.Equal(t, []string{"c", "d", "e", "f", "g"}, stats.RecentCaseHashes)
}

func containsAchievement(list []scenario.Achievement, id string) bool {
	for _, a := range list {
		if a.ID == id {
			return true
		}
	}
	return false
}
