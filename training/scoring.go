package training

import (
	"log/slog"
	"time"

	"spin-trainer-bot/scenario"
)

// ComputeScore sums per-type counts weighted by the scenario's question type
// weights. Pure function of the session and the type definitions.
func ComputeScore(session *Session, types []scenario.QuestionType) int {
	score := 0
	for _, qt := range types {
		score += session.PerTypeCounts[qt.ID] * qt.Weight
	}
	return score
}

// LevelFromXP returns the highest level whose threshold is reached, or 1
// when no threshold matches.
func LevelFromXP(xp int, levels []scenario.Level) int {
	best := 1
	for _, lvl := range levels {
		if xp >= lvl.MinXP && lvl.Level > best {
			best = lvl.Level
		}
	}
	return best
}

// LevelTitle returns the configured title for a level.
func LevelTitle(level int, levels []scenario.Level) string {
	for _, lvl := range levels {
		if lvl.Level == level {
			return lvl.Title
		}
	}
	return ""
}

// EvaluateAchievements checks every unearned achievement's condition against
// the whitelisted variable set and unlocks the ones that hold. Conditions run
// in the scenario's sandboxed interpreter; a broken condition skips that
// achievement instead of aborting the round.
func EvaluateAchievements(session *Session, stats *Stats, defs []scenario.Achievement) []scenario.Achievement {
	vars := map[string]int{
		"total_trainings":      stats.TotalTrainings,
		"total_questions":      stats.TotalQuestions,
		"best_score":           stats.BestScore,
		"total_xp":             stats.TotalXP,
		"current_level":        stats.CurrentLevel,
		"maestro_streak":       stats.MaestroStreak,
		"question_count":       session.QuestionCount,
		"contextual_questions": session.ContextualQuestions,
		"clarity_level":        session.ClarityLevel,
	}

	var unlocked []scenario.Achievement
	for _, def := range defs {
		if stats.HasUnlocked(def.ID) {
			continue
		}
		cond, err := scenario.ParseCondition(def.Condition)
		if err != nil {
			slog.Error("Invalid achievement condition", "achievement", def.ID, "error", err)
			continue
		}
		holds, err := cond.Eval(vars)
		if err != nil {
			slog.Error("Achievement condition evaluation failed", "achievement", def.ID, "error", err)
			continue
		}
		if holds {
			stats.AchievementsUnlocked = append(stats.AchievementsUnlocked, def.ID)
			unlocked = append(unlocked, def)
			slog.Info("Achievement unlocked", "achievement", def.ID)
		}
	}
	return unlocked
}

// ApplyRoundStats folds a completed round into the persistent stats: totals,
// XP, level (with a pending level-up notification) and the high-score streak.
func ApplyRoundStats(session *Session, stats *Stats, score int, sc *scenario.Scenario) {
	stats.TotalTrainings++
	stats.TotalQuestions += session.QuestionCount
	if score > stats.BestScore {
		stats.BestScore = score
	}
	stats.TotalXP += score
	stats.LastTrainingDate = time.Now().Format(time.RFC3339)

	if score >= sc.Rules.MaestroScore {
		stats.MaestroStreak++
	} else {
		stats.MaestroStreak = 0
	}

	oldLevel := stats.CurrentLevel
	newLevel := LevelFromXP(stats.TotalXP, sc.Levels)
	stats.CurrentLevel = newLevel
	if newLevel > oldLevel {
		stats.LevelUp = LevelUpNotification{ShouldShow: true, OldLevel: oldLevel, NewLevel: newLevel}
		slog.Info("Level up", "old", oldLevel, "new", newLevel)
	}
}
