// Package training implements the session state machine, question
// classification, active listening detection and scoring for the SPIN
// trainer bot.
package training

import (
	"time"

	"spin-trainer-bot/scenario"
)

// ChatState is the session's position in the training lifecycle.
type ChatState string

const (
	StateNew           ChatState = "new"            // session just created
	StateAwaitingStart ChatState = "awaiting_start" // reset, waiting for the start word
	StateActive        ChatState = "active"         // accepting questions
	StateCompleted     ChatState = "completed"      // terminal per round
)

// FeedbackCache is the single-slot memo of the last generated feedback.
// Last value wins; entries older than the TTL are ignored.
type FeedbackCache struct {
	PromptHash string  `json:"prompt_hash"`
	Timestamp  float64 `json:"ts"`
	Text       string  `json:"text"`
}

// Session is the per-user conversational state of one training round.
// It is mutated exclusively by the Service and written back through the
// Store after every mutation batch.
type Session struct {
	QuestionCount       int                `json:"question_count"`
	ClarityLevel        int                `json:"clarity_level"`
	PerTypeCounts       map[string]int     `json:"per_type_counts"`
	CaseData            *scenario.CaseData `json:"case_data"`
	CaseText            string             `json:"case_text"`
	LastQuestionType    string             `json:"last_question_type"`
	ChatState           ChatState          `json:"chat_state"`
	ContextualQuestions int                `json:"contextual_questions"`
	LastClientReply     string             `json:"last_client_reply"`
	Feedback            *FeedbackCache     `json:"feedback_cache"`
	FeedbackInProgress  bool               `json:"feedback_in_progress"`
	FeedbackStartedTS   float64            `json:"feedback_started_ts"`
	LastFeedbackTS      float64            `json:"last_feedback_ts"`
}

// LevelUpNotification records a pending level-up to show in the next report.
type LevelUpNotification struct {
	ShouldShow bool `json:"should_show"`
	OldLevel   int  `json:"old_level"`
	NewLevel   int  `json:"new_level"`
}

// Stats is the per-user progress that survives session resets.
type Stats struct {
	TotalTrainings       int                 `json:"total_trainings"`
	TotalQuestions       int                 `json:"total_questions"`
	BestScore            int                 `json:"best_score"`
	TotalXP              int                 `json:"total_xp"`
	CurrentLevel         int                 `json:"current_level"`
	AchievementsUnlocked []string            `json:"achievements_unlocked"`
	LevelUp              LevelUpNotification `json:"level_up_notification"`
	MaestroStreak        int                 `json:"maestro_streak"`
	RecentCaseHashes     []string            `json:"recent_case_hashes"`
	LastTrainingDate     string              `json:"last_training_date"`
}

// NewSession creates a fresh session with per-type counters for the
// scenario's declared question types.
func NewSession(sc *scenario.Scenario) *Session {
	counts := make(map[string]int, len(sc.QuestionTypes))
	for _, qt := range sc.QuestionTypes {
		counts[qt.ID] = 0
	}
	return &Session{
		PerTypeCounts: counts,
		ChatState:     StateNew,
	}
}

// NewStats creates empty stats at level 1.
func NewStats() *Stats {
	return &Stats{
		CurrentLevel:         1,
		AchievementsUnlocked: []string{},
		RecentCaseHashes:     []string{},
	}
}

// Reset clears the round state and re-arms the session for a new start
// signal. Stats are never touched by a reset.
func (s *Session) Reset(sc *scenario.Scenario) {
	fresh := NewSession(sc)
	fresh.ChatState = StateAwaitingStart
	*s = *fresh
}

// HasUnlocked reports whether the achievement id is already earned.
func (st *Stats) HasUnlocked(id string) bool {
	for _, got := range st.AchievementsUnlocked {
		if got == id {
			return true
		}
	}
	return false
}

// RememberCase appends a case hash to the recent FIFO, evicting the oldest
// beyond five entries.
func (st *Stats) RememberCase(hash string) {
	st.RecentCaseHashes = append(st.RecentCaseHashes, hash)
	if n := len(st.RecentCaseHashes); n > 5 {
		st.RecentCaseHashes = st.RecentCaseHashes[n-5:]
	}
}

// Record is one completed training round, kept as history.
type Record struct {
	RoundID    string
	UserID     int64
	Score      int
	Questions  int
	Clarity    int
	Contextual int
	Reason     string
	FinishedAt time.Time
}
