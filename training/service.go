package training

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spin-trainer-bot/llm"
	"spin-trainer-bot/scenario"
)

const (
	feedbackTTL      = 20 * time.Minute
	feedbackCooldown = 5 * time.Second
	historyLimit     = 5

	// feedbackStaleAfter bounds how long a persisted in-progress flag is
	// trusted. The flag is durable, so a crash or a failed clearing save
	// between setting and clearing it would otherwise lock feedback out
	// forever. No generation runs longer than the LLM timeout.
	feedbackStaleAfter = 2 * time.Minute
)

// Store is the persistence collaborator. It owns durable session/stats
// state; the in-process objects are a read/modify/write cache that is only
// authoritative after a successful SaveUser.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*Session, *Stats, error)
	SaveUser(ctx context.Context, userID int64, session *Session, stats *Stats) error
	AppendTraining(ctx context.Context, rec Record) error
	RecentTrainings(ctx context.Context, userID int64, limit int) ([]Record, error)
}

// AccessDecision is the result of the access gate check.
type AccessDecision int

const (
	AccessAuthorized AccessDecision = iota
	AccessDenied
)

// AccessGate decides whether a user may run trainings. Checked explicitly at
// every orchestrator entry point.
type AccessGate interface {
	Check(ctx context.Context, userID int64) AccessDecision
}

// AllowAll authorizes everyone.
type AllowAll struct{}

func (AllowAll) Check(context.Context, int64) AccessDecision { return AccessAuthorized }

// Allowlist authorizes only the listed user IDs. An empty list denies no one.
type Allowlist []int64

func (a Allowlist) Check(_ context.Context, userID int64) AccessDecision {
	if len(a) == 0 {
		return AccessAuthorized
	}
	for _, id := range a {
		if id == userID {
			return AccessAuthorized
		}
	}
	return AccessDenied
}

// Service is the session state machine: it drives a training round through
// new -> awaiting_start -> active -> completed, applies the clarity and
// question-count invariants and decides termination.
type Service struct {
	store      Store
	gateway    Invoker
	classifier *Classifier
	detector   *Detector
	cases      *scenario.CaseGenerator
	sc         *scenario.Scenario
	gate       AccessGate
	now        func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService wires the training orchestrator.
func NewService(store Store, gateway Invoker, cases *scenario.CaseGenerator, sc *scenario.Scenario, gate AccessGate) *Service {
	if gate == nil {
		gate = AllowAll{}
	}
	return &Service{
		store:      store,
		gateway:    gateway,
		classifier: NewClassifier(gateway, sc),
		detector:   NewDetector(gateway, sc),
		cases:      cases,
		sc:         sc,
		gate:       gate,
		now:        time.Now,
		locks:      make(map[int64]*sync.Mutex),
	}
}

// userLock returns the per-user mutex. Question processing within one
// session must be serialized: a second question may not start classification
// until the prior one's counters have committed.
func (s *Service) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

func (s *Service) loadUser(ctx context.Context, userID int64) (*Session, *Stats, error) {
	session, stats, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if session == nil {
		session = NewSession(s.sc)
	}
	if stats == nil {
		stats = NewStats()
	}
	return session, stats, nil
}

// StartTraining generates a new case and activates the session. Cases used
// in the last five rounds are excluded by hash.
func (s *Service) StartTraining(ctx context.Context, userID int64) (string, error) {
	if s.gate.Check(ctx, userID) == AccessDenied {
		return s.sc.Message("access_denied", nil), nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session, stats, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}

	caseData := s.cases.Generate(stats.RecentCaseHashes)
	session.Reset(s.sc)
	session.CaseData = &caseData
	session.CaseText = caseData.Render()
	session.ChatState = StateActive
	stats.RememberCase(caseData.Hash())

	if err := s.store.SaveUser(ctx, userID, session, stats); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	slog.Info("Training started", "user", userID, "case", caseData.Hash())
	return s.sc.Message("case_intro", map[string]any{"case": session.CaseText}), nil
}

// ProcessQuestion handles one trainee message in the active state: classify,
// update counters, generate the client reply, run the active listening check
// against the previous reply, then evaluate completion.
func (s *Service) ProcessQuestion(ctx context.Context, userID int64, question string) (string, error) {
	if s.gate.Check(ctx, userID) == AccessDenied {
		return s.sc.Message("access_denied", nil), nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session, stats, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}

	if session.ChatState != StateActive {
		return s.sc.Message("start_hint", nil), nil
	}

	// Short inputs are rejected without touching any counter.
	if len([]rune(strings.TrimSpace(question))) <= s.sc.Rules.ShortQuestionThreshold {
		return s.sc.Message("short_question", nil), nil
	}

	qtype := s.classifier.Classify(ctx, question, session.CaseText)

	session.QuestionCount++
	session.LastQuestionType = qtype.Name
	session.PerTypeCounts[qtype.ID]++
	session.ClarityLevel = clamp(session.ClarityLevel+qtype.Weight, 0, 100)

	clientReply := s.generateClientReply(ctx, session, question)

	// The listening check runs against the previous reply, before this
	// round's reply replaces it.
	badge := ""
	if s.detector.Check(ctx, question, session.LastClientReply) {
		session.ContextualQuestions++
		session.ClarityLevel = clamp(session.ClarityLevel+s.detector.BonusPoints(), 0, 100)
		badge = s.sc.Message("listening_badge", nil)
	}
	session.LastClientReply = clientReply

	done, reason := s.checkCompletion(session)

	if err := s.store.SaveUser(ctx, userID, session, stats); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	progress := s.sc.Message("progress", map[string]any{
		"count":   session.QuestionCount,
		"max":     s.sc.Rules.MaxQuestions,
		"clarity": session.ClarityLevel,
	})
	reply := s.sc.Message("question_feedback", map[string]any{
		"question_type":   qtype.Name + badge,
		"client_response": clientReply,
		"progress_line":   progress,
	})

	if done {
		report, err := s.completeLocked(ctx, userID, session, stats, reason)
		if err != nil {
			return "", err
		}
		reply += "\n\n" + report
	}
	return reply, nil
}

func (s *Service) generateClientReply(ctx context.Context, session *Session, question string) string {
	caseData := session.CaseData
	if caseData == nil {
		caseData = &scenario.CaseData{}
	}
	prompt := s.sc.Prompt("response", map[string]any{
		"position":  caseData.Position,
		"company":   caseData.Company,
		"case":      session.CaseText,
		"volume":    caseData.Volume,
		"frequency": caseData.Frequency,
		"situation": caseData.Situation,
		"urgency":   caseData.Urgency,
		"question":  question,
	})
	return s.gateway.Invoke(ctx, llm.KindResponse, prompt, "Ответь на вопрос как клиент")
}

// Feedback generates coaching feedback for the current round. Rapid repeats
// are absorbed by the in-progress flag plus a cooldown, and identical prompts
// within the TTL window are served from the session's single cache slot. The
// progress callback receives streamed deltas when the streaming path is
// available; the blocking path is the transparent fallback.
func (s *Service) Feedback(ctx context.Context, userID int64, progress func(partial string)) (string, error) {
	if s.gate.Check(ctx, userID) == AccessDenied {
		return s.sc.Message("access_denied", nil), nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session, stats, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}

	if session.LastQuestionType == "" {
		return s.sc.Message("feedback_no_question", nil), nil
	}

	nowTS := float64(s.now().UnixNano()) / 1e9
	inFlight := session.FeedbackInProgress && nowTS-session.FeedbackStartedTS < feedbackStaleAfter.Seconds()
	if session.FeedbackInProgress && !inFlight {
		slog.Warn("Recovering stale feedback in-progress flag",
			"user", userID,
			"started_ago", nowTS-session.FeedbackStartedTS)
	}
	if inFlight || nowTS-session.LastFeedbackTS < feedbackCooldown.Seconds() {
		slog.Info("Feedback deduplicated",
			"user", userID,
			"in_progress", session.FeedbackInProgress,
			"since_last", nowTS-session.LastFeedbackTS)
		return s.sc.Message("feedback_in_progress", nil), nil
	}

	session.FeedbackInProgress = true
	session.FeedbackStartedTS = nowTS
	if err := s.store.SaveUser(ctx, userID, session, stats); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	defer func() {
		session.FeedbackInProgress = false
		session.LastFeedbackTS = float64(s.now().UnixNano()) / 1e9
		if err := s.store.SaveUser(ctx, userID, session, stats); err != nil {
			slog.Error("Failed to persist feedback state", "user", userID, "error", err)
		}
	}()

	prompt := s.feedbackPrompt(session)
	hash := hashPrompt(prompt)

	if c := session.Feedback; c != nil && c.PromptHash == hash && c.Text != "" &&
		nowTS-c.Timestamp < feedbackTTL.Seconds() {
		slog.Info("Feedback cache hit", "user", userID)
		return s.sc.Message("feedback_response", map[string]any{"feedback": c.Text}), nil
	}

	text := s.streamOrInvokeFeedback(ctx, prompt, progress)

	session.Feedback = &FeedbackCache{PromptHash: hash, Timestamp: nowTS, Text: text}
	return s.sc.Message("feedback_response", map[string]any{"feedback": text}), nil
}

// streamOrInvokeFeedback prefers the streaming path and falls back to the
// blocking call when the stream cannot start or aggregates to nothing.
func (s *Service) streamOrInvokeFeedback(ctx context.Context, prompt string, progress func(string)) string {
	const userMessage = "Проанализируй ситуацию"

	stream, err := s.gateway.InvokeStreaming(ctx, llm.KindFeedback, prompt, userMessage)
	if err != nil {
		slog.Info("Feedback streaming unavailable, using blocking path", "reason", err)
		return s.gateway.Invoke(ctx, llm.KindFeedback, prompt, userMessage)
	}

	var b strings.Builder
	for delta := range stream {
		b.WriteString(delta)
		if progress != nil {
			progress(b.String())
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		slog.Warn("Feedback stream produced no content, using blocking path")
		return s.gateway.Invoke(ctx, llm.KindFeedback, prompt, userMessage)
	}
	return strings.TrimSpace(b.String())
}

func (s *Service) feedbackPrompt(session *Session) string {
	return s.sc.Prompt("feedback", map[string]any{
		"last_question_type": session.LastQuestionType,
		"question_count":     session.QuestionCount,
		"clarity_level":      session.ClarityLevel,
		"situational_q":      session.PerTypeCounts["situational"],
		"problem_q":          session.PerTypeCounts["problem"],
		"implication_q":      session.PerTypeCounts["implication"],
		"need_payoff_q":      session.PerTypeCounts["need_payoff"],
	})
}

// CompleteTraining finishes the round on explicit request.
func (s *Service) CompleteTraining(ctx context.Context, userID int64) (string, error) {
	if s.gate.Check(ctx, userID) == AccessDenied {
		return s.sc.Message("access_denied", nil), nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session, stats, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.completeLocked(ctx, userID, session, stats, "manual")
}

// completeLocked computes the score, folds it into stats, evaluates
// achievements, records history and re-arms the session. The caller holds
// the user lock.
func (s *Service) completeLocked(ctx context.Context, userID int64, session *Session, stats *Stats, reason string) (string, error) {
	score := ComputeScore(session, s.sc.QuestionTypes)
	ApplyRoundStats(session, stats, score, s.sc)
	unlocked := EvaluateAchievements(session, stats, s.sc.Achievements)
	report := s.buildReport(session, stats, score, unlocked)

	rec := Record{
		RoundID:    uuid.NewString(),
		UserID:     userID,
		Score:      score,
		Questions:  session.QuestionCount,
		Clarity:    session.ClarityLevel,
		Contextual: session.ContextualQuestions,
		Reason:     reason,
		FinishedAt: s.now(),
	}
	if err := s.store.AppendTraining(ctx, rec); err != nil {
		slog.Error("Failed to record training history", "user", userID, "error", err)
	}

	session.Reset(s.sc)
	stats.LevelUp.ShouldShow = false

	if err := s.store.SaveUser(ctx, userID, session, stats); err != nil {
		return "", fmt.Errorf("save completed round: %w", err)
	}
	slog.Info("Training completed", "user", userID, "score", score, "reason", reason)
	return report, nil
}

func (s *Service) buildReport(session *Session, stats *Stats, score int, unlocked []scenario.Achievement) string {
	var b strings.Builder
	b.WriteString(s.sc.Message("report_header", map[string]any{
		"score":     score,
		"questions": session.QuestionCount,
		"clarity":   session.ClarityLevel,
	}))

	b.WriteString("\n")
	for _, qt := range s.sc.QuestionTypes {
		b.WriteString("\n" + s.sc.Message("report_type_line", map[string]any{
			"type":  qt.Name,
			"count": session.PerTypeCounts[qt.ID],
		}))
	}

	if session.QuestionCount > 0 {
		percent := session.ContextualQuestions * 100 / session.QuestionCount
		b.WriteString("\n\n" + s.sc.Message("report_listening", map[string]any{
			"contextual": session.ContextualQuestions,
			"questions":  session.QuestionCount,
			"percent":    percent,
		}))
	}

	for _, ach := range unlocked {
		b.WriteString("\n\n" + s.sc.Message("report_achievement", map[string]any{"name": ach.Name}))
	}

	if stats.LevelUp.ShouldShow {
		b.WriteString("\n\n" + s.sc.Message("report_level_up", map[string]any{
			"old":   stats.LevelUp.OldLevel,
			"new":   stats.LevelUp.NewLevel,
			"title": LevelTitle(stats.LevelUp.NewLevel, s.sc.Levels),
		}))
	}
	return b.String()
}

// CheckCompletion reports whether the round should end and why
// ("max_questions" or "clarity_reached").
func (s *Service) CheckCompletion(ctx context.Context, userID int64) (bool, string, error) {
	session, _, err := s.loadUser(ctx, userID)
	if err != nil {
		return false, "", err
	}
	done, reason := s.checkCompletion(session)
	return done, reason, nil
}

func (s *Service) checkCompletion(session *Session) (bool, string) {
	rules := s.sc.Rules
	if session.QuestionCount >= rules.MaxQuestions {
		return true, "max_questions"
	}
	if session.ClarityLevel >= rules.TargetClarity &&
		session.QuestionCount >= rules.MinQuestionsForCompletion {
		return true, "clarity_reached"
	}
	return false, ""
}

// History renders the user's most recent completed rounds.
func (s *Service) History(ctx context.Context, userID int64) (string, error) {
	if s.gate.Check(ctx, userID) == AccessDenied {
		return s.sc.Message("access_denied", nil), nil
	}

	recs, err := s.store.RecentTrainings(ctx, userID, historyLimit)
	if err != nil {
		return "", fmt.Errorf("load history for user %d: %w", userID, err)
	}
	if len(recs) == 0 {
		return s.sc.Message("history_empty", nil), nil
	}

	var b strings.Builder
	b.WriteString(s.sc.Message("history_header", nil))
	for _, rec := range recs {
		b.WriteString("\n" + s.sc.Message("history_line", map[string]any{
			"date":      rec.FinishedAt.Format("02.01 15:04"),
			"score":     rec.Score,
			"questions": rec.Questions,
			"clarity":   rec.Clarity,
		}))
	}
	return b.String(), nil
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
