// Package scenario loads the training scenario: question types, game rules,
// message and prompt templates, achievements and level thresholds. The
// scenario is read once at startup and treated as read-only afterwards.
package scenario

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// QuestionType is one classifiable question category with its clarity weight.
type QuestionType struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Weight int    `mapstructure:"weight"`
}

// GameRules bound a training round.
type GameRules struct {
	MaxQuestions              int `mapstructure:"max_questions"`
	TargetClarity             int `mapstructure:"target_clarity"`
	MinQuestionsForCompletion int `mapstructure:"min_questions_for_completion"`
	ShortQuestionThreshold    int `mapstructure:"short_question_threshold"`
	MaestroScore              int `mapstructure:"maestro_score"`
}

// Achievement is a declarative unlock: the condition is a boolean expression
// over a whitelisted variable set, evaluated by the condition interpreter.
type Achievement struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Condition string `mapstructure:"condition"`
}

// Level maps an XP threshold to a level number and title.
type Level struct {
	Level int    `mapstructure:"level"`
	MinXP int    `mapstructure:"min_xp"`
	Title string `mapstructure:"title"`
}

// Listening configures the active listening detector.
type Listening struct {
	Enabled     bool     `mapstructure:"enabled"`
	UseLLM      bool     `mapstructure:"use_llm"`
	BonusPoints int      `mapstructure:"bonus_points"`
	Markers     []string `mapstructure:"markers"`
}

// CaseTables hold the building blocks the case generator combines.
type CaseTables struct {
	Positions   []string `mapstructure:"positions"`
	Companies   []string `mapstructure:"companies"`
	Products    []string `mapstructure:"products"`
	Situations  []string `mapstructure:"situations"`
	Volumes     []string `mapstructure:"volumes"`
	Frequencies []string `mapstructure:"frequencies"`
	Urgencies   []string `mapstructure:"urgencies"`
}

// Scenario is the full training configuration.
type Scenario struct {
	QuestionTypes []QuestionType    `mapstructure:"question_types"`
	Rules         GameRules         `mapstructure:"game_rules"`
	Achievements  []Achievement     `mapstructure:"achievements"`
	Levels        []Level           `mapstructure:"levels"`
	Listening     Listening         `mapstructure:"active_listening"`
	Cases         CaseTables        `mapstructure:"cases"`
	Messages      map[string]string `mapstructure:"messages"`
	Prompts       map[string]string `mapstructure:"prompts"`
}

// Load reads the scenario. The embedded defaults always apply; a YAML file,
// if given, is merged over them so deployments can override selectively.
func Load(path string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(defaultScenario)); err != nil {
		return nil, fmt.Errorf("parse embedded scenario: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge scenario file %s: %w", path, err)
		}
	}

	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario format: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Scenario) validate() error {
	if len(s.QuestionTypes) == 0 {
		return fmt.Errorf("scenario has no question types")
	}
	if s.Rules.MaxQuestions <= 0 {
		return fmt.Errorf("game_rules.max_questions must be positive")
	}
	for _, a := range s.Achievements {
		if _, err := ParseCondition(a.Condition); err != nil {
			return fmt.Errorf("achievement %s: %w", a.ID, err)
		}
	}
	return nil
}

// QuestionTypeByID returns the question type with the given id.
func (s *Scenario) QuestionTypeByID(id string) (QuestionType, bool) {
	for _, qt := range s.QuestionTypes {
		if qt.ID == id {
			return qt, true
		}
	}
	return QuestionType{}, false
}

// DefaultQuestionType returns the lowest-weight type. It is the safe label
// when classification fails or produces something outside the known set.
func (s *Scenario) DefaultQuestionType() QuestionType {
	def := s.QuestionTypes[0]
	for _, qt := range s.QuestionTypes[1:] {
		if qt.Weight < def.Weight {
			def = qt
		}
	}
	return def
}

// Message renders a message template, substituting {name} placeholders.
// Unknown keys render as an empty template rather than a panic.
func (s *Scenario) Message(key string, args map[string]any) string {
	return render(s.Messages[key], args)
}

// Prompt renders a prompt template the same way.
func (s *Scenario) Prompt(key string, args map[string]any) string {
	return render(s.Prompts[key], args)
}

func render(tmpl string, args map[string]any) string {
	if tmpl == "" || len(args) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(args)*2)
	for name, value := range args {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(value))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
