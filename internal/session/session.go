// Package session holds per-conversation state and its persistence.
// A session is keyed by (sender, session ID) and carries the full message
// history plus the structured planning state accumulated across turns.
package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/planfit-ai/planfit/internal/classify"
)

// Role identifies the author of a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one history entry. Immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile holds what is known about the user from the assessment phase.
// Every field is optional; absent fields simply stay out of the prompt.
type Profile struct {
	Age           int     `json:"age,omitempty"`
	Gender        string  `json:"gender,omitempty"`
	HeightCM      float64 `json:"height_cm,omitempty"`
	WeightKG      float64 `json:"weight_kg,omitempty"`
	ActivityLevel string  `json:"activity_level,omitempty"`
	Experience    string  `json:"experience,omitempty"`
	Injuries      string  `json:"injuries,omitempty"`
	Equipment     string  `json:"equipment,omitempty"`
	WeeklyHours   string  `json:"weekly_hours,omitempty"`

	// Notes carries profile facts that don't fit the fixed fields.
	Notes map[string]string `json:"notes,omitempty"`
}

// IsEmpty reports whether nothing is known about the user yet.
func (p Profile) IsEmpty() bool {
	return p.Age == 0 && p.Gender == "" && p.HeightCM == 0 && p.WeightKG == 0 &&
		p.ActivityLevel == "" && p.Experience == "" && p.Injuries == "" &&
		p.Equipment == "" && p.WeeklyHours == "" && len(p.Notes) == 0
}

// Summary renders the known profile fields into a single line for prompt
// conditioning. Output is deterministic: fixed field order, sorted notes.
func (p Profile) Summary() string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	if p.Age > 0 {
		add("age", fmt.Sprintf("%d", p.Age))
	}
	add("gender", p.Gender)
	if p.HeightCM > 0 {
		add("height", fmt.Sprintf("%.0f cm", p.HeightCM))
	}
	if p.WeightKG > 0 {
		add("weight", fmt.Sprintf("%.1f kg", p.WeightKG))
	}
	add("activity level", p.ActivityLevel)
	add("experience", p.Experience)
	add("injuries", p.Injuries)
	add("equipment", p.Equipment)
	add("weekly hours", p.WeeklyHours)

	keys := make([]string, 0, len(p.Notes))
	for k := range p.Notes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, p.Notes[k])
	}

	return strings.Join(parts, ", ")
}

// PlanDocument is an accumulated plan (workout or meal). The core never
// interprets it; it is stored for the user's benefit across sessions.
type PlanDocument struct {
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ProgressEntry is one check-in record.
type ProgressEntry struct {
	Date time.Time `json:"date"`
	Note string    `json:"note"`
}

// State is the structured planning state of one session.
type State struct {
	Greeted      bool            `json:"greeted"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CurrentPhase classify.Phase  `json:"current_phase"`
	Profile      Profile         `json:"fitness_profile"`
	Goals        []string        `json:"goals"`
	WorkoutPlan  PlanDocument    `json:"workout_plan"`
	MealPlan     PlanDocument    `json:"meal_plan"`
	ProgressLog  []ProgressEntry `json:"progress_log"`
}

// Session is the persisted conversation state for one (sender, session) key.
type Session struct {
	History []Message `json:"history"`
	State   State     `json:"state"`
}

// New creates a fresh session with default state.
func New(now time.Time) *Session {
	return &Session{
		State: State{
			CreatedAt:    now,
			CurrentPhase: classify.PhaseIntake,
		},
	}
}

// AddMessage appends a history entry.
func (s *Session) AddMessage(role Role, content string, at time.Time) {
	s.History = append(s.History, Message{Role: role, Content: content, Timestamp: at})
}

// normalize fills defaults into a session decoded from a legacy record with
// absent fields. Records are never rejected for missing fields.
func (s *Session) normalize() {
	if s.State.CurrentPhase == "" {
		s.State.CurrentPhase = classify.PhaseIntake
	}
}

// Key derives the storage key for a (sender, session) pair. Both inputs are
// stable per logical conversation, so no collision handling is needed.
func Key(sender, sessionID string) string {
	return "session:" + sender + ":" + sessionID
}
