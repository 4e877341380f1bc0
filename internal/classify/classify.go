// Package classify maps raw user queries to a planning phase or a non-phase
// category. Classification is a pure, deterministic substring scan; it never
// touches the network or session state.
package classify

import (
	"regexp"
	"strings"
)

// Phase is one of the five fixed stages of the planning conversation, plus
// the "intake" default a session starts in before any phase was detected.
type Phase string

const (
	PhaseIntake     Phase = "intake"
	PhaseAssessment Phase = "assessment"
	PhaseGoals      Phase = "goals"
	PhaseWorkout    Phase = "workout"
	PhaseMeal       Phase = "meal"
	PhaseProgress   Phase = "progress"
)

// Phases lists the classifiable phases in their fixed scan order.
// The order is a contract: when a query matches keywords from two lists, the
// earlier phase wins.
var Phases = [5]Phase{PhaseAssessment, PhaseGoals, PhaseWorkout, PhaseMeal, PhaseProgress}

// Valid reports whether p is a classifiable phase (intake is not).
func (p Phase) Valid() bool {
	for _, ph := range Phases {
		if p == ph {
			return true
		}
	}
	return false
}

// Number returns the 1-based pipeline number of a phase (assessment=1 ... progress=5),
// or 0 for intake/unknown.
func (p Phase) Number() int {
	for i, ph := range Phases {
		if p == ph {
			return i + 1
		}
	}
	return 0
}

// Category is the closed set of classification results.
type Category int

const (
	// CategoryGeneral: no phase or context keywords matched; full planning runs.
	CategoryGeneral Category = iota

	// CategoryContextAnalysis: answer from prior conversation only, no new planning.
	CategoryContextAnalysis

	// CategoryPhase: a specific planning phase was requested.
	CategoryPhase
)

func (c Category) String() string {
	switch c {
	case CategoryContextAnalysis:
		return "context_analysis"
	case CategoryPhase:
		return "phase"
	default:
		return "general"
	}
}

// Classification is the ephemeral result of classifying one query.
type Classification struct {
	Category Category
	// Phase is set only when Category == CategoryPhase.
	Phase         Phase
	IsFollowup    bool
	NeedsPlanning bool
}

var phaseKeywords = map[Phase][]string{
	PhaseAssessment: {
		"assess", "fitness level", "current fitness", "starting point",
		"how fit am i", "my stats", "bmi", "body composition",
		"evaluate", "baseline", "fitness test",
	},
	PhaseGoals: {
		"goal", "smart goal", "target", "objective", "aim",
		"want to lose", "want to gain", "want to build",
		"lose weight", "gain muscle", "get stronger", "get lean",
		"bulk", "cut", "recomp", "body recomposition",
	},
	PhaseWorkout: {
		"workout", "exercise", "training", "split", "routine",
		"push pull", "upper lower", "full body", "gym plan",
		"program", "schedule", "sets", "reps", "cardio",
		"hiit", "strength training", "resistance",
	},
	PhaseMeal: {
		"meal", "diet", "nutrition", "food", "eat", "calories",
		"macro", "protein", "carb", "fat", "tdee", "meal prep",
		"supplement", "pre workout", "post workout", "hydration",
	},
	PhaseProgress: {
		"progress", "track", "measure", "check-in", "plateau",
		"adjust", "deload", "overtraining", "milestone",
		"not seeing results", "stuck", "update my plan",
	},
}

// contextKeywords trigger history-only answering. Order is irrelevant: any
// match fires immediately and they select the same category.
var contextKeywords = []string{
	"summarize", "summary", "explain", "why", "how does",
	"what did you", "repeat", "show again", "recap",
	"from before", "you said", "earlier",
}

// mentionPattern matches embedded agent mention tokens, e.g. "@agent1q2f7…".
var mentionPattern = regexp.MustCompile(`@agent1q\w+`)

// StripMentions removes agent mention tokens from a query.
func StripMentions(query string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(query, ""))
}

// Classify maps a query to a phase or non-phase category. priorMessages is
// the number of history entries that existed before this query; it only
// feeds IsFollowup.
func Classify(query string, priorMessages int) Classification {
	cleaned := StripMentions(strings.ToLower(strings.TrimSpace(query)))

	c := Classification{
		Category:      CategoryGeneral,
		IsFollowup:    priorMessages > 0,
		NeedsPlanning: true,
	}

	// Phase detection: first list containing a match wins and short-circuits.
	for _, phase := range Phases {
		if containsAny(cleaned, phaseKeywords[phase]...) {
			c.Category = CategoryPhase
			c.Phase = phase
			return c
		}
	}

	if containsAny(cleaned, contextKeywords...) {
		c.Category = CategoryContextAnalysis
		c.NeedsPlanning = false
		return c
	}

	return c
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
