package planner

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/planfit-ai/planfit/internal/classify"
	"github.com/planfit-ai/planfit/internal/session"
)

//go:embed prompts/system.md
var systemPrompt string

//go:embed prompts/context.md
var contextPrompt string

// phaseInstruction returns the per-phase planning instruction, conditioned on
// what is already known about the user.
func phaseInstruction(phase classify.Phase, state *session.State) string {
	var profileSummary string
	if !state.Profile.IsEmpty() {
		profileSummary = "\n**Known User Profile:** " + state.Profile.Summary()
	}

	switch phase {
	case classify.PhaseAssessment:
		return fmt.Sprintf(`The user wants to work on their FITNESS ASSESSMENT (Phase 1).
%s
Ask targeted questions to build their fitness profile. Gather: age, gender, height, weight, activity level, exercise history, injuries/limitations, available equipment, and time availability.
If some info is already known, skip those questions.`, profileSummary)
	case classify.PhaseGoals:
		return fmt.Sprintf(`The user wants to SET FITNESS GOALS (Phase 2).
%s
Help them define SMART goals. Use their assessment data to make goals realistic. Suggest specific, measurable targets with timeframes.`, profileSummary)
	case classify.PhaseWorkout:
		return fmt.Sprintf(`The user wants a WORKOUT PLAN (Phase 3).
%s
Design a weekly training split appropriate for their level and goals. Include exercises, sets, reps, rest periods, and progressive overload strategy.`, profileSummary)
	case classify.PhaseMeal:
		return fmt.Sprintf(`The user wants a MEAL PLAN (Phase 4).
%s
Create a nutrition framework. Estimate TDEE, suggest macro splits, provide sample meal templates, and cover pre/post workout nutrition.`, profileSummary)
	case classify.PhaseProgress:
		return fmt.Sprintf(`The user wants PROGRESS TRACKING guidance (Phase 5).
%s
Set up their monitoring system: weekly metrics, workout logging, plateau identification, and plan adjustment criteria.`, profileSummary)
	default:
		return "Respond helpfully to the user's fitness question."
	}
}

// buildPhaseQuery wraps the user's query with phase routing context so the
// model plans within the requested phase.
func buildPhaseQuery(query string, phase classify.Phase, state *session.State) string {
	return fmt.Sprintf(`**User Request:** %s

**Phase:** %s
**Current Session Phase:** %s

%s

Remember: Use planning and reasoning only — no web search. Provide evidence-based, safe fitness advice.`,
		query, strings.ToUpper(string(phase)), state.CurrentPhase, phaseInstruction(phase, state))
}

// buildGeneralQuery wraps a query that matched no phase.
func buildGeneralQuery(query string, state *session.State) string {
	profile := "Not yet collected"
	if !state.Profile.IsEmpty() {
		profile = state.Profile.Summary()
	}
	return fmt.Sprintf(`**User Request:** %s

**Current Phase:** %s
**Known Profile:** %s

Respond helpfully. If this is a new user, guide them through Phase 1 (Assessment) first.
If they have an existing profile, continue from where they left off.
Use planning and reasoning only — no web search.`,
		query, state.CurrentPhase, profile)
}

// buildContextQuery frames a history question for the context-analysis path.
func buildContextQuery(query string) string {
	return "Based on our conversation so far, please answer: " + query
}
