package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		prior    int
		want     Category
		phase    Phase
		followup bool
		planning bool
	}{
		{name: "assessment", query: "can you assess my fitness level?", want: CategoryPhase, phase: PhaseAssessment, planning: true},
		{name: "goals", query: "I want to lose weight", want: CategoryPhase, phase: PhaseGoals, planning: true},
		{name: "workout", query: "build me a push pull legs routine", want: CategoryPhase, phase: PhaseWorkout, planning: true},
		{name: "meal", query: "what should my macros be", want: CategoryPhase, phase: PhaseMeal, planning: true},
		{name: "progress", query: "how's my progress", want: CategoryPhase, phase: PhaseProgress, planning: true},
		{name: "context_summarize", query: "summarize what we discussed", prior: 4, want: CategoryContextAnalysis, followup: true},
		{name: "context_recap", query: "give me a recap", prior: 2, want: CategoryContextAnalysis, followup: true},
		{name: "general", query: "hello there", want: CategoryGeneral, planning: true},
		{name: "general_followup", query: "thanks, sounds good", prior: 6, want: CategoryGeneral, followup: true, planning: true},
		{name: "case_insensitive", query: "WORKOUT PLAN PLEASE", want: CategoryPhase, phase: PhaseWorkout, planning: true},
		{name: "mention_stripped", query: "@agent1q2w3e4r workout plan", want: CategoryPhase, phase: PhaseWorkout, planning: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.query, tc.prior)
			if got.Category != tc.want {
				t.Fatalf("Classify(%q).Category = %v, want %v", tc.query, got.Category, tc.want)
			}
			if got.Phase != tc.phase {
				t.Errorf("Phase = %q, want %q", got.Phase, tc.phase)
			}
			if got.IsFollowup != tc.followup {
				t.Errorf("IsFollowup = %v, want %v", got.IsFollowup, tc.followup)
			}
			if got.NeedsPlanning != tc.planning {
				t.Errorf("NeedsPlanning = %v, want %v", got.NeedsPlanning, tc.planning)
			}
		})
	}
}

// A query matching both the workout and meal lists must resolve to workout:
// the scan honors the fixed phase order and short-circuits on the first hit.
func TestClassifyOrderTieBreak(t *testing.T) {
	got := Classify("plan my workout and meal for the week", 0)
	if got.Phase != PhaseWorkout {
		t.Fatalf("expected workout to win the tie, got %q", got.Phase)
	}

	// Assessment precedes goals in the scan order.
	got = Classify("evaluate my target weight", 0)
	if got.Phase != PhaseAssessment {
		t.Fatalf("expected assessment to win the tie, got %q", got.Phase)
	}
}

// Phase keywords take precedence over context-analysis keywords: the context
// scan only runs after all five phase lists missed.
func TestClassifyPhaseBeatsContext(t *testing.T) {
	got := Classify("summarize my workout plan", 0)
	if got.Category != CategoryPhase || got.Phase != PhaseWorkout {
		t.Fatalf("expected phase classification, got %+v", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	const query = "adjust my diet and track calories"
	first := Classify(query, 3)
	for i := 0; i < 50; i++ {
		if got := Classify(query, 3); got != first {
			t.Fatalf("classification not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestStripMentions(t *testing.T) {
	tests := []struct{ in, want string }{
		{"@agent1qabc123 hello", "hello"},
		{"hello @agent1qxyz", "hello"},
		{"no mention here", "no mention here"},
	}
	for _, tc := range tests {
		if got := StripMentions(tc.in); got != tc.want {
			t.Errorf("StripMentions(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPhaseNumber(t *testing.T) {
	if n := PhaseAssessment.Number(); n != 1 {
		t.Errorf("assessment number = %d, want 1", n)
	}
	if n := PhaseProgress.Number(); n != 5 {
		t.Errorf("progress number = %d, want 5", n)
	}
	if n := PhaseIntake.Number(); n != 0 {
		t.Errorf("intake number = %d, want 0", n)
	}
}

func TestPhaseValid(t *testing.T) {
	for _, p := range Phases {
		if !p.Valid() {
			t.Errorf("phase %q should be valid", p)
		}
	}
	if PhaseIntake.Valid() {
		t.Error("intake is not a classifiable phase")
	}
}
