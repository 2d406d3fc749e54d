package menuinteract

import (
	"testing"
	"time"
)

func TestNewAppliesOverrides(t *testing.T) {
	in := New(false, 5, 9*time.Second)
	if in.candidateCap != 5 {
		t.Errorf("expected candidateCap 5, got %d", in.candidateCap)
	}
	if in.phaseBudget != 9*time.Second {
		t.Errorf("expected phaseBudget 9s, got %v", in.phaseBudget)
	}
}

func TestNewFallsBackToDefaultsOnNonPositive(t *testing.T) {
	in := New(true, 0, -1)
	if in.candidateCap != defaultCandidateCap {
		t.Errorf("expected candidateCap to fall back to %d, got %d", defaultCandidateCap, in.candidateCap)
	}
	if in.phaseBudget != defaultPhaseBudget {
		t.Errorf("expected phaseBudget to fall back to %v, got %v", defaultPhaseBudget, in.phaseBudget)
	}
	if !in.isSPA {
		t.Error("expected isSPA to carry through")
	}
}

func TestPollBudgetVariesBySPA(t *testing.T) {
	static := New(false, 0, 0)
	spa := New(true, 0, 0)
	if static.pollBudget() != pollBudgetStatic {
		t.Errorf("expected static poll budget %v, got %v", pollBudgetStatic, static.pollBudget())
	}
	if spa.pollBudget() != pollBudgetSPA {
		t.Errorf("expected SPA poll budget %v, got %v", pollBudgetSPA, spa.pollBudget())
	}
}
