package executor

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsTerminalFill_CaseInsensitiveStatus(t *testing.T) {
	filled := decimal.NewFromInt(10)
	for _, status := range []string{"matched", "Matched", "MATCHED", "mAtChEd"} {
		if !isTerminalFill(status, filled) {
			t.Fatalf("expected status %q with positive fill to be terminal", status)
		}
	}
}

func TestIsTerminalFill_UnmatchedOrNoFill(t *testing.T) {
	if isTerminalFill("matched", decimal.Zero) {
		t.Fatal("expected zero fill size to never be terminal, even with a matched status")
	}
	if isTerminalFill("live", decimal.NewFromInt(10)) {
		t.Fatal("expected a non-matched status to never be terminal")
	}
}
