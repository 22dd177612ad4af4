package validation_test

import (
	"testing"

	"github.com/atlas-quant/tradecore/internal/validation"
)

func TestRunStructureSmokeDefaultSwingCase(t *testing.T) {
	rep, err := validation.RunStructureSmoke([]validation.StructureSmokeCase{validation.DefaultSwingCase()})
	if err != nil {
		t.Fatalf("RunStructureSmoke: %v", err)
	}
	if rep.CasesRun != 1 {
		t.Fatalf("CasesRun = %d, want 1", rep.CasesRun)
	}
	if !rep.Pass {
		t.Fatalf("expected pass, got failures: %+v", rep.Failures)
	}
}
