package dram

import (
	"testing"

	"github.com/neupims-sim/neupims-sim/core"
)

func TestNeupimsPattern_Emit_SingleFusedInstruction(t *testing.T) {
	// GIVEN a neupimsPattern and a valid address map
	am, err := core.NewAddressMap(64, 4, 4, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pattern := neupimsPattern{}

	// WHEN emitting for 5 comparisons
	instrs := pattern.Emit(am, 0, 10, 5, 64, 4)

	// THEN exactly one PIM_COMPS_READRES instruction is emitted
	if len(instrs) != 1 {
		t.Fatalf("len(instrs) = %d, want 1", len(instrs))
	}
	if instrs[0].Opcode != core.OpPimCompsReadres {
		t.Errorf("Opcode = %v, want PIM_COMPS_READRES", instrs[0].Opcode)
	}
	if instrs[0].DestAddr != 64 || instrs[0].Size != 4 {
		t.Errorf("DestAddr/Size = %d/%d, want 64/4", instrs[0].DestAddr, instrs[0].Size)
	}
}
