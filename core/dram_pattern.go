package core

import "fmt"

// PIMInstructionPattern emits the compute/readout instruction sequence that
// follows one PIM_HEADER, for the DRAM variant it is registered against.
// Concrete patterns live in core/dram and register themselves via init() —
// core never imports core/dram directly, breaking what would otherwise be
// an import cycle (core/dram needs core's Instruction/AddressMap types).
type PIMInstructionPattern interface {
	// Emit returns the PIM_COMP/PIM_READRES (or fused) instructions for one
	// DRAM row's worth of work. readresAddr/readresSize name the SRAM slot
	// the result lands in.
	Emit(am *AddressMap, channel, row uint64, numComps uint32, readresAddr, readresSize uint64) []Instruction
}

var pimPatterns = map[DramType]PIMInstructionPattern{}

// RegisterPIMPattern installs the instruction pattern used for dram_type t.
// Called from core/dram's init() functions.
func RegisterPIMPattern(t DramType, p PIMInstructionPattern) {
	pimPatterns[t] = p
}

func pimPatternFor(t DramType) PIMInstructionPattern {
	p, ok := pimPatterns[t]
	if !ok {
		panic(fmt.Sprintf("core: no PIM instruction pattern registered for dram_type %s (forgot a blank import of core/dram?)", t))
	}
	return p
}
