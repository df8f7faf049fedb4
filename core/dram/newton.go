// Package dram provides the pluggable PIM instruction patterns a DRAM
// variant lowers its compute/readout sequence into. Each variant registers
// itself with core via an init() function, keeping core free of a direct
// import of its pluggable implementations and avoiding an import cycle.
package dram

import "github.com/neupims-sim/neupims-sim/core"

func init() {
	core.RegisterPIMPattern(core.DramTypeNewton, newtonPattern{})
}

// newtonPattern emits one PIM_COMP per comparison unit followed by a single
// PIM_READRES, matching the Newton DRAM-PIM instruction set (no fused
// compute+readout command).
type newtonPattern struct{}

func (newtonPattern) Emit(am *core.AddressMap, channel, row uint64, numComps uint32, readresAddr, readresSize uint64) []core.Instruction {
	instrs := make([]core.Instruction, 0, numComps+1)
	for c := uint32(0); c < numComps; c++ {
		addr := am.EncodePIMCompsReadres(channel, row, 1, false)
		instrs = append(instrs, core.Instruction{
			Opcode:   core.OpPimComp,
			SrcAddrs: []core.PhysicalAddress{addr},
		})
	}
	instrs = append(instrs, core.Instruction{
		Opcode:   core.OpPimReadres,
		DestAddr: readresAddr,
		Size:     readresSize,
	})
	return instrs
}
