package dram

import "github.com/neupims-sim/neupims-sim/core"

func init() {
	core.RegisterPIMPattern(core.DramTypeNeuPIMs, neupimsPattern{})
}

// neupimsPattern emits a single fused PIM_COMPS_READRES, the NeuPIMs DRAM
// variant's combined compute-and-readout command.
type neupimsPattern struct{}

func (neupimsPattern) Emit(am *core.AddressMap, channel, row uint64, numComps uint32, readresAddr, readresSize uint64) []core.Instruction {
	addr := am.EncodePIMCompsReadres(channel, row, numComps, true)
	return []core.Instruction{{
		Opcode:   core.OpPimCompsReadres,
		SrcAddrs: []core.PhysicalAddress{addr},
		DestAddr: readresAddr,
		Size:     readresSize,
	}}
}
