package core

import "fmt"

// QKVGen lowers the QKV-projection GEMM for one batch: hidden-state rows are
// staged into SRAM, multiplied against the fused Q/K/V weight, and the
// result is moved out to a Q activation tensor while each request's K/V
// PIM cache grows by one token via AddToken.
type QKVGen struct {
	opBase

	hidden *NpuTensor
	weight *NpuTensor
	q      *NpuTensor
	kCache []*PimTensor
	vCache []*PimTensor
}

// NewQKVGen links the hidden-state and weight inputs, allocates the Q
// output, grows each request's K/V cache by one token (new DRAM rows are
// allocated only when that crosses the allocated capacity), and emits a
// single GEMM tile.
func NewQKVGen(ctx *AllocatorContext, cfg *SimulationConfig, name string, hidden, weight *NpuTensor, kCache, vCache []*PimTensor) *QKVGen {
	if len(kCache) != len(vCache) {
		panic(fmt.Sprintf("QKVGen: len(kCache)=%d != len(vCache)=%d", len(kCache), len(vCache)))
	}

	op := &QKVGen{
		opBase: newOpBase(name, "QKVGen", cfg),
		hidden: hidden,
		weight: weight,
		kCache: kCache,
		vCache: vCache,
	}

	dims := hidden.Dims()
	op.q = NewNpuTensor(ctx, name+".q", []uint32{dims[0], cfg.DK()}, NpuBufAct, cfg.Precision, false)

	op.inputs = []BTensor{hidden, weight}
	op.outputs = []BTensor{op.q}
	LinkProducerConsumer(op, op.inputs, op.outputs)

	for _, k := range kCache {
		k.AddToken()
	}
	for _, v := range vCache {
		v.AddToken()
	}

	op.tiles = append(op.tiles, op.buildTile())
	return op
}

func (op *QKVGen) buildTile() *Tile {
	hDims := op.hidden.Dims()
	wDims := op.weight.Dims()
	m, k, n := hDims[0], hDims[1], wDims[len(wDims)-1]

	tile := &Tile{Status: TileInitialized, OpType: op.opType, OperationID: op.id, Batch: 1, K: k}
	tile.Instructions = append(tile.Instructions,
		Instruction{Opcode: OpMovIn, SrcAddrs: op.hidden.GetAllAddrs(), OperandID: OperandInput},
		Instruction{Opcode: OpMovIn, SrcAddrs: op.weight.GetAllAddrs(), OperandID: OperandInput},
		Instruction{Opcode: OpGemm, Gemm: &GemmDims{M: m, K: k, N: n}},
		Instruction{Opcode: OpMovOut, SrcAddrs: op.q.GetAllAddrs(), OperandID: OperandOutput},
	)
	return tile
}
