package core

// Projection lowers the attention output projection: the concatenated
// per-head context vectors are multiplied by the output weight and, when
// kernel fusion is enabled, the residual add is fused into the same tile
// instead of emitted as a separate operation.
type Projection struct {
	opBase

	ctxIn    *NpuTensor
	weight   *NpuTensor
	residual *NpuTensor // optional; its ADD is emitted only when fused
	out      *NpuTensor
	fused    bool
}

// NewProjection allocates the projected output and emits one GEMM tile,
// folding a residual ADD into it when cfg.Features.KernelFusion is set and a
// residual operand is supplied.
func NewProjection(ctx *AllocatorContext, cfg *SimulationConfig, name string, ctxIn, weight, residual *NpuTensor) *Projection {
	op := &Projection{
		opBase:   newOpBase(name, "Projection", cfg),
		ctxIn:    ctxIn,
		weight:   weight,
		residual: residual,
		fused:    cfg.Features.KernelFusion && residual != nil,
	}

	dims := ctxIn.Dims()
	op.out = NewNpuTensor(ctx, name+".out", []uint32{dims[0], cfg.Model.NEmbd / cfg.NTP}, NpuBufAct, cfg.Precision, false)

	op.inputs = []BTensor{ctxIn, weight}
	if residual != nil {
		op.inputs = append(op.inputs, residual)
	}
	op.outputs = []BTensor{op.out}
	LinkProducerConsumer(op, op.inputs, op.outputs)

	op.tiles = append(op.tiles, op.buildTile())
	return op
}

func (op *Projection) buildTile() *Tile {
	cDims := op.ctxIn.Dims()
	wDims := op.weight.Dims()
	m, k, n := cDims[0], cDims[len(cDims)-1], wDims[len(wDims)-1]

	tile := &Tile{Status: TileInitialized, OpType: op.opType, OperationID: op.id, Batch: 1, K: k, Accum: op.fused}
	tile.Instructions = append(tile.Instructions,
		Instruction{Opcode: OpMovIn, SrcAddrs: op.ctxIn.GetAllAddrs(), OperandID: OperandInput},
		Instruction{Opcode: OpMovIn, SrcAddrs: op.weight.GetAllAddrs(), OperandID: OperandInput},
		Instruction{Opcode: OpGemm, Gemm: &GemmDims{M: m, K: k, N: n}},
	)
	if op.fused {
		tile.Instructions = append(tile.Instructions,
			Instruction{Opcode: OpMovIn, SrcAddrs: op.residual.GetAllAddrs(), OperandID: OperandInput},
			Instruction{Opcode: OpAdd, SrcAddrs: op.out.GetAllAddrs(), DestAddr: uint64(op.out.GetAddr([]uint32{0, 0}))},
		)
	}
	tile.Instructions = append(tile.Instructions,
		Instruction{Opcode: OpMovOut, SrcAddrs: op.out.GetAllAddrs(), OperandID: OperandOutput},
	)
	return tile
}
