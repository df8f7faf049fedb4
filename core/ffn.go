package core

// FFN lowers the position-wise feed-forward block: up-projection GEMM,
// GELU activation, down-projection GEMM, with LayerNorm optionally fused
// into the up-projection's MOVIN stage when kernel fusion is enabled.
type FFN struct {
	opBase

	in       *NpuTensor
	wUp      *NpuTensor
	wDown    *NpuTensor
	hidden   *NpuTensor // up-projected, post-GELU
	out      *NpuTensor
	layerNormFused bool
}

// NewFFN allocates the intermediate and output tensors and emits one tile
// containing both GEMMs and the GELU in between.
func NewFFN(ctx *AllocatorContext, cfg *SimulationConfig, name string, in, wUp, wDown *NpuTensor) *FFN {
	op := &FFN{
		opBase:         newOpBase(name, "FFN", cfg),
		in:             in,
		wUp:            wUp,
		wDown:          wDown,
		layerNormFused: cfg.Features.KernelFusion,
	}

	inDims := in.Dims()
	upDims := wUp.Dims()
	op.hidden = NewNpuTensor(ctx, name+".hidden", []uint32{inDims[0], upDims[len(upDims)-1]}, NpuBufAct, cfg.Precision, false)
	op.out = NewNpuTensor(ctx, name+".out", []uint32{inDims[0], cfg.Model.NEmbd / cfg.NTP}, NpuBufAct, cfg.Precision, false)

	op.inputs = []BTensor{in, wUp, wDown}
	op.outputs = []BTensor{op.out}
	LinkProducerConsumer(op, op.inputs, op.outputs)

	op.tiles = append(op.tiles, op.buildTile())
	return op
}

func (op *FFN) buildTile() *Tile {
	inDims := op.in.Dims()
	upDims := op.wUp.Dims()
	downDims := op.wDown.Dims()

	mUp, kUp, nUp := inDims[0], inDims[len(inDims)-1], upDims[len(upDims)-1]
	kDown, nDown := nUp, downDims[len(downDims)-1]

	tile := &Tile{Status: TileInitialized, OpType: op.opType, OperationID: op.id, Batch: 1, K: kUp}

	movInOpcode := OpMovIn
	tile.Instructions = append(tile.Instructions, Instruction{Opcode: movInOpcode, SrcAddrs: op.in.GetAllAddrs(), OperandID: OperandInput})
	if op.layerNormFused {
		tile.Instructions = append(tile.Instructions, Instruction{Opcode: OpLayerNorm})
	}
	tile.Instructions = append(tile.Instructions,
		Instruction{Opcode: OpMovIn, SrcAddrs: op.wUp.GetAllAddrs(), OperandID: OperandInput},
		Instruction{Opcode: OpGemm, Gemm: &GemmDims{M: mUp, K: kUp, N: nUp}},
		Instruction{Opcode: OpGelu, SrcAddrs: op.hidden.GetAllAddrs()},
		Instruction{Opcode: OpMovIn, SrcAddrs: op.wDown.GetAllAddrs(), OperandID: OperandInput},
		Instruction{Opcode: OpGemm, Gemm: &GemmDims{M: mUp, K: kDown, N: nDown}},
		Instruction{Opcode: OpMovOut, SrcAddrs: op.out.GetAllAddrs(), OperandID: OperandOutput},
	)
	return tile
}
