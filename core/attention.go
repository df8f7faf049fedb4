package core

import (
	"fmt"
	"math/bits"
)

// NeuPIMSAttend lowers the decode-path fused-attention kernel: for every
// request in the batch, per-head value rows are streamed out of their DRAM
// bank via PIM_GWRITE/PIM_HEADER followed by either NEWTON-style
// PIM_COMP(×n)+PIM_READRES or the fused PIM_COMPS_READRES, accumulated
// across page chunks with ADD, then moved out into the context-vector
// output. This is the most detailed lowering in the package, including its
// known gaps (see DESIGN.md Open Questions 2–3).
type NeuPIMSAttend struct {
	opBase

	cfg *SimulationConfig
	am  *AddressMap

	logits []*NpuTensor // per-request attention-weight input, len == batchSize
	vs     []*PimTensor // per-request VALUE cache input, len == batchSize
	ctxOut []*NpuTensor // per-request context-vector output, shape [nh, l, dk]

	tilesPerChunk   uint32
	datasPerCompCmd uint32

	// reqIdxs holds the inclusive end-index, into logits/vs, of each tile;
	// a new tile starts whenever packing one more request would overflow
	// the scratchpad budget.
	reqIdxs []int
}

// NewNeuPIMSAttend links producer/consumer edges, allocates the context
// output tensors, and lowers the batch into tiles. inputs must be exactly
// 2*batchSize long: the first half are per-request logits (NpuTensor), the
// second half per-request VALUE caches (PimTensor), in matching order.
func NewNeuPIMSAttend(ctx *AllocatorContext, cfg *SimulationConfig, name string, inputs []BTensor) *NeuPIMSAttend {
	if len(inputs)%2 != 0 {
		panic(fmt.Sprintf("NeuPIMSAttend: inputs length %d is not even (logits+values pairs)", len(inputs)))
	}
	batchSize := len(inputs) / 2

	a := &NeuPIMSAttend{
		opBase: newOpBase(name, "NeuPIMSAttend", cfg),
		cfg:    cfg,
		am:     ctx.AddressMap,
	}

	dk := cfg.DK()
	for i := 0; i < batchSize; i++ {
		lt, ok := inputs[i].(*NpuTensor)
		if !ok {
			panic("NeuPIMSAttend: logits input is not an NpuTensor")
		}
		vt, ok := inputs[batchSize+i].(*PimTensor)
		if !ok {
			panic("NeuPIMSAttend: value input is not a PimTensor")
		}
		if lt.Dims()[2] != uint32(vt.SeqLen()) {
			panic(fmt.Sprintf("NeuPIMSAttend: logit seq_len %d != value seq_len %d at request %d", lt.Dims()[2], vt.SeqLen(), i))
		}
		if lt.Dims()[0] != vt.Dims()[0] {
			panic(fmt.Sprintf("NeuPIMSAttend: logit heads %d != value heads %d at request %d", lt.Dims()[0], vt.Dims()[0], i))
		}
		a.logits = append(a.logits, lt)
		a.vs = append(a.vs, vt)

		out := NewNpuTensor(ctx, fmt.Sprintf("%s.ctx[%d]", name, i), []uint32{lt.Dims()[0], lt.Dims()[1], dk}, NpuBufAct, cfg.Precision, false)
		a.ctxOut = append(a.ctxOut, out)
	}

	a.inputs = inputs
	for _, out := range a.ctxOut {
		a.outputs = append(a.outputs, out)
	}
	LinkProducerConsumer(a, a.inputs, a.outputs)

	a.calculateLoops()
	a.initializeTiles()
	return a
}

// calculateLoops determines the PIM tiling geometry (tilesPerChunk,
// datasPerCompCmd) and the scratchpad-budget-driven tile boundaries
// (reqIdxs).
func (a *NeuPIMSAttend) calculateLoops() {
	cfg := a.cfg
	dk := uint64(cfg.DK())
	nh := uint64(cfg.HeadsPerRank())
	embdPerRank := uint64(cfg.Model.NEmbd) / uint64(cfg.NTP)
	pageSize := cfg.DRAM.DramPageSize / uint64(cfg.Precision)
	banksPerChannel := cfg.DRAM.DramBanksPerCh

	a.tilesPerChunk = uint32(ceilDiv(dk, banksPerChannel))
	a.datasPerCompCmd = cfg.DRAM.PimCompCoverage

	headsPerDramPage := pageSize / dk
	headsSpaceInPage := headsPerDramPage * dk
	chunksForSRAM := ceilDiv(embdPerRank, headsSpaceInPage)

	spadLimitBytes := uint64(cfg.SRAM.SpadSize) * 1024

	var sramNeeds uint64
	batchSize := len(a.logits)
	for i := 0; i < batchSize; i++ {
		qLen := a.logits[i].Dims()[1]
		if qLen != 1 {
			// Prefill attention is asserted unreachable in the reference
			// implementation; this lowering only supports decode.
			panic("NeuPIMSAttend: prefill lowering (q_len != 1) is not supported")
		}
		seqLen := uint64(a.vs[i].SeqLen())
		needForReq := (seqLen + chunksForSRAM*dk) * nh * uint64(cfg.Precision)

		sramNeeds += needForReq
		if sramNeeds > spadLimitBytes {
			if i == 0 {
				panic("NeuPIMSAttend: single request exceeds scratchpad budget")
			}
			a.reqIdxs = append(a.reqIdxs, i-1)
			sramNeeds = needForReq
		}
	}
	a.reqIdxs = append(a.reqIdxs, batchSize-1)
}

// initializeTiles builds one Tile per reqIdxs boundary.
func (a *NeuPIMSAttend) initializeTiles() {
	prev := 0
	for _, end := range a.reqIdxs {
		a.tiles = append(a.tiles, a.initializeInstructions(prev, end))
		prev = end + 1
	}
}

// initializeInstructions builds one Tile covering requests [start, end].
// Ported from NeuPIMSAttend::initialize_instructions's decode branch only;
// a request with q_len != 1 (prefill) panics and no prefill instructions
// are built (see DESIGN.md Open Question 3).
func (a *NeuPIMSAttend) initializeInstructions(start, end int) *Tile {
	cfg := a.cfg
	pageSize := cfg.DRAM.DramPageSize / uint64(cfg.Precision)
	tile := &Tile{Status: TileInitialized, OpType: a.opType, OperationID: a.id, Batch: uint32(end - start + 1)}

	for i := start; i <= end; i++ {
		logit := a.logits[i]
		value := a.vs[i]

		if logit.Dims()[1] != 1 {
			// See calculateLoops: reachable only if a caller bypasses it.
			panic("NeuPIMSAttend: prefill instruction lowering is not supported")
		}

		seqLen := uint64(value.SeqLen())
		ch := value.Channel()
		chunks := ceilDiv(seqLen, pageSize)
		rows := value.Rows()

		nh := cfg.HeadsPerRank()
		for hi := uint32(0); hi < nh; hi++ {
			sramReadres := make([][]uint64, a.tilesPerChunk)

			for ci := uint64(0); ci < chunks; ci++ {
				// logit_row is a placeholder fixed at 0 for every request,
				// head and chunk; the logit tensor's position is not mapped
				// to a DRAM row (see DESIGN.md Open Question 2).
				logitRow := uint64(0)
				gwriteAddr := a.am.EncodePIMHeader(ch, logitRow, true, 0, 0)
				tile.Instructions = append(tile.Instructions, Instruction{
					Opcode:   OpPimGwrite,
					SrcAddrs: []PhysicalAddress{gwriteAddr},
				})

				var numComps uint32
				last := ci == chunks-1
				residual := seqLen % pageSize
				if last && residual > 0 {
					numComps = uint32(ceilDiv(residual, uint64(a.datasPerCompCmd)))
				} else {
					numComps = uint32(pageSize / uint64(a.datasPerCompCmd))
				}
				decodedNumComps := nextPow2(numComps)

				for ti := uint32(0); ti < a.tilesPerChunk; ti++ {
					rowIdx := uint64(ti)*chunks + ci
					dramRow := rows[rowIdx]

					headerAddr := a.am.EncodePIMHeader(ch, dramRow, false, decodedNumComps, 1)
					tile.Instructions = append(tile.Instructions, Instruction{
						Opcode:   OpPimHeader,
						SrcAddrs: []PhysicalAddress{headerAddr},
					})

					readresAddr, readresSize := a.sram.allocateSRAMAddr(cfg.DRAM.DramBanksPerCh, false)
					pattern := pimPatternFor(cfg.DRAM.DramType)
					tile.Instructions = append(tile.Instructions, pattern.Emit(a.am, ch, dramRow, numComps, readresAddr, readresSize)...)
					sramReadres[ti] = append(sramReadres[ti], readresAddr)
				}
			}

			outRow := a.ctxOut[i].GetRowAddrs(hi, 0)
			if chunks > 1 {
				for ti := uint32(0); ti < a.tilesPerChunk; ti++ {
					if uint64(len(sramReadres[ti])) != chunks {
						panic(fmt.Sprintf("NeuPIMSAttend: readres count %d != chunks %d", len(sramReadres[ti]), chunks))
					}
					accumAddr, accumSize := a.sram.allocateSRAMAddr(uint64(a.tilesPerChunk)*cfg.DRAM.DramBanksPerCh, true)
					srcs := make([]PhysicalAddress, len(sramReadres[ti]))
					for k, addr := range sramReadres[ti] {
						srcs[k] = PhysicalAddress(addr)
					}
					tile.Instructions = append(tile.Instructions, Instruction{
						Opcode:   OpAdd,
						SrcAddrs: srcs,
						DestAddr: accumAddr,
						Size:     accumSize,
					})
					tile.Instructions = append(tile.Instructions, Instruction{
						Opcode:   OpMovOut,
						SrcAddrs: []PhysicalAddress{outRow[ti]},
						DestAddr: accumAddr,
					})
				}
			} else {
				for ti := uint32(0); ti < a.tilesPerChunk; ti++ {
					tile.Instructions = append(tile.Instructions, Instruction{
						Opcode:   OpMovOut,
						SrcAddrs: []PhysicalAddress{outRow[ti]},
						DestAddr: sramReadres[ti][0],
					})
				}
			}
		}
	}
	return tile
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// nextPow2 returns the smallest power of two >= n (n >= 1), used to round
// PIM_HEADER's num_comps field up to a power of two.
func nextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}
