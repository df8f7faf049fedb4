package core

import "math"

// PimTensorKVType distinguishes the Key and Value roles of a PimTensor,
// which determine its layout stride.
type PimTensorKVType int

const (
	PimKey PimTensorKVType = iota
	PimValue
)

// PimTensor is bound to exactly one DRAM channel and carries a growing list
// of absolute DRAM row indices obtained from the KV allocator. It never
// addresses memory via GetAddr — PIM tiles address memory via PIM-header
// encoded commands, not raw element addresses.
type PimTensor struct {
	tensorBase
	channel       uint64
	kvType        PimTensorKVType
	bankPerCh     uint32
	numElePerRow  uint32
	embd          uint32
	numRowsPerAlloc uint32
	rows          []uint64
	seqLen        uint32

	kv *KVCacheAllocator
}

// NewPimTensor constructs a KEY or VALUE PimTensor bound to channel ch, with
// logical shape [h, d_k, seq_len] (KEY) or [h, seq_len, d_k] (VALUE), and
// performs the initial row allocation for the current seq_len.
func NewPimTensor(kv *KVCacheAllocator, cfg *SimulationConfig, name string, ch uint64, dims []uint32, kvType PimTensorKVType, produced bool) *PimTensor {
	t := &PimTensor{
		tensorBase:   newTensorBase(name, dims, cfg.Precision, produced),
		channel:      ch,
		kvType:       kvType,
		bankPerCh:    uint32(cfg.DRAM.DramBanksPerCh),
		numElePerRow: uint32(cfg.DRAM.DramPageSize / uint64(cfg.Precision)),
		embd:         cfg.Model.NEmbd,
		kv:           kv,
	}

	if kvType == PimKey {
		t.seqLen = dims[2]
	} else {
		t.seqLen = dims[1]
	}

	var numAllocIter uint32
	if kvType == PimKey {
		// KEY: stride across banks (parallel comparison across banks).
		t.numRowsPerAlloc = uint32(math.Ceil(float64(t.embd) / float64(t.numElePerRow)))
		numAllocIter = uint32(math.Ceil(float64(t.seqLen) / float64(t.bankPerCh)))
	} else {
		// VALUE: stride across row-elements (column-wise accumulation).
		t.numRowsPerAlloc = uint32(math.Ceil(float64(t.embd) / float64(t.bankPerCh)))
		numAllocIter = uint32(math.Ceil(float64(t.seqLen) / float64(t.numElePerRow)))
	}

	numRequired := numAllocIter * t.numRowsPerAlloc
	for i := uint32(0); i < numRequired; i++ {
		t.rows = append(t.rows, kv.AllocateChannel(ch))
	}
	return t
}

// GetAddr is not used by the compute path for PIM tensors; it returns the
// sentinel 0.
func (t *PimTensor) GetAddr(indexes []uint32) PhysicalAddress { return 0 }

// GetAllAddrs returns empty for PIM tensors. Physical identity is carried
// by Rows() plus Channel().
func (t *PimTensor) GetAllAddrs() []PhysicalAddress { return nil }

// AllocatedSeqLen returns the layout-stride-rounded capacity the currently
// allocated rows can hold.
func (t *PimTensor) AllocatedSeqLen() uint32 {
	if t.kvType == PimKey {
		return uint32(math.Ceil(float64(t.seqLen)/float64(t.bankPerCh))) * t.bankPerCh
	}
	return uint32(math.Ceil(float64(t.seqLen)/float64(t.numElePerRow))) * t.numElePerRow
}

// AddToken increments seq_len (and the shape entry it indexes: dims[2] for
// KEY, dims[1] for VALUE). If the new seq_len exceeds AllocatedSeqLen, it
// allocates numRowsPerAlloc more rows from the bound channel. Never
// deallocates mid-request.
func (t *PimTensor) AddToken() {
	prevAllocated := t.AllocatedSeqLen()

	t.seqLen++
	if t.kvType == PimKey {
		t.dims[2]++
	} else {
		t.dims[1]++
	}

	if t.seqLen <= prevAllocated {
		return
	}
	for i := uint32(0); i < t.numRowsPerAlloc; i++ {
		t.rows = append(t.rows, t.kv.AllocateChannel(t.channel))
	}
}

// SeqLen returns the current logical sequence length.
func (t *PimTensor) SeqLen() uint32 { return t.seqLen }

// NumRows returns the current number of allocated DRAM rows.
func (t *PimTensor) NumRows() int { return len(t.rows) }

// Channel returns the bound DRAM channel.
func (t *PimTensor) Channel() uint64 { return t.channel }

// Rows returns the allocated DRAM row indices, in allocation order.
func (t *PimTensor) Rows() []uint64 { return t.rows }

// NumRowsPerAlloc exposes the layout-specific growth stride, used by
// Testable Property 4 (ceil(seq_len/stride) * rows_per_alloc).
func (t *PimTensor) NumRowsPerAlloc() uint32 { return t.numRowsPerAlloc }

// Stride returns the layout-specific seq_len stride (bank_per_ch for KEY,
// num_ele_per_row for VALUE), used by Testable Property 4.
func (t *PimTensor) Stride() uint32 {
	if t.kvType == PimKey {
		return t.bankPerCh
	}
	return t.numElePerRow
}
