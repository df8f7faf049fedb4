package core

// NpuTensorBufType tags which allocator produced an NpuTensor's backing
// storage.
type NpuTensorBufType int

const (
	NpuBufWeight NpuTensorBufType = iota
	NpuBufAct
	NpuBufKV
)

// NpuTensorInner is one 2D shard of an NpuTensor: a contiguous, linearly
// addressed [rows, cols] block. A 3D tensor [H, L, D] is stored as H inner
// shards of [L, D] — this matches the systolic array's preference for
// head-contiguous bursts.
type NpuTensorInner struct {
	baseAddr uint64
	rows     uint32
	cols     uint32
	precision uint32
}

func newNpuTensorInner(baseAddr uint64, rows, cols, precision uint32) *NpuTensorInner {
	return &NpuTensorInner{baseAddr: baseAddr, rows: rows, cols: cols, precision: precision}
}

// addr computes the strided linear address of (row, col) within this shard,
// honoring transposed (which swaps the last two stride multipliers).
func (in *NpuTensorInner) addr(row, col uint32, transposed bool) PhysicalAddress {
	var offset uint64
	if transposed {
		offset = uint64(col)*uint64(in.rows) + uint64(row)
	} else {
		offset = uint64(row)*uint64(in.cols) + uint64(col)
	}
	return PhysicalAddress(in.baseAddr + offset*uint64(in.precision))
}

// allAddrs enumerates every element address of this shard in row-major order.
func (in *NpuTensorInner) allAddrs(transposed bool) []PhysicalAddress {
	out := make([]PhysicalAddress, 0, int(in.rows)*int(in.cols))
	for r := uint32(0); r < in.rows; r++ {
		for c := uint32(0); c < in.cols; c++ {
			out = append(out, in.addr(r, c, transposed))
		}
	}
	return out
}

// NpuTensor is a composite of one or more NpuTensorInner shards: a 2D buffer
// (weights, plain activations) or a list of per-head shards for a 3D
// [H, L, D] tensor. Addresses are linear within a contiguous allocated block.
type NpuTensor struct {
	tensorBase
	bufType    NpuTensorBufType
	inners     []*NpuTensorInner
	transposed bool
}

// NewNpuTensor allocates an NpuTensor of the given shape from the
// activation or weight allocator, per bufType. For a 3D shape [h, l, d] it
// constructs h inner [l, d] shards; for a 2D shape [l, d] it constructs one.
func NewNpuTensor(ctx *AllocatorContext, name string, dims []uint32, bufType NpuTensorBufType, precision uint32, produced bool) *NpuTensor {
	t := &NpuTensor{
		tensorBase: newTensorBase(name, dims, precision, produced),
		bufType:    bufType,
	}

	var heads uint32 = 1
	rowsDim, colsDim := dims[0], dims[1]
	if len(dims) == 3 {
		heads = dims[0]
		rowsDim, colsDim = dims[1], dims[2]
	}

	shardBytes := uint64(rowsDim) * uint64(colsDim) * uint64(precision)
	for h := uint32(0); h < heads; h++ {
		var base uint64
		switch bufType {
		case NpuBufWeight:
			base = ctx.Weight.Allocate(shardBytes)
		default:
			base = ctx.Activation.Allocate(shardBytes)
		}
		t.inners = append(t.inners, newNpuTensorInner(base, rowsDim, colsDim, precision))
	}
	return t
}

// WrapNpuTensor2D wraps a single pre-existing inner shard (e.g. an operand
// view onto a larger tensor) as a standalone NpuTensor.
func WrapNpuTensor2D(name string, inner *NpuTensorInner, dims []uint32, precision uint32, produced bool) *NpuTensor {
	return &NpuTensor{
		tensorBase: newTensorBase(name, dims, precision, produced),
		inners:     []*NpuTensorInner{inner},
	}
}

func (t *NpuTensor) SetTransposed()   { t.transposed = true }
func (t *NpuTensor) UnsetTransposed() { t.transposed = false }
func (t *NpuTensor) Transposed() bool { return t.transposed }

// GetAddr dispatches by the leading dimension to the corresponding inner
// shard, then computes a strided linear address within it.
func (t *NpuTensor) GetAddr(indexes []uint32) PhysicalAddress {
	if len(t.inners) == 1 && len(indexes) == 2 {
		return t.inners[0].addr(indexes[0], indexes[1], t.transposed)
	}
	head := indexes[0]
	return t.inners[head].addr(indexes[1], indexes[2], t.transposed)
}

// GetAllAddrs enumerates every element address once, in row-major order
// over (head, row, col).
func (t *NpuTensor) GetAllAddrs() []PhysicalAddress {
	var out []PhysicalAddress
	for _, inner := range t.inners {
		out = append(out, inner.allAddrs(t.transposed)...)
	}
	return out
}

// GetRowAddrs returns every column address of one row of one head-shard,
// used when staging a single KV row or logit row into SRAM.
func (t *NpuTensor) GetRowAddrs(headIdx, rowIdx uint32) []PhysicalAddress {
	inner := t.inners[headIdx]
	out := make([]PhysicalAddress, 0, inner.cols)
	for c := uint32(0); c < inner.cols; c++ {
		out = append(out, inner.addr(rowIdx, c, t.transposed))
	}
	return out
}

// AddToken is a no-op for plain NPU tensors. Only PIM-layout KV shards grow
// by token (see PimTensor.AddToken); an NPU-layout KV tensor would instead
// extend an inner shard's row count from the KVCacheAllocator free list, but
// this simulator only builds KV tensors under the PIM layout.
func (t *NpuTensor) AddToken() {}
