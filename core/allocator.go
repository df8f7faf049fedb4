package core

import "fmt"

// WeightAllocator is a bump pointer in DRAM, never freed. The allocation
// unit is one full-channel stripe so every weight burst saturates all
// channels. The top is counted in units of stripes, not bytes —
// NextAlignedAddr then aligns that count as though it were a byte address.
// This may look backwards at first glance; the stripe-indexed addressing is
// intentional and preserved unchanged (see DESIGN.md Open Question 4).
type WeightAllocator struct {
	am      *AddressMap
	topAddr uint64
}

func newWeightAllocator(am *AddressMap) *WeightAllocator {
	return &WeightAllocator{am: am}
}

// Allocate returns the current top (in stripe units) and advances it by
// ceil(size/unit) stripes, where unit = dram_req_size * dram_channels.
func (w *WeightAllocator) Allocate(size uint64) uint64 {
	unit := w.am.DRAMReqSize * w.am.DRAMChannels
	result := w.topAddr
	w.topAddr += (size + unit - 1) / unit
	return result
}

// NextAlignedAddr returns the alignment-rounded top plus one alignment unit
// of gap, for the next allocator region to start from. Panics if invoked
// before any weight has been placed (top == 0).
func (w *WeightAllocator) NextAlignedAddr() uint64 {
	if w.topAddr == 0 {
		panic("WeightAllocator: next_aligned_addr requested before any weight allocated")
	}
	return w.am.Align(w.topAddr) + w.am.Alignment
}

// ActivationAllocator is a scoped bump allocator within a fixed-size buffer.
type ActivationAllocator struct {
	am       *AddressMap
	baseAddr uint64
	topAddr  uint64
	bufSize  uint64
	bufLimit uint64
}

func newActivationAllocator(am *AddressMap, baseAddr, bufSize uint64) *ActivationAllocator {
	return &ActivationAllocator{
		am:       am,
		baseAddr: baseAddr,
		topAddr:  baseAddr,
		bufSize:  bufSize,
		bufLimit: baseAddr + bufSize,
	}
}

// Allocate returns the current top and advances it to the next alignment
// boundary. Overflowing the buffer is a fatal assertion — the workload is
// mis-sized and there is no recovery.
func (a *ActivationAllocator) Allocate(size uint64) uint64 {
	if a.topAddr+size >= a.bufLimit {
		panic(fmt.Sprintf("ActivationAllocator: overflow allocating %d bytes, top=%d limit=%d", size, a.topAddr, a.bufLimit))
	}
	result := a.topAddr
	a.topAddr += size
	if rem := a.topAddr % a.am.Alignment; rem != 0 {
		a.topAddr += a.am.Alignment - rem
	}
	return result
}

// NextAlignedAddr returns the aligned address just past the activation
// buffer, for the KV-cache region to start from.
func (a *ActivationAllocator) NextAlignedAddr() uint64 {
	return a.am.Align(a.bufLimit) + a.am.Alignment
}

// Flush resets top back to base. Called by convention between inference
// steps; the core trusts the caller to respect this invariant.
func (a *ActivationAllocator) Flush() {
	a.topAddr = a.baseAddr
}

// kvCacheRowOffset is log2(1 MiB row size in bytes) = 20.
const kvCacheRowOffset = 20

// kvCacheRowsPerBank is the physical row count per bank.
const kvCacheRowsPerBank = 32768

// KVCacheAllocator has two mutually exclusive layouts chosen by RunMode:
// an NPU free list of fixed-size 32-token entries, or PIM per-channel free
// lists of DRAM row indices.
type KVCacheAllocator struct {
	mode RunMode

	// NPU layout
	npuFreeList   []uint64 // entry base addresses, LIFO
	npuEntrySize  uint64   // bytes per entry (32 tokens of one head)

	// PIM layout
	dramChannels uint64
	baseRow      uint64
	numElePerRow uint64
	bankPerCh    uint64
	rows         [][]uint64 // per-channel free row index lists, LIFO
}

// newKVCacheAllocatorNPU builds the free list of fixed 32-token entries.
// entry_bytes = 32 * d_k * precision. Total reserved:
// max_active_reqs * max_seq_len * heads_per_rank * d_k * precision.
func newKVCacheAllocatorNPU(cfg *SimulationConfig, baseAddr uint64) *KVCacheAllocator {
	h := cfg.HeadsPerRank()
	dk := cfg.DK()
	precision := uint64(cfg.Precision)
	entrySeqLen := uint64(32)
	entryBytes := entrySeqLen * uint64(dk) * precision

	totalSize := uint64(cfg.Capacity.MaxActiveReqs) * uint64(cfg.Capacity.MaxSeqLen) * uint64(h) * uint64(dk) * precision
	if baseAddr+totalSize >= cfg.Memory.HBMSize {
		panic(fmt.Sprintf("KVCacheAllocator: NPU layout size %d overruns HBM size %d", totalSize, cfg.Memory.HBMSize))
	}

	numEntries := uint64(cfg.Capacity.MaxActiveReqs) * uint64(cfg.Capacity.MaxSeqLen) * uint64(h) / entrySeqLen
	kv := &KVCacheAllocator{mode: RunModeNPUOnly, npuEntrySize: entryBytes}
	next := baseAddr
	for i := uint64(0); i < numEntries; i++ {
		kv.npuFreeList = append(kv.npuFreeList, next)
		next += entryBytes
	}
	return kv
}

// newKVCacheAllocatorPIM builds per-channel free lists of DRAM row indices.
func newKVCacheAllocatorPIM(cfg *SimulationConfig, baseAddr uint64) *KVCacheAllocator {
	mask := ^(uint64(1)<<kvCacheRowOffset - 1)
	base := baseAddr & mask
	base += uint64(1) << kvCacheRowOffset
	baseRow := base >> kvCacheRowOffset

	kv := &KVCacheAllocator{
		mode:         RunModeNPUPIM,
		dramChannels: cfg.DRAM.DramChannels,
		baseRow:      baseRow,
		numElePerRow: cfg.DRAM.DramPageSize / uint64(cfg.Precision),
		bankPerCh:    cfg.DRAM.DramBanksPerCh,
	}
	freeRowsSize := kvCacheRowsPerBank - baseRow
	kv.rows = make([][]uint64, cfg.DRAM.DramChannels)
	for ch := uint64(0); ch < cfg.DRAM.DramChannels; ch++ {
		var list []uint64
		for j := uint64(0); j < freeRowsSize; j++ {
			if baseRow+j < kvCacheRowsPerBank {
				list = append(list, baseRow+j)
			}
		}
		kv.rows[ch] = list
	}
	return kv
}

// Allocate pops one fixed-size entry from the NPU free list. Calling this in
// PIM mode is a fatal assertion.
func (kv *KVCacheAllocator) Allocate() uint64 {
	if kv.mode != RunModeNPUOnly {
		panic("KVCacheAllocator: Allocate() called in NPU_PIM mode; use AllocateChannel(ch)")
	}
	if len(kv.npuFreeList) == 0 {
		panic("KVCacheAllocator: NPU free list exhausted")
	}
	addr := kv.npuFreeList[0]
	kv.npuFreeList = kv.npuFreeList[1:]
	return addr
}

// Free pushes an NPU entry onto the head of the free list, so the next
// Allocate returns it.
func (kv *KVCacheAllocator) Free(addr uint64) {
	if kv.mode != RunModeNPUOnly {
		panic("KVCacheAllocator: Free(addr) called in NPU_PIM mode; use FreeChannel(ch, row)")
	}
	kv.npuFreeList = append([]uint64{addr}, kv.npuFreeList...)
}

// AllocateChannel pops a free DRAM row from channel ch's free list. Calling
// this in NPU_ONLY mode is a fatal assertion.
func (kv *KVCacheAllocator) AllocateChannel(ch uint64) uint64 {
	if kv.mode != RunModeNPUPIM {
		panic("KVCacheAllocator: AllocateChannel(ch) called in NPU_ONLY mode; use Allocate()")
	}
	list := kv.rows[ch]
	if len(list) == 0 {
		panic(fmt.Sprintf("KVCacheAllocator: channel %d row free list exhausted", ch))
	}
	row := list[0]
	kv.rows[ch] = list[1:]
	return row
}

// FreeChannel pushes a DRAM row onto the head of channel ch's free list, so
// the next AllocateChannel(ch) returns it.
func (kv *KVCacheAllocator) FreeChannel(ch uint64, row uint64) {
	if kv.mode != RunModeNPUPIM {
		panic("KVCacheAllocator: FreeChannel(ch, row) called in NPU_ONLY mode; use Free(addr)")
	}
	kv.rows[ch] = append([]uint64{row}, kv.rows[ch]...)
}

// FreeRowsForChannel returns the count of currently-free rows for ch.
func (kv *KVCacheAllocator) FreeRowsForChannel(ch uint64) int {
	return len(kv.rows[ch])
}

// AllocatorContext owns the three allocators, threaded explicitly through
// stage-program construction instead of as process-wide singletons.
// Initialization order is fixed: Weight first, then Activation (starting at
// Weight.NextAlignedAddr()), then KVCache (starting at
// Activation.NextAlignedAddr()).
type AllocatorContext struct {
	AddressMap *AddressMap
	Weight     *WeightAllocator
	Activation *ActivationAllocator
	KVCache    *KVCacheAllocator
}

// NewAllocatorContext builds all three allocators in the fixed init order.
func NewAllocatorContext(cfg *SimulationConfig) (*AllocatorContext, error) {
	am, err := NewAddressMap(cfg.DRAM.DramReqSize, cfg.DRAM.DramChannels, cfg.DRAM.DramBanksPerCh, cfg.DRAM.DramPageSize)
	if err != nil {
		return nil, err
	}

	weight := newWeightAllocator(am)
	// A real run populates weights before querying NextAlignedAddr; tests
	// that need a minimal weight region call Weight.Allocate(1) first.
	// Allocate(0) leaves the top at 0, and NextAlignedAddr then panics.

	ctx := &AllocatorContext{AddressMap: am, Weight: weight}
	return ctx, nil
}

// InitActivationAndKVCache finishes initialization once weights have been
// placed, starting the activation buffer at Weight.NextAlignedAddr() and the
// KV-cache region at Activation.NextAlignedAddr().
func (ctx *AllocatorContext) InitActivationAndKVCache(cfg *SimulationConfig) {
	actBase := ctx.Weight.NextAlignedAddr()
	ctx.Activation = newActivationAllocator(ctx.AddressMap, actBase, cfg.Memory.HBMActBufSize)

	kvBase := ctx.Activation.NextAlignedAddr()
	if cfg.RunMode == RunModeNPUOnly {
		ctx.KVCache = newKVCacheAllocatorNPU(cfg, kvBase)
	} else {
		ctx.KVCache = newKVCacheAllocatorPIM(cfg, kvBase)
	}
}
