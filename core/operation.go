package core

import (
	"fmt"
	"sync/atomic"
)

var nextOpID uint64

func newOpID() uint32 {
	return uint32(atomic.AddUint64(&nextOpID, 1))
}

// Operation is a dataflow-graph node: input/output tensor edges, a readiness
// predicate, and the Tiles produced by lowering. An operation is executable
// iff every input's Produced is true and no tile has been dispatched yet; it
// is constructed and lowered once by the stage builder, and its tiles are
// consumed exactly once by the external scheduler.
type Operation interface {
	ID() uint32
	Name() string
	OpType() string
	Inputs() []BTensor
	Outputs() []BTensor
	Tiles() []*Tile
	Ready() bool
	MarkDispatched()
	Dispatched() bool
}

// sramAllocator is a local bump allocator within one operation, reserving
// SRAM regions for staging inputs (regular scratchpad) and accumulating
// outputs (a separate accum_spad_size budget).
type sramAllocator struct {
	spadTop       uint64
	spadLimit     uint64
	accumSpadTop  uint64
	accumSpadLimit uint64
}

func newSRAMAllocator(spadSizeKB, accumSpadSizeKB, precision uint32) *sramAllocator {
	return &sramAllocator{
		spadLimit:      uint64(spadSizeKB) * 1024 / uint64(precision),
		accumSpadLimit: uint64(accumSpadSizeKB) * 1024 / uint64(precision),
	}
}

// allocateSRAMAddr reserves size elements in the regular scratchpad (or the
// accumulator scratchpad, if isAccum) and returns (address, size). Panics if
// either budget would overflow — a single request exceeding the scratchpad
// is a mis-sized-hardware fatal assertion caught at lowering time.
func (s *sramAllocator) allocateSRAMAddr(size uint64, isAccum bool) (uint64, uint64) {
	if isAccum {
		if s.accumSpadTop+size > s.accumSpadLimit {
			panic(fmt.Sprintf("operation: accum scratchpad overflow allocating %d (top=%d limit=%d)", size, s.accumSpadTop, s.accumSpadLimit))
		}
		addr := s.accumSpadTop
		s.accumSpadTop += size
		return addr, size
	}
	if s.spadTop+size > s.spadLimit {
		panic(fmt.Sprintf("operation: scratchpad overflow allocating %d (top=%d limit=%d)", size, s.spadTop, s.spadLimit))
	}
	addr := s.spadTop
	s.spadTop += size
	return addr, size
}

// opBase implements the bookkeeping common to every Operation variant.
type opBase struct {
	id         uint32
	name       string
	opType     string
	inputs     []BTensor
	outputs    []BTensor
	tiles      []*Tile
	dispatched bool

	sram *sramAllocator
}

func newOpBase(name, opType string, cfg *SimulationConfig) opBase {
	return opBase{
		id:     newOpID(),
		name:   name,
		opType: opType,
		sram:   newSRAMAllocator(cfg.SRAM.SpadSize, cfg.SRAM.AccumSpadSize, cfg.Precision),
	}
}

func (o *opBase) ID() uint32        { return o.id }
func (o *opBase) Name() string      { return o.name }
func (o *opBase) OpType() string    { return o.opType }
func (o *opBase) Inputs() []BTensor  { return o.inputs }
func (o *opBase) Outputs() []BTensor { return o.outputs }
func (o *opBase) Tiles() []*Tile    { return o.tiles }

// Ready reports whether every input is produced and no tile has been
// dispatched yet.
func (o *opBase) Ready() bool {
	if o.dispatched {
		return false
	}
	for _, in := range o.inputs {
		if !in.Produced() {
			return false
		}
	}
	return true
}

// MarkDispatched records that this operation's tiles have been handed to the
// external scheduler; it becomes ineligible for re-dispatch.
func (o *opBase) MarkDispatched() {
	o.dispatched = true
}

// Dispatched reports whether MarkDispatched has been called.
func (o *opBase) Dispatched() bool {
	return o.dispatched
}

// finishOperation marks every output tensor Produced: Produced becomes true
// exactly once, when src_node completes.
func finishOperation(op Operation) {
	for _, out := range op.Outputs() {
		out.SetProduced()
	}
}
