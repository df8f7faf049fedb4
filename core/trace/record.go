package trace

import "github.com/neupims-sim/neupims-sim/core"

// OpRecord is one row of the per-step operation log: enough to reconstruct
// how much work an operation's lowering produced without re-walking its
// tiles.
type OpRecord struct {
	OperationID     uint32
	OpType          string
	NumTiles        int
	NumInstructions int
}

// RecordOperations builds one OpRecord per operation, in the given order.
func RecordOperations(ops []core.Operation) []OpRecord {
	out := make([]OpRecord, 0, len(ops))
	for _, op := range ops {
		instrCount := 0
		for _, t := range op.Tiles() {
			instrCount += len(t.Instructions)
		}
		out = append(out, OpRecord{
			OperationID:     op.ID(),
			OpType:          op.OpType(),
			NumTiles:        len(op.Tiles()),
			NumInstructions: instrCount,
		})
	}
	return out
}
