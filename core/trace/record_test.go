package trace_test

import (
	"testing"

	"github.com/neupims-sim/neupims-sim/core"
	"github.com/neupims-sim/neupims-sim/core/internal/testutil"
	"github.com/neupims-sim/neupims-sim/core/trace"
)

func buildTwoOpGraph(t *testing.T) (*core.AllocatorContext, *core.SimulationConfig, []core.Operation) {
	t.Helper()
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, err := core.NewAllocatorContext(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	hidden := core.NewNpuTensor(ctx, "hidden", []uint32{4, cfg.Model.NEmbd}, core.NpuBufAct, cfg.Precision, true)
	weight := core.NewNpuTensor(ctx, "w_up", []uint32{cfg.Model.NEmbd, cfg.Model.NEmbd * 4}, core.NpuBufWeight, cfg.Precision, true)
	wDown := core.NewNpuTensor(ctx, "w_down", []uint32{cfg.Model.NEmbd * 4, cfg.Model.NEmbd}, core.NpuBufWeight, cfg.Precision, true)

	ffn := core.NewFFN(ctx, cfg, "ffn0", hidden, weight, wDown)

	projWeight := core.NewNpuTensor(ctx, "w_proj", []uint32{cfg.Model.NEmbd, cfg.Model.NEmbd}, core.NpuBufWeight, cfg.Precision, true)
	proj := core.NewProjection(ctx, cfg, "proj0", ffn.Outputs()[0].(*core.NpuTensor), projWeight, nil)

	return ctx, cfg, []core.Operation{ffn, proj}
}

func TestRecordOperations_CountsTilesAndInstructions(t *testing.T) {
	// GIVEN two chained operations
	_, _, ops := buildTwoOpGraph(t)

	// WHEN recording them
	records := trace.RecordOperations(ops)

	// THEN each record's tile/instruction counts match the operation's own tiles
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	for i, rec := range records {
		if rec.NumTiles != len(ops[i].Tiles()) {
			t.Errorf("record %d NumTiles = %d, want %d", i, rec.NumTiles, len(ops[i].Tiles()))
		}
		if rec.OperationID != ops[i].ID() {
			t.Errorf("record %d OperationID = %d, want %d", i, rec.OperationID, ops[i].ID())
		}
	}
}
