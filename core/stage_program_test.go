package core_test

import (
	"testing"

	"github.com/neupims-sim/neupims-sim/core"
	"github.com/neupims-sim/neupims-sim/core/internal/testutil"
)

func TestStageProgram_QKVGenBlock_PanicsWhenDisabled(t *testing.T) {
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	sp := core.NewStageProgram(ctx, cfg)
	sp.EnableQKVGen = false

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when QKVGenBlock is called with EnableQKVGen = false")
		}
	}()
	sp.QKVGenBlock("qkv0", nil, nil, core.NewBatchedRequest(nil), 0)
}

func TestStageProgram_AttendBlock_PanicsWhenSkipPIMStage(t *testing.T) {
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	sp := core.NewStageProgram(ctx, cfg)
	sp.SkipPIMStage = true

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when AttendBlock is called with SkipPIMStage = true")
		}
	}()
	sp.AttendBlock("attn0", nil, nil)
}

func TestStageProgram_ExecutableOperations_OnlyReturnsReadyOps(t *testing.T) {
	// GIVEN an FFN operation whose inputs are all already produced
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	sp := core.NewStageProgram(ctx, cfg)
	in := core.NewNpuTensor(ctx, "in", []uint32{4, cfg.Model.NEmbd}, core.NpuBufAct, cfg.Precision, true)
	wUp := core.NewNpuTensor(ctx, "w_up", []uint32{cfg.Model.NEmbd, cfg.Model.NEmbd * 4}, core.NpuBufWeight, cfg.Precision, true)
	wDown := core.NewNpuTensor(ctx, "w_down", []uint32{cfg.Model.NEmbd * 4, cfg.Model.NEmbd}, core.NpuBufWeight, cfg.Precision, true)

	op := sp.FFNBlock("ffn0", in, wUp, wDown)

	// WHEN listing executable operations
	ready := sp.ExecutableOperations()

	// THEN the operation is returned exactly once, before being finished
	if len(ready) != 1 || ready[0].ID() != op.ID() {
		t.Fatalf("ExecutableOperations() = %v, want [%d]", ready, op.ID())
	}

	// WHEN the operation is finished
	sp.FinishOperation(op)

	// THEN it no longer appears, and AllDispatched reports true
	if got := sp.ExecutableOperations(); len(got) != 0 {
		t.Errorf("ExecutableOperations() after finish = %v, want empty", got)
	}
	if !sp.AllDispatched() {
		t.Error("expected AllDispatched() == true after the only operation finishes")
	}
}

func TestStageProgram_Operations_OrderedByID(t *testing.T) {
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	sp := core.NewStageProgram(ctx, cfg)
	in := core.NewNpuTensor(ctx, "in", []uint32{4, cfg.Model.NEmbd}, core.NpuBufAct, cfg.Precision, true)
	w1 := core.NewNpuTensor(ctx, "w1", []uint32{cfg.Model.NEmbd, cfg.Model.NEmbd}, core.NpuBufWeight, cfg.Precision, true)

	op1 := sp.ProjectionBlock("proj0", in, w1, nil)
	op2 := sp.ProjectionBlock("proj1", in, w1, nil)

	ops := sp.Operations()
	if len(ops) != 2 {
		t.Fatalf("len(Operations()) = %d, want 2", len(ops))
	}
	if ops[0].ID() >= ops[1].ID() {
		t.Errorf("Operations() not ordered by ID: %d, %d", ops[0].ID(), ops[1].ID())
	}
	if ops[0].ID() != op1.ID() || ops[1].ID() != op2.ID() {
		t.Error("Operations() order does not match construction order")
	}
}
