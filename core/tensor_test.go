package core_test

import (
	"testing"

	"github.com/neupims-sim/neupims-sim/core"
	"github.com/neupims-sim/neupims-sim/core/internal/testutil"
)

func TestLinkProducerConsumer_SetsSrcNodeAndChildNodes(t *testing.T) {
	// GIVEN an FFN operation (inputs in, w_up, w_down; one output tensor)
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	in := core.NewNpuTensor(ctx, "in", []uint32{4, cfg.Model.NEmbd}, core.NpuBufAct, cfg.Precision, true)
	wUp := core.NewNpuTensor(ctx, "w_up", []uint32{cfg.Model.NEmbd, cfg.Model.NEmbd * 4}, core.NpuBufWeight, cfg.Precision, true)
	wDown := core.NewNpuTensor(ctx, "w_down", []uint32{cfg.Model.NEmbd * 4, cfg.Model.NEmbd}, core.NpuBufWeight, cfg.Precision, true)

	// WHEN lowering FFN (which calls LinkProducerConsumer internally)
	op := core.NewFFN(ctx, cfg, "ffn0", in, wUp, wDown)

	// THEN the input tensor records op as a child node
	found := false
	for _, child := range in.ChildNodes() {
		if child.ID() == op.ID() {
			found = true
		}
	}
	if !found {
		t.Error("expected input tensor's ChildNodes() to include the consuming operation")
	}

	// AND the output tensor's SrcNode is op
	out := op.Outputs()[0]
	if out.SrcNode() == nil || out.SrcNode().ID() != op.ID() {
		t.Error("expected output tensor's SrcNode() to be the producing operation")
	}
}

func TestBTensor_Produced_StartsFalseUntilSetProduced(t *testing.T) {
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	tn := core.NewNpuTensor(ctx, "a", []uint32{4, 8}, core.NpuBufAct, cfg.Precision, false)
	if tn.Produced() {
		t.Fatal("expected a fresh unproduced tensor to report Produced() == false")
	}
	tn.SetProduced()
	if !tn.Produced() {
		t.Error("expected Produced() == true after SetProduced()")
	}
}

func TestBTensor_IDsAreUniquePerTensor(t *testing.T) {
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	a := core.NewNpuTensor(ctx, "a", []uint32{4, 8}, core.NpuBufAct, cfg.Precision, false)
	b := core.NewNpuTensor(ctx, "b", []uint32{4, 8}, core.NpuBufAct, cfg.Precision, false)
	if a.ID() == b.ID() {
		t.Error("expected distinct tensors to receive distinct IDs")
	}
}
