package core_test

import (
	"testing"

	"github.com/neupims-sim/neupims-sim/core"
	"github.com/neupims-sim/neupims-sim/core/internal/testutil"
)

func TestNewQKVGen_GrowsEveryRequestsCacheByOneToken(t *testing.T) {
	// GIVEN a hidden-state/weight pair and two requests' K/V caches
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	dk := cfg.DK()
	nh := cfg.HeadsPerRank()
	hidden := core.NewNpuTensor(ctx, "hidden", []uint32{2, cfg.Model.NEmbd}, core.NpuBufAct, cfg.Precision, true)
	weight := core.NewNpuTensor(ctx, "w_qkv", []uint32{cfg.Model.NEmbd, dk}, core.NpuBufWeight, cfg.Precision, true)

	k0 := core.NewPimTensor(ctx.KVCache, cfg, "k0", 0, []uint32{nh, dk, 1}, core.PimKey, false)
	v0 := core.NewPimTensor(ctx.KVCache, cfg, "v0", 0, []uint32{nh, 1, dk}, core.PimValue, false)
	k1 := core.NewPimTensor(ctx.KVCache, cfg, "k1", 1, []uint32{nh, dk, 1}, core.PimKey, false)
	v1 := core.NewPimTensor(ctx.KVCache, cfg, "v1", 1, []uint32{nh, 1, dk}, core.PimValue, false)

	seqBefore0, seqBefore1 := k0.SeqLen(), k1.SeqLen()

	// WHEN lowering QKVGen
	op := core.NewQKVGen(ctx, cfg, "qkv0", hidden, weight, []*core.PimTensor{k0, k1}, []*core.PimTensor{v0, v1})

	// THEN both requests' caches grew by exactly one token
	if k0.SeqLen() != seqBefore0+1 || k1.SeqLen() != seqBefore1+1 {
		t.Errorf("SeqLen after QKVGen = %d/%d, want %d/%d", k0.SeqLen(), k1.SeqLen(), seqBefore0+1, seqBefore1+1)
	}
	// AND exactly one tile was emitted
	if len(op.Tiles()) != 1 {
		t.Fatalf("len(Tiles()) = %d, want 1", len(op.Tiles()))
	}
}

func TestNewQKVGen_MismatchedKVCacheLengths_Panics(t *testing.T) {
	cfg := testutil.SmallConfig(core.RunModeNPUPIM)
	ctx, _ := core.NewAllocatorContext(cfg)
	ctx.Weight.Allocate(1)
	ctx.InitActivationAndKVCache(cfg)

	dk := cfg.DK()
	nh := cfg.HeadsPerRank()
	hidden := core.NewNpuTensor(ctx, "hidden", []uint32{1, cfg.Model.NEmbd}, core.NpuBufAct, cfg.Precision, true)
	weight := core.NewNpuTensor(ctx, "w_qkv", []uint32{cfg.Model.NEmbd, dk}, core.NpuBufWeight, cfg.Precision, true)
	k0 := core.NewPimTensor(ctx.KVCache, cfg, "k0", 0, []uint32{nh, dk, 1}, core.PimKey, false)
	v0 := core.NewPimTensor(ctx.KVCache, cfg, "v0", 0, []uint32{nh, 1, dk}, core.PimValue, false)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on mismatched kCache/vCache lengths")
		}
	}()
	core.NewQKVGen(ctx, cfg, "qkv0", hidden, weight, []*core.PimTensor{k0}, nil)
	_ = v0
}
