package core

import "sort"

// StageProgram builds one inference step's dataflow graph — QKV generation,
// attention, projection and FFN operations — threaded through a shared
// AllocatorContext, and tracks which operations are ready for dispatch.
type StageProgram struct {
	cfg *SimulationConfig
	ctx *AllocatorContext

	ops     map[uint32]Operation
	tensors map[string]BTensor

	// EnableQKVGen, EnableProjFFN and SkipPIMStage mirror the reference
	// implementation's enable_qkv_gen / enable_proj_ffns / skip_pim_stage
	// flags: a stage can be compiled in isolation for testing or profiling
	// by disabling the blocks it doesn't need.
	EnableQKVGen  bool
	EnableProjFFN bool
	SkipPIMStage  bool
}

// NewStageProgram constructs an empty program with all blocks enabled.
func NewStageProgram(ctx *AllocatorContext, cfg *SimulationConfig) *StageProgram {
	return &StageProgram{
		cfg:           cfg,
		ctx:           ctx,
		ops:           make(map[uint32]Operation),
		tensors:       make(map[string]BTensor),
		EnableQKVGen:  true,
		EnableProjFFN: true,
	}
}

func (sp *StageProgram) register(op Operation) {
	sp.ops[op.ID()] = op
}

// QKVGenBlock lowers the QKV projection for one layer, pulling each
// request's K/V cache tensors out of batch.
func (sp *StageProgram) QKVGenBlock(name string, hidden, weight *NpuTensor, batch *BatchedRequest, layer uint32) *QKVGen {
	if !sp.EnableQKVGen {
		panic("StageProgram: QKVGenBlock called with EnableQKVGen = false")
	}
	kCache := make([]*PimTensor, batch.NumReqs())
	vCache := make([]*PimTensor, batch.NumReqs())
	for i := 0; i < batch.NumReqs(); i++ {
		k, v := batch.Cache(layer, i)
		kCache[i] = k
		vCache[i] = v
	}
	op := NewQKVGen(sp.ctx, sp.cfg, name, hidden, weight, kCache, vCache)
	sp.register(op)
	return op
}

// AttendBlock lowers the NeuPIMS fused-attention kernel for one batch.
func (sp *StageProgram) AttendBlock(name string, logits []*NpuTensor, values []*PimTensor) *NeuPIMSAttend {
	if sp.SkipPIMStage {
		panic("StageProgram: AttendBlock called with SkipPIMStage = true")
	}
	inputs := make([]BTensor, 0, len(logits)+len(values))
	for _, l := range logits {
		inputs = append(inputs, l)
	}
	for _, v := range values {
		inputs = append(inputs, v)
	}
	op := NewNeuPIMSAttend(sp.ctx, sp.cfg, name, inputs)
	sp.register(op)
	return op
}

// ProjectionBlock lowers the output projection, with an optional fused
// residual operand.
func (sp *StageProgram) ProjectionBlock(name string, ctxIn, weight, residual *NpuTensor) *Projection {
	if !sp.EnableProjFFN {
		panic("StageProgram: ProjectionBlock called with EnableProjFFN = false")
	}
	op := NewProjection(sp.ctx, sp.cfg, name, ctxIn, weight, residual)
	sp.register(op)
	return op
}

// FFNBlock lowers the feed-forward block.
func (sp *StageProgram) FFNBlock(name string, in, wUp, wDown *NpuTensor) *FFN {
	if !sp.EnableProjFFN {
		panic("StageProgram: FFNBlock called with EnableProjFFN = false")
	}
	op := NewFFN(sp.ctx, sp.cfg, name, in, wUp, wDown)
	sp.register(op)
	return op
}

// ExecutableOperations returns every registered operation whose inputs are
// all produced and which has not yet been dispatched, ordered by operation
// ID for determinism. The external scheduler consumes this list each step.
func (sp *StageProgram) ExecutableOperations() []Operation {
	var out []Operation
	for _, op := range sp.ops {
		if op.Ready() {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// FinishOperation marks op's outputs produced and the operation dispatched.
// Produced transitions false-to-true exactly once per tensor.
func (sp *StageProgram) FinishOperation(op Operation) {
	finishOperation(op)
	op.MarkDispatched()
}

// AllDispatched reports whether every registered operation has been
// dispatched — the stage program's completion signal.
func (sp *StageProgram) AllDispatched() bool {
	for _, op := range sp.ops {
		if !op.Dispatched() {
			return false
		}
	}
	return true
}

// Operations returns every registered operation, ordered by ID.
func (sp *StageProgram) Operations() []Operation {
	out := make([]Operation, 0, len(sp.ops))
	for _, op := range sp.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
