// Package core implements the NeuPIMs-class heterogeneous NPU+PIM
// accelerator simulator: dataflow graph construction, tile lowering,
// physical-address allocation and the PIM-aware KV-cache growth model.
//
// The package performs no arithmetic on tensor contents — it models shapes,
// addresses and instruction streams only. Cycle costing, interconnect
// simulation and the top-level scheduler loop are external collaborators.
package core

import "fmt"

// RunMode selects the KV-cache layout and operation variants.
type RunMode int

const (
	RunModeNPUOnly RunMode = iota
	RunModeNPUPIM
)

func (m RunMode) String() string {
	switch m {
	case RunModeNPUOnly:
		return "NPU_ONLY"
	case RunModeNPUPIM:
		return "NPU_PIM"
	default:
		return "UNKNOWN"
	}
}

// UnmarshalYAML accepts either the string name ("NPU_ONLY", "NPU_PIM") or a
// raw integer, so config YAML can use the human-readable form.
func (m *RunMode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var i int
	if err := unmarshal(&i); err == nil {
		*m = RunMode(i)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "NPU_ONLY":
		*m = RunModeNPUOnly
	case "NPU_PIM":
		*m = RunModeNPUPIM
	default:
		return fmt.Errorf("config: unknown run_mode %q", s)
	}
	return nil
}

// CoreType selects the systolic array dataflow.
type CoreType int

const (
	CoreTypeSystolicOS CoreType = iota
	CoreTypeSystolicWS
)

// DramType selects the PIM instruction pattern used by NeuPIMSAttend.
type DramType int

const (
	DramTypePlain DramType = iota
	DramTypeNewton
	DramTypeNeuPIMs
)

func (d DramType) String() string {
	switch d {
	case DramTypePlain:
		return "DRAM"
	case DramTypeNewton:
		return "NEWTON"
	case DramTypeNeuPIMs:
		return "NEUPIMS"
	default:
		return "UNKNOWN"
	}
}

// UnmarshalYAML accepts either the string name ("DRAM", "NEWTON", "NEUPIMS")
// or a raw integer.
func (d *DramType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var i int
	if err := unmarshal(&i); err == nil {
		*d = DramType(i)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "DRAM":
		*d = DramTypePlain
	case "NEWTON":
		*d = DramTypeNewton
	case "NEUPIMS":
		*d = DramTypeNeuPIMs
	default:
		return fmt.Errorf("config: unknown dram_type %q", s)
	}
	return nil
}

// IcntType selects the interconnect model used by the external simulator.
// The core never schedules interconnect traffic itself; this field is
// carried only so SimulationConfig round-trips the full external contract.
type IcntType int

const (
	IcntTypeSimple IcntType = iota
	IcntTypeBookSim2
)

// ModelConfig groups transformer topology parameters used by the stage
// builder. Loaded from the --model_config YAML document.
type ModelConfig struct {
	Name      string `yaml:"name"`
	NLayer    uint32 `yaml:"n_layer"`
	NHead     uint32 `yaml:"n_head"`
	NEmbd     uint32 `yaml:"n_embd"`
	BlockSize uint32 `yaml:"block_size"`
	VocabSize uint32 `yaml:"vocab_size"`
}

// CapacityConfig groups the bounds used for KV pool and batch sizing.
// Loaded from the --mem_config YAML document.
type CapacityConfig struct {
	MaxBatchSize  uint32 `yaml:"max_batch_size"`
	MaxActiveReqs uint32 `yaml:"max_active_reqs"`
	MaxSeqLen     uint32 `yaml:"max_seq_len"`
}

// MemoryConfig groups HBM capacity parameters. Loaded from --mem_config.
type MemoryConfig struct {
	HBMSize       uint64 `yaml:"hbm_size"`
	HBMActBufSize uint64 `yaml:"hbm_act_buf_size"`
}

// CoreArrayConfig groups systolic-array shape and frequency. Loaded from
// --sys_config.
type CoreArrayConfig struct {
	NumCores   uint32   `yaml:"num_cores"`
	CoreType   CoreType `yaml:"core_type"`
	CoreFreq   uint32   `yaml:"core_freq"`
	CoreWidth  uint32   `yaml:"core_width"`
	CoreHeight uint32   `yaml:"core_height"`
}

// VectorLatencyConfig groups per-opcode vector-unit latencies, used only by
// the external cost model when it costs tiles; the core never sums them.
// Loaded from --sys_config.
type VectorLatencyConfig struct {
	VectorCoreCount   uint32 `yaml:"vector_core_count"`
	VectorCoreWidth   uint32 `yaml:"vector_core_width"`
	LayerNormLatency  uint64 `yaml:"layernorm_latency"`
	SoftmaxLatency    uint64 `yaml:"softmax_latency"`
	AddLatency        uint64 `yaml:"add_latency"`
	MulLatency        uint64 `yaml:"mul_latency"`
	ExpLatency        uint64 `yaml:"exp_latency"`
	GeluLatency       uint64 `yaml:"gelu_latency"`
	AddTreeLatency    uint64 `yaml:"add_tree_latency"`
	ScalarSqrtLatency uint64 `yaml:"scalar_sqrt_latency"`
	ScalarAddLatency  uint64 `yaml:"scalar_add_latency"`
	ScalarMulLatency  uint64 `yaml:"scalar_mul_latency"`
}

// SRAMConfig groups on-chip scratchpad budgets enforced during lowering.
// Loaded from --mem_config.
type SRAMConfig struct {
	SRAMWidth     uint32 `yaml:"sram_width"`
	SRAMSize      uint32 `yaml:"sram_size"`
	SpadSize      uint32 `yaml:"spad_size"`       // KB
	AccumSpadSize uint32 `yaml:"accum_spad_size"` // KB
}

// DRAMConfig groups DRAM/HBM memory geometry. Loaded from --mem_config.
type DRAMConfig struct {
	DramType        DramType `yaml:"dram_type"`
	DramFreq        uint32   `yaml:"dram_freq"`
	DramChannels    uint64   `yaml:"dram_channels"`
	DramReqSize     uint64   `yaml:"dram_req_size"`
	DramPageSize    uint64   `yaml:"dram_page_size"`
	DramBanksPerCh  uint64   `yaml:"dram_banks_per_ch"`
	PimCompCoverage uint32   `yaml:"pim_comp_coverage"`
}

// IcntConfig groups interconnect model parameters (external collaborator).
// Loaded from --sys_config.
type IcntConfig struct {
	IcntType       IcntType `yaml:"icnt_type"`
	IcntFreq       uint32   `yaml:"icnt_freq"`
	IcntLatency    uint32   `yaml:"icnt_latency"`
	IcntConfigPath string   `yaml:"icnt_config_path"`
}

// FeatureFlags groups the stage-builder feature toggles (sub-batching,
// channel load balancing, kernel fusion). Loaded from --config (the
// general/run document).
type FeatureFlags struct {
	SubBatchMode    bool `yaml:"sub_batch_mode"`
	ChLoadBalancing bool `yaml:"ch_load_balancing"`
	KernelFusion    bool `yaml:"kernel_fusion"`
}

// RequestGenConfig groups workload generator parameters (external
// collaborator). Loaded from --cli_config.
type RequestGenConfig struct {
	InputSeqLen uint32 `yaml:"input_seq_len"`
	Interval    uint32 `yaml:"interval"`
	TotalCount  uint32 `yaml:"total_count"`
	DatasetPath string `yaml:"dataset_path"`
}

// SimulationConfig is the single structure the core consumes. It is
// assembled by cmd's config loader from five YAML documents; the core
// package itself never reads a file.
type SimulationConfig struct {
	RunMode       RunMode
	Model         ModelConfig
	NTP           uint32
	Capacity      CapacityConfig
	Memory        MemoryConfig
	CoreArray     CoreArrayConfig
	VectorLatency VectorLatencyConfig
	SRAM          SRAMConfig
	DRAM          DRAMConfig
	Icnt          IcntConfig
	SchedulerType string
	Precision     uint32
	Features      FeatureFlags
	RequestGen    RequestGenConfig
}

// Validate checks the invariants the core requires before any allocator or
// operation can be constructed safely. It reports configuration errors; it
// never panics — capacity violations discovered only at lowering time are
// handled separately (see allocator.go, attention.go).
func (c *SimulationConfig) Validate() error {
	if c.Precision == 0 {
		return fmt.Errorf("config: precision must be > 0")
	}
	if !isPowerOfTwo(c.DRAM.DramChannels) {
		return fmt.Errorf("config: dram_channels must be a power of two, got %d", c.DRAM.DramChannels)
	}
	if !isPowerOfTwo(c.DRAM.DramBanksPerCh) {
		return fmt.Errorf("config: dram_banks_per_ch must be a power of two, got %d", c.DRAM.DramBanksPerCh)
	}
	if c.DRAM.DramReqSize == 0 {
		return fmt.Errorf("config: dram_req_size must be > 0")
	}
	if c.NTP == 0 {
		return fmt.Errorf("config: n_tp must be > 0")
	}
	if c.Model.NHead%c.NTP != 0 {
		return fmt.Errorf("config: model_n_head (%d) must be divisible by n_tp (%d)", c.Model.NHead, c.NTP)
	}
	if c.Model.NEmbd%c.Model.NHead != 0 {
		return fmt.Errorf("config: model_n_embd (%d) must be divisible by model_n_head (%d)", c.Model.NEmbd, c.Model.NHead)
	}
	switch c.RunMode {
	case RunModeNPUOnly, RunModeNPUPIM:
	default:
		return fmt.Errorf("config: unknown run_mode %d", c.RunMode)
	}
	return nil
}

// HeadsPerRank returns n_head / n_tp, the number of attention heads owned by
// one tensor-parallel rank.
func (c *SimulationConfig) HeadsPerRank() uint32 {
	return c.Model.NHead / c.NTP
}

// DK returns the per-head embedding dimension.
func (c *SimulationConfig) DK() uint32 {
	return c.Model.NEmbd / c.Model.NHead
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
