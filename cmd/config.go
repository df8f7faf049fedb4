package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neupims-sim/neupims-sim/core"
)

// ConfigPaths names the five YAML documents the CLI's --config, --mem_config,
// --cli_config, --model_config and --sys_config flags point at.
type ConfigPaths struct {
	Config      string
	MemConfig   string
	CliConfig   string
	ModelConfig string
	SysConfig   string
}

// runDoc is the general run document (--config): run mode, scheduler choice
// and stage-builder feature flags.
type runDoc struct {
	RunMode       core.RunMode      `yaml:"run_mode"`
	SchedulerType string            `yaml:"scheduler_type"`
	Features      core.FeatureFlags `yaml:"features"`
}

// memDoc is the memory/DRAM document (--mem_config).
type memDoc struct {
	Memory   core.MemoryConfig   `yaml:"memory"`
	DRAM     core.DRAMConfig     `yaml:"dram"`
	SRAM     core.SRAMConfig     `yaml:"sram"`
	Capacity core.CapacityConfig `yaml:"capacity"`
}

// cliDoc is the request-generator document (--cli_config).
type cliDoc struct {
	RequestGen core.RequestGenConfig `yaml:"request_gen"`
}

// modelDoc is the transformer topology document (--model_config).
type modelDoc struct {
	Model     core.ModelConfig `yaml:"model"`
	NTP       uint32           `yaml:"n_tp"`
	Precision uint32           `yaml:"precision"`
}

// sysDoc is the hardware/interconnect document (--sys_config).
type sysDoc struct {
	CoreArray     core.CoreArrayConfig     `yaml:"core_array"`
	VectorLatency core.VectorLatencyConfig `yaml:"vector_latency"`
	Icnt          core.IcntConfig          `yaml:"icnt"`
}

// LoadSimulationConfig reads and merges the five YAML documents named by
// paths into a single core.SimulationConfig, then validates it. A read or
// parse error names the offending file; a validation error of the merged
// config names the offending field.
func LoadSimulationConfig(paths ConfigPaths) (*core.SimulationConfig, error) {
	var run runDoc
	if err := loadYAMLFile(paths.Config, &run); err != nil {
		return nil, fmt.Errorf("config %s: %w", paths.Config, err)
	}
	var mem memDoc
	if err := loadYAMLFile(paths.MemConfig, &mem); err != nil {
		return nil, fmt.Errorf("mem_config %s: %w", paths.MemConfig, err)
	}
	var cli cliDoc
	if err := loadYAMLFile(paths.CliConfig, &cli); err != nil {
		return nil, fmt.Errorf("cli_config %s: %w", paths.CliConfig, err)
	}
	var model modelDoc
	if err := loadYAMLFile(paths.ModelConfig, &model); err != nil {
		return nil, fmt.Errorf("model_config %s: %w", paths.ModelConfig, err)
	}
	var sys sysDoc
	if err := loadYAMLFile(paths.SysConfig, &sys); err != nil {
		return nil, fmt.Errorf("sys_config %s: %w", paths.SysConfig, err)
	}

	cfg := &core.SimulationConfig{
		RunMode:       run.RunMode,
		SchedulerType: run.SchedulerType,
		Features:      run.Features,
		Memory:        mem.Memory,
		DRAM:          mem.DRAM,
		SRAM:          mem.SRAM,
		Capacity:      mem.Capacity,
		RequestGen:    cli.RequestGen,
		Model:         model.Model,
		NTP:           model.NTP,
		Precision:     model.Precision,
		CoreArray:     sys.CoreArray,
		VectorLatency: sys.VectorLatency,
		Icnt:          sys.Icnt,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadYAMLFile(path string, v interface{}) error {
	if path == "" {
		return fmt.Errorf("no path given")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
