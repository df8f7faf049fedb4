// Package testutil provides shared test helpers for core's _test.go files:
// a YAML fixture loader, a small golden SimulationConfig, and a tolerant
// float comparison.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/neupims-sim/neupims-sim/core"
)

// SmallConfig returns a small, valid SimulationConfig sized for fast unit
// tests: 2 heads, d_k=4, 4 DRAM channels, 4 banks/channel, a 64 B request
// size and generous SRAM/HBM budgets. Tests that need different geometry
// should copy and mutate the returned value.
func SmallConfig(runMode core.RunMode) *core.SimulationConfig {
	return &core.SimulationConfig{
		RunMode: runMode,
		Model: core.ModelConfig{
			Name: "tiny", NLayer: 2, NHead: 2, NEmbd: 8, BlockSize: 128, VocabSize: 100,
		},
		NTP: 1,
		Capacity: core.CapacityConfig{
			MaxBatchSize: 8, MaxActiveReqs: 8, MaxSeqLen: 256,
		},
		Memory: core.MemoryConfig{
			HBMSize: 1 << 30, HBMActBufSize: 1 << 20,
		},
		CoreArray: core.CoreArrayConfig{
			NumCores: 1, CoreType: core.CoreTypeSystolicWS, CoreFreq: 1000, CoreWidth: 32, CoreHeight: 32,
		},
		SRAM: core.SRAMConfig{
			SRAMWidth: 32, SRAMSize: 1 << 16, SpadSize: 256, AccumSpadSize: 64,
		},
		DRAM: core.DRAMConfig{
			DramType: core.DramTypeNeuPIMs, DramFreq: 1000, DramChannels: 4,
			DramReqSize: 64, DramPageSize: 256, DramBanksPerCh: 4, PimCompCoverage: 4,
		},
		Icnt:          core.IcntConfig{IcntType: core.IcntTypeSimple},
		SchedulerType: "fcfs",
		Precision:     4,
		Features:      core.FeatureFlags{},
		RequestGen:    core.RequestGenConfig{InputSeqLen: 16, Interval: 1, TotalCount: 4},
	}
}

// testdataDir resolves testdata/ relative to this source file (not the
// caller's working directory), so fixtures load correctly regardless of
// which package's tests invoke LoadYAML.
func testdataDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("testutil: runtime.Caller(0) failed")
	}
	return filepath.Join(filepath.Dir(file), "testdata")
}

// LoadYAML decodes the named fixture file under testdata/ into v, failing
// the test on any read or parse error.
func LoadYAML(t *testing.T, name string, v interface{}) {
	t.Helper()
	path := filepath.Join(testdataDir(), name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("testutil: read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		t.Fatalf("testutil: unmarshal %s: %v", path, err)
	}
}

// AssertFloat64Equal fails the test if got and want differ by more than eps.
func AssertFloat64Equal(t *testing.T, got, want, eps float64, msg string) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > eps {
		t.Fatalf("%s: got %v, want %v (eps %v)", msg, got, want, eps)
	}
}
