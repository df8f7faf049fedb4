package trace_test

import (
	"strings"
	"testing"

	"github.com/neupims-sim/neupims-sim/core/trace"
)

func TestBuildGraph_AddsEdgeFromProducerToConsumer(t *testing.T) {
	// GIVEN two chained operations (ffn0 produces the tensor proj0 consumes)
	_, _, ops := buildTwoOpGraph(t)

	// WHEN building the graph
	g := trace.BuildGraph(ops)

	// THEN it has one node per operation and at least one edge between them
	if got := g.Nodes().Len(); got != len(ops) {
		t.Errorf("Nodes().Len() = %d, want %d", got, len(ops))
	}
	if got := g.Edges().Len(); got < 1 {
		t.Errorf("Edges().Len() = %d, want >= 1", got)
	}
}

func TestExportDOT_ProducesValidDigraphText(t *testing.T) {
	// GIVEN a lowered two-operation graph
	_, _, ops := buildTwoOpGraph(t)

	// WHEN exporting to DOT
	text, err := trace.ExportDOT(ops, "teststep")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN the output names the graph and contains both operation types
	if !strings.Contains(text, "teststep") {
		t.Errorf("expected DOT output to reference graph name %q", "teststep")
	}
	if !strings.Contains(text, "FFN") || !strings.Contains(text, "Projection") {
		t.Error("expected DOT output to label both FFN and Projection nodes")
	}
}
