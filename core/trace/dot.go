// Package trace renders and summarizes a lowered operation graph: Graphviz
// export for visual debugging, a per-step operation log, and aggregated
// tile-size statistics. None of it is consumed by core itself — these are
// read-only views over a StageProgram's finished operations.
package trace

import (
	"fmt"

	"github.com/neupims-sim/neupims-sim/core"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// opNode adapts a core.Operation to gonum's graph.Node and DOT encoding
// interfaces.
type opNode struct {
	op core.Operation
}

func (n opNode) ID() int64 { return int64(n.op.ID()) }

func (n opNode) DOTID() string {
	return fmt.Sprintf("op%d_%s", n.op.ID(), n.op.OpType())
}

func (n opNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "label", Value: fmt.Sprintf("%s (%s)", n.op.Name(), n.op.OpType())},
	}
}

// BuildGraph constructs a directed graph over ops, with an edge from
// producer to consumer for every tensor whose SrcNode is itself one of ops.
func BuildGraph(ops []core.Operation) *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	nodes := make(map[uint32]opNode, len(ops))
	for _, op := range ops {
		n := opNode{op: op}
		nodes[op.ID()] = n
		g.AddNode(n)
	}
	for _, op := range ops {
		dst, ok := nodes[op.ID()]
		if !ok {
			continue
		}
		for _, in := range op.Inputs() {
			src := in.SrcNode()
			if src == nil {
				continue
			}
			srcNode, ok := nodes[src.ID()]
			if !ok || g.HasEdgeFromTo(srcNode.ID(), dst.ID()) {
				continue
			}
			g.SetEdge(simple.Edge{F: srcNode, T: dst})
		}
	}
	return g
}

// ExportDOT renders the operation DAG of ops as Graphviz DOT text under the
// given graph name.
func ExportDOT(ops []core.Operation, name string) (string, error) {
	g := BuildGraph(ops)
	b, err := dot.Marshal(g, name, "", "  ")
	if err != nil {
		return "", fmt.Errorf("trace: marshal dot: %w", err)
	}
	return string(b), nil
}
