package game

import (
	"bytes"
	"fmt"
)

// MarshalDOT marshals g into the DOT language defined by Graphviz. Vertices
// owned by Player0 are drawn as diamonds and the rest as boxes; the start
// vertex is drawn with a double border.
func MarshalDOT(g *Game) []byte {
	var buf bytes.Buffer

	fmt.Fprintln(&buf, "digraph {")
	fmt.Fprintf(&buf, "\trankdir=%q\n", "LR")

	fmt.Fprintf(&buf, "\n\t// Vertices:\n")
	g.EachVertex(func(v VertexID) {
		shape := "box"
		if g.Owned(v) {
			shape = "diamond"
		}
		peripheries := 1
		if v == g.Start() {
			peripheries = 2
		}
		fmt.Fprintf(&buf, "\t%d [label=%q shape=%s peripheries=%d]\n", v, fmt.Sprintf("%d:%d", v, g.Priority(v)), shape, peripheries)
	})

	fmt.Fprintf(&buf, "\n\t// Edges:\n")
	g.EachVertex(func(v VertexID) {
		for _, to := range g.Out(v) {
			fmt.Fprintf(&buf, "\t%d -> %d\n", v, to)
		}
	})

	fmt.Fprintln(&buf, "}")
	return buf.Bytes()
}
