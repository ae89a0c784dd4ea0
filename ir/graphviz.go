// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package ir

import (
	"fmt"
	"io"
)

// WriteDOT dumps the plan rooted at n to dst as dot(1)-compatible
// text, purely for debugging and test-failure output; it has no
// effect on query semantics.
func WriteDOT(dst io.Writer, n *Node) error {
	if _, err := io.WriteString(dst, "digraph plan {\n"); err != nil {
		return err
	}
	if err := writeDOTNode(dst, n); err != nil {
		return err
	}
	_, err := io.WriteString(dst, "}\n")
	return err
}

func writeDOTNode(dst io.Writer, n *Node) error {
	if n == nil {
		return nil
	}
	if _, err := fmt.Fprintf(dst, "n%d [label=%q];\n", n.ID, nodeLabel(n)); err != nil {
		return err
	}
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		if _, err := fmt.Fprintf(dst, "n%d -> n%d;\n", n.ID, c.ID); err != nil {
			return err
		}
		if err := writeDOTNode(dst, c); err != nil {
			return err
		}
	}
	return nil
}

func nodeLabel(n *Node) string {
	switch n.Kind {
	case Scan:
		return fmt.Sprintf("Scan(%s)", n.Source)
	case Aggregate:
		return fmt.Sprintf("Aggregate(%d aggs)", len(n.Aggs))
	case Join:
		return fmt.Sprintf("Join(%s)", n.JoinKind)
	default:
		return n.Kind.String()
	}
}
