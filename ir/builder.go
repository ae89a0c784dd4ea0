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
	"sync/atomic"
	"time"
)

// Builder is a factory producing Nodes, each stamped with a fresh id
// from an atomic counter starting at 1. The counter is the only
// shared-mutable state in the query core: Builder is safe for
// concurrent id generation from multiple goroutines, but the Nodes it
// produces are single-owner and not otherwise thread-safe.
type Builder struct {
	next uint64
}

// NewBuilder returns a Builder whose first node receives id 1.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) id() uint64 {
	return atomic.AddUint64(&b.next, 1)
}

func (b *Builder) ScanNode(source string) *Node {
	return &Node{Kind: Scan, ID: b.id(), Source: source}
}

func (b *Builder) FilterNode(predicate FilterExpr) *Node {
	return &Node{Kind: Filter, ID: b.id(), Predicate: predicate}
}

func (b *Builder) ProjectNode(columns []ColumnRef) *Node {
	return &Node{Kind: Project, ID: b.id(), Columns: columns}
}

func (b *Builder) DistinctNode() *Node {
	return &Node{Kind: Distinct, ID: b.id()}
}

func (b *Builder) OrderNode(keys []OrderKey) *Node {
	return &Node{Kind: Order, ID: b.id(), OrderKeys: keys}
}

func (b *Builder) AggregateNode(groupBy []ColumnRef, aggs []AggSpec) *Node {
	return &Node{Kind: Aggregate, ID: b.id(), GroupBy: groupBy, Aggs: aggs}
}

func (b *Builder) UpdateNode(fields []FieldSpec, groupBy []ColumnRef) *Node {
	return &Node{Kind: Update, ID: b.id(), Fields: fields, GroupBy: groupBy}
}

// UpdateNodeComputedBy builds a grouped Update node whose group-by
// keys are computed expressions rather than plain column references
//.
func (b *Builder) UpdateNodeComputedBy(fields []FieldSpec, groupByExprs []Expr) *Node {
	return &Node{Kind: Update, ID: b.id(), Fields: fields, GroupByExprs: groupByExprs}
}

func (b *Builder) WindowNode(d time.Duration) *Node {
	return &Node{Kind: Window, ID: b.id(), Duration: d}
}

func (b *Builder) AsTimeframeNode(column string) *Node {
	return &Node{Kind: AsTimeframe, ID: b.id(), TimeColumn: column}
}

func (b *Builder) JoinNode(kind JoinKind, keys []string) *Node {
	return &Node{Kind: Join, ID: b.id(), JoinKind: kind, JoinKeys: keys}
}

func (b *Builder) ExternCallNode(callee string, args []Expr) *Node {
	return &Node{Kind: ExternCall, ID: b.id(), Callee: callee, Args: args}
}
