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

package runtimeops

import (
	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
)

// Join runs the equijoin (inner, left) or as-of join named by kind on
// the key columns in keys. left and right are
// borrowed; the result is a fresh table.
func Join(left, right *column.Table, kind ir.JoinKind, keys []string) (*column.Table, error) {
	switch kind {
	case ir.InnerJoin:
		return equiJoin(left, right, keys, false)
	case ir.LeftJoin:
		return equiJoin(left, right, keys, true)
	case ir.AsofJoin:
		return asofJoin(left, right, keys)
	default:
		return nil, ibexerr.Wrap(ibexerr.ErrLowering, "unknown join kind %v", kind)
	}
}

// outputPlan describes which right columns are kept and how they are
// named in the joined output: join keys are emitted once, from the
// left side; remaining right columns whose name collides with a left
// column are suffixed "_right".
type outputPlan struct {
	rightCols  []int    // positions in right to copy, excluding join keys
	rightNames []string // output names for rightCols, same length
	isKey      map[string]bool
}

func planOutput(left, right *column.Table, keys []string) *outputPlan {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	leftNames := make(map[string]bool, left.NumColumns())
	for _, n := range left.Names() {
		leftNames[n] = true
	}
	p := &outputPlan{isKey: isKey}
	for i := 0; i < right.NumColumns(); i++ {
		name := right.NameAt(i)
		if isKey[name] {
			continue
		}
		p.rightCols = append(p.rightCols, i)
		if leftNames[name] {
			p.rightNames = append(p.rightNames, name+"_right")
		} else {
			p.rightNames = append(p.rightNames, name)
		}
	}
	return p
}

func newOutputTable(left, right *column.Table, plan *outputPlan) (*column.Table, []*column.Column, []*column.Column) {
	out := column.New()
	leftDst := make([]*column.Column, left.NumColumns())
	for i := 0; i < left.NumColumns(); i++ {
		leftDst[i] = left.ColumnAt(i).New()
		out.AddColumn(left.NameAt(i), leftDst[i])
	}
	rightDst := make([]*column.Column, len(plan.rightCols))
	for i, pos := range plan.rightCols {
		rightDst[i] = right.ColumnAt(pos).New()
		out.AddColumn(plan.rightNames[i], rightDst[i])
	}
	if left.IsTimeFrame() {
		_ = out.SetTimeIndex(left.TimeIndex())
	}
	return out, leftDst, rightDst
}

func appendLeftRow(leftDst []*column.Column, left *column.Table, row int) {
	for i := range leftDst {
		leftDst[i].Append(left.ColumnAt(i), row)
	}
}

func appendRightRow(rightDst []*column.Column, right *column.Table, plan *outputPlan, row int) {
	for i, pos := range plan.rightCols {
		rightDst[i].Append(right.ColumnAt(pos), row)
	}
}

func appendRightZero(rightDst []*column.Column, right *column.Table, plan *outputPlan) {
	for i, pos := range plan.rightCols {
		appendLiteral(rightDst[i], zeroLiteral(right.ColumnAt(pos).Kind()))
	}
}

func zeroLiteral(k column.Kind) ir.Literal {
	switch k {
	case column.Int64:
		return ir.IntLiteral(0)
	case column.Float64:
		return ir.FloatLiteral(0)
	case column.Date:
		return ir.DateLiteral(0)
	case column.Timestamp:
		return ir.TimestampLiteral(0)
	default:
		return ir.StringLiteral("")
	}
}

// crossKeyHash and crossKeysEqual compare rows across two possibly
// different tables by a shared list of key column names.
func crossKeyHash(t *column.Table, keys []string, row int) (uint64, error) {
	refs := make([]ir.ColumnRef, len(keys))
	for i, k := range keys {
		refs[i] = ir.ColumnRef{Name: k}
	}
	return compositeKeyHash(t, refs, row)
}

func crossKeysEqual(lt, rt *column.Table, keys []string, lrow, rrow int) (bool, error) {
	for _, k := range keys {
		lc, err := lt.MustFind(k)
		if err != nil {
			return false, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
		}
		rc, err := rt.MustFind(k)
		if err != nil {
			return false, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
		}
		if lc.IsValid(lrow) != rc.IsValid(rrow) {
			return false, nil
		}
		if !lc.IsValid(lrow) {
			continue
		}
		eq, err := compareValues(ir.Eq, literalFromColumn(lc, lrow), literalFromColumn(rc, rrow))
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

// equiJoin implements inner and left equijoin: every matching (left,right) pair produces one
// output row; a left join additionally emits every unmatched left row
// once, with right columns zero-filled.
func equiJoin(left, right *column.Table, keys []string, keepUnmatched bool) (*column.Table, error) {
	for _, k := range keys {
		if _, err := left.MustFind(k); err != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
		}
		if _, err := right.MustFind(k); err != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
		}
	}
	plan := planOutput(left, right, keys)

	buckets := make(map[uint64][]int, right.Rows())
	for row := 0; row < right.Rows(); row++ {
		h, err := crossKeyHash(right, keys, row)
		if err != nil {
			return nil, err
		}
		buckets[h] = append(buckets[h], row)
	}

	out, leftDst, rightDst := newOutputTable(left, right, plan)
	for lrow := 0; lrow < left.Rows(); lrow++ {
		h, err := crossKeyHash(left, keys, lrow)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, rrow := range buckets[h] {
			eq, err := crossKeysEqual(left, right, keys, lrow, rrow)
			if err != nil {
				return nil, err
			}
			if !eq {
				continue
			}
			matched = true
			appendLeftRow(leftDst, left, lrow)
			appendRightRow(rightDst, right, plan, rrow)
		}
		if !matched && keepUnmatched {
			appendLeftRow(leftDst, left, lrow)
			appendRightZero(rightDst, right, plan)
		}
	}
	return out, nil
}

// asofJoin implements the as-of join: keys[0] must be the shared time-index column on both tables;
// keys[1:] are additional equality keys. For each left row at time t,
// it selects the right row with the maximum right-time <= t among
// rows sharing the equality keys, breaking ties by the last such row
// in the right table's current order; with no match it zero-fills as
// in a left join.
func asofJoin(left, right *column.Table, keys []string) (*column.Table, error) {
	if len(keys) == 0 {
		return nil, ibexerr.Wrap(ibexerr.ErrJoin, "asof join requires at least a time-index key")
	}
	if !left.IsTimeFrame() || !right.IsTimeFrame() {
		return nil, ibexerr.Wrap(ibexerr.ErrJoin, "asof join requires both inputs to carry a time index")
	}
	if keys[0] != left.TimeIndex() || keys[0] != right.TimeIndex() {
		return nil, ibexerr.Wrap(ibexerr.ErrJoin, "asof join's on-list must name the time index first")
	}
	eqKeys := keys[1:]
	timeCol := keys[0]

	plan := planOutput(left, right, keys)
	out, leftDst, rightDst := newOutputTable(left, right, plan)

	ltCol, err := left.MustFind(timeCol)
	if err != nil {
		return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
	}
	rtCol, err := right.MustFind(timeCol)
	if err != nil {
		return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
	}

	for lrow := 0; lrow < left.Rows(); lrow++ {
		lt := ltCol.TimestampAt(lrow)
		best := -1
		var bestT int64
		for rrow := 0; rrow < right.Rows(); rrow++ {
			rt := rtCol.TimestampAt(rrow)
			if int64(rt) > int64(lt) {
				continue
			}
			if len(eqKeys) > 0 {
				eq, err := crossKeysEqual(left, right, eqKeys, lrow, rrow)
				if err != nil {
					return nil, err
				}
				if !eq {
					continue
				}
			}
			if best < 0 || int64(rt) >= bestT {
				best = rrow
				bestT = int64(rt)
			}
		}
		appendLeftRow(leftDst, left, lrow)
		if best >= 0 {
			appendRightRow(rightDst, right, plan, best)
		} else {
			appendRightZero(rightDst, right, plan)
		}
	}
	return out, nil
}
