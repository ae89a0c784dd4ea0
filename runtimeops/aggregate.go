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
	"bytes"
	"encoding/binary"
	"math"

	"github.com/dchest/siphash"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/ibexerr"
	"github.com/bobjansen/ibex/ir"
)

// aggResult accumulates one AggSpec's state across every group,
// indexed in lockstep with the group ids assigned by Aggregate.
type aggResult struct {
	spec    ir.AggSpec
	outKind column.Kind

	groupSize []int64 // Count
	sumI      []int64
	sumF      []float64
	valid     []int64 // number of non-missing contributing values

	hasMin, hasMax, hasFirst, hasLast []bool
	minLit, maxLit, firstLit, lastLit []ir.Literal
}

func (a *aggResult) grow(n int) {
	for len(a.groupSize) < n {
		a.groupSize = append(a.groupSize, 0)
		a.sumI = append(a.sumI, 0)
		a.sumF = append(a.sumF, 0)
		a.valid = append(a.valid, 0)
		a.hasMin = append(a.hasMin, false)
		a.hasMax = append(a.hasMax, false)
		a.hasFirst = append(a.hasFirst, false)
		a.hasLast = append(a.hasLast, false)
		a.minLit = append(a.minLit, ir.Literal{})
		a.maxLit = append(a.maxLit, ir.Literal{})
		a.firstLit = append(a.firstLit, ir.Literal{})
		a.lastLit = append(a.lastLit, ir.Literal{})
	}
}

func (a *aggResult) observe(t *column.Table, row, gid int) error {
	a.groupSize[gid]++
	if a.spec.Func == ir.Count {
		return nil
	}
	col, err := t.MustFind(a.spec.Column)
	if err != nil {
		return ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
	}
	if !col.IsValid(row) {
		return nil
	}
	lit := literalFromColumn(col, row)
	switch a.spec.Func {
	case ir.Sum, ir.Mean:
		if !col.Kind().Numeric() {
			return ibexerr.Wrap(ibexerr.ErrType, "%s over non-numeric column %s", a.spec.Func, a.spec.Column)
		}
		if col.Kind() == column.Float64 {
			a.sumF[gid] += lit.F
		} else {
			a.sumI[gid] += lit.I
			a.sumF[gid] += float64(lit.I)
		}
		a.valid[gid]++
	case ir.Min:
		if !a.hasMin[gid] || less(lit, a.minLit[gid]) {
			a.minLit[gid] = lit
			a.hasMin[gid] = true
		}
		a.valid[gid]++
	case ir.Max:
		if !a.hasMax[gid] || less(a.maxLit[gid], lit) {
			a.maxLit[gid] = lit
			a.hasMax[gid] = true
		}
		a.valid[gid]++
	case ir.First:
		if !a.hasFirst[gid] {
			a.firstLit[gid] = lit
			a.hasFirst[gid] = true
		}
		a.valid[gid]++
	case ir.Last:
		a.lastLit[gid] = lit
		a.hasLast[gid] = true
		a.valid[gid]++
	}
	return nil
}

// canonNaNBits is the single bit pattern every NaN hashes to for
// group-by purposes.
const canonNaNBits = 0x7ff8000000000000

func less(a, b ir.Literal) bool {
	lt, _ := compareValues(ir.Lt, a, b)
	return lt
}

// finish returns the aggregate's value for gid and whether the group
// produced a defined result at all (an empty group, or a group whose
// every contributing value was missing, has no defined sum/mean/min/
// max/first/last and comes back invalid).
func (a *aggResult) finish(gid int) (ir.Literal, bool) {
	switch a.spec.Func {
	case ir.Count:
		return ir.IntLiteral(a.groupSize[gid]), true
	case ir.Sum:
		if a.outKind == column.Int64 {
			return ir.IntLiteral(a.sumI[gid]), a.valid[gid] > 0
		}
		return ir.FloatLiteral(a.sumF[gid]), a.valid[gid] > 0
	case ir.Mean:
		if a.valid[gid] == 0 {
			return ir.FloatLiteral(0), false
		}
		return ir.FloatLiteral(a.sumF[gid] / float64(a.valid[gid])), true
	case ir.Min:
		return a.minLit[gid], a.hasMin[gid]
	case ir.Max:
		return a.maxLit[gid], a.hasMax[gid]
	case ir.First:
		return a.firstLit[gid], a.hasFirst[gid]
	default: // ir.Last
		return a.lastLit[gid], a.hasLast[gid]
	}
}

func aggOutputKind(t *column.Table, spec ir.AggSpec) (column.Kind, error) {
	if spec.Func == ir.Count {
		return column.Int64, nil
	}
	col, err := t.MustFind(spec.Column)
	if err != nil {
		return 0, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
	}
	switch spec.Func {
	case ir.Sum:
		if !col.Kind().Numeric() {
			return 0, ibexerr.Wrap(ibexerr.ErrType, "sum over non-numeric column %s", spec.Column)
		}
		return col.Kind(), nil
	case ir.Mean:
		if !col.Kind().Numeric() {
			return 0, ibexerr.Wrap(ibexerr.ErrType, "mean over non-numeric column %s", spec.Column)
		}
		return column.Float64, nil
	case ir.Min, ir.Max, ir.First, ir.Last:
		if col.Kind() == column.Categorical {
			return column.String, nil
		}
		return col.Kind(), nil
	default:
		return 0, ibexerr.Wrap(ibexerr.ErrLowering, "unknown aggregate function %v", spec.Func)
	}
}

// fastKeyEligible reports whether a single group-by column can use the
// type-specialized fast path.
func fastKeyEligible(t *column.Table, ref ir.ColumnRef) (*column.Column, bool) {
	col, ok := t.Find(ref.Name)
	if !ok {
		return nil, false
	}
	switch col.Kind() {
	case column.Int64, column.Float64, column.String:
		return col, true
	default:
		return nil, false
	}
}

// Aggregate groups t by groupBy and computes aggs over each group
//. A single group-by key of a directly hashable kind
// uses a type-specialized map; zero or multiple keys (or a single key
// of Date/Timestamp/Categorical kind) fall back to a siphash-combined
// composite key, with hash collisions resolved by exact comparison.
func Aggregate(t *column.Table, groupBy []ir.ColumnRef, aggs []ir.AggSpec) (*column.Table, error) {
	results := make([]*aggResult, len(aggs))
	for i, spec := range aggs {
		outKind, err := aggOutputKind(t, spec)
		if err != nil {
			return nil, err
		}
		results[i] = &aggResult{spec: spec, outKind: outKind}
	}

	n := t.Rows()
	groupOf := make([]int, n)
	var repRows []int
	numGroups := 0

	switch {
	case len(groupBy) == 0:
		numGroups = 1
		for row := range groupOf {
			groupOf[row] = 0
		}
	case len(groupBy) == 1:
		if col, ok := fastKeyEligible(t, groupBy[0]); ok {
			switch col.Kind() {
			case column.Int64:
				idx := make(map[int64]int)
				for row := 0; row < n; row++ {
					k := col.Int64At(row)
					gid, ok := idx[k]
					if !ok {
						gid = numGroups
						idx[k] = gid
						repRows = append(repRows, row)
						numGroups++
					}
					groupOf[row] = gid
				}
			case column.Float64:
				// keyed on the bit pattern: NaN never equals itself,
				// so a float-valued map key would split NaN rows into
				// one group each
				idx := make(map[uint64]int)
				for row := 0; row < n; row++ {
					k := math.Float64bits(col.Float64At(row))
					if math.IsNaN(col.Float64At(row)) {
						k = canonNaNBits
					}
					gid, ok := idx[k]
					if !ok {
						gid = numGroups
						idx[k] = gid
						repRows = append(repRows, row)
						numGroups++
					}
					groupOf[row] = gid
				}
			default: // String
				idx := make(map[string]int)
				for row := 0; row < n; row++ {
					k := col.StringAt(row)
					gid, ok := idx[k]
					if !ok {
						gid = numGroups
						idx[k] = gid
						repRows = append(repRows, row)
						numGroups++
					}
					groupOf[row] = gid
				}
			}
			break
		}
		fallthrough
	default:
		buckets := make(map[uint64][]int) // hash -> representative rows sharing it
		for row := 0; row < n; row++ {
			h, err := compositeKeyHash(t, groupBy, row)
			if err != nil {
				return nil, err
			}
			gid := -1
			for _, rep := range buckets[h] {
				if groupKeysEqual(t, groupBy, rep, row) {
					gid = groupOf[rep]
					break
				}
			}
			if gid < 0 {
				gid = numGroups
				buckets[h] = append(buckets[h], row)
				repRows = append(repRows, row)
				numGroups++
			}
			groupOf[row] = gid
		}
	}

	for _, r := range results {
		r.grow(numGroups)
	}
	for row := 0; row < n; row++ {
		gid := groupOf[row]
		for _, r := range results {
			if err := r.observe(t, row, gid); err != nil {
				return nil, err
			}
		}
	}

	out := column.New()
	for _, ref := range groupBy {
		src, err := t.MustFind(ref.Name)
		if err != nil {
			return nil, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
		}
		if src.Kind() != column.Categorical {
			dst := src.New()
			for _, rep := range repRows {
				dst.Append(src, rep)
			}
			out.AddColumn(ref.Name, dst)
			continue
		}
		dst := newColumn(column.String)
		for _, rep := range repRows {
			appendLiteral(dst, literalFromColumn(src, rep))
		}
		out.AddColumn(ref.Name, dst)
	}
	for _, r := range results {
		dst := newColumn(r.outKind)
		valid := make([]bool, numGroups)
		anyInvalid := false
		for gid := 0; gid < numGroups; gid++ {
			lit, ok := r.finish(gid)
			appendLiteral(dst, lit)
			valid[gid] = ok
			if !ok {
				anyInvalid = true
			}
		}
		if anyInvalid {
			dst.Valid = valid
		}
		out.AddColumn(r.spec.Alias, dst)
	}
	return out, nil
}

func compositeKeyHash(t *column.Table, keys []ir.ColumnRef, row int) (uint64, error) {
	var buf bytes.Buffer
	for _, k := range keys {
		col, err := t.MustFind(k.Name)
		if err != nil {
			return 0, ibexerr.Wrap(ibexerr.ErrReference, "%s", err)
		}
		writeKeyBytes(&buf, col, row)
	}
	return siphash.Hash(0x6962657863303031, 0x67726f7570696e67, buf.Bytes()), nil
}

func writeKeyBytes(buf *bytes.Buffer, col *column.Column, row int) {
	if !col.IsValid(row) {
		buf.WriteByte(0)
		return
	}
	switch col.Kind() {
	case column.Int64:
		buf.WriteByte(1)
		binary.Write(buf, binary.LittleEndian, col.Int64At(row))
	case column.Float64:
		buf.WriteByte(2)
		f := col.Float64At(row)
		if math.IsNaN(f) {
			f = math.NaN()
		}
		binary.Write(buf, binary.LittleEndian, f)
	case column.Date:
		buf.WriteByte(4)
		binary.Write(buf, binary.LittleEndian, int32(col.DateAt(row)))
	case column.Timestamp:
		buf.WriteByte(5)
		binary.Write(buf, binary.LittleEndian, int64(col.TimestampAt(row)))
	default: // String, Categorical
		s := col.StringAt(row)
		buf.WriteByte(3)
		binary.Write(buf, binary.LittleEndian, int32(len(s)))
		buf.WriteString(s)
	}
}

func groupKeysEqual(t *column.Table, keys []ir.ColumnRef, a, b int) bool {
	for _, k := range keys {
		col, err := t.MustFind(k.Name)
		if err != nil {
			return false
		}
		if col.IsValid(a) != col.IsValid(b) {
			return false
		}
		if !col.IsValid(a) {
			continue
		}
		if !keyCellEqual(col, a, b) {
			return false
		}
	}
	return true
}

// keyCellEqual compares two cells of one key column for grouping
// purposes: unlike the filter comparison rule, two NaN float cells
// are the same key, matching the single-key fast path's canonical
// NaN bits.
func keyCellEqual(col *column.Column, a, b int) bool {
	if col.Kind() == column.Float64 {
		fa, fb := col.Float64At(a), col.Float64At(b)
		if math.IsNaN(fa) || math.IsNaN(fb) {
			return math.IsNaN(fa) && math.IsNaN(fb)
		}
		return fa == fb
	}
	eq, err := compareValues(ir.Eq, literalFromColumn(col, a), literalFromColumn(col, b))
	return err == nil && eq
}
