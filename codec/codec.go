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

// Package codec encodes a Table to a compact zstd-compressed snapshot
// and decodes it back. Snapshots back golden-file comparison in tests
// and the CLI's -table flag; they are not a storage engine and carry
// no versioned durability promises beyond the magic they start with.
package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/bobjansen/ibex/column"
	"github.com/bobjansen/ibex/date"
)

// magic starts every snapshot; the trailing digit is the format
// version.
const magic = "IBX1"

// Encode writes a snapshot of t to w.
func Encode(w io.Writer, t *column.Table) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(zw)
	if err := encodeBody(bw, t); err != nil {
		zw.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Decode reads a snapshot produced by Encode.
func Decode(r io.Reader) (*column.Table, error) {
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	if string(head) != magic {
		return nil, fmt.Errorf("codec: bad snapshot magic %q", head)
	}
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return decodeBody(bufio.NewReader(zr))
}

// Digest returns the blake2b-256 digest of t's canonical uncompressed
// encoding. Identical encodings give identical digests. The encoding
// covers raw cell bits, including cells under a false validity bit and
// NaN payloads, so tables that Table.Equal reports equal can still
// have different digests.
func Digest(t *column.Table) ([blake2b.Size256]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return [blake2b.Size256]byte{}, err
	}
	bw := bufio.NewWriter(h)
	if err := encodeBody(bw, t); err != nil {
		return [blake2b.Size256]byte{}, err
	}
	if err := bw.Flush(); err != nil {
		return [blake2b.Size256]byte{}, err
	}
	var sum [blake2b.Size256]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func encodeBody(w *bufio.Writer, t *column.Table) error {
	writeString(w, t.TimeIndex())
	writeUvarint(w, uint64(t.NumColumns()))
	for i := 0; i < t.NumColumns(); i++ {
		if err := encodeColumn(w, t.NameAt(i), t.ColumnAt(i)); err != nil {
			return err
		}
	}
	return nil
}

func encodeColumn(w *bufio.Writer, name string, c *column.Column) error {
	writeString(w, name)
	w.WriteByte(byte(c.Kind()))
	n := c.Len()
	writeUvarint(w, uint64(n))
	if c.Valid == nil {
		w.WriteByte(0)
	} else {
		w.WriteByte(1)
		for i := 0; i < n; i++ {
			if c.Valid[i] {
				w.WriteByte(1)
			} else {
				w.WriteByte(0)
			}
		}
	}
	switch c.Kind() {
	case column.Int64:
		for i := 0; i < n; i++ {
			writeVarint(w, c.Int64At(i))
		}
	case column.Float64:
		for i := 0; i < n; i++ {
			writeU64(w, math.Float64bits(c.Float64At(i)))
		}
	case column.Date:
		for i := 0; i < n; i++ {
			writeVarint(w, int64(c.DateAt(i)))
		}
	case column.Timestamp:
		for i := 0; i < n; i++ {
			writeVarint(w, int64(c.TimestampAt(i)))
		}
	case column.String, column.Categorical:
		// categoricals round-trip as plain strings: the dictionary is
		// an in-memory encoding detail, not part of the value
		for i := 0; i < n; i++ {
			writeString(w, c.StringAt(i))
		}
	default:
		return fmt.Errorf("codec: unknown column kind %v", c.Kind())
	}
	return nil
}

func decodeBody(r *bufio.Reader) (*column.Table, error) {
	timeIndex, err := readString(r)
	if err != nil {
		return nil, err
	}
	ncols, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	t := column.New()
	for i := uint64(0); i < ncols; i++ {
		name, col, err := decodeColumn(r)
		if err != nil {
			return nil, err
		}
		t.AddColumn(name, col)
	}
	if timeIndex != "" {
		if err := t.SetTimeIndex(timeIndex); err != nil {
			return nil, fmt.Errorf("codec: %s", err)
		}
	}
	return t, nil
}

func decodeColumn(r *bufio.Reader) (string, *column.Column, error) {
	name, err := readString(r)
	if err != nil {
		return "", nil, err
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return "", nil, err
	}
	kind := column.Kind(kindByte)
	n64, err := binary.ReadUvarint(r)
	if err != nil {
		return "", nil, err
	}
	n := int(n64)
	hasValid, err := r.ReadByte()
	if err != nil {
		return "", nil, err
	}
	var valid []bool
	if hasValid == 1 {
		valid = make([]bool, n)
		for i := 0; i < n; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return "", nil, err
			}
			valid[i] = b == 1
		}
	}
	var col *column.Column
	switch kind {
	case column.Int64:
		vals := make([]int64, n)
		for i := range vals {
			if vals[i], err = binary.ReadVarint(r); err != nil {
				return "", nil, err
			}
		}
		col = column.NewInt64(vals)
	case column.Float64:
		vals := make([]float64, n)
		for i := range vals {
			bits, err := readU64(r)
			if err != nil {
				return "", nil, err
			}
			vals[i] = math.Float64frombits(bits)
		}
		col = column.NewFloat64(vals)
	case column.Date:
		vals := make([]date.Date, n)
		for i := range vals {
			v, err := binary.ReadVarint(r)
			if err != nil {
				return "", nil, err
			}
			vals[i] = date.Date(v)
		}
		col = column.NewDate(vals)
	case column.Timestamp:
		vals := make([]date.Timestamp, n)
		for i := range vals {
			v, err := binary.ReadVarint(r)
			if err != nil {
				return "", nil, err
			}
			vals[i] = date.Timestamp(v)
		}
		col = column.NewTimestamp(vals)
	case column.String, column.Categorical:
		vals := make([]string, n)
		for i := range vals {
			if vals[i], err = readString(r); err != nil {
				return "", nil, err
			}
		}
		col = column.NewString(vals)
	default:
		return "", nil, fmt.Errorf("codec: unknown column kind %d", kindByte)
	}
	col.Valid = valid
	return name, col, nil
}

func writeUvarint(w *bufio.Writer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	w.Write(buf[:n])
}

func writeVarint(w *bufio.Writer, v int64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	w.Write(buf[:n])
}

func writeU64(w *bufio.Writer, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.Write(buf[:])
}

func readU64(r *bufio.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeString(w *bufio.Writer, s string) {
	writeUvarint(w, uint64(len(s)))
	w.WriteString(s)
}

func readString(r *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
