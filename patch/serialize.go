package patch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// binWriter writes little-endian fixed-width records, remembering the first
// error so callers check once at the end
type binWriter struct {
	buf *bytes.Buffer
	err error
}

func (w *binWriter) int(v int) {
	if w.err != nil {
		return
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		w.err = fmt.Errorf("%d does not fit a 32 bit record", v)
		return
	}
	w.err = binary.Write(w.buf, binary.LittleEndian, int32(v))
}

func (w *binWriter) float(v float64) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, binary.LittleEndian, v)
}

func (w *binWriter) byte(v uint8) {
	if w.err != nil {
		return
	}
	w.err = w.buf.WriteByte(v)
}

// ints writes a length-prefixed slice
func (w *binWriter) ints(vs []int) {
	w.int(len(vs))
	for _, v := range vs {
		w.int(v)
	}
}

func (w *binWriter) floats(vs []float64) {
	w.int(len(vs))
	for _, v := range vs {
		w.float(v)
	}
}

type binReader struct {
	r   *bytes.Reader
	err error
}

func (r *binReader) int() int {
	if r.err != nil {
		return 0
	}
	var v int32
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return int(v)
}

func (r *binReader) float() float64 {
	if r.err != nil {
		return 0
	}
	var v float64
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return v
}

func (r *binReader) byte() uint8 {
	if r.err != nil {
		return 0
	}
	var v uint8
	v, r.err = r.r.ReadByte()
	return v
}

// length reads a slice length and rejects values the remaining input cannot hold
func (r *binReader) length(elemSize int) int {
	n := r.int()
	if r.err != nil {
		return 0
	}
	if n < 0 || n*elemSize > r.r.Len() {
		r.err = fmt.Errorf("corrupt length %d: %w", n, io.ErrUnexpectedEOF)
		return 0
	}
	return n
}

func (r *binReader) ints() []int {
	n := r.length(4)
	vs := make([]int, n)
	for i := range vs {
		vs[i] = r.int()
	}
	return vs
}

func (r *binReader) floats() []float64 {
	n := r.length(8)
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = r.float()
	}
	return vs
}
