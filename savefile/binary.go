package savefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var byteOrder = binary.LittleEndian

// reader decodes little-endian primitives and keeps the first error; every
// read after a failure is a no-op returning zero.
type reader struct {
	r   io.Reader
	err error
}

func (r *reader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, byteOrder, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		r.err = fmt.Errorf("read: %w", err)
	}
}

func (r *reader) int32() int32 {
	var v int32
	r.read(&v)
	return v
}

func (r *reader) float32() float32 {
	var v float32
	r.read(&v)
	return v
}

func (r *reader) float64() float64 {
	var v float64
	r.read(&v)
	return v
}

// money reads a money value at the width the version stores.
func (r *reader) money(version int) float64 {
	if has(fieldDoubleMoney, version) {
		return r.float64()
	}
	return float64(r.float32())
}

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) write(v any) {
	if w.err != nil {
		return
	}
	if err := binary.Write(w.w, byteOrder, v); err != nil {
		w.err = fmt.Errorf("write: %w", err)
	}
}

func (w *writer) int32(v int32)     { w.write(v) }
func (w *writer) float32(v float32) { w.write(v) }
func (w *writer) float64(v float64) { w.write(v) }

func (w *writer) money(version int, v float64) {
	if has(fieldDoubleMoney, version) {
		w.float64(v)
		return
	}
	w.float32(float32(v))
}
