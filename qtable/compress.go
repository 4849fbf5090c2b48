package qtable

import (
	"errors"
	"math"
)

// Compressed is a quantized copy of a table: 8- or 16-bit levels plus a
// scale/offset pair. It exists purely as a storage form; the hot path never
// reads it. Round-tripping loses at most scale/2 per cell.
type Compressed struct {
	states  int
	actions int
	bits    int

	scale  float32
	offset float32

	q8  []uint8
	q16 []uint16
}

var ErrBadQuantBits = errors.New("qtable: compression bits must be 8 or 16")

// Compress quantizes the table into the requested bit width.
func (t *Table) Compress(bits int) (*Compressed, error) {
	if bits != 8 && bits != 16 {
		return nil, ErrBadQuantBits
	}

	lo, hi := t.data[0], t.data[0]
	for _, v := range t.data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	levels := float32(math.MaxUint8)
	if bits == 16 {
		levels = float32(math.MaxUint16)
	}

	c := &Compressed{
		states:  t.states,
		actions: t.actions,
		bits:    bits,
		offset:  lo,
		scale:   (hi - lo) / levels,
	}
	if c.scale == 0 {
		// Constant table: every cell decodes to the offset.
		c.scale = 1
	}

	n := len(t.data)
	if bits == 8 {
		c.q8 = make([]uint8, n)
	} else {
		c.q16 = make([]uint16, n)
	}
	for i, v := range t.data {
		level := float64((v - c.offset) / c.scale)
		q := uint32(math.Round(level))
		if float32(q) > levels {
			q = uint32(levels)
		}
		if bits == 8 {
			c.q8[i] = uint8(q)
		} else {
			c.q16[i] = uint16(q)
		}
	}
	return c, nil
}

// Bits returns the quantization width.
func (c *Compressed) Bits() int { return c.bits }

// MaxError returns the worst-case absolute reconstruction error.
func (c *Compressed) MaxError() float32 { return c.scale / 2 }

// Decompress reconstructs a standard-allocation table from the quantized
// form. The result carries its own counters.
func (c *Compressed) Decompress() (*Table, error) {
	t, err := New(c.states, c.actions, AllocStandard, nil)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		var q float32
		if c.bits == 8 {
			q = float32(c.q8[i])
		} else {
			q = float32(c.q16[i])
		}
		t.data[i] = c.offset + q*c.scale
	}
	return t, nil
}
