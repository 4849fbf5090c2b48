package qtable

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Params is the agent hyperparameter block carried in the table file header,
// so a saved table is enough to resume training.
type Params struct {
	LearningRate   float32
	DiscountFactor float32
	Epsilon        float32
	EpsilonDecay   float32
	EpsilonMin     float32
}

// fileHeader is the fixed little-endian on-disk header: two int32 dimensions
// followed by five float32 hyperparameters.
type fileHeader struct {
	States         int32
	Actions        int32
	LearningRate   float32
	DiscountFactor float32
	Epsilon        float32
	EpsilonDecay   float32
	EpsilonMin     float32
}

// Save writes the table and params to path in the fixed binary layout:
// header, then states*actions little-endian float32 values in row-major
// order. The write goes through a temp file and rename.
func (t *Table) Save(path string, p Params) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := t.writePayload(w, p); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a table file saved by Save into the live table. The file's
// dimensions must match exactly; on any error the in-memory table is left
// untouched.
func (t *Table) Load(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, err
	}
	defer f.Close()
	return t.readPayload(bufio.NewReader(f))
}

// SaveSnapshot writes the same payload as Save wrapped in a zstd stream.
// Snapshots trade a little CPU off the hot path for much smaller files.
func (t *Table) SaveSnapshot(path string, p Params) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	w := bufio.NewWriter(enc)
	if err := t.writePayload(w, p); err == nil {
		err = w.Flush()
	} else {
		w.Flush()
	}
	if err2 := enc.Close(); err == nil {
		err = err2
	}
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot reads a zstd-wrapped snapshot into the live table with the
// same dimension check and no-partial-mutation guarantee as Load.
func (t *Table) LoadSnapshot(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Params{}, err
	}
	defer dec.Close()
	return t.readPayload(dec)
}

// Info holds the header of a table file without its values, for inspection
// tooling that does not know the dimensions up front.
type Info struct {
	States     int
	Actions    int
	Params     Params
	Compressed bool
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ReadInfo reads just the header of a table file or snapshot, sniffing the
// zstd magic to tell the two formats apart.
func ReadInfo(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		return Info{}, err
	}

	var r io.Reader = br
	compressed := bytes.Equal(magic, zstdMagic)
	if compressed {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return Info{}, err
		}
		defer dec.Close()
		r = dec
	}

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Info{}, err
	}
	if hdr.States <= 0 || hdr.Actions <= 0 {
		return Info{}, fmt.Errorf("qtable: corrupt header: %dx%d", hdr.States, hdr.Actions)
	}
	return Info{
		States:  int(hdr.States),
		Actions: int(hdr.Actions),
		Params: Params{
			LearningRate:   hdr.LearningRate,
			DiscountFactor: hdr.DiscountFactor,
			Epsilon:        hdr.Epsilon,
			EpsilonDecay:   hdr.EpsilonDecay,
			EpsilonMin:     hdr.EpsilonMin,
		},
		Compressed: compressed,
	}, nil
}

func (t *Table) writePayload(w io.Writer, p Params) error {
	hdr := fileHeader{
		States:         int32(t.states),
		Actions:        int32(t.actions),
		LearningRate:   p.LearningRate,
		DiscountFactor: p.DiscountFactor,
		Epsilon:        p.Epsilon,
		EpsilonDecay:   p.EpsilonDecay,
		EpsilonMin:     p.EpsilonMin,
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, t.data)
}

func (t *Table) readPayload(r io.Reader) (Params, error) {
	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Params{}, err
	}
	if int(hdr.States) != t.states || int(hdr.Actions) != t.actions {
		return Params{}, fmt.Errorf("qtable: dimension mismatch: file %dx%d, table %dx%d",
			hdr.States, hdr.Actions, t.states, t.actions)
	}

	// Decode into a scratch buffer first so a short read cannot leave the
	// live table half-loaded.
	buf := make([]float32, t.states*t.actions)
	if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
		return Params{}, err
	}

	copy(t.data, buf)
	t.InvalidateAll()
	return Params{
		LearningRate:   hdr.LearningRate,
		DiscountFactor: hdr.DiscountFactor,
		Epsilon:        hdr.Epsilon,
		EpsilonDecay:   hdr.EpsilonDecay,
		EpsilonMin:     hdr.EpsilonMin,
	}, nil
}
