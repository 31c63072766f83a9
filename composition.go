package slicetone

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"golang.org/x/exp/slices"
)

// HeaderSize is the length of the binary composition header: the slice
// duration as float64 bits and the slice count as uint32, both big-endian.
const HeaderSize = 12

// MaxSliceIndex is the largest slice index a Composition accepts; the slice
// count must fit in the uint32 of the binary header.
const MaxSliceIndex = math.MaxUint32 - 1

// Composition is a sparse, slice-indexed store of Polyphony values sharing a
// single slice duration. Only slices with at least one tone are stored;
// absent slices read as the empty Polyphony.
//
// A Composition is safe for concurrent use. Polyphony values obtained from it
// stay valid and unchanged even while tones are being added.
//
// The zero value has no slice duration: it reads as empty and AddTone fails
// until one of the Unmarshal methods has filled it in.
type Composition struct {
	sliceDuration float64

	mu      sync.RWMutex
	slices  map[int]Polyphony
	indices []int // sorted keys of slices
}

// NewComposition returns an empty composition whose slices last
// sliceDuration seconds.
func NewComposition(sliceDuration float64) (*Composition, error) {
	if err := validateSliceDuration(sliceDuration); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return &Composition{sliceDuration: sliceDuration, slices: map[int]Polyphony{}}, nil
}

func validateSliceDuration(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return fmt.Errorf("slice duration must be positive and finite, got %v", d)
	}
	return nil
}

func validateSampleRate(sampleRate float64) error {
	if math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) || sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive and finite, got %v", ErrInvalidArgument, sampleRate)
	}
	return nil
}

// SliceDuration returns the duration of one slice, in seconds.
func (c *Composition) SliceDuration() float64 {
	return c.sliceDuration
}

// Slice returns the tones of a slice; the empty Polyphony if the slice holds
// no tones or the index is out of range.
func (c *Composition) Slice(index int) Polyphony {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slices[index]
}

// IsEmpty reports whether no slice holds any tone.
func (c *Composition) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.indices) == 0
}

// SliceCount returns the highest populated slice index + 1, or 0 when empty.
// Slices above the highest populated one are implicitly empty.
func (c *Composition) SliceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sliceCountLocked()
}

func (c *Composition) sliceCountLocked() int {
	if len(c.indices) == 0 {
		return 0
	}
	return c.indices[len(c.indices)-1] + 1
}

// TotalDuration is SliceDuration * SliceCount, in seconds.
func (c *Composition) TotalDuration() float64 {
	return c.sliceDuration * float64(c.SliceCount())
}

// PopulatedSlices returns the indices of the slices holding tones, ascending.
func (c *Composition) PopulatedSlices() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.indices)
}

// AddTone appends tone to the slice at index. The slice gets a new Polyphony;
// the previous one is never modified.
func (c *Composition) AddTone(index int, tone Tone) error {
	if index < 0 || int64(index) > MaxSliceIndex {
		return fmt.Errorf("%w: slice index %d out of range [0,%d]", ErrInvalidArgument, index, int64(MaxSliceIndex))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := validateSliceDuration(c.sliceDuration); err != nil {
		return fmt.Errorf("%w: composition not initialized: %v", ErrInvalidArgument, err)
	}
	p, err := c.slices[index].WithTone(tone)
	if err != nil {
		return fmt.Errorf("slice %d: %w", index, err)
	}
	c.setLocked(index, p)
	return nil
}

func (c *Composition) setLocked(index int, p Polyphony) {
	if _, ok := c.slices[index]; !ok {
		i, _ := slices.BinarySearch(c.indices, index)
		c.indices = slices.Insert(c.indices, i, index)
	}
	c.slices[index] = p
}

// Snapshot returns an independent copy of c. Polyphony values are shared, as
// they are immutable.
func (c *Composition) Snapshot() *Composition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := make(map[int]Polyphony, len(c.slices))
	for k, v := range c.slices {
		m[k] = v
	}
	return &Composition{sliceDuration: c.sliceDuration, slices: m, indices: slices.Clone(c.indices)}
}

// Equal reports whether both compositions have the same slice duration and
// the same tones, in the same order, in every slice.
func (c *Composition) Equal(o *Composition) bool {
	if c == o {
		return true
	}
	a, b := c.Snapshot(), o.Snapshot()
	if a.sliceDuration != b.sliceDuration || !slices.Equal(a.indices, b.indices) {
		return false
	}
	for _, i := range a.indices {
		if !a.slices[i].Equal(b.slices[i]) {
			return false
		}
	}
	return true
}

// SliceStartSample returns floor(index * sliceDuration * sampleRate), the
// first sample of the slice.
func (c *Composition) SliceStartSample(index int, sampleRate float64) int64 {
	return int64(math.Floor(float64(index) * c.sliceDuration * sampleRate))
}

// SliceEndSample returns the first sample after the slice, which is always the
// start of the next slice, so slice lengths sum up without drift.
func (c *Composition) SliceEndSample(index int, sampleRate float64) int64 {
	return c.SliceStartSample(index+1, sampleRate)
}

// SliceLengthSamples is the exact length of a slice in samples. Because of
// the flooring, it can vary by one sample between slices.
func (c *Composition) SliceLengthSamples(index int, sampleRate float64) int {
	return int(c.SliceEndSample(index, sampleRate) - c.SliceStartSample(index, sampleRate))
}

// MaxSliceLengthSamples returns ceil(sliceDuration * sampleRate), a bound on
// every slice length, for allocating one render buffer for all slices.
func (c *Composition) MaxSliceLengthSamples(sampleRate float64) int {
	return int(math.Ceil(c.sliceDuration * sampleRate))
}

// GenerateSamples renders the slice into buf, which must hold at least
// SliceLengthSamples samples. Only that many samples are cleared and written;
// the count is returned.
func (c *Composition) GenerateSamples(buf []float64, index int, sampleRate float64) (int, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return 0, err
	}
	if index < 0 {
		return 0, fmt.Errorf("%w: negative slice index %d", ErrInvalidArgument, index)
	}
	start := c.SliceStartSample(index, sampleRate)
	n := int(c.SliceEndSample(index, sampleRate) - start)
	if len(buf) < n {
		return 0, fmt.Errorf("%w: buffer holds %d samples, slice %d needs %d", ErrInvalidArgument, len(buf), index, n)
	}
	out := buf[:n]
	clear(out)
	c.Slice(index).RenderInto(out, float64(start)/sampleRate, sampleRate)
	return n, nil
}

// AppendBinary appends the binary encoding of the composition: header, then
// one Polyphony record for every slice below SliceCount, empty ones included.
func (c *Composition) AppendBinary(b []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := c.sliceCountLocked()
	b = binary.BigEndian.AppendUint64(b, math.Float64bits(c.sliceDuration))
	b = binary.BigEndian.AppendUint32(b, uint32(count))
	for i := 0; i < count; i++ {
		b, _ = c.slices[i].AppendBinary(b)
	}
	return b, nil
}

func (c *Composition) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(nil)
}

// WriteTo writes the binary encoding of c to w.
func (c *Composition) WriteTo(w io.Writer) (int64, error) {
	b, _ := c.MarshalBinary()
	n, err := writeFull(w, b)
	return int64(n), err
}

// UnmarshalBinary replaces the contents of c with the decoded data. On error
// c is left as it was. Like other decoders, it must not run concurrently with
// any other use of c.
func (c *Composition) UnmarshalBinary(data []byte) error {
	d, err := ReadComposition(bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.replace(d)
	return nil
}

// ReadComposition decodes a composition. Decoding is all-or-nothing: any
// error returns no composition. Premature end of stream and invalid field
// values give ErrMalformedData. Records with zero tones are not stored but
// still take up their slice index.
func ReadComposition(r io.Reader) (*Composition, error) {
	var header [HeaderSize]byte
	if err := readFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("composition header: %w", err)
	}
	duration := math.Float64frombits(binary.BigEndian.Uint64(header[:8]))
	if err := validateSliceDuration(duration); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	count := binary.BigEndian.Uint32(header[8:])
	c := &Composition{sliceDuration: duration, slices: map[int]Polyphony{}}
	for i := 0; i < int(count); i++ {
		p, err := ReadPolyphony(r)
		if err != nil {
			return nil, fmt.Errorf("slice %d of %d: %w", i, count, err)
		}
		if p.Len() > 0 {
			c.slices[i] = p
			c.indices = append(c.indices, i)
		}
	}
	return c, nil
}

// writeFull writes all of b, looping on short writes.
func writeFull(w io.Writer, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := w.Write(b[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
