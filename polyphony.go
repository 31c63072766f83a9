package slicetone

import (
	"fmt"
	"io"
	"strings"
)

// MaxPolyphony is the maximum number of tones in one slice; the count is
// stored in a single byte.
const MaxPolyphony = 255

// Polyphony is the ordered list of tones sounding in one slice. It is
// immutable: WithTone returns a new Polyphony with its own backing array, so
// a Polyphony handed to a renderer can never change under it. The zero value
// is the empty Polyphony.
type Polyphony struct {
	tones []Tone
}

// EmptyPolyphony returns the shared empty Polyphony.
func EmptyPolyphony() Polyphony {
	return Polyphony{}
}

// NewPolyphony builds a Polyphony from tones, in order. At most MaxPolyphony
// tones are allowed.
func NewPolyphony(tones ...Tone) (Polyphony, error) {
	if len(tones) > MaxPolyphony {
		return Polyphony{}, fmt.Errorf("%w: polyphony is limited to %d tones, got %d", ErrInvalidArgument, MaxPolyphony, len(tones))
	}
	if len(tones) == 0 {
		return Polyphony{}, nil
	}
	t := make([]Tone, len(tones))
	copy(t, tones)
	return Polyphony{tones: t}, nil
}

// WithTone returns a new Polyphony with tone appended. p is left as it was.
func (p Polyphony) WithTone(tone Tone) (Polyphony, error) {
	if len(p.tones) >= MaxPolyphony {
		return p, fmt.Errorf("%w: polyphony is limited to %d tones", ErrInvalidArgument, MaxPolyphony)
	}
	t := make([]Tone, len(p.tones)+1)
	copy(t, p.tones)
	t[len(p.tones)] = tone
	return Polyphony{tones: t}, nil
}

// Len returns the number of tones.
func (p Polyphony) Len() int {
	return len(p.tones)
}

// At returns the i:th tone, in insertion order.
func (p Polyphony) At(i int) Tone {
	return p.tones[i]
}

// Tones returns a copy of the tones.
func (p Polyphony) Tones() []Tone {
	ret := make([]Tone, len(p.tones))
	copy(ret, p.tones)
	return ret
}

func (p Polyphony) Equal(q Polyphony) bool {
	if len(p.tones) != len(q.tones) {
		return false
	}
	for i := range p.tones {
		if p.tones[i] != q.tones[i] {
			return false
		}
	}
	return true
}

// RenderInto adds every tone to buf. buf is not cleared first and the sum is
// not clipped; overlapping tones can exceed [-1,1].
func (p Polyphony) RenderInto(buf []float64, startTime, sampleRate float64) {
	for _, t := range p.tones {
		t.AddTo(buf, startTime, sampleRate)
	}
}

func (p Polyphony) String() string {
	var sb strings.Builder
	for _, t := range p.tones {
		sb.WriteString(t.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// AppendBinary appends the tone count byte followed by every tone.
func (p Polyphony) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, byte(len(p.tones)))
	for _, t := range p.tones {
		b, _ = t.AppendBinary(b)
	}
	return b, nil
}

func (p Polyphony) MarshalBinary() ([]byte, error) {
	return p.AppendBinary(make([]byte, 0, 1+ToneSize*len(p.tones)))
}

// ReadPolyphony decodes a count-prefixed list of tones.
func ReadPolyphony(r io.Reader) (Polyphony, error) {
	var count [1]byte
	if err := readFull(r, count[:]); err != nil {
		return Polyphony{}, err
	}
	if count[0] == 0 {
		return Polyphony{}, nil
	}
	buf := make([]byte, int(count[0])*ToneSize)
	if err := readFull(r, buf); err != nil {
		return Polyphony{}, err
	}
	tones := make([]Tone, count[0])
	for i := range tones {
		var b [ToneSize]byte
		copy(b[:], buf[i*ToneSize:])
		t, err := decodeTone(b)
		if err != nil {
			return Polyphony{}, fmt.Errorf("tone %d: %w", i, err)
		}
		tones[i] = t
	}
	return Polyphony{tones: tones}, nil
}
