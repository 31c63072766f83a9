package slicetone

import (
	"fmt"
	"io"
)

// ToneSize is the length of the wire encoding of a Tone: kind, pitch,
// amplitude, one byte each.
const ToneSize = 3

// Tone is one sounding note within a slice. It is an immutable value; use
// NewTone to construct a validated one.
type Tone struct {
	kind      WaveKind
	pitch     uint8
	amplitude uint8
}

// NewTone validates and returns a Tone. pitch is a semitone index in [0,127]
// (69 = 440 Hz) and amplitude a linear volume in [0,255].
func NewTone(kind WaveKind, pitch, amplitude int) (Tone, error) {
	if !kind.Valid() {
		return Tone{}, fmt.Errorf("%w: wave kind %d out of range", ErrInvalidArgument, byte(kind))
	}
	if pitch < 0 || pitch >= NumPitches {
		return Tone{}, fmt.Errorf("%w: pitch %d out of range [0,%d]", ErrInvalidArgument, pitch, NumPitches-1)
	}
	if amplitude < 0 || amplitude > 255 {
		return Tone{}, fmt.Errorf("%w: amplitude %d out of range [0,255]", ErrInvalidArgument, amplitude)
	}
	return Tone{kind: kind, pitch: uint8(pitch), amplitude: uint8(amplitude)}, nil
}

// MustTone is like NewTone but panics on invalid input. Meant for tests and
// constant tables.
func MustTone(kind WaveKind, pitch, amplitude int) Tone {
	t, err := NewTone(kind, pitch, amplitude)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tone) Kind() WaveKind { return t.kind }
func (t Tone) Pitch() int     { return int(t.pitch) }
func (t Tone) Amplitude() int { return int(t.amplitude) }

// Frequency is the equal-tempered frequency of the pitch, in Hz.
func (t Tone) Frequency() float64 {
	return PitchFrequency(int(t.pitch))
}

// Gain is the amplitude normalized to [0,1].
func (t Tone) Gain() float64 {
	return float64(t.amplitude) / 255
}

func (t Tone) String() string {
	return fmt.Sprintf("{MIDI: %d, Volume: %d, Type: %v}", t.pitch, t.amplitude, t.kind)
}

// AddTo adds the rendered tone to buf, buf[0] being at absolute time start.
func (t Tone) AddTo(buf []float64, start, sampleRate float64) {
	t.kind.AddTo(buf, start, t.Frequency(), t.Gain(), sampleRate)
}

// AppendBinary appends the 3-byte encoding of t to b.
func (t Tone) AppendBinary(b []byte) ([]byte, error) {
	return append(b, byte(t.kind), t.pitch, t.amplitude), nil
}

func (t Tone) MarshalBinary() ([]byte, error) {
	return t.AppendBinary(make([]byte, 0, ToneSize))
}

// ReadTone decodes one tone. A premature end of stream or an invalid kind or
// pitch gives ErrMalformedData; other read errors are returned as they are.
func ReadTone(r io.Reader) (Tone, error) {
	var b [ToneSize]byte
	if err := readFull(r, b[:]); err != nil {
		return Tone{}, err
	}
	return decodeTone(b)
}

func decodeTone(b [ToneSize]byte) (Tone, error) {
	if !WaveKind(b[0]).Valid() {
		return Tone{}, fmt.Errorf("%w: bad value for tone type: %d", ErrMalformedData, b[0])
	}
	if b[1] >= NumPitches {
		return Tone{}, fmt.Errorf("%w: bad value for tone note: %d", ErrMalformedData, b[1])
	}
	return Tone{kind: WaveKind(b[0]), pitch: b[1], amplitude: b[2]}, nil
}

// readFull is io.ReadFull with end-of-stream mapped to ErrMalformedData.
func readFull(r io.Reader, b []byte) error {
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: end of stream reached before data could be read", ErrMalformedData)
		}
		return err
	}
	return nil
}
