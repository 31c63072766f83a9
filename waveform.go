package slicetone

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WaveKind selects the periodic waveform a Tone is rendered with.
type WaveKind byte

const (
	Square WaveKind = iota
	Sawtooth
	Triangle
	Sine
)

// NumPitches is the size of the equal-tempered pitch table; pitch 69 is A4 =
// 440 Hz, as in MIDI.
const NumPitches = 128

var waveKindNames = [...]string{"Square", "Sawtooth", "Triangle", "Sine"}

// waveKindTexts are the lower case names used in text formats.
var waveKindTexts = func() (ret [len(waveKindNames)]string) {
	caser := cases.Lower(language.Und)
	for i, n := range waveKindNames {
		ret[i] = caser.String(n)
	}
	return ret
}()

var equalTemperament = generateEqualTemperament()

func generateEqualTemperament() [NumPitches]float64 {
	var freqs [NumPitches]float64
	offset := 0
	for i := 69; i >= 0; i-- {
		freqs[i] = 440 * math.Pow(2, float64(offset)/12)
		offset--
	}
	offset = 0
	for i := 69; i < NumPitches; i++ {
		freqs[i] = 440 * math.Pow(2, float64(offset)/12)
		offset++
	}
	return freqs
}

// PitchFrequency returns the frequency in Hz of an equal-tempered pitch. It
// panics if pitch is outside [0, NumPitches).
func PitchFrequency(pitch int) float64 {
	return equalTemperament[pitch]
}

// Valid reports whether k is one of the four known waveforms.
func (k WaveKind) Valid() bool {
	return k <= Sine
}

func (k WaveKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("WaveKind(%d)", byte(k))
	}
	return waveKindNames[k]
}

func (k WaveKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: wave kind %d", ErrInvalidArgument, byte(k))
	}
	return []byte(waveKindTexts[k]), nil
}

func (k *WaveKind) UnmarshalText(text []byte) error {
	kind, err := ParseWaveKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseWaveKind parses a waveform name, ignoring case and surrounding space.
func ParseWaveKind(name string) (WaveKind, error) {
	// casers keep state, so each call gets its own
	name = cases.Lower(language.Und).String(strings.TrimSpace(name))
	for i, n := range waveKindTexts {
		if n == name {
			return WaveKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown wave kind %q", ErrInvalidArgument, name)
}

// Sample returns the value of the waveform with the given frequency and peak
// amplitude at absolute time t (seconds). Sawtooth and triangle start a
// quarter cycle in.
func (k WaveKind) Sample(freq, amplitude, t float64) float64 {
	cycle := 1 / freq
	switch k {
	case Square:
		if math.Mod(t/cycle, 1) < 0.5 {
			return amplitude
		}
		return -amplitude
	case Sawtooth:
		p := math.Mod(t/cycle+0.25, 1)
		return -amplitude + p*2*amplitude
	case Triangle:
		p := math.Mod(t/cycle+0.25, 1)
		h := math.Mod(p*2, 1)
		if p < 0.5 {
			return -amplitude + 2*amplitude*h
		}
		return amplitude - 2*amplitude*h
	case Sine:
		return amplitude * math.Sin(t*freq*math.Pi*2)
	}
	return 0
}

// AddTo adds the waveform to every sample of buf; buf[i] is at absolute time
// start + i/sampleRate. Time is never reset, so the phase is continuous
// across consecutive calls that continue where the previous one ended.
func (k WaveKind) AddTo(buf []float64, start, freq, amplitude, sampleRate float64) {
	for i := range buf {
		t := start + float64(i)/sampleRate
		buf[i] += k.Sample(freq, amplitude, t)
	}
}
