package slicetone_test

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/vsariola/slicetone"
)

func TestNewToneValidation(t *testing.T) {
	tests := []struct {
		kind      slicetone.WaveKind
		pitch     int
		amplitude int
		ok        bool
	}{
		{slicetone.Square, 0, 0, true},
		{slicetone.Sine, 127, 255, true},
		{slicetone.WaveKind(4), 60, 100, false},
		{slicetone.Sine, -1, 100, false},
		{slicetone.Sine, 128, 100, false},
		{slicetone.Sine, 60, -1, false},
		{slicetone.Sine, 60, 256, false},
	}
	for _, tt := range tests {
		tone, err := slicetone.NewTone(tt.kind, tt.pitch, tt.amplitude)
		if !tt.ok {
			if !errors.Is(err, slicetone.ErrInvalidArgument) {
				t.Fatalf("NewTone(%v, %v, %v): expected ErrInvalidArgument, got %v", tt.kind, tt.pitch, tt.amplitude, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewTone(%v, %v, %v) failed: %v", tt.kind, tt.pitch, tt.amplitude, err)
		}
		if tone.Kind() != tt.kind || tone.Pitch() != tt.pitch || tone.Amplitude() != tt.amplitude {
			t.Fatalf("tone fields do not match: %v", tone)
		}
	}
}

func TestToneEncoding(t *testing.T) {
	tone := slicetone.MustTone(slicetone.Triangle, 69, 200)
	b, err := tone.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	if !bytes.Equal(b, []byte{2, 69, 200}) {
		t.Fatalf("got % x, expected 02 45 c8", b)
	}
	back, err := slicetone.ReadTone(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("ReadTone failed: %v", err)
	}
	if back != tone {
		t.Fatalf("got %v, expected %v", back, tone)
	}
}

func TestReadToneMalformed(t *testing.T) {
	for _, data := range [][]byte{{4, 60, 0}, {255, 60, 0}, {0, 128, 0}, {3, 200, 0}, {0, 60}, {0}, {}} {
		if _, err := slicetone.ReadTone(bytes.NewReader(data)); !errors.Is(err, slicetone.ErrMalformedData) {
			t.Fatalf("ReadTone(% x): expected ErrMalformedData, got %v", data, err)
		}
	}
}

func TestReadTonePassesTransportErrors(t *testing.T) {
	errBoom := errors.New("boom")
	_, err := slicetone.ReadTone(iotest.ErrReader(errBoom))
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected the reader's error, got %v", err)
	}
	if errors.Is(err, slicetone.ErrMalformedData) {
		t.Fatalf("transport errors should not be reported as malformed data: %v", err)
	}
}

func TestToneRendering(t *testing.T) {
	tone := slicetone.MustTone(slicetone.Square, 69, 51)
	buf := make([]float64, 10)
	tone.AddTo(buf, 0, 48000)
	if buf[0] != 0.2 {
		t.Fatalf("square starts at its peak, got %v, expected 0.2", buf[0])
	}
	if got := tone.String(); got != "{MIDI: 69, Volume: 51, Type: Square}" {
		t.Fatalf("unexpected String(): %v", got)
	}
}
