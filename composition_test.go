package slicetone_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/vsariola/slicetone"
)

func testComposition(t *testing.T) *slicetone.Composition {
	t.Helper()
	c, err := slicetone.NewComposition(1.0 / 60)
	if err != nil {
		t.Fatalf("NewComposition failed: %v", err)
	}
	adds := []struct {
		index int
		tone  slicetone.Tone
	}{
		{0, slicetone.MustTone(slicetone.Sine, 69, 255)},
		{0, slicetone.MustTone(slicetone.Square, 57, 40)},
		{3, slicetone.MustTone(slicetone.Sawtooth, 72, 128)},
		{7, slicetone.MustTone(slicetone.Triangle, 45, 200)},
	}
	for _, a := range adds {
		if err := c.AddTone(a.index, a.tone); err != nil {
			t.Fatalf("AddTone(%v) failed: %v", a.index, err)
		}
	}
	return c
}

func header(duration float64, count uint32) []byte {
	b := binary.BigEndian.AppendUint64(nil, math.Float64bits(duration))
	return binary.BigEndian.AppendUint32(b, count)
}

func TestNewCompositionValidation(t *testing.T) {
	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := slicetone.NewComposition(d); !errors.Is(err, slicetone.ErrInvalidArgument) {
			t.Fatalf("NewComposition(%v): expected ErrInvalidArgument, got %v", d, err)
		}
	}
}

func TestCompositionSlices(t *testing.T) {
	c := testComposition(t)
	if c.IsEmpty() {
		t.Fatal("composition should not be empty")
	}
	if got := c.SliceCount(); got != 8 {
		t.Fatalf("got slice count %v, expected 8", got)
	}
	if got := c.PopulatedSlices(); len(got) != 3 || got[0] != 0 || got[1] != 3 || got[2] != 7 {
		t.Fatalf("got populated slices %v, expected [0 3 7]", got)
	}
	if c.Slice(0).Len() != 2 || c.Slice(1).Len() != 0 || c.Slice(1000).Len() != 0 || c.Slice(-1).Len() != 0 {
		t.Fatal("unexpected slice contents")
	}
	if math.Abs(c.TotalDuration()-8.0/60) > 1e-12 {
		t.Fatalf("got total duration %v, expected %v", c.TotalDuration(), 8.0/60)
	}
	if err := c.AddTone(-1, slicetone.MustTone(slicetone.Sine, 1, 1)); !errors.Is(err, slicetone.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for a negative index, got %v", err)
	}
}

func TestAddToneOverflow(t *testing.T) {
	c, _ := slicetone.NewComposition(0.01)
	tone := slicetone.MustTone(slicetone.Sine, 60, 1)
	for i := 0; i < slicetone.MaxPolyphony; i++ {
		if err := c.AddTone(5, tone); err != nil {
			t.Fatalf("AddTone #%v failed: %v", i, err)
		}
	}
	before := c.Slice(5)
	if err := c.AddTone(5, tone); !errors.Is(err, slicetone.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if before.Len() != slicetone.MaxPolyphony || c.Slice(5).Len() != slicetone.MaxPolyphony {
		t.Fatal("the failed AddTone changed the slice")
	}
}

func TestSliceIsStableWhileAdding(t *testing.T) {
	c, _ := slicetone.NewComposition(0.01)
	c.AddTone(0, slicetone.MustTone(slicetone.Sine, 60, 1))
	p := c.Slice(0)
	c.AddTone(0, slicetone.MustTone(slicetone.Sine, 61, 1))
	if p.Len() != 1 {
		t.Fatalf("a Polyphony obtained earlier changed length to %v", p.Len())
	}
}

func TestConcurrentAddTone(t *testing.T) {
	c, _ := slicetone.NewComposition(0.01)
	const goroutines, perGoroutine = 8, 25
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if err := c.AddTone(i%5, slicetone.MustTone(slicetone.Sine, g, i)); err != nil {
					t.Errorf("AddTone failed: %v", err)
				}
				p := c.Slice(i % 5)
				n := p.Len()
				_, _ = c.MarshalBinary()
				if p.Len() != n {
					t.Errorf("Polyphony changed under the reader")
				}
			}
		}(g)
	}
	wg.Wait()
	total := 0
	for i := 0; i < 5; i++ {
		total += c.Slice(i).Len()
	}
	if total != goroutines*perGoroutine {
		t.Fatalf("got %v tones, expected %v", total, goroutines*perGoroutine)
	}
}

func TestCompositionRoundTrip(t *testing.T) {
	c := testComposition(t)
	var buf bytes.Buffer
	n, err := c.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	// header, two tones in slice 0, one in 3 and 7, five empty records
	expectedLen := slicetone.HeaderSize + (1 + 2*slicetone.ToneSize) + 2*(1+slicetone.ToneSize) + 5
	if n != int64(expectedLen) || buf.Len() != expectedLen {
		t.Fatalf("wrote %v bytes, expected %v", n, expectedLen)
	}
	back, err := slicetone.ReadComposition(&buf)
	if err != nil {
		t.Fatalf("ReadComposition failed: %v", err)
	}
	if !back.Equal(c) {
		t.Fatal("decoded composition differs from the original")
	}
	if back.SliceDuration() != c.SliceDuration() {
		t.Fatalf("slice duration not bit exact: %v != %v", back.SliceDuration(), c.SliceDuration())
	}
}

func TestCompositionShortWrites(t *testing.T) {
	c := testComposition(t)
	expected, _ := c.MarshalBinary()
	var buf bytes.Buffer
	if _, err := c.WriteTo(&shortWriter{w: &buf}); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), expected) {
		t.Fatal("short writes produced different output")
	}
}

func TestCompositionEncoding(t *testing.T) {
	c, _ := slicetone.NewComposition(0.02)
	c.AddTone(1, slicetone.MustTone(slicetone.Sine, 69, 255))
	b, err := c.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	expected := append(header(0.02, 2), 0, 1, 3, 69, 255)
	if !bytes.Equal(b, expected) {
		t.Fatalf("got % x, expected % x", b, expected)
	}
}

func TestEmptyComposition(t *testing.T) {
	c, _ := slicetone.NewComposition(0.5)
	if !c.IsEmpty() || c.SliceCount() != 0 || c.TotalDuration() != 0 {
		t.Fatal("new composition should be empty")
	}
	b, _ := c.MarshalBinary()
	if !bytes.Equal(b, header(0.5, 0)) {
		t.Fatalf("got % x, expected a bare header", b)
	}
	var back slicetone.Composition
	if err := back.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if back.SliceCount() != 0 || back.SliceDuration() != 0.5 {
		t.Fatalf("got slice count %v and duration %v", back.SliceCount(), back.SliceDuration())
	}
}

func TestReadCompositionDropsEmptyRecords(t *testing.T) {
	data := append(header(0.5, 3), 0, 1, 0, 69, 128, 0)
	c, err := slicetone.ReadComposition(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadComposition failed: %v", err)
	}
	if got := c.PopulatedSlices(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("got populated slices %v, expected [1]", got)
	}
	if c.SliceCount() != 2 {
		t.Fatalf("got slice count %v, expected 2", c.SliceCount())
	}
}

func TestReadCompositionMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", header(0.5, 0)[:7]},
		{"zero duration", header(0, 0)},
		{"negative duration", header(-0.5, 0)},
		{"NaN duration", header(math.NaN(), 0)},
		{"infinite duration", header(math.Inf(1), 0)},
		{"missing records", append(header(0.5, 2), 0)},
		{"truncated tone", append(header(0.5, 1), 1, 0, 69)},
		{"bad kind", append(header(0.5, 1), 1, 7, 69, 1)},
		{"bad pitch", append(header(0.5, 1), 1, 0, 128, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := slicetone.ReadComposition(bytes.NewReader(tt.data))
			if !errors.Is(err, slicetone.ErrMalformedData) {
				t.Fatalf("expected ErrMalformedData, got %v", err)
			}
			if c != nil {
				t.Fatal("a failed decode returned a composition")
			}
		})
	}
}

func TestUnmarshalBinaryKeepsContentsOnError(t *testing.T) {
	c := testComposition(t)
	if err := c.UnmarshalBinary(append(header(0.5, 1), 1, 9, 9, 9)); err == nil {
		t.Fatal("expected an error")
	}
	if !c.Equal(testComposition(t)) {
		t.Fatal("a failed UnmarshalBinary changed the composition")
	}
}

func TestReadCompositionTransportError(t *testing.T) {
	errBoom := errors.New("boom")
	// the timeout hits after the header, while reading the first record
	r := iotest.TimeoutReader(bytes.NewReader(append(header(0.5, 1), 0)))
	_, err := slicetone.ReadComposition(r)
	if !errors.Is(err, iotest.ErrTimeout) || errors.Is(err, slicetone.ErrMalformedData) {
		t.Fatalf("expected a timeout, got %v", err)
	}
	if _, err := slicetone.ReadComposition(iotest.ErrReader(errBoom)); !errors.Is(err, errBoom) {
		t.Fatalf("expected the reader's error, got %v", err)
	}
}

func TestSliceTiming(t *testing.T) {
	for _, d := range []float64{1.0 / 60, 0.01, 0.0173, 0.25} {
		for _, sampleRate := range []float64{8000, 22050.5, 44100, 48000} {
			c, _ := slicetone.NewComposition(d)
			total := int64(0)
			for i := 0; i < 1000; i++ {
				if c.SliceEndSample(i, sampleRate) != c.SliceStartSample(i+1, sampleRate) {
					t.Fatalf("slice %v does not end where the next one starts", i)
				}
				total += int64(c.SliceLengthSamples(i, sampleRate))
			}
			if total != c.SliceStartSample(1000, sampleRate) {
				t.Fatalf("d=%v, rate=%v: lengths sum to %v, expected %v", d, sampleRate, total, c.SliceStartSample(1000, sampleRate))
			}
			if first := c.SliceStartSample(1, sampleRate); first != int64(math.Floor(d*sampleRate)) {
				t.Fatalf("got first slice end %v", first)
			}
			if maxLen := c.MaxSliceLengthSamples(sampleRate); maxLen != int(math.Ceil(d*sampleRate)) {
				t.Fatalf("got max slice length %v", maxLen)
			}
		}
	}
}

func TestGenerateSamplesSine(t *testing.T) {
	c, _ := slicetone.NewComposition(0.01)
	c.AddTone(0, slicetone.MustTone(slicetone.Sine, 69, 255))
	const sampleRate = 48000
	if n := c.SliceLengthSamples(0, sampleRate); n != 480 {
		t.Fatalf("got slice length %v, expected 480", n)
	}
	buf := make([]float64, 500)
	for i := range buf {
		buf[i] = 42
	}
	n, err := c.GenerateSamples(buf, 0, sampleRate)
	if err != nil {
		t.Fatalf("GenerateSamples failed: %v", err)
	}
	if n != 480 {
		t.Fatalf("got %v samples, expected 480", n)
	}
	if math.Abs(buf[0]) > 1e-12 {
		t.Fatalf("sine should start at zero, got %v", buf[0])
	}
	if peak := slicetone.Peak(buf[:n]); peak > 1 || peak < 0.99 {
		t.Fatalf("got peak %v", peak)
	}
	if buf[480] != 42 {
		t.Fatal("GenerateSamples wrote past the slice length")
	}
	n, err = c.GenerateSamples(buf, 1, sampleRate)
	if err != nil {
		t.Fatalf("GenerateSamples failed: %v", err)
	}
	for i, v := range buf[:n] {
		if v != 0 {
			t.Fatalf("empty slice sample %v = %v, expected silence", i, v)
		}
	}
}

func TestGenerateSamplesErrors(t *testing.T) {
	c := testComposition(t)
	buf := make([]float64, c.MaxSliceLengthSamples(44100))
	if _, err := c.GenerateSamples(buf, -1, 44100); !errors.Is(err, slicetone.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for a negative index, got %v", err)
	}
	if _, err := c.GenerateSamples(buf[:10], 0, 44100); !errors.Is(err, slicetone.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for a short buffer, got %v", err)
	}
	for _, rate := range []float64{0, -44100, math.NaN(), math.Inf(1)} {
		if _, err := c.GenerateSamples(buf, 0, rate); !errors.Is(err, slicetone.ErrInvalidArgument) {
			t.Fatalf("rate %v: expected ErrInvalidArgument, got %v", rate, err)
		}
	}
}

func TestZeroValueComposition(t *testing.T) {
	var c slicetone.Composition
	if !c.IsEmpty() || c.SliceCount() != 0 {
		t.Fatal("zero value should read as empty")
	}
	tone := slicetone.MustTone(slicetone.Sine, 69, 1)
	if err := c.AddTone(0, tone); !errors.Is(err, slicetone.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if !c.IsEmpty() {
		t.Fatal("a failed AddTone changed the composition")
	}
	if err := c.UnmarshalBinary(header(0.25, 0)); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if err := c.AddTone(0, tone); err != nil {
		t.Fatalf("AddTone after UnmarshalBinary failed: %v", err)
	}
	if c.Slice(0).Len() != 1 {
		t.Fatalf("got %v tones, expected 1", c.Slice(0).Len())
	}
}
