package slicetone

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// SampleFormat is the encoding of the samples in a .wav file.
type SampleFormat int

const (
	PCMInt16 SampleFormat = iota
	PCMUint8
	PCMInt32
	PCMFloat32
)

// WavHeaderSize is the size of the RIFF/WAVE header written by WavWriter.
const WavHeaderSize = 44

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
	wavFmtSize     = 16
)

var sampleFormatInfo = [...]struct {
	bits int
	code uint16
	name string
}{
	PCMInt16:   {16, wavFormatPCM, "s16"},
	PCMUint8:   {8, wavFormatPCM, "u8"},
	PCMInt32:   {32, wavFormatPCM, "s32"},
	PCMFloat32: {32, wavFormatFloat, "f32"},
}

func (f SampleFormat) Valid() bool {
	return f >= 0 && int(f) < len(sampleFormatInfo)
}

func (f SampleFormat) BitsPerSample() int  { return sampleFormatInfo[f].bits }
func (f SampleFormat) BytesPerSample() int { return sampleFormatInfo[f].bits / 8 }

// FormatCode is the WAVE format tag: 1 for integer PCM, 3 for IEEE float.
func (f SampleFormat) FormatCode() uint16 { return sampleFormatInfo[f].code }

func (f SampleFormat) String() string {
	if !f.Valid() {
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
	return sampleFormatInfo[f].name
}

// ParseSampleFormat parses the names returned by SampleFormat.String: u8,
// s16, s32 or f32.
func ParseSampleFormat(name string) (SampleFormat, error) {
	for i, info := range sampleFormatInfo {
		if info.name == name {
			return SampleFormat(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown sample format %q (want u8, s16, s32 or f32)", ErrInvalidArgument, name)
}

// WavWriter streams samples into a .wav file. Sample data is written as it
// comes, starting right after the header region; the header is written on
// Close, once the number of samples is known. Hence the output must be
// seekable, and Close must be called exactly once; WithWavFile does that.
type WavWriter struct {
	ws             io.WriteSeeker
	closer         io.Closer
	sampleRate     uint32
	channels       uint16
	format         SampleFormat
	samplesWritten int64
	scratch        []byte
	closed         bool
}

// NewWavWriter starts a .wav stream on ws. The caller keeps the ownership of
// ws; Close writes the header but does not close ws.
func NewWavWriter(ws io.WriteSeeker, sampleRate, channels int, format SampleFormat) (*WavWriter, error) {
	if sampleRate < 0 || int64(sampleRate) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: sample rate must fit within 32 bit unsigned integer, got %d", ErrInvalidArgument, sampleRate)
	}
	if channels <= 0 || channels > math.MaxUint16 {
		return nil, fmt.Errorf("%w: number of channels must be in [1,%d], got %d", ErrInvalidArgument, math.MaxUint16, channels)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, format)
	}
	if _, err := ws.Seek(WavHeaderSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("could not seek past the wav header: %w", err)
	}
	return &WavWriter{ws: ws, sampleRate: uint32(sampleRate), channels: uint16(channels), format: format}, nil
}

// CreateWav creates (or truncates) the file at path and starts a .wav stream
// on it. Close also closes the file.
func CreateWav(path string, sampleRate, channels int, format SampleFormat) (*WavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create wav file: %w", err)
	}
	w, err := NewWavWriter(f, sampleRate, channels, format)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// WithWavFile creates a .wav file, calls fn with its writer and always closes
// the writer afterwards, so the header gets written exactly once even if fn
// fails. Errors from fn and Close are joined.
func WithWavFile(path string, sampleRate, channels int, format SampleFormat, fn func(*WavWriter) error) (err error) {
	w, err := CreateWav(path, sampleRate, channels, format)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()
	return fn(w)
}

func (w *WavWriter) Format() SampleFormat { return w.format }
func (w *WavWriter) SampleRate() int      { return int(w.sampleRate) }
func (w *WavWriter) Channels() int        { return int(w.channels) }

// SamplesWritten counts individual samples, not frames: a stereo frame is two
// samples.
func (w *WavWriter) SamplesWritten() int64 { return w.samplesWritten }

func (w *WavWriter) check(format SampleFormat, length int) error {
	if w.closed {
		return ErrWriterClosed
	}
	if format != w.format {
		return fmt.Errorf("%w: writer expects %v samples, got %v", ErrInvalidArgument, w.format, format)
	}
	if length%int(w.channels) != 0 {
		return fmt.Errorf("%w: all channels' samples must be written at once (%d samples, %d channels)", ErrInvalidArgument, length, w.channels)
	}
	return nil
}

func (w *WavWriter) grow(n int) []byte {
	if cap(w.scratch) < n {
		w.scratch = make([]byte, n)
	}
	return w.scratch[:n]
}

func (w *WavWriter) flush(b []byte) error {
	n, err := writeFull(w.ws, b)
	w.samplesWritten += int64(n / w.format.BytesPerSample())
	if err != nil {
		return fmt.Errorf("could not write samples: %w", err)
	}
	return nil
}

func (w *WavWriter) WriteUint8(samples []uint8) error {
	if err := w.check(PCMUint8, len(samples)); err != nil {
		return err
	}
	return w.flush(samples)
}

func (w *WavWriter) WriteInt16(samples []int16) error {
	if err := w.check(PCMInt16, len(samples)); err != nil {
		return err
	}
	b := w.grow(len(samples) * 2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return w.flush(b)
}

func (w *WavWriter) WriteInt32(samples []int32) error {
	if err := w.check(PCMInt32, len(samples)); err != nil {
		return err
	}
	b := w.grow(len(samples) * 4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
	}
	return w.flush(b)
}

func (w *WavWriter) WriteFloat32(samples []float32) error {
	if err := w.check(PCMFloat32, len(samples)); err != nil {
		return err
	}
	b := w.grow(len(samples) * 4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return w.flush(b)
}

// Write writes a []uint8, []int16, []int32 or []float32, which must match the
// format of the writer.
func (w *WavWriter) Write(samples any) error {
	switch s := samples.(type) {
	case []uint8:
		return w.WriteUint8(s)
	case []int16:
		return w.WriteInt16(s)
	case []int32:
		return w.WriteInt32(s)
	case []float32:
		return w.WriteFloat32(s)
	}
	return fmt.Errorf("%w: unsupported sample buffer type %T", ErrInvalidArgument, samples)
}

// Close writes the header at the start of the output and closes the file if
// the writer owns one. Calling Close again returns ErrWriterClosed.
func (w *WavWriter) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	err := w.writeHeader()
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("could not close wav file: %w", cerr))
		}
	}
	return err
}

func (w *WavWriter) writeHeader() error {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	bytesPerSample := w.format.BytesPerSample()
	dataSize := w.samplesWritten * int64(bytesPerSample)
	if dataSize > math.MaxUint32-(WavHeaderSize-8) {
		return fmt.Errorf("%d bytes of sample data do not fit in a wav file", dataSize)
	}
	buf := bytes.NewBuffer(make([]byte, 0, WavHeaderSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize+WavHeaderSize-8))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(wavFmtSize))
	binary.Write(buf, binary.LittleEndian, w.format.FormatCode())
	binary.Write(buf, binary.LittleEndian, w.channels)
	binary.Write(buf, binary.LittleEndian, w.sampleRate)
	binary.Write(buf, binary.LittleEndian, uint32(int(w.sampleRate)*int(w.channels)*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(int(w.channels)*bytesPerSample))                   // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(w.format.BitsPerSample()))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	if _, err := w.ws.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("could not seek to the wav header: %w", err)
	}
	if _, err := writeFull(w.ws, buf.Bytes()); err != nil {
		return fmt.Errorf("could not write wav header: %w", err)
	}
	return nil
}
