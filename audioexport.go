package slicetone

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viterin/vek"
)

// PCMConversion decides what happens to samples outside [-1,1] when they are
// converted to integers. Tones are mixed additively without any clipping, so
// overlapping tones easily exceed the range.
type PCMConversion int

const (
	// PCMClamp saturates out-of-range samples to the extreme integer values.
	PCMClamp PCMConversion = iota
	// PCMWrap scales and truncates without range checks, letting values wrap
	// around in the narrower integer type. Matches files written by older
	// versions, including their audible wrap-around distortion.
	PCMWrap
)

func (c PCMConversion) String() string {
	switch c {
	case PCMClamp:
		return "clamp"
	case PCMWrap:
		return "wrap"
	}
	return fmt.Sprintf("PCMConversion(%d)", int(c))
}

// ExportOptions configures ExportWavWithOptions.
type ExportOptions struct {
	SampleRate float64
	Format     SampleFormat
	Conversion PCMConversion
}

// ExportWav renders every slice and writes a mono 16-bit .wav file, clamping
// samples outside [-1,1].
func (c *Composition) ExportWav(path string, sampleRate float64) error {
	return c.ExportWavWithOptions(path, ExportOptions{SampleRate: sampleRate, Format: PCMInt16, Conversion: PCMClamp})
}

// ExportWavWithOptions renders every slice and writes a mono .wav file with
// the given sample format and conversion. The composition is snapshotted
// first, so tones added during the export do not end up in the file.
func (c *Composition) ExportWavWithOptions(path string, opts ExportOptions) error {
	if err := validateSampleRate(opts.SampleRate); err != nil {
		return err
	}
	if opts.SampleRate > math.MaxUint32 {
		return fmt.Errorf("%w: sample rate %v does not fit in a wav header", ErrInvalidArgument, opts.SampleRate)
	}
	if opts.SampleRate != math.Trunc(opts.SampleRate) {
		return fmt.Errorf("%w: wav files need an integer sample rate, got %v", ErrInvalidArgument, opts.SampleRate)
	}
	snapshot := c.Snapshot()
	return WithWavFile(path, int(opts.SampleRate), 1, opts.Format, func(w *WavWriter) error {
		enc := pcmEncoder{format: opts.Format, conversion: opts.Conversion}
		return snapshot.Stream(opts.SampleRate, func(_ int, samples []float64) error {
			return enc.writeTo(w, samples)
		})
	})
}

// Raw encodes samples as headerless little-endian data of the given format.
func Raw(samples []float64, format SampleFormat, conversion PCMConversion) ([]byte, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, format)
	}
	enc := pcmEncoder{format: format, conversion: conversion}
	buf := new(bytes.Buffer)
	var err error
	switch format {
	case PCMUint8:
		err = binary.Write(buf, binary.LittleEndian, enc.uint8s(samples))
	case PCMInt16:
		err = binary.Write(buf, binary.LittleEndian, enc.int16s(samples))
	case PCMInt32:
		err = binary.Write(buf, binary.LittleEndian, enc.int32s(samples))
	case PCMFloat32:
		err = binary.Write(buf, binary.LittleEndian, enc.float32s(samples))
	}
	if err != nil {
		return nil, fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return buf.Bytes(), nil
}

// Peak returns the largest absolute sample value, 0 for an empty buffer.
func Peak(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Max(vek.Max(samples), -vek.Min(samples))
}

// ClampSamples limits every sample to [-1,1] in place.
func ClampSamples(samples []float64) {
	if len(samples) == 0 {
		return
	}
	vek.MinimumNumber_Inplace(samples, 1)
	vek.MaximumNumber_Inplace(samples, -1)
}

// pcmEncoder converts float samples to the integer formats, reusing its
// buffers between calls.
type pcmEncoder struct {
	format     SampleFormat
	conversion PCMConversion
	clamped    []float64
	u8         []uint8
	i16        []int16
	i32        []int32
	f32        []float32
}

func (e *pcmEncoder) writeTo(w *WavWriter, samples []float64) error {
	switch e.format {
	case PCMUint8:
		return w.WriteUint8(e.uint8s(samples))
	case PCMInt16:
		return w.WriteInt16(e.int16s(samples))
	case PCMInt32:
		return w.WriteInt32(e.int32s(samples))
	case PCMFloat32:
		return w.WriteFloat32(e.float32s(samples))
	}
	return fmt.Errorf("%w: %v", ErrInvalidArgument, e.format)
}

// source returns the samples to convert: a clamped copy when clamping.
func (e *pcmEncoder) source(samples []float64) []float64 {
	if e.conversion != PCMClamp {
		return samples
	}
	e.clamped = append(e.clamped[:0], samples...)
	ClampSamples(e.clamped)
	return e.clamped
}

func (e *pcmEncoder) uint8s(samples []float64) []uint8 {
	src := e.source(samples)
	e.u8 = resize(e.u8, len(src))
	for i, v := range src {
		e.u8[i] = uint8(truncate(128 + v*math.MaxInt8))
	}
	return e.u8
}

func (e *pcmEncoder) int16s(samples []float64) []int16 {
	src := e.source(samples)
	e.i16 = resize(e.i16, len(src))
	for i, v := range src {
		e.i16[i] = int16(truncate(v * math.MaxInt16))
	}
	return e.i16
}

func (e *pcmEncoder) int32s(samples []float64) []int32 {
	src := e.source(samples)
	e.i32 = resize(e.i32, len(src))
	for i, v := range src {
		e.i32[i] = truncate(v * math.MaxInt32)
	}
	return e.i32
}

func (e *pcmEncoder) float32s(samples []float64) []float32 {
	src := e.source(samples)
	e.f32 = resize(e.f32, len(src))
	for i, v := range src {
		e.f32[i] = float32(v)
	}
	return e.f32
}

// truncate converts to int32 rounding toward zero, saturating at the int32
// limits and mapping NaN to 0. Narrowing the result further wraps around, as
// Go integer conversions do.
func truncate(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
