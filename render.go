package slicetone

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Stream renders the slices 0..SliceCount()-1 in order, reusing one buffer,
// and passes each rendered slice to fn. The samples are only valid until fn
// returns.
func (c *Composition) Stream(sampleRate float64, fn func(index int, samples []float64) error) error {
	if err := validateSampleRate(sampleRate); err != nil {
		return err
	}
	// one extra sample, as rounding of the slice boundaries can make a slice
	// one sample longer than the ceiling
	buf := make([]float64, c.MaxSliceLengthSamples(sampleRate)+1)
	count := c.SliceCount()
	for i := 0; i < count; i++ {
		n, err := c.GenerateSamples(buf, i, sampleRate)
		if err != nil {
			return err
		}
		if err := fn(i, buf[:n]); err != nil {
			return err
		}
	}
	return nil
}

// slicesPerTask is the number of consecutive slices rendered by one task of
// Render; slices are short, so one per task would be mostly overhead.
const slicesPerTask = 64

// Render renders the whole composition into one buffer of
// SliceStartSample(SliceCount()) samples. Slices are independent, as time is
// absolute, so they are rendered in parallel on up to workers goroutines;
// workers <= 0 means one per CPU. The composition is snapshotted first.
func (c *Composition) Render(sampleRate float64, workers int) ([]float64, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, err
	}
	snapshot := c.Snapshot()
	count := snapshot.SliceCount()
	buffer := make([]float64, snapshot.SliceStartSample(count, sampleRate))
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for first := 0; first < count; first += slicesPerTask {
		first, last := first, min(first+slicesPerTask, count)
		g.Go(func() error {
			for i := first; i < last; i++ {
				start := snapshot.SliceStartSample(i, sampleRate)
				end := snapshot.SliceEndSample(i, sampleRate)
				if _, err := snapshot.GenerateSamples(buffer[start:end], i, sampleRate); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buffer, nil
}
