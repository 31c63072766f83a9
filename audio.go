package slicetone

import (
	"fmt"

	"github.com/viterin/vek/vek32"
)

// AudioSink receives mono float32 audio, typically blocking until the device
// has consumed it.
type AudioSink interface {
	WriteAudio(buffer []float32) error
	Close() error
}

type AudioContext interface {
	Output() AudioSink
	Close() error
}

// Play renders the composition slice by slice and writes every slice to sink
// as soon as it is rendered. The sink is not closed.
func Play(c *Composition, sink AudioSink, sampleRate float64) error {
	return c.Snapshot().Stream(sampleRate, func(index int, samples []float64) error {
		if len(samples) == 0 {
			return nil
		}
		if err := sink.WriteAudio(vek32.FromFloat64(samples)); err != nil {
			return fmt.Errorf("could not play slice %d: %w", index, err)
		}
		return nil
	})
}
