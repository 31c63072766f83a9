package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/slicetone"
)

type OtoContext struct {
	context *oto.Context
}

// OtoOutput feeds the samples written with WriteAudio to an oto player
// through a pipe; WriteAudio blocks until the player has pulled the samples.
type OtoOutput struct {
	player    *oto.Player
	pipe      *io.PipeWriter
	tmpBuffer []byte
}

const drainPollInterval = 10 * time.Millisecond

// NewContext creates a mono, 16-bit oto context. Only one oto context can
// exist in a process.
func NewContext(sampleRate int) (*OtoContext, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	context, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context}, nil
}

func (c *OtoContext) Output() slicetone.AudioSink {
	r, w := io.Pipe()
	player := c.context.NewPlayer(r)
	player.Play()
	return &OtoOutput{player: player, pipe: w, tmpBuffer: make([]byte, 0)}
}

// Close suspends the audio device; oto contexts cannot be disposed.
func (c *OtoContext) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *OtoOutput) WriteAudio(floatBuffer []float32) error {
	// we reuse the old capacity tmpBuffer by setting its length to zero. then,
	// we save the tmpBuffer so we can reuse it next time
	o.tmpBuffer = FloatBufferTo16BitLE(floatBuffer, o.tmpBuffer[:0])
	if _, err := o.pipe.Write(o.tmpBuffer); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

// Close waits until everything written has been played and disposes of the
// player.
func (o *OtoOutput) Close() error {
	o.pipe.Close()
	for o.player.IsPlaying() {
		time.Sleep(drainPollInterval)
	}
	o.player.Close()
	return nil
}
