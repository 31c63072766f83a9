// Package midifile imports Standard MIDI Files into compositions. Every note
// becomes one tone on each slice it sounds in; tempo changes are honoured.
package midifile

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/vsariola/slicetone"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const defaultBPM = 120

type (
	// Options controls the import.
	Options struct {
		// SliceDuration of the created composition, in seconds.
		SliceDuration float64
		// DefaultKind is the waveform for channels missing from ChannelKinds.
		DefaultKind slicetone.WaveKind
		// ChannelKinds maps MIDI channels (0-15) to waveforms.
		ChannelKinds map[uint8]slicetone.WaveKind
	}

	tempoChange struct {
		tick int64
		bpm  float64
	}

	note struct {
		channel, key, velocity uint8
		start, end             int64 // absolute ticks
		order                  int
	}
)

// DefaultOptions uses 1/60 s slices and square waves.
func DefaultOptions() Options {
	return Options{SliceDuration: 1.0 / 60, DefaultKind: slicetone.Square}
}

func ImportFile(path string, opts Options) (*slicetone.Composition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open midi file: %w", err)
	}
	defer f.Close()
	return Import(f, opts)
}

// Import reads a Standard MIDI File from r and converts its notes.
func Import(r io.Reader, opts Options) (*slicetone.Composition, error) {
	c, err := slicetone.NewComposition(opts.SliceDuration)
	if err != nil {
		return nil, err
	}
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse midi file: %v", slicetone.ErrMalformedData, err)
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, fmt.Errorf("%w: only metric time formats are supported, got %v", slicetone.ErrMalformedData, s.TimeFormat)
	}
	tempos, notes := collect(s)
	timeAt := secondsAt(tempos, float64(ticks))
	for _, n := range notes {
		kind, ok := opts.ChannelKinds[n.channel]
		if !ok {
			kind = opts.DefaultKind
		}
		amplitude := int(math.Round(float64(n.velocity) * 255 / 127))
		tone, err := slicetone.NewTone(kind, int(n.key), amplitude)
		if err != nil {
			return nil, err
		}
		first := int(math.Floor(timeAt(n.start) / opts.SliceDuration))
		last := int(math.Ceil(timeAt(n.end)/opts.SliceDuration)) - 1
		if last < first {
			last = first
		}
		for i := first; i <= last; i++ {
			if err := c.AddTone(i, tone); err != nil {
				return nil, fmt.Errorf("note %d on channel %d: %w", n.key, n.channel, err)
			}
		}
	}
	return c, nil
}

// collect returns the tempo changes and the notes of all tracks, both sorted
// by time. Notes still sounding at the end of their track end there.
func collect(s *smf.SMF) ([]tempoChange, []note) {
	var tempos []tempoChange
	var notes []note
	seq := 0
	for _, track := range s.Tracks {
		var tick int64
		open := map[[2]uint8][]note{}
		for _, ev := range track {
			tick += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				tempos = append(tempos, tempoChange{tick: tick, bpm: bpm})
				continue
			}
			msg := midi.Message(ev.Message)
			var channel, key, velocity uint8
			switch {
			case msg.GetNoteStart(&channel, &key, &velocity):
				k := [2]uint8{channel, key}
				open[k] = append(open[k], note{channel: channel, key: key, velocity: velocity, start: tick, order: seq})
				seq++
			case msg.GetNoteEnd(&channel, &key):
				k := [2]uint8{channel, key}
				if stack := open[k]; len(stack) > 0 {
					n := stack[0]
					n.end = tick
					notes = append(notes, n)
					open[k] = stack[1:]
				}
			}
		}
		for _, stack := range open {
			for _, n := range stack {
				n.end = tick
				notes = append(notes, n)
			}
		}
	}
	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].tick < tempos[j].tick })
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].start != notes[j].start {
			return notes[i].start < notes[j].start
		}
		return notes[i].order < notes[j].order
	})
	return tempos, notes
}

// secondsAt returns a function converting absolute ticks to seconds,
// integrating over the tempo changes. The tempo is 120 BPM until the first
// change.
func secondsAt(tempos []tempoChange, ticksPerQuarter float64) func(int64) float64 {
	return func(tick int64) float64 {
		seconds := 0.0
		prevTick, bpm := int64(0), float64(defaultBPM)
		for _, t := range tempos {
			if t.tick >= tick {
				break
			}
			seconds += float64(t.tick-prevTick) * 60 / (bpm * ticksPerQuarter)
			prevTick, bpm = t.tick, t.bpm
		}
		return seconds + float64(tick-prevTick)*60/(bpm*ticksPerQuarter)
	}
}
