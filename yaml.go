package slicetone

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type (
	// compositionDoc is the human-editable form of a Composition, used for
	// both .yml and .json files. Only populated slices are listed.
	compositionDoc struct {
		SliceDuration float64    `yaml:"sliceduration" json:"sliceDuration"`
		Slices        []sliceDoc `yaml:"slices,omitempty" json:"slices,omitempty"`
	}

	sliceDoc struct {
		Index int       `yaml:"index" json:"index"`
		Tones []toneDoc `yaml:"tones,flow" json:"tones"`
	}

	toneDoc struct {
		Kind      string `yaml:"kind" json:"kind"`
		Pitch     int    `yaml:"pitch" json:"pitch"`
		Amplitude int    `yaml:"amplitude" json:"amplitude"`
	}
)

func (c *Composition) doc() compositionDoc {
	s := c.Snapshot()
	d := compositionDoc{SliceDuration: s.sliceDuration, Slices: make([]sliceDoc, 0, len(s.indices))}
	for _, i := range s.indices {
		p := s.slices[i]
		tones := make([]toneDoc, p.Len())
		for j := range tones {
			t := p.At(j)
			kind, _ := t.Kind().MarshalText()
			tones[j] = toneDoc{Kind: string(kind), Pitch: t.Pitch(), Amplitude: t.Amplitude()}
		}
		d.Slices = append(d.Slices, sliceDoc{Index: i, Tones: tones})
	}
	return d
}

func (d compositionDoc) composition() (*Composition, error) {
	c, err := NewComposition(d.SliceDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	for _, s := range d.Slices {
		for j, td := range s.Tones {
			kind, err := ParseWaveKind(td.Kind)
			if err != nil {
				return nil, fmt.Errorf("%w: slice %d, tone %d: %v", ErrMalformedData, s.Index, j, err)
			}
			t, err := NewTone(kind, td.Pitch, td.Amplitude)
			if err != nil {
				return nil, fmt.Errorf("%w: slice %d, tone %d: %v", ErrMalformedData, s.Index, j, err)
			}
			if err := c.AddTone(s.Index, t); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
			}
		}
	}
	return c, nil
}

func (c *Composition) replace(d *Composition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sliceDuration = d.sliceDuration
	c.slices = d.slices
	c.indices = d.indices
}

func (c *Composition) MarshalYAML() (interface{}, error) {
	return c.doc(), nil
}

// UnmarshalYAML replaces the contents of c; on error c is left as it was.
func (c *Composition) UnmarshalYAML(value *yaml.Node) error {
	var d compositionDoc
	if err := value.Decode(&d); err != nil {
		return err
	}
	n, err := d.composition()
	if err != nil {
		return err
	}
	c.replace(n)
	return nil
}

func (c *Composition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.doc())
}

// UnmarshalJSON replaces the contents of c; on error c is left as it was.
func (c *Composition) UnmarshalJSON(data []byte) error {
	var d compositionDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	n, err := d.composition()
	if err != nil {
		return err
	}
	c.replace(n)
	return nil
}
