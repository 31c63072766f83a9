// Package listing renders compositions as text through text/template, with
// the sprig function library available to the templates.
package listing

import (
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/vsariola/slicetone"
)

// DefaultTemplate lists every populated slice with its start time and tones.
const DefaultTemplate = `{{ "=" | repeat 60 }}
slice duration {{ .SliceDuration | printf "%g" }} s, {{ .SliceCount }} slices, {{ .TotalDuration | printf "%.3f" }} s
{{ "=" | repeat 60 }}
{{- range .Slices }}
{{ .Index | printf "%6d" }} {{ .Start | printf "%9.3f" }}s {{ len .Tones | printf "%3d" }} tones
{{- range .Tones }}
       {{ .Kind | toString | lower | printf "%-8s" }} pitch {{ .Pitch | printf "%3d" }} volume {{ .Amplitude | printf "%3d" }}
{{- end }}
{{- end }}
`

type (
	Lister struct {
		Template *template.Template
	}

	// Listing is the data passed to the template.
	Listing struct {
		SliceDuration float64
		SliceCount    int
		TotalDuration float64
		Slices        []Slice
	}

	// Slice is one populated slice; Start is in seconds.
	Slice struct {
		Index int
		Start float64
		Tones []slicetone.Tone
	}
)

// New returns a Lister using DefaultTemplate.
func New() *Lister {
	return &Lister{Template: template.Must(parse("default", DefaultTemplate))}
}

// NewFromTemplate parses a custom template text.
func NewFromTemplate(name, text string) (*Lister, error) {
	tmpl, err := parse(name, text)
	if err != nil {
		return nil, fmt.Errorf(`could not parse template "%v": %w`, name, err)
	}
	return &Lister{Template: tmpl}, nil
}

func parse(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
}

// NewListing collects the data of a consistent snapshot of c.
func NewListing(c *slicetone.Composition) Listing {
	s := c.Snapshot()
	l := Listing{
		SliceDuration: s.SliceDuration(),
		SliceCount:    s.SliceCount(),
		TotalDuration: s.TotalDuration(),
	}
	for _, i := range s.PopulatedSlices() {
		l.Slices = append(l.Slices, Slice{
			Index: i,
			Start: float64(i) * s.SliceDuration(),
			Tones: s.Slice(i).Tones(),
		})
	}
	return l
}

// Write executes the template for c into w.
func (l *Lister) Write(w io.Writer, c *slicetone.Composition) error {
	if err := l.Template.Execute(w, NewListing(c)); err != nil {
		return fmt.Errorf(`could not execute template "%v": %w`, l.Template.Name(), err)
	}
	return nil
}
