package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vsariola/slicetone"
	"github.com/vsariola/slicetone/cmd"
	"github.com/vsariola/slicetone/listing"
	"github.com/vsariola/slicetone/midifile"
	"github.com/vsariola/slicetone/version"
)

func main() {
	safe := flag.Bool("n", false, "Never overwrite files; if file already exists and would be overwritten, give an error.")
	list := flag.Bool("l", false, "Do not write files; just list files that would change instead.")
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	binaryOut := flag.Bool("b", false, "Output the composition as binary "+cmd.BinaryExtension+" file.")
	jsonOut := flag.Bool("j", false, "Output the composition as .json file.")
	yamlOut := flag.Bool("y", false, "Output the composition as .yml file.")
	textOut := flag.Bool("t", false, "Output a human readable listing of the composition as .txt file.")
	tmplFile := flag.String("template", "", "When listing, use the text/template in this file instead of the standard listing.")
	outDir := flag.String("o", "", "Directory where to write the output. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	sliceDuration := flag.Float64("slice", 1.0/60, "Slice duration in seconds for compositions imported from MIDI files.")
	kind := flag.String("kind", "square", "Waveform for notes imported from MIDI files: square, sawtooth, triangle or sine.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*jsonOut && !*yamlOut && !*textOut {
		*binaryOut = true
	}
	midiOpts := midifile.DefaultOptions()
	midiOpts.SliceDuration = *sliceDuration
	var err error
	if midiOpts.DefaultKind, err = slicetone.ParseWaveKind(*kind); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	lister := listing.New()
	if *tmplFile != "" {
		text, err := os.ReadFile(*tmplFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not read template: %v\n", err)
			os.Exit(1)
		}
		if lister, err = listing.NewFromTemplate(*tmplFile, string(text)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	output := func(filename string, extension string, contents []byte) error {
		if *stdout {
			os.Stdout.Write(contents)
			return nil
		}
		f, err := cmd.OutputPath(filename, *outDir, extension)
		if err != nil {
			return err
		}
		original, err := os.ReadFile(f)
		if err == nil {
			if bytes.Equal(original, contents) {
				return nil // no need to update
			}
			if !*list && *safe {
				return fmt.Errorf("file %v would be overwritten", f)
			}
		}
		if *list {
			fmt.Println(f)
			return nil
		}
		if err := os.WriteFile(f, contents, 0644); err != nil {
			return fmt.Errorf("could not write file %v: %w", f, err)
		}
		return nil
	}
	process := func(filename string) error {
		composition, err := cmd.ReadComposition(filename, midiOpts)
		if err != nil {
			return err
		}
		if *binaryOut {
			data, err := composition.MarshalBinary()
			if err != nil {
				return fmt.Errorf("could not encode the composition: %w", err)
			}
			if err := output(filename, cmd.BinaryExtension, data); err != nil {
				return fmt.Errorf("error outputting %v file: %w", cmd.BinaryExtension, err)
			}
		}
		if *jsonOut {
			data, err := json.MarshalIndent(composition, "", "  ")
			if err != nil {
				return fmt.Errorf("could not marshal the composition as json file: %w", err)
			}
			if err := output(filename, ".json", data); err != nil {
				return fmt.Errorf("error outputting json file: %w", err)
			}
		}
		if *yamlOut {
			data, err := yaml.Marshal(composition)
			if err != nil {
				return fmt.Errorf("could not marshal the composition as yaml file: %w", err)
			}
			if err := output(filename, ".yml", data); err != nil {
				return fmt.Errorf("error outputting yaml file: %w", err)
			}
		}
		if *textOut {
			var buf bytes.Buffer
			if err := lister.Write(&buf, composition); err != nil {
				return err
			}
			if err := output(filename, ".txt", buf.Bytes()); err != nil {
				return fmt.Errorf("error outputting listing: %w", err)
			}
		}
		return nil
	}
	files, err := cmd.Inputs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	retval := 0
	for _, file := range files {
		if err := process(file); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Slicetone command line utility for converting compositions between the binary, .yml, .json and .mid formats.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
