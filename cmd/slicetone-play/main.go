package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/vsariola/slicetone"
	"github.com/vsariola/slicetone/cmd"
	"github.com/vsariola/slicetone/midifile"
	"github.com/vsariola/slicetone/oto"
	"github.com/vsariola/slicetone/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	play := flag.Bool("p", false, "Play the input compositions (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered composition as .raw file.")
	wavOut := flag.Bool("w", false, "Output the rendered composition as .wav file.")
	format := flag.String("f", "s16", "Sample format of the output files: u8, s16, s32 or f32.")
	wrap := flag.Bool("wrap", false, "Let samples outside [-1,1] wrap around when converting to integers, like old versions did, instead of clamping them.")
	sampleRate := flag.Float64("rate", 48000, "Sample rate, in Hz.")
	sliceDuration := flag.Float64("slice", 1.0/60, "Slice duration in seconds for compositions imported from MIDI files.")
	workers := flag.Int("j", 0, "Number of goroutines rendering .raw output. 0 means one per CPU.")
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
	if !*rawOut && !*wavOut {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	sampleFormat, err := slicetone.ParseSampleFormat(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	conversion := slicetone.PCMClamp
	if *wrap {
		conversion = slicetone.PCMWrap
	}
	midiOpts := midifile.DefaultOptions()
	midiOpts.SliceDuration = *sliceDuration
	var audioContext slicetone.AudioContext
	if *play {
		audioContext, err = oto.NewContext(int(*sampleRate))
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
	}
	process := func(filename string) error {
		composition, err := cmd.ReadComposition(filename, midiOpts)
		if err != nil {
			return err
		}
		if *wavOut {
			f, err := cmd.OutputPath(filename, *directory, ".wav")
			if err != nil {
				return err
			}
			opts := slicetone.ExportOptions{SampleRate: *sampleRate, Format: sampleFormat, Conversion: conversion}
			if err := composition.ExportWavWithOptions(f, opts); err != nil {
				return fmt.Errorf("could not write .wav file %v: %w", f, err)
			}
			log.Printf("wrote %v (%.2f s)", f, composition.TotalDuration())
		}
		if *rawOut {
			buffer, err := composition.Render(*sampleRate, *workers)
			if err != nil {
				return fmt.Errorf("could not render: %w", err)
			}
			if peak := slicetone.Peak(buffer); peak > 1 {
				log.Printf("%v: peak level %.2f exceeds 1, samples will be %v", filename, peak, conversion)
			}
			raw, err := slicetone.Raw(buffer, sampleFormat, conversion)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %w", err)
			}
			f, err := cmd.OutputPath(filename, *directory, ".raw")
			if err != nil {
				return err
			}
			if err := os.WriteFile(f, raw, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %w", f, err)
			}
		}
		if *play {
			output := audioContext.Output()
			defer output.Close()
			if err := slicetone.Play(composition, output, *sampleRate); err != nil {
				return err
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
	if audioContext != nil {
		audioContext.Close()
	}
	os.Exit(retval)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Slicetone command line utility for playing and rendering compositions.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
