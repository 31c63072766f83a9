package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vsariola/slicetone"
	"github.com/vsariola/slicetone/midifile"
)

// BinaryExtension is the file extension of the binary composition format.
const BinaryExtension = ".tsl"

// ReadComposition reads a composition, picking the format from the file
// extension: .tsl (binary), .yml/.yaml, .json or .mid/.midi. Other files are
// tried as binary, then .json, then .yml. midiOpts is used only for MIDI
// files.
func ReadComposition(filename string, midiOpts midifile.Options) (*slicetone.Composition, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".mid" || ext == ".midi" {
		return midifile.ImportFile(filename, midiOpts)
	}
	inputBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read file %v: %w", filename, err)
	}
	var c slicetone.Composition
	switch ext {
	case BinaryExtension:
		return slicetone.ReadComposition(bytes.NewReader(inputBytes))
	case ".json":
		if err := json.Unmarshal(inputBytes, &c); err != nil {
			return nil, fmt.Errorf("could not parse %v: %w", filename, err)
		}
		return decoded(filename, &c)
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(inputBytes, &c); err != nil {
			return nil, fmt.Errorf("could not parse %v: %w", filename, err)
		}
		return decoded(filename, &c)
	}
	ret, errBin := slicetone.ReadComposition(bytes.NewReader(inputBytes))
	if errBin == nil {
		return ret, nil
	}
	errJSON := json.Unmarshal(inputBytes, &c)
	if errJSON == nil {
		return decoded(filename, &c)
	}
	if errYaml := yaml.Unmarshal(inputBytes, &c); errYaml != nil {
		return nil, fmt.Errorf("the composition could not be parsed as binary (%v), .json (%v) or .yml (%v)", errBin, errJSON, errYaml)
	}
	return decoded(filename, &c)
}

// decoded checks that a text document actually held a composition; an empty
// or null document leaves c as the zero value, which has no slice duration.
func decoded(filename string, c *slicetone.Composition) (*slicetone.Composition, error) {
	if c.SliceDuration() == 0 {
		return nil, fmt.Errorf("%w: %v does not contain a composition", slicetone.ErrMalformedData, filename)
	}
	return c, nil
}

// OutputPath returns where to write the output with the given extension for
// an input file: the input's base name in dir, or in the working directory
// when dir is empty. dir and its parents are created if needed.
func OutputPath(filename, dir, extension string) (string, error) {
	_, name := filepath.Split(filename)
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get working directory, specify the output directory explicitly: %w", err)
		}
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("could not create output directory %v: %w", dir, err)
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
	return filepath.Join(dir, name), nil
}

// Inputs expands directories to the composition files they contain.
func Inputs(params []string) ([]string, error) {
	var ret []string
	for _, param := range params {
		info, err := os.Stat(param)
		if err != nil || !info.IsDir() {
			ret = append(ret, param)
			continue
		}
		for _, pattern := range []string{"*" + BinaryExtension, "*.yml", "*.yaml", "*.json", "*.mid"} {
			files, err := filepath.Glob(filepath.Join(param, pattern))
			if err != nil {
				return nil, fmt.Errorf("could not glob the path %v: %w", param, err)
			}
			ret = append(ret, files...)
		}
	}
	return ret, nil
}
