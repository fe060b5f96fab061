// Package loader reads instruction images for the simulator: raw binary
// files and hex listings with one 32-bit word per line.
package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Program is a loaded instruction image ready to be placed in simulated
// memory.
type Program struct {
	// EntryPoint is the address the image is loaded at and where execution
	// begins.
	EntryPoint uint64
	// Image contains the instruction words, little-endian.
	Image []byte
}

// Load reads the image at path. Files ending in .hex or .txt are parsed as
// hex listings; everything else is taken as a raw little-endian binary.
func Load(path string) (*Program, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if strings.HasSuffix(path, ".hex") || strings.HasSuffix(path, ".txt") {
		prog, err := ParseHex(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return prog, nil
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: empty image", path)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%s: image size %d is not word-aligned",
			path, len(raw))
	}
	return &Program{Image: raw}, nil
}

// ParseHex parses a hex listing: one 32-bit word per line, blank lines and
// # comments ignored. A line of the form "@1000" sets the load address; it
// may appear once, before any word.
func ParseHex(src string) (*Program, error) {
	prog := &Program{}
	for i, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "@") {
			if len(prog.Image) > 0 {
				return nil, fmt.Errorf(
					"line %d: load address after instruction words", i+1)
			}
			addr, err := strconv.ParseUint(line[1:], 16, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad load address %q", i+1, line)
			}
			prog.EntryPoint = addr
			continue
		}

		word, err := strconv.ParseUint(strings.TrimPrefix(line, "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad hex word %q", i+1, line)
		}
		prog.Image = append(prog.Image,
			byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
	}

	if len(prog.Image) == 0 {
		return nil, fmt.Errorf("no instruction words")
	}
	return prog, nil
}
