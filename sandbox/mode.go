package sandbox

import (
	"errors"
	"fmt"
)

// Mode selects how the interpreter treats the source file.
type Mode string

const (
	ModeRun         Mode = "run"
	ModeBytecode    Mode = "bytecode"
	ModeDisassemble Mode = "disassemble"
)

var (
	// ErrUnknownMode is returned for a mode outside the supported set.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrModeNotImplemented is returned for a supported mode that has no
	// interpreter flag configured.
	ErrModeNotImplemented = errors.New("mode not implemented")
)

// ParseMode maps request text to a Mode. Empty input means run; anything
// else must match a mode name exactly.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeRun, nil
	case ModeRun, ModeBytecode, ModeDisassemble:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// ModeFlags holds the interpreter flag for each mode.
type ModeFlags struct {
	Run         string
	Bytecode    string
	Disassemble string
}

// Flag returns the configured flag for m.
func (f ModeFlags) Flag(m Mode) (string, error) {
	var flag string
	switch m {
	case ModeRun:
		flag = f.Run
	case ModeBytecode:
		flag = f.Bytecode
	case ModeDisassemble:
		flag = f.Disassemble
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
	}
	if flag == "" {
		return "", fmt.Errorf("%w: %s", ErrModeNotImplemented, m)
	}
	return flag, nil
}

// Supports reports whether m can be executed with these flags.
func (f ModeFlags) Supports(m Mode) bool {
	_, err := f.Flag(m)
	return err == nil
}

// Args builds the interpreter argument vector for sourcePath.
func (f ModeFlags) Args(m Mode, sourcePath string) ([]string, error) {
	flag, err := f.Flag(m)
	if err != nil {
		return nil, err
	}
	return []string{flag, sourcePath}, nil
}
