package app

import (
	"fmt"

	"github.com/buckleypaul/flashwatch/internal/programmer"
)

// Modes.
const (
	ModeUpload  = "upload"
	ModeRun     = "run"
	ModeDump    = "dump"
	ModeWatch   = "watch"
	ModeMonitor = "monitor"
	ModePorts   = "ports"
	ModeHistory = "history"
	ModeConfig  = "config"
)

// Args are the positional invocation arguments:
//
//	mode exe support_dir runlog pattern success_pattern [family args]
//
// AVR family args are "mcu hex_file eeprom_settings extra_flags...", ARM
// family args are "binary".
type Args struct {
	Mode       string
	Exe        string // accepted for compatibility, unused
	SupportDir string
	RunLog     string
	Pattern    string
	Success    string
	Job        programmer.Job
}

// UsageError reports malformed positional arguments.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// ParseArgs parses positional arguments for family.
func ParseArgs(family programmer.Family, pos []string) (Args, error) {
	if len(pos) == 0 {
		return Args{}, &UsageError{Msg: "missing mode"}
	}
	args := Args{Mode: pos[0], Job: programmer.Job{Family: family}}

	// Unknown modes are reported by the dispatcher, not here.
	switch args.Mode {
	case ModeUpload, ModeRun, ModeDump, ModeWatch:
	default:
		return args, nil
	}

	if len(pos) < 6 {
		return args, &UsageError{Msg: fmt.Sprintf("%s: expected at least 6 arguments, got %d", args.Mode, len(pos))}
	}
	args.Exe = pos[1]
	args.SupportDir = pos[2]
	args.RunLog = pos[3]
	args.Pattern = pos[4]
	args.Success = pos[5]
	rest := pos[6:]

	if args.Mode == ModeWatch {
		return args, nil
	}

	switch family {
	case programmer.AVR:
		if len(rest) < 3 {
			return args, &UsageError{Msg: "avr: expected mcu, hex file and eeprom settings"}
		}
		args.Job.MCU = rest[0]
		args.Job.Binary = rest[1]
		args.Job.EEPROMSettings = rest[2]
		args.Job.ExtraArgs = append([]string(nil), rest[3:]...)
	case programmer.ARM:
		if len(rest) < 1 {
			return args, &UsageError{Msg: "arm: expected binary"}
		}
		args.Job.Binary = rest[0]
	}
	return args, nil
}
