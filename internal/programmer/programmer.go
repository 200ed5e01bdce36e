// Package programmer uploads firmware images to AVR and ARM boards by
// driving external programmer tools through a runner.Runner.
package programmer

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/flashwatch/internal/runner"
)

// Family identifies a target chip family.
type Family int

const (
	AVR Family = iota
	ARM
)

func (f Family) String() string {
	switch f {
	case AVR:
		return "avr"
	case ARM:
		return "arm"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// ParseFamily parses "avr" or "arm", case-insensitively.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(s) {
	case "avr":
		return AVR, nil
	case "arm", "sam":
		return ARM, nil
	}
	return 0, fmt.Errorf("unknown target family %q", s)
}

// Job describes one upload. MCU, ExtraArgs and EEPROMSettings are only used
// by AVR targets.
type Job struct {
	Family         Family
	Binary         string
	MCU            string
	ExtraArgs      []string
	EEPROMSettings string
}

// Programmer writes a job's images to the board.
type Programmer interface {
	Upload(job Job) error
}

// Dumper is implemented by programmers that can read the board's EEPROM
// back into a local file.
type Dumper interface {
	Dump(job Job) (string, error)
}

// Resetter forces a board into its bootloader.
type Resetter interface {
	Touch(device string) error
}

// Options configures a Programmer.
type Options struct {
	Runner runner.Runner
	Logger logrus.FieldLogger

	// Port is the identifier handed to the upload tool, for example
	// "arduino" or "ttyACM0". Device is the node the reset touch opens.
	Port   string
	Device string

	Avrdude  string
	Bossac   string
	DumpFile string

	Resetter        Resetter
	BootloaderDelay time.Duration
	Sleep           func(time.Duration)
}

// New returns the Programmer for family.
func New(family Family, opts Options) (Programmer, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("programmer: runner is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	switch family {
	case AVR:
		return NewAVR(opts), nil
	case ARM:
		if opts.Resetter == nil {
			return nil, fmt.Errorf("programmer: arm targets need a resetter")
		}
		return NewARM(opts), nil
	}
	return nil, fmt.Errorf("programmer: unsupported family %s", family)
}
