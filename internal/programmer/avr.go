package programmer

import (
	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/flashwatch/internal/runner"
)

// AVRProgrammer programs AVR chips with avrdude: EEPROM settings first, then flash.
type AVRProgrammer struct {
	runner   runner.Runner
	log      logrus.FieldLogger
	avrdude  string
	dumpFile string
}

// NewAVR returns an AVR programmer.
func NewAVR(opts Options) *AVRProgrammer {
	avrdude := opts.Avrdude
	if avrdude == "" {
		avrdude = "avrdude"
	}
	dumpFile := opts.DumpFile
	if dumpFile == "" {
		dumpFile = "eeprom.bin"
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AVRProgrammer{
		runner:   opts.Runner,
		log:      log.WithField("family", AVR.String()),
		avrdude:  avrdude,
		dumpFile: dumpFile,
	}
}

// Upload writes the EEPROM settings image and then the flash image. The
// flash is never written if the EEPROM step fails.
func (a *AVRProgrammer) Upload(job Job) error {
	if err := validateAVR(job, true); err != nil {
		return err
	}

	a.log.WithField("image", job.EEPROMSettings).Info("writing eeprom")
	if err := a.runner.Run(a.command(job, "eeprom:w:"+job.EEPROMSettings+":r")...); err != nil {
		return err
	}

	a.log.WithField("image", job.Binary).Info("writing flash")
	return a.runner.Run(a.command(job, "flash:w:"+job.Binary)...)
}

// Dump reads the EEPROM into the dump file and returns its path.
func (a *AVRProgrammer) Dump(job Job) (string, error) {
	if err := validateAVR(job, false); err != nil {
		return "", err
	}

	out := paths.New(a.dumpFile)
	if err := out.Parent().MkdirAll(); err != nil {
		return "", err
	}
	a.log.WithField("file", out.String()).Info("reading eeprom")
	if err := a.runner.Run(a.command(job, "eeprom:r:"+out.String()+":r")...); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (a *AVRProgrammer) command(job Job, memoryOp string) []string {
	argv := make([]string, 0, len(job.ExtraArgs)+5)
	argv = append(argv, a.avrdude, "-p", job.MCU)
	argv = append(argv, job.ExtraArgs...)
	return append(argv, "-U", memoryOp)
}

func validateAVR(job Job, upload bool) error {
	if job.MCU == "" {
		return &JobError{Field: "mcu"}
	}
	if !upload {
		return nil
	}
	if job.Binary == "" {
		return &JobError{Field: "hex file"}
	}
	if job.EEPROMSettings == "" {
		return &JobError{Field: "eeprom settings"}
	}
	return nil
}
