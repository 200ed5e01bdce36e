package programmer

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/flashwatch/internal/runner"
)

// ARMProgrammer programs SAM based boards with bossac. The board exposes a single
// virtual serial port, so the upload starts with a reset touch that drops it
// into the bootloader.
type ARMProgrammer struct {
	runner   runner.Runner
	log      logrus.FieldLogger
	bossac   string
	port     string
	device   string
	resetter Resetter
	delay    time.Duration
	sleep    func(time.Duration)
}

// NewARM returns an ARM programmer.
func NewARM(opts Options) *ARMProgrammer {
	bossac := opts.Bossac
	if bossac == "" {
		bossac = "bossac"
	}
	port := opts.Port
	if port == "" {
		port = "arduino"
	}
	device := opts.Device
	if device == "" {
		device = "/dev/" + port
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ARMProgrammer{
		runner:   opts.Runner,
		log:      log.WithField("family", ARM.String()),
		bossac:   bossac,
		port:     port,
		device:   device,
		resetter: opts.Resetter,
		delay:    opts.BootloaderDelay,
		sleep:    sleep,
	}
}

// Upload flashes job.Binary. It tries the reset handshake, then a direct
// upload that leaves the control lines alone (the port may already be in
// bootloader mode), then the handshake once more.
func (a *ARMProgrammer) Upload(job Job) error {
	if job.Binary == "" {
		return &JobError{Field: "binary"}
	}
	return a.policy(job).Run()
}

func (a *ARMProgrammer) policy(job Job) Policy {
	handshake := Strategy{Name: "reset-handshake", Run: func() error { return a.handshakeUpload(job) }}
	direct := Strategy{Name: "direct", Run: func() error { return a.directUpload(job) }}
	return Policy{
		Strategies: []Strategy{handshake, direct, handshake},
		Logger:     a.log,
	}
}

func (a *ARMProgrammer) handshakeUpload(job Job) error {
	a.log.WithField("device", a.device).Info("resetting board into bootloader")
	if err := a.resetter.Touch(a.device); err != nil {
		return &HandshakeError{Device: a.device, Err: err}
	}
	a.sleep(a.delay)
	return a.runner.Run(a.bossac, "--port="+a.port, "-e", "-w", "-b", "-R", job.Binary)
}

func (a *ARMProgrammer) directUpload(job Job) error {
	return a.runner.Run(a.bossac, "--port="+a.port, "-U", "false", "-e", "-w", "-b", job.Binary)
}
