// Package app sequences the board programmer and the serial pattern watcher
// for one invocation and maps the outcome to a process exit status.
package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/flashwatch/internal/config"
	"github.com/buckleypaul/flashwatch/internal/programmer"
	"github.com/buckleypaul/flashwatch/internal/runner"
	"github.com/buckleypaul/flashwatch/internal/serial"
	"github.com/buckleypaul/flashwatch/internal/store"
	"github.com/buckleypaul/flashwatch/internal/ui"
	"github.com/buckleypaul/flashwatch/internal/watcher"
)

// BadModeError reports a mode this target cannot run.
type BadModeError struct {
	Mode string
}

func (e *BadModeError) Error() string {
	return fmt.Sprintf("Bad target %s.", e.Mode)
}

// Verifier watches a serial console for a run's end marker.
type Verifier interface {
	Run(spec watcher.Spec, tee io.Writer) (watcher.Result, error)
}

// App holds the collaborators of one invocation.
type App struct {
	Config     config.Config
	ConfigDir  string // where the config mode saves, usually the working directory
	Family     programmer.Family
	Programmer programmer.Programmer
	Runner     runner.Runner
	Verifier   Verifier
	Store      *store.Store // nil disables run history
	Stdout     io.Writer
	Logger     logrus.FieldLogger

	Monitor   func(device string, baudRate int) error
	ListPorts func() ([]serial.PortInfo, error)
}

// Run executes args.Mode and returns the process exit status.
func (a *App) Run(args Args) int {
	start := time.Now()
	log := a.logger().WithFields(logrus.Fields{"mode": args.Mode, "family": a.Family.String()})

	var (
		err    error
		result *watcher.Result
	)
	switch args.Mode {
	case ModeUpload:
		err = a.upload(args)
	case ModeRun:
		result, err = a.run(args)
	case ModeDump:
		err = a.dump(args)
	case ModeWatch:
		result, err = a.watch(args)
	case ModeMonitor:
		return a.monitor()
	case ModePorts:
		return a.ports()
	case ModeHistory:
		return a.history()
	case ModeConfig:
		return a.saveConfig()
	default:
		err = &BadModeError{Mode: args.Mode}
	}

	code := a.exitStatus(err, result)

	var badMode *BadModeError
	if errors.As(err, &badMode) {
		fmt.Fprintln(a.stdout(), badMode.Error())
		return code
	}

	if err != nil {
		log.WithError(err).WithField("status", code).Error("failed")
	}
	a.record(args, start, code, result, err)
	return code
}

// exitStatus maps an outcome to an exit status. Watcher failures of any
// kind are 1; failed external tools keep their own status.
func (a *App) exitStatus(err error, result *watcher.Result) int {
	if result != nil {
		if err != nil {
			return 1
		}
		return result.ExitCode
	}
	if err == nil {
		return 0
	}
	var chain *programmer.ChainError
	if errors.As(err, &chain) && chain.Last() != nil {
		err = chain.Last()
	}
	return runner.ExitCode(err)
}

func (a *App) upload(args Args) error {
	if err := checkFile("firmware", args.Job.Binary); err != nil {
		return err
	}
	if args.Job.Family == programmer.AVR {
		if err := checkFile("eeprom settings", args.Job.EEPROMSettings); err != nil {
			return err
		}
	}
	return a.Programmer.Upload(args.Job)
}

// run uploads and then watches. A failed upload is returned as is and no
// watch happens; any watch failure comes back with a non-nil result.
func (a *App) run(args Args) (*watcher.Result, error) {
	if err := a.upload(args); err != nil {
		return nil, err
	}
	return a.watch(args)
}

func (a *App) watch(args Args) (*watcher.Result, error) {
	spec, err := watcher.NewSpec(a.Config.Device(), a.Config.BaudRate, args.Pattern, args.Success,
		time.Duration(a.Config.Timeout))
	if err != nil {
		return &watcher.Result{ExitCode: 1}, err
	}
	if rt := time.Duration(a.Config.ReadTimeout); rt > 0 {
		spec.ReadTimeout = rt
	}

	tee, closeLog, err := a.consoleAndLog(args.RunLog)
	if err != nil {
		return &watcher.Result{ExitCode: 1}, err
	}
	defer closeLog()

	res, err := a.Verifier.Run(spec, tee)
	fmt.Fprintln(a.stdout())
	switch {
	case err != nil:
		fmt.Fprintln(a.stdout(), ui.Outcome(false, err.Error()))
	case !res.Succeeded:
		fmt.Fprintln(a.stdout(), ui.Outcome(false, "end marker found, success pattern not matched"))
	default:
		fmt.Fprintln(a.stdout(), ui.Outcome(true, ""))
	}
	return &res, err
}

func (a *App) dump(args Args) error {
	dumper, ok := a.Programmer.(programmer.Dumper)
	if !ok {
		return &BadModeError{Mode: args.Mode}
	}
	file, err := dumper.Dump(args.Job)
	if err != nil {
		return err
	}
	decoder := filepath.Join(args.SupportDir, "make", "dumpdecoder.py")
	return a.Runner.Run(decoder, file)
}

func (a *App) monitor() int {
	if a.Monitor == nil {
		fmt.Fprintln(a.stdout(), "monitor is not available")
		return 1
	}
	if err := a.Monitor(a.Config.Device(), a.Config.BaudRate); err != nil {
		a.logger().WithError(err).Error("monitor")
		return 1
	}
	return 0
}

func (a *App) ports() int {
	if a.ListPorts == nil {
		return 1
	}
	ports, err := a.ListPorts()
	if err != nil {
		a.logger().WithError(err).Error("listing serial ports")
		return 1
	}
	if len(ports) == 0 {
		fmt.Fprintln(a.stdout(), ui.DimStyle.Render("No serial ports found."))
		return 0
	}
	for _, p := range ports {
		line := ui.BoldStyle.Render(p.Name)
		if p.IsUSB {
			line += ui.DimStyle.Render(fmt.Sprintf("  usb %s:%s %s", p.VID, p.PID, p.SerialNumber))
			if p.Product != "" {
				line += " " + ui.AccentStyle.Render(p.Product)
			}
		}
		fmt.Fprintln(a.stdout(), line)
	}
	return 0
}

func (a *App) history() int {
	if a.Store == nil {
		fmt.Fprintln(a.stdout(), ui.DimStyle.Render("Run history is disabled."))
		return 0
	}
	runs, err := a.Store.LastRuns(20)
	if err != nil {
		a.logger().WithError(err).Error("reading run history")
		return 1
	}
	fmt.Fprintln(a.stdout(), ui.Title("Run history"))
	for _, r := range runs {
		status := ""
		if r.ExitCode != 0 {
			status = ui.WarnStyle.Render(fmt.Sprintf("exit %d", r.ExitCode))
		}
		fmt.Fprintf(a.stdout(), "%s %s %-6s %-3s %s %s %s\n",
			r.Timestamp.Format(time.DateTime), ui.Outcome(r.Success, ""), r.Mode, r.Family,
			r.Duration, ui.DimStyle.Render(r.Target), status)
	}
	return 0
}

// saveConfig writes the effective configuration, flag overrides included,
// so later invocations pick it up without flags.
func (a *App) saveConfig() int {
	dir := a.ConfigDir
	if dir == "" {
		dir = "."
	}
	if err := config.Save(a.Config, dir); err != nil {
		a.logger().WithError(err).Error("saving config")
		return 1
	}
	fmt.Fprintln(a.stdout(), ui.Title("Saved configuration"))
	fmt.Fprintln(a.stdout(), filepath.Join(dir, ".flashwatch", "config.json"))
	return 0
}

func (a *App) record(args Args, start time.Time, code int, result *watcher.Result, err error) {
	if a.Store == nil {
		return
	}
	rec := store.RunRecord{
		Mode:      args.Mode,
		Family:    a.Family.String(),
		Target:    args.Job.Binary,
		Timestamp: start,
		Success:   code == 0,
		ExitCode:  code,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
		LogFile:   args.RunLog,
	}
	if args.Mode == ModeDump {
		rec.Target = args.Job.MCU
	}
	if result != nil {
		rec.Output = result.Output
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if _, err := a.Store.AddRun(rec); err != nil {
		a.logger().WithError(err).Warn("recording run history")
	}
}

// consoleAndLog returns a writer that copies to stdout and to a freshly
// truncated run log.
func (a *App) consoleAndLog(runLog string) (io.Writer, func(), error) {
	if runLog == "" {
		return a.stdout(), func() {}, nil
	}
	p := paths.New(runLog)
	if err := p.Parent().MkdirAll(); err != nil {
		return nil, nil, fmt.Errorf("run log: %w", err)
	}
	f, err := p.Create()
	if err != nil {
		return nil, nil, fmt.Errorf("run log: %w", err)
	}
	return io.MultiWriter(a.stdout(), f), func() { f.Close() }, nil
}

func checkFile(what, path string) error {
	if path == "" {
		return nil
	}
	exists, err := paths.New(path).ExistCheck()
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, path, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", what, path, os.ErrNotExist)
	}
	return nil
}

func (a *App) stdout() io.Writer {
	if a.Stdout == nil {
		return os.Stdout
	}
	return a.Stdout
}

func (a *App) logger() logrus.FieldLogger {
	if a.Logger == nil {
		return logrus.StandardLogger()
	}
	return a.Logger
}
