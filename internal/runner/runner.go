// Package runner executes external tools, relaying their output line by line
// to the console and to a run log that is recreated on every call.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/flashwatch/internal/ui"
)

// Runner runs one external command to completion.
type Runner interface {
	Run(argv ...string) error
}

// ExitError reports an external command that exited non-zero.
type ExitError struct {
	Argv []string
	Code int
}

func (e *ExitError) Error() string {
	if len(e.Argv) == 0 {
		return fmt.Sprintf("exited with status %d", e.Code)
	}
	return fmt.Sprintf("%s exited with status %d", e.Argv[0], e.Code)
}

// ExitCode maps an error returned by Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Exec runs commands on the host.
type Exec struct {
	LogPath string
	Stdout  io.Writer
	Env     []string // nil inherits the parent environment
	Dir     string
	Logger  logrus.FieldLogger
}

// Run starts argv with stderr merged into stdout, copies every output line
// to e.Stdout and to the run log, and waits for the process to exit.
func (e *Exec) Run(argv ...string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	stdout := e.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	log := e.logger().WithField("cmd", argv[0])

	fmt.Fprintln(stdout, ui.Command(argv))

	logFile, err := e.createLog()
	if err != nil {
		return err
	}
	defer logFile.Close()

	start := time.Now()
	cmd := exec.Command(lookPathEnv(argv[0], e.Env), argv[1:]...)
	if e.Env != nil {
		cmd.Env = e.Env
	}
	if e.Dir != "" {
		cmd.Dir = e.Dir
	}

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	cmd.Stderr = cmd.Stdout // merge stderr into stdout

	log.WithField("args", strings.Join(argv[1:], " ")).Debug("starting")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	out := io.MultiWriter(stdout, logFile)
	reader := bufio.NewReader(pipe)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, err := out.Write(line); err != nil {
				log.WithError(err).Warn("relaying output")
			}
		}
		if readErr != nil {
			break
		}
	}

	err = cmd.Wait()
	log = log.WithField("duration", time.Since(start).Round(time.Millisecond))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if code < 0 {
				code = 1 // killed by a signal
			}
			log.WithField("status", code).Debug("failed")
			return &ExitError{Argv: append([]string(nil), argv...), Code: code}
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	log.Debug("done")
	return nil
}

func (e *Exec) createLog() (*os.File, error) {
	if e.LogPath == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	p := paths.New(e.LogPath)
	if err := p.Parent().MkdirAll(); err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}
	f, err := p.Create()
	if err != nil {
		return nil, fmt.Errorf("run log: %w", err)
	}
	return f, nil
}

func (e *Exec) logger() logrus.FieldLogger {
	if e.Logger == nil {
		return logrus.StandardLogger()
	}
	return e.Logger
}
