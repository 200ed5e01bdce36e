// Package watcher verifies a boot by reading a serial console until an
// end-of-run marker appears, then checking the captured text against a
// stricter success pattern.
package watcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/buckleypaul/flashwatch/internal/serial"
)

var (
	// ErrPatternTimeout means the marker pattern was not seen in time.
	ErrPatternTimeout = errors.New("pattern not matched before timeout")
	// ErrStreamClosed means the console stopped producing data for good
	// before the marker pattern was seen.
	ErrStreamClosed = errors.New("serial stream closed before pattern matched")
)

// Spec configures one watch.
type Spec struct {
	Device      string
	BaudRate    int
	Pattern     *regexp.Regexp
	Success     *regexp.Regexp
	Timeout     time.Duration
	ReadTimeout time.Duration
}

// NewSpec compiles the marker and success patterns.
func NewSpec(device string, baudRate int, pattern, success string, timeout time.Duration) (Spec, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Spec{}, fmt.Errorf("marker pattern: %w", err)
	}
	ok, err := regexp.Compile(success)
	if err != nil {
		return Spec{}, fmt.Errorf("success pattern: %w", err)
	}
	return Spec{
		Device:      device,
		BaudRate:    baudRate,
		Pattern:     re,
		Success:     ok,
		Timeout:     timeout,
		ReadTimeout: timeout,
	}, nil
}

// Result is the outcome of one watch.
type Result struct {
	ExitCode  int
	Output    string
	Matched   bool
	Succeeded bool
}

type readTimeoutSetter interface {
	SetReadTimeout(t time.Duration) error
}

// Watch reads r until spec.Pattern matches the accumulated text or
// spec.Timeout elapses. Everything read is copied to tee. Result.Output
// holds the text up to and including the match.
func Watch(r io.Reader, spec Spec, tee io.Writer) (Result, error) {
	return watch(r, spec, tee, logrus.StandardLogger())
}

// watch is Watch with a logger for tee failures. A failing tee is reported
// once and does not stop the watch.
func watch(r io.Reader, spec Spec, tee io.Writer, log logrus.FieldLogger) (Result, error) {
	if tee == nil {
		tee = io.Discard
	}
	setter, _ := r.(readTimeoutSetter)
	deadline := time.Now().Add(spec.Timeout)

	var acc bytes.Buffer
	teeFailed := false
	chunk := make([]byte, 256)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Result{ExitCode: 1, Output: acc.String()}, ErrPatternTimeout
		}
		if setter != nil {
			rt := spec.ReadTimeout
			if rt <= 0 || rt > remaining {
				rt = remaining
			}
			if err := setter.SetReadTimeout(rt); err != nil {
				return Result{ExitCode: 1, Output: acc.String()}, fmt.Errorf("set read timeout: %w", err)
			}
		}

		n, err := r.Read(chunk)
		if n > 0 {
			if _, err := tee.Write(chunk[:n]); err != nil && !teeFailed {
				teeFailed = true
				log.WithError(err).Warn("copying console output")
			}
			acc.Write(chunk[:n])
			if loc := spec.Pattern.FindIndex(acc.Bytes()); loc != nil {
				return classify(string(acc.Bytes()[:loc[1]]), spec.Success), nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Result{ExitCode: 1, Output: acc.String()}, ErrStreamClosed
			}
			return Result{ExitCode: 1, Output: acc.String()}, fmt.Errorf("read serial: %w", err)
		}
	}
}

func classify(output string, success *regexp.Regexp) Result {
	res := Result{Output: output, Matched: true, Succeeded: CheckSuccess(output, success)}
	if !res.Succeeded {
		res.ExitCode = 1
	}
	return res
}

// CheckSuccess reports whether success matches at the start of text. It is
// a match, not a search: a success line preceded by other output does not
// count. A final $ may also match before a single trailing newline; a
// carriage return is ordinary text.
func CheckSuccess(text string, success *regexp.Regexp) bool {
	if success == nil {
		return true
	}
	if matchesAtStart(success, text) {
		return true
	}
	trimmed := strings.TrimSuffix(text, "\n")
	return trimmed != text && matchesAtStart(success, trimmed)
}

func matchesAtStart(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

// Opener opens a serial console.
type Opener func(device string, baudRate int, readTimeout time.Duration) (serial.Port, error)

// Watcher opens the console described by a Spec and watches it.
type Watcher struct {
	Open   Opener
	Logger logrus.FieldLogger
}

// New returns a Watcher on real serial ports.
func New(logger logrus.FieldLogger) *Watcher {
	return &Watcher{Open: serial.Open, Logger: logger}
}

// Run opens spec.Device, watches it, copying the console to tee, and
// closes it again.
func (w *Watcher) Run(spec Spec, tee io.Writer) (Result, error) {
	log := w.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"device": spec.Device, "baud": spec.BaudRate})

	port, err := w.Open(spec.Device, spec.BaudRate, spec.ReadTimeout)
	if err != nil {
		return Result{ExitCode: 1}, err
	}
	defer port.Close()

	log.WithField("timeout", spec.Timeout).Debug("waiting for pattern")
	start := time.Now()
	res, err := watch(port, spec, tee, log)
	log = log.WithField("elapsed", time.Since(start).Round(time.Millisecond))
	switch {
	case err != nil:
		log.WithError(err).Warn("no end-of-run marker")
	case !res.Succeeded:
		log.Warn("marker found but run did not report success")
	default:
		log.Info("run succeeded")
	}
	return res, err
}
