package programmer

import (
	"errors"
	"strings"

	"github.com/buckleypaul/flashwatch/internal/runner"
)

// fakeRunner records every argv and fails calls whose joined command line
// contains a key of failOn, with the mapped exit code.
type fakeRunner struct {
	calls  [][]string
	failOn map[string]int
	events *[]string
}

func (f *fakeRunner) Run(argv ...string) error {
	f.calls = append(f.calls, append([]string(nil), argv...))
	if f.events != nil {
		*f.events = append(*f.events, "run:"+argv[0])
	}
	line := strings.Join(argv, " ")
	for substr, code := range f.failOn {
		if strings.Contains(line, substr) {
			return &runner.ExitError{Argv: argv, Code: code}
		}
	}
	return nil
}

type fakeResetter struct {
	devices []string
	errs    []error // consumed in order; nil entries mean success
	events  *[]string
}

func (f *fakeResetter) Touch(device string) error {
	f.devices = append(f.devices, device)
	if f.events != nil {
		*f.events = append(*f.events, "touch")
	}
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

var errBusy = errors.New("device or resource busy")
