package programmer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/flashwatch/internal/runner"
)

type armEnv struct {
	runner   *fakeRunner
	resetter *fakeResetter
	sleeps   []time.Duration
	events   []string
	arm      *ARMProgrammer
}

func newARMEnv(t *testing.T, failOn map[string]int, touchErrs ...error) *armEnv {
	t.Helper()
	env := &armEnv{}
	env.runner = &fakeRunner{failOn: failOn, events: &env.events}
	env.resetter = &fakeResetter{errs: touchErrs, events: &env.events}
	logger, _ := test.NewNullLogger()
	env.arm = NewARM(Options{
		Runner:          env.runner,
		Logger:          logger,
		Port:            "ttyACM0",
		Device:          "/dev/ttyACM0",
		Resetter:        env.resetter,
		BootloaderDelay: 400 * time.Millisecond,
		Sleep: func(d time.Duration) {
			env.sleeps = append(env.sleeps, d)
			env.events = append(env.events, "sleep")
		},
	})
	return env
}

var (
	handshakeArgv = []string{"bossac", "--port=ttyACM0", "-e", "-w", "-b", "-R", "fw.bin"}
	directArgv    = []string{"bossac", "--port=ttyACM0", "-U", "false", "-e", "-w", "-b", "fw.bin"}
)

func TestARMUploadHandshakeSucceeds(t *testing.T) {
	env := newARMEnv(t, nil)

	require.NoError(t, env.arm.Upload(Job{Family: ARM, Binary: "fw.bin"}))

	require.Equal(t, []string{"/dev/ttyACM0"}, env.resetter.devices)
	require.Equal(t, []time.Duration{400 * time.Millisecond}, env.sleeps)
	require.Equal(t, []string{"touch", "sleep", "run:bossac"}, env.events)
	if diff := cmp.Diff([][]string{handshakeArgv}, env.runner.calls); diff != "" {
		t.Errorf("bossac invocations mismatch (-want +got):\n%s", diff)
	}
}

func TestARMUploadFallsBackToDirectWhenTouchFails(t *testing.T) {
	env := newARMEnv(t, nil, errBusy)

	require.NoError(t, env.arm.Upload(Job{Family: ARM, Binary: "fw.bin"}))

	require.Equal(t, []string{"touch", "run:bossac"}, env.events,
		"the tool must not run after a failed touch, and direct upload must follow")
	if diff := cmp.Diff([][]string{directArgv}, env.runner.calls); diff != "" {
		t.Errorf("bossac invocations mismatch (-want +got):\n%s", diff)
	}
}

func TestARMUploadFallsBackToDirectWhenToolFails(t *testing.T) {
	env := newARMEnv(t, map[string]int{" -R ": 1})

	require.NoError(t, env.arm.Upload(Job{Family: ARM, Binary: "fw.bin"}))

	if diff := cmp.Diff([][]string{handshakeArgv, directArgv}, env.runner.calls); diff != "" {
		t.Errorf("bossac invocations mismatch (-want +got):\n%s", diff)
	}
}

func TestARMUploadRetriesHandshakeAfterDirectFails(t *testing.T) {
	env := newARMEnv(t, map[string]int{"-U false": 1}, errBusy)

	require.NoError(t, env.arm.Upload(Job{Family: ARM, Binary: "fw.bin"}))

	require.Equal(t, []string{"touch", "run:bossac", "touch", "sleep", "run:bossac"}, env.events)
	if diff := cmp.Diff([][]string{directArgv, handshakeArgv}, env.runner.calls); diff != "" {
		t.Errorf("bossac invocations mismatch (-want +got):\n%s", diff)
	}
}

func TestARMUploadAllAttemptsFail(t *testing.T) {
	env := newARMEnv(t, map[string]int{"bossac": 3}, errBusy)

	err := env.arm.Upload(Job{Family: ARM, Binary: "fw.bin"})
	require.Error(t, err)

	var chain *ChainError
	require.True(t, errors.As(err, &chain))
	require.Len(t, chain.Attempts, 3)
	require.Equal(t, "reset-handshake", chain.Attempts[0].Strategy)
	require.Equal(t, "direct", chain.Attempts[1].Strategy)
	require.Equal(t, "reset-handshake", chain.Attempts[2].Strategy)

	var hs *HandshakeError
	require.True(t, errors.As(chain.Attempts[0].Err, &hs))
	require.ErrorIs(t, err, errBusy)
	require.Equal(t, 3, runner.ExitCode(chain.Last()))

	// Exactly three attempts: no fourth try.
	require.Len(t, env.runner.calls, 2)
	require.Len(t, env.resetter.devices, 2)
}

func TestARMUploadRequiresBinary(t *testing.T) {
	env := newARMEnv(t, nil)

	err := env.arm.Upload(Job{Family: ARM})
	var jobErr *JobError
	require.True(t, errors.As(err, &jobErr))
	require.Empty(t, env.resetter.devices)
}

func TestNewSelectsVariant(t *testing.T) {
	r := &fakeRunner{}

	p, err := New(AVR, Options{Runner: r})
	require.NoError(t, err)
	require.IsType(t, &AVRProgrammer{}, p)
	_, isDumper := p.(Dumper)
	require.True(t, isDumper)

	p, err = New(ARM, Options{Runner: r, Resetter: &fakeResetter{}})
	require.NoError(t, err)
	require.IsType(t, &ARMProgrammer{}, p)
	_, isDumper = p.(Dumper)
	require.False(t, isDumper, "arm targets cannot dump eeprom")

	_, err = New(ARM, Options{Runner: r})
	require.Error(t, err)
	_, err = New(AVR, Options{})
	require.Error(t, err)
}

func TestParseFamily(t *testing.T) {
	f, err := ParseFamily("AVR")
	require.NoError(t, err)
	require.Equal(t, AVR, f)

	f, err = ParseFamily("arm")
	require.NoError(t, err)
	require.Equal(t, ARM, f)

	_, err = ParseFamily("pic")
	require.Error(t, err)
	require.Equal(t, "family(7)", Family(7).String())
}
