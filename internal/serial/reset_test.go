package serial

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type fakeLines struct {
	dtr      []bool
	dtrErr   error
	closeErr error
	closed   int
}

func (f *fakeLines) SetDTR(dtr bool) error {
	f.dtr = append(f.dtr, dtr)
	return f.dtrErr
}

func (f *fakeLines) Close() error {
	f.closed++
	return f.closeErr
}

func newFakeToucher(lines *fakeLines, openErr error) (*Toucher, *[]*serial.Mode) {
	var modes []*serial.Mode
	t := NewToucher(0)
	t.open = func(device string, mode *serial.Mode) (controlLines, error) {
		modes = append(modes, mode)
		if openErr != nil {
			return nil, openErr
		}
		return lines, nil
	}
	return t, &modes
}

func TestTouchAssertsDTRAtResetBaud(t *testing.T) {
	lines := &fakeLines{}
	toucher, modes := newFakeToucher(lines, nil)

	require.NoError(t, toucher.Touch("/dev/arduino"))
	require.Len(t, *modes, 1)
	require.Equal(t, 1200, (*modes)[0].BaudRate)
	require.Equal(t, []bool{true}, lines.dtr)
	require.Equal(t, 1, lines.closed)
}

func TestTouchOpenFailure(t *testing.T) {
	toucher, _ := newFakeToucher(nil, errors.New("permission denied"))

	err := toucher.Touch("/dev/arduino")
	require.ErrorContains(t, err, "open /dev/arduino at 1200 baud")
	require.ErrorContains(t, err, "permission denied")
}

func TestTouchClosesPortWhenDTRFails(t *testing.T) {
	lines := &fakeLines{dtrErr: errors.New("inappropriate ioctl")}
	toucher, _ := newFakeToucher(lines, nil)

	err := toucher.Touch("/dev/arduino")
	require.ErrorContains(t, err, "assert DTR")
	require.Equal(t, 1, lines.closed)
}

func TestTouchReportsCloseFailure(t *testing.T) {
	lines := &fakeLines{closeErr: errors.New("device went away")}
	toucher, _ := newFakeToucher(lines, nil)

	err := toucher.Touch("/dev/arduino")
	require.ErrorContains(t, err, "close /dev/arduino")
}
