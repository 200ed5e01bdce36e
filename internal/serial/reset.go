package serial

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultResetBaudRate is the baud rate that makes SAM-BA style bootloaders
// (Arduino Due, Zero, MKR) erase and reboot into firmware-update mode.
const DefaultResetBaudRate = 1200

type controlLines interface {
	SetDTR(dtr bool) error
	Close() error
}

// Toucher performs the bootloader reset handshake: open the port at a low
// baud rate, assert DTR and close it again.
type Toucher struct {
	BaudRate int

	open func(device string, mode *serial.Mode) (controlLines, error)
}

// NewToucher returns a Toucher that opens real ports at baudRate.
func NewToucher(baudRate int) *Toucher {
	if baudRate <= 0 {
		baudRate = DefaultResetBaudRate
	}
	return &Toucher{
		BaudRate: baudRate,
		open: func(device string, mode *serial.Mode) (controlLines, error) {
			return serial.Open(device, mode)
		},
	}
}

// Touch runs the handshake on device. The port is closed on every path.
func (t *Toucher) Touch(device string) (err error) {
	port, err := t.open(device, mode8N1(t.BaudRate))
	if err != nil {
		return fmt.Errorf("open %s at %d baud: %w", device, t.BaudRate, err)
	}
	defer func() {
		if cerr := port.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", device, cerr)
		}
	}()

	if err := port.SetDTR(true); err != nil {
		return fmt.Errorf("assert DTR on %s: %w", device, err)
	}
	return nil
}
