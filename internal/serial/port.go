// Package serial wraps go.bug.st/serial for the pieces flashwatch needs:
// opening a console port, the 1200-baud reset touch, port listing and a
// background monitor.
package serial

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of a serial port used by the watcher.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

func mode8N1(baudRate int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens device at baudRate (8N1) and applies readTimeout to reads.
func Open(device string, baudRate int, readTimeout time.Duration) (Port, error) {
	port, err := serial.Open(device, mode8N1(baudRate))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if readTimeout > 0 {
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
		}
	}
	return port, nil
}
