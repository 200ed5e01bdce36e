package serial

import (
	"io"
	"sync"
	"time"
)

// monitorReadTimeout bounds each read so the loop notices Disconnect.
const monitorReadTimeout = 100 * time.Millisecond

// Monitor manages a serial port connection read in the background.
type Monitor struct {
	port     Port
	portName string
	baudRate int
	mu       sync.Mutex
	running  bool
	dataCh   chan string
	done     chan struct{}

	open func(device string, baudRate int, readTimeout time.Duration) (Port, error)
}

// NewMonitor creates a new serial monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		dataCh: make(chan string, 64),
		done:   make(chan struct{}),
		open:   Open,
	}
}

// Connect opens a serial port with the given settings. Any previous
// connection is closed first.
func (m *Monitor) Connect(portName string, baudRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.disconnectLocked()
	}

	port, err := m.open(portName, baudRate, monitorReadTimeout)
	if err != nil {
		return err
	}

	m.port = port
	m.portName = portName
	m.baudRate = baudRate
	m.running = true
	m.done = make(chan struct{})
	m.dataCh = make(chan string, 64)

	go m.readLoop(port, m.dataCh, m.done)
	return nil
}

// Disconnect closes the serial port.
func (m *Monitor) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

func (m *Monitor) disconnectLocked() {
	if !m.running {
		return
	}
	m.running = false
	close(m.done)
	if m.port != nil {
		m.port.Close()
		m.port = nil
	}
}

// Write sends data to the serial port.
func (m *Monitor) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port == nil {
		return io.ErrClosedPipe
	}
	_, err := m.port.Write(data)
	return err
}

// DataChan returns the channel that receives serial data for the current
// connection. It is closed when the connection ends.
func (m *Monitor) DataChan() <-chan string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataCh
}

// Connected returns whether the monitor is connected.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// PortName returns the device of the current connection.
func (m *Monitor) PortName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portName
}

// BaudRate returns the baud rate of the current connection.
func (m *Monitor) BaudRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baudRate
}

func (m *Monitor) readLoop(port Port, dataCh chan<- string, done <-chan struct{}) {
	defer close(dataCh)
	buf := make([]byte, 1024)
	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := port.Read(buf)
		if err != nil {
			return
		}
		if n > 0 {
			select {
			case dataCh <- string(buf[:n]):
			case <-done:
				return
			default:
				// Drop data if channel is full
			}
		}
	}
}
