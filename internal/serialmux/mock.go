package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// ErrPortClosed is returned by MockSerialPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// MockSerialPort implements SerialPorter for tests and bench runs. Reads
// drain a scripted buffer, then return ReadError or block until more data
// is added or the port is closed. Writes are captured.
type MockSerialPort struct {
	mu sync.Mutex

	readBuffer  bytes.Buffer
	writeBuffer bytes.Buffer

	// ReadError is returned once the read buffer is empty. When nil, Read
	// blocks instead.
	ReadError error
	// WriteError fails every Write while set.
	WriteError error
	// ShortWrites makes Write accept only half of each buffer.
	ShortWrites bool

	closed   bool
	readCond *sync.Cond
}

// NewMockSerialPort returns a port whose reads start with script.
func NewMockSerialPort(script string) *MockSerialPort {
	p := &MockSerialPort{}
	p.readCond = sync.NewCond(&p.mu)
	p.readBuffer.WriteString(script)
	return p
}

// NewMockSerialMux returns a mux over a fresh mock port, fed with lines.
func NewMockSerialMux(lines ...string) (*SerialMux[*MockSerialPort], *MockSerialPort) {
	port := NewMockSerialPort("")
	for _, l := range lines {
		port.AddReadData(l + "\n")
	}
	return NewSerialMux(port), port
}

func (p *MockSerialPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return 0, ErrPortClosed
		}
		if p.readBuffer.Len() > 0 {
			return p.readBuffer.Read(buf)
		}
		if p.ReadError != nil {
			return 0, p.ReadError
		}
		p.readCond.Wait()
	}
}

func (p *MockSerialPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	if p.WriteError != nil {
		return 0, p.WriteError
	}
	if p.ShortWrites {
		return p.writeBuffer.Write(data[:len(data)/2])
	}
	return p.writeBuffer.Write(data)
}

// Close marks the port closed and wakes blocked readers.
func (p *MockSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return nil
}

// AddReadData queues data for subsequent reads.
func (p *MockSerialPort) AddReadData(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuffer.WriteString(data)
	p.readCond.Broadcast()
}

// Written returns everything written so far.
func (p *MockSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuffer.String()
}

// Closed reports whether Close was called.
func (p *MockSerialPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
