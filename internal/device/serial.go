package device

import (
	"fmt"

	"go.bug.st/serial"
)

// serialPort adapts a go.bug.st/serial port to the channel. The port is given
// a read timeout equal to the retry interval so an empty receive buffer
// surfaces as a zero-length read instead of blocking forever.
type serialPort struct {
	serial.Port
}

func (p *serialPort) SetBaudRate(baud int) error {
	return p.SetMode(lineMode(baud))
}

func lineMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenSerial opens an RS-232 connected printer at the given line speed.
func OpenSerial(name string, baud int, opts ...Option) (*Channel, error) {
	port, err := serial.Open(name, lineMode(baud))
	if err != nil {
		return nil, &Error{Op: "open", Path: name, Err: err}
	}

	c := New(&serialPort{port}, name, opts...)
	if err := port.SetReadTimeout(c.interval); err != nil {
		port.Close()
		return nil, &Error{Op: "open", Path: name, Err: fmt.Errorf("couldn't set read timeout: %w", err)}
	}
	return c, nil
}
