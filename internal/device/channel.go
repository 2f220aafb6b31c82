// Package device implements the byte channel to a label printer. A Channel
// wraps any read/write port (a character device node, a serial port or a USB
// printer interface) and gives it the request/reply contract the printer
// protocol relies on: writes are all-or-nothing and reads always return
// exactly the number of bytes asked for, retrying a bounded number of times
// while the printer has nothing buffered yet.
package device

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

const (
	DefaultReadAttempts = 10
	DefaultReadInterval = 10 * time.Millisecond
)

// ErrTimeout is returned (wrapped in an *Error) when a read doesn't complete
// within the configured number of attempts.
var ErrTimeout = errors.New("timed out waiting for reply")

// Error records a failed operation on the channel.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Channel is a half-duplex byte channel to a single printer. It isn't safe
// for concurrent use; callers must finish reading a reply before sending the
// next command.
type Channel struct {
	port     io.ReadWriteCloser
	path     string
	attempts int
	interval time.Duration
	sleep    func(time.Duration)
	logger   *slog.Logger
}

type Option func(*Channel)

// WithRetry overrides the read retry policy.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(c *Channel) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if interval >= 0 {
			c.interval = interval
		}
	}
}

// WithSleep replaces the function used to wait between read attempts.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Channel) {
		c.sleep = sleep
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New wraps an already open port. The channel takes ownership of the port and
// closes it in Close.
func New(port io.ReadWriteCloser, path string, opts ...Option) *Channel {
	c := &Channel{
		port:     port,
		path:     path,
		attempts: DefaultReadAttempts,
		interval: DefaultReadInterval,
		sleep:    time.Sleep,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens a bidirectional character device such as /dev/usb/lp0.
func Open(path string, opts ...Option) (*Channel, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: err}
	}
	return New(f, path, opts...), nil
}

func (c *Channel) Path() string {
	return c.path
}

// Write sends the entire buffer or returns an error.
func (c *Channel) Write(data []byte) error {
	for written := 0; written < len(data); {
		n, err := c.port.Write(data[written:])
		written += n
		if err != nil {
			return &Error{Op: "write", Path: c.path, Err: err}
		}
		if n == 0 {
			return &Error{Op: "write", Path: c.path, Err: io.ErrShortWrite}
		}
	}
	c.logger.Debug("Wrote data to device", "path", c.path, "size", len(data))
	return nil
}

// Read returns exactly length bytes. A read attempt that fails or yields no
// data counts against the retry budget and is followed by a sleep. Bytes
// received by earlier attempts are kept, and receiving any resets the budget,
// so only consecutive unproductive attempts time out.
func (c *Channel) Read(length int) ([]byte, error) {
	buf := make([]byte, length)
	filled, failures := 0, 0
	var lastErr error

	for filled < length {
		n, err := c.port.Read(buf[filled:])
		filled += n
		if filled == length {
			break
		}
		if n > 0 {
			failures = 0
			if err == nil {
				continue
			}
		}

		if err != nil {
			lastErr = err
		}
		failures++
		if failures >= c.attempts {
			if lastErr != nil {
				return nil, &Error{Op: "read", Path: c.path,
					Err: fmt.Errorf("%w after %d attempts (%d of %d bytes, last error: %v)",
						ErrTimeout, failures, filled, length, lastErr)}
			}
			return nil, &Error{Op: "read", Path: c.path,
				Err: fmt.Errorf("%w after %d attempts (%d of %d bytes)", ErrTimeout, failures, filled, length)}
		}
		c.sleep(c.interval)
	}

	c.logger.Debug("Read data from device", "path", c.path, "size", length, "retries", failures)
	return buf, nil
}

func (c *Channel) Close() error {
	if err := c.port.Close(); err != nil {
		return &Error{Op: "close", Path: c.path, Err: err}
	}
	return nil
}

type baudRateSetter interface {
	SetBaudRate(baud int) error
}

// SetBaudRate reconfigures the local side of the port. Ports without a
// configurable line speed return an error.
func (c *Channel) SetBaudRate(baud int) error {
	s, ok := c.port.(baudRateSetter)
	if !ok {
		return &Error{Op: "set baud rate", Path: c.path, Err: errors.New("port has no configurable baud rate")}
	}
	if err := s.SetBaudRate(baud); err != nil {
		return &Error{Op: "set baud rate", Path: c.path, Err: err}
	}
	return nil
}
