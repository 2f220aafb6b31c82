// Package printertest provides an in-memory printer for tests.
package printertest

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"tomgalvin.uk/qlprint/internal/printer"
)

var ErrClosed = errors.New("channel closed")

// Channel records every write and answers reads with scripted replies, then
// with Status once the script runs out.
type Channel struct {
	mu sync.Mutex

	Status  printer.Status
	Replies [][]byte
	Writes  [][]byte

	// When set, the write with this 1-based index fails with WriteErr.
	FailWrite int
	WriteErr  error
	// When set, every read fails with ReadErr.
	ReadErr error

	Baud   int
	Closed bool
	reads  int
}

func New(status printer.Status) *Channel {
	return &Channel{Status: status}
}

// Continuous62 is a status for 62mm continuous tape, the full 720 dot width.
func Continuous62() printer.Status {
	return printer.Status{
		MediaWidth: 62,
		MediaType:  printer.Continuous,
		StatusType: printer.ReplyToStatusRequest,
		PhaseState: printer.Waiting,
	}
}

// DieCut29x90 is a status for 29x90mm address labels, 336 dots wide.
func DieCut29x90() printer.Status {
	return printer.Status{
		MediaWidth:  29,
		MediaLength: 90,
		MediaType:   printer.DieCutLabels,
		StatusType:  printer.ReplyToStatusRequest,
		PhaseState:  printer.Waiting,
	}
}

func (c *Channel) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Closed {
		return ErrClosed
	}
	if c.FailWrite > 0 && len(c.Writes)+1 == c.FailWrite {
		c.Writes = append(c.Writes, nil)
		if c.WriteErr == nil {
			return errors.New("write failed")
		}
		return c.WriteErr
	}
	c.Writes = append(c.Writes, bytes.Clone(data))
	return nil
}

func (c *Channel) Read(length int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Closed {
		return nil, ErrClosed
	}
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	c.reads++

	var reply []byte
	if len(c.Replies) > 0 {
		reply, c.Replies = c.Replies[0], c.Replies[1:]
	} else {
		reply = c.Status.Bytes()
	}
	if len(reply) != length {
		return nil, fmt.Errorf("scripted reply has %d bytes, read wants %d", len(reply), length)
	}
	return reply, nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

func (c *Channel) SetBaudRate(baud int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Baud = baud
	return nil
}

// Reads returns how many replies have been read.
func (c *Channel) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Written returns every successful write in order.
func (c *Channel) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]byte
	for _, w := range c.Writes {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

// RasterLines returns the payload of every raster graphics transfer written.
func (c *Channel) RasterLines() [][]byte {
	var lines [][]byte
	for _, w := range c.Written() {
		if len(w) == 93 && w[0] == 0x67 && w[1] == 0x00 && w[2] == 0x5A {
			lines = append(lines, w[3:])
		}
	}
	return lines
}
