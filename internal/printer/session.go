package printer

import (
	"errors"
	"fmt"
	"log/slog"
)

// Channel is the half-duplex byte channel to the printer, normally a
// *device.Channel.
type Channel interface {
	Write(data []byte) error
	// Read returns exactly length bytes or an error.
	Read(length int) ([]byte, error)
	Close() error
}

type baudRateSetter interface {
	SetBaudRate(baud int) error
}

// Session issues commands and reads status replies over one channel. It owns
// the channel and closes it in Close.
type Session struct {
	ch     Channel
	logger *slog.Logger
}

func NewSession(ch Channel, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{ch: ch, logger: logger}
}

// Send writes each command in order, stopping at the first failure.
func (s *Session) Send(commands ...Command) error {
	for _, c := range commands {
		if err := s.ch.Write(c.Bytes()); err != nil {
			return fmt.Errorf("Couldn't send %T:\n%w", c, err)
		}
	}
	return nil
}

// ReadStatus waits for the next status reply and decodes it.
func (s *Session) ReadStatus() (Status, error) {
	b, err := s.ch.Read(StatusLength)
	if err != nil {
		return Status{}, fmt.Errorf("Couldn't read status:\n%w", err)
	}
	status, err := DecodeStatus(b)
	if err != nil {
		return Status{}, err
	}
	s.logger.Debug("Read printer status", "status", status)
	return status, nil
}

// RequestStatus sends a status request and reads the reply.
func (s *Session) RequestStatus() (Status, error) {
	if err := s.Send(StatusInfoRequest{}); err != nil {
		return Status{}, err
	}
	return s.ReadStatus()
}

// Handshake resets and initialises the printer, then queries its status.
func (s *Session) Handshake() (Status, error) {
	if err := s.Send(Reset{}, Initialize{}); err != nil {
		return Status{}, err
	}
	return s.RequestStatus()
}

// SetBaudRate tells the printer to switch line speed and then follows it on
// the local side of the channel.
func (s *Session) SetBaudRate(baud int) error {
	if baud < 100 || baud/100 > 0xFFFF {
		return fmt.Errorf("Unsupported baud rate %d", baud)
	}
	setter, ok := s.ch.(baudRateSetter)
	if !ok {
		return errors.New("Channel doesn't support changing baud rate")
	}
	if err := s.Send(SetBaudRate{N: uint16(baud / 100)}); err != nil {
		return err
	}
	s.logger.Info("Switching baud rate", "baud", baud)
	return setter.SetBaudRate(baud)
}

func (s *Session) Close() error {
	return s.ch.Close()
}
