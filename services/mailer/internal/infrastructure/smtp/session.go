package smtp

import (
	"fmt"
	"net"
	netsmtp "net/smtp"
	"time"
)

type session struct {
	conn   net.Conn
	client *netsmtp.Client
}

func (s *session) probe(deadline time.Time) error {
	_ = s.conn.SetDeadline(deadline)
	return commandError("NOOP", s.client.Noop())
}

func (s *session) reset(deadline time.Time) error {
	_ = s.conn.SetDeadline(deadline)
	return commandError("RSET", s.client.Reset())
}

// data runs the DATA exchange itself so the final reply text, which carries
// the relay's queue id, is not lost.
func (s *session) data(msg []byte) (string, error) {
	text := s.client.Text

	id, err := text.Cmd("DATA")
	if err != nil {
		return "", commandError("DATA", err)
	}
	text.StartResponse(id)
	_, _, err = text.ReadResponse(354)
	text.EndResponse(id)
	if err != nil {
		return "", commandError("DATA", err)
	}

	w := text.DotWriter()
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return "", commandError("DATA", err)
	}
	if err := w.Close(); err != nil {
		return "", commandError("DATA", err)
	}

	code, reply, err := text.ReadResponse(250)
	if err != nil {
		return "", commandError("end of DATA", err)
	}

	return fmt.Sprintf("%d %s", code, reply), nil
}

func (s *session) quit(deadline time.Time) {
	if s.client == nil {
		_ = s.conn.Close()
		return
	}

	_ = s.conn.SetDeadline(deadline)
	if err := s.client.Quit(); err != nil {
		_ = s.client.Close()
	}
}

// abort drops the connection without a goodbye. Safe to call more than once.
func (s *session) abort() {
	_ = s.conn.Close()
}
