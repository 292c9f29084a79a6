package smtp

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type received struct {
	From string
	To   []string
	Data string
}

// fakeRelay is a minimal ESMTP server speaking just enough of RFC 5321 for
// net/smtp.
type fakeRelay struct {
	ln net.Listener

	rejectRcpt  map[string]bool
	silent      bool
	dropAfter   int
	auth        bool
	connections atomic.Int32

	mu       sync.Mutex
	messages []received
	authUser string
}

func startRelay(t *testing.T, configure ...func(*fakeRelay)) *fakeRelay {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	r := &fakeRelay{ln: ln, rejectRcpt: map[string]bool{}, auth: true}
	for _, c := range configure {
		c(r)
	}

	go r.serve()
	t.Cleanup(func() { _ = ln.Close() })

	return r
}

func (r *fakeRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) received() []received {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]received(nil), r.messages...)
}

func (r *fakeRelay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		r.connections.Add(1)
		go r.handle(conn)
	}
}

func (r *fakeRelay) handle(conn net.Conn) {
	defer conn.Close()

	if r.silent {
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
		return
	}

	rd := bufio.NewReader(conn)
	write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

	write("220 fake.relay ESMTP ready")

	var current received
	delivered := 0

	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(line)
		if i := strings.IndexByte(verb, ' '); i >= 0 {
			verb = verb[:i]
		}

		switch verb {
		case "EHLO", "HELO":
			if r.auth {
				write("250-fake.relay")
				write("250-8BITMIME")
				write("250 AUTH PLAIN")
			} else {
				write("250 fake.relay")
			}
		case "AUTH":
			r.mu.Lock()
			r.authUser = line
			r.mu.Unlock()
			write("235 2.7.0 Authentication successful")
		case "MAIL":
			current = received{From: addrArg(line)}
			write("250 2.1.0 Ok")
		case "RCPT":
			to := addrArg(line)
			if r.rejectRcpt[to] {
				write("550 5.1.1 <" + to + ">: Recipient address rejected")
				continue
			}
			current.To = append(current.To, to)
			write("250 2.1.5 Ok")
		case "DATA":
			write("354 End data with <CR><LF>.<CR><LF>")
			var b strings.Builder
			for {
				l, err := rd.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(strings.TrimPrefix(l, "."))
			}
			current.Data = b.String()
			r.mu.Lock()
			r.messages = append(r.messages, current)
			r.mu.Unlock()
			write("250 2.0.0 Ok: queued as ABC123")
			delivered++
			if r.dropAfter > 0 && delivered >= r.dropAfter {
				return
			}
		case "RSET":
			current = received{}
			write("250 2.0.0 Ok")
		case "NOOP":
			write("250 2.0.0 Ok")
		case "QUIT":
			write("221 2.0.0 Bye")
			return
		default:
			write("502 5.5.2 Error: command not recognized")
		}
	}
}

func addrArg(line string) string {
	start := strings.IndexByte(line, '<')
	end := strings.IndexByte(line, '>')
	if start < 0 || end < start {
		return ""
	}
	return line[start+1 : end]
}
