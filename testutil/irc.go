package testutil

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
)

// ChatServer is an in-process line-oriented IRC stand-in. It accepts one
// connection, records every line the client sends, and pushes its scripted
// lines once the client has joined a channel.
type ChatServer struct {
	ln       net.Listener
	script   []string
	mu       sync.Mutex
	received []string
	sent     bool
}

// NewChatServer starts the server on a loopback port and registers cleanup.
func NewChatServer(t *testing.T, script []string) *ChatServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &ChatServer{ln: ln, script: script}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

// Addr returns the host:port clients should dial.
func (s *ChatServer) Addr() string {
	return s.ln.Addr().String()
}

func (s *ChatServer) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		s.mu.Lock()
		s.received = append(s.received, line)
		push := strings.HasPrefix(line, "JOIN") && !s.sent
		if push {
			s.sent = true
		}
		s.mu.Unlock()

		if push {
			for _, out := range s.script {
				fmt.Fprintf(conn, "%s\r\n", out)
			}
		}
	}
}

// Received returns a copy of every line seen from the client so far.
func (s *ChatServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}
