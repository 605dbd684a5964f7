package redisctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stone-age-io/redis-service/internal/config"
	"github.com/stone-age-io/redis-service/internal/logging"
)

// fakeRedis is a minimal RESP server that answers every command with an
// error except SHUTDOWN, which is handled by onShutdown.
type fakeRedis struct {
	listener   net.Listener
	onShutdown func(conn net.Conn)

	mu       sync.Mutex
	commands []string
}

func startFakeRedis(t *testing.T, onShutdown func(conn net.Conn)) *fakeRedis {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	f := &fakeRedis{listener: ln, onShutdown: onShutdown}
	t.Cleanup(func() { ln.Close() })

	go f.serve()
	return f
}

func (f *fakeRedis) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeRedis) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		name := strings.ToUpper(args[0])

		f.mu.Lock()
		f.commands = append(f.commands, name)
		f.mu.Unlock()

		if name == "SHUTDOWN" {
			f.onShutdown(conn)
			return
		}
		fmt.Fprintf(conn, "-ERR unknown command '%s'\r\n", args[0])
	}
}

func (f *fakeRedis) config() config.RedisConfig {
	addr := f.listener.Addr().(*net.TCPAddr)
	return config.RedisConfig{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		DialTimeout:    2 * time.Second,
		CommandTimeout: 2 * time.Second,
	}
}

func (f *fakeRedis) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.commands {
		if c == name {
			n++
		}
	}
	return n
}

// readCommand reads one RESP array of bulk strings
func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected line %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("bad array header %q", line)
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		header, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimRight(header, "\r\n")[1:])
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

// TestRequestShutdownServerExits tests the normal case where redis closes
// the connection after SHUTDOWN
func TestRequestShutdownServerExits(t *testing.T) {
	server := startFakeRedis(t, func(conn net.Conn) {})
	client := New(server.config(), logging.NewNop())

	if err := client.RequestShutdown(context.Background()); err != nil {
		t.Fatalf("RequestShutdown() error = %v", err)
	}
	if got := server.count("SHUTDOWN"); got != 1 {
		t.Errorf("SHUTDOWN sent %d times, want 1", got)
	}
}

// TestRequestShutdownReplyAccepted tests that an error reply still counts as
// a delivered command
func TestRequestShutdownReplyAccepted(t *testing.T) {
	server := startFakeRedis(t, func(conn net.Conn) {
		fmt.Fprint(conn, "-ERR Errors trying to SHUTDOWN. Check logs.\r\n")
	})
	client := New(server.config(), logging.NewNop())

	if err := client.RequestShutdown(context.Background()); err != nil {
		t.Fatalf("RequestShutdown() error = %v, want reply accepted", err)
	}
	if got := server.count("SHUTDOWN"); got != 1 {
		t.Errorf("SHUTDOWN sent %d times, want 1", got)
	}
}

// TestConnectUnreachable tests that an unreachable endpoint is a connect error
func TestConnectUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := New(config.RedisConfig{
		Host:           "127.0.0.1",
		Port:           port,
		DialTimeout:    time.Second,
		CommandTimeout: time.Second,
	}, logging.NewNop())

	if got, want := client.Address(), fmt.Sprintf("127.0.0.1:%d", port); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}

	err = client.RequestShutdown(context.Background())
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("RequestShutdown() error = %v, want ErrConnect", err)
	}
}

// TestClassifyShutdown tests the closed/reply/transport classification
func TestClassifyShutdown(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want shutdownOutcome
	}{
		{name: "connection closed", err: nil, want: shutdownClosed},
		{name: "connection reset", err: &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, want: shutdownClosed},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: shutdownFailed},
		{name: "closed", err: net.ErrClosed, want: shutdownFailed},
		{name: "op error", err: &net.OpError{Op: "write", Net: "tcp", Err: errors.New("broken pipe")}, want: shutdownFailed},
		{name: "connection reused", err: errConnUsed, want: shutdownFailed},
		{name: "server reply", err: errors.New("ERR Errors trying to SHUTDOWN"), want: shutdownReplied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyShutdown(tt.err); got != tt.want {
				t.Errorf("classifyShutdown(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
