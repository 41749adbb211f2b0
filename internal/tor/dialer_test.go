package tor

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/fetch"
)

// socks5Server is a minimal no-auth SOCKS5 relay used to exercise Dialer.
type socks5Server struct {
	listener net.Listener
	connects atomic.Int32
}

func newSOCKS5Server(t *testing.T) *socks5Server {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &socks5Server{listener: l}
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *socks5Server) addr() string {
	return s.listener.Addr().String()
}

func (s *socks5Server) serve(conn net.Conn) {
	defer conn.Close()

	head := make([]byte, 2)
	if _, err := io.ReadFull(conn, head); err != nil {
		return
	}
	methods := make([]byte, head[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return
	}
	if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
		return
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil {
		return
	}
	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 0x03:
		n := make([]byte, 1)
		if _, err := io.ReadFull(conn, n); err != nil {
			return
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	case 0x04:
		ip := make([]byte, 16)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	default:
		return
	}
	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBuf); err != nil {
		return
	}
	port := binary.BigEndian.Uint16(portBuf)
	s.connects.Add(1)

	target, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port)))) //nolint:noctx // test code
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer target.Close()
	if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	done := make(chan struct{}, 2)
	go func() { _, _ = io.Copy(target, conn); done <- struct{}{} }()
	go func() { _, _ = io.Copy(conn, target); done <- struct{}{} }()
	<-done
}

// TestNewDialer tests proxy address parsing.
func TestNewDialer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{"host and port", "127.0.0.1:9050", "127.0.0.1:9050", false},
		{"localhost", "localhost:1080", "localhost:1080", false},
		{"socks5 url", "socks5://127.0.0.1:1080", "127.0.0.1:1080", false},
		{"socks5 url with credentials", "socks5://u:p@proxy.test:1080", "proxy.test:1080", false},
		{"empty", "", "", true},
		{"missing port", "127.0.0.1", "", true},
		{"empty host", ":9050", "", true},
		{"port out of range", "127.0.0.1:70000", "", true},
		{"port zero", "127.0.0.1:0", "", true},
		{"http scheme", "http://127.0.0.1:8080", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := NewDialer(tt.address)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProxyAddress) {
					t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Address() != tt.want {
				t.Errorf("Address() = %q, want %q", d.Address(), tt.want)
			}
		})
	}
}

// TestDialerFetch fetches a page through the relay with a fetch.Client.
func TestDialerFetch(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("via proxy"))
	}))
	defer origin.Close()

	relay := newSOCKS5Server(t)
	d, err := NewDialer(relay.addr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := fetch.New(fetch.Config{DialContext: d.DialContext})
	body, err := client.Fetch(context.Background(), origin.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("fetch through proxy: %v", err)
	}
	if body != "via proxy" {
		t.Errorf("unexpected body %q", body)
	}
	if relay.connects.Load() == 0 {
		t.Error("expected the request to pass through the proxy")
	}
}

// TestCheckConnection tests the SOCKS5 handshake check.
func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("OK for a SOCKS5 proxy", func(t *testing.T) {
		t.Parallel()

		relay := newSOCKS5Server(t)
		d, err := NewDialer(relay.addr())
		if err != nil {
			t.Fatal(err)
		}
		if status := d.CheckConnection(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected OK, got %v", status)
		}
	})

	t.Run("CannotConnect for a closed port", func(t *testing.T) {
		t.Parallel()

		l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := l.Addr().String()
		_ = l.Close()

		d, err := NewDialer(addr)
		if err != nil {
			t.Fatal(err)
		}
		if status := d.CheckConnection(context.Background()); status != ProxyStatusCannotConnect {
			t.Errorf("expected CannotConnect, got %v", status)
		}
	})

	t.Run("WrongType for an HTTP server", func(t *testing.T) {
		t.Parallel()

		l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		defer l.Close()
		go func() {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		}()

		d, err := NewDialer(l.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		if status := d.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected WrongType, got %v", status)
		}
	})

	t.Run("WrongType when authentication is required", func(t *testing.T) {
		t.Parallel()

		l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		defer l.Close()
		go func() {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte{0x05, 0xFF})
		}()

		d, err := NewDialer(l.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		if status := d.CheckConnection(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected WrongType, got %v", status)
		}
	})
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		str    string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.status.Err(); !errors.Is(got, tt.err) {
			t.Errorf("Err() = %v, want %v", got, tt.err)
		}
	}
	if ProxyStatus(99).Err() == nil || ProxyStatus(99).String() != "unknown" {
		t.Error("expected unknown status handling")
	}
}
