package relay

import (
	"bufio"
	"net"
	"strings"
	"testing"
)

func TestParseRequestConnect(t *testing.T) {
	raw := "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"
	req, extra, err := parseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatal(err)
	}
	if !req.isConnect || req.host != "example.com" || req.port != 443 {
		t.Errorf("unexpected parse result: %+v", req)
	}
	if len(extra) != 0 {
		t.Errorf("expected no extra bytes, got %q", extra)
	}
}

func TestParseRequestAbsoluteForm(t *testing.T) {
	raw := "GET http://example.com/foo HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, _, err := parseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatal(err)
	}
	if req.isConnect || req.host != "example.com" || req.port != 80 {
		t.Errorf("unexpected parse result: %+v", req)
	}
}

func TestParseRequestOriginFormUsesHostHeader(t *testing.T) {
	raw := "GET /foo HTTP/1.1\r\nHost: example.com:8080\r\n\r\n"
	req, _, err := parseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatal(err)
	}
	if req.host != "example.com" || req.port != 8080 {
		t.Errorf("unexpected parse result: %+v", req)
	}
}

func TestParseRequestPreservesPipelinedBytes(t *testing.T) {
	raw := "POST http://example.com/ HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello"
	_, extra, err := parseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatal(err)
	}
	if string(extra) != "hello" {
		t.Errorf("expected pipelined body preserved, got %q", extra)
	}
}

func TestParseRequestMalformedRequestLine(t *testing.T) {
	raw := "GARBAGE\r\n\r\n"
	_, _, err := parseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err == nil {
		t.Fatal("expected error for malformed request line")
	}
}

func TestParseRequestOriginFormNoHostHeader(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n\r\n"
	_, _, err := parseRequest(bufio.NewReader(strings.NewReader(raw)))
	if err == nil {
		t.Fatal("expected error for missing Host header in origin-form request")
	}
}

func TestProxyEnvSetsBothCases(t *testing.T) {
	env := ProxyEnv(3128)
	joined := strings.Join(env, " ")
	for _, want := range []string{"HTTP_PROXY=http://127.0.0.1:3128", "http_proxy=http://127.0.0.1:3128", "HTTPS_PROXY=http://127.0.0.1:3128", "https_proxy=http://127.0.0.1:3128"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %v", want, env)
		}
	}
}

func TestRelayEndToEndThroughFakeDaemon(t *testing.T) {
	// Fake filter daemon: accept a CONNECT line, reply OK, then echo.
	sockDir := t.TempDir()
	sockPath := sockDir + "/d.sock"
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)
		_ = n
		conn.Write([]byte("OK\n"))
		io := make([]byte, 256)
		for {
			n, err := conn.Read(io)
			if n > 0 {
				conn.Write(io[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	r := &Relay{SocketPath: sockPath}
	if err := r.Listen(0); err != nil {
		t.Fatal(err)
	}
	go r.Serve()
	defer r.Close()

	port := r.Addr().(*net.TCPAddr).Port
	client, err := net.Dial("tcp", "127.0.0.1:"+itoa(port))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	client.Write([]byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(buf[:n]), "HTTP/1.1 200") {
		t.Fatalf("expected 200 Connection Established, got %q", string(buf[:n]))
	}

	client.Write([]byte("ping"))
	n, err = client.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("expected echoed tunnel bytes, got %q", string(buf[:n]))
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
