// Package filterd implements the filter daemon (C6): a Unix-domain
// socket server that accepts one CONNECT request per connection,
// consults a policy.Engine, and either splices the connection through
// to the real destination or rejects it.
package filterd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bwsandbox/internal/learn"
	"bwsandbox/internal/logging"
	"bwsandbox/internal/policy"
)

const (
	replyOK      = "OK\n"
	replyBlocked = "BLOCKED\n"
	replyFail    = "FAIL\n"
	replyError   = "ERROR\n"

	// maxRequestLineBytes bounds the CONNECT line read to guard against
	// a client that never sends a newline.
	maxRequestLineBytes = 4096

	dialTimeout = 10 * time.Second
)

// Daemon is the filter daemon. Engine may be nil, meaning "open" policy
// — every CONNECT is allowed without consulting a matcher. Recorder
// may be nil, meaning learning is disabled.
type Daemon struct {
	SocketPath string
	Engine     *policy.Engine
	Recorder   *learn.Recorder
	Logger     *logging.ComponentLogger

	listener net.Listener
	wg       sync.WaitGroup
}

// Listen creates and binds the Unix-domain socket, removing any
// pre-existing file at SocketPath first.
func (d *Daemon) Listen() error {
	_ = os.Remove(d.SocketPath)
	l, err := net.Listen("unix", d.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.SocketPath, err)
	}
	d.listener = l
	return nil
}

// Serve accepts connections until ctx is canceled or the listener is
// closed. After the first accepted connection it unlinks the socket
// path from disk (the inode stays alive via the sandbox's existing
// bind-mount reference), so no later host process can connect to it.
// On return, it flushes the recorder if one is configured.
func (d *Daemon) Serve(ctx context.Context) error {
	if d.listener == nil {
		if err := d.Listen(); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		_ = d.listener.Close()
	}()

	unlinked := false
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			d.Logger.Warnf("accept: %v", err)
			continue
		}

		if !unlinked {
			_ = os.Remove(d.SocketPath)
			unlinked = true
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handleConn(conn)
		}()
	}

	d.wg.Wait()
	if d.Recorder != nil {
		if err := d.Recorder.Flush(); err != nil {
			d.Logger.Errorf("flush learning output: %v", err)
			return err
		}
	}
	return nil
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()
	connID := uuid.New().String()

	host, port, ok := readConnectLine(conn)
	if !ok {
		_, _ = conn.Write([]byte(replyError))
		return
	}

	connLogger := d.Logger.WithFields(map[string]any{
		"conn_id": connID,
		"host":    host,
		"port":    port,
	})

	allowed := true
	if d.Engine != nil {
		allowed = d.Engine.Allow(host, nil)
	}

	if !allowed {
		if d.Recorder != nil {
			d.Recorder.Record(host, nil)
		}
		connLogger.Infof("denied")
		_, _ = conn.Write([]byte(replyBlocked))
		return
	}

	if d.Recorder != nil {
		d.Recorder.Record(host, nil)
	}

	target, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		connLogger.Infof("connect failed: %v", err)
		_, _ = conn.Write([]byte(replyFail))
		return
	}
	defer target.Close()

	if _, err := conn.Write([]byte(replyOK)); err != nil {
		return
	}

	connLogger.Infof("allowed")
	splice(conn, target, connLogger)
}

// readConnectLine reads exactly one "CONNECT <host> <port>\n" line.
// It returns ok=false on any malformed input, per the UDS protocol's
// ERROR contract.
func readConnectLine(conn net.Conn) (host string, port int, ok bool) {
	r := bufio.NewReaderSize(conn, maxRequestLineBytes)
	raw, err := r.ReadSlice('\n')
	if err != nil {
		return "", 0, false
	}
	line := strings.TrimSuffix(string(raw), "\n")

	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "CONNECT" {
		return "", 0, false
	}

	p, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return "", 0, false
	}
	if fields[1] == "" {
		return "", 0, false
	}
	return fields[1], int(p), true
}

// splice copies bytes bidirectionally between a and b until either
// side closes. Errors after the OK reply are expected on normal
// teardown and are logged at debug level rather than surfaced.
func splice(a, b net.Conn, logger *logging.ComponentLogger) {
	var g errgroup.Group
	copyOne := func(dst, src net.Conn) error {
		_, err := copyBuf(dst, src)
		if cw, ok := dst.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
		return err
	}
	g.Go(func() error { return copyOne(a, b) })
	g.Go(func() error { return copyOne(b, a) })
	if err := g.Wait(); err != nil {
		logger.Debugf("splice closed: %v", err)
	}
}

func copyBuf(dst, src net.Conn) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, fmt.Errorf("short write")
			}
		}
		if er != nil {
			if errors.Is(er, io.EOF) {
				return written, nil
			}
			return written, er
		}
	}
}
