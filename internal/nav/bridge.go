package nav

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
	"github.com/fs19062005-design/VIrtual-Slope/internal/timeutil"
)

// heartbeatPeriod is how often the bridge sends $R_HBEAT to a connected
// vehicle.
const heartbeatPeriod = time.Second

// Bridge is a TCP server that accepts a connection from the vehicle's
// navigation bridge and keeps the most recent navigation fix.
//
// A single client is served at a time; when it disconnects the bridge goes
// back to accepting. The latest fix and its receipt time are held under a
// mutex and handed out via Snapshot.
type Bridge struct {
	addr  string
	clock timeutil.Clock

	mu         sync.Mutex
	latest     NavigationData
	receivedAt time.Time
	haveFix    bool

	listener net.Listener
}

// NewBridge creates a bridge that will listen on addr (host:port).
func NewBridge(addr string, clock timeutil.Clock) *Bridge {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Bridge{addr: addr, clock: clock}
}

// Snapshot returns the most recent navigation fix and its receipt time.
// The bool result is false until the first fix arrives.
func (b *Bridge) Snapshot() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.haveFix {
		return Snapshot{}, false
	}
	return Snapshot{Data: b.latest, At: b.receivedAt}, true
}

// Listen binds the TCP listener. Call before Serve so tests can learn the
// bound address via Addr.
func (b *Bridge) Listen() error {
	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		return err
	}
	b.listener = ln
	monitoring.Logf("nav bridge listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listen address. Valid after Listen.
func (b *Bridge) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Serve accepts vehicle connections until the context is cancelled. Each
// connection is handled to completion before the next is accepted.
func (b *Bridge) Serve(ctx context.Context) error {
	if b.listener == nil {
		if err := b.Listen(); err != nil {
			return err
		}
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		b.listener.Close()
	}()

	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			monitoring.Logf("nav bridge accept: %v", err)
			continue
		}

		monitoring.Logf("nav bridge connected from %s", conn.RemoteAddr())
		b.handleConn(ctx, conn)
		monitoring.Logf("nav bridge connection closed; waiting for new connection")
	}
}

// handleConn reads navigation lines from one client and runs the heartbeat
// writer until the client disconnects or the context is cancelled.
func (b *Bridge) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go b.heartbeat(connCtx, conn)

	scan := bufio.NewScanner(conn)
	for scan.Scan() {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		line := strings.TrimRight(scan.Text(), "\r")
		if line == "" {
			continue
		}
		b.processLine(line)
	}
	if err := scan.Err(); err != nil && ctx.Err() == nil {
		monitoring.Logf("nav bridge read: %v", err)
	}
}

// heartbeat writes $R_HBEAT once per second so the vehicle knows the link is
// alive. Write errors end the loop; the read side notices the close.
func (b *Bridge) heartbeat(ctx context.Context, conn net.Conn) {
	ticker := b.clock.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := conn.Write([]byte("$R_HBEAT\r\n")); err != nil {
				return
			}
		}
	}
}

func (b *Bridge) processLine(line string) {
	switch {
	case strings.HasPrefix(line, "$HBEAT"):
		// Heartbeat echo from the vehicle; nothing to record.
	case strings.HasPrefix(line, "$NAVIGATION"):
		data, ok := ParseNavigation(line)
		if !ok {
			monitoring.Logf("nav bridge: malformed navigation message: %q", line)
			return
		}
		b.mu.Lock()
		b.latest = data
		b.receivedAt = b.clock.Now()
		b.haveFix = true
		b.mu.Unlock()
	default:
		// Other message types are ignored.
	}
}
