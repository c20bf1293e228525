package nav

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// startBridge binds a bridge on an ephemeral port and serves it until the
// test ends.
func startBridge(t *testing.T) *Bridge {
	t.Helper()

	b := NewBridge("127.0.0.1:0", nil)
	require.NoError(t, b.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Serve(ctx)

	return b
}

// waitForFix polls the bridge until a fix appears or the deadline passes.
func waitForFix(t *testing.T, b *Bridge) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := b.Snapshot(); ok {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no navigation fix received before deadline")
	return Snapshot{}
}

func TestBridge_ReceivesNavigation(t *testing.T) {
	b := startBridge(t)

	conn, err := net.Dial("tcp", b.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("$NAVIGATION,43.508,16.439,1.2,25.5,8.3,33.8,0.1,0.2,0.0,0.0\r\n"))
	require.NoError(t, err)

	snap := waitForFix(t, b)
	require.NotNil(t, snap.Data.Depth)
	assert.InDelta(t, 25.5, *snap.Data.Depth, 1e-9)
	require.NotNil(t, snap.Data.Altitude)
	assert.InDelta(t, 8.3, *snap.Data.Altitude, 1e-9)
	assert.False(t, snap.At.IsZero())
}

func TestBridge_LatestFixWins(t *testing.T) {
	b := startBridge(t)

	conn, err := net.Dial("tcp", b.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(
		"$NAVIGATION,43.5,16.4,1.0,10.0,20.0,30.0,0,0,0,0\r\n" +
			"$NAVIGATION,43.5,16.4,1.0,11.0,19.0,30.0,0,0,0,0\r\n"))
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := b.Snapshot(); ok && snap.Data.Depth != nil && *snap.Data.Depth == 11.0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("second fix never observed")
}

func TestBridge_IgnoresOtherMessages(t *testing.T) {
	b := startBridge(t)

	conn, err := net.Dial("tcp", b.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("$HBEAT\r\n$SOMETHING,1,2,3\r\n"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, ok := b.Snapshot()
	assert.False(t, ok, "non-navigation messages must not produce a fix")
}

func TestBridge_SendsHeartbeat(t *testing.T) {
	b := startBridge(t)

	conn, err := net.Dial("tcp", b.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "$R_HBEAT"), "got %q", line)
}

func TestSimSource_AltitudeFromBottomDepth(t *testing.T) {
	var inner StaticSource
	inner.Set(NavigationData{Depth: Float(18.0)}, time.Now())

	sim := NewSimSource(&inner, 20.0, nil)

	snap, ok := sim.Snapshot()
	require.True(t, ok)
	require.NotNil(t, snap.Data.Altitude)
	assert.InDelta(t, 2.0, *snap.Data.Altitude, 1e-9)

	sim.SetBottomDepth(19.0)
	snap, _ = sim.Snapshot()
	require.NotNil(t, snap.Data.Altitude)
	assert.InDelta(t, 1.0, *snap.Data.Altitude, 1e-9)
}

func TestSimSource_NoDepthMeansNoAltitude(t *testing.T) {
	var inner StaticSource
	inner.Set(NavigationData{}, time.Now())

	sim := NewSimSource(&inner, 20.0, nil)
	snap, ok := sim.Snapshot()
	require.True(t, ok)
	assert.Nil(t, snap.Data.Altitude)
}
