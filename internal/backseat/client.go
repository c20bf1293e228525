// Package backseat talks to the vehicle's mission-control ("backseat
// driver") HTTP API: it reads the current mission/phase advisory and sends
// depth setpoints through the overload channel.
//
// The advisory is exactly that, advisory. The depth controller never treats
// it as the source of truth for its own state.
package backseat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
	"github.com/fs19062005-design/VIrtual-Slope/internal/timeutil"
)

// phaseCacheTTL is how long a fetched advisory stays fresh. The control loop
// polls faster than the backseat API should be hit.
const phaseCacheTTL = 500 * time.Millisecond

// PhaseInfo is the mission advisory returned by GET /missions/current.
type PhaseInfo struct {
	Name           string `json:"name"`
	CurrentPhaseID *int   `json:"currentPhaseId"`
	State          string `json:"state"`
}

// Enabled reports whether the advisory says the current phase is active.
func (p PhaseInfo) Enabled() bool {
	return p.State == "Enabled"
}

// ClientConfig holds the connection settings for the backseat API.
type ClientConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
	// OverloadCommandDuration is how long the vehicle honours one depth
	// overload command before reverting to its default behavior.
	OverloadCommandDuration time.Duration
	// MinDepth and MaxDepth bound the setpoints the client will emit.
	MinDepth float64
	MaxDepth float64
}

// Client is the backseat API client. It caches the phase advisory briefly
// and keeps the last valid depth so an out-of-limits setpoint can be
// replaced rather than silently deepening past a limit.
type Client struct {
	cfg   ClientConfig
	base  string
	http  *http.Client
	clock timeutil.Clock

	mu             sync.Mutex
	cachedInfo     *PhaseInfo
	cachedAt       time.Time
	lastValidDepth *float64
}

// NewClient creates a backseat API client.
func NewClient(cfg ClientConfig, clock timeutil.Clock) *Client {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Client{
		cfg:   cfg,
		base:  fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		http:  &http.Client{Timeout: cfg.Timeout},
		clock: clock,
	}
}

// CurrentPhase returns the mission advisory. A fresh cached value is served
// without a request; on a transient fetch error the stale cached value is
// returned instead, with ok=false only when nothing has ever been fetched.
func (c *Client) CurrentPhase(ctx context.Context) (PhaseInfo, bool) {
	c.mu.Lock()
	if c.cachedInfo != nil && c.clock.Since(c.cachedAt) < phaseCacheTTL {
		info := *c.cachedInfo
		c.mu.Unlock()
		return info, true
	}
	c.mu.Unlock()

	info, err := c.fetchPhase(ctx)
	if err != nil {
		monitoring.Logf("backseat: error fetching phase advisory: %v", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.cachedInfo != nil {
			return *c.cachedInfo, true
		}
		return PhaseInfo{}, false
	}

	c.mu.Lock()
	c.cachedInfo = &info
	c.cachedAt = c.clock.Now()
	c.mu.Unlock()
	return info, true
}

func (c *Client) fetchPhase(ctx context.Context) (PhaseInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/missions/current", nil)
	if err != nil {
		return PhaseInfo{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return PhaseInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return PhaseInfo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var info PhaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return PhaseInfo{}, fmt.Errorf("decoding advisory: %w", err)
	}
	return info, nil
}

// SendDepthCommand posts one depth setpoint through the overload channel.
// Setpoints outside the configured depth limits are replaced with the last
// valid depth; when none exists the command is rejected.
func (c *Client) SendDepthCommand(ctx context.Context, depth float64) error {
	c.mu.Lock()
	if depth < c.cfg.MinDepth || depth > c.cfg.MaxDepth {
		if c.lastValidDepth == nil {
			c.mu.Unlock()
			return fmt.Errorf("depth %.1fm outside limits [%.1f, %.1f] and no previous valid depth",
				depth, c.cfg.MinDepth, c.cfg.MaxDepth)
		}
		monitoring.Logf("backseat: depth %.1fm outside limits [%.1f, %.1f], using last valid %.1fm",
			depth, c.cfg.MinDepth, c.cfg.MaxDepth, *c.lastValidDepth)
		depth = *c.lastValidDepth
	} else {
		d := depth
		c.lastValidDepth = &d
	}
	c.mu.Unlock()

	params := url.Values{}
	params.Set("timeout", strconv.FormatFloat(c.cfg.OverloadCommandDuration.Seconds(), 'f', -1, 64))
	params.Set("zCmd", "Depth")
	params.Set("zSetpoint", strconv.FormatFloat(depth, 'f', 2, 64))

	endpoint := c.base + "/missions/current/overload/parameters?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending depth command: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("depth command rejected: status %d", resp.StatusCode)
	}
	return nil
}
