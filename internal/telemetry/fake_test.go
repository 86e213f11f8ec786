package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn driven by tests.
type fakeConn struct {
	mu         sync.Mutex
	topic      string
	handler    func(topic string, payload []byte)
	subscribes int
	subErr     error
	closed     bool

	done    chan struct{}
	once    sync.Once
	lostErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{})}
}

func (c *fakeConn) Subscribe(_ context.Context, topic string, handler func(string, []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes++
	if c.subErr != nil {
		return c.subErr
	}
	c.topic = topic
	c.handler = handler
	return nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lostErr
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

// drop simulates the broker going away.
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.lostErr = err
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

// deliver hands a payload to the registered handler as the transport would.
func (c *fakeConn) deliver(t *testing.T, payload string) {
	t.Helper()
	c.mu.Lock()
	h, topic := c.handler, c.topic
	c.mu.Unlock()
	if h == nil {
		t.Fatal("deliver before subscribe")
	}
	h(topic, []byte(payload))
}

func (c *fakeConn) isSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// dialBehaviour selects how a fakeDialer answers one attempt.
type dialBehaviour int

const (
	dialOK dialBehaviour = iota
	dialFail
	dialHang
)

var errRefused = errors.New("connection refused")

// fakeDialer records attempts and answers them from a script.
// Attempts beyond the script use fallback.
type fakeDialer struct {
	mu       sync.Mutex
	script   []dialBehaviour
	fallback dialBehaviour
	dialErr  error // returned by dialFail instead of errRefused
	subErr   error
	dials    []DialOptions
	conns    chan *fakeConn
}

func newFakeDialer(script ...dialBehaviour) *fakeDialer {
	return &fakeDialer{script: script, conns: make(chan *fakeConn, 32)}
}

func (d *fakeDialer) Dial(ctx context.Context, opts DialOptions) (Conn, error) {
	d.mu.Lock()
	n := len(d.dials)
	d.dials = append(d.dials, opts)
	b := d.fallback
	if n < len(d.script) {
		b = d.script[n]
	}
	subErr := d.subErr
	dialErr := d.dialErr
	d.mu.Unlock()

	switch b {
	case dialFail:
		if dialErr != nil {
			return nil, dialErr
		}
		return nil, errRefused
	case dialHang:
		<-ctx.Done()
		return nil, ctx.Err()
	}

	conn := newFakeConn()
	conn.subErr = subErr
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) dialed(i int) DialOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[i]
}

// nextConn waits for the next successful dial and its subscription.
func (d *fakeDialer) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-d.conns:
		if conn.subErr == nil {
			waitFor(t, "subscription", conn.isSubscribed)
		}
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

// waitFor polls cond until it holds or fails the test after two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitForState(t *testing.T, c *Client, want ConnectionState) {
	t.Helper()
	waitFor(t, "state "+string(want), func() bool {
		return c.Snapshot().State == want
	})
}

// recorder collects OnChange notifications.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func testConfig() Config {
	return Config{
		BrokerEndpoint:    "tcp://broker.test:1883",
		Topic:             "smart_irrigation/soil_data",
		ReconnectInterval: 10 * time.Millisecond,
		ConnectTimeout:    time.Second,
	}
}

func newTestClient(t *testing.T, cfg Config, d Dialer) *Client {
	t.Helper()
	c, err := New(cfg, d)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}
