// Package listener is the retry helper for listener-style clients: one attempt sends
// a request whose response is delivered asynchronously to a per-attempt
// ResponseListener, and a response reader waits on that listener.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gaborage/go-restclient/logger"
)

const (
	DefaultMaxConnections = 64
	DefaultStopTimeout    = 30 * time.Second

	contentChunkSize = 32 << 10
)

var (
	// ErrNotStarted is returned by Send before Start or after Stop.
	ErrNotStarted = errors.New("listener: client is not started")
	// ErrDestroyed is returned by Start once the client has been destroyed.
	ErrDestroyed = errors.New("listener: client is destroyed")
)

type state int

const (
	stateStopped state = iota
	stateStarted
	stateDestroyed
)

// Response is the status line and headers of a response delivered to a listener.
// The body arrives separately through OnContent.
type Response struct {
	StatusCode int
	Reason     string
	Header     http.Header
	Request    *http.Request
}

func newResponse(resp *http.Response) *Response {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Reason:     reason,
		Header:     resp.Header,
		Request:    resp.Request,
	}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMaxConnections caps the number of exchanges in flight. Send blocks while the cap is reached.
func WithMaxConnections(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxConnections = int64(n)
		}
	}
}

// WithStopTimeout bounds how long Stop waits for in-flight exchanges.
func WithStopTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.stopTimeout = d
		}
	}
}

// WithClientLogger sets the logger for lifecycle events.
func WithClientLogger(log logger.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// Client sends requests over an *http.Client and streams each response to a
// listener from its own goroutine. It must be started before use; Stop aborts
// exchanges in flight and Destroy releases pooled connections for good.
type Client struct {
	http           *http.Client
	maxConnections int64
	stopTimeout    time.Duration
	logger         logger.Logger

	mu       sync.Mutex
	state    state
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	lifetime context.Context
	cancel   context.CancelFunc
}

// NewClient wraps httpClient. A nil httpClient uses a fresh *http.Client.
func NewClient(httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		http:           httpClient,
		maxConnections: DefaultMaxConnections,
		stopTimeout:    DefaultStopTimeout,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sem = semaphore.NewWeighted(c.maxConnections)
	return c
}

// Start makes the client accept exchanges. Starting a started client is a no-op.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateStarted:
		return nil
	case stateDestroyed:
		return ErrDestroyed
	}
	c.lifetime, c.cancel = context.WithCancel(context.Background())
	c.state = stateStarted
	c.logger.Debug().Int64("max_connections", c.maxConnections).Msg("Listener client started")
	return nil
}

// IsStarted reports whether the client accepts exchanges.
func (c *Client) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateStarted
}

// Stop refuses new exchanges, aborts those in flight and waits for their goroutines.
// It fails when they do not finish within the stop timeout.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.state != stateStarted {
		c.mu.Unlock()
		return nil
	}
	c.state = stateStopped
	c.cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		c.logger.Debug().Msg("Listener client stopped")
		return nil
	case <-timer.C:
		return fmt.Errorf("listener: stop timed out after %s with exchanges in flight", c.stopTimeout)
	}
}

// Destroy releases idle connections. A destroyed client cannot be restarted.
func (c *Client) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateStarted {
		c.cancel()
	}
	c.state = stateDestroyed
	c.http.CloseIdleConnections()
	c.logger.Debug().Msg("Listener client destroyed")
}

// Send starts an exchange for req and returns once it is under way. The response is
// delivered to l from another goroutine. Send blocks while MaxConnections exchanges
// are in flight; ctx bounds that wait.
func (c *Client) Send(ctx context.Context, req *http.Request, l ResponseListener) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("listener: wait for connection slot: %w", err)
	}

	c.mu.Lock()
	if c.state != stateStarted {
		c.mu.Unlock()
		c.sem.Release(1)
		return ErrNotStarted
	}
	c.wg.Add(1)
	lifetime := c.lifetime
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(req.Context())
	if b, ok := l.(cancelBinder); ok {
		b.bindCancel(cancel)
	}
	go c.exchange(lifetime, req.WithContext(ctx), cancel, l)
	return nil
}

// cancelBinder is implemented by listeners that can abort their exchange while it
// is still waiting for a response.
type cancelBinder interface {
	bindCancel(cancel context.CancelFunc)
}

func (c *Client) exchange(lifetime context.Context, req *http.Request, cancel context.CancelFunc, l ResponseListener) {
	defer c.wg.Done()
	defer c.sem.Release(1)
	defer cancel()

	stop := context.AfterFunc(lifetime, cancel)
	defer stop()

	resp, err := c.http.Do(req)
	if err != nil {
		l.OnComplete(nil, err)
		return
	}
	defer resp.Body.Close()

	r := newResponse(resp)
	l.OnHeaders(r)

	buf := make([]byte, contentChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := l.OnContent(r, buf[:n]); err != nil {
				l.OnComplete(r, err)
				return
			}
		}
		if errors.Is(readErr, io.EOF) {
			l.OnComplete(r, nil)
			return
		}
		if readErr != nil {
			l.OnComplete(r, readErr)
			return
		}
	}
}
