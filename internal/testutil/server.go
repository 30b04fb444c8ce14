package testutil

import (
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
)

// NewEchoServer starts an httptest server backed by an echo instance configured by
// routes. The server is closed when the test ends.
func NewEchoServer(t *testing.T, routes func(e *echo.Echo)) *httptest.Server {
	t.Helper()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	routes(e)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server
}

// StatusSequence replies with the scripted statuses in order and repeats the last
// one once the script runs out. Bodies are paired by index; a missing body is "".
type StatusSequence struct {
	Statuses []int
	Bodies   []string
	calls    atomic.Int32
}

// Handler returns the echo handler serving the sequence.
func (s *StatusSequence) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		n := int(s.calls.Add(1)) - 1
		idx := min(n, len(s.Statuses)-1)
		body := ""
		if idx < len(s.Bodies) {
			body = s.Bodies[idx]
		}
		return c.String(s.Statuses[idx], body)
	}
}

// Calls reports how many requests the sequence has served.
func (s *StatusSequence) Calls() int {
	return int(s.calls.Load())
}
