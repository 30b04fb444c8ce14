package listener

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gaborage/go-restclient/httpclient"
)

// ResponseListener receives the events of one exchange, in order: OnHeaders once a
// response arrives, OnContent for each body chunk, then OnComplete exactly once.
// When no response arrives only OnComplete is called, with a nil response.
type ResponseListener interface {
	OnHeaders(resp *Response)
	// OnContent receives a chunk that is only valid during the call. A non-nil
	// error aborts the exchange.
	OnContent(resp *Response, chunk []byte) error
	OnComplete(resp *Response, err error)
}

// StreamResponseListener exposes an exchange as a response plus a body stream. The
// body is unbuffered: the exchange advances only as fast as Body is read, and
// closing Body aborts it.
type StreamResponseListener struct {
	arrived chan struct{}
	once    sync.Once
	resp    *Response
	failure error

	reader *io.PipeReader
	writer *io.PipeWriter

	mu      sync.Mutex
	cancel  context.CancelFunc
	aborted bool
}

// NewStreamResponseListener returns a listener ready for one exchange.
func NewStreamResponseListener() *StreamResponseListener {
	pr, pw := io.Pipe()
	return &StreamResponseListener{
		arrived: make(chan struct{}),
		reader:  pr,
		writer:  pw,
	}
}

func (l *StreamResponseListener) signal(resp *Response, err error) {
	l.once.Do(func() {
		l.resp = resp
		l.failure = err
		close(l.arrived)
	})
}

func (l *StreamResponseListener) OnHeaders(resp *Response) {
	l.signal(resp, nil)
}

func (l *StreamResponseListener) OnContent(_ *Response, chunk []byte) error {
	_, err := l.writer.Write(chunk)
	return err
}

func (l *StreamResponseListener) OnComplete(resp *Response, err error) {
	if err != nil {
		if resp == nil {
			l.signal(nil, err)
		}
		_ = l.writer.CloseWithError(err)
		return
	}
	l.signal(resp, nil)
	_ = l.writer.Close()
}

func (l *StreamResponseListener) bindCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.aborted {
		cancel()
		return
	}
	l.cancel = cancel
}

// Get waits up to timeout for the response headers. A failed exchange returns its
// error. On timeout or ctx end the exchange is aborted and its connection slot
// released.
func (l *StreamResponseListener) Get(ctx context.Context, timeout time.Duration) (*Response, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.arrived:
		if l.failure != nil {
			return nil, l.failure
		}
		return l.resp, nil
	case <-ctx.Done():
		l.abort(ctx.Err())
		return nil, ctx.Err()
	case <-timer.C:
		err := httpclient.NewTimeoutError("response headers not received", timeout, context.DeadlineExceeded)
		l.abort(err)
		return nil, err
	}
}

// Body returns the response body stream. Reading it after a failed exchange
// returns the failure.
func (l *StreamResponseListener) Body() io.ReadCloser {
	return l.reader
}

func (l *StreamResponseListener) abort(err error) {
	l.mu.Lock()
	l.aborted = true
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	_ = l.reader.CloseWithError(err)
}

// errListenerUnused marks readers asked for a response before Listener was called.
var errListenerUnused = errors.New("listener: no listener was requested from the reader")
