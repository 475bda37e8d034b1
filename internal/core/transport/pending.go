package transport

import (
	"slices"
	"sync"
	"time"

	"github.com/zeusync/replica/internal/core/protocol"
)

type pendingCall struct {
	ref      uint64
	request  string
	callback protocol.ResponseCallback
	sentAt   time.Time
}

// pendingCalls holds callbacks in submission order. A response echoing a
// ref claims that call; a response without one claims the oldest call.
type pendingCalls struct {
	mu      sync.Mutex
	calls   []pendingCall
	nextRef uint64
}

func (p *pendingCalls) add(request string, cb protocol.ResponseCallback, now time.Time) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextRef++
	p.calls = append(p.calls, pendingCall{
		ref:      p.nextRef,
		request:  request,
		callback: cb,
		sentAt:   now,
	})
	return p.nextRef
}

func (p *pendingCalls) remove(ref uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.IndexFunc(p.calls, func(c pendingCall) bool { return c.ref == ref })
	if i < 0 {
		return false
	}
	p.calls = slices.Delete(p.calls, i, i+1)
	return true
}

// resolve claims the call a response answers. A ref that matches nothing,
// e.g. because the call already expired, claims nothing.
func (p *pendingCalls) resolve(resp *protocol.Response) (pendingCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.calls) == 0 {
		return pendingCall{}, false
	}

	i := 0
	if resp.Ref != 0 {
		i = slices.IndexFunc(p.calls, func(c pendingCall) bool { return c.ref == resp.Ref })
		if i < 0 {
			return pendingCall{}, false
		}
	}

	call := p.calls[i]
	p.calls = slices.Delete(p.calls, i, i+1)
	return call, true
}

// expire removes and returns calls sent at least timeout before now.
func (p *pendingCalls) expire(now time.Time, timeout time.Duration) []pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []pendingCall
	p.calls = slices.DeleteFunc(p.calls, func(c pendingCall) bool {
		if now.Sub(c.sentAt) >= timeout {
			expired = append(expired, c)
			return true
		}
		return false
	})
	return expired
}

func (p *pendingCalls) drain() []pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	calls := p.calls
	p.calls = nil
	return calls
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
