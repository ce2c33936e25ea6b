package indi

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/indidrv/internal/observability"
)

// blobPingPattern mirrors the original's "SetBLOB/%ld" ping uid shape.
const blobPingPattern = "SetBLOB/%d"

// blobGate implements the ping/pingReply backpressure scheme of
// spec.md §4.D, grounded on internal/protocol/session/outbox.go's
// pending-item-by-key, mutex-guarded shape (SPEC_FULL.md "BLOB flow
// controller"): reshaped from a retry-tracking outbox into a
// single-slot wait/signal gate, since at most one BLOB ping is ever
// outstanding at a time.
type blobGate struct {
	mu      sync.Mutex
	counter int64
	pending string         // uid of the outstanding ping, "" if none
	waiters map[string]chan struct{}
	timeout time.Duration // zero = wait forever, matching the original
	driver  string
}

func newBlobGate() *blobGate {
	return &blobGate{waiters: make(map[string]chan struct{})}
}

func (g *blobGate) setTimeout(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timeout = d
}

// send blocks on any previously outstanding ping, emits vp as
// <setBLOBVector>, then emits a fresh <pingRequest> and records its
// uid as the new pending ping.
func (g *blobGate) send(w *Writer, vp *BlobVector, fmtStr string, args []any) error {
	if err := g.awaitPending(); err != nil {
		return err
	}

	el := blobVectorSetElement(vp)
	el = withMessage(el, vp.Device, fmtStr, args)
	if err := w.Emit(el); err != nil {
		return err
	}

	g.mu.Lock()
	g.counter++
	uid := fmt.Sprintf(blobPingPattern, g.counter)
	g.pending = uid
	g.waiters[uid] = make(chan struct{})
	g.mu.Unlock()

	return w.Emit(NewElement("pingRequest").WithAttr("uid", uid))
}

func (g *blobGate) awaitPending() error {
	g.mu.Lock()
	uid := g.pending
	if uid == "" {
		g.mu.Unlock()
		return nil
	}
	ch := g.waiters[uid]
	timeout := g.timeout
	driver := g.driver
	g.mu.Unlock()

	start := time.Now()
	defer func() {
		observability.RecordBLOBPingWait(driver, time.Since(start))
	}()

	if timeout <= 0 {
		<-ch
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return fmt.Errorf("indi: timed out waiting for pingReply %q", uid)
	}
}

// resolve is called by the Dispatcher when it observes a matching
// <pingReply uid="..."/> element. It clears the pending id and wakes
// any waiter; an unknown uid is ignored (it may be stale or belong to
// another driver instance entirely).
func (g *blobGate) resolve(uid string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.waiters[uid]
	if !ok {
		return
	}
	delete(g.waiters, uid)
	if g.pending == uid {
		g.pending = ""
	}
	close(ch)
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// decodeBase64 decodes a oneBLOB body. The caller may pass an explicit
// enclen (encoded byte count): when it is positive and shorter than the
// body, only the first enclen bytes of the body are decoded; otherwise
// the whole body is. Whitespace is stripped before decoding.
func decodeBase64(body string, enclen int) ([]byte, error) {
	if enclen > 0 && enclen < len(body) {
		body = body[:enclen]
	}
	body = stripBase64Whitespace(body)
	return base64.StdEncoding.DecodeString(body)
}

func stripBase64Whitespace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\n' || c == '\r' || c == '\t' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
