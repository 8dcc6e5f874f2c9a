package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Payments counts reconciliation traffic since process start.
type Payments struct {
	WebhookOK          Counter
	WebhookRejected    Counter
	WebhookFailed      Counter
	CheckoutRedirected Counter
	CheckoutFailed     Counter
}

type PaymentsSnapshot struct {
	WebhookOK          uint64 `json:"webhook_ok"`
	WebhookRejected    uint64 `json:"webhook_rejected"`
	WebhookFailed      uint64 `json:"webhook_failed"`
	CheckoutRedirected uint64 `json:"checkout_redirected"`
	CheckoutFailed     uint64 `json:"checkout_failed"`
}

func (p *Payments) Snapshot() PaymentsSnapshot {
	return PaymentsSnapshot{
		WebhookOK:          p.WebhookOK.Load(),
		WebhookRejected:    p.WebhookRejected.Load(),
		WebhookFailed:      p.WebhookFailed.Load(),
		CheckoutRedirected: p.CheckoutRedirected.Load(),
		CheckoutFailed:     p.CheckoutFailed.Load(),
	}
}
