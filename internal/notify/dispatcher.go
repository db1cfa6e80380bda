// Package notify renders notification messages and fans them out to
// telegram chats and web push subscriptions.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"venue-vote/internal/domain/recipient"
	"venue-vote/internal/metrics"
)

var ErrNoRecipients = errors.New("no recipients")

// Sender delivers a message to one recipient of its channel.
type Sender interface {
	Send(ctx context.Context, to recipient.Recipient, msg Message) error
}

type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (r Result) Total() int {
	return r.Sent + r.Failed
}

type Dispatcher struct {
	senders     map[recipient.Channel]Sender
	timeout     time.Duration
	concurrency int
}

func NewDispatcher(timeout time.Duration, concurrency int) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 16
	}
	return &Dispatcher{
		senders:     make(map[recipient.Channel]Sender),
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// Register installs the sender for a channel. It must be called before the
// dispatcher is shared.
func (d *Dispatcher) Register(ch recipient.Channel, s Sender) {
	d.senders[ch] = s
}

// Configured reports whether at least one channel can deliver.
func (d *Dispatcher) Configured() bool {
	return len(d.senders) > 0
}

// Dispatch sends msg to every recipient concurrently. Individual failures
// and timeouts are counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []recipient.Recipient, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}
	if len(recipients) == 0 {
		return Result{}, ErrNoRecipients
	}

	var sent, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)

	for _, rc := range recipients {
		g.Go(func() error {
			if err := d.sendOne(ctx, rc, msg); err != nil {
				failed.Add(1)
				metrics.IncDispatch(string(rc.Channel), "failed")
				slog.Warn("notification send failed",
					"channel", rc.Channel,
					"kind", msg.Kind,
					"error", err,
				)
				return nil
			}
			sent.Add(1)
			metrics.IncDispatch(string(rc.Channel), "sent")
			return nil
		})
	}
	_ = g.Wait()

	return Result{Sent: int(sent.Load()), Failed: int(failed.Load())}, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, rc recipient.Recipient, msg Message) error {
	s, ok := d.senders[rc.Channel]
	if !ok {
		return fmt.Errorf("no sender for channel %q", rc.Channel)
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Senders backed by clients without context support may block past the
	// deadline; the result is abandoned then.
	done := make(chan error, 1)
	go func() { done <- s.Send(sendCtx, rc, msg) }()
	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		return sendCtx.Err()
	}
}
