package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Result is the explicit outcome of a best-effort publish.
type Result struct {
	Sent    bool
	Skipped bool
	Err     error
}

// Publisher wraps a Notifier so that sending can never fail the caller: errors and panics
// come back inside the Result.
type Publisher struct {
	notifier Notifier
	timeout  time.Duration
}

func NewPublisher(n Notifier, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Publisher{notifier: n, timeout: timeout}
}

func (p *Publisher) Publish(ctx context.Context, msg Message) (res Result) {
	if p == nil || p.notifier == nil {
		return Result{Skipped: true}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("notifier panic: %v", r)}
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.notifier.Send(sctx, msg)
	switch {
	case errors.Is(err, ErrDisabled):
		return Result{Skipped: true}
	case err != nil:
		return Result{Err: err}
	}
	return Result{Sent: true}
}
