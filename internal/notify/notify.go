package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/hamed0406/apihealth/internal/domain"
)

// ErrDisabled is returned by a provider that has nothing configured to send to.
var ErrDisabled = errors.New("notifier disabled")

// Message is one state-change alert.
type Message struct {
	Subject    string
	Body       string
	EndpointID string
	State      domain.State
	Targets    []string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Multi sends to every provider in order. Disabled providers are ignored; the remaining
// errors are combined. If nothing was enabled the result is ErrDisabled.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var (
		err     error
		enabled int
	)
	for i, n := range m {
		if n == nil {
			continue
		}
		sendErr := n.Send(ctx, msg)
		if errors.Is(sendErr, ErrDisabled) {
			continue
		}
		enabled++
		if sendErr != nil {
			err = multierr.Append(err, fmt.Errorf("notifier %d (%T): %w", i, n, sendErr))
		}
	}
	if enabled == 0 {
		return ErrDisabled
	}
	return err
}
