package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"squeezemon/internal/application/port"
)

// Multi 把同一条消息依次发送到多个通道，单个通道失败不影响其余通道
type Multi struct {
	notifiers []port.Notifier
}

func NewMulti(notifiers ...port.Notifier) *Multi {
	out := make([]port.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return &Multi{notifiers: out}
}

func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Name() string {
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

func (m *Multi) Send(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ port.Notifier = (*Multi)(nil)
