package messaging

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jwalitptl/report-assistant/pkg/logger"
)

var ErrSubscribeUnsupported = errors.New("log broker does not support subscriptions")

// LogBroker writes published messages to the log. It stands in for Redis in
// single-process deployments.
type LogBroker struct {
	logger *logger.Logger
}

func NewLogBroker(log *logger.Logger) *LogBroker {
	return &LogBroker{logger: log}
}

func (b *LogBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.logger.Info("Event published", "channel", channel, "payload", string(data))
	return nil
}

func (b *LogBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, ErrSubscribeUnsupported
}

func (b *LogBroker) Close() error {
	return nil
}
