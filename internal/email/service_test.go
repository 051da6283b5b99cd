package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/report-assistant/pkg/logger"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.sent = append(c.sent, m...)
	return c.err
}

func TestSendWelcome(t *testing.T) {
	sender := &captureSender{}
	svc := newServiceWithSender("noreply@example.com", sender)

	require.NoError(t, svc.SendWelcome(context.Background(), "ali@example.com", "Ali"))
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, []string{"ali@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"noreply@example.com"}, m.GetHeader("From"))

	buf := &bytes.Buffer{}
	_, err := m.WriteTo(buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Hi Ali")
}

func TestSendWelcomeTransportError(t *testing.T) {
	svc := newServiceWithSender("noreply@example.com", &captureSender{err: errors.New("refused")})
	assert.Error(t, svc.SendWelcome(context.Background(), "a@b.co", "A"))
}

func TestNoopService(t *testing.T) {
	assert.NoError(t, NewNoopService(logger.Nop()).SendWelcome(context.Background(), "a@b.co", "A"))
}
