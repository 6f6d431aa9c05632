// Package mail abstracts the outbound email transport.
package mail

import "context"

// Message is one outbound email.
type Message struct {
	To      []string
	CC      []string
	Subject string
	Body    string
	ReplyTo string
}

// Sender delivers one message per call. No built-in retry; callers own
// failure policy.
type Sender interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) (string, error)

func (f SenderFunc) Send(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}
