package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/platform/circuit"
)

const defaultProbeInterval = 30 * time.Second

// BreakerSender wraps a Sender with a circuit breaker. A streak of transport
// failures trips the breaker and subsequent sends fail fast instead of
// burning a timeout each; one probe per interval is let through so the
// breaker can close again when the transport recovers.
type BreakerSender struct {
	inner   Sender
	breaker *circuit.Breaker
	logger  *slog.Logger

	probeInterval time.Duration

	mu        sync.Mutex
	lastProbe time.Time
}

// BreakerOption configures a BreakerSender.
type BreakerOption func(*BreakerSender)

// WithProbeInterval sets how often an open breaker admits a probe send.
func WithProbeInterval(d time.Duration) BreakerOption {
	return func(s *BreakerSender) {
		if d > 0 {
			s.probeInterval = d
		}
	}
}

// WithBreaker wraps sender with failure-streak protection.
func WithBreaker(sender Sender, breaker *circuit.Breaker, logger *slog.Logger, opts ...BreakerOption) *BreakerSender {
	s := &BreakerSender{
		inner:         sender,
		breaker:       breaker,
		logger:        logger,
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BreakerSender) Send(ctx context.Context, msg Message) (string, error) {
	if s.breaker.IsOpen() && !s.admitProbe() {
		return "", dErrors.New(dErrors.CodeInternal, "mail transport unavailable")
	}

	messageID, err := s.inner.Send(ctx, msg)
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "mail transport circuit opened",
				"breaker", s.breaker.Name(),
			)
		}
		return "", err
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "mail transport circuit closed",
			"breaker", s.breaker.Name(),
		)
	}
	return messageID, nil
}

// admitProbe allows at most one send per probe interval while open.
func (s *BreakerSender) admitProbe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastProbe) < s.probeInterval {
		return false
	}
	s.lastProbe = time.Now()
	return true
}
