package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oliveiraadan/equibid/internal/domain"
	"github.com/oliveiraadan/equibid/internal/observability"
	"github.com/oliveiraadan/equibid/internal/provider"
	"github.com/oliveiraadan/equibid/internal/repository"
	"go.uber.org/zap"
)

// ResolveRequest is one inbound button click, already unwrapped from the
// platform envelope by the webhook handler.
type ResolveRequest struct {
	Channel domain.Channel
	ReplyTo string
	Token   string
}

// ResolveOutcome reports what a callback resolution did.
type ResolveOutcome struct {
	Action string
	// Applied is true only for the first effective callback per correlation
	// id; redeliveries still produce the follow-up message.
	Applied bool
	// Replied is false when the action was unknown or the follow-up send
	// failed. Send failures do not fail the webhook.
	Replied bool
}

// ResolverService ties an inbound webhook event back to its originating job
// through the correlation id and advances the conversation. Stateless per
// invocation; safe to run concurrently across requests and processes.
type ResolverService struct {
	jobs     repository.JobRepository
	contexts repository.ContextRepository
	registry *provider.Registry
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewResolverService(
	jobs repository.JobRepository,
	contexts repository.ContextRepository,
	registry *provider.Registry,
	logger *zap.Logger,
) (*ResolverService, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if contexts == nil {
		return nil, fmt.Errorf("context repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResolverService{
		jobs:     jobs,
		contexts: contexts,
		registry: registry,
		logger:   logger,
	}, nil
}

func (s *ResolverService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Resolve processes one callback. State mutation is exactly-once via the
// repository's conditional update; the follow-up message is at-least-once
// and safe to repeat, so webhook redeliveries re-send it.
func (s *ResolverService) Resolve(ctx context.Context, req ResolveRequest) (*ResolveOutcome, error) {
	action, correlationID, err := domain.ParseActionToken(req.Token)
	if err != nil {
		return nil, err
	}

	ctx = observability.WithCorrelationID(ctx, correlationID)
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("action", action),
		zap.String("channel", req.Channel.String()),
	)

	if !knownAction(action) {
		logger.Warn("unknown callback action, ignoring")
		if s.metrics != nil {
			s.metrics.IncCallback(action, "ignored")
		}
		return &ResolveOutcome{Action: action}, nil
	}

	applied, err := s.jobs.RecordResponse(ctx, correlationID, action)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no job for correlation id", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record response: %w", err)
	}
	if !applied {
		logger.Info("response already recorded, re-sending follow-up")
	}

	bc, err := s.contexts.LookupContext(ctx, correlationID)
	if errors.Is(err, domain.ErrNotFound) {
		if s.metrics != nil {
			s.metrics.IncCallback(action, "context_not_found")
		}
		return nil, fmt.Errorf("%w: business context no longer exists", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up business context: %w", err)
	}

	var msg Message
	switch action {
	case domain.ActionShowDetails:
		msg = RenderLotDetails(*bc)
	case domain.ActionNoThanks:
		msg = RenderNoThanks(correlationID)
	case domain.ActionCloseConvo:
		msg = RenderCloseConvo()
	}

	outcome := &ResolveOutcome{Action: action, Applied: applied}

	channelProvider, ok := s.registry.Get(req.Channel)
	if !ok {
		logger.Error("no provider registered for callback channel")
		if s.metrics != nil {
			s.metrics.IncCallback(action, "channel_disabled")
		}
		return outcome, nil
	}

	if err := s.sendFollowUp(ctx, channelProvider, req.ReplyTo, msg); err != nil {
		// The state transition is already committed; a failed follow-up is
		// logged, never surfaced as a webhook failure.
		logger.Error("failed to send follow-up message", zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncCallback(action, "reply_failed")
		}
		return outcome, nil
	}

	outcome.Replied = true
	if s.metrics != nil {
		s.metrics.IncCallback(action, "replied")
	}
	logger.Info("callback resolved", zap.Bool("applied", applied))
	return outcome, nil
}

func (s *ResolverService) sendFollowUp(ctx context.Context, p provider.Provider, replyTo string, msg Message) error {
	if strings.TrimSpace(replyTo) == "" {
		return fmt.Errorf("reply address is empty")
	}
	if msg.Interactive() {
		_, err := p.SendInteractive(ctx, replyTo, msg.Text, msg.Actions)
		return err
	}
	_, err := p.SendText(ctx, replyTo, msg.Text)
	return err
}

func knownAction(action string) bool {
	switch action {
	case domain.ActionShowDetails, domain.ActionNoThanks, domain.ActionCloseConvo:
		return true
	}
	return false
}
