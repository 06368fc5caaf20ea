package provider

import (
	"context"
	"sort"

	"github.com/oliveiraadan/equibid/internal/domain"
)

// Action is one interactive button on an outbound message. Token carries
// "<action>:<correlation_id>" for callback buttons; URL buttons leave Token
// empty and point the user at a page instead.
type Action struct {
	Label string
	Token string
	URL   string
}

// Receipt stores provider call metadata for audit and persistence. An empty
// ProviderMessageID means the send succeeded but the platform returned no
// identifier to track it by.
type Receipt struct {
	StatusCode        int
	Body              string
	ProviderMessageID string
}

// Provider is the outbound delivery port, one implementation per platform.
type Provider interface {
	SendText(ctx context.Context, recipient, text string) (*Receipt, error)
	SendInteractive(ctx context.Context, recipient, text string, actions []Action) (*Receipt, error)
}

// Registry holds the providers for the channels this process is configured
// for. A channel without credentials is simply absent.
type Registry struct {
	providers map[domain.Channel]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[domain.Channel]Provider)}
}

func (r *Registry) Register(channel domain.Channel, p Provider) {
	if r == nil || p == nil || !channel.IsValid() {
		return
	}
	r.providers[channel] = p
}

func (r *Registry) Get(channel domain.Channel) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[channel]
	return p, ok
}

// Channels returns the enabled channels in stable order; the dispatcher uses
// this as its claim filter.
func (r *Registry) Channels() []domain.Channel {
	if r == nil {
		return nil
	}
	channels := make([]domain.Channel, 0, len(r.providers))
	for channel := range r.providers {
		channels = append(channels, channel)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.providers)
}
