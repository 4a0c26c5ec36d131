package filter

import (
	"context"

	"github.com/osa030/guildbox/internal/domain/track"
)

// BlockedRequesterConfig represents the configuration for BlockedRequesterFilter.
type BlockedRequesterConfig struct {
	UserIDs []string `yaml:"user_ids" mapstructure:"user_ids"`
}

// BlockedRequesterFilter rejects every request from listed users.
type BlockedRequesterFilter struct {
	blocked map[string]struct{}
}

func (f *BlockedRequesterFilter) Name() string {
	return "blocked_requester_filter"
}

func (f *BlockedRequesterFilter) Description() string {
	return "Rejects requests from blocked users"
}

func (f *BlockedRequesterFilter) ReturnCodes() []string {
	return []string{"blocked"}
}

func (f *BlockedRequesterFilter) ValidateConfig(settings map[string]any) error {
	var config BlockedRequesterConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.blocked = make(map[string]struct{}, len(config.UserIDs))
	for _, id := range config.UserIDs {
		f.blocked[id] = struct{}{}
	}
	return nil
}

func (f *BlockedRequesterFilter) AppliesTo(r track.Requester) bool {
	return !r.Privileged
}

func (f *BlockedRequesterFilter) Check(ctx context.Context, req Request) Result {
	if _, ok := f.blocked[req.Requester.ID]; ok {
		return Reject("blocked")
	}
	return Accept()
}

func init() {
	Register("blocked_requester_filter", func() Filter {
		return &BlockedRequesterFilter{}
	})
}
