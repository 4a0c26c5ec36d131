package filter

import (
	"context"

	"github.com/osa030/guildbox/internal/domain/track"
)

// RequesterQuotaConfig represents the configuration for RequesterQuotaFilter.
type RequesterQuotaConfig struct {
	MaxQueued int `yaml:"max_queued" mapstructure:"max_queued" default:"3" validate:"gte=1"`
}

// RequesterQuotaFilter limits how many waiting entries one requester may
// have. Privileged requesters are exempt.
type RequesterQuotaFilter struct {
	config RequesterQuotaConfig
}

// NewRequesterQuotaFilter creates a quota filter with the default limit.
func NewRequesterQuotaFilter() *RequesterQuotaFilter {
	return &RequesterQuotaFilter{config: RequesterQuotaConfig{MaxQueued: 3}}
}

func (f *RequesterQuotaFilter) Name() string {
	return "requester_quota_filter"
}

func (f *RequesterQuotaFilter) Description() string {
	return "Limits the number of queued entries per requester"
}

func (f *RequesterQuotaFilter) ReturnCodes() []string {
	return []string{"requester_quota"}
}

func (f *RequesterQuotaFilter) ValidateConfig(settings map[string]any) error {
	var config RequesterQuotaConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = config
	return nil
}

func (f *RequesterQuotaFilter) AppliesTo(r track.Requester) bool {
	return !r.Privileged
}

func (f *RequesterQuotaFilter) Check(ctx context.Context, req Request) Result {
	n := 0
	for _, e := range req.Queue {
		if e.Requester.ID == req.Requester.ID {
			n++
		}
	}
	if n >= f.config.MaxQueued {
		return Reject("requester_quota")
	}
	return Accept()
}

func init() {
	Register("requester_quota_filter", func() Filter {
		return NewRequesterQuotaFilter()
	})
}
