package filter

import (
	"context"
	"strings"

	"github.com/osa030/guildbox/internal/domain/track"
)

// SourceConfig represents the configuration for SourceFilter.
type SourceConfig struct {
	Allowed []string `yaml:"allowed" mapstructure:"allowed" validate:"min=1,dive,required"`
}

// SourceFilter accepts only tracks from the configured node sources
// (e.g. "youtube", "soundcloud").
type SourceFilter struct {
	allowed map[string]struct{}
}

func (f *SourceFilter) Name() string {
	return "source_filter"
}

func (f *SourceFilter) Description() string {
	return "Accepts only tracks from the configured sources"
}

func (f *SourceFilter) ReturnCodes() []string {
	return []string{"source_restriction"}
}

func (f *SourceFilter) ValidateConfig(settings map[string]any) error {
	var config SourceConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.allowed = make(map[string]struct{}, len(config.Allowed))
	for _, s := range config.Allowed {
		f.allowed[strings.ToLower(s)] = struct{}{}
	}
	return nil
}

// AppliesTo returns true: source restrictions hold for everyone.
func (f *SourceFilter) AppliesTo(r track.Requester) bool {
	return true
}

func (f *SourceFilter) Check(ctx context.Context, req Request) Result {
	if len(f.allowed) == 0 {
		return Accept()
	}
	if _, ok := f.allowed[strings.ToLower(req.Track.SourceName)]; !ok {
		return Reject("source_restriction")
	}
	return Accept()
}

func init() {
	Register("source_filter", func() Filter {
		return &SourceFilter{}
	})
}
