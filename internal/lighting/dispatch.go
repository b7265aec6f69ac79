package lighting

import (
	"context"
	"log/slog"
	"strings"

	"vocalights/internal/domain"
)

// Dispatcher fans a phrase out to the lights it names, or to every light
// when it names none.
type Dispatcher struct {
	lights   []*Light
	resolver *Resolver
	logger   *slog.Logger
}

func NewDispatcher(lights []*Light, resolver *Resolver, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		lights:   lights,
		resolver: resolver,
		logger:   logger,
	}
}

func (d *Dispatcher) Lights() []*Light {
	out := make([]*Light, len(d.lights))
	copy(out, d.lights)
	return out
}

// Targets selects the lights addressed by a lower-case phrase.
func (d *Dispatcher) Targets(phrase string) []*Light {
	var targets []*Light
	for _, l := range d.lights {
		if l.Mentioned(phrase) {
			targets = append(targets, l)
		}
	}
	if len(targets) == 0 {
		return d.Lights()
	}
	return targets
}

// Dispatch returns exactly one result per target light, in configuration
// order. Lights are resolved independently.
func (d *Dispatcher) Dispatch(ctx context.Context, phrase string) []domain.Result {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	targets := d.Targets(phrase)

	results := make([]domain.Result, 0, len(targets))
	for _, l := range targets {
		res := d.resolver.Resolve(ctx, phrase, l)
		d.logger.Debug("dispatch result",
			"light", l.Name,
			"backend", l.Backend().Name,
			"kind", res.Kind.String(),
			"keyword", res.Keyword,
		)
		results = append(results, res)
	}
	return results
}
