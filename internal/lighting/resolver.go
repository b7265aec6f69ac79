package lighting

import (
	"context"
	"fmt"
	"log/slog"

	"vocalights/internal/domain"
)

// Resolver matches a phrase against a light's registry and carries out the
// resulting command. It is shared by every backend.
type Resolver struct {
	effects *Effects
	logger  *slog.Logger
}

func NewResolver(effects *Effects, logger *slog.Logger) *Resolver {
	return &Resolver{effects: effects, logger: logger}
}

// Resolve never returns an error: driver failures and panics become Error
// results, unmatched phrases become Info results.
func (r *Resolver) Resolve(ctx context.Context, phrase string, l *Light) (res domain.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("resolver panic", "light", l.Name, "panic", p)
			res = domain.Failure(l.Name, fmt.Errorf("internal error: %v", p))
		}
	}()

	entry, ok := l.backend.Registry.Lookup(phrase)
	if !ok {
		return domain.Info(l.Name, fmt.Sprintf("Voice command '%s' does not exist.", phrase))
	}

	cmd, err := entry.Resolve(phrase)
	if err != nil {
		return domain.Info(l.Name, err.Error())
	}

	r.logger.Debug("resolved", "light", l.Name, "keyword", entry.Keyword, "command", cmd.String())

	switch cmd.Kind {
	case domain.CommandEffectStart:
		effect, ok := l.backend.Registry.Effect(cmd.Effect)
		if !ok {
			return domain.Info(l.Name, fmt.Sprintf("effect %q is not available", cmd.Effect))
		}
		if _, err := r.effects.Start(l, effect); err != nil {
			return domain.Failure(l.Name, err)
		}

	case domain.CommandEffectStop:
		r.effects.Stop(l.Name, cmd.Effect)

	default:
		if err := l.Apply(ctx, cmd); err != nil {
			return domain.Failure(l.Name, err)
		}
	}

	return domain.Success(l.Name, entry.Keyword, l.Address)
}
