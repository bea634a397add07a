// Package resolver implements the built-in ConflictResolver strategies from
// spec §4.4: last-write-wins (the teacher's GREATEST()-based LWW compare in
// internal/service/syncservice, expressed here as a plain timestamp
// comparison instead of SQL), server-wins, client-wins, and a custom hook.
package resolver

import (
	"context"

	"github.com/erauner12/syncengine/internal/config"
	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/syncerr"
)

// CustomFunc is the signature a caller supplies for config.StrategyCustom.
type CustomFunc func(ctx context.Context, cc engine.ConflictContext) (engine.Resolution, error)

// New builds the ConflictResolver named by cfg.ConflictStrategy. custom may
// be nil unless strategy is config.StrategyCustom, in which case a nil
// custom is a configuration error (spec §4.4).
func New(cfg config.Config, custom CustomFunc) (engine.ConflictResolver, error) {
	switch cfg.ConflictStrategy {
	case config.StrategyLastWriteWins, "":
		return lastWriteWins{}, nil
	case config.StrategyServerWins:
		return serverWins{}, nil
	case config.StrategyClientWins:
		return clientWins{}, nil
	case config.StrategyCustom:
		if custom == nil {
			return nil, &syncerr.ConflictPolicyError{Reason: "strategy \"custom\" requires a resolver function"}
		}
		return customResolver{fn: custom}, nil
	default:
		return nil, &syncerr.ConflictPolicyError{Reason: "unknown conflict strategy: " + string(cfg.ConflictStrategy)}
	}
}

// lastWriteWins picks whichever side has the larger updated-at timestamp,
// mirroring the teacher's "WHERE EXCLUDED.updated_at_ms > note.updated_at_ms"
// upsert guard. Ties favor the server, since the local write already exists
// and a no-op apply is safer than re-queuing it.
type lastWriteWins struct{}

func (lastWriteWins) Resolve(_ context.Context, cc engine.ConflictContext) (engine.Resolution, error) {
	if cc.LocalUpdatedAt > cc.ServerUpdatedAt {
		return engine.Resolution{Kind: engine.ResolveLocal}, nil
	}
	return engine.Resolution{Kind: engine.ResolveServer}, nil
}

type serverWins struct{}

func (serverWins) Resolve(_ context.Context, _ engine.ConflictContext) (engine.Resolution, error) {
	return engine.Resolution{Kind: engine.ResolveServer}, nil
}

type clientWins struct{}

func (clientWins) Resolve(_ context.Context, _ engine.ConflictContext) (engine.Resolution, error) {
	return engine.Resolution{Kind: engine.ResolveLocal}, nil
}

type customResolver struct {
	fn CustomFunc
}

func (c customResolver) Resolve(ctx context.Context, cc engine.ConflictContext) (engine.Resolution, error) {
	return c.fn(ctx, cc)
}
