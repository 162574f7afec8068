package ingest

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/config"
	"github.com/dgnsrekt/tgin/internal/route"
)

// Source is an ingestion source bound to the server at startup.
type Source interface {
	Bind(b route.Binder) error
	Count() int64
}

// Sources is the set of configured ingestion sources.
type Sources []Source

// Build creates one source per update config, all delivering to target.
func Build(cfgs []config.UpdateConfig, target route.Route, logger *zap.Logger) (Sources, error) {
	sources := make(Sources, 0, len(cfgs))
	for i, cfg := range cfgs {
		switch cfg.Type {
		case config.TypeLongPoll:
			sources = append(sources, NewPoller(cfg, target, logger))
		case config.TypeWebhook:
			sources = append(sources, NewWebhook(cfg, target, logger))
		default:
			return nil, fmt.Errorf("updates[%d]: unknown update type %q", i, cfg.Type)
		}
	}
	return sources, nil
}

// Bind binds every source to b.
func (s Sources) Bind(b route.Binder) error {
	for _, src := range s {
		if err := src.Bind(b); err != nil {
			return err
		}
	}
	return nil
}

// Count sums the updates delivered by every source.
func (s Sources) Count() int64 {
	var total int64
	for _, src := range s {
		total += src.Count()
	}
	return total
}
