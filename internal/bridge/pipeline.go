// Package bridge contains the shared accept path for inbound state updates
// and the adapters that are not tied to an external protocol: the synthetic
// ticker and the ring-message handler.
package bridge

import (
	"log/slog"
	"time"

	"github.com/signbridge/signbridge/internal/state"
)

// Publisher sends a canonical state to the retained state topic.
type Publisher interface {
	Publish(s *state.State) error
}

// Pipeline is the single path every adapter feeds accepted states through:
// enrich with local display times, publish retained, record with provenance.
type Pipeline struct {
	publisher  Publisher
	store      *state.Store
	normalizer *state.Normalizer
	logger     *slog.Logger
}

func NewPipeline(publisher Publisher, store *state.Store, normalizer *state.Normalizer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		publisher:  publisher,
		store:      store,
		normalizer: normalizer,
		logger:     logger.With("component", "pipeline"),
	}
}

// Apply processes one accepted state. A publish failure is logged but does
// not stop the store update; the next accepted state republishes anyway.
func (p *Pipeline) Apply(s *state.State, src state.Source) {
	enriched := p.normalizer.Enrich(s)
	if err := p.publisher.Publish(enriched); err != nil {
		p.logger.Error("state publish failed", "source", src, "error", err)
	}
	p.store.Set(enriched, src)
}

// AnnounceOnline pushes the "bridge online" placeholder through the accept
// path. The transport runs it after every broker (re)connection so the
// retained topic always carries a fresh state.
func (p *Pipeline) AnnounceOnline() {
	p.Apply(state.Placeholder(time.Now()), state.SourceConnect)
}
