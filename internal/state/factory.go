package state

import (
	"fmt"
	"log/slog"

	"github.com/dukerupert/shoplist/internal/metrics"
)

// KindShopping is the only controller kind the factory knows how to build.
const KindShopping = "shopping"

// Factory builds controllers that share one repository.
type Factory struct {
	repo    Repository
	metrics metrics.Recorder
	logger  *slog.Logger
}

func NewFactory(repo Repository, rec metrics.Recorder, logger *slog.Logger) *Factory {
	return &Factory{repo: repo, metrics: rec, logger: logger}
}

// New returns a started controller of the given kind. Asking for an unknown
// kind is a programming error and panics.
func (f *Factory) New(kind string) *Controller {
	switch kind {
	case KindShopping:
		return New(f.repo, f.metrics, f.logger)
	default:
		panic(fmt.Sprintf("state: unknown controller kind %q", kind))
	}
}
