package adapters

import (
	"context"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/internal/passes"
	"github.com/sells-group/prospect-pipeline/internal/resilience"
	"github.com/sells-group/prospect-pipeline/pkg/directory"
	"github.com/sells-group/prospect-pipeline/pkg/places"
	"github.com/sells-group/prospect-pipeline/pkg/reviews"
	"github.com/sells-group/prospect-pipeline/pkg/strategy"
	"github.com/sells-group/prospect-pipeline/pkg/webresearch"
)

// Clients bundles the provider clients behind the research passes.
type Clients struct {
	Places    places.Client
	Web       webresearch.Client
	Reviews   reviews.Client
	Directory directory.Client
	Strategy  strategy.Client
}

// NewRegistry builds a pass registry with one adapter per pass, each
// behind its own breaker so a provider outage fails fast instead of
// burning every queued prospect's retry budget. trade narrows the
// competitor benchmark query.
func NewRegistry(c Clients, trade string) *passes.Registry {
	breakers := resilience.NewBreakerSet(resilience.DefaultBreakerConfig())

	r := passes.NewRegistry()
	for _, a := range []passes.Adapter{
		NewLocation(c.Places),
		NewWeb(c.Web),
		NewReviews(c.Reviews, trade),
		NewSupplementary(c.Directory),
		NewStrategy(c.Strategy),
	} {
		r.Register(guarded{inner: a, breaker: breakers.Get(string(a.Pass()))})
	}
	return r
}

// guarded runs an adapter through its pass's breaker.
type guarded struct {
	inner   passes.Adapter
	breaker *resilience.Breaker
}

func (g guarded) Pass() model.PassID { return g.inner.Pass() }

func (g guarded) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return resilience.CallVal(ctx, g.breaker, func(ctx context.Context) (map[string]any, error) {
		return g.inner.Invoke(ctx, inputs)
	})
}
