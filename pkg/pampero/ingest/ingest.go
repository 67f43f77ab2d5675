// Package ingest fans provider fetches out in parallel and aggregates the
// normalized results. Every call runs behind the source's circuit breaker
// and the shared retry policy; one source failing never disturbs the rest.
package ingest

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/metrics"
	"github.com/meteosur/pampero/pkg/pampero/normalize"
	"github.com/meteosur/pampero/pkg/pampero/provider"
	"github.com/meteosur/pampero/pkg/pampero/resilience"
)

// Ingestor owns the provider fan-out.
type Ingestor struct {
	clients     []provider.Client
	normalizer  *normalize.Normalizer
	breakers    *resilience.Registry
	retry       config.RetryConfig
	callTimeout time.Duration
	parallelism int
}

// New wires the fan-out over the given clients.
func New(clients []provider.Client, normalizer *normalize.Normalizer, breakers *resilience.Registry, cfg *config.Config) *Ingestor {
	return &Ingestor{
		clients:     clients,
		normalizer:  normalizer,
		breakers:    breakers,
		retry:       cfg.Retry,
		callTimeout: cfg.Ingest.HTTPTimeout,
		parallelism: cfg.Ingest.MaxParallelism,
	}
}

// Sources lists the sources this ingestor can serve.
func (in *Ingestor) Sources() []meteo.SourceID {
	out := make([]meteo.SourceID, 0, len(in.clients))
	for _, c := range in.clients {
		out = append(out, c.Source())
	}
	return out
}

// FetchForecast returns the concatenated normalized forecasts of every
// requested source that produced data. Partial failure is not an error;
// with no surviving source the result is simply empty.
func (in *Ingestor) FetchForecast(ctx context.Context, lat, lon float64, hours int, sources []meteo.SourceID) []meteo.NormalizedPoint {
	selected := in.selectClients(sources)
	results := make([][]meteo.NormalizedPoint, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.parallelism)
	for i, client := range selected {
		i, client := i, client
		g.Go(func() error {
			records, err := in.guarded(gctx, client, func(callCtx context.Context) ([]provider.RawRecord, error) {
				return client.GetForecast(callCtx, lat, lon, hours)
			})
			if err != nil {
				return nil
			}
			results[i] = in.normalizer.Batch(records, client.Source(), lat, lon)
			return nil
		})
	}
	g.Wait()

	var points []meteo.NormalizedPoint
	for _, r := range results {
		points = append(points, r...)
	}
	klog.V(2).InfoS("Forecast fan-out complete",
		"requested", len(selected),
		"points", len(points),
		"lat", lat,
		"lon", lon)
	return points
}

// FetchCurrent returns at most one normalized point per requested source.
func (in *Ingestor) FetchCurrent(ctx context.Context, lat, lon float64, sources []meteo.SourceID) []meteo.NormalizedPoint {
	selected := in.selectClients(sources)
	results := make([]*meteo.NormalizedPoint, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.parallelism)
	for i, client := range selected {
		i, client := i, client
		g.Go(func() error {
			records, err := in.guarded(gctx, client, func(callCtx context.Context) ([]provider.RawRecord, error) {
				record, err := client.GetCurrent(callCtx, lat, lon)
				if err != nil || record == nil {
					return nil, err
				}
				return []provider.RawRecord{record}, nil
			})
			if err != nil || len(records) == 0 {
				return nil
			}
			batch := in.normalizer.Batch(records, client.Source(), lat, lon)
			results[i] = &batch[0]
			return nil
		})
	}
	g.Wait()

	points := make([]meteo.NormalizedPoint, 0, len(selected))
	for _, p := range results {
		if p != nil {
			points = append(points, *p)
		}
	}
	return points
}

// guarded runs one provider call behind its breaker and the retry policy,
// bounded by the per-call deadline.
func (in *Ingestor) guarded(ctx context.Context, client provider.Client, fn func(context.Context) ([]provider.RawRecord, error)) ([]provider.RawRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, in.callTimeout)
	defer cancel()

	var records []provider.RawRecord
	start := time.Now()
	err := in.breakers.For(client.Source()).Do(func() error {
		return resilience.WithRetry(callCtx, in.retry, provider.IsTransient, func() error {
			var err error
			records, err = fn(callCtx)
			return err
		})
	})
	metrics.ObserveProviderCall(client.Source(), time.Since(start), err, resilience.IsOpen(err))

	if err != nil {
		if resilience.IsOpen(err) {
			klog.V(2).InfoS("Source circuit open, no data this call", "source", client.Source())
		} else {
			klog.V(2).InfoS("Source contributed no data", "source", client.Source(), "err", err)
		}
		return nil, err
	}
	return records, nil
}

// selectClients filters the configured clients down to the requested
// sources; an empty request selects all of them.
func (in *Ingestor) selectClients(sources []meteo.SourceID) []provider.Client {
	if len(sources) == 0 {
		return in.clients
	}
	wanted := make(map[meteo.SourceID]bool, len(sources))
	for _, s := range sources {
		wanted[s] = true
	}
	out := make([]provider.Client, 0, len(in.clients))
	for _, c := range in.clients {
		if wanted[c.Source()] {
			out = append(out, c)
		}
	}
	return out
}
