// Package pampero assembles the forecast pipeline behind the public
// consumer surface: parallel provider ingestion, weighted fusion,
// cross-source inconsistency reporting, pattern detection, operational
// alerts and profile risk scoring.
package pampero

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/alert"
	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/fusion"
	"github.com/meteosur/pampero/pkg/pampero/ingest"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/metrics"
	"github.com/meteosur/pampero/pkg/pampero/normalize"
	"github.com/meteosur/pampero/pkg/pampero/pattern"
	"github.com/meteosur/pampero/pkg/pampero/provider"
	"github.com/meteosur/pampero/pkg/pampero/resilience"
	"github.com/meteosur/pampero/pkg/pampero/risk"
)

// Boundary limits for caller-supplied parameters.
const (
	MaxForecastHours   = 336
	MaxRiskWindowHours = 72
)

// ErrValidation marks requests rejected at the boundary before any
// provider work starts.
var ErrValidation = errors.New("validation error")

// IsValidation reports whether err is a boundary rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Service is the decision core. Stateless between requests apart from
// circuit-breaker state and the provider caches.
type Service struct {
	config   *config.Config
	clients  []provider.Client
	breakers *resilience.Registry
	ingestor *ingest.Ingestor
	fuser    *fusion.Fuser
	detector *pattern.Detector
	alerts   *alert.Service
	scorer   *risk.Scorer
	clock    clock.Clock
}

type options struct {
	clients []provider.Client
	clock   clock.Clock
}

// Option adjusts service construction.
type Option func(*options)

// WithClients replaces the config-built provider set.
func WithClients(clients []provider.Client) Option {
	return func(o *options) { o.clients = clients }
}

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// New builds the service from configuration, constructing the provider
// clients and every downstream component.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	o := options{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	clients := o.clients
	if clients == nil {
		clients = provider.BuildClients(cfg)
	}
	sources := make([]meteo.SourceID, 0, len(clients))
	for _, c := range clients {
		sources = append(sources, c.Source())
	}

	breakers := resilience.NewRegistry(cfg.Breaker, sources, provider.CountsAsFailure,
		func(source meteo.SourceID, _, to string) {
			metrics.SetBreakerState(source, to)
		})

	svc := &Service{
		config:   cfg,
		clients:  clients,
		breakers: breakers,
		ingestor: ingest.New(clients, normalize.New(meteo.SourceWRFSMN, o.clock), breakers, cfg),
		fuser:    fusion.NewFuser(cfg.Fusion, o.clock),
		detector: pattern.NewDetector(cfg.Patterns, o.clock),
		alerts:   alert.NewService(cfg.Patterns, o.clock),
		scorer:   risk.NewScorer(),
		clock:    o.clock,
	}
	klog.V(2).InfoS("Pampero service initialized", "sources", sources)
	return svc, nil
}

// Close releases provider resources.
func (s *Service) Close() {
	provider.CloseAll(s.clients)
}

// Sources lists the sources the service can currently reach.
func (s *Service) Sources() []meteo.SourceID {
	return s.ingestor.Sources()
}

// BreakerStates reports each source's circuit state for health surfaces.
func (s *Service) BreakerStates() map[meteo.SourceID]string {
	return s.breakers.States()
}

// GetUnifiedForecast fetches, normalizes and fuses the requested horizon
// for one location. The result is ordered by ascending forecast hour; an
// empty result with a nil error means no source produced data.
func (s *Service) GetUnifiedForecast(ctx context.Context, lat, lon float64, hours int, sources []meteo.SourceID) ([]meteo.UnifiedForecast, error) {
	if err := validateLocation(lat, lon); err != nil {
		return nil, err
	}
	if hours < 1 || hours > MaxForecastHours {
		return nil, validationErrorf("hours %d outside [1, %d]", hours, MaxForecastHours)
	}
	if err := validateSources(sources); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	start := s.clock.Now()
	points := s.ingestor.FetchForecast(ctx, lat, lon, hours, sources)
	fused := s.fuser.FuseAll(points, lat, lon)
	klog.V(2).InfoS("Unified forecast served",
		"requestID", requestID,
		"lat", lat,
		"lon", lon,
		"hours", hours,
		"points", len(points),
		"fused", len(fused),
		"elapsed", s.clock.Since(start))
	return fused, nil
}

// GetCurrentUnified fuses the providers' current conditions. A nil result
// with a nil error means no source produced data.
func (s *Service) GetCurrentUnified(ctx context.Context, lat, lon float64, sources []meteo.SourceID) (*meteo.UnifiedForecast, error) {
	if err := validateLocation(lat, lon); err != nil {
		return nil, err
	}
	if err := validateSources(sources); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	start := s.clock.Now()
	points := s.ingestor.FetchCurrent(ctx, lat, lon, sources)
	if len(points) == 0 {
		klog.V(2).InfoS("No current conditions available",
			"requestID", requestID,
			"lat", lat,
			"lon", lon,
			"elapsed", s.clock.Since(start))
		return nil, nil
	}
	fused := s.fuser.FuseCurrent(points, lat, lon)
	klog.V(2).InfoS("Current conditions served",
		"requestID", requestID,
		"lat", lat,
		"lon", lon,
		"sources", len(points),
		"elapsed", s.clock.Since(start))
	return &fused, nil
}

// FetchCAPE returns a convective energy series for the location from the
// first source able to serve one. Missing CAPE capability is not an
// error; pattern detection falls back to its precipitation/wind proxy.
func (s *Service) FetchCAPE(ctx context.Context, lat, lon float64, hours int) []float64 {
	for _, c := range s.clients {
		capable, ok := c.(provider.CAPEProvider)
		if !ok {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.config.Ingest.HTTPTimeout)
		series, err := capable.GetCAPE(callCtx, lat, lon, hours)
		cancel()
		if err != nil {
			klog.V(2).InfoS("CAPE series unavailable", "source", c.Source(), "err", err)
			continue
		}
		if len(series) > 0 {
			return series
		}
	}
	return nil
}

// DetectPatterns runs the pattern rules over already-fused forecasts. The
// CAPE series may be nil or shorter than the forecasts.
func (s *Service) DetectPatterns(forecasts []meteo.UnifiedForecast, capeSeries []float64) []meteo.DetectedPattern {
	return s.detector.Detect(forecasts, capeSeries)
}

// GenerateAlerts folds detected patterns and forecast window scans into
// deduplicated operational alerts, highest level first. Never empty: calm
// conditions produce the level-0 alert.
func (s *Service) GenerateAlerts(patterns []meteo.DetectedPattern, forecasts []meteo.UnifiedForecast) []meteo.OperationalAlert {
	return s.alerts.Generate(patterns, forecasts)
}

// GenerateAlertsAt is GenerateAlerts anchored at an explicit reference time.
func (s *Service) GenerateAlertsAt(patterns []meteo.DetectedPattern, forecasts []meteo.UnifiedForecast, now time.Time) []meteo.OperationalAlert {
	return s.alerts.GenerateAt(patterns, forecasts, now)
}

// CalculateRisk scores the assessment window for one activity profile.
// hoursAhead 0 selects the default window.
func (s *Service) CalculateRisk(profile meteo.Profile, forecasts []meteo.UnifiedForecast, patterns []meteo.DetectedPattern, alerts []meteo.OperationalAlert, hoursAhead int) (meteo.RiskScore, error) {
	if hoursAhead == 0 {
		hoursAhead = risk.DefaultHoursAhead
	}
	if hoursAhead < 1 || hoursAhead > MaxRiskWindowHours {
		return meteo.RiskScore{}, validationErrorf("hours_ahead %d outside [1, %d]", hoursAhead, MaxRiskWindowHours)
	}
	return s.scorer.Calculate(profile, forecasts, patterns, alerts, hoursAhead), nil
}

func validateLocation(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return validationErrorf("lat %v outside [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return validationErrorf("lon %v outside [-180, 180]", lon)
	}
	return nil
}

func validateSources(sources []meteo.SourceID) error {
	for _, src := range sources {
		if !meteo.IsProvider(src) {
			return validationErrorf("unknown source %q", src)
		}
	}
	return nil
}
