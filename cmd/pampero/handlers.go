package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// Buenos Aires, the default point when a caller names none.
const (
	defaultLat = -34.6
	defaultLon = -58.4
)

// riskContextHours is the forecast horizon fetched for pattern and alert
// context when scoring risk; wave patterns need multi-day sequences.
const riskContextHours = 72

type httpError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		klog.ErrorS(err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if pampero.IsValidation(err) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, httpError{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...interface{}) {
	writeJSON(w, http.StatusBadRequest, httpError{Error: fmt.Sprintf(format, args...)})
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s must be a number", key)
	}
	return v, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %s must be an integer", key)
	}
	return v, nil
}

func location(w http.ResponseWriter, r *http.Request) (lat, lon float64, ok bool) {
	lat, err := queryFloat(r, "lat", defaultLat)
	if err != nil {
		badRequest(w, "%v", err)
		return 0, 0, false
	}
	lon, err = queryFloat(r, "lon", defaultLon)
	if err != nil {
		badRequest(w, "%v", err)
		return 0, 0, false
	}
	return lat, lon, true
}

// querySources reads the fuentes parameter as a comma-separated source
// list; unknown names are rejected downstream by the service boundary.
func querySources(r *http.Request) []meteo.SourceID {
	raw := r.URL.Query().Get("fuentes")
	if raw == "" {
		return nil
	}
	var sources []meteo.SourceID
	for _, label := range strings.Split(raw, ",") {
		if label = strings.TrimSpace(label); label != "" {
			sources = append(sources, meteo.SourceID(label))
		}
	}
	return sources
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func handlePronostico(svc *pampero.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		lat, lon, ok := location(w, r)
		if !ok {
			return
		}
		horas, err := queryInt(r, "horas", 24)
		if err != nil {
			badRequest(w, "%v", err)
			return
		}
		forecasts, err := svc.GetUnifiedForecast(r.Context(), lat, lon, horas, querySources(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"lat":        lat,
			"lon":        lon,
			"horas":      horas,
			"pronostico": forecasts,
		})
	}
}

func handleActual(svc *pampero.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		lat, lon, ok := location(w, r)
		if !ok {
			return
		}
		current, err := svc.GetCurrentUnified(r.Context(), lat, lon, querySources(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if current == nil {
			writeJSON(w, http.StatusNotFound, httpError{Error: "sin datos de ninguna fuente"})
			return
		}
		writeJSON(w, http.StatusOK, current)
	}
}

func handleAlertas(svc *pampero.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		lat, lon, ok := location(w, r)
		if !ok {
			return
		}
		horas, err := queryInt(r, "horas", riskContextHours)
		if err != nil {
			badRequest(w, "%v", err)
			return
		}
		sources := querySources(r)
		forecasts, err := svc.GetUnifiedForecast(r.Context(), lat, lon, horas, sources)
		if err != nil {
			writeError(w, err)
			return
		}
		cape := svc.FetchCAPE(r.Context(), lat, lon, horas)
		patterns := svc.DetectPatterns(forecasts, cape)
		alerts := svc.GenerateAlerts(patterns, forecasts)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"lat":      lat,
			"lon":      lon,
			"horas":    horas,
			"patrones": patterns,
			"alertas":  alerts,
		})
	}
}

func handleRiesgo(svc *pampero.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		lat, lon, ok := location(w, r)
		if !ok {
			return
		}
		horas, err := queryInt(r, "horas", 0)
		if err != nil {
			badRequest(w, "%v", err)
			return
		}
		perfil := r.URL.Query().Get("perfil")
		if perfil == "" {
			perfil = string(meteo.ProfileGeneral)
		}

		sources := querySources(r)
		forecasts, err := svc.GetUnifiedForecast(r.Context(), lat, lon, riskContextHours, sources)
		if err != nil {
			writeError(w, err)
			return
		}
		cape := svc.FetchCAPE(r.Context(), lat, lon, riskContextHours)
		patterns := svc.DetectPatterns(forecasts, cape)
		alerts := svc.GenerateAlerts(patterns, forecasts)

		score, err := svc.CalculateRisk(meteo.Profile(perfil), forecasts, patterns, alerts, horas)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, score)
	}
}

func handleHealthz(svc *pampero.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sources":  svc.Sources(),
			"breakers": svc.BreakerStates(),
		})
	}
}
