package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"tierboard/searchservice/internal/domain"
	"tierboard/searchservice/internal/metrics"
)

const (
	adapterFailureThreshold = 3
	adapterBlockBase        = 2 * time.Minute
	adapterBlockMax         = 15 * time.Minute
)

type adapterHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	totalRequests       int64
	totalFailures       int64
}

func (s *Service) isAdapterBlocked(adapterName string, now time.Time) (bool, time.Time, string) {
	name := strings.ToLower(strings.TrimSpace(adapterName))
	if name == "" {
		return false, time.Time{}, ""
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[name]
	if state == nil {
		return false, time.Time{}, ""
	}
	if state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
		return false, time.Time{}, ""
	}
	return true, state.blockedUntil, state.lastError
}

func (s *Service) recordAdapterResult(adapterName string, err error, latency time.Duration, now time.Time) {
	name := strings.ToLower(strings.TrimSpace(adapterName))
	if name == "" {
		return
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[name]
	if state == nil {
		state = &adapterHealth{}
		s.health[name] = state
	}
	state.totalRequests++
	if latency > 0 {
		state.lastLatency = latency
		metrics.AdapterRequestDuration.WithLabelValues(name).Observe(latency.Seconds())
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.AdapterRequestsTotal.WithLabelValues(name, "ok").Inc()
		metrics.AdapterAvailable.WithLabelValues(name).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if isTimeoutLikeError(err) {
		status = "timeout"
	} else if upstream, ok := domain.IsUpstreamError(err); ok && upstream.Status >= 500 {
		status = "upstream"
	}
	metrics.AdapterRequestsTotal.WithLabelValues(name, status).Inc()

	if state.consecutiveFailures >= adapterFailureThreshold {
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures))
		metrics.AdapterAvailable.WithLabelValues(name).Set(0)
	}
}

// exponentialBlockDuration computes how long to block an adapter after
// repeated failures: base x 2^(failures - threshold), capped.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - adapterFailureThreshold
	if exponent < 0 {
		exponent = 0
	}
	d := adapterBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > adapterBlockMax {
			return adapterBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

// AdapterDiagnostics exposes per-adapter health state for the ops endpoint.
func (s *Service) AdapterDiagnostics() []domain.AdapterDiagnostics {
	infos := s.Adapters()
	if len(infos) == 0 {
		return nil
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	items := make([]domain.AdapterDiagnostics, 0, len(infos))
	for _, info := range infos {
		name := strings.ToLower(strings.TrimSpace(info.Name))
		item := domain.AdapterDiagnostics{
			Name:     info.Name,
			Label:    info.Label,
			Category: info.Category,
			Enabled:  info.Enabled,
		}
		if state := s.health[name]; state != nil {
			item.ConsecutiveFailures = state.consecutiveFailures
			if !state.blockedUntil.IsZero() {
				item.BlockedUntilRFC3339 = state.blockedUntil.UTC().Format(time.RFC3339)
			}
			item.LastError = state.lastError
			item.LastLatencyMS = state.lastLatency.Milliseconds()
			item.TotalRequests = state.totalRequests
			item.TotalFailures = state.totalFailures
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
