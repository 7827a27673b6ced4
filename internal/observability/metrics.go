// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/otpgate/internal/auth"
)

// Metrics holds the otpgate counters. It implements auth.Metrics.
type Metrics struct {
	Registrations      *prometheus.CounterVec
	LoginInitiations   *prometheus.CounterVec
	LoginVerifications *prometheus.CounterVec
	TokensIssued       prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics creates and registers the otpgate metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpgate_registrations_total",
				Help: "Account registrations by outcome",
			},
			[]string{"outcome"},
		),
		LoginInitiations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpgate_login_initiations_total",
				Help: "Login initiations (OTP issues) by outcome",
			},
			[]string{"outcome"},
		),
		LoginVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpgate_login_verifications_total",
				Help: "OTP verifications by outcome",
			},
			[]string{"outcome"},
		),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpgate_tokens_issued_total",
			Help: "Session tokens issued",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otpgate_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otpgate_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.Registrations,
		m.LoginInitiations,
		m.LoginVerifications,
		m.TokensIssued,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// RecordRegistration implements auth.Metrics.
func (m *Metrics) RecordRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

// RecordLoginInitiation implements auth.Metrics.
func (m *Metrics) RecordLoginInitiation(outcome string) {
	m.LoginInitiations.WithLabelValues(outcome).Inc()
}

// RecordLoginVerification implements auth.Metrics.
func (m *Metrics) RecordLoginVerification(outcome string) {
	m.LoginVerifications.WithLabelValues(outcome).Inc()
}

// RecordTokenIssued implements auth.Metrics.
func (m *Metrics) RecordTokenIssued() {
	m.TokensIssued.Inc()
}

// ObserveHTTPRequest records one served request. route is the matched
// pattern, not the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var _ auth.Metrics = (*Metrics)(nil)
