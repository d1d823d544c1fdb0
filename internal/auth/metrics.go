// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels for auth metrics.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpForgotPassword = "forgot_password"
	OpResetPassword  = "reset_password"
	OpUpdateProfile  = "update_profile"
	OpGetProfile     = "get_profile"

	OpUpdateProfilePicture = "update_profile_picture"
)

// Outcome label for successful operations; failures use the FailureKind.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the Prometheus collectors for the auth service.
type Metrics struct {
	Attempts *prometheus.CounterVec
	Lockouts prometheus.Counter
}

// NewMetrics creates auth metrics and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diary_auth_attempts_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Lockouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "diary_auth_lockouts_total",
				Help: "Total number of account lockouts imposed",
			},
		),
	}

	reg.MustRegister(m.Attempts)
	reg.MustRegister(m.Lockouts)

	return m
}

func (m *Metrics) observe(operation string, r Result, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeError
	case !r.OK:
		outcome = string(r.Kind)
	}
	m.Attempts.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) lockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}
