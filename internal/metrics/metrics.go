/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes the pipeline's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "srp"

// Metrics groups the pipeline collectors registered on a single registry.
type Metrics struct {
	reg prometheus.Gatherer

	runs               *prometheus.CounterVec
	mails              *prometheus.CounterVec
	decisions          *prometheus.CounterVec
	notificationsSent  prometheus.Counter
	notificationErrors prometheus.Counter
	rateLimitHits      *prometheus.CounterVec
	paymentsReconciled prometheus.Counter
	stageDuration      *prometheus.HistogramVec
}

// New registers the collectors on reg. Passing a fresh prometheus.NewRegistry()
// keeps tests isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline invocations by outcome (completed, skipped_lease, skipped_health, errored).",
		}, []string{"outcome"}),
		mails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mails_processed_total",
			Help:      "Mails recorded by processed-mail status.",
		}, []string{"status"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_decisions_total",
			Help:      "Claim decisions by resulting status and whether they were automatic.",
		}, []string{"status", "auto"}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Claimant notifications delivered.",
		}),
		notificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Claimant notification attempts that failed for a reason other than rate limiting.",
		}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_rate_limited_total",
			Help:      "Rate limit answers received from upstream APIs.",
		}, []string{"upstream"}),
		paymentsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_reconciled_total",
			Help:      "Wallet journal entries matched to approved claims.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
	}

	reg.MustRegister(m.runs, m.mails, m.decisions, m.notificationsSent, m.notificationErrors,
		m.rateLimitHits, m.paymentsReconciled, m.stageDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) RunFinished(outcome string) {
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MailRecorded(status string) {
	m.mails.WithLabelValues(status).Inc()
}

func (m *Metrics) Decision(status string, auto bool) {
	m.decisions.WithLabelValues(status, strconv.FormatBool(auto)).Inc()
}

func (m *Metrics) NotificationSent() {
	m.notificationsSent.Inc()
}

func (m *Metrics) NotificationFailed() {
	m.notificationErrors.Inc()
}

func (m *Metrics) RateLimited(upstream string) {
	m.rateLimitHits.WithLabelValues(upstream).Inc()
}

func (m *Metrics) PaymentsReconciled(n int) {
	m.paymentsReconciled.Add(float64(n))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
