/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "mcp_vault"
)

var (
	once     sync.Once
	registry *prometheus.Registry

	// Metrics start as noops so packages can record before Init runs (tests, CLI)
	AuthDecisionsTotal         CounterVec = noopCounterVec{}
	CredentialValidationsTotal CounterVec = noopCounterVec{}
	KeyRotationItemsTotal      CounterVec = noopCounterVec{}
	SecretOperationsTotal      CounterVec = noopCounterVec{}
	UpstreamErrorsTotal        CounterVec = noopCounterVec{}

	HTTPRequestsTotal          CounterVec   = noopCounterVec{}
	HTTPRequestDurationSeconds HistogramVec = noopHistogramVec{}
	ConcurrentRequests         Gauge        = noopGauge{}

	PanicRecoveriesTotal CounterVec = noopCounterVec{}
	Up                   Gauge      = noopGauge{}
)

// initMetrics initializes all metric variables.
// This must be called after SetEnabled() to ensure proper noop behavior when disabled.
func initMetrics() {
	AuthDecisionsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Total number of authorization decisions by outcome",
		},
		[]string{"decision", "reason"},
	)

	CredentialValidationsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_validations_total",
			Help:      "Total number of credential validations by matching tier and result",
		},
		[]string{"tier", "result"},
	)

	KeyRotationItemsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_rotation_items_total",
			Help:      "Total number of secrets processed by rotation and migration",
		},
		[]string{"operation", "result"},
	)

	SecretOperationsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_operations_total",
			Help:      "Total number of secret store operations",
		},
		[]string{"operation", "status"},
	)

	UpstreamErrorsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of tool requests the upstream server failed to answer",
		},
		[]string{"path"},
	)

	HTTPRequestsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDurationSeconds = newHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"method", "path"},
	)

	ConcurrentRequests = newGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "concurrent_requests",
			Help:      "Number of requests currently being processed",
		},
	)

	PanicRecoveriesTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panic_recoveries_total",
			Help:      "Total number of panic recoveries",
		},
		[]string{"component"},
	)

	Up = newGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Whether the vault is up (1) or down (0)",
		},
	)
}

func registerCounterVec(v CounterVec) {
	if wrapper, ok := v.(*counterVecWrapper); ok {
		registry.MustRegister(wrapper.CounterVec)
	}
}

func registerHistogramVec(v HistogramVec) {
	if wrapper, ok := v.(*histogramVecWrapper); ok {
		registry.MustRegister(wrapper.HistogramVec)
	}
}

func registerGauge(v Gauge) {
	if g, ok := v.(prometheus.Gauge); ok {
		registry.MustRegister(g)
	}
}

func initRegistry() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registerCounterVec(AuthDecisionsTotal)
	registerCounterVec(CredentialValidationsTotal)
	registerCounterVec(KeyRotationItemsTotal)
	registerCounterVec(SecretOperationsTotal)
	registerCounterVec(UpstreamErrorsTotal)

	registerCounterVec(HTTPRequestsTotal)
	registerHistogramVec(HTTPRequestDurationSeconds)
	registerGauge(ConcurrentRequests)

	registerCounterVec(PanicRecoveriesTotal)
	registerGauge(Up)

	Up.Set(1)
}

// Init initializes the metrics registry with all collectors.
// This must be called after SetEnabled() has been called.
func Init() *prometheus.Registry {
	once.Do(func() {
		initMetrics()

		if !Enabled {
			registry = prometheus.NewRegistry()
			return
		}
		initRegistry()
	})

	return registry
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return Init()
	}
	return registry
}
