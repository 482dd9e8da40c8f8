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
	"github.com/prometheus/client_golang/prometheus"
)

// Enabled indicates whether metrics collection is enabled.
// This is set once at startup via SetEnabled() and should not be modified after.
var Enabled bool

// Counter wraps prometheus.Counter with a noop implementation when disabled
type Counter interface {
	Inc()
	Add(float64)
}

// CounterVec wraps prometheus.CounterVec with a noop implementation when disabled
type CounterVec interface {
	WithLabelValues(labels ...string) Counter
}

// Histogram wraps prometheus.Histogram with a noop implementation when disabled
type Histogram interface {
	Observe(float64)
}

// HistogramVec wraps prometheus.HistogramVec with a noop implementation when disabled
type HistogramVec interface {
	WithLabelValues(labels ...string) Histogram
}

// Gauge wraps prometheus.Gauge with a noop implementation when disabled
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
}

type noopCounter struct{}

func (noopCounter) Inc()        {}
func (noopCounter) Add(float64) {}

type noopCounterVec struct{}

func (noopCounterVec) WithLabelValues(...string) Counter { return noopCounter{} }

type noopHistogram struct{}

func (noopHistogram) Observe(float64) {}

type noopHistogramVec struct{}

func (noopHistogramVec) WithLabelValues(...string) Histogram { return noopHistogram{} }

type noopGauge struct{}

func (noopGauge) Set(float64) {}
func (noopGauge) Inc()        {}
func (noopGauge) Dec()        {}

type counterVecWrapper struct {
	*prometheus.CounterVec
}

func (c *counterVecWrapper) WithLabelValues(labels ...string) Counter {
	return c.CounterVec.WithLabelValues(labels...)
}

type histogramVecWrapper struct {
	*prometheus.HistogramVec
}

func (h *histogramVecWrapper) WithLabelValues(labels ...string) Histogram {
	return h.HistogramVec.WithLabelValues(labels...)
}

// IsEnabled returns whether metrics collection is enabled
func IsEnabled() bool {
	return Enabled
}

// SetEnabled sets whether metrics collection is enabled.
// This must be called before Init() for proper effect.
func SetEnabled(e bool) {
	Enabled = e
}

// newCounterVec creates a new CounterVec that is safe to use even when disabled
func newCounterVec(opts prometheus.CounterOpts, labelNames []string) CounterVec {
	if Enabled {
		return &counterVecWrapper{prometheus.NewCounterVec(opts, labelNames)}
	}
	return noopCounterVec{}
}

// newHistogramVec creates a new HistogramVec that is safe to use even when disabled
func newHistogramVec(opts prometheus.HistogramOpts, labelNames []string) HistogramVec {
	if Enabled {
		return &histogramVecWrapper{prometheus.NewHistogramVec(opts, labelNames)}
	}
	return noopHistogramVec{}
}

// newGauge creates a new Gauge that is safe to use even when disabled
func newGauge(opts prometheus.GaugeOpts) Gauge {
	if Enabled {
		return prometheus.NewGauge(opts)
	}
	return noopGauge{}
}
