// Copyright 2022 bytetrade
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "applet_repo"

var (
	// Registry holds the repository server collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packages",
			Name:      "publish_total",
			Help:      "Total number of publish attempts by result.",
		},
		[]string{"result"},
	)

	downloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "packages",
			Name:      "download_total",
			Help:      "Total number of package downloads by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		publishes,
		downloads,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Filter records request metrics for every route of a container.
func Filter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if req.Request.URL.Path == "/metrics" {
		chain.ProcessFilter(req, resp)
		return
	}

	start := time.Now()
	httpInFlight.Inc()
	defer httpInFlight.Dec()

	chain.ProcessFilter(req, resp)

	status := resp.StatusCode()
	if status == 0 {
		status = http.StatusOK
	}
	path := canonicalPath(req.Request.URL.Path)
	method := strings.ToUpper(req.Request.Method)

	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
}

func RecordPublish(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishes.WithLabelValues(result).Inc()
}

func RecordDownload(kind string) {
	downloads.WithLabelValues(kind).Inc()
}

// canonicalPath keeps label cardinality bounded by collapsing ids and versions.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "pak":
		switch len(parts) {
		case 1:
			return "/pak"
		case 2:
			return "/pak/:id"
		default:
			return "/pak/:id/:version"
		}
	case "asset":
		return "/asset/:id/*"
	case "apidocs.json":
		return "/apidocs.json"
	default:
		return "/static"
	}
}
