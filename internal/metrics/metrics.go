// Package metrics wires optional Prometheus instrumentation into a
// channel: a Recorder holds the collectors, and adapters/httpadapter
// mounts promhttp.Handler() alongside the RPC routes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the set of counters and histograms channel.Channel updates
// as messages flow through it. A nil *Recorder is valid and every method
// on it is a no-op, so channel.Channel can hold one unconditionally.
type Recorder struct {
	requestsTotal   *prometheus.CounterVec
	responsesTotal  *prometheus.CounterVec
	callbacksTotal  prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New registers a fresh set of collectors on reg and returns a Recorder
// backed by them. Pass prometheus.DefaultRegisterer to use the global
// registry, as adapters/httpadapter's promhttp.Handler() expects.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kkrpc",
			Name:      "requests_total",
			Help:      "RPC requests sent or received, by kind and direction.",
		}, []string{"kind", "direction"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kkrpc",
			Name:      "responses_total",
			Help:      "RPC responses sent or received, by outcome.",
		}, []string{"outcome"}),
		callbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kkrpc",
			Name:      "callbacks_invoked_total",
			Help:      "Callback messages dispatched to a registered local function.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kkrpc",
			Name:      "request_duration_seconds",
			Help:      "Time from issuing a request to receiving its response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(r.requestsTotal, r.responsesTotal, r.callbacksTotal, r.requestDuration)
	return r
}

func (r *Recorder) RequestSent(kind string)     { r.inc(r.requestsTotal, kind, "outbound") }
func (r *Recorder) RequestReceived(kind string) { r.inc(r.requestsTotal, kind, "inbound") }

func (r *Recorder) inc(cv *prometheus.CounterVec, kind, direction string) {
	if r == nil {
		return
	}
	cv.WithLabelValues(kind, direction).Inc()
}

func (r *Recorder) ResponseOK() {
	if r == nil {
		return
	}
	r.responsesTotal.WithLabelValues("ok").Inc()
}

func (r *Recorder) ResponseError() {
	if r == nil {
		return
	}
	r.responsesTotal.WithLabelValues("error").Inc()
}

func (r *Recorder) CallbackInvoked() {
	if r == nil {
		return
	}
	r.callbacksTotal.Inc()
}

func (r *Recorder) ObserveRequestDuration(method string, seconds float64) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method).Observe(seconds)
}
