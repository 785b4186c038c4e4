package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the realtime answer channel.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	wsConnections   prometheus.Gauge
	answersIngested prometheus.Counter
	answerAckDelay  prometheus.Histogram
	finalizations   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exam_ws_connections",
		Help: "Currently open exam websocket connections",
	})

	answersIngested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_answers_ingested_total",
		Help: "Answer writes accepted through the ingestion channel",
	})

	answerAckDelay := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exam_answer_ack_seconds",
		Help:    "Time from answer receipt to durable acknowledgement",
		Buckets: prometheus.DefBuckets,
	})

	finalizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_finalizations_total",
		Help: "Session finalizations by kind",
	}, []string{"kind"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, wsConnections, answersIngested, answerAckDelay, finalizations, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		wsConnections:   wsConnections,
		answersIngested: answersIngested,
		answerAckDelay:  answerAckDelay,
		finalizations:   finalizations,
	}
}

// Handler returns the Prometheus scrape handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ConnectionOpened increments the websocket connection gauge.
func (s *MetricsService) ConnectionOpened() {
	s.wsConnections.Inc()
}

// ConnectionClosed decrements the websocket connection gauge.
func (s *MetricsService) ConnectionClosed() {
	s.wsConnections.Dec()
}

// ObserveAnswer records one durably acknowledged answer write.
func (s *MetricsService) ObserveAnswer(ackDelay time.Duration) {
	s.answersIngested.Inc()
	s.answerAckDelay.Observe(ackDelay.Seconds())
}

// ObserveFinalization records a finalized session. kind is "scored" or
// "override".
func (s *MetricsService) ObserveFinalization(kind string) {
	s.finalizations.WithLabelValues(kind).Inc()
}
