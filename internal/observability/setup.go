package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Logger is the hot-path logger for the moderation pipeline. Everything
// else logs through logrus. No-op until Init replaces it.
var Logger = zap.NewNop()

var (
	moderatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_moderated_total",
			Help: "Total number of messages run through the moderation pipeline",
		},
		[]string{"outcome"},
	)

	punishmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punishments_total",
			Help: "Total number of punishments applied, by reason code",
		},
		[]string{"reason"},
	)

	oracleVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_verdicts_total",
			Help: "Total number of oracle classifications, by verdict",
		},
		[]string{"verdict"},
	)

	pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Time spent evaluating the moderation pipeline",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

type Server struct {
	addr string
	srv  *http.Server
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

func Init() error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(moderatedTotal)
	prometheus.MustRegister(punishmentsTotal)
	prometheus.MustRegister(oracleVerdictsTotal)
	prometheus.MustRegister(pipelineDuration)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	return nil
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// RecordModeration records a finished pipeline run with its outcome label
// ("ok" or the punishment reason).
func RecordModeration(outcome string) {
	moderatedTotal.WithLabelValues(outcome).Inc()
}

func RecordPunishment(reason string) {
	punishmentsTotal.WithLabelValues(reason).Inc()
}

func RecordOracleVerdict(verdict string) {
	oracleVerdictsTotal.WithLabelValues(verdict).Inc()
}

// StartPipelineTimer returns a function to record pipeline evaluation time.
func StartPipelineTimer() func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		pipelineDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
}
