package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// VATMetrics holds Prometheus metrics for VAT calculation, checkout and
// receipt issuance.
type VATMetrics struct {
	// Calculation
	Calculations       *prometheus.CounterVec
	ValidationFindings *prometheus.CounterVec
	CartValue          *prometheus.HistogramVec
	VATCalculated      *prometheus.CounterVec

	// Checkout
	CheckoutSessions *prometheus.CounterVec
	StripeAPILatency *prometheus.HistogramVec

	// Receipts
	ReceiptsIssued *prometheus.CounterVec
	VATInvoiced    *prometheus.CounterVec

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec

	// Side effects of issuing a receipt
	EmailSent       *prometheus.CounterVec
	EmailFailed     *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec

	// Background delivery
	JobsProcessed *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
}

// NewVATMetrics registers the metrics with reg. A nil reg uses the default
// registerer.
func NewVATMetrics(namespace string, reg prometheus.Registerer) *VATMetrics {
	if namespace == "" {
		namespace = "mdts"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	subsystem := "vat"

	return &VATMetrics{
		// =======================================================================
		// Calculation
		// =======================================================================
		Calculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "calculations_total",
				Help:      "Total VAT calculations",
			},
			[]string{"source", "result"}, // result: ok, degraded
		),
		ValidationFindings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "validation_findings_total",
				Help:      "Errors and warnings raised by the breakdown validator",
			},
			[]string{"severity"}, // severity: error, warning
		),
		CartValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_total",
				Help:      "Distribution of VAT-inclusive cart totals",
				Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 25000},
			},
			[]string{"currency"},
		),
		VATCalculated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "calculated_amount_total",
				Help:      "Sum of VAT amounts quoted, in major currency units",
			},
			[]string{"currency"},
		),

		// =======================================================================
		// Checkout
		// =======================================================================
		CheckoutSessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_sessions_total",
				Help:      "Checkout sessions requested from the payment provider",
			},
			[]string{"result"}, // result: created, rejected, failed
		),
		StripeAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stripe_api_duration_seconds",
				Help:      "Stripe API call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// =======================================================================
		// Receipts
		// =======================================================================
		ReceiptsIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "receipts_issued_total",
				Help:      "VAT receipts issued",
			},
			[]string{"result"}, // result: issued, rejected, failed
		),
		VATInvoiced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "invoiced_amount_total",
				Help:      "Sum of VAT amounts on issued receipts, in major currency units",
			},
			[]string{"currency"},
		),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_received_total",
				Help:      "Payment provider webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Webhook processing time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),

		// =======================================================================
		// Side effects
		// =======================================================================
		EmailSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_sent_total",
				Help:      "Receipt emails sent",
			},
			[]string{"template"},
		),
		EmailFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_failed_total",
				Help:      "Receipt emails that failed to send",
			},
			[]string{"template"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_published_total",
				Help:      "Domain events published to the message bus",
			},
			[]string{"subject", "result"}, // result: ok, failed
		),

		// =======================================================================
		// Background delivery
		// =======================================================================
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_processed_total",
				Help:      "Background delivery attempts by outcome",
			},
			[]string{"type", "result"}, // result: completed, retried, failed, dropped
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_queue_depth",
				Help:      "Jobs waiting for a worker",
			},
		),
	}
}

// VAT is the global instance for easy access from services and handlers.
var VAT *VATMetrics

// InitVATMetrics initializes the global VAT metrics instance on reg.
func InitVATMetrics(namespace string, reg prometheus.Registerer) *VATMetrics {
	VAT = NewVATMetrics(namespace, reg)
	return VAT
}
