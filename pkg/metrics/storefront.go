package metrics

import "github.com/prometheus/client_golang/prometheus"

// Storefront groups the business counters exported by the API.
type Storefront struct {
	appointmentConflicts prometheus.Counter
	webhookEvents        *prometheus.CounterVec
	paymentIntents       *prometheus.CounterVec
}

// NewStorefront registers the storefront counters. A nil registerer yields a no-op recorder.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	s := &Storefront{
		appointmentConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_conflicts_total",
			Help:      "Booking attempts rejected because the slot overlaps an existing appointment.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_events_total",
			Help:      "Payment webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
		paymentIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_payment_intents_total",
			Help:      "Payment intent creation attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(s.appointmentConflicts, s.webhookEvents, s.paymentIntents)
	return s
}

func (s *Storefront) IncAppointmentConflict() {
	if s == nil || s.appointmentConflicts == nil {
		return
	}
	s.appointmentConflicts.Inc()
}

func (s *Storefront) IncWebhookEvent(eventType, outcome string) {
	if s == nil || s.webhookEvents == nil {
		return
	}
	s.webhookEvents.WithLabelValues(labelOrUnknown(eventType), labelOrUnknown(outcome)).Inc()
}

func (s *Storefront) IncPaymentIntent(outcome string) {
	if s == nil || s.paymentIntents == nil {
		return
	}
	s.paymentIntents.WithLabelValues(labelOrUnknown(outcome)).Inc()
}
