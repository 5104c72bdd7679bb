package consumer

import "github.com/prometheus/client_golang/prometheus"

type PromMetrics struct {
	sent   *prometheus.CounterVec
	failed *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *PromMetrics {
	m := &PromMetrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_mail_sent_total",
			Help: "Emails delivered, by triggering event type.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_mail_failed_total",
			Help: "Email delivery failures, by triggering event type.",
		}, []string{"event_type"}),
	}
	if registry != nil {
		registry.MustRegister(m.sent, m.failed)
	}
	return m
}

func (m *PromMetrics) MailSent(eventType string) { m.sent.WithLabelValues(eventType).Inc() }

func (m *PromMetrics) MailFailed(eventType string) { m.failed.WithLabelValues(eventType).Inc() }
