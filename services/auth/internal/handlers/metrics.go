package handlers

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts auth outcomes. All recording helpers are nil-safe so tests
// can run without a registry.
type Metrics struct {
	Logins         *prometheus.CounterVec
	Signups        prometheus.Counter
	OTPIssued      prometheus.Counter
	PasswordResets prometheus.Counter
	TokenReuse     prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"status"},
		),
		Signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_signups_total",
			Help: "Accounts created, password and social alike.",
		}),
		OTPIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_otp_issued_total",
			Help: "Password reset codes issued.",
		}),
		PasswordResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Completed password resets.",
		}),
		TokenReuse: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_token_reuse_total",
			Help: "Refresh token replays detected.",
		}),
	}

	registry.MustRegister(m.Logins, m.Signups, m.OTPIssued, m.PasswordResets, m.TokenReuse)
	return m
}

func (m *Metrics) login(status string) {
	if m != nil {
		m.Logins.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) signup() {
	if m != nil {
		m.Signups.Inc()
	}
}

func (m *Metrics) otpIssued() {
	if m != nil {
		m.OTPIssued.Inc()
	}
}

func (m *Metrics) passwordReset() {
	if m != nil {
		m.PasswordResets.Inc()
	}
}

func (m *Metrics) tokenReuse() {
	if m != nil {
		m.TokenReuse.Inc()
	}
}
