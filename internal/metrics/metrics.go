package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LoginAttemptsTotal       *prometheus.CounterVec
	FailedAttemptsSwept      prometheus.Counter
	IPBansTotal              *prometheus.CounterVec
	IPUnbansTotal            prometheus.Counter
	CaptchaRejectionsTotal   *prometheus.CounterVec
	RateLimitHitsTotal       prometheus.Counter
	OrdersCreatedTotal       *prometheus.CounterVec
	OrderTransitionsTotal    *prometheus.CounterVec
	OrderRefundsTotal        *prometheus.CounterVec
	NotificationsTotal       *prometheus.CounterVec
	NotificationsQueueLength prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in the
// server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		FailedAttemptsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_failed_attempts_swept_total",
			Help: "Stale failed-login tracker entries removed by the sweeper",
		}),
		IPBansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_ip_bans_total",
			Help: "IP bans issued by source",
		}, []string{"source"}),
		IPUnbansTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_ip_unbans_total",
			Help: "IP bans lifted manually or by expiry",
		}),
		CaptchaRejectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_captcha_rejections_total",
			Help: "CAPTCHA rejections by reason",
		}, []string{"reason"}),
		RateLimitHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "exchange_login_rate_limit_hits_total",
			Help: "Login requests rejected by the rate limiter",
		}),
		OrdersCreatedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_orders_created_total",
			Help: "Orders created by kind",
		}, []string{"kind"}),
		OrderTransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_order_transitions_total",
			Help: "Order status transitions by kind and target status",
		}, []string{"kind", "status"}),
		OrderRefundsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_order_refunds_total",
			Help: "Balance refunds issued for failed orders",
		}, []string{"kind"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_notifications_total",
			Help: "Notification deliveries by result",
		}, []string{"result"}),
		NotificationsQueueLength: f.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_notifications_queue_length",
			Help: "Events waiting in the notification queue",
		}),
	}
}

// The helpers below are nil-safe so services can run without metrics.

func (m *Metrics) LoginAttempt(outcome string) {
	if m != nil {
		m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AttemptsSwept(n int) {
	if m != nil {
		m.FailedAttemptsSwept.Add(float64(n))
	}
}

func (m *Metrics) IPBanned(source string) {
	if m != nil {
		m.IPBansTotal.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) IPUnbanned() {
	if m != nil {
		m.IPUnbansTotal.Inc()
	}
}

func (m *Metrics) CaptchaRejected(reason string) {
	if m != nil {
		m.CaptchaRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RateLimitHit() {
	if m != nil {
		m.RateLimitHitsTotal.Inc()
	}
}

func (m *Metrics) OrderCreated(kind string) {
	if m != nil {
		m.OrdersCreatedTotal.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) OrderTransition(kind, status string) {
	if m != nil {
		m.OrderTransitionsTotal.WithLabelValues(kind, status).Inc()
	}
}

func (m *Metrics) OrderRefunded(kind string) {
	if m != nil {
		m.OrderRefundsTotal.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Notification(result string) {
	if m != nil {
		m.NotificationsTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SetQueueLength(n int) {
	if m != nil {
		m.NotificationsQueueLength.Set(float64(n))
	}
}
