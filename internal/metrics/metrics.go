// metrics — счётчики Prometheus для операций аутентификации.
// Все методы безопасны для nil-получателя: без метрик сервис работает так же.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "hrm_auth"

// Auth — набор счётчиков сервиса.
type Auth struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	logouts   *prometheus.CounterVec
	reuse     prometheus.Counter
	cleaned   prometheus.Counter
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Auth {
	m := &Auth{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result code.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh token redemptions by result code.",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logouts by kind (single, all, session).",
		}, []string{"kind"}),
		reuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_reuse_detected_total",
			Help:      "Replays of already rotated refresh tokens.",
		}),
		cleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_tokens_deleted_total",
			Help:      "Expired refresh token records removed by the janitor.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.logins, m.refreshes, m.logouts, m.reuse, m.cleaned)
	}

	return m
}

// Login учитывает попытку входа; result — "ok" или код ошибки.
func (m *Auth) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// Refresh учитывает попытку обновления токенов.
func (m *Auth) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// Logout учитывает выход.
func (m *Auth) Logout(kind string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(kind).Inc()
}

// ReuseDetected учитывает обнаруженное повторное использование.
func (m *Auth) ReuseDetected() {
	if m == nil {
		return
	}
	m.reuse.Inc()
}

// ExpiredDeleted учитывает удалённые просроченные записи.
func (m *Auth) ExpiredDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cleaned.Add(float64(n))
}
