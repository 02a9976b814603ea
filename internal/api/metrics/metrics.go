// Package metrics defines and registers the business Prometheus metrics of
// the ReviveReads API. HTTP request metrics come from echoprometheus; this
// package only holds domain counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "revivereads"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// UsersRegisteredTotal counts successful sign-ups.
var UsersRegisteredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_registered_total",
		Help:      "Total number of accounts created.",
	},
)

// LoginsTotal counts sign-in steps.
// Label:
//   - outcome: "otp_sent", "success", "failed", "locked", "otp_invalid"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of sign-in attempts, by outcome.",
	},
	[]string{"outcome"},
)

// RateLimitedTotal counts requests refused by the auth rate limiter.
// Label:
//   - route: the matched route path
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the rate limiter.",
	},
	[]string{"route"},
)

// ── Marketplace metrics ──────────────────────────────────────────────────────

// BooksCreatedTotal counts new listings.
var BooksCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "books_created_total",
		Help:      "Total number of book listings posted.",
	},
)

// BookReviewsTotal counts moderation decisions.
// Label:
//   - status: "Approved" or "Declined"
var BookReviewsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "book_reviews_total",
		Help:      "Total number of listing moderation decisions, by status.",
	},
	[]string{"status"},
)

// BooksSoldTotal counts listings marked as sold.
var BooksSoldTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "books_sold_total",
		Help:      "Total number of listings marked as sold.",
	},
)

// MessagesSentTotal counts chat messages.
var MessagesSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Total number of chat messages sent.",
	},
)

// ── Runtime gauges ────────────────────────────────────────────────────────────

// RealtimeConnections tracks open websocket connections.
var RealtimeConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Current number of open websocket connections.",
	},
)

// RegisterMailQueueDepth exposes the number of undelivered emails. Call once
// at startup.
func RegisterMailQueueDepth(pending func() int64) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mail_queue_depth",
			Help:      "Current number of emails waiting for delivery.",
		},
		func() float64 { return float64(pending()) },
	)
}
