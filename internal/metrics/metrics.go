package metrics

import (
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "booking_created_total",
			Help:      "Count of bookings created.",
		},
	)

	bookingCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled, by trigger (user or expiry).",
		},
		[]string{"trigger"},
	)

	emailSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eventhub",
			Name:      "email_sent_total",
			Help:      "Count of outbound emails by kind.",
		},
		[]string{"kind"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingCreated, bookingCancelled, emailSent)
	})
}

// RequestCounter is a gin middleware counting every handled request.
func RequestCounter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncBookingCancelled(trigger string) {
	bookingCancelled.WithLabelValues(trigger).Inc()
}

func IncEmailSent(kind string) {
	emailSent.WithLabelValues(kind).Inc()
}
