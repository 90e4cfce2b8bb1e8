package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_orders_created_total",
		Help: "Total number of orders created",
	}, []string{"payment_method"})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_orders_completed_total",
		Help: "Total number of orders marked completed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_checkout_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	DuplicateCheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_checkout_duplicates_total",
		Help: "Total number of checkout requests answered from an existing order",
	})

	CheckoutLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gallery_checkout_latency_seconds",
		Help:    "Latency of order creation",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})

	PaymentIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_payment_intents_total",
		Help: "Total number of payment intents requested from the processor",
	}, []string{"result"})

	PaymentGatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gallery_payment_gateway_latency_seconds",
		Help:    "Latency of payment processor calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	CatalogMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_catalog_mutations_total",
		Help: "Total number of admin catalog mutations",
	}, []string{"operation"})

	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_catalog_cache_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
