package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ConfigurationsComputedTotal counts configuration computations by outcome.
	ConfigurationsComputedTotal *prometheus.CounterVec
	// ConfigurationStoreTotal counts configuration store operations by outcome.
	ConfigurationStoreTotal *prometheus.CounterVec
	// PriceListCacheTotal counts price list lookups per cache layer.
	PriceListCacheTotal *prometheus.CounterVec
	// CheckoutItemsTotal counts configurations re-derived for checkout by outcome.
	CheckoutItemsTotal *prometheus.CounterVec
	// PriceListBuildDuration records how long loading and building a price list takes in milliseconds.
	PriceListBuildDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ConfigurationsComputedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configurations_computed_total",
			Help:      "Count of configuration computations by pricing type, purchase type and outcome.",
		}, []string{"pricing_type", "purchase_type", "result"}))
		ConfigurationStoreTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configuration_store_total",
			Help:      "Count of configuration store operations by outcome.",
		}, []string{"op", "result"}))
		PriceListCacheTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_list_cache_total",
			Help:      "Count of price list cache lookups by layer and outcome.",
		}, []string{"layer", "result"}))
		CheckoutItemsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_items_total",
			Help:      "Count of configurations re-derived for checkout by outcome.",
		}, []string{"result"}))
		PriceListBuildDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_list_build_duration_ms",
			Help:      "Latency for loading and building a price list from storage in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"kind"}))
	})
}

// ObserveConfigurationComputed increments the computation counter when registered.
func ObserveConfigurationComputed(pricingType, purchaseType, result string) {
	if ConfigurationsComputedTotal != nil {
		ConfigurationsComputedTotal.WithLabelValues(pricingType, purchaseType, result).Inc()
	}
}

// ObserveConfigurationStore increments the store counter when registered.
func ObserveConfigurationStore(op, result string) {
	if ConfigurationStoreTotal != nil {
		ConfigurationStoreTotal.WithLabelValues(op, result).Inc()
	}
}

// ObservePriceListCache increments the cache counter when registered.
func ObservePriceListCache(layer, result string) {
	if PriceListCacheTotal != nil {
		PriceListCacheTotal.WithLabelValues(layer, result).Inc()
	}
}

// ObserveCheckoutItem increments the checkout counter when registered.
func ObserveCheckoutItem(result string) {
	if CheckoutItemsTotal != nil {
		CheckoutItemsTotal.WithLabelValues(result).Inc()
	}
}

// ObservePriceListBuild records a price list build latency when registered.
func ObservePriceListBuild(kind string, ms float64) {
	if PriceListBuildDuration != nil {
		PriceListBuildDuration.WithLabelValues(kind).Observe(ms)
	}
}
