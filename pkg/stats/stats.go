// Package stats tracks run statistics for a harvest. A single Recorder
// is shared by every concurrent stage of one run; counters are
// mutex-guarded and mirrored to Prometheus collectors.
package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus mirrors of the run counters.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_fetched_total",
		Help: "Total catalog pages fetched",
	})

	productsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_products_fetched_total",
		Help: "Total raw products fetched across all endpoints",
	})

	productsTransformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_products_transformed_total",
		Help: "Total products transformed and accepted",
	})

	productsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_products_failed_total",
		Help: "Total products dropped by transform or validation",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_requests_total",
		Help: "Total HTTP requests by outcome",
	}, []string{"outcome"})

	endpointFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_endpoint_failures_total",
		Help: "Total endpoints that hit a fatal fetch error",
	})
)

// ErrorRecord is one recorded failure. Source is the product id or
// endpoint name the failure belongs to.
type ErrorRecord struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Snapshot is an immutable copy of the run counters, taken once at run
// end for the summary and the output metadata envelope.
type Snapshot struct {
	PagesFetched        int           `json:"pages_fetched"`
	ProductsFetched     int           `json:"products_fetched"`
	ProductsTransformed int           `json:"products_transformed"`
	ProductsFailed      int           `json:"products_failed"`
	RequestsSucceeded   int           `json:"requests_succeeded"`
	RequestsFailed      int           `json:"requests_failed"`
	EndpointsFailed     int           `json:"endpoints_failed"`
	SuccessRate         float64       `json:"success_rate"`
	Errors              []ErrorRecord `json:"errors"`
}

// Recorder accumulates statistics for one run. All methods are safe
// for concurrent use.
type Recorder struct {
	mu                  sync.Mutex
	pagesFetched        int
	productsFetched     int
	productsTransformed int
	productsFailed      int
	requestsSucceeded   int
	requestsFailed      int
	endpointsFailed     int
	errors              []ErrorRecord
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// PageFetched records one successfully fetched page carrying n raw
// products.
func (r *Recorder) PageFetched(n int) {
	r.mu.Lock()
	r.pagesFetched++
	r.productsFetched += n
	r.mu.Unlock()

	pagesFetchedTotal.Inc()
	productsFetchedTotal.Add(float64(n))
}

// RequestSucceeded records one successful HTTP request.
func (r *Recorder) RequestSucceeded() {
	r.mu.Lock()
	r.requestsSucceeded++
	r.mu.Unlock()

	requestsTotal.WithLabelValues("success").Inc()
}

// RequestFailed records one failed HTTP request attempt.
func (r *Recorder) RequestFailed() {
	r.mu.Lock()
	r.requestsFailed++
	r.mu.Unlock()

	requestsTotal.WithLabelValues("failure").Inc()
}

// ProductTransformed records one product that passed transform and
// validation.
func (r *Recorder) ProductTransformed() {
	r.mu.Lock()
	r.productsTransformed++
	r.mu.Unlock()

	productsTransformedTotal.Inc()
}

// ProductFailed records one dropped product together with the reason.
func (r *Recorder) ProductFailed(productID, reason string) {
	r.mu.Lock()
	r.productsFailed++
	r.errors = append(r.errors, ErrorRecord{Source: productID, Message: reason})
	r.mu.Unlock()

	productsFailedTotal.Inc()
}

// EndpointFailed records a fatal error that halted one endpoint's
// pagination. Sibling endpoints keep running.
func (r *Recorder) EndpointFailed(endpoint, reason string) {
	r.mu.Lock()
	r.endpointsFailed++
	r.errors = append(r.errors, ErrorRecord{Source: endpoint, Message: reason})
	r.mu.Unlock()

	endpointFailuresTotal.Inc()
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	errs := make([]ErrorRecord, len(r.errors))
	copy(errs, r.errors)

	// Rate over unique processed records, not raw fetches: overlapping
	// endpoints fetch the same record more than once, and a duplicate
	// must not depress the rate.
	rate := 0.0
	if processed := r.productsTransformed + r.productsFailed; processed > 0 {
		rate = float64(r.productsTransformed) / float64(processed) * 100
	}

	return Snapshot{
		PagesFetched:        r.pagesFetched,
		ProductsFetched:     r.productsFetched,
		ProductsTransformed: r.productsTransformed,
		ProductsFailed:      r.productsFailed,
		RequestsSucceeded:   r.requestsSucceeded,
		RequestsFailed:      r.requestsFailed,
		EndpointsFailed:     r.endpointsFailed,
		SuccessRate:         rate,
		Errors:              errs,
	}
}
