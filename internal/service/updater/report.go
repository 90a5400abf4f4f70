package updater

import (
	"context"
	"fmt"

	"github.com/oshokin/compose-updater/internal/logger"
)

// Result is the outcome of one service in the batch.
type Result struct {
	// Service is the service name.
	Service string
	// Restarted tells whether the service was stopped and started again.
	Restarted bool
	// Err is the failure that stopped this service's update, nil on success.
	Err error
}

// Report collects per-service results over one batch run.
type Report struct {
	results []Result
}

// UpToDate records a service whose images did not change.
func (r *Report) UpToDate(service string) {
	r.results = append(r.results, Result{Service: service})
}

// Restarted records a successfully restarted service.
func (r *Report) Restarted(service string) {
	r.results = append(r.results, Result{Service: service, Restarted: true})
}

// Failed records a service whose update failed.
func (r *Report) Failed(service string, err error) {
	r.results = append(r.results, Result{Service: service, Err: err})
}

// Failures returns the failed results in batch order.
func (r *Report) Failures() []Result {
	failures := make([]Result, 0, len(r.results))

	for _, result := range r.results {
		if result.Err != nil {
			failures = append(failures, result)
		}
	}

	return failures
}

// Err summarizes the batch: nil when every service succeeded, otherwise an
// error naming the failure count.
func (r *Report) Err() error {
	failed := len(r.Failures())
	if failed == 0 {
		return nil
	}

	return fmt.Errorf("%d of %d services failed", failed, len(r.results))
}

// Log writes the batch summary, one warning per failed service.
func (r *Report) Log(ctx context.Context) {
	var restarted, upToDate int

	for _, result := range r.results {
		switch {
		case result.Err != nil:
		case result.Restarted:
			restarted++
		default:
			upToDate++
		}
	}

	logger.InfoKV(ctx, "Update summary",
		"restarted", restarted,
		"up_to_date", upToDate,
		"failed", len(r.results)-restarted-upToDate)

	for _, failure := range r.Failures() {
		logger.WarnKV(ctx, "Service update failed",
			"service", failure.Service,
			"error", failure.Err)
	}
}
