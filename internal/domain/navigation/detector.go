package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/navcare/navcare/internal/platform/tenant"
)

// DelayAlerter receives overdue steps found by the detector. It decides
// whether a step actually produces a new alert; the detector only reports
// observations. The alerting service satisfies this through an adapter
// wired at startup.
type DelayAlerter interface {
	// EnsureDelayAlert reports whether a new alert was created for the step.
	// Suppression by an already-open alert is a normal, non-error outcome.
	EnsureDelayAlert(ctx context.Context, tenantID string, step *Step, daysOverdue int) (created bool, err error)
}

// ScanResult aggregates one detector pass across all tenants.
type ScanResult struct {
	TenantsScanned int `json:"tenants_scanned"`
	StepsScanned   int `json:"steps_scanned"`
	MarkedOverdue  int `json:"marked_overdue"`
	AlertsCreated  int `json:"alerts_created"`
	Failures       int `json:"failures"`
}

func (r *ScanResult) add(other ScanResult) {
	r.TenantsScanned += other.TenantsScanned
	r.StepsScanned += other.StepsScanned
	r.MarkedOverdue += other.MarkedOverdue
	r.AlertsCreated += other.AlertsCreated
	r.Failures += other.Failures
}

// Detector periodically sweeps every tenant's open steps for passed due
// dates, hands each overdue step to the alerter, and maintains the advisory
// OVERDUE status hint. Runs never overlap: a tick that arrives while a scan
// is still in flight is skipped.
type Detector struct {
	steps       Repository
	tenants     tenant.Registry
	alerter     DelayAlerter
	interval    time.Duration
	maxSteps    int
	retryDelays []time.Duration
	logger      zerolog.Logger

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

func NewDetector(steps Repository, tenants tenant.Registry, alerter DelayAlerter,
	interval time.Duration, maxSteps int, logger zerolog.Logger) *Detector {
	return &Detector{
		steps:       steps,
		tenants:     tenants,
		alerter:     alerter,
		interval:    interval,
		maxSteps:    maxSteps,
		retryDelays: []time.Duration{500 * time.Millisecond, 2 * time.Second},
		logger:      logger,
	}
}

// Start launches the periodic scan loop. The first scan runs one interval
// after start, not immediately, so restarts do not stampede the store.
func (d *Detector) Start(ctx context.Context) {
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		d.logger.Info().Dur("interval", d.interval).Msg("overdue detector started")
		for {
			select {
			case <-ticker.C:
				result, err := d.Scan(ctx)
				if err != nil {
					d.logger.Error().Err(err).Msg("overdue scan failed")
					continue
				}
				d.logger.Info().
					Int("tenants", result.TenantsScanned).
					Int("steps", result.StepsScanned).
					Int("marked_overdue", result.MarkedOverdue).
					Int("alerts_created", result.AlertsCreated).
					Int("failures", result.Failures).
					Msg("overdue scan complete")
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight scan to finish.
func (d *Detector) Stop() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
}

// Scan sweeps every registered tenant, tenants in parallel, steps within a
// tenant sequentially. A tenant whose sweep fails is counted and skipped;
// one bad tenant never blocks the others. Overlapping calls collapse: if a
// scan is already running the second call returns immediately with an empty
// result.
func (d *Detector) Scan(ctx context.Context) (ScanResult, error) {
	if !d.runMu.TryLock() {
		d.logger.Warn().Msg("overdue scan still running, skipping tick")
		return ScanResult{}, nil
	}
	defer d.runMu.Unlock()

	tenants, err := d.tenants.List(ctx)
	if err != nil {
		return ScanResult{}, err
	}

	var (
		mu    sync.Mutex
		total ScanResult
		wg    sync.WaitGroup
	)
	for _, t := range tenants {
		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			result := d.scanTenant(ctx, tenantID)
			mu.Lock()
			total.add(result)
			mu.Unlock()
		}(t.ID)
	}
	wg.Wait()

	total.TenantsScanned = len(tenants)
	return total, nil
}

func (d *Detector) scanTenant(ctx context.Context, tenantID string) ScanResult {
	now := time.Now().UTC()

	candidates, err := d.listCandidatesWithRetry(ctx, tenantID, now)
	if err != nil {
		d.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("tenant overdue sweep failed")
		return ScanResult{Failures: 1}
	}
	return d.processCandidates(ctx, tenantID, candidates, now)
}

// listCandidatesWithRetry retries the candidate query on transient store
// errors before the tenant's sweep is given up for this run.
func (d *Detector) listCandidatesWithRetry(ctx context.Context, tenantID string, now time.Time) ([]*Step, error) {
	candidates, err := d.steps.ListCandidates(ctx, tenantID, now, d.maxSteps)
	for attempt := 0; err != nil && attempt < len(d.retryDelays); attempt++ {
		d.logger.Warn().Err(err).
			Str("tenant_id", tenantID).
			Dur("delay", d.retryDelays[attempt]).
			Msg("candidate query failed, retrying")
		select {
		case <-time.After(d.retryDelays[attempt]):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		candidates, err = d.steps.ListCandidates(ctx, tenantID, now, d.maxSteps)
	}
	return candidates, err
}

// CheckPatient runs the overdue sweep for a single patient, used after step
// edits so a correction or a newly late step takes effect immediately.
func (d *Detector) CheckPatient(ctx context.Context, tenantID string, patientID uuid.UUID) (ScanResult, error) {
	now := time.Now().UTC()

	candidates, err := d.steps.ListCandidatesByPatient(ctx, tenantID, patientID, now)
	if err != nil {
		return ScanResult{}, err
	}
	result := d.processCandidates(ctx, tenantID, candidates, now)
	return result, nil
}

func (d *Detector) processCandidates(ctx context.Context, tenantID string, candidates []*Step, now time.Time) ScanResult {
	var result ScanResult
	for _, step := range candidates {
		result.StepsScanned++

		// Due earlier today is not overdue until midnight passes.
		daysOverdue := step.DaysOverdue(now)
		if daysOverdue < 1 {
			continue
		}

		created, err := d.alerter.EnsureDelayAlert(ctx, tenantID, step, daysOverdue)
		if err != nil {
			d.logger.Error().Err(err).
				Str("tenant_id", tenantID).
				Str("step_id", step.ID.String()).
				Msg("delay alert failed")
			result.Failures++
			continue
		}
		if created {
			result.AlertsCreated++
		}

		// Advisory hint only; the candidate query keeps OVERDUE rows in
		// scope, so a failed update here costs nothing but freshness.
		if step.Status != StatusOverdue {
			if err := ApplyTransition(step, StatusOverdue, nil, now); err != nil {
				d.logger.Error().Err(err).
					Str("tenant_id", tenantID).
					Str("step_id", step.ID.String()).
					Msg("overdue mark rejected")
				result.Failures++
				continue
			}
			if err := d.steps.Update(ctx, step); err != nil {
				d.logger.Error().Err(err).
					Str("tenant_id", tenantID).
					Str("step_id", step.ID.String()).
					Msg("overdue mark failed")
				result.Failures++
				continue
			}
			result.MarkedOverdue++
		}
	}
	return result
}
