package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

type fakeTenantSource struct {
	tenants      map[string]domain.TenantConfig
	queryIndexes map[string]int
}

func (f *fakeTenantSource) ScheduledTenantIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.tenants))
	for id := range f.tenants {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeTenantSource) GetByID(ctx context.Context, tenantID string) (domain.TenantConfig, error) {
	t, ok := f.tenants[tenantID]
	if !ok {
		return domain.TenantConfig{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenantSource) SetQueryIndex(ctx context.Context, tenantID string, index int) error {
	if f.queryIndexes == nil {
		f.queryIndexes = map[string]int{}
	}
	f.queryIndexes[tenantID] = index
	return nil
}

type fakeSlots struct {
	claimed map[string]bool
	purges  int
}

func (f *fakeSlots) ClaimSlot(ctx context.Context, tenantID string, slot time.Time) (bool, error) {
	if f.claimed == nil {
		f.claimed = map[string]bool{}
	}
	key := tenantID + slot.UTC().String()
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeSlots) PurgeOld(ctx context.Context) error {
	f.purges++
	return nil
}

type fakeJobCreator struct {
	jobs []domain.Job
	err  error
}

func (f *fakeJobCreator) Create(ctx context.Context, job *domain.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, *job)
	return nil
}

type fakeLedger struct {
	debitErr   error
	debits     int
	refunds    int
	recharges  int
	lastAmount int64
}

func (f *fakeLedger) Debit(ctx context.Context, tenantID, jobID string, amountCents int64) (int64, error) {
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	f.debits++
	f.lastAmount = amountCents
	return 1000 - amountCents, nil
}

func (f *fakeLedger) Refund(ctx context.Context, tenantID, jobID string, amountCents int64, reason string) error {
	f.refunds++
	return nil
}

func (f *fakeLedger) MaybeAutoRecharge(ctx context.Context, tenant domain.TenantConfig, balanceCents int64) {
	f.recharges++
}

// dueNow is a fixed instant one minute past a Wednesday 14:00 slot.
var dueNow = time.Date(2026, 9, 2, 14, 1, 0, 0, time.UTC)

func scheduledTenant(id string) domain.TenantConfig {
	return domain.TenantConfig{
		ID:           id,
		Email:        id + "@test",
		WritingStyle: "magazine",
		TopicQueries: []string{"heat pumps", "balcony solar"},
		// Rotation resumes after the last used index, so the next pick
		// wraps back to the first query.
		LastQueryIndex: 1,
		ScheduleJSON: []byte(`[{"weekday":"wednesday","time":"14:00","mode":"cms"}]`),
	}
}

func newTestScheduler(src *fakeTenantSource, slots *fakeSlots, jobs *fakeJobCreator, ledger *fakeLedger) *Scheduler {
	s := New(src, slots, jobs, ledger, nil, 199, zerolog.Nop())
	s.now = func() time.Time { return dueNow }
	return s
}

func TestSweepAdmitsDueSlotOnce(t *testing.T) {
	src := &fakeTenantSource{tenants: map[string]domain.TenantConfig{"t1": scheduledTenant("t1")}}
	slots := &fakeSlots{}
	jobs := &fakeJobCreator{}
	ledger := &fakeLedger{}
	s := newTestScheduler(src, slots, jobs, ledger)

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if len(jobs.jobs) != 1 {
		t.Fatalf("jobs created = %d, want 1 across repeated sweeps of the same slot", len(jobs.jobs))
	}
	job := jobs.jobs[0]
	if job.State != domain.JobStateQueued {
		t.Fatalf("job state = %v", job.State)
	}
	if job.RequestedMode != domain.PersistModeCMS {
		t.Fatalf("requested mode = %v, want cms from the schedule entry", job.RequestedMode)
	}
	if job.ScheduledSlot == nil || !job.ScheduledSlot.Equal(time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("scheduled slot = %v", job.ScheduledSlot)
	}
	if ledger.debits != 1 || ledger.lastAmount != 199 {
		t.Fatalf("debits = %d amount %d", ledger.debits, ledger.lastAmount)
	}
	if slots.purges != 2 {
		t.Fatalf("purges = %d, want one per sweep", slots.purges)
	}
}

func TestSweepRotatesTopicQueries(t *testing.T) {
	src := &fakeTenantSource{tenants: map[string]domain.TenantConfig{"t1": scheduledTenant("t1")}}
	jobs := &fakeJobCreator{}
	s := newTestScheduler(src, &fakeSlots{}, jobs, &fakeLedger{})

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(jobs.jobs) != 1 || jobs.jobs[0].Topic != "heat pumps" {
		t.Fatalf("jobs = %+v", jobs.jobs)
	}
	if src.queryIndexes["t1"] != 0 {
		t.Fatalf("persisted query index = %d, want 0", src.queryIndexes["t1"])
	}
}

func TestSweepSkipsSlotOnInsufficientFunds(t *testing.T) {
	src := &fakeTenantSource{tenants: map[string]domain.TenantConfig{"t1": scheduledTenant("t1")}}
	jobs := &fakeJobCreator{}
	ledger := &fakeLedger{debitErr: domain.ErrInsufficientFunds}
	s := newTestScheduler(src, &fakeSlots{}, jobs, ledger)

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatal("job admitted despite insufficient funds")
	}
	if ledger.recharges != 1 {
		t.Fatalf("recharge attempts = %d, want 1", ledger.recharges)
	}
	if ledger.refunds != 0 {
		t.Fatal("nothing was debited, nothing to refund")
	}
}

func TestSweepRefundsWhenJobInsertFails(t *testing.T) {
	src := &fakeTenantSource{tenants: map[string]domain.TenantConfig{"t1": scheduledTenant("t1")}}
	jobs := &fakeJobCreator{err: errors.New("db down")}
	ledger := &fakeLedger{}
	s := newTestScheduler(src, &fakeSlots{}, jobs, ledger)

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep surfaces per-tenant errors in logs only: %v", err)
	}
	if ledger.debits != 1 || ledger.refunds != 1 {
		t.Fatalf("debits = %d refunds = %d, want the debit reversed", ledger.debits, ledger.refunds)
	}
}

func TestSweepSkipsTenantWithUnparseableSchedule(t *testing.T) {
	bad := scheduledTenant("t1")
	bad.ScheduleJSON = []byte(`[{"weekday":"funday","time":"14:00"}]`)
	src := &fakeTenantSource{tenants: map[string]domain.TenantConfig{"t1": bad}}
	jobs := &fakeJobCreator{}
	s := newTestScheduler(src, &fakeSlots{}, jobs, &fakeLedger{})

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatal("job admitted from an unparseable schedule")
	}
}

func TestSweepOutsideWindowAdmitsNothing(t *testing.T) {
	src := &fakeTenantSource{tenants: map[string]domain.TenantConfig{"t1": scheduledTenant("t1")}}
	jobs := &fakeJobCreator{}
	s := newTestScheduler(src, &fakeSlots{}, jobs, &fakeLedger{})
	s.now = func() time.Time { return dueNow.Add(3 * time.Hour) }

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatalf("jobs = %d, want 0 outside the trigger window", len(jobs.jobs))
	}
}
