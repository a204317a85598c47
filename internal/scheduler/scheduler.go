package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pressroom/internal/domain"
)

// TenantSource lists scheduled tenants and loads their configuration.
type TenantSource interface {
	ScheduledTenantIDs(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, tenantID string) (domain.TenantConfig, error)
	SetQueryIndex(ctx context.Context, tenantID string, index int) error
}

// SlotClaimer owns the durable once-per-slot guarantee.
type SlotClaimer interface {
	ClaimSlot(ctx context.Context, tenantID string, slot time.Time) (bool, error)
	PurgeOld(ctx context.Context) error
}

// JobCreator inserts queued jobs.
type JobCreator interface {
	Create(ctx context.Context, job *domain.Job) error
}

// Debiter charges a tenant for one article up front and can reverse the
// charge when admission fails after the debit.
type Debiter interface {
	Debit(ctx context.Context, tenantID, jobID string, amountCents int64) (int64, error)
	Refund(ctx context.Context, tenantID, jobID string, amountCents int64, reason string) error
	MaybeAutoRecharge(ctx context.Context, tenant domain.TenantConfig, balanceCents int64)
}

// Scheduler sweeps tenant schedules and admits jobs for due slots. Fast
// dedup happens in Redis; the scheduled_runs table is the authority, so a
// Redis flush cannot cause double admission.
type Scheduler struct {
	tenants   TenantSource
	slots     SlotClaimer
	jobs      JobCreator
	ledger    Debiter
	redis     *redis.Client
	costCents int64
	sweep     time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func New(tenants TenantSource, slots SlotClaimer, jobs JobCreator, ledger Debiter, rdb *redis.Client, costCents int64, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		tenants:   tenants,
		slots:     slots,
		jobs:      jobs,
		ledger:    ledger,
		redis:     rdb,
		costCents: costCents,
		sweep:     time.Minute,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps once per minute until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	s.logger.Info().Msg("scheduler: started")
	for {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduler: sweep failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler: stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep checks every scheduled tenant for due slots and admits at most one
// job per due slot.
func (s *Scheduler) Sweep(ctx context.Context) error {
	ids, err := s.tenants.ScheduledTenantIDs(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled tenants: %w", err)
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.sweepTenant(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("tenant_id", id).Msg("scheduler: tenant sweep failed")
		}
	}
	if err := s.slots.PurgeOld(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduler: purge old slots failed")
	}
	return nil
}

func (s *Scheduler) sweepTenant(ctx context.Context, tenantID string) error {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	entries, err := ParseSchedule(tenant.ScheduleJSON)
	if err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("scheduler: schedule unparseable, skipping tenant")
		return nil
	}
	now := s.now()
	for _, entry := range entries {
		slot, due := entry.Due(now)
		if !due {
			continue
		}
		if err := s.admit(ctx, tenant, entry, slot); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) admit(ctx context.Context, tenant domain.TenantConfig, entry Entry, slot time.Time) error {
	log := s.logger.With().Str("tenant_id", tenant.ID).Time("slot", slot).Logger()

	if s.redis != nil {
		key := fmt.Sprintf("sched:%s:%d", tenant.ID, slot.Unix())
		won, err := s.redis.SetNX(ctx, key, "1", time.Hour).Result()
		if err != nil {
			log.Warn().Err(err).Msg("scheduler: redis dedup unavailable, relying on database claim")
		} else if !won {
			return nil
		}
	}

	won, err := s.slots.ClaimSlot(ctx, tenant.ID, slot)
	if err != nil {
		return fmt.Errorf("claim slot: %w", err)
	}
	if !won {
		log.Debug().Msg("scheduler: slot already claimed")
		return nil
	}

	topic, nextIndex, ok := tenant.NextTopicQuery()
	if !ok {
		log.Warn().Msg("scheduler: no topic queries configured, skipping slot")
		return domain.ErrNoTopicConfigured
	}
	if err := s.tenants.SetQueryIndex(ctx, tenant.ID, nextIndex); err != nil {
		log.Error().Err(err).Msg("scheduler: persist topic rotation failed")
	}

	jobID := uuid.NewString()
	balance, err := s.ledger.Debit(ctx, tenant.ID, jobID, s.costCents)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			log.Warn().Msg("scheduler: insufficient funds, slot skipped")
			s.ledger.MaybeAutoRecharge(ctx, tenant, tenant.BalanceCents)
			return nil
		}
		return fmt.Errorf("debit: %w", err)
	}

	job := &domain.Job{
		ID:            jobID,
		TenantID:      tenant.ID,
		Topic:         topic,
		WritingStyle:  tenant.WritingStyle,
		RequestedMode: domain.NormalizePersistMode(entry.Mode),
		State:         domain.JobStateQueued,
		ScheduledSlot: &slot,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		// No queued job exists to carry the debit; reverse it.
		if rerr := s.ledger.Refund(ctx, tenant.ID, jobID, s.costCents, "admission failed"); rerr != nil {
			log.Error().Err(rerr).Msg("scheduler: refund after failed admission failed")
		}
		return fmt.Errorf("insert scheduled job: %w", err)
	}

	log.Info().Str("job_id", jobID).Str("topic", topic).Msg("scheduler: job admitted")
	s.ledger.MaybeAutoRecharge(ctx, tenant, balance)
	return nil
}
