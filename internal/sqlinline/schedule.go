package sqlinline

// Admission of a scheduled occurrence must be unique per (tenant_id,
// scheduled_slot). The insert reports whether this caller won the slot.
const QClaimScheduledSlot = `--sql 90c47d1a-6eb2-4f58-83ad-27e05b9f4c36
insert into scheduled_runs (tenant_id, scheduled_slot, created_at)
values ($1, $2, now())
on conflict (tenant_id, scheduled_slot) do nothing;
`

const QDeleteOldScheduledRuns = `--sql ab35f2c7-09d8-4e61-b4a2-68f1d0c59e83
delete from scheduled_runs
where scheduled_slot < now() - interval '7 days';
`
