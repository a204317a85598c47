package sqlinline

const QInsertJob = `--sql 7c1d2f8a-94b3-4a6e-8f21-0e5b7a3c9d14
insert into jobs (id, tenant_id, topic, writing_style, requested_mode, state, scheduled_slot, created_at, updated_at)
values ($1, $2, $3, $4, $5, 'queued', $6, now(), now());
`

const QWorkerClaimJob = `--sql 3e8f0b52-6a1c-47d9-b4e7-92c5d8a0f361
with next_job as (
    select id
    from jobs
    where state = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update jobs
    set state = 'admitted', updated_at = now()
    where id in (select id from next_job)
    returning id, tenant_id, topic, writing_style, requested_mode, scheduled_slot
)
select * from updated;
`

const QUpdateJobState = `--sql 9b4a7e20-1d5f-4c38-a6b9-e03f18c72d45
update jobs
set state = $2, updated_at = now()
where id = $1;
`

const QFinishJob = `--sql 5f2c8d91-3b7a-4e06-9c14-a8d60b35e7f2
update jobs
set state = $2,
    outcome = $3,
    error_class = nullif($4, ''),
    failed_stage = nullif($5, ''),
    updated_at = now()
where id = $1;
`

const QSelectJobByID = `--sql 0a6e3b84-5c92-4d17-8fa0-47b1d9e62c03
select id, tenant_id, topic, coalesce(writing_style, ''), requested_mode, state,
       coalesce(outcome, ''), coalesce(error_class, ''), coalesce(failed_stage, ''),
       scheduled_slot, created_at, updated_at
from jobs
where id = $1;
`
