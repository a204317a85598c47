package sqlinline

const QInsertStageResult = `--sql d4b91e37-820a-4f65-b3c8-16e9f50a7d28
insert into stage_results (id, job_id, stage, attempt, status, error_class, payload_ref, started_at, duration_ms)
values ($1, $2, $3, $4, $5, nullif($6, ''), nullif($7, ''), $8, $9);
`

const QSelectStageResults = `--sql 68c2a5f0-9d3e-4b71-a842-f51c07d936be
select id, job_id, stage, attempt, status, coalesce(error_class, ''), coalesce(payload_ref, ''), started_at, duration_ms
from stage_results
where job_id = $1
order by started_at asc;
`
