package sqlinline

const QLockTenantBalance = `--sql 83a0d5f1-2c6b-4e98-bd73-5f09e81c4a62
select balance_cents
from tenants
where id = $1
for update;
`

const QUpdateTenantBalance = `--sql 4d7e92c8-0b13-4a5f-86d2-e94a70f53b18
update tenants
set balance_cents = $2, updated_at = now()
where id = $1;
`

const QInsertTransaction = `--sql c5281fa4-9e67-4d03-b8a1-3062d4f9e7c5
insert into credit_transactions (id, tenant_id, job_id, delta_cents, balance_after_cents, kind, description, created_at)
values ($1, $2, nullif($3, ''), $4, $5, $6, $7, now());
`

const QRefundExistsForJob = `--sql e96b40d2-7a8f-4c15-93e6-1d2805cfa743
select exists (
    select 1 from credit_transactions
    where job_id = $1 and kind = 'refund'
);
`

const QSelectTransactions = `--sql 17f3a8b6-d40e-4952-8c7b-6a95e02d31f8
select id, tenant_id, coalesce(job_id, ''), delta_cents, balance_after_cents, kind, coalesce(description, ''), created_at
from credit_transactions
where tenant_id = $1
order by created_at desc
limit $2;
`
