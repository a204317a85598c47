package sqlinline

const QSelectTenantByID = `--sql 6c0f82d4-3a1e-4b79-95c6-d7e40f28a1b3
select id, email, coalesce(system_prompt, ''), coalesce(writing_style, ''),
       coalesce(topic_queries, '[]'::jsonb), coalesce(last_query_index, 0),
       coalesce(brand_primary_color, ''), coalesce(brand_accent_color, ''),
       coalesce(cms_base_url, ''), coalesce(cms_username, ''), coalesce(cms_app_password, ''),
       coalesce(schedule, '[]'::jsonb),
       auto_recharge_enabled, auto_recharge_threshold_cents, auto_recharge_amount_cents,
       coalesce(payment_customer_ref, ''),
       balance_cents
from tenants
where id = $1;
`

const QSelectTenantByAPIKey = `--sql b8d61e05-4f2a-4c83-a79d-08c3f5d612e9
select id
from tenants
where api_key = $1;
`

const QSelectTenantsWithSchedule = `--sql 52e9c7a3-180d-4b46-bf25-9a6d03e84c71
select id
from tenants
where jsonb_array_length(coalesce(schedule, '[]'::jsonb)) > 0;
`

const QUpdateTenantQueryIndex = `--sql 3f61b9e8-c24d-4a07-85f3-d90b2e67a514
update tenants
set last_query_index = $2, updated_at = now()
where id = $1;
`
