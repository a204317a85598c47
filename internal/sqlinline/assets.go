package sqlinline

const QInsertImageAsset = `--sql f07d3c69-41b8-4e52-9a06-d82c5f1b3e74
insert into image_assets (id, job_id, role, idx, prompt, aspect_ratio, source_url, expires_at, created_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, now());
`

const QSetAssetLocalRef = `--sql 2b95e1d8-7f30-4c6a-b514-08a3d6e92f07
update image_assets
set local_ref = $2, bytes = $3
where id = $1;
`

const QInsertArticle = `--sql a1f48c02-6e9d-4b37-852f-c70d19e5a386
insert into articles (id, job_id, title, subtitle, body_markup, formatter_used, cms_post_id, cms_post_url, artifact_ref, created_at)
values ($1, $2, $3, $4, $5, $6, nullif($7, ''), nullif($8, ''), nullif($9, ''), now());
`

const QSelectArticleByJob = `--sql 5ce82b41-9d07-4f6a-8e13-b2a64f09c7d5
select id, job_id, title, subtitle, coalesce(cms_post_id, ''), coalesce(cms_post_url, ''), coalesce(artifact_ref, ''), created_at
from articles
where job_id = $1;
`

const QSetArticlePublished = `--sql 83f61a2e-4c9b-47d0-9f25-6e1c08b74a93
update articles
set cms_post_url = $2
where id = $1;
`
