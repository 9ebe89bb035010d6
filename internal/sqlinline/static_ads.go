package sqlinline

const QEnsureUsageCounter = `--sql 3f864c8c-5f9e-4d42-b8d7-efb55a2d173c
insert into usage_counters(user_id, category, current_usage, usage_limit, created_at, updated_at)
values (
  $1::uuid,
  $2::text,
  0,
  case when $3::int > 0 then $3::int end,
  now(),
  now()
)
on conflict (user_id, category) do nothing;
`

const QConsumeUsage = `--sql 4084c073-98cf-405e-8dc8-a2c07d6ebb6d
update usage_counters
set current_usage = current_usage + 1,
    updated_at = now()
where user_id = $1::uuid
  and category = $2::text
  and (usage_limit is null or current_usage < usage_limit)
returning current_usage, usage_limit;
`

const QSelectUsage = `--sql 4af9f73e-4739-482d-a352-492bb8bc0749
select current_usage, usage_limit
from usage_counters
where user_id = $1::uuid
  and category = $2::text
limit 1;
`

const QInsertStaticAdJob = `--sql dffb362a-8bcf-4a01-b3c4-b0cd13acffc3
insert into static_ad_jobs(
  id,
  user_id,
  origin_id,
  status,
  progress,
  current_step,
  error_message,
  avatar,
  selected_angles,
  reference_image_ids,
  product_mime,
  product_image,
  language,
  flags,
  quota_per_angle,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::uuid,
  $2::text,
  'QUEUED',
  0,
  '',
  '',
  $3::text,
  $4::jsonb,
  $5::jsonb,
  $6::text,
  $7::bytea,
  $8::text,
  $9::jsonb,
  $10::int,
  now(),
  now()
)
returning id, status, created_at, updated_at;
`

const QSelectStaticAdJob = `--sql c5dffd1f-d58f-403e-9b13-3fc9338b1080
select
  id,
  user_id,
  origin_id,
  status,
  progress,
  current_step,
  error_message,
  avatar,
  selected_angles,
  reference_image_ids,
  language,
  flags,
  quota_per_angle,
  created_at,
  updated_at
from static_ad_jobs
where id = $1::uuid
  and user_id = $2::uuid
limit 1;
`

const QSelectStaticAdJobsByOrigin = `--sql cf74491a-9f2b-4d56-8427-801449ce825e
select
  id,
  user_id,
  origin_id,
  status,
  progress,
  current_step,
  error_message,
  avatar,
  selected_angles,
  reference_image_ids,
  language,
  flags,
  quota_per_angle,
  created_at,
  updated_at
from static_ad_jobs
where user_id = $1::uuid
  and origin_id = $2::text
order by created_at asc;
`

const QSelectStaticAdResultsByJob = `--sql 5f39d7a4-4e82-459b-898c-565e8a16a334
select id, job_id, origin_id, image_url, angle_index, variation_number, created_at
from static_ad_results
where job_id = $1::uuid
order by created_at asc;
`

const QSelectStaticAdResultsByOrigin = `--sql 3c4f50eb-b182-4590-a080-c13b62754dcc
select r.id, r.job_id, r.origin_id, r.image_url, r.angle_index, r.variation_number, r.created_at
from static_ad_results r
join static_ad_jobs j on j.id = r.job_id
where j.user_id = $1::uuid
  and r.origin_id = $2::text
order by r.created_at asc;
`

const QSelectStaticAdArchive = `--sql 2a0cf93d-b4d4-489e-9199-20731179eb76
select r.id, r.storage_key, r.image_url, r.angle_index, r.variation_number
from static_ad_results r
join static_ad_jobs j on j.id = r.job_id
where j.user_id = $1::uuid
  and r.origin_id = $2::text
order by r.created_at asc;
`

const QListReferenceImages = `--sql 87e19406-574c-40cf-9a8b-133e6b115bfe
select id, url
from reference_images
where user_id = $1::uuid
order by created_at desc
limit 200;
`

const QWorkerClaimStaticAdJob = `--sql 60cdf285-5e91-4532-a99c-f7f37a55a69f
with next_job as (
    select id
    from static_ad_jobs
    where status = 'QUEUED'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update static_ad_jobs
    set status = 'RUNNING', current_step = 'starting', updated_at = now()
    where id in (select id from next_job)
    returning
      id,
      user_id,
      origin_id,
      status,
      progress,
      current_step,
      error_message,
      avatar,
      selected_angles,
      reference_image_ids,
      language,
      flags,
      quota_per_angle,
      created_at,
      updated_at,
      product_mime,
      product_image
)
select * from updated;
`

const QInsertStaticAdResult = `--sql 80512bba-6662-4cf2-9fb3-4fd6d64920c3
insert into static_ad_results(
  id,
  job_id,
  origin_id,
  image_url,
  storage_key,
  angle_index,
  variation_number,
  created_at
) values (
  coalesce(nullif($1::text, '')::uuid, gen_random_uuid()),
  $2::uuid,
  $3::text,
  $4::text,
  $5::text,
  $6::int,
  $7::int,
  now()
)
on conflict (image_url) do nothing;
`

const QUpdateStaticAdProgress = `--sql cb80d77e-56d7-4be1-9b55-13e623ea98db
update static_ad_jobs
set progress = greatest(progress, $2::int),
    current_step = $3::text,
    updated_at = now()
where id = $1::uuid;
`

const QFinishStaticAdJob = `--sql bf658e88-af18-4b3a-9bd0-ed63c91a2e67
update static_ad_jobs
set status = $2::text,
    error_message = $3::text,
    progress = case when $2::text = 'SUCCEEDED' then 100 else progress end,
    current_step = case when $2::text = 'SUCCEEDED' then 'done' else current_step end,
    updated_at = now()
where id = $1::uuid;
`

const QSetUsageLimit = `--sql a50400a9-0ed5-42e7-a262-8570d5964081
insert into usage_counters(user_id, category, current_usage, usage_limit, created_at, updated_at)
values ($1::uuid, $2::text, 0, $3::int, now(), now())
on conflict (user_id, category) do update
set usage_limit = excluded.usage_limit,
    current_usage = case when $4::boolean then usage_counters.current_usage else 0 end,
    updated_at = now()
returning current_usage, usage_limit;
`
