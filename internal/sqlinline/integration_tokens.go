package sqlinline

const QSelectIntegrationToken = `--sql 91c2d3e4-5a6b-4c7d-8e9f-a0b1c2d3e4f5
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql b7e1f0a2-3c4d-4e5f-9a6b-7c8d9e0f1a2b
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
