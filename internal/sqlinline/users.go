package sqlinline

const QSelectUserByID = `--sql 1239018e-4f5f-46a0-8f0d-81b2a3a5f0f8
select id, email
from users
where id = $1::uuid
limit 1;
`

const QSelectUserByEmail = `--sql 6aa563c9-2f83-463a-8b6e-63692843ae45
select id, email
from users
where lower(email) = lower($1::text)
limit 1;
`
