package sqlinline

const QSelectCampaign = `--sql 4d8f1a6c-2e95-40b7-8c3d-91f5e7a0b264
select
  c.id,
  c.title,
  c.status,
  c.creator_id,
  a.display_name,
  a.email,
  a.financially_verified,
  c.currency,
  c.goal_amount,
  c.current_amount,
  c.created_at
from campaigns c
join accounts a on a.id = c.creator_id
where c.id = $1::uuid
limit 1;
`

const QSelectCampaignTotal = `--sql a1e6b3d9-8f42-4c70-95ab-3c7d0e2f6b18
select current_amount
from campaigns
where id = $1::uuid
limit 1;
`
