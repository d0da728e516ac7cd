package sqlinline

const QInsertDonation = `--sql 8b41f3a2-6c0d-4e2f-9a17-d52c3b8e9f04
insert into donations(
  id,
  campaign_id,
  donor_id,
  donor_email,
  amount_int,
  currency,
  status,
  card_brand,
  card_last_four,
  message,
  is_anonymous,
  properties,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::uuid,
  nullif($2::text, '')::uuid,
  $3::text,
  $4::bigint,
  $5::text,
  'PENDING',
  $6::text,
  $7::text,
  $8::text,
  $9::boolean,
  coalesce($10::jsonb, '{}'::jsonb),
  now(),
  now()
) returning id, created_at;
`

const QSetGatewayIntent = `--sql 2e7d9c55-1f83-4b6a-8c42-07a6e1d4b9c8
update donations
set gateway_intent_id = $2::text, updated_at = now()
where id = $1::uuid and status = 'PENDING';
`

const QSelectDonation = `--sql 5a0c8e7b-3d94-42f1-b6e8-91c2d0f7a365
select
  id,
  campaign_id,
  donor_id,
  donor_email,
  amount_int,
  currency,
  status,
  coalesce(gateway_intent_id, ''),
  card_brand,
  card_last_four,
  message,
  is_anonymous,
  coalesce(failure_reason, ''),
  properties,
  created_at,
  processed_at
from donations
where id = $1::uuid
limit 1;
`

const QMarkDonationProcessing = `--sql c4f21b6e-8a57-4d03-9e1c-2b5f7d08a4e1
update donations
set status = 'PROCESSING', updated_at = now()
where id = $1::uuid and status = 'PENDING';
`

// The status list is the idempotency guard: a second settle of the same
// donation matches zero rows and the transaction never reaches the
// aggregate increment.
const QCompleteDonation = `--sql 7d3e5f90-b2c1-4a68-8f04-6e9a1c7d2b53
update donations
set status = 'COMPLETED', processed_at = now(), updated_at = now()
where id = $1::uuid
  and gateway_intent_id = $2::text
  and status in ('PENDING', 'PROCESSING')
returning campaign_id, amount_int;
`

const QIncrementCampaignTotal = `--sql 9f6a2d84-4e0b-47c3-a1f9-85d3b7c0e612
update campaigns
set current_amount = current_amount + $2::bigint, updated_at = now()
where id = $1::uuid
returning current_amount;
`

// Cancellation is guarded on PENDING alone: once a confirm has moved the row
// to PROCESSING the attempt must run to a terminal state, so a racing cancel
// can never fail a gateway-approved payment.
const QCancelDonation = `--sql f3c7a851-2d96-4b04-8e7f-60b1d4a9c253
update donations
set status = 'FAILED', failure_reason = $2::text, processed_at = now(), updated_at = now()
where id = $1::uuid and status = 'PENDING';
`

const QMarkDonationFailed = `--sql 1c8b4e27-9d60-4f3a-b7e5-04a2f6c9d8b1
update donations
set status = 'FAILED', failure_reason = $2::text, processed_at = now(), updated_at = now()
where id = $1::uuid and status in ('PENDING', 'PROCESSING');
`

const QListRecentDonations = `--sql e2a7c943-5b18-4d6f-90c2-7f4e8b1a3d50
select id, campaign_id, donor_id, amount_int, currency, card_brand, card_last_four, message, is_anonymous, created_at
from donations
where status = 'COMPLETED'
order by processed_at desc
limit $1::int;
`

// Feed for a reconciliation pass against the processor's settlement records:
// intents we opened but never drove to a terminal state.
const QListUnsettledIntents = `--sql b5d90f12-7c4a-4e86-a3b1-f08d2e6c5a97
select id, campaign_id, donor_id, amount_int, currency, card_brand, card_last_four, message, is_anonymous, created_at
from donations
where status in ('PENDING', 'PROCESSING')
  and gateway_intent_id is not null
  and created_at < now() - interval '15 minutes'
order by created_at asc
limit $1::int;
`
