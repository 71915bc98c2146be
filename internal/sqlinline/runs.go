package sqlinline

// Every query starts with a --sql marker line so the SQLRunner can tag
// log lines without echoing whole statements.

const QInsertRun = `--sql 7f3c1a52-9d4e-4b1c-8a2f-6e5d0c9b8a71
insert into batch_runs(
  id,
  mode,
  template,
  requested,
  unique_count,
  duplicate_count,
  failed_count,
  status,
  error,
  started_at,
  finished_at
)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`

const QSelectRun = `--sql 2b8e6f10-3c7a-4d92-b5e1-9a0f4c6d2e83
select
  id,
  mode,
  template,
  requested,
  unique_count,
  duplicate_count,
  failed_count,
  status,
  error,
  started_at,
  finished_at
from batch_runs
where id = $1::uuid;
`

const QListRuns = `--sql c4d9e2a7-1f6b-4e38-a90c-5b7d8f3e1c62
select
  id,
  mode,
  template,
  requested,
  unique_count,
  duplicate_count,
  failed_count,
  status,
  error,
  started_at,
  finished_at
from batch_runs
order by started_at desc
limit $1;
`
