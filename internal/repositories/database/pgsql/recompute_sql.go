package pgsql

// Advisory lock namespaces. Keys are hashed with hashtextextended; a collision only adds
// serialization between unrelated partitions.
const (
	resetLockKey           = "ledger_balances:reset"
	partitionLockKeyPrefix = "ledger_balances:partition:"
)

const (
	lockResetSharedSQL    = `SELECT pg_advisory_xact_lock_shared(hashtextextended($1, 0))`
	lockResetExclusiveSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	lockPartitionSQL      = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
)

// runningSum is the window shared by the incremental and the full recompute: the cumulative
// net of posted lines in partition order, current line included.
const runningSum = `SUM(l.debit - l.credit) OVER (
			PARTITION BY l.account_id, l.partner_key
			ORDER BY l.date, l.id
			ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)`

// recomputeTargetsSQL rewrites the posted tail (date >= min_date) of each target partition.
// Targets arrive as three parallel arrays. Each tail is seeded with the sum of the posted lines
// before min_date so the window continues the partition's running total instead of restarting
// at zero. The computed records are upserted and copied onto the line columns in one statement.
const recomputeTargetsSQL = `
WITH targets AS (
	SELECT t.account_id, t.partner_key, t.min_date
	FROM unnest($1::bigint[], $2::bigint[], $3::date[]) AS t(account_id, partner_key, min_date)
),
seeds AS (
	SELECT t.account_id, t.partner_key, t.min_date,
		COALESCE((
			SELECT SUM(p.debit - p.credit)
			FROM ledger_lines p
			WHERE p.account_id = t.account_id
				AND p.partner_key = t.partner_key
				AND p.state = 'posted'
				AND p.date < t.min_date
		), 0) AS seed
	FROM targets t
),
computed AS (
	SELECT l.id AS line_id, l.currency_id, l.debit - l.credit AS net,
		s.seed + ` + runningSum + ` AS running
	FROM ledger_lines l
	JOIN seeds s ON s.account_id = l.account_id AND s.partner_key = l.partner_key
	WHERE l.state = 'posted' AND l.date >= s.min_date
),
upserted AS (
	INSERT INTO line_balances (line_id, initial_balance, end_balance, currency_id)
	SELECT line_id, running - net, running, currency_id FROM computed
	ON CONFLICT (line_id) DO UPDATE
	SET initial_balance = EXCLUDED.initial_balance,
		end_balance = EXCLUDED.end_balance,
		currency_id = EXCLUDED.currency_id
	RETURNING line_id, initial_balance, end_balance
)
UPDATE ledger_lines l
SET initial_balance = u.initial_balance, end_balance = u.end_balance
FROM upserted u
WHERE l.id = u.line_id`

// recomputeAllSQL computes every posted line with the same window and no seed.
const recomputeAllSQL = `
INSERT INTO line_balances (line_id, initial_balance, end_balance, currency_id)
SELECT w.line_id, w.running - w.net, w.running, w.currency_id
FROM (
	SELECT l.id AS line_id, l.currency_id, l.debit - l.credit AS net,
		` + runningSum + ` AS running
	FROM ledger_lines l
	WHERE l.state = 'posted'
) w
ON CONFLICT (line_id) DO UPDATE
SET initial_balance = EXCLUDED.initial_balance,
	end_balance = EXCLUDED.end_balance,
	currency_id = EXCLUDED.currency_id`

const syncLineBalancesSQL = `
UPDATE ledger_lines l
SET initial_balance = b.initial_balance, end_balance = b.end_balance
FROM line_balances b
WHERE b.line_id = l.id
	AND (l.initial_balance IS DISTINCT FROM b.initial_balance OR l.end_balance IS DISTINCT FROM b.end_balance)`

const clearOrphanLineBalancesSQL = `
UPDATE ledger_lines l
SET initial_balance = NULL, end_balance = NULL
WHERE (l.initial_balance IS NOT NULL OR l.end_balance IS NOT NULL)
	AND NOT EXISTS (SELECT 1 FROM line_balances b WHERE b.line_id = l.id)`
