package pgsql

import (
	"context"
	"fmt"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/filter"
	"github.com/SscSPs/ledger_balances/internal/models"
	"github.com/SscSPs/ledger_balances/internal/utils/mapping"
)

// aggregateGroupsSQL picks the first and last filtered posted line of every (account, partner)
// with DISTINCT ON. Lines without a record count as zero. The %s verbs take the compiled filter
// and the final projection.
const aggregateGroupsSQL = `
WITH filtered AS (
	SELECT l.id, l.account_id, l.partner_key, l.date, l.debit - l.credit AS net,
		COALESCE(b.initial_balance, 0) AS initial_balance,
		COALESCE(b.end_balance, 0) AS end_balance
	FROM ledger_lines l
	LEFT JOIN line_balances b ON b.line_id = l.id
	WHERE l.state = 'posted' AND (%s)
),
firsts AS (
	SELECT DISTINCT ON (account_id, partner_key) account_id, partner_key, initial_balance AS opening
	FROM filtered
	ORDER BY account_id, partner_key, date, id
),
lasts AS (
	SELECT DISTINCT ON (account_id, partner_key) account_id, partner_key, end_balance AS closing
	FROM filtered
	ORDER BY account_id, partner_key, date DESC, id DESC
),
movements AS (
	SELECT account_id, partner_key, SUM(net) AS movement
	FROM filtered
	GROUP BY account_id, partner_key
),
grouped AS (
	SELECT f.account_id, f.partner_key, f.opening, la.closing, m.movement
	FROM firsts f
	JOIN lasts la ON la.account_id = f.account_id AND la.partner_key = f.partner_key
	JOIN movements m ON m.account_id = f.account_id AND m.partner_key = f.partner_key
)
%s`

const (
	projectPartitions = `SELECT account_id, partner_key, opening, closing, movement
FROM grouped ORDER BY account_id, partner_key`
	projectCounterparties = `SELECT NULL::bigint AS account_id, partner_key,
	SUM(opening) AS opening, SUM(closing) AS closing, SUM(movement) AS movement
FROM grouped GROUP BY partner_key ORDER BY partner_key`
)

// AggregateGroups computes opening, closing and movement per group of the filtered posted lines.
func (r *PgxLedgerRepository) AggregateGroups(ctx context.Context, req domain.AggregateRequest) ([]domain.AggregateRow, error) {
	where, args, err := filter.Compile(req.Filter, filter.Postgres, "l", 0)
	if err != nil {
		return nil, err
	}
	projection := projectPartitions
	if req.Granularity == domain.ByCounterparty {
		projection = projectCounterparties
	}

	rows, err := r.Pool.Query(ctx, fmt.Sprintf(aggregateGroupsSQL, where, projection), args...)
	if err != nil {
		return nil, classifyError("error querying aggregate balances", err)
	}
	defer rows.Close()

	result := []domain.AggregateRow{}
	for rows.Next() {
		var m models.AggregateRow
		if err := rows.Scan(&m.AccountID, &m.PartnerKey, &m.Opening, &m.Closing, &m.Movement); err != nil {
			return nil, fmt.Errorf("error scanning aggregate row: %w", err)
		}
		result = append(result, mapping.ToDomainAggregateRow(m, req))
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating aggregate rows", err)
	}
	return result, nil
}
