package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

// aggregateGroupsSQL ranks the filtered posted lines of every (account, partner) from both ends
// and keeps the initial balance of the first and the end balance of the last. Lines without a
// record count as zero. The %s verbs take the compiled filter and the final projection.
const aggregateGroupsSQL = `
WITH filtered AS (
	SELECT l.account_id, l.partner_key, l.debit - l.credit AS net,
		COALESCE(b.initial_balance, 0) AS initial_balance,
		COALESCE(b.end_balance, 0) AS end_balance,
		ROW_NUMBER() OVER (PARTITION BY l.account_id, l.partner_key ORDER BY l.date, l.id) AS rn_first,
		ROW_NUMBER() OVER (PARTITION BY l.account_id, l.partner_key ORDER BY l.date DESC, l.id DESC) AS rn_last
	FROM ledger_lines l
	LEFT JOIN line_balances b ON b.line_id = l.id
	WHERE l.state = 'posted' AND (%s)
),
grouped AS (
	SELECT account_id, partner_key,
		SUM(CASE WHEN rn_first = 1 THEN initial_balance ELSE 0 END) AS opening,
		SUM(CASE WHEN rn_last = 1 THEN end_balance ELSE 0 END) AS closing,
		SUM(net) AS movement
	FROM filtered
	GROUP BY account_id, partner_key
)
%s`

const (
	projectPartitions = `SELECT account_id, partner_key, opening, closing, movement
FROM grouped ORDER BY account_id, partner_key`
	projectCounterparties = `SELECT NULL AS account_id, partner_key,
	SUM(opening) AS opening, SUM(closing) AS closing, SUM(movement) AS movement
FROM grouped GROUP BY partner_key ORDER BY partner_key`
)

// AggregateGroups computes opening, closing and movement per group of the filtered posted lines.
func (s *Store) AggregateGroups(ctx context.Context, req domain.AggregateRequest) ([]domain.AggregateRow, error) {
	where, args, err := filter.Compile(req.Filter, dialect{}, "l", 0)
	if err != nil {
		return nil, err
	}
	projection := projectPartitions
	if req.Granularity == domain.ByCounterparty {
		projection = projectCounterparties
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(aggregateGroupsSQL, where, projection), args...)
	if err != nil {
		return nil, classifyError("error querying aggregate balances", err)
	}
	defer rows.Close()

	result := []domain.AggregateRow{}
	for rows.Next() {
		var (
			accountID                  sql.NullInt64
			partnerKey                 int64
			opening, closing, movement int64
		)
		if err := rows.Scan(&accountID, &partnerKey, &opening, &closing, &movement); err != nil {
			return nil, fmt.Errorf("error scanning aggregate row: %w", err)
		}
		row := domain.AggregateRow{PartnerKey: partnerKey}
		if accountID.Valid {
			id := accountID.Int64
			row.AccountID = &id
		}
		if req.Wants(domain.FieldOpening) {
			v := fromMicro(opening)
			row.Opening = &v
		}
		if req.Wants(domain.FieldClosing) {
			v := fromMicro(closing)
			row.Closing = &v
		}
		if req.Wants(domain.FieldMovement) {
			v := fromMicro(movement)
			row.Movement = &v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating aggregate rows", err)
	}
	return result, nil
}
