package domain

import (
	"github.com/shopspring/decimal"
)

// BalanceRecord is the computed running balance of one posted ledger line.
type BalanceRecord struct {
	LineID         int64           `json:"lineID"`
	InitialBalance decimal.Decimal `json:"initialBalance"` // partition sum strictly before the line
	EndBalance     decimal.Decimal `json:"endBalance"`     // partition sum including the line
	CurrencyID     int64           `json:"currencyID"`
}

// BalanceView is the read model handed to UI/reporting collaborators. Absent records render as
// zeros with Computed=false so "not yet computed" stays distinguishable from "computed 0".
type BalanceView struct {
	LineID         int64           `json:"lineID"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	EndBalance     decimal.Decimal `json:"endBalance"`
	Computed       bool            `json:"computed"`
}

// ViewOf converts an optional record into a view.
func ViewOf(lineID int64, rec *BalanceRecord) BalanceView {
	if rec == nil {
		return BalanceView{LineID: lineID, InitialBalance: decimal.Zero, EndBalance: decimal.Zero}
	}
	return BalanceView{
		LineID:         lineID,
		InitialBalance: rec.InitialBalance,
		EndBalance:     rec.EndBalance,
		Computed:       true,
	}
}

// ComputeRunningBalances computes balance records for every posted line in lines. Lines from any
// number of partitions may be mixed; draft lines are ignored. This is the in-memory counterpart of
// the storage window query and is used to verify stored balances.
func ComputeRunningBalances(lines []LedgerLine) []BalanceRecord {
	posted := make([]LedgerLine, 0, len(lines))
	for _, l := range lines {
		if l.IsPosted() {
			posted = append(posted, l)
		}
	}
	SortForRunningBalance(posted)

	records := make([]BalanceRecord, 0, len(posted))
	var (
		current PartitionKey
		running decimal.Decimal
	)
	for i, l := range posted {
		if i == 0 || l.Partition() != current {
			current = l.Partition()
			running = decimal.Zero
		}
		initial := running
		running = running.Add(l.Net())
		records = append(records, BalanceRecord{
			LineID:         l.LineID,
			InitialBalance: initial,
			EndBalance:     running,
			CurrencyID:     l.CurrencyID,
		})
	}
	return records
}

// DriftReason classifies a mismatch between stored and expected balances.
type DriftReason string

const (
	DriftMissing    DriftReason = "missing"    // posted line without a record
	DriftStale      DriftReason = "stale"      // record differs from the recomputed value
	DriftOrphan     DriftReason = "orphan"     // record for a line that is not posted
	DriftUnbalanced DriftReason = "unbalanced" // end - initial != net
	DriftUnsynced   DriftReason = "unsynced"   // line columns differ from the stored record
)

// BalanceDrift describes one inconsistent line.
type BalanceDrift struct {
	LineID   int64          `json:"lineID"`
	Reason   DriftReason    `json:"reason"`
	Expected *BalanceRecord `json:"expected,omitempty"`
	Actual   *BalanceRecord `json:"actual,omitempty"`
}

// VerifyReport is the outcome of checking one partition.
type VerifyReport struct {
	Partition    PartitionKey   `json:"partition"`
	LinesChecked int            `json:"linesChecked"`
	Drifts       []BalanceDrift `json:"drifts"`
	Repaired     bool           `json:"repaired"`
}

// Consistent reports whether no drift was found.
func (r VerifyReport) Consistent() bool {
	return len(r.Drifts) == 0
}

// VerifyBalances compares stored records against a fresh computation over lines, which must be
// every line (any state) of the partitions being checked.
func VerifyBalances(lines []LedgerLine, stored map[int64]BalanceRecord) []BalanceDrift {
	drifts := []BalanceDrift{}
	expected := ComputeRunningBalances(lines)
	nets := make(map[int64]decimal.Decimal, len(lines))
	for _, l := range lines {
		nets[l.LineID] = l.Net()
	}

	byID := make(map[int64]BalanceRecord, len(expected))
	flagged := make(map[int64]struct{})
	for i := range expected {
		exp := expected[i]
		byID[exp.LineID] = exp
		act, ok := stored[exp.LineID]
		switch {
		case !ok:
			drifts = append(drifts, BalanceDrift{LineID: exp.LineID, Reason: DriftMissing, Expected: &exp})
		case !act.EndBalance.Sub(act.InitialBalance).Equal(nets[exp.LineID]):
			drifts = append(drifts, BalanceDrift{LineID: exp.LineID, Reason: DriftUnbalanced, Expected: &exp, Actual: &act})
		case !sameRecord(act, exp):
			drifts = append(drifts, BalanceDrift{LineID: exp.LineID, Reason: DriftStale, Expected: &exp, Actual: &act})
		default:
			continue
		}
		flagged[exp.LineID] = struct{}{}
	}
	for _, l := range lines {
		if _, ok := flagged[l.LineID]; ok {
			continue
		}
		exp, posted := byID[l.LineID]
		act, hasRecord := stored[l.LineID]
		if !posted && hasRecord {
			drifts = append(drifts, BalanceDrift{LineID: l.LineID, Reason: DriftOrphan, Actual: &act})
			continue
		}
		if posted && !columnsMatch(l, &exp) {
			drifts = append(drifts, BalanceDrift{LineID: l.LineID, Reason: DriftUnsynced, Expected: &exp, Actual: &act})
		} else if !posted && !columnsMatch(l, nil) {
			drifts = append(drifts, BalanceDrift{LineID: l.LineID, Reason: DriftUnsynced})
		}
	}
	return drifts
}

func sameRecord(a, b BalanceRecord) bool {
	return a.InitialBalance.Equal(b.InitialBalance) && a.EndBalance.Equal(b.EndBalance) && a.CurrencyID == b.CurrencyID
}

// columnsMatch reports whether the denormalized columns of l mirror rec (both nil when rec is nil).
func columnsMatch(l LedgerLine, rec *BalanceRecord) bool {
	if rec == nil {
		return l.InitialBalance == nil && l.EndBalance == nil
	}
	return l.InitialBalance != nil && l.EndBalance != nil &&
		l.InitialBalance.Equal(rec.InitialBalance) && l.EndBalance.Equal(rec.EndBalance)
}
