package domain

import (
	"sort"
	"strconv"
	"time"
)

// NoPartner is the partner key of lines without a counterparty.
const NoPartner int64 = 0

// NormalizePartner maps an absent counterparty to NoPartner.
func NormalizePartner(partnerID *int64) int64 {
	if partnerID == nil {
		return NoPartner
	}
	return *partnerID
}

// PartitionKey identifies the set of lines whose running balances are computed together.
type PartitionKey struct {
	AccountID  int64 `json:"accountID"`
	PartnerKey int64 `json:"partnerKey"`
}

// String renders the key as "account:partner"; it is also the advisory lock key.
func (k PartitionKey) String() string {
	return strconv.FormatInt(k.AccountID, 10) + ":" + strconv.FormatInt(k.PartnerKey, 10)
}

// Less orders partition keys by account then partner.
func (k PartitionKey) Less(o PartitionKey) bool {
	if k.AccountID != o.AccountID {
		return k.AccountID < o.AccountID
	}
	return k.PartnerKey < o.PartnerKey
}

// Precedes reports whether line a comes before line b in partition order: date ascending,
// then line id ascending.
func Precedes(a, b LedgerLine) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.LineID < b.LineID
}

// SortForRunningBalance orders lines by partition, then partition order.
func SortForRunningBalance(lines []LedgerLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		pi, pj := lines[i].Partition(), lines[j].Partition()
		if pi != pj {
			return pi.Less(pj)
		}
		return Precedes(lines[i], lines[j])
	})
}

// RecomputePoint is a (partition, date) position from which running balances may have changed.
type RecomputePoint struct {
	Partition PartitionKey
	Date      time.Time
}

// PointOf returns the recompute point of a line.
func PointOf(l LedgerLine) RecomputePoint {
	return RecomputePoint{Partition: l.Partition(), Date: DateOnly(l.Date)}
}

// RecomputeTarget is one partition together with the earliest affected date in it. Every posted
// line of the partition dated on or after MinDate must be recomputed.
type RecomputeTarget struct {
	Partition PartitionKey
	MinDate   time.Time
}

// CollapseTargets groups points by partition keeping the minimum date, sorted by partition key so
// that locks are always acquired in the same order.
func CollapseTargets(points []RecomputePoint) []RecomputeTarget {
	minDates := make(map[PartitionKey]time.Time, len(points))
	for _, p := range points {
		d := DateOnly(p.Date)
		if cur, ok := minDates[p.Partition]; !ok || d.Before(cur) {
			minDates[p.Partition] = d
		}
	}
	targets := make([]RecomputeTarget, 0, len(minDates))
	for k, d := range minDates {
		targets = append(targets, RecomputeTarget{Partition: k, MinDate: d})
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Partition.Less(targets[j].Partition)
	})
	return targets
}

// Partitions returns the sorted partition keys of targets.
func Partitions(targets []RecomputeTarget) []PartitionKey {
	keys := make([]PartitionKey, len(targets))
	for i, t := range targets {
		keys[i] = t.Partition
	}
	return keys
}
