package merge

import (
	"sort"
	"time"

	"github.com/lherron/vaultq/internal/clock"
	"github.com/lherron/vaultq/internal/domain"
)

func clockSerialized(t time.Time) time.Time {
	return clock.Serialized(t)
}

// mergeHistory folds sourceEntry's revision timeline into targetEntry,
// reconstructing a single linear history from the two divergent ones.
// Revisions are keyed by their modification time at serialized precision;
// two items sharing that key are regarded as the same revision (the
// target-side item wins). The older of the two top-level entries is
// materialized as a history item if the timeline would otherwise drop it.
// Returns true when targetEntry's history was rewritten.
//
// All mutations run with targetEntry's TimeInfo frozen: folding history must
// never bump the entry's modification time.
func (m *Merger) mergeHistory(sourceEntry, targetEntry *domain.Entry) bool {
	targetItems := targetEntry.History()
	sourceItems := sourceEntry.History()

	merged := make(map[int64]*domain.Entry)
	for _, item := range targetItems {
		key := clockSerialized(item.TimeInfo().LastModificationTime).Unix()
		if _, ok := merged[key]; ok {
			continue
		}
		merged[key] = item.Clone(domain.CloneNoFlags)
	}
	for _, item := range sourceItems {
		key := clockSerialized(item.TimeInfo().LastModificationTime).Unix()
		if _, ok := merged[key]; ok {
			continue
		}
		merged[key] = item.Clone(domain.CloneNoFlags)
	}

	targetTime := clockSerialized(targetEntry.TimeInfo().LastModificationTime)
	sourceTime := clockSerialized(sourceEntry.TimeInfo().LastModificationTime)
	if targetTime.Before(sourceTime) {
		if _, ok := merged[targetTime.Unix()]; !ok {
			merged[targetTime.Unix()] = targetEntry.Clone(domain.CloneNoFlags)
		}
	} else if targetTime.After(sourceTime) {
		if _, ok := merged[sourceTime.Unix()]; !ok {
			merged[sourceTime.Unix()] = sourceEntry.Clone(domain.CloneNoFlags)
		}
	}

	keys := make([]int64, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	updated := make([]*domain.Entry, 0, len(merged))
	for _, key := range keys {
		updated = append(updated, merged[key])
	}

	if !historyTailChanged(targetItems, updated, m.ctx.TargetDB.HistoryMaxItems()) {
		return false
	}

	ti := targetEntry.TimeInfo()
	restore := suspendTimeInfo(targetEntry)
	targetEntry.RemoveAllHistory()
	for _, item := range updated {
		targetEntry.AddHistoryItem(item)
	}
	targetEntry.TruncateHistory(m.ctx.TargetDB.HistoryMaxItems())
	restore()
	targetEntry.SetTimeInfo(ti)
	return true
}

// historyTailChanged compares the two timelines tail-aligned, newest item
// first, up to the truncation limit: items beyond the limit would be cut
// anyway, so differences there do not count as a change. A negative limit
// means unlimited, so every position is compared.
func historyTailChanged(current, updated []*domain.Entry, maxItems int) bool {
	limit := maxItems
	if limit < 0 {
		limit = len(current)
		if len(updated) > limit {
			limit = len(updated)
		}
	}
	for i := 1; i <= limit; i++ {
		oldItem := itemAt(current, len(current)-i)
		newItem := itemAt(updated, len(updated)-i)
		if oldItem == nil && newItem == nil {
			continue
		}
		if oldItem != nil && newItem != nil && oldItem.EqualsIgnoring(newItem, domain.CompareIgnoreMilliseconds) {
			continue
		}
		return true
	}
	return false
}

func itemAt(items []*domain.Entry, i int) *domain.Entry {
	if i < 0 || i >= len(items) {
		return nil
	}
	return items[i]
}
