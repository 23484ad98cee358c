package pricing

import "temporada/internal/model"

// HolidayIndex is a read-only date → holiday map. The first record seen for a
// date wins; later duplicates are ignored. Build a new index whenever the
// holiday list changes.
type HolidayIndex struct {
	byDate map[string]model.Holiday
}

func NewHolidayIndex(holidays []model.Holiday) *HolidayIndex {
	idx := &HolidayIndex{byDate: make(map[string]model.Holiday, len(holidays))}
	for _, h := range holidays {
		key := h.Date.Key()
		if _, seen := idx.byDate[key]; seen {
			continue
		}
		idx.byDate[key] = h
	}
	return idx
}

// Lookup is safe on a nil index.
func (idx *HolidayIndex) Lookup(d model.Date) (model.Holiday, bool) {
	if idx == nil {
		return model.Holiday{}, false
	}
	h, ok := idx.byDate[d.Key()]
	return h, ok
}

func (idx *HolidayIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byDate)
}
