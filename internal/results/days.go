package results

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DayLayout is the key format used for days in URLs and JSON.
const DayLayout = "2006-01-02"

// DateIndex partitions photos by the start of their calendar day.
type DateIndex map[time.Time][]PetPhoto

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// GroupByDay partitions photos by day in loc. Photos keep their relative
// order within a day. The result is empty, not nil, for no photos.
func GroupByDay(photos []PetPhoto, loc *time.Location) DateIndex {
	index := make(DateIndex)
	for _, p := range photos {
		day := StartOfDay(p.Date, loc)
		index[day] = append(index[day], p)
	}
	return index
}

// PhotosFor returns the photos taken on the same day as t, or nil.
func (idx DateIndex) PhotosFor(t time.Time, loc *time.Location) []PetPhoto {
	return idx[StartOfDay(t, loc)]
}

// Len returns the total number of photos across all days.
func (idx DateIndex) Len() int {
	n := 0
	for _, photos := range idx {
		n += len(photos)
	}
	return n
}

// Clone returns a deep copy of the index.
func (idx DateIndex) Clone() DateIndex {
	out := make(DateIndex, len(idx))
	for day, photos := range idx {
		cp := make([]PetPhoto, len(photos))
		copy(cp, photos)
		out[day] = cp
	}
	return out
}

// DayGroup is one day of photos.
type DayGroup struct {
	Date   time.Time  `json:"date"`
	Day    string     `json:"day"`
	Label  string     `json:"label"`
	Photos []PetPhoto `json:"photos"`
}

// Days lists the index newest day first.
func (idx DateIndex) Days() []DayGroup {
	days := make([]time.Time, 0, len(idx))
	for day := range idx {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].After(days[j])
	})

	groups := make([]DayGroup, 0, len(days))
	for _, day := range days {
		groups = append(groups, DayGroup{
			Date:   day,
			Day:    day.Format(DayLayout),
			Label:  DisplayDate(day),
			Photos: idx[day],
		})
	}
	return groups
}

// Flatten returns every photo, newest day first, preserving order within a
// day.
func (idx DateIndex) Flatten() []PetPhoto {
	out := make([]PetPhoto, 0, idx.Len())
	for _, g := range idx.Days() {
		out = append(out, g.Photos...)
	}
	return out
}

// MarshalJSON encodes the index as an object keyed by DayLayout dates.
func (idx DateIndex) MarshalJSON() ([]byte, error) {
	m := make(map[string][]PetPhoto, len(idx))
	for day, photos := range idx {
		m[day.Format(DayLayout)] = photos
	}
	return json.Marshal(m)
}

// DisplayDate renders a day the way it is shown to users, e.g.
// "Monday, January 2, 2006".
func DisplayDate(day time.Time) string {
	return day.Format("Monday, January 2, 2006")
}

// ParseDay parses a DayLayout date in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return t, nil
}
