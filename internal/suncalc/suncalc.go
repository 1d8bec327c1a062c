// Package suncalc decides whether a capture time falls inside astronomical
// night at an observing site.
package suncalc

import (
	"sort"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// Twilight holds the astronomical dawn and dusk of one UTC date. A zero
// time means the sun does not reach -18 degrees on that side of the day.
type Twilight struct {
	Dawn time.Time
	Dusk time.Time
}

// cacheEntry holds the cached twilight times for a given date
type cacheEntry struct {
	times Twilight
	date  time.Time
}

// SunCalc caches twilight times per date for one site
type SunCalc struct {
	cache    map[string]cacheEntry
	lock     sync.RWMutex
	observer astral.Observer
}

// NewSunCalc creates a new SunCalc instance
func NewSunCalc(latitude, longitude float64) *SunCalc {
	return &SunCalc{
		cache:    make(map[string]cacheEntry),
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
	}
}

// Twilight returns the astronomical twilight times of date, using the cache
// if available
func (sc *SunCalc) Twilight(date time.Time) Twilight {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dateKey := date.Format(time.DateOnly)

	sc.lock.RLock()
	entry, exists := sc.cache[dateKey]
	sc.lock.RUnlock()
	if exists && entry.date.Equal(date) {
		return entry.times
	}

	var times Twilight
	// astral fails when the sun never reaches the depression
	if dawn, err := astral.Dawn(sc.observer, date, astral.DepressionAstronomical); err == nil {
		times.Dawn = dawn.UTC()
	}
	if dusk, err := astral.Dusk(sc.observer, date, astral.DepressionAstronomical); err == nil {
		times.Dusk = dusk.UTC()
	}

	sc.lock.Lock()
	sc.cache[dateKey] = cacheEntry{times: times, date: date}
	sc.lock.Unlock()
	return times
}

type event struct {
	at   time.Time
	dusk bool
}

// IsAstronomicalNight reports whether t lies between an astronomical dusk
// and the following dawn. ok is false when no twilight event exists within
// a day of t, which happens near the poles around midsummer.
func (sc *SunCalc) IsAstronomicalNight(t time.Time) (night, ok bool) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	var events []event
	for _, offset := range []int{-1, 0, 1} {
		tw := sc.Twilight(day.AddDate(0, 0, offset))
		if !tw.Dawn.IsZero() {
			events = append(events, event{at: tw.Dawn})
		}
		if !tw.Dusk.IsZero() {
			events = append(events, event{at: tw.Dusk, dusk: true})
		}
	}
	if len(events) == 0 {
		return false, false
	}
	sort.Slice(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	// The latest event at or before t decides; if every event is later,
	// the first one does, inverted.
	idx := sort.Search(len(events), func(i int) bool { return events[i].at.After(t) })
	if idx == 0 {
		return !events[0].dusk, true
	}
	return events[idx-1].dusk, true
}

// LocalToUTC converts a camera clock reading to UTC given the site's offset
// in hours east of Greenwich. The camera time carries no zone of its own.
func LocalToUTC(local time.Time, utcOffsetHours float64) time.Time {
	naive := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
	return naive.Add(-time.Duration(utcOffsetHours * float64(time.Hour)))
}
