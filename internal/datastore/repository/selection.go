package repository

import (
	"gorm.io/gorm"

	"github.com/skyglow/skyglow-go/internal/daterange"
)

// Selection returns a scope that restricts a query over the images table
// (directly or joined) to the images sel picks for observerID. observerID 0
// spans all observers.
//
// LatestNight and LatestMonth are correlated on the row's observer, so with
// observerID 0 every observer contributes its own latest night or month.
func Selection(db *gorm.DB, observerID uint, sel daterange.Selector) func(*gorm.DB) *gorm.DB {
	sameObserver := func(column string) *gorm.DB {
		return db.Session(&gorm.Session{NewDB: true}).
			Table(tableImages+" AS latest").
			Select(column).
			Where("latest.observer_id = " + tableImages + ".observer_id")
	}

	return func(q *gorm.DB) *gorm.DB {
		if observerID != 0 {
			q = q.Where(tableImages+".observer_id = ?", observerID)
		}

		switch sel.Kind {
		case daterange.LatestNight:
			q = q.Where(tableImages+".night_id = (?)", sameObserver("MAX(latest.night_id)"))
		case daterange.LatestMonth:
			// date_id - date_id % 100 is YYYYMM00 on both SQLite and MySQL
			q = q.Where(tableImages+".date_id - "+tableImages+".date_id % 100 = (?)",
				sameObserver("MAX(latest.date_id) - MAX(latest.date_id) % 100"))
		case daterange.DateRange:
			q = q.Where(tableImages+".date_id BETWEEN ? AND ?", sel.Start, sel.End)
		case daterange.Unpublished:
			unpublished := db.Session(&gorm.Session{NewDB: true}).
				Table(tableSkyBrightness).
				Select("1").
				Where(tableSkyBrightness+".image_id = "+tableImages+".id AND "+tableSkyBrightness+".published = ?", false)
			q = q.Where("EXISTS (?)", unpublished)
		case daterange.All:
		}
		return q
	}
}
