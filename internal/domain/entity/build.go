package entity

import "time"

// BuildRecord is the immutable audit record of a completed board build.
type BuildRecord struct {
	ID            string
	BoardID       string
	BuiltBy       string
	QuantityBuilt int
	Notes         string
	RequestKey    string // optional caller dedup key, unique when present
	BuiltAt       time.Time
}

// BuildView adds display data for history and activity feeds.
type BuildView struct {
	BuildRecord
	BoardName    string
	BoardVersion string
	BuilderName  string
}
