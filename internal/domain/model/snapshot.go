package model

import "time"

// StarSnapshot is one append-only star count observation for a repository.
// Repeated passes on the same day produce one row each.
type StarSnapshot struct {
	ID           int64
	RepositoryID int64
	SnapshotDate time.Time
	Stargazers   int
}

// SnapshotDay truncates t to the UTC calendar day used for SnapshotDate.
func SnapshotDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
