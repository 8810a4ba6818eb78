package domain

import "time"

// AuditMetadata is populated by the persistence layer. Version is the
// optimistic concurrency counter and only ever grows.
type AuditMetadata struct {
	ID        string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type ReferenceGenerator interface {
	Next() string
}
