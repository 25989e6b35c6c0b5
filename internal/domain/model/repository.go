package model

import "time"

// Repository is a GitHub repository harvested by the crawler. FullName
// ("owner/name") is the stable merge key; the remaining nullable fields are
// only ever filled in, never cleared, by later crawls.
type Repository struct {
	ID              int64
	GitHubID        *int64
	FullName        string
	Name            string
	Owner           string
	URL             string
	Description     *string
	PrimaryLanguage *string
	CreatedAt       *time.Time
	UpdatedAt       *time.Time
	LastCrawledAt   time.Time
}

// FullNameOf joins an owner login and repository name into the merge key.
func FullNameOf(owner, name string) string {
	return owner + "/" + name
}
