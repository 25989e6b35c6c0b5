package model

// SearchRequest describes one page request against the repository search.
type SearchRequest struct {
	Query string
	First int
	After string // Empty starts from the first page.
}

// SearchHit is a single repository returned by the search together with its
// current star count.
type SearchHit struct {
	Repository Repository
	Stargazers int
}

// PageInfo carries the continuation state of a search result stream.
type PageInfo struct {
	HasNextPage bool
	EndCursor   string
}

// SearchPage is one decoded page of search results.
type SearchPage struct {
	RepositoryCount int
	Hits            []SearchHit
	PageInfo        PageInfo
	// RateLimit is nil when the response carried no budget information.
	RateLimit *RateLimit
}
