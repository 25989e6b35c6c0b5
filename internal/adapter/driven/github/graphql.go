package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
)

// maxErrorBody bounds how much of a failed response body is kept in a
// StatusError.
const maxErrorBody = 512

const searchRepositoriesQuery = `query($q: String!, $first: Int!, $after: String) {
	search(query: $q, type: REPOSITORY, first: $first, after: $after) {
		repositoryCount
		edges {
			node {
				... on Repository {
					databaseId
					name
					owner { login }
					url
					description
					stargazerCount
					createdAt
					updatedAt
					primaryLanguage { name }
				}
			}
		}
		pageInfo {
			hasNextPage
			endCursor
		}
	}
	rateLimit {
		limit
		cost
		remaining
		resetAt
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// searchResponse is the shape of a search query response. Data and Search
// are pointers so a null payload can be told apart from an empty one.
type searchResponse struct {
	Data *struct {
		Search *struct {
			RepositoryCount int `json:"repositoryCount"`
			Edges           []struct {
				Node *repositoryNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool    `json:"hasNextPage"`
				EndCursor   *string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"search"`
		RateLimit *rateLimitNode `json:"rateLimit"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"errors"`
}

type repositoryNode struct {
	DatabaseID *int64 `json:"databaseId"`
	Name       string `json:"name"`
	Owner      struct {
		Login string `json:"login"`
	} `json:"owner"`
	URL             string     `json:"url"`
	Description     *string    `json:"description"`
	StargazerCount  int        `json:"stargazerCount"`
	CreatedAt       *time.Time `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
}

type rateLimitNode struct {
	Limit     int        `json:"limit"`
	Cost      int        `json:"cost"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"resetAt"`
}

// SearchRepositories runs one search page through the retry executor.
// It returns (nil, nil) when the response carried no decodable search
// payload, which callers treat as the end of the stream.
func (c *Client) SearchRepositories(ctx context.Context, req model.SearchRequest) (*model.SearchPage, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	variables := map[string]any{
		"q":     req.Query,
		"first": req.First,
		"after": nil,
	}
	if req.After != "" {
		variables["after"] = req.After
	}

	bodyBytes, err := json.Marshal(graphqlRequest{Query: searchRepositoriesQuery, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshaling search query: %w", err)
	}

	var (
		decoded *searchResponse
		header  http.Header
	)
	err = c.retrier.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		decoded, header, attemptErr = c.postGraphQL(ctx, bodyBytes)
		return attemptErr
	})
	if err != nil {
		return nil, fmt.Errorf("searching repositories: %w", err)
	}

	if decoded == nil || decoded.Data == nil || decoded.Data.Search == nil {
		slog.Warn("graphql: search response carried no data", "query", req.Query, "after", req.After)
		return nil, nil
	}

	return mapSearchPage(decoded, header), nil
}

// postGraphQL performs a single attempt. Transport failures, non-2xx
// statuses and GraphQL error payloads are returned as errors for the
// retrier. An undecodable 2xx body yields a nil response without error.
func (c *Client) postGraphQL(ctx context.Context, body []byte) (*searchResponse, http.Header, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, backoff.Permanent(fmt.Errorf("creating graphql request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.graphqlHTTP.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("graphql request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading graphql response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		slog.Warn("graphql: failed to decode response", "error", err, "status", resp.StatusCode)
		return nil, resp.Header, nil
	}

	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		return nil, nil, &GraphQLError{Messages: messages}
	}

	return &decoded, resp.Header, nil
}

// mapSearchPage converts a decoded response into the domain page. Nodes that
// are not repositories decode as empty objects and are skipped.
func mapSearchPage(decoded *searchResponse, header http.Header) *model.SearchPage {
	search := decoded.Data.Search

	page := &model.SearchPage{
		RepositoryCount: search.RepositoryCount,
		Hits:            make([]model.SearchHit, 0, len(search.Edges)),
		PageInfo: model.PageInfo{
			HasNextPage: search.PageInfo.HasNextPage,
		},
		RateLimit: mergeRateLimit(rateLimitFromHeaders(header), rateLimitFromBody(decoded.Data.RateLimit)),
	}
	if search.PageInfo.EndCursor != nil {
		page.PageInfo.EndCursor = *search.PageInfo.EndCursor
	}

	for _, edge := range search.Edges {
		node := edge.Node
		if node == nil || node.Name == "" || node.Owner.Login == "" {
			continue
		}
		page.Hits = append(page.Hits, model.SearchHit{
			Repository: mapRepository(node),
			Stargazers: node.StargazerCount,
		})
	}

	return page
}

func mapRepository(node *repositoryNode) model.Repository {
	repo := model.Repository{
		GitHubID:    node.DatabaseID,
		FullName:    model.FullNameOf(node.Owner.Login, node.Name),
		Name:        node.Name,
		Owner:       node.Owner.Login,
		URL:         node.URL,
		Description: node.Description,
		CreatedAt:   utcPtr(node.CreatedAt),
		UpdatedAt:   utcPtr(node.UpdatedAt),
	}
	if node.PrimaryLanguage != nil && node.PrimaryLanguage.Name != "" {
		lang := node.PrimaryLanguage.Name
		repo.PrimaryLanguage = &lang
	}
	return repo
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
