// Package github implements the search and quota ports against the GitHub
// GraphQL and REST APIs.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SearchClient = (*Client)(nil)
	_ driven.QuotaClient  = (*Client)(nil)
)

// DefaultGraphQLURL is the public GitHub GraphQL endpoint.
const DefaultGraphQLURL = "https://api.github.com/graphql"

// Client talks to GitHub. Search goes over GraphQL; the quota preflight uses
// the REST API through go-github.
type Client struct {
	gh          *gh.Client
	graphqlHTTP *http.Client
	token       string
	graphqlURL  string
	retrier     *Retrier
}

// Option customises a Client.
type Option func(*Client)

// WithRetrier replaces the default retry executor.
func WithRetrier(r *Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// Config holds the production client settings.
type Config struct {
	Token      string
	GraphQLURL string
	RESTURL    string
	Timeout    time.Duration
}

// NewClient creates a GitHub client with two transport stacks.
//
// REST (quota preflight):
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (REST client with token auth)
//
// GraphQL (search): an oauth2 static-token transport with a request timeout.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	restClient := gh.NewClient(rateLimitClient).WithAuthToken(cfg.Token)

	if cfg.RESTURL != "" {
		u, err := parseBaseURL(cfg.RESTURL)
		if err != nil {
			return nil, err
		}
		restClient.BaseURL = u
	}

	graphqlURL := cfg.GraphQLURL
	if graphqlURL == "" {
		graphqlURL = DefaultGraphQLURL
	}

	c := &Client{
		gh:          restClient,
		graphqlHTTP: authorizedClient(&http.Client{Timeout: cfg.Timeout}, cfg.Token),
		token:       cfg.Token,
		graphqlURL:  graphqlURL,
		retrier:     NewRetrier(DefaultMaxAttempts),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string, opts ...Option) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	authorized := authorizedClient(httpClient, token)
	client := gh.NewClient(authorized)
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	c := &Client{
		gh:          client,
		graphqlHTTP: authorized,
		token:       token,
		graphqlURL:  graphqlU.String(),
		retrier:     NewRetrier(DefaultMaxAttempts),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchRateLimit returns the GraphQL budget reported by the REST rate_limit
// endpoint. The call does not count against the budget.
func (c *Client) FetchRateLimit(ctx context.Context) (*model.RateLimit, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}

	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching rate limits: %w", err)
	}

	rate := limits.GetGraphQL()
	if rate == nil {
		return nil, nil
	}

	slog.Debug("github graphql quota",
		"limit", rate.Limit,
		"remaining", rate.Remaining,
		"used", rate.Used,
		"reset_in", time.Until(rate.Reset.Time).Round(time.Second),
	)

	return &model.RateLimit{
		Limit:     rate.Limit,
		Remaining: rate.Remaining,
		Used:      rate.Used,
		ResetAt:   rate.Reset.UTC(),
	}, nil
}

// authorizedClient wraps base's transport so every request carries the
// token as a bearer credential.
func authorizedClient(base *http.Client, token string) *http.Client {
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   transport,
		},
		Timeout: base.Timeout,
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}
	return u, nil
}
