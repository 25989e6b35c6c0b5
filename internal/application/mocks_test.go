package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockSearchClient serves pre-built pages in order and records every request.
type mockSearchClient struct {
	pages    []*model.SearchPage
	errs     []error
	requests []model.SearchRequest
}

func (m *mockSearchClient) SearchRepositories(_ context.Context, req model.SearchRequest) (*model.SearchPage, error) {
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.pages) {
		return nil, nil
	}
	return m.pages[i], nil
}

type mockQuotaClient struct {
	rl    *model.RateLimit
	err   error
	calls int
}

func (m *mockQuotaClient) FetchRateLimit(_ context.Context) (*model.RateLimit, error) {
	m.calls++
	return m.rl, m.err
}

type mockSchema struct {
	err   error
	calls int
}

func (m *mockSchema) EnsureSchema(_ context.Context) error {
	m.calls++
	return m.err
}

type observation struct {
	Repo       model.Repository
	Stargazers int
	Day        time.Time
}

type mockRepositoryStore struct {
	observations []observation
	failOn       string
	err          error
}

func (m *mockRepositoryStore) UpsertRepository(_ context.Context, _ model.Repository) (int64, error) {
	return 0, nil
}

func (m *mockRepositoryStore) AppendSnapshot(_ context.Context, _ model.StarSnapshot) error {
	return nil
}

func (m *mockRepositoryStore) RecordObservation(_ context.Context, repo model.Repository, stargazers int, day time.Time) (int64, error) {
	if m.failOn != "" && repo.FullName == m.failOn {
		return 0, m.err
	}
	m.observations = append(m.observations, observation{Repo: repo, Stargazers: stargazers, Day: day})
	return int64(len(m.observations)), nil
}

func (m *mockRepositoryStore) GetByFullName(_ context.Context, _ string) (*model.Repository, error) {
	return nil, driven.ErrRepoNotFound
}

type mockRunStore struct {
	started  []model.CrawlRun
	finished []model.CrawlRun
	startErr error
}

func (m *mockRunStore) StartRun(_ context.Context, run model.CrawlRun) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started = append(m.started, run)
	return nil
}

func (m *mockRunStore) FinishRun(_ context.Context, run model.CrawlRun) error {
	m.finished = append(m.finished, run)
	return nil
}

// fakeSleeper records waits instead of sleeping.
type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (f *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, d)
	return nil
}

// --- Page builders ---

func hit(owner, name string, stars int) model.SearchHit {
	return model.SearchHit{
		Repository: model.Repository{
			FullName: model.FullNameOf(owner, name),
			Owner:    owner,
			Name:     name,
			URL:      "https://github.com/" + owner + "/" + name,
		},
		Stargazers: stars,
	}
}

func page(hasNext bool, cursor string, hits ...model.SearchHit) *model.SearchPage {
	return &model.SearchPage{
		RepositoryCount: 1000,
		Hits:            hits,
		PageInfo:        model.PageInfo{HasNextPage: hasNext, EndCursor: cursor},
		RateLimit:       &model.RateLimit{Limit: 5000, Remaining: 4000},
	}
}
