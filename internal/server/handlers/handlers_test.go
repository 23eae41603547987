package handlers

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsync/internal/coordinator"
	"git.home.luguber.info/inful/docsync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/registry"
	"git.home.luguber.info/inful/docsync/internal/search"
)

// memStore is an in-memory registry for handler tests.
type memStore struct {
	mu          sync.Mutex
	enrollments map[string]*registry.Enrollment
}

func newMemStore(enrollments ...*registry.Enrollment) *memStore {
	s := &memStore{enrollments: make(map[string]*registry.Enrollment)}
	for _, e := range enrollments {
		s.enrollments[e.FullName()] = e
	}
	return s
}

func (s *memStore) Enroll(ctx context.Context, owner, name, defaultBranch string) (*registry.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := owner + "/" + name
	if e, ok := s.enrollments[key]; ok && e.Status == registry.StatusActive {
		return nil, ferrors.AlreadyEnrolledError("repository is already enrolled").Build()
	}
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	e := &registry.Enrollment{
		Owner:         owner,
		Name:          name,
		Slug:          registry.DeriveSlug(name),
		DefaultBranch: defaultBranch,
		Status:        registry.StatusActive,
		EnrolledAt:    time.Now().UTC(),
	}
	s.enrollments[key] = e
	cp := *e
	return &cp, nil
}

func (s *memStore) Unenroll(ctx context.Context, owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.enrollments[owner+"/"+name]; ok {
		e.Status = registry.StatusSuspended
	}
	return nil
}

func (s *memStore) Get(ctx context.Context, owner, name string) (*registry.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[owner+"/"+name]
	if !ok {
		return nil, ferrors.NotFoundError("repository is not enrolled").Build()
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) GetBySlug(ctx context.Context, slug string) (*registry.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.enrollments {
		if e.Slug == slug {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ferrors.NotFoundError("no enrollment with that slug").Build()
}

func (s *memStore) List(ctx context.Context) ([]*registry.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*registry.Enrollment
	for _, e := range s.enrollments {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) ListActive(ctx context.Context) ([]*registry.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*registry.Enrollment
	for _, e := range s.enrollments {
		if e.Status == registry.StatusActive {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) RecordSyncOutcome(ctx context.Context, owner, name string, rec registry.OutcomeRecord) error {
	return nil
}

func (s *memStore) Suspend(ctx context.Context, owner, name, reason string) error {
	return s.Unenroll(ctx, owner, name)
}

func (s *memStore) Close() error { return nil }

// fakeSyncer records enqueued jobs and scripted dedup hits.
type fakeSyncer struct {
	mu       sync.Mutex
	enqueued []*coordinator.Job
	seen     map[string]bool
	failWith error
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{seen: make(map[string]bool)}
}

func (f *fakeSyncer) Enqueue(job *coordinator.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeSyncer) SeenRecently(owner, name, revision string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[coordinator.DedupKey(owner, name, revision)]
}

func (f *fakeSyncer) Status() coordinator.Snapshot {
	return coordinator.Snapshot{}
}

type fakeIndex struct {
	mu     sync.Mutex
	purged []string
	resp   *search.Response
}

func (f *fakeIndex) Query(ctx context.Context, query string, repositories []string, limit, offset int) (*search.Response, error) {
	if f.resp != nil {
		return f.resp, nil
	}
	return &search.Response{Query: query}, nil
}

func (f *fakeIndex) Purge(ctx context.Context, repository string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, repository)
	return nil
}

type fakeHistory struct {
	entries []*eventstore.SyncSummary
}

func (f *fakeHistory) HistoryForRepository(repository string, limit int) []*eventstore.SyncSummary {
	return f.entries
}

func activeEnrollment(owner, name, branch string) *registry.Enrollment {
	return &registry.Enrollment{
		Owner:         owner,
		Name:          name,
		Slug:          registry.DeriveSlug(name),
		DefaultBranch: branch,
		Status:        registry.StatusActive,
	}
}
