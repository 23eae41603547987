package gitfetch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

func TestClassifySentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want any
	}{
		{"repository gone", transport.ErrRepositoryNotFound, new(*GoneError)},
		{"auth required", transport.ErrAuthenticationRequired, new(*AuthError)},
		{"authorization failed", transport.ErrAuthorizationFailed, new(*AuthError)},
		{"reference missing", plumbing.ErrReferenceNotFound, new(*RevisionError)},
		{"object missing", plumbing.ErrObjectNotFound, new(*RevisionError)},
		{"deadline", context.DeadlineExceeded, new(*TimeoutError)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify("fetch", "https://example.com/a/b.git", "abc", tc.err)
			if !errors.As(got, tc.want) {
				t.Errorf("classify(%v) = %T, want %T", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassifyStringHeuristics(t *testing.T) {
	cases := []struct {
		msg  string
		want any
	}{
		{"authentication failed for repo", new(*AuthError)},
		{"repository not found", new(*GoneError)},
		{"couldn't find remote ref refs/heads/gone", new(*RevisionError)},
		{"rate limit exceeded, try again later", new(*RateLimitError)},
		{"read tcp: i/o timeout", new(*TimeoutError)},
		{"dial tcp: connection refused", new(*NetworkError)},
	}

	for _, tc := range cases {
		got := classify("clone", "u", "r", errors.New(tc.msg))
		if !errors.As(got, tc.want) {
			t.Errorf("classify(%q) = %T, want %T", tc.msg, got, tc.want)
		}
	}
}

func TestClassifyUnknownStaysWrapped(t *testing.T) {
	base := errors.New("worktree index corrupt")
	got := classify("checkout", "u", "", base)
	if isTyped(got) {
		t.Fatalf("unknown error should stay untyped, got %T", got)
	}
	if !errors.Is(got, base) {
		t.Error("wrapped error lost its cause")
	}
}

func TestIsPermanent(t *testing.T) {
	permanent := []error{
		&AuthError{Op: "clone"},
		&GoneError{Op: "fetch"},
		&RevisionError{Op: "resolve", Revision: "abc"},
	}
	for _, err := range permanent {
		if !isPermanent(err) {
			t.Errorf("%T should be permanent", err)
		}
	}

	transient := []error{
		&NetworkError{Op: "fetch"},
		&TimeoutError{Op: "clone"},
		&RateLimitError{Op: "fetch"},
		fmt.Errorf("wrapped: %w", errors.New("whatever")),
	}
	for _, err := range transient {
		if isPermanent(err) {
			t.Errorf("%T should not be permanent", err)
		}
	}
}

func TestAsClassifiedCategories(t *testing.T) {
	cases := []struct {
		err  error
		want ferrors.ErrorCategory
	}{
		{&GoneError{Op: "clone"}, ferrors.CategoryRepositoryGone},
		{&RevisionError{Op: "resolve", Revision: "abc"}, ferrors.CategoryRevision},
		{&AuthError{Op: "clone"}, ferrors.CategoryGit},
		{&TimeoutError{Op: "fetch"}, ferrors.CategoryTimeout},
		{&RateLimitError{Op: "fetch"}, ferrors.CategoryNetwork},
		{&NetworkError{Op: "fetch"}, ferrors.CategoryNetwork},
		{errors.New("anything else"), ferrors.CategoryGit},
	}

	for _, tc := range cases {
		got := asClassified(tc.err, "acme/widget")
		if !ferrors.HasCategory(got, tc.want) {
			t.Errorf("asClassified(%T) category = %v, want %v", tc.err, ferrors.GetCategory(got), tc.want)
		}
	}
}

func TestAsClassifiedRetryHints(t *testing.T) {
	timeout := asClassified(&TimeoutError{Op: "fetch"}, "acme/widget")
	classified, ok := ferrors.AsClassified(timeout)
	if !ok {
		t.Fatal("expected classified error")
	}
	if !classified.CanRetry() {
		t.Error("timeout should be retryable")
	}

	gone := asClassified(&GoneError{Op: "clone"}, "acme/widget")
	classified, ok = ferrors.AsClassified(gone)
	if !ok {
		t.Fatal("expected classified error")
	}
	if classified.CanRetry() {
		t.Error("gone repository should not be retryable")
	}
}
