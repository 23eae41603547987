package gitfetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// Typed fetch errors enabling structured handling without string parsing
// upstream. Auth, gone, and revision errors are permanent for the attempted
// revision; network, timeout, and rate-limit errors are transient.

type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth failed for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type GoneError struct {
	Op, URL string
	Err     error
}

func (e *GoneError) Error() string {
	return fmt.Sprintf("%s remote gone for %s: %v", e.Op, e.URL, e.Err)
}
func (e *GoneError) Unwrap() error { return e.Err }

type RevisionError struct {
	Op, URL, Revision string
	Err               error
}

func (e *RevisionError) Error() string {
	return fmt.Sprintf("%s revision %s not found at %s: %v", e.Op, e.Revision, e.URL, e.Err)
}
func (e *RevisionError) Unwrap() error { return e.Err }

type NetworkError struct {
	Op, URL string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error for %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkError) Unwrap() error { return e.Err }

type TimeoutError struct {
	Op, URL string
	Err     error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("%s timed out for %s: %v", e.Op, e.URL, e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op, URL string
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited for %s: %v", e.Op, e.URL, e.Err)
}
func (e *RateLimitError) Unwrap() error { return e.Err }

// classify translates go-git failures into typed variants. Sentinel errors
// from the transport layer are checked first; the string heuristics cover
// wrapped server messages that carry no sentinel.
func classify(op, url, revision string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return &GoneError{Op: op, URL: url, Err: err}
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return &AuthError{Op: op, URL: url, Err: err}
	case errors.Is(err, plumbing.ErrReferenceNotFound), errors.Is(err, plumbing.ErrObjectNotFound):
		return &RevisionError{Op: op, URL: url, Revision: revision, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Op: op, URL: url, Err: err}
	}

	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "not authorized") ||
		strings.Contains(l, "invalid username or password") || strings.Contains(l, "access denied"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "repository not found") || strings.Contains(l, "repository does not exist"):
		return &GoneError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "reference not found") || strings.Contains(l, "couldn't find remote ref") ||
		strings.Contains(l, "object not found"):
		return &RevisionError{Op: op, URL: url, Revision: revision, Err: err}
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout") || strings.Contains(l, "deadline exceeded"):
		return &TimeoutError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "connection refused") || strings.Contains(l, "connection reset") ||
		strings.Contains(l, "no route to host") || strings.Contains(l, "no such host") ||
		strings.Contains(l, "remote hung up"):
		return &NetworkError{Op: op, URL: url, Err: err}
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return &TimeoutError{Op: op, URL: url, Err: err}
		}
		return &NetworkError{Op: op, URL: url, Err: err}
	}

	return fmt.Errorf("git %s failed for %s: %w", op, url, err)
}

// isPermanent reports whether retrying the same operation cannot succeed.
func isPermanent(err error) bool {
	switch {
	case errors.As(err, new(*AuthError)),
		errors.As(err, new(*GoneError)),
		errors.As(err, new(*RevisionError)):
		return true
	}
	return false
}

// isTyped reports whether classify recognized the failure. Unrecognized
// failures on an existing working copy are treated as local corruption.
func isTyped(err error) bool {
	switch {
	case errors.As(err, new(*AuthError)),
		errors.As(err, new(*GoneError)),
		errors.As(err, new(*RevisionError)),
		errors.As(err, new(*NetworkError)),
		errors.As(err, new(*TimeoutError)),
		errors.As(err, new(*RateLimitError)):
		return true
	}
	return false
}

// retryReason returns the metrics label for a transient failure.
func retryReason(err error) string {
	switch {
	case errors.As(err, new(*RateLimitError)):
		return "rate_limit"
	case errors.As(err, new(*TimeoutError)):
		return "timeout"
	case errors.As(err, new(*NetworkError)):
		return "network"
	}
	return "other"
}

// asClassified converts a typed fetch error into the shared taxonomy so
// callers can route on category instead of concrete types.
func asClassified(err error, repo string) error {
	if err == nil || ferrors.IsClassified(err) {
		return err
	}

	var (
		authErr *AuthError
		gone    *GoneError
		rev     *RevisionError
		timeout *TimeoutError
		rate    *RateLimitError
		network *NetworkError
	)
	switch {
	case errors.As(err, &gone):
		return ferrors.WrapError(err, ferrors.CategoryRepositoryGone, "remote repository no longer exists").
			WithContext("repository", repo).
			Build()
	case errors.As(err, &rev):
		return ferrors.WrapError(err, ferrors.CategoryRevision, "revision not found on remote").
			WithContext("repository", repo).
			WithContext("revision", rev.Revision).
			Build()
	case errors.As(err, &authErr):
		return ferrors.WrapError(err, ferrors.CategoryGit, "git authentication failed").
			WithContext("repository", repo).
			UserAction().
			Build()
	case errors.As(err, &timeout):
		return ferrors.WrapError(err, ferrors.CategoryTimeout, "git operation timed out").
			WithContext("repository", repo).
			Retryable().
			Build()
	case errors.As(err, &rate):
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "remote rate limit hit").
			WithContext("repository", repo).
			RateLimit().
			Build()
	case errors.As(err, &network):
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "network error talking to remote").
			WithContext("repository", repo).
			Retryable().
			Build()
	}
	return ferrors.WrapError(err, ferrors.CategoryGit, "git operation failed").
		WithContext("repository", repo).
		Build()
}
