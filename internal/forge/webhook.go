// Package forge decodes and validates inbound forge notifications. Only the
// webhook surface of the forge API is covered here; repository cloning goes
// through gitfetch and enrollment metadata lives in the registry.
package forge

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// PushEvent is the decoded form of a forge push notification.
type PushEvent struct {
	Owner         string
	Name          string
	Ref           string
	Branch        string
	HeadRevision  string
	DefaultBranch string
	Deleted       bool
	ChangedFiles  []string
	Timestamp     time.Time
}

// FullName returns the owner/name identity of the pushed repository.
func (e *PushEvent) FullName() string { return e.Owner + "/" + e.Name }

// ValidateSignature checks a GitHub-style HMAC signature header against the
// raw payload. SHA-256 (`sha256=<hex>`) is preferred; the legacy SHA-1 form
// is accepted for older hook configurations. Comparison is constant time.
func ValidateSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	if expected, ok := strings.CutPrefix(signature, "sha256="); ok {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(expected), []byte(calc))
	}

	if expected, ok := strings.CutPrefix(signature, "sha1="); ok {
		mac := hmac.New(sha1.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(expected), []byte(calc))
	}

	return false
}

type pushPayload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Deleted    bool   `json:"deleted"`
	Repository struct {
		Name          string `json:"name"`
		FullName      string `json:"full_name"`
		DefaultBranch string `json:"default_branch"`
		Owner         struct {
			Login string `json:"login"`
			Name  string `json:"name"`
		} `json:"owner"`
	} `json:"repository"`
	HeadCommit *pushCommit  `json:"head_commit"`
	Commits    []pushCommit `json:"commits"`
}

type pushCommit struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Added     []string  `json:"added"`
	Modified  []string  `json:"modified"`
	Removed   []string  `json:"removed"`
}

// ParsePushEvent decodes a push payload into the fields the pipeline cares
// about: repository identity, head revision, branch, and the changed file
// paths accumulated across the delivery's commits.
func ParsePushEvent(payload []byte) (*PushEvent, error) {
	var p pushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, ferrors.ValidationError("invalid push payload").
			WithContext("error", err.Error()).
			Build()
	}

	owner, name := splitFullName(p.Repository.FullName)
	if owner == "" {
		// Some forges omit full_name; fall back to the owner object.
		owner = p.Repository.Owner.Login
		if owner == "" {
			owner = p.Repository.Owner.Name
		}
		name = p.Repository.Name
	}
	if owner == "" || name == "" {
		return nil, ferrors.ValidationError("push payload missing repository identity").Build()
	}

	event := &PushEvent{
		Owner:         owner,
		Name:          name,
		Ref:           p.Ref,
		Branch:        strings.TrimPrefix(p.Ref, "refs/heads/"),
		HeadRevision:  p.After,
		DefaultBranch: p.Repository.DefaultBranch,
		Deleted:       p.Deleted,
	}

	if p.HeadCommit != nil {
		if event.HeadRevision == "" {
			event.HeadRevision = p.HeadCommit.ID
		}
		event.Timestamp = p.HeadCommit.Timestamp
	}

	seen := map[string]struct{}{}
	record := func(paths []string) {
		for _, f := range paths {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			event.ChangedFiles = append(event.ChangedFiles, f)
		}
	}
	for _, c := range p.Commits {
		record(c.Added)
		record(c.Modified)
		record(c.Removed)
	}
	if p.HeadCommit != nil {
		record(p.HeadCommit.Added)
		record(p.HeadCommit.Modified)
		record(p.HeadCommit.Removed)
	}

	return event, nil
}

// ContainsDocsChanges reports whether a push touches documentation: anything
// under the docs dir, any Markdown file, or a docs config file. Deliveries
// with no commit file lists are treated as relevant, since there is no way
// to prove they are not.
func ContainsDocsChanges(event *PushEvent, docsDir string) bool {
	if len(event.ChangedFiles) == 0 {
		return true
	}
	prefix := strings.Trim(docsDir, "/") + "/"
	for _, f := range event.ChangedFiles {
		switch {
		case docsDir != "" && strings.HasPrefix(f, prefix):
			return true
		case strings.HasSuffix(strings.ToLower(f), ".md"):
			return true
		case isDocsConfigFile(f):
			return true
		}
	}
	return false
}

// isDocsConfigFile matches files that change site structure without being
// documents themselves.
func isDocsConfigFile(f string) bool {
	switch strings.ToLower(f) {
	case "mkdocs.yml", "mkdocs.yaml", ".docignore", "docs.yml", "docs.yaml":
		return true
	}
	return false
}

func splitFullName(fullName string) (owner, name string) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1]
	}
	return "", ""
}
