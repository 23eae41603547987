// Package workspace manages the persistent clone root shared by sync jobs.
//
// Working copies live at <root>/<owner>/<name> and persist across syncs,
// enabling incremental fetches instead of fresh clones. A repository's
// directory is removed only when its remote is gone or a corrupt copy
// forces a fresh clone.
package workspace
