// Package gitfetch materializes enrolled repositories into the sync
// workspace. First contact clones the repository; later syncs reuse the
// cached working copy and fetch only the delta. Transient remote failures
// are retried with backoff, permanent ones short-circuit.
package gitfetch
