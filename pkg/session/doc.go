/*
Package session implements thread lifecycle and per-thread mutual exclusion.

The Manager resolves thread IDs (creating threads lazily), serializes turns on the
same thread with a ref-counted local lock plus an optional distributed lock, and
evicts idle threads.
*/
package session
