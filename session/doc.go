// Package session houses implementations of core.Archive, the store that
// keeps transcripts of sessions removed by a reset.
//
// InMemoryArchive suits tests and demos. SQLiteArchive persists transcripts
// in a single SQLite file using the pure Go modernc.org/sqlite driver.
package session
