// Package docindex is the sqlite backed document library. Reindex reads
// every document of the working directory, builds a fresh database in a
// temporary file and renames it over .index/index.db only on success, so an
// aborted run leaves the previous index untouched.
package docindex
