// Package runstate persists per-run observability state in a SQLite
// database inside the working directory: one row per run and one row per
// chunk with its lifecycle state, tries, chosen quantizer, and timing. The
// progress journal stays authoritative for resume decisions; this store
// exists so `lathe status` and the final summary can answer questions
// without scraping logs.
package runstate
