// Package database opens the PostgreSQL pool backing the channel event journal.
package database
