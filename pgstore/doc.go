// Package pgstore implements the engine's durable collaborator interfaces
// over PostgreSQL using pgx: the user directory and the refresh-token
// store. The schema lives in migrations/.
package pgstore
