package database

// Storage backends accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)
