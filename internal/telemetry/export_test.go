package telemetry

import "database/sql"

var TableExists = tableExists

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
