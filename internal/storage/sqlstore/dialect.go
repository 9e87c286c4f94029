package sqlstore

import (
	"fmt"
	"strings"
)

// dialect captures what differs between the supported databases.
type dialect struct {
	name       string // value accepted in Config.Driver
	driverName string // database/sql driver
	types      *strings.Replacer
	returning  bool   // INSERT ... RETURNING id is supported
	server     bool   // networked database; transient connection errors are retried
	resyncSeq  string // statement run after inserting an explicit id, if any
}

var dialects = map[string]*dialect{
	"sqlite": {
		name:       "sqlite",
		driverName: "sqlite3",
		types: strings.NewReplacer(
			"{{id}}", "INTEGER PRIMARY KEY",
			"{{float}}", "REAL",
			"{{bool}}", "BOOLEAN",
			"{{text}}", "TEXT",
		),
		returning: true,
	},
	"mysql": {
		name:       "mysql",
		driverName: "mysql",
		types: strings.NewReplacer(
			"{{id}}", "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY",
			"{{float}}", "DOUBLE",
			"{{bool}}", "BOOLEAN",
			"{{text}}", "LONGTEXT",
		),
		server: true,
	},
	"postgres": {
		name:       "postgres",
		driverName: "pgx",
		types: strings.NewReplacer(
			"{{id}}", "BIGSERIAL PRIMARY KEY",
			"{{float}}", "DOUBLE PRECISION",
			"{{bool}}", "BOOLEAN",
			"{{text}}", "TEXT",
		),
		returning: true,
		server:    true,
		resyncSeq: `SELECT setval(pg_get_serial_sequence('issues', 'id'), (SELECT MAX(id) FROM issues))`,
	},
}

// Drivers lists the accepted Config.Driver values.
func Drivers() []string {
	return []string{"sqlite", "mysql", "postgres"}
}

func lookupDialect(name string) (*dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	case "mysql", "dolt":
		return dialects["mysql"], nil
	case "postgres", "postgresql", "pgx":
		return dialects["postgres"], nil
	}
	return nil, fmt.Errorf("unsupported database driver %q (want one of %s)", name, strings.Join(Drivers(), ", "))
}

// statements returns the schema for d split into single statements, since
// the MySQL driver rejects multi-statement Exec by default.
func (d *dialect) statements() []string {
	var out []string
	for _, stmt := range strings.Split(d.types.Replace(schema), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
