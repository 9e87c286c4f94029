package sqlstore

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBusyTimeout is how long a SQLite writer waits on a locked database.
const DefaultBusyTimeout = 30 * time.Second

// sqliteDSN turns a database path into the file: URI the driver opens and
// reports whether it names a private in-memory database. Pragmas already
// present in a file: URI are kept as given.
func sqliteDSN(target string, busy time.Duration) (string, bool, error) {
	target = strings.TrimSpace(target)
	inMemory := target == "" || target == ":memory:"
	switch {
	case inMemory:
		// A fresh name per store keeps shared-cache databases apart.
		target = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	case !strings.HasPrefix(target, "file:"):
		target = "file:" + target
	}

	base, rawQuery, _ := strings.Cut(target, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", false, fmt.Errorf("sqlite dsn %q: %w", target, err)
	}

	if busy <= 0 {
		busy = DefaultBusyTimeout
	}
	pragmas := map[string]string{
		"busy_timeout": strconv.FormatInt(busy.Milliseconds(), 10),
		"foreign_keys": "ON",
	}
	if inMemory {
		pragmas["journal_mode"] = "DELETE"
	}
	for _, p := range params["_pragma"] {
		name, _, _ := strings.Cut(p, "(")
		delete(pragmas, strings.ToLower(strings.TrimSpace(name)))
	}
	for _, name := range slices.Sorted(maps.Keys(pragmas)) {
		params.Add("_pragma", name+"("+pragmas[name]+")")
	}
	if params.Get("_time_format") == "" {
		params.Set("_time_format", "sqlite")
	}
	return base + "?" + params.Encode(), inMemory, nil
}
