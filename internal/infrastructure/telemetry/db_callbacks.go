package telemetry

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

type contextKey string

const (
	queryStartTimeKey     contextKey = "otel_query_start_time"
	dbMetricsStartTimeKey contextKey = "db_metrics_start_time"
)

// registrar is the Register half of a positioned GORM callback
type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// gormHook positions callbacks relative to an anchor on one GORM processor
type gormHook struct {
	suffix    string
	operation string
	before    func(db *gorm.DB, anchor string) registrar
	after     func(db *gorm.DB, anchor string) registrar
}

var gormHooks = []gormHook{
	{"create", "INSERT",
		func(db *gorm.DB, a string) registrar { return db.Callback().Create().Before(a) },
		func(db *gorm.DB, a string) registrar { return db.Callback().Create().After(a) }},
	{"query", "SELECT",
		func(db *gorm.DB, a string) registrar { return db.Callback().Query().Before(a) },
		func(db *gorm.DB, a string) registrar { return db.Callback().Query().After(a) }},
	{"update", "UPDATE",
		func(db *gorm.DB, a string) registrar { return db.Callback().Update().Before(a) },
		func(db *gorm.DB, a string) registrar { return db.Callback().Update().After(a) }},
	{"delete", "DELETE",
		func(db *gorm.DB, a string) registrar { return db.Callback().Delete().Before(a) },
		func(db *gorm.DB, a string) registrar { return db.Callback().Delete().After(a) }},
	{"row", "",
		func(db *gorm.DB, a string) registrar { return db.Callback().Row().Before(a) },
		func(db *gorm.DB, a string) registrar { return db.Callback().Row().After(a) }},
	{"raw", "",
		func(db *gorm.DB, a string) registrar { return db.Callback().Raw().Before(a) },
		func(db *gorm.DB, a string) registrar { return db.Callback().Raw().After(a) }},
}

// registerAround installs before/after callbacks on every GORM processor.
// after receives the SQL verb, resolved from the statement for row and raw calls.
// When closeBy is set, after runs ahead of the "<closeBy>:after_<op>" callback,
// e.g. "otel" so spans are still recording.
func registerAround(db *gorm.DB, prefix, closeBy string, before func(*gorm.DB), after func(*gorm.DB, string)) error {
	for _, h := range gormHooks {
		if err := h.before(db, "gorm:"+h.suffix).Register(prefix+":before_"+h.suffix, before); err != nil {
			return err
		}
		op := h.operation
		fn := func(tx *gorm.DB) {
			verb := op
			if verb == "" {
				verb = detectOperationType(tx.Statement.SQL.String())
			}
			after(tx, verb)
		}
		r := h.after(db, "gorm:"+h.suffix)
		if closeBy != "" {
			r = h.before(db, closeBy+":after_"+h.suffix)
		}
		if err := r.Register(prefix+":after_"+h.suffix, fn); err != nil {
			return err
		}
	}
	return nil
}

// stampStart stores the current time under key in the statement context
func stampStart(key contextKey) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tx.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
}

func elapsedSince(ctx context.Context, key contextKey) (time.Duration, bool) {
	if ctx == nil {
		return 0, false
	}
	start, ok := ctx.Value(key).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	return "OTHER"
}
