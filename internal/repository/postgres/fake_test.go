package postgres

import (
	"context"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.values) || r.values[i] == nil {
			continue
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type call struct {
	sql  string
	args []any
}

// fakeDB records every statement and answers with the configured row or tag.
type fakeDB struct {
	row   fakeRow
	tag   pgconn.CommandTag
	err   error
	calls []call
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{sql: sql, args: args})
	return f.tag, f.err
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.calls = append(f.calls, call{sql: sql, args: args})
	return f.row
}

func (f *fakeDB) lastSQL() string {
	if len(f.calls) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(f.calls[len(f.calls)-1].sql), " ")
}
