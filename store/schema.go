// Package store implements component C7 (the schema-strict Loader) and
// component C12 (the Schema Validator that gates it), against a
// ClickHouse-shaped analytic database reachable through
// github.com/ClickHouse/clickhouse-go/v2's native driver — the teacher's
// own driver choice, used here via PrepareBatch rather than the teacher's
// HTTP JSONEachRow batch client, since native batching is what the
// ordering/partitioning guarantees of §6.3 require.
package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"gaplessohlcv/marketerrs"
)

// State is the boot state machine §4.12 specifies.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateHealthChecked
	StateSchemaValidated
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateConnecting:
		return "CONNECTING"
	case StateHealthChecked:
		return "HEALTH_CHECKED"
	case StateSchemaValidated:
		return "SCHEMA_VALIDATED"
	case StateReady:
		return "READY"
	default:
		return "FAILED"
	}
}

// ExpectedColumn is one entry of the compile-time ExpectedSchema.
type ExpectedColumn struct {
	Name string
	Type string
}

// ExpectedSchema is the compile-time contract §6.3/§4.12 describe: column
// list, types, engine, partitioning, and ordering key.
var ExpectedSchema = struct {
	Table      string
	Columns    []ExpectedColumn
	Engine     string
	OrderBy    string
	PartitionBy string
}{
	Table: "bars",
	Columns: []ExpectedColumn{
		{Name: "symbol", Type: "LowCardinality(String)"},
		{Name: "timeframe", Type: "LowCardinality(String)"},
		{Name: "instrument_type", Type: "LowCardinality(String)"},
		{Name: "timestamp", Type: "DateTime64(6, 'UTC')"},
		{Name: "close_time", Type: "DateTime64(6, 'UTC')"},
		{Name: "data_source", Type: "LowCardinality(String)"},
		{Name: "open", Type: "Decimal128(8)"},
		{Name: "high", Type: "Decimal128(8)"},
		{Name: "low", Type: "Decimal128(8)"},
		{Name: "close", Type: "Decimal128(8)"},
		{Name: "volume", Type: "Decimal128(8)"},
		{Name: "quote_volume", Type: "Decimal128(8)"},
		{Name: "taker_buy_base", Type: "Decimal128(8)"},
		{Name: "taker_buy_quote", Type: "Decimal128(8)"},
		{Name: "number_of_trades", Type: "UInt64"},
		{Name: "funding_rate", Type: "Nullable(Decimal128(8))"},
		{Name: "version", Type: "UInt64"},
		{Name: "sign", Type: "Int8"},
	},
	Engine:      "ReplacingMergeTree(version)",
	OrderBy:     "(symbol, timeframe, toStartOfHour(timestamp), timestamp)",
	PartitionBy: "toDate(timestamp)",
}

// SchemaValidator implements C12: it compares the live table's column list
// and types against ExpectedSchema, strict mode always on (§6.6
// strict_schema default true — there is no best-effort path).
type SchemaValidator struct {
	conn driver.Conn

	mu    sync.Mutex
	state State
}

// NewSchemaValidator wraps an already-open driver.Conn.
func NewSchemaValidator(conn driver.Conn) *SchemaValidator {
	return &SchemaValidator{conn: conn, state: StateNew}
}

// State returns the current boot state.
func (v *SchemaValidator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *SchemaValidator) setState(s State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
}

// Validate runs the boot sequence once: health check, then schema
// comparison. Any mismatch is fatal — raises *marketerrs.SchemaMismatchError
// and leaves the validator in StateFailed, never READY.
func (v *SchemaValidator) Validate(ctx context.Context) error {
	v.setState(StateConnecting)
	if err := v.conn.Ping(ctx); err != nil {
		v.setState(StateFailed)
		return fmt.Errorf("store: health check: %w", err)
	}
	v.setState(StateHealthChecked)

	liveCols, err := v.describeTable(ctx)
	if err != nil {
		v.setState(StateFailed)
		return err
	}
	liveTable, err := v.describeEngine(ctx)
	if err != nil {
		v.setState(StateFailed)
		return err
	}

	diffs := diffSchema(liveCols, ExpectedSchema.Columns)
	diffs = append(diffs, diffEngine(liveTable)...)
	if len(diffs) > 0 {
		v.setState(StateFailed)
		return &marketerrs.SchemaMismatchError{Table: ExpectedSchema.Table, Diffs: diffs}
	}
	v.setState(StateSchemaValidated)
	v.setState(StateReady)
	return nil
}

func (v *SchemaValidator) describeTable(ctx context.Context) (map[string]string, error) {
	rows, err := v.conn.Query(ctx, fmt.Sprintf("DESCRIBE TABLE %s", ExpectedSchema.Table))
	if err != nil {
		return nil, fmt.Errorf("store: describe table: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name, typ, defaultType, defaultExpr, comment, codecExpr, ttlExpr string
		if err := rows.Scan(&name, &typ, &defaultType, &defaultExpr, &comment, &codecExpr, &ttlExpr); err != nil {
			return nil, fmt.Errorf("store: scan describe row: %w", err)
		}
		cols[name] = typ
	}
	return cols, rows.Err()
}

// liveTableMeta is the subset of system.tables C12 needs to enforce engine
// configuration, partitioning, and ordering (spec §4.12), beyond the plain
// column list/types DESCRIBE TABLE already covers.
type liveTableMeta struct {
	EngineFull   string
	SortingKey   string
	PartitionKey string
}

func (v *SchemaValidator) describeEngine(ctx context.Context) (liveTableMeta, error) {
	var m liveTableMeta
	row := v.conn.QueryRow(ctx,
		`SELECT engine_full, sorting_key, partition_key FROM system.tables WHERE database = currentDatabase() AND name = ?`,
		ExpectedSchema.Table,
	)
	if err := row.Scan(&m.EngineFull, &m.SortingKey, &m.PartitionKey); err != nil {
		return liveTableMeta{}, fmt.Errorf("store: describe engine: %w", err)
	}
	return m, nil
}

// diffEngine compares the live table's engine, sorting key, and partition
// key against ExpectedSchema. system.tables reports sorting_key/
// partition_key as bare comma-separated expressions with no enclosing
// parentheses, so both sides are normalized the same way before comparing.
func diffEngine(live liveTableMeta) []string {
	var diffs []string
	if !strings.Contains(live.EngineFull, ExpectedSchema.Engine) {
		diffs = append(diffs, fmt.Sprintf("engine: expected %q, got %q", ExpectedSchema.Engine, live.EngineFull))
	}
	if normalizeKeyExpr(live.SortingKey) != normalizeKeyExpr(ExpectedSchema.OrderBy) {
		diffs = append(diffs, fmt.Sprintf("order by: expected %q, got %q", ExpectedSchema.OrderBy, live.SortingKey))
	}
	if normalizeKeyExpr(live.PartitionKey) != normalizeKeyExpr(ExpectedSchema.PartitionBy) {
		diffs = append(diffs, fmt.Sprintf("partition by: expected %q, got %q", ExpectedSchema.PartitionBy, live.PartitionKey))
	}
	return diffs
}

// normalizeKeyExpr strips the outer parentheses ClickHouse's DDL syntax
// allows around an ORDER BY/PARTITION BY tuple and collapses internal
// whitespace, so "(a, b)" from ExpectedSchema compares equal to the bare
// "a, b" system.tables reports.
func normalizeKeyExpr(expr string) string {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimPrefix(expr, "(")
	expr = strings.TrimSuffix(expr, ")")
	fields := strings.Split(expr, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return strings.Join(fields, ", ")
}

func diffSchema(live map[string]string, expected []ExpectedColumn) []string {
	var diffs []string
	for _, col := range expected {
		liveType, ok := live[col.Name]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("missing column %q", col.Name))
			continue
		}
		if liveType != col.Type {
			diffs = append(diffs, fmt.Sprintf("column %q: expected %q, got %q", col.Name, col.Type, liveType))
		}
	}
	return diffs
}

// Open builds a clickhouse-go/v2 native connection from the resolved
// configuration. Kept here (rather than config) so store owns every detail
// of how it talks to the driver.
func Open(ctx context.Context, addr, database, user, password string, secure bool) (driver.Conn, error) {
	opts := &clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}
	if secure {
		opts.TLS = &tls.Config{}
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return conn, nil
}
