package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"gaplessohlcv/bars"
	"gaplessohlcv/gaps"
	"gaplessohlcv/marketerrs"
)

// Loader implements component C7: batched, schema-gated inserts. Before
// the first insert of a process lifetime it runs the SchemaValidator;
// every row carries sign=+1 so the merge-by-version engine keeps the
// highest-version physical copy per identity.
type Loader struct {
	conn      driver.Conn
	validator *SchemaValidator

	batchSize int
	validated bool
}

// NewLoader builds a Loader. batchSize controls how many rows accumulate
// before a PrepareBatch/Send round-trip (spec §4.7: "chosen to minimize
// merge cost").
func NewLoader(conn driver.Conn, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &Loader{conn: conn, validator: NewSchemaValidator(conn), batchSize: batchSize}
}

func (l *Loader) ensureReady(ctx context.Context) error {
	if l.validated {
		return nil
	}
	if err := l.validator.Validate(ctx); err != nil {
		return err
	}
	l.validated = true
	return nil
}

// Write implements gaps.Sink and the bulk of C7's contract: batched native
// inserts ordered by (symbol, timeframe, grid-bucket(timestamp),
// timestamp). rows are expected to already carry a Version from C6.
func (l *Loader) Write(ctx context.Context, rows []bars.Bar) error {
	if err := l.ensureReady(ctx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	ordered := make([]bars.Bar, len(rows))
	copy(ordered, rows)
	sortForInsert(ordered)

	for start := 0; start < len(ordered); start += l.batchSize {
		end := start + l.batchSize
		if end > len(ordered) {
			end = len(ordered)
		}
		if err := l.insertBatch(ctx, ordered[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) insertBatch(ctx context.Context, rows []bars.Bar) error {
	batch, err := l.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", ExpectedSchema.Table))
	if err != nil {
		return fmt.Errorf("store: prepare batch: %w", err)
	}

	for _, b := range rows {
		if violation := b.CheckOHLC(); violation != "" {
			return &marketerrs.InvariantViolation{
				Symbol: b.Symbol, Timeframe: string(b.Timeframe), Timestamp: b.TimestampUS, Detail: violation,
			}
		}
		var fundingRate *float64 = nil
		if b.FundingRate != nil {
			f, _ := b.FundingRate.Float64()
			fundingRate = &f
		}
		if err := batch.Append(
			b.Symbol,
			string(b.Timeframe),
			string(b.InstrumentType),
			microsToTime(b.TimestampUS),
			microsToTime(b.CloseTimeUS),
			string(b.DataSource),
			b.Open,
			b.High,
			b.Low,
			b.Close,
			b.Volume,
			b.QuoteVolume,
			b.TakerBuyBase,
			b.TakerBuyQuote,
			b.NumberOfTrades,
			fundingRate,
			b.Version,
			int8(1),
		); err != nil {
			return fmt.Errorf("store: append row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("store: send batch: %w", err)
	}
	return nil
}

// sortForInsert orders rows by (symbol, timeframe, hour bucket, timestamp)
// to match the table's physical ordering key, minimizing merge cost on
// insert (spec §4.7).
func sortForInsert(rows []bars.Bar) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Timeframe != b.Timeframe {
			return a.Timeframe < b.Timeframe
		}
		aBucket, bBucket := hourBucket(a.TimestampUS), hourBucket(b.TimestampUS)
		if aBucket != bBucket {
			return aBucket < bBucket
		}
		return a.TimestampUS < b.TimestampUS
	})
}

const microsPerHour = int64(3600_000_000)

func hourBucket(tsUS int64) int64 { return tsUS / microsPerHour }

func microsToTime(us int64) int64 { return us } // clickhouse driver accepts int64 µs for DateTime64(6)

// PresenceSet queries which grid timestamps already exist for
// (symbol, timeframe, instrument_type) in [startUS, endUS), in the shape
// gaps.Detect expects. This is the "actual identities present" half of
// C4's contract.
func (l *Loader) PresenceSet(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64) (gaps.PresenceSet, error) {
	if err := l.ensureReady(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT DISTINCT timestamp FROM %s FINAL WHERE symbol = ? AND timeframe = ? AND instrument_type = ? AND timestamp >= ? AND timestamp < ?`,
		ExpectedSchema.Table,
	)
	rows, err := l.conn.Query(ctx, query, symbol, string(tf), string(instrumentType), microsToTime(startUS), microsToTime(endUS))
	if err != nil {
		return nil, fmt.Errorf("store: query presence: %w", err)
	}
	defer rows.Close()

	set := make(gaps.PresenceSet)
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("store: scan presence row: %w", err)
		}
		set[ts] = true
	}
	return set, rows.Err()
}
