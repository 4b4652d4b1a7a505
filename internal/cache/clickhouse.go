package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

const createQuotesTable = `
	CREATE TABLE IF NOT EXISTS quotes (
		fetched_at       DateTime64(3),
		input_token      LowCardinality(String),
		output_token     LowCardinality(String),
		in_amount        UInt64,
		out_amount       UInt64,
		min_out_amount   UInt64,
		price_impact_pct Float64,
		slippage_pct     Float64,
		source_label     LowCardinality(String),
		source           LowCardinality(String)
	) ENGINE = MergeTree
	ORDER BY (input_token, output_token, fetched_at)
`

const insertQuote = `
	INSERT INTO quotes (
		fetched_at, input_token, output_token, in_amount, out_amount,
		min_out_amount, price_impact_pct, slippage_pct, source_label, source
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Database == "" {
		cfg.Database = "solana"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createQuotesTable); err != nil {
		return nil, fmt.Errorf("failed to create quotes table: %w", err)
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")

	return &ClickHouseStore{
		conn:   conn,
		logger: cfg.Logger,
	}, nil
}

func (c *ClickHouseStore) InsertQuote(ctx context.Context, quote models.Quote) error {
	if err := c.conn.Exec(ctx, insertQuote, quoteRow(quote)...); err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}

func quoteRow(q models.Quote) []any {
	impact, _ := q.PriceImpactPct.Float64()
	slippage, _ := q.SlippagePct.Float64()
	return []any{
		q.FetchedAt,
		q.InputToken,
		q.OutputToken,
		q.In().Uint64(),
		q.Out().Uint64(),
		q.MinOut().Uint64(),
		impact,
		slippage,
		q.SourceLabel,
		string(q.Source),
	}
}
