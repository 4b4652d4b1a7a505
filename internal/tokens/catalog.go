// Package tokens holds the static registry of tradable tokens.
package tokens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/sirupsen/logrus"
)

// MaxDecimals is the largest precision a token may declare.
const MaxDecimals = 18

var ErrNotFound = errors.New("token not found")

// Record describes one token. Records are immutable once the catalog is built.
type Record struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Mint          string `json:"mint"`
	Decimals      int    `json:"decimals"`
	Icon          string `json:"icon"`
	PriceSourceID string `json:"priceSourceId,omitempty"` // CoinGecko coin id
	IsNative      bool   `json:"isNative,omitempty"`
}

// Catalog maps symbols to records, preserving declaration order.
type Catalog struct {
	records []Record
	bySym   map[string]int
	byMint  map[string]int
	logger  *logrus.Logger
}

// NewCatalog builds a catalog. Symbols must be unique and decimals within [0, 18].
func NewCatalog(logger *logrus.Logger, records ...Record) (*Catalog, error) {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Catalog{
		records: make([]Record, 0, len(records)),
		bySym:   make(map[string]int, len(records)),
		byMint:  make(map[string]int, len(records)),
		logger:  logger,
	}
	for _, r := range records {
		r.Symbol = strings.TrimSpace(r.Symbol)
		if r.Symbol == "" {
			return nil, fmt.Errorf("token symbol is required")
		}
		if _, dup := c.bySym[r.Symbol]; dup {
			return nil, fmt.Errorf("duplicate token symbol %q", r.Symbol)
		}
		if r.Decimals < 0 || r.Decimals > MaxDecimals {
			return nil, fmt.Errorf("token %s: decimals %d out of range [0, %d]", r.Symbol, r.Decimals, MaxDecimals)
		}
		c.bySym[r.Symbol] = len(c.records)
		if r.Mint != "" {
			c.byMint[r.Mint] = len(c.records)
		}
		c.records = append(c.records, r)
	}
	return c, nil
}

// Default returns the catalog of tokens the service trades.
func Default(logger *logrus.Logger) *Catalog {
	c, err := NewCatalog(logger, defaultRecords...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the record for symbol or ErrNotFound.
func (c *Catalog) Lookup(symbol string) (Record, error) {
	i, ok := c.bySym[symbol]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return c.records[i], nil
}

// ByMint is the reverse of Lookup.
func (c *Catalog) ByMint(mint string) (Record, error) {
	i, ok := c.byMint[mint]
	if !ok {
		return Record{}, fmt.Errorf("%w: mint %s", ErrNotFound, mint)
	}
	return c.records[i], nil
}

// DecimalsOf never fails: unknown symbols log an UNKNOWN_TOKEN warning and yield 0.
func (c *Catalog) DecimalsOf(symbol string) int {
	i, ok := c.bySym[symbol]
	if !ok {
		c.logger.WithFields(logrus.Fields{
			"code":   apperror.CodeUnknownToken,
			"symbol": symbol,
		}).Warn("token not found in catalog")
		return 0
	}
	return c.records[i].Decimals
}

// All returns the records in declaration order.
func (c *Catalog) All() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}
