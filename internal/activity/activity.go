// Package activity reports recent on-chain swap activity for catalog tokens, with
// transfers labelled by the catalog symbol of their mint.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/helius"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/pricing"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/quotecache"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/tokens"
)

// DefaultLimit is the number of swaps a report carries.
const DefaultLimit = 10

// Transfer is one token movement of a swap. Symbol is empty for mints outside
// the catalog.
type Transfer struct {
	Mint   string          `json:"mint"`
	Symbol string          `json:"symbol,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	To     string          `json:"to"`
}

type Swap struct {
	Signature   string     `json:"signature"`
	Venue       string     `json:"venue"`
	Description string     `json:"description"`
	FeeLamports uint64     `json:"feeLamports"`
	Time        time.Time  `json:"time"`
	Transfers   []Transfer `json:"transfers"`
}

// Report is the activity of one token.
type Report struct {
	Symbol    string        `json:"symbol"`
	Mint      string        `json:"mint"`
	Name      string        `json:"name"`
	Image     string        `json:"image,omitempty"`
	Swaps     []Swap        `json:"swaps"`
	Provider  string        `json:"provider"`
	Source    models.Source `json:"source"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// Source is the upstream the helius provider reads.
type Source interface {
	TokenMetadata(ctx context.Context, mint string) (*helius.TokenMetadata, error)
	RecentSwaps(ctx context.Context, address string, limit int) ([]helius.Transaction, error)
}

// Provider fetches reports from Helius.
type Provider struct {
	source  Source
	catalog *tokens.Catalog
	limit   int
	logger  *logrus.Logger
	now     func() time.Time
}

func NewProvider(source Source, catalog *tokens.Catalog, logger *logrus.Logger) *Provider {
	if logger == nil {
		logger = logrus.New()
	}
	return &Provider{source: source, catalog: catalog, limit: DefaultLimit, logger: logger, now: time.Now}
}

func (p *Provider) Name() string { return "helius" }

// Fetch reads metadata and swaps concurrently. Swaps are required; missing
// metadata falls back to the catalog name and icon.
func (p *Provider) Fetch(ctx context.Context, token tokens.Record) (Report, error) {
	var (
		wg      sync.WaitGroup
		md      *helius.TokenMetadata
		mdErr   error
		txs     []helius.Transaction
		swapErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		md, mdErr = p.source.TokenMetadata(ctx, token.Mint)
	}()
	go func() {
		defer wg.Done()
		txs, swapErr = p.source.RecentSwaps(ctx, token.Mint, p.limit)
	}()
	wg.Wait()

	if swapErr != nil {
		return Report{}, fmt.Errorf("recent swaps for %s: %w", token.Symbol, swapErr)
	}

	rep := Report{
		Symbol:    token.Symbol,
		Mint:      token.Mint,
		Name:      token.Name,
		Image:     token.Icon,
		Swaps:     make([]Swap, 0, len(txs)),
		Source:    models.SourceLive,
		FetchedAt: p.now(),
	}
	switch {
	case mdErr != nil:
		p.logger.WithError(mdErr).WithField("symbol", token.Symbol).Warn("token metadata unavailable, using catalog")
	case md != nil:
		if name := md.Name(); name != "" {
			rep.Name = name
		}
		if img := md.Image(); img != "" {
			rep.Image = img
		}
	}

	for _, tx := range txs {
		s := Swap{
			Signature:   tx.Signature,
			Venue:       tx.Source,
			Description: tx.Description,
			FeeLamports: tx.Fee,
			Time:        time.Unix(tx.Timestamp, 0).UTC(),
			Transfers:   make([]Transfer, 0, len(tx.TokenTransfers)),
		}
		for _, tt := range tx.TokenTransfers {
			s.Transfers = append(s.Transfers, Transfer{
				Mint:   tt.Mint,
				Symbol: p.symbolOf(tt.Mint),
				Amount: tt.TokenAmount,
				From:   tt.FromUserAccount,
				To:     tt.ToUserAccount,
			})
		}
		rep.Swaps = append(rep.Swaps, s)
	}
	return rep, nil
}

func (p *Provider) symbolOf(mint string) string {
	rec, err := p.catalog.ByMint(mint)
	if err != nil {
		return ""
	}
	return rec.Symbol
}

// Resolver resolves a report through the provider chain.
type Resolver interface {
	Resolve(ctx context.Context, token tokens.Record) (pricing.Resolution[Report], error)
}

type Config struct {
	Catalog  *tokens.Catalog
	Resolver Resolver
	Cache    *quotecache.Cache[Report]
	TTL      time.Duration
	Logger   *logrus.Logger
}

// Service serves cached reports, refetching after the TTL and falling back to the
// last report when every source fails.
type Service struct {
	catalog  *tokens.Catalog
	resolver Resolver
	cache    *quotecache.Cache[Report]
	ttl      time.Duration
	logger   *logrus.Logger
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Catalog == nil || cfg.Resolver == nil {
		return nil, errors.New("activity: catalog and resolver are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Cache == nil {
		cfg.Cache = quotecache.New[Report](quotecache.NewMemoryBackend(), quotecache.WithLogger(cfg.Logger))
	}
	if cfg.TTL <= 0 {
		cfg.TTL = quotecache.TTLActivity
	}
	return &Service{
		catalog:  cfg.Catalog,
		resolver: cfg.Resolver,
		cache:    cfg.Cache,
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
	}, nil
}

// Activity returns the report for a catalog symbol.
func (s *Service) Activity(ctx context.Context, symbol string) (Report, error) {
	token, err := s.catalog.Lookup(strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return Report{}, apperror.New(apperror.CodeUnsupportedToken, apperror.WithContext(symbol))
	}
	key := quotecache.ActivityKey(token.Mint)

	if entry, ok := s.cache.Get(ctx, key); ok {
		return entry.Value, nil
	}

	res, err := s.resolver.Resolve(ctx, token)
	if err == nil {
		rep := res.Value
		rep.Provider = res.Provider
		if err := s.cache.Put(ctx, key, rep, s.ttl); err != nil {
			s.logger.WithError(err).Warn("failed to cache activity report")
		}
		return rep, nil
	}

	log := s.logger.WithError(err).WithField("symbol", symbol)
	if entry, ok := s.cache.GetStaleOrMiss(ctx, key); ok {
		log.WithField("age", entry.Age).Warn("activity sources failed, serving stale report")
		rep := entry.Value
		rep.Source = models.SourceStale
		return rep, nil
	}
	log.Warn("activity sources failed")
	return Report{}, err
}
