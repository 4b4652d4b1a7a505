// Package wallet is the signing boundary: it connects, reports balance and signs
// swap transactions for a single key. Transactions are never broadcast.
package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	projectrpc "github.com/aman-zulfiqar/solana-quote-engine/internal/rpc"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/units"
)

// Provider is what the swap flow needs from a wallet.
type Provider interface {
	Connect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
	SignTransaction(ctx context.Context, txBase64 string) (string, error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
}

type WalletConfig struct {
	RPCURL       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	PrivateKey string // base58-encoded 64-byte key OR solana-keygen JSON array

	DefaultCommitment string // e.g. "confirmed"
	Logger            *logrus.Logger
}

// Wallet is a keypair-backed Provider.
type Wallet struct {
	cfg    WalletConfig
	rpc    *projectrpc.Client
	priv   solana.PrivateKey
	pub    solana.PublicKey
	logger *logrus.Logger

	mu        sync.Mutex
	connected bool
}

// New returns a keypair wallet, or a Provider that reports WALLET_NOT_INSTALLED
// when no key is configured.
func New(cfg WalletConfig) (Provider, error) {
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return NotInstalled{}, nil
	}
	return NewWallet(cfg)
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("wallet: RPCURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 1 * time.Second
	}
	if cfg.DefaultCommitment == "" {
		cfg.DefaultCommitment = "confirmed"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}

	priv, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rpcClient := projectrpc.NewClient(projectrpc.ClientConfig{
		BaseURL:      cfg.RPCURL,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       cfg.Logger,
	})

	return &Wallet{
		cfg:    cfg,
		rpc:    rpcClient,
		priv:   priv,
		pub:    priv.PublicKey(),
		logger: cfg.Logger,
	}, nil
}

func (w *Wallet) Address() string             { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }

func (w *Wallet) Connect(_ context.Context) (string, error) {
	w.mu.Lock()
	w.connected = true
	w.mu.Unlock()

	w.logger.WithField("address", w.Address()).Info("wallet connected")
	return w.Address(), nil
}

func (w *Wallet) Disconnect(_ context.Context) error {
	w.mu.Lock()
	w.connected = false
	w.mu.Unlock()
	return nil
}

func (w *Wallet) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// GetBalance returns the native balance in SOL.
func (w *Wallet) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	lamports, err := w.rpc.GetBalance(ctx, w.pub.String(), w.cfg.DefaultCommitment)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getBalance RPC failed: %w", err)
	}
	return units.ToHumanAmount(new(big.Int).SetUint64(lamports), 9)
}

// NotInstalled stands in when no signing key is available.
type NotInstalled struct{}

func notInstalled() error {
	return apperror.New(apperror.CodeWalletNotInstalled)
}

func (NotInstalled) Connect(context.Context) (string, error) { return "", notInstalled() }
func (NotInstalled) Disconnect(context.Context) error        { return nil }
func (NotInstalled) SignTransaction(context.Context, string) (string, error) {
	return "", notInstalled()
}
func (NotInstalled) GetBalance(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, notInstalled()
}

func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(ed25519.PrivateKey(b)), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(ed25519.PrivateKey(raw)), nil
}
