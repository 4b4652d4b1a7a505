package swapengine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/jupiter"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/models"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/wallet"
)

// SignSwap builds the aggregator transaction for the session's current quote and
// has the wallet sign it. Only live quotes can be swapped. Nothing is broadcast.
func (e *Engine) SignSwap(ctx context.Context, s *Session, w wallet.Provider) (*SignedSwap, error) {
	if e.swaps == nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("swap builder not configured"))
	}
	if w == nil {
		return nil, apperror.New(apperror.CodeWalletNotInstalled)
	}

	current, ok := s.Current()
	if !ok || current.Quote.IsZero() {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithMessage("no quote to swap"))
	}
	if current.Quote.Source != models.SourceLive {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithMessage("only live quotes can be swapped"), apperror.WithContext(string(current.Quote.Source)))
	}

	owner, err := w.Connect(ctx)
	if err != nil {
		return nil, err
	}

	q := current.Quote
	bps := slippageBps(q.SlippagePct)
	route, err := e.swaps.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   q.InputMint,
		OutputMint:  q.OutputMint,
		Amount:      q.InAmount,
		SlippageBps: &bps,
	})
	if err != nil {
		return nil, apperror.External(apperror.CodeUpstreamFailure, "jupiter quote", err)
	}

	built, err := e.swaps.Swap(ctx, jupiter.SwapRequest{
		QuoteResponse:           route,
		UserPublicKey:           owner,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
	})
	if err != nil {
		return nil, apperror.External(apperror.CodeUpstreamFailure, "jupiter swap", err)
	}

	signed, err := w.SignTransaction(ctx, built.SwapTransaction)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"session": s.ID(),
		"pair":    fmt.Sprintf("%s/%s", q.InputToken, q.OutputToken),
		"in":      q.InAmount,
		"owner":   owner,
	}).Info("swap transaction signed")

	return &SignedSwap{
		Quote:                q,
		Owner:                owner,
		SignedTransaction:    signed,
		LastValidBlockHeight: built.LastValidBlockHeight,
	}, nil
}
