package wallet

import (
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
)

func rejected(context string, cause error) error {
	return apperror.New(apperror.CodeWalletRejected, apperror.WithContext(context), apperror.WithCause(cause))
}

// SignTransaction signs a base64 wire transaction and returns it re-encoded. The
// transaction must list this wallet as a signer.
func (w *Wallet) SignTransaction(_ context.Context, txBase64 string) (string, error) {
	if !w.Connected() {
		return "", rejected("wallet not connected", nil)
	}

	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", rejected("transaction is not base64", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", rejected("malformed transaction", err)
	}
	if !tx.Message.IsSigner(w.pub) {
		return "", rejected("transaction does not require this wallet", nil)
	}

	if err := w.signTx(tx); err != nil {
		return "", rejected("signing failed", err)
	}

	out, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	w.logger.WithField("signature", tx.Signatures[0].String()).Info("transaction signed")
	return base64.StdEncoding.EncodeToString(out), nil
}

func (w *Wallet) signTx(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.priv
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
