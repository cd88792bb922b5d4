// Package history reconstructs daily balance time series from raw
// transaction logs, with an authoritative-API fast path and a labeled
// synthetic estimate as the last resort.
package history

import (
	"io"
	"log"

	"github.com/shopspring/decimal"

	"alephium-gateway/internal/domain"
)

// attoDigits is the decimal shift between atto units and whole base
// asset units.
const attoDigits = 18

// TransactionDelta computes the signed net change in the base asset
// caused by tx to address, in whole base units. Inputs attributed to
// the address subtract, outputs add, and the fee is charged when the
// address is the fee payer. Token transfers on the same inputs and
// outputs never enter the delta; token and base-asset accounting stay
// separate. A malformed transaction contributes zero rather than
// corrupting the whole reconstruction.
func TransactionDelta(tx *domain.Transaction, address string, logger *log.Logger) decimal.Decimal {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if tx == nil || address == "" {
		return decimal.Zero
	}

	delta := decimal.Zero

	// A transaction whose script failed moves no value except the fee.
	if tx.ScriptExecutionOk {
		for _, in := range tx.Inputs {
			if in.Address != address {
				continue
			}
			amount, err := decimal.NewFromString(in.AttoAlphAmount)
			if err != nil {
				logger.Printf("delta: tx %s: bad input amount %q: %v", tx.Hash, in.AttoAlphAmount, err)
				continue
			}
			delta = delta.Sub(amount)
		}

		for _, out := range tx.Outputs {
			if out.Address != address {
				continue
			}
			amount, err := decimal.NewFromString(out.AttoAlphAmount)
			if err != nil {
				logger.Printf("delta: tx %s: bad output amount %q: %v", tx.Hash, out.AttoAlphAmount, err)
				continue
			}
			delta = delta.Add(amount)
		}
	}

	if tx.FeePayer(address) {
		gasPrice, err := decimal.NewFromString(tx.GasPrice)
		if err != nil {
			logger.Printf("delta: tx %s: bad gas price %q: %v", tx.Hash, tx.GasPrice, err)
		} else {
			fee := gasPrice.Mul(decimal.NewFromInt(tx.GasAmount))
			delta = delta.Sub(fee)
		}
	}

	return delta.Shift(-attoDigits)
}

// parseAttoBalance converts an atto-unit integer string to whole base
// units, returning zero for malformed input.
func parseAttoBalance(raw string, logger *log.Logger) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		if logger != nil {
			logger.Printf("history: bad balance %q: %v", raw, err)
		}
		return decimal.Zero
	}
	return d.Shift(-attoDigits)
}
