package action

import "exchange-ledger/internal/domain"

// Expand appends the synthesized legs implied by each base entry:
//
//	trade       -> fee debit + opposite leg in the counter asset
//	conversion  -> opposite leg in the counter asset
//	dust sweep  -> fee debit + settlement credit
//	withdrawal  -> fee debit
//	fiat        -> fee debit (when a fee was charged)
//
// Deposits, dividends and fees expand to nothing, and synthesized legs never
// spawn further legs. Expand is pure and deterministic; callers invoke it
// exactly once per batch.
func Expand(entries []*domain.Entry) []*domain.Entry {
	out := make([]*domain.Entry, 0, len(entries)*2)
	for _, e := range entries {
		out = append(out, e)
		if e.Leg != domain.LegBase {
			continue
		}
		switch e.Category {
		case domain.CategoryTrade:
			out = append(out, feeLeg(e, "trading fees"), oppositeLeg(e))
		case domain.CategoryConversion:
			out = append(out, oppositeLeg(e))
		case domain.CategoryDustSweep:
			out = append(out, feeLeg(e, "dust exchange fee"), transferLeg(e))
		case domain.CategoryWithdrawal:
			out = append(out, feeLeg(e, "withdrawal fees"))
		case domain.CategoryFiat:
			if e.FeeAmount != 0 {
				out = append(out, feeLeg(e, "fiat transaction fee"))
			}
		}
	}
	return out
}

// feeLeg synthesizes the fee debit of a base entry. Fees are always negative.
func feeLeg(e *domain.Entry, description string) *domain.Entry {
	amount := e.FeeAmount
	if amount > 0 {
		amount = -amount
	}
	return &domain.Entry{
		Asset:       e.FeeAsset,
		Amount:      amount,
		Timestamp:   e.Timestamp,
		Category:    e.Category,
		Leg:         domain.LegFee,
		Source:      e.Source,
		SourceID:    e.SourceID,
		Description: description,

		FeeAsset:      e.FeeAsset,
		FeeAmount:     e.FeeAmount,
		FeeAssetPrice: e.FeeAssetPrice,
	}
}

// oppositeLeg synthesizes the counter-asset movement of a trade or
// conversion: buying the base asset gives up price*amount of the counter,
// selling credits it (the base amount is already negative for sells).
func oppositeLeg(e *domain.Entry) *domain.Entry {
	return &domain.Entry{
		Asset:       e.CounterAsset,
		Amount:      -e.Price * e.Amount,
		Timestamp:   e.Timestamp,
		Category:    e.Category,
		Leg:         domain.LegOpposite,
		Source:      e.Source,
		SourceID:    e.SourceID,
		Description: e.Description,

		Symbol:       e.Symbol,
		Price:        e.Price,
		CounterAsset: e.Asset,
		Side:         e.Side,
	}
}

// transferLeg synthesizes the settlement credit of a dust sweep.
func transferLeg(e *domain.Entry) *domain.Entry {
	return &domain.Entry{
		Asset:       e.TransferedAsset,
		Amount:      e.TransferedAmount,
		Timestamp:   e.Timestamp,
		Category:    e.Category,
		Leg:         domain.LegTransfer,
		Source:      e.Source,
		SourceID:    e.SourceID,
		Description: "dust exchange reward",

		TransferedAmount: e.TransferedAmount,
		TransferedAsset:  e.TransferedAsset,
	}
}
