package action

import "exchange-ledger/internal/domain"

// KeyMap maps a provider's field names to the canonical field names the
// builder consumes. New providers add a table, not code branches.
type KeyMap map[string]string

// Rekey translates a raw record into canonical field names. Fields without a
// mapping are dropped; nil values are treated as absent.
func Rekey(rec Record, km KeyMap) Record {
	out := make(Record, len(km))
	for providerKey, canonicalKey := range km {
		if v, ok := rec[providerKey]; ok && v != nil {
			out[canonicalKey] = v
		}
	}
	return out
}

// Canonical field names produced by Rekey and consumed by the Builder.
const (
	fieldAsset            = "asset"
	fieldAmount           = "amount"
	fieldAmountSold       = "amountSold"
	fieldTime             = "time"
	fieldSymbol           = "symbol"
	fieldPrice            = "price"
	fieldFee              = "fee"
	fieldFeeAsset         = "feeAsset"
	fieldID               = "id"
	fieldIsBuyer          = "isBuyer"
	fieldNetwork          = "network"
	fieldAddress          = "address"
	fieldStatus           = "status"
	fieldTransferedAmount = "transferedAmount"
	fieldCounterAsset     = "counterAsset"
	fieldTransactionType  = "transactionType"
)

// BinanceKeyMaps returns the per-category field-mapping tables for
// Binance-shaped records. The tables are per category because the same
// provider field means different things across endpoints: `fromAsset` is the
// swept asset in a dust log but the sold asset of a conversion.
func BinanceKeyMaps() map[domain.Category]KeyMap {
	return map[domain.Category]KeyMap{
		domain.CategoryTrade: {
			"symbol":          fieldSymbol,
			"id":              fieldID,
			"price":           fieldPrice,
			"qty":             fieldAmount,
			"commission":      fieldFee,
			"commissionAsset": fieldFeeAsset,
			"time":            fieldTime,
			"isBuyer":         fieldIsBuyer,
		},
		domain.CategoryDeposit: {
			"coin":       fieldAsset,
			"amount":     fieldAmount,
			"insertTime": fieldTime,
			"network":    fieldNetwork,
			"address":    fieldAddress,
			"status":     fieldStatus,
			"txId":       fieldID,
		},
		domain.CategoryWithdrawal: {
			"coin":           fieldAsset,
			"amount":         fieldAmount,
			"applyTime":      fieldTime,
			"network":        fieldNetwork,
			"address":        fieldAddress,
			"status":         fieldStatus,
			"transactionFee": fieldFee,
			"id":             fieldID,
		},
		domain.CategoryDustSweep: {
			"fromAsset":           fieldAsset,
			"amount":              fieldAmount,
			"operateTime":         fieldTime,
			"serviceChargeAmount": fieldFee,
			"transferedAmount":    fieldTransferedAmount,
			"transId":             fieldID,
		},
		domain.CategoryFiat: {
			"fiatCurrency":    fieldAsset,
			"indicatedAmount": fieldAmount,
			"createTime":      fieldTime,
			"totalFee":        fieldFee,
			"orderNo":         fieldID,
			"status":          fieldStatus,
			"transactionType": fieldTransactionType,
		},
		domain.CategoryDividend: {
			"asset":   fieldAsset,
			"amount":  fieldAmount,
			"divTime": fieldTime,
			"tranId":  fieldID,
		},
		domain.CategoryConversion: {
			"toAsset":    fieldAsset,
			"toAmount":   fieldAmount,
			"fromAsset":  fieldCounterAsset,
			"fromAmount": fieldAmountSold,
			"ratio":      fieldPrice,
			"createTime": fieldTime,
			"orderId":    fieldID,
		},
	}
}
