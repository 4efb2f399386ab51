package hdwallet

import (
	"github.com/litepay-io/litepay-go/ltcchain"
)

// PaymentURI builds a BIP21-style litecoin: URI for wallets and QR
// renderers. amount is in litoshi; pass 0 to omit it.
func PaymentURI(address string, amount int64) string {
	uri := "litecoin:" + address
	if amount > 0 {
		uri += "?amount=" + ltcchain.FormatAmount(amount)
	}
	return uri
}
