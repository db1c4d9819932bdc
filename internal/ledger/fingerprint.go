// Package ledger reconciles candidate transactions into account ledgers.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const fingerprintTimeLayout = "2006-01-02T15:04:05.000Z"

// Fingerprint is the deterministic ledger entry id for a transaction:
// the UTC instant with millisecond precision, the account id and the
// signed amount with two decimals, joined by underscores.
//
// Two distinct transactions on the same account with the same amount in
// the same millisecond share a fingerprint; the second is treated as a
// duplicate.
func Fingerprint(date time.Time, accountID string, signedAmount decimal.Decimal) string {
	return date.UTC().Format(fingerprintTimeLayout) + "_" + accountID + "_" + signedAmount.StringFixed(2)
}
