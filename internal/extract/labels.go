package extract

import (
	"strings"
	"unicode"

	"github.com/nhle/mailledger/internal/model"
)

var transferCodes = map[string]struct{}{
	"NEFT": {},
	"IMPS": {},
	"UPI":  {},
	"RTGS": {},
	"ACH":  {},
	"P2A":  {},
	"P2M":  {},
}

// Labels splits a transaction description into labels. Transfer codes
// and reference numbers are dropped. When the description has no "/"
// separated parts it is split on whitespace instead.
func Labels(desc string) []string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return []string{}
	}

	parts := strings.Split(desc, "/")
	if len(parts) == 1 {
		parts = strings.Fields(desc)
	}

	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || isTransferCode(p) || hasDigit(p) {
			continue
		}
		labels = append(labels, p)
	}
	return labels
}

func isTransferCode(s string) bool {
	_, ok := transferCodes[strings.ToUpper(strings.Trim(s, "-:"))]
	return ok
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// PaymentModeOf derives the payment channel from alert text.
func PaymentModeOf(text string) model.PaymentMode {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "UPI"):
		return model.PaymentModeMobileTransfer
	case strings.Contains(upper, "NEFT"),
		strings.Contains(upper, "RTGS"),
		strings.Contains(upper, "IMPS"),
		strings.Contains(upper, "ACH"):
		return model.PaymentModeBankTransfer
	case strings.Contains(upper, "ATM"):
		return model.PaymentModeATM
	case strings.Contains(upper, "CASH"):
		return model.PaymentModeCash
	default:
		return model.PaymentModeBankTransfer
	}
}
