package extract

import (
	"strings"

	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
	"github.com/nhle/mailledger/internal/normalize"
)

// LoanRepaymentStrategy recognizes loan installments in the debit alerts
// of the bank the installment is paid from. An alert applies when it
// carries the payee marker configured for its sender and the loan's
// account number. Amount and date come from the sender bank's own
// strategy.
type LoanRepaymentStrategy struct {
	// Name labels the produced transactions (e.g., "SBI").
	Name string

	// Markers maps a paying bank's alert address to the payee phrase its
	// repayment debits show.
	Markers map[string]string

	Registry *Registry
}

// Extract implements Strategy.
func (s *LoanRepaymentStrategy) Extract(msg *mail.Message, account *model.Account) *model.Candidate {
	if msg == nil || account == nil || account.Number == "" || s.Registry == nil {
		return nil
	}

	marker, ok := s.Markers[normalizeAddress(msg.From)]
	if !ok || marker == "" {
		return nil
	}

	text := normalize.Message(msg.TextBody, msg.HTMLBody, nil)
	if !strings.Contains(text, marker) || !strings.Contains(text, account.Number) {
		return nil
	}

	sender := s.Registry.Resolve(msg.From, msg.Subject)
	if sender == nil || sender == Strategy(s) {
		return nil
	}
	fields, ok := sender.(FieldSource)
	if !ok {
		return nil
	}

	fieldText := fields.FieldText(msg)
	amountText := fields.Amount(fieldText)
	amount, ok := parseAmount(amountText)
	if !ok {
		return nil
	}
	dateText := fields.DateText(fieldText)

	date := msg.Date
	if date.IsZero() {
		date = parseDate(dateText)
	}
	if date.IsZero() {
		return nil
	}

	return &model.Candidate{
		Amount:      amount,
		Date:        date,
		Direction:   model.DirectionIncome,
		Description: "Credited to Loan Account",
		Labels:      []string{s.Name, model.CategoryEMI, "Loan Account"},
		PaymentMode: model.PaymentModeBankTransfer,
		Category:    model.CategoryEMI,
		Currency:    model.DefaultCurrency,
		Note: note{
			TransactionDate:    dateText,
			TransactionAccount: account.Number,
			TransactionInfo:    "Credited to Loan Account",
			TransactionAmount:  amountText,
		}.String(),
	}
}
