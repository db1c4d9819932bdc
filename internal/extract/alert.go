package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
	"github.com/nhle/mailledger/internal/normalize"
)

// Profile is the pattern set for one bank's alert template. Patterns in
// each list are tried in order; the first match wins. Amount, Account
// and Description use capture group 1, Date uses the whole match.
type Profile struct {
	Name        string
	Amount      []*regexp.Regexp
	Account     []*regexp.Regexp
	Description []*regexp.Regexp
	Date        []*regexp.Regexp

	// Filter selects the relevant text fragments of html bodies.
	Filter normalize.Filter
}

// ProfilePNB matches Punjab National Bank transaction alerts.
var ProfilePNB = &Profile{
	Name:        "pnb",
	Amount:      []*regexp.Regexp{regexp.MustCompile(`Rs\.([\d,]+(\.\d+)?)`)},
	Account:     []*regexp.Regexp{regexp.MustCompile(`Ac (\w+)`)},
	Description: []*regexp.Regexp{regexp.MustCompile(`thru (.*) Aval`)},
	Date:        []*regexp.Regexp{regexp.MustCompile(`\d+-\d+-\d+((.*)\d+:\d+:\d+)?`)},
}

var axisDate = regexp.MustCompile(`\d{2}-\d{2}-\d{2,4}(,?\s(at\s)?\d{2}:\d{2}:\d{2})?`)

// ProfileAxis matches Axis Bank transaction alerts. The date may sit in
// a table cell of its own.
var ProfileAxis = &Profile{
	Name: "axis",
	Amount: []*regexp.Regexp{
		regexp.MustCompile(`Rs\. ([\d,]+\.\d+)`),
		regexp.MustCompile(`INR\s([\d,]+\.\d+)`),
	},
	Account:     []*regexp.Regexp{regexp.MustCompile(`A/c\sno\.\s([A-Z0-9]+)`)},
	Description: []*regexp.Regexp{regexp.MustCompile(`Info[:\-]\s*(\S+)`)},
	Date:        []*regexp.Regexp{axisDate},
	Filter: normalize.Any(
		normalize.Containing("Rs", "INR", "credited", "debited", "Info", "A/c"),
		normalize.Matching(axisDate),
	),
}

var profiles = map[string]*Profile{
	ProfilePNB.Name:  ProfilePNB,
	ProfileAxis.Name: ProfileAxis,
}

// LookupProfile returns the built-in profile with the given name.
func LookupProfile(name string) (*Profile, bool) {
	p, ok := profiles[strings.ToLower(name)]
	return p, ok
}

// AlertStrategy extracts debit and credit alerts using a Profile.
type AlertStrategy struct {
	profile *Profile
}

// NewAlertStrategy creates a strategy for profile.
func NewAlertStrategy(profile *Profile) *AlertStrategy {
	return &AlertStrategy{profile: profile}
}

// FieldText implements FieldSource.
func (s *AlertStrategy) FieldText(msg *mail.Message) string {
	return normalize.Message(msg.TextBody, msg.HTMLBody, s.profile.Filter)
}

// Amount implements FieldSource.
func (s *AlertStrategy) Amount(text string) string {
	return firstGroup(s.profile.Amount, text)
}

// DateText implements FieldSource.
func (s *AlertStrategy) DateText(text string) string {
	for _, re := range s.profile.Date {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// AccountRef returns the account reference quoted by the alert.
func (s *AlertStrategy) AccountRef(text string) string {
	return firstGroup(s.profile.Account, text)
}

// Description returns the purpose text of the alert.
func (s *AlertStrategy) Description(text string) string {
	return strings.TrimSpace(firstGroup(s.profile.Description, text))
}

// Extract implements Strategy.
func (s *AlertStrategy) Extract(msg *mail.Message, account *model.Account) *model.Candidate {
	if msg == nil || account == nil {
		return nil
	}

	text := s.FieldText(msg)
	if text == "" {
		return nil
	}

	ref := s.AccountRef(text)
	if !referencesAccount(text, ref, account.Number) {
		return nil
	}

	dir, ok := direction(text)
	if !ok {
		return nil
	}

	amountText := s.Amount(text)
	amount, ok := parseAmount(amountText)
	if !ok {
		return nil
	}

	dateText := s.DateText(text)
	date := msg.Date
	if date.IsZero() {
		date = parseDate(dateText)
	}
	if date.IsZero() {
		return nil
	}

	desc := s.Description(text)
	modeSource := desc
	if modeSource == "" {
		modeSource = text
	}

	return &model.Candidate{
		Amount:      amount,
		Date:        date,
		Direction:   dir,
		Description: desc,
		Labels:      Labels(desc),
		PaymentMode: PaymentModeOf(modeSource),
		Category:    model.CategoryOther,
		Currency:    model.DefaultCurrency,
		Note: note{
			TransactionDate:    dateText,
			TransactionAccount: ref,
			TransactionInfo:    desc,
			TransactionAmount:  amountText,
		}.String(),
	}
}

func (s *AlertStrategy) String() string {
	return fmt.Sprintf("alert(%s)", s.profile.Name)
}

func firstGroup(res []*regexp.Regexp, text string) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

// direction classifies text by its debit/credit keyword. Debit wins
// when both appear.
func direction(text string) (model.Direction, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "debited"):
		return model.DirectionExpense, true
	case strings.Contains(lower, "credited"):
		return model.DirectionIncome, true
	}
	return "", false
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

var dateLayouts = []string{
	"02-01-2006 15:04:05",
	"02-01-2006, 15:04:05",
	"02-01-06, 15:04:05",
	"02-01-06 15:04:05",
	"02-01-2006",
	"02-01-06",
}

var datePrefix = regexp.MustCompile(`^\d+-\d+-\d+(,?\s(at\s)?\d{2}:\d{2}:\d{2})?`)

// parseDate reads the alert's own date when the mail has no Date
// header. It returns the zero time when nothing parses.
func parseDate(s string) time.Time {
	s = strings.Replace(datePrefix.FindString(strings.TrimSpace(s)), " at ", " ", 1)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
