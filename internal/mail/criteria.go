package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// CriterionKind names one search key.
type CriterionKind string

const (
	CriterionSince   CriterionKind = "SINCE"
	CriterionFrom    CriterionKind = "FROM"
	CriterionBody    CriterionKind = "BODY"
	CriterionSubject CriterionKind = "SUBJECT"
	CriterionOr      CriterionKind = "OR"
)

// Criterion is one element of an ordered search filter. All criteria in
// a filter must match; Or combines exactly two alternatives.
type Criterion struct {
	Kind  CriterionKind
	Value string
	Date  time.Time
	Or    []Criterion
}

// Since matches messages delivered on or after the date of t.
func Since(t time.Time) Criterion {
	return Criterion{Kind: CriterionSince, Date: t}
}

// From matches the From header against address.
func From(address string) Criterion {
	return Criterion{Kind: CriterionFrom, Value: address}
}

// Body matches messages whose body contains token.
func Body(token string) Criterion {
	return Criterion{Kind: CriterionBody, Value: token}
}

// Subject matches messages whose subject contains s.
func Subject(s string) Criterion {
	return Criterion{Kind: CriterionSubject, Value: s}
}

// Or matches when either a or b matches.
func Or(a, b Criterion) Criterion {
	return Criterion{Kind: CriterionOr, Or: []Criterion{a, b}}
}

// AnyBody builds a left-nested OR chain matching any of tokens. Blank
// tokens are skipped. ok is false when no token remains.
func AnyBody(tokens []string) (c Criterion, ok bool) {
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !ok {
			c, ok = Body(tok), true
			continue
		}
		c = Or(Body(tok), c)
	}
	return c, ok
}

// String renders the criterion in IMAP-like notation for logs.
func (c Criterion) String() string {
	switch c.Kind {
	case CriterionSince:
		return "SINCE " + c.Date.Format("02-Jan-2006")
	case CriterionFrom:
		return fmt.Sprintf("HEADER FROM %q", c.Value)
	case CriterionOr:
		if len(c.Or) != 2 {
			return "OR ()"
		}
		return fmt.Sprintf("OR (%s) (%s)", c.Or[0], c.Or[1])
	default:
		return fmt.Sprintf("%s %q", c.Kind, c.Value)
	}
}

// FormatCriteria renders a whole filter for logs.
func FormatCriteria(cs []Criterion) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ToSearchCriteria converts an ordered filter into go-imap search
// criteria.
func ToSearchCriteria(cs []Criterion) (*imap.SearchCriteria, error) {
	out := &imap.SearchCriteria{}
	for _, c := range cs {
		if err := apply(out, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func apply(sc *imap.SearchCriteria, c Criterion) error {
	switch c.Kind {
	case CriterionSince:
		if c.Date.IsZero() {
			return fmt.Errorf("SINCE criterion without date")
		}
		sc.Since = c.Date
	case CriterionFrom:
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{
			Key:   "From",
			Value: c.Value,
		})
	case CriterionSubject:
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{
			Key:   "Subject",
			Value: c.Value,
		})
	case CriterionBody:
		sc.Body = append(sc.Body, c.Value)
	case CriterionOr:
		if len(c.Or) != 2 {
			return fmt.Errorf("OR criterion needs 2 operands, got %d", len(c.Or))
		}
		var pair [2]imap.SearchCriteria
		for i, operand := range c.Or {
			if err := apply(&pair[i], operand); err != nil {
				return err
			}
		}
		sc.Or = append(sc.Or, pair)
	default:
		return fmt.Errorf("unknown criterion %q", c.Kind)
	}
	return nil
}
