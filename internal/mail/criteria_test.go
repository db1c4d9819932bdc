package mail

import (
	"testing"
	"time"
)

func TestToSearchCriteria_BankFilter(t *testing.T) {
	since := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	sc, err := ToSearchCriteria([]Criterion{Since(since), From("alerts@bank.example")})
	if err != nil {
		t.Fatalf("ToSearchCriteria: %v", err)
	}
	if !sc.Since.Equal(since) {
		t.Errorf("Since = %v, want %v", sc.Since, since)
	}
	if len(sc.Header) != 1 || sc.Header[0].Key != "From" || sc.Header[0].Value != "alerts@bank.example" {
		t.Errorf("Header = %+v", sc.Header)
	}
}

func TestAnyBody_NestsLeft(t *testing.T) {
	c, ok := AnyBody([]string{"LN123", " ", "HOME LOAN", "EMI"})
	if !ok {
		t.Fatal("expected criterion")
	}

	want := `OR (BODY "EMI") (OR (BODY "HOME LOAN") (BODY "LN123"))`
	if got := c.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}

	sc, err := ToSearchCriteria([]Criterion{c})
	if err != nil {
		t.Fatalf("ToSearchCriteria: %v", err)
	}
	if len(sc.Or) != 1 {
		t.Fatalf("Or = %d, want 1", len(sc.Or))
	}
	if got := sc.Or[0][0].Body; len(got) != 1 || got[0] != "EMI" {
		t.Errorf("left operand = %v", got)
	}
	if len(sc.Or[0][1].Or) != 1 {
		t.Errorf("right operand should be a nested OR, got %+v", sc.Or[0][1])
	}
}

func TestAnyBody_SingleAndEmpty(t *testing.T) {
	c, ok := AnyBody([]string{"LN123"})
	if !ok || c.Kind != CriterionBody || c.Value != "LN123" {
		t.Errorf("single token = %+v, %v", c, ok)
	}
	if _, ok := AnyBody([]string{"", "  "}); ok {
		t.Error("blank tokens should produce nothing")
	}
}

func TestToSearchCriteria_Invalid(t *testing.T) {
	tests := []struct {
		name string
		c    Criterion
	}{
		{"since without date", Criterion{Kind: CriterionSince}},
		{"or with one operand", Criterion{Kind: CriterionOr, Or: []Criterion{Body("x")}}},
		{"unknown kind", Criterion{Kind: "TEXT", Value: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ToSearchCriteria([]Criterion{tt.c}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFormatCriteria(t *testing.T) {
	since := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	got := FormatCriteria([]Criterion{Since(since), Body("card 1234")})
	want := `[SINCE 05-Mar-2024, BODY "card 1234"]`
	if got != want {
		t.Errorf("FormatCriteria = %s, want %s", got, want)
	}
}
