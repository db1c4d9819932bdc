package extract

import (
	"fmt"

	"github.com/nhle/mailledger/internal/model"
)

// Strategy kinds accepted in institution registrations.
const (
	KindAlert         = "alert"
	KindLoanRepayment = "loan_repayment"
	KindDelegate      = "delegate"
)

// Builtin lists the institutions registered by DefaultRegistry.
var Builtin = []model.InstitutionConfig{
	{Address: "pnbealert@punjabnationalbank.in", Kind: KindAlert, Profile: "pnb"},
	{Address: "alerts@axisbank.com", Kind: KindAlert, Profile: "axis"},
	{Address: "alerts@sbibank.com", Kind: KindLoanRepayment, Name: "SBI", Marker: "ACH-DR-RACPC", Via: "alerts@axisbank.com"},
	{Address: "alerts@lichousing.com", Kind: KindDelegate},
}

// DefaultRegistry returns a registry with the built-in institutions
// followed by extra.
func DefaultRegistry(extra []model.InstitutionConfig) (*Registry, error) {
	r := NewRegistry()
	if err := RegisterAll(r, Builtin); err != nil {
		return nil, err
	}
	if err := RegisterAll(r, extra); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterAll adds a strategy to r for each registration, in order.
func RegisterAll(r *Registry, cfgs []model.InstitutionConfig) error {
	for i, cfg := range cfgs {
		s, err := build(r, cfg)
		if err != nil {
			return fmt.Errorf("institution %d (%s): %w", i, cfg.Address, err)
		}
		if cfg.Subject != "" {
			r.RegisterWithSubject(cfg.Address, cfg.Subject, s)
		} else {
			r.Register(cfg.Address, s)
		}
	}
	return nil
}

func build(r *Registry, cfg model.InstitutionConfig) (Strategy, error) {
	switch cfg.Kind {
	case KindAlert:
		p, ok := LookupProfile(cfg.Profile)
		if !ok {
			return nil, fmt.Errorf("unknown alert profile %q", cfg.Profile)
		}
		return NewAlertStrategy(p), nil

	case KindLoanRepayment:
		if cfg.Marker == "" || cfg.Via == "" {
			return nil, fmt.Errorf("loan repayment needs marker and via")
		}
		name := cfg.Name
		if name == "" {
			name = cfg.Address
		}
		return &LoanRepaymentStrategy{
			Name:     name,
			Markers:  map[string]string{normalizeAddress(cfg.Via): cfg.Marker},
			Registry: r,
		}, nil

	case KindDelegate:
		return &DelegatingStrategy{Address: cfg.Address, Registry: r}, nil

	default:
		return nil, fmt.Errorf("unknown strategy kind %q", cfg.Kind)
	}
}
