// Package tier maps a PGT holding onto the reward tier ladder.
package tier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is ordered: Base < Silver < Gold < Platinum.
type Tier int

const (
	Base Tier = iota
	Silver
	Gold
	Platinum
)

var ErrUnknownTier = errors.New("UNKNOWN_TIER")

var names = [...]string{
	Base:     "base",
	Silver:   "silver",
	Gold:     "gold",
	Platinum: "platinum",
}

// All lists the tiers in ascending order.
func All() []Tier {
	return []Tier{Base, Silver, Gold, Platinum}
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return names[t]
}

func (t Tier) Valid() bool {
	return t >= Base && t <= Platinum
}

// AtLeast reports whether t meets or exceeds required.
func (t Tier) AtLeast(required Tier) bool {
	return t >= required
}

// ParseTier accepts the tier names case-insensitively.
func ParseTier(s string) (Tier, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == needle {
			return Tier(i), nil
		}
	}
	return Base, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTier, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Thresholds are inclusive lower bounds in whole token units.
type Thresholds struct {
	Silver   decimal.Decimal
	Gold     decimal.Decimal
	Platinum decimal.Decimal
}

// DefaultThresholds returns the launch ladder.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Silver:   decimal.NewFromInt(333334),
		Gold:     decimal.NewFromInt(1666667),
		Platinum: decimal.NewFromInt(3333334),
	}
}

// ParseThresholds builds Thresholds from decimal strings and validates them.
func ParseThresholds(silver, gold, platinum string) (Thresholds, error) {
	var th Thresholds
	var err error

	if th.Silver, err = decimal.NewFromString(silver); err != nil {
		return th, fmt.Errorf("silver threshold: %w", err)
	}
	if th.Gold, err = decimal.NewFromString(gold); err != nil {
		return th, fmt.Errorf("gold threshold: %w", err)
	}
	if th.Platinum, err = decimal.NewFromString(platinum); err != nil {
		return th, fmt.Errorf("platinum threshold: %w", err)
	}
	return th, th.Validate()
}

// Validate requires positive, strictly ascending thresholds.
func (th Thresholds) Validate() error {
	if !th.Silver.IsPositive() {
		return fmt.Errorf("silver threshold must be positive, got %s", th.Silver)
	}
	if !th.Gold.GreaterThan(th.Silver) {
		return fmt.Errorf("gold threshold %s must exceed silver threshold %s", th.Gold, th.Silver)
	}
	if !th.Platinum.GreaterThan(th.Gold) {
		return fmt.Errorf("platinum threshold %s must exceed gold threshold %s", th.Platinum, th.Gold)
	}
	return nil
}

// Classify returns the highest tier whose threshold balance reaches.
// Negative balances classify as Base.
func (th Thresholds) Classify(balance decimal.Decimal) Tier {
	switch {
	case balance.GreaterThanOrEqual(th.Platinum):
		return Platinum
	case balance.GreaterThanOrEqual(th.Gold):
		return Gold
	case balance.GreaterThanOrEqual(th.Silver):
		return Silver
	default:
		return Base
	}
}

// For returns the threshold of a tier; Base is zero.
func (th Thresholds) For(t Tier) decimal.Decimal {
	switch t {
	case Silver:
		return th.Silver
	case Gold:
		return th.Gold
	case Platinum:
		return th.Platinum
	default:
		return decimal.Zero
	}
}
