// Package prompt builds the upgrade prompt shown when an action is denied.
// It only presents; it never evaluates entitlement itself.
package prompt

import "github.com/felixgeelhaar/vyora/internal/entitlement/domain"

// Defaults for the Pro offer.
const (
	DefaultRoute         = "/vendor/account"
	DefaultPrice         = "₹399"
	DefaultBillingPeriod = "month"
	DefaultOfferLabel    = "Special Offer"

	Title        = "Upgrade to Pro"
	UpgradeLabel = "Upgrade Now"
	DismissLabel = "Maybe Later"

	// fallbackLabel fills the headline when no action triggered the prompt.
	fallbackLabel = "perform this action"
)

// DefaultBenefits lists what the Pro plan unlocks.
var DefaultBenefits = []string{
	"Unlimited saves & exports",
	"Publish your mini website",
	"Full POS & order management",
	"Advanced analytics & reports",
	"Marketing & greeting cards",
	"Priority support",
}

// Config customizes the offer shown in the prompt.
type Config struct {
	Price         string
	BillingPeriod string
	Route         string
	OfferLabel    string
	Benefits      []string
}

// DefaultConfig returns the standard Pro offer.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Price == "" {
		c.Price = DefaultPrice
	}
	if c.BillingPeriod == "" {
		c.BillingPeriod = DefaultBillingPeriod
	}
	if c.Route == "" {
		c.Route = DefaultRoute
	}
	if c.OfferLabel == "" {
		c.OfferLabel = DefaultOfferLabel
	}
	if len(c.Benefits) == 0 {
		c.Benefits = DefaultBenefits
	}
	return c
}

// UpgradePrompt is the presentation model of the upgrade dialog.
type UpgradePrompt struct {
	Action       domain.ActionKind `json:"action,omitempty"`
	Title        string            `json:"title"`
	Headline     string            `json:"headline"`
	Benefits     []string          `json:"benefits"`
	OfferLabel   string            `json:"offerLabel"`
	Price        string            `json:"price"`
	UpgradeLabel string            `json:"upgradeLabel"`
	DismissLabel string            `json:"dismissLabel"`
	Route        string            `json:"route"`
}

// New builds the prompt for action. ActionNone gives a generic headline.
func New(action domain.ActionKind, cfg Config) UpgradePrompt {
	cfg = cfg.withDefaults()
	benefits := make([]string, len(cfg.Benefits))
	copy(benefits, cfg.Benefits)

	return UpgradePrompt{
		Action:       action,
		Title:        Title,
		Headline:     Headline(action),
		Benefits:     benefits,
		OfferLabel:   cfg.OfferLabel,
		Price:        cfg.Price + "/" + cfg.BillingPeriod,
		UpgradeLabel: UpgradeLabel,
		DismissLabel: DismissLabel,
		Route:        cfg.Route,
	}
}

// Headline returns the prompt headline for action.
func Headline(action domain.ActionKind) string {
	label := action.Label()
	if label == "" {
		label = fallbackLabel
	}
	return "Upgrade to Pro to " + label + " this feature."
}
