package domain

// GenericRestrictedMessage is shown when no action was specified.
const GenericRestrictedMessage = "Upgrade to Pro to save, publish, or download this feature."

// Decision is the outcome of a single gating evaluation.
type Decision struct {
	Allowed           bool   `json:"allowed"`
	Message           string `json:"message"`
	ShowUpgradePrompt bool   `json:"showUpgradePrompt"`
}

// Evaluate is the gating rule. Entitled tenants are never restricted.
func Evaluate(entitled bool, action ActionKind) Decision {
	if entitled {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed:           false,
		Message:           ActionRestrictedMessage(action),
		ShowUpgradePrompt: true,
	}
}

// ActionRestrictedMessage returns the denial text for action.
func ActionRestrictedMessage(action ActionKind) string {
	if label := action.Label(); label != "" {
		return "Upgrade to Pro to " + label + " this feature."
	}
	return GenericRestrictedMessage
}
