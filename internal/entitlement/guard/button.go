package guard

import (
	"context"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/prompt"
)

// Button is a control that checks entitlement before running its action.
type Button struct {
	guard   *Guard
	action  domain.ActionKind
	text    string
	onPress Handler
}

// NewButton creates a button. ActionNone means save.
func NewButton(g *Guard, text string, action domain.ActionKind, onPress Handler) *Button {
	return &Button{
		guard:   g,
		action:  defaultAction(action),
		text:    text,
		onPress: onPress,
	}
}

// Action returns the gated action.
func (b *Button) Action() domain.ActionKind {
	return b.action
}

// Locked reports whether pressing the button would be denied.
func (b *Button) Locked() bool {
	return !b.guard.Entitled()
}

// Label returns the button text, with a lock glyph when locked.
func (b *Button) Label() string {
	if b.Locked() {
		return prompt.LockLabel(b.text)
	}
	return b.text
}

// Press runs the action when allowed and reports whether it ran.
// Errors from the action are returned unchanged.
func (b *Button) Press(ctx context.Context) (bool, error) {
	if d := b.guard.check(ctx, b.action, domain.SurfaceButton); !d.Allowed {
		return false, nil
	}
	if b.onPress == nil {
		return true, nil
	}
	return true, b.onPress(ctx)
}
