package domain

import (
	"fmt"
	"strings"
)

// ActionKind is a write-type operation that requires a Pro subscription.
// The zero value means no specific action was supplied.
type ActionKind string

const (
	ActionNone       ActionKind = ""
	ActionSave       ActionKind = "save"
	ActionCreate     ActionKind = "create"
	ActionUpdate     ActionKind = "update"
	ActionDelete     ActionKind = "delete"
	ActionPublish    ActionKind = "publish"
	ActionDownload   ActionKind = "download"
	ActionExport     ActionKind = "export"
	ActionSubmit     ActionKind = "submit"
	ActionSend       ActionKind = "send"
	ActionGenerate   ActionKind = "generate"
	ActionActivate   ActionKind = "activate"
	ActionDeactivate ActionKind = "deactivate"
)

var allActions = []ActionKind{
	ActionSave,
	ActionCreate,
	ActionUpdate,
	ActionDelete,
	ActionPublish,
	ActionDownload,
	ActionExport,
	ActionSubmit,
	ActionSend,
	ActionGenerate,
	ActionActivate,
	ActionDeactivate,
}

// AllActions returns every gated action in declaration order.
func AllActions() []ActionKind {
	out := make([]ActionKind, len(allActions))
	copy(out, allActions)
	return out
}

// ParseAction converts user input into an ActionKind.
// An empty string yields ActionNone.
func ParseAction(s string) (ActionKind, error) {
	a := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	if a == ActionNone || a.Valid() {
		return a, nil
	}
	return ActionNone, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Valid reports whether a is one of the gated actions.
func (a ActionKind) Valid() bool {
	_, ok := a.label()
	return ok
}

// Label returns the lower-case verb used in user-facing messages.
// ActionNone and unknown values return an empty string.
func (a ActionKind) Label() string {
	l, _ := a.label()
	return l
}

func (a ActionKind) label() (string, bool) {
	switch a {
	case ActionSave:
		return "save", true
	case ActionCreate:
		return "create", true
	case ActionUpdate:
		return "update", true
	case ActionDelete:
		return "delete", true
	case ActionPublish:
		return "publish", true
	case ActionDownload:
		return "download", true
	case ActionExport:
		return "export", true
	case ActionSubmit:
		return "submit", true
	case ActionSend:
		return "send", true
	case ActionGenerate:
		return "generate", true
	case ActionActivate:
		return "activate", true
	case ActionDeactivate:
		return "deactivate", true
	default:
		return "", false
	}
}

func (a ActionKind) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}
