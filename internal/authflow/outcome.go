// Package authflow runs signup, login and logout against the identity
// backend and keeps every signed-in user backed by a profile.
package authflow

import "github.com/wanderher/wanderher/internal/identity"

// Kind says what the caller should do with an Outcome.
type Kind int

const (
	// KindSuccess means render normally.
	KindSuccess Kind = iota
	// KindRedirect means send the browser to Target and stop.
	KindRedirect
	// KindError means show Message (and FieldErrors) and do not redirect.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRedirect:
		return "redirect"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the result of a flow. The HTTP layer applies it: it stores
// Session, clears cookies when ClearSession is set, and then redirects or
// renders Message.
type Outcome struct {
	Kind         Kind
	Target       string
	Message      string
	FieldErrors  map[string]string
	Session      *identity.Session
	ClearSession bool
}

// Redirect returns a redirect Outcome.
func Redirect(target string) Outcome {
	return Outcome{Kind: KindRedirect, Target: target}
}

// Error returns an error Outcome.
func Error(message string) Outcome {
	return Outcome{Kind: KindError, Message: message}
}

// IsRedirect reports whether the caller must redirect.
func (o Outcome) IsRedirect() bool { return o.Kind == KindRedirect }

// IsError reports whether the flow failed.
func (o Outcome) IsError() bool { return o.Kind == KindError }
