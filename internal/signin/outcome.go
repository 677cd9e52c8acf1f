// Package signin gates routes behind a signed-in session and completes provider callbacks.
package signin

const (
	// HomePath is where denied and signed-out visitors land.
	HomePath = "/"
	// UsersPath is the gated listing reached after signing in.
	UsersPath = "/users"

	NoticeSignInRequired = "You need to sign in before you can go there!"
	NoticeSignedIn       = "Thanks for logging in!"
	NoticeSignedOut      = "See ya!"
)

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeProceed OutcomeKind = iota
	OutcomeRedirect
)

// Outcome tells the route layer whether to continue or to redirect with a notice.
type Outcome struct {
	Kind   OutcomeKind
	Target string
	Notice string
}

// Proceed lets the caller continue handling the request.
func Proceed() Outcome {
	return Outcome{Kind: OutcomeProceed}
}

// Redirect stops the caller and sends the browser to target, showing notice on the next page.
func Redirect(target, notice string) Outcome {
	return Outcome{Kind: OutcomeRedirect, Target: target, Notice: notice}
}

// Proceeds reports whether the caller may continue.
func (o Outcome) Proceeds() bool {
	return o.Kind == OutcomeProceed
}
