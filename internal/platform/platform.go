package platform

import "context"

// Driver talks to the automation endpoint of one target.
type Driver interface {
	// NewSession creates an automation session described by caps.
	NewSession(ctx context.Context, caps Capabilities) (Session, error)

	// Exec requests fire-and-forget execution of command inside the
	// target's automation environment. A nil error means the request
	// was dispatched; the command's exit status is never reported.
	Exec(ctx context.Context, command string) error
}

// Session is one automation session, scoped to an application or to
// the desktop root.
type Session interface {
	// ID returns the endpoint's session identifier.
	ID() string

	// FindElement returns the first element matching value under the
	// given strategy. It returns an error wrapping ErrNoSuchElement
	// when nothing matches.
	FindElement(ctx context.Context, by By, value string) (Element, error)

	// FindElements returns every matching element, possibly none.
	FindElements(ctx context.Context, by By, value string) ([]Element, error)
}

// Element is a handle on one remote UI element.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error

	// Attribute returns the named attribute, or "" when it is unset.
	Attribute(ctx context.Context, name string) (string, error)
}
