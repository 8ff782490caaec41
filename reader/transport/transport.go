// Package transport defines the message boundary between the host and the
// embedded rendering surface.
//
// The link is one-directional per call: the host drives the surface by
// injecting JavaScript statements (Command.Script), and the surface talks
// back through asynchronous JSON messages that decode into Events. There
// are no return values anywhere on this boundary: every interaction is
// fire-and-forget, and every result is a later event correlated by type,
// session id and, where it matters (chunk upload, search), a sequence
// number.
package transport

// Command is a host→surface instruction.
type Command interface {
	// Script renders the command as the JavaScript statement to inject
	// into the surface. The statement must be self-contained and must
	// never throw into the host: surface pages wrap handlers so that
	// failures become {type:"error"} events instead.
	Script() string
}

// Channel is a message link to one rendering surface instance.
//
// Send returns as soon as the command has been handed to the surface; it
// says nothing about surface-side processing. Commands sent on a single
// Channel are delivered in order; the chunk upload protocol depends on
// this. No ordering holds across separate channels.
//
// A Channel must stay closable even when the surface never came up, so a
// stuck session can always be torn down and retried from a clean state.
type Channel interface {
	Send(Command) error
	Events() <-chan Event
	Close() error
}
