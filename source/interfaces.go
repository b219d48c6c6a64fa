package source

import "context"

// Connector fetches raw conversational data from an upstream workspace on
// behalf of one tenant. A Connector instance is already bound to resolved
// credentials; it never sees tenant ids. Implementations must be thread-safe
// for concurrent per-channel fetches.
type Connector interface {
	// ListChannels returns every channel visible to the bound credentials.
	// Pagination against the upstream is handled internally.
	ListChannels(ctx context.Context) ([]Channel, error)

	// FetchMessages returns one page of channel history, newest first.
	// Callers loop on MessagePage.NextCursor until HasMore is false.
	FetchMessages(ctx context.Context, channelID string, opts FetchOptions) (*MessagePage, error)

	// FetchThreadReplies returns all replies under a thread parent, excluding
	// the parent itself.
	FetchThreadReplies(ctx context.Context, channelID, threadID string) ([]RawMessage, error)

	// GetUser resolves an author id to a directory entry.
	GetUser(ctx context.Context, userID string) (*User, error)
}

// ConnectorFactory builds a Connector from a resolved credential token.
// The sync orchestrator resolves per tenant, then constructs per job.
type ConnectorFactory func(token string) (Connector, error)

// CredentialResolver turns a tenant id into a usable connection token.
// Implementations decide how sealed credentials are opened; the rest of the
// system only ever forwards the resolved token and never logs it.
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID string) (string, error)
}

// ResolverFunc adapts a plain function to the CredentialResolver interface.
type ResolverFunc func(ctx context.Context, tenantID string) (string, error)

// Resolve implements CredentialResolver.
func (f ResolverFunc) Resolve(ctx context.Context, tenantID string) (string, error) {
	return f(ctx, tenantID)
}
