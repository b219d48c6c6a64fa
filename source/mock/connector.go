package mock

import (
	"context"
	"strconv"
	"sync"

	"github.com/hearsaylabs/hearsay/source"
)

// Connector is a test double for source.Connector backed by an in-memory
// dataset. Behavior can be overridden per call site via function fields,
// matching the style of ai/mock.
type Connector struct {
	// ListChannelsFunc is called by ListChannels if set.
	ListChannelsFunc func(ctx context.Context) ([]source.Channel, error)

	// FetchMessagesFunc is called by FetchMessages if set.
	FetchMessagesFunc func(ctx context.Context, channelID string, opts source.FetchOptions) (*source.MessagePage, error)

	// FetchThreadRepliesFunc is called by FetchThreadReplies if set.
	FetchThreadRepliesFunc func(ctx context.Context, channelID, threadID string) ([]source.RawMessage, error)

	// GetUserFunc is called by GetUser if set.
	GetUserFunc func(ctx context.Context, userID string) (*source.User, error)

	// ChannelErrs maps channel ids to errors returned by FetchMessages,
	// for simulating partial per-channel failures.
	ChannelErrs map[string]error

	// PageSize is the default pagination size when FetchOptions.PageSize
	// is zero. Defaults to 100.
	PageSize int

	mu       sync.Mutex
	channels []source.Channel
	messages map[string][]source.RawMessage
	replies  map[string][]source.RawMessage
	users    map[string]source.User

	fetchCalls int
}

// NewConnector creates an empty mock connector.
// Note: returns the concrete type so tests can seed data and assert on calls.
func NewConnector() *Connector {
	return &Connector{
		ChannelErrs: map[string]error{},
		PageSize:    100,
		messages:    map[string][]source.RawMessage{},
		replies:     map[string][]source.RawMessage{},
		users:       map[string]source.User{},
	}
}

// AddChannel registers a channel and its message history.
func (m *Connector) AddChannel(ch source.Channel, msgs ...source.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.messages[ch.ID] = append(m.messages[ch.ID], msgs...)
}

// AddThread registers replies for a thread parent.
func (m *Connector) AddThread(threadID string, replies ...source.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[threadID] = append(m.replies[threadID], replies...)
}

// AddUser registers a directory entry.
func (m *Connector) AddUser(u source.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// FetchCalls reports how many times FetchMessages ran.
func (m *Connector) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

// ListChannels returns the seeded channels.
func (m *Connector) ListChannels(ctx context.Context) ([]source.Channel, error) {
	if m.ListChannelsFunc != nil {
		return m.ListChannelsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]source.Channel, len(m.channels))
	copy(out, m.channels)
	return out, nil
}

// FetchMessages pages through the seeded history for a channel.
// The cursor is the numeric offset into the channel's message slice.
func (m *Connector) FetchMessages(ctx context.Context, channelID string, opts source.FetchOptions) (*source.MessagePage, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()

	if m.FetchMessagesFunc != nil {
		return m.FetchMessagesFunc(ctx, channelID, opts)
	}
	if err := m.ChannelErrs[channelID]; err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all, ok := m.messages[channelID]
	if !ok {
		return nil, source.ErrChannelNotFound
	}

	var filtered []source.RawMessage
	for _, msg := range all {
		if !opts.Oldest.IsZero() && msg.CreatedAt.Before(opts.Oldest) {
			continue
		}
		filtered = append(filtered, msg)
	}

	offset := 0
	if opts.Cursor != "" {
		n, err := strconv.Atoi(opts.Cursor)
		if err != nil {
			return nil, source.ErrUnavailable
		}
		offset = n
	}
	size := opts.PageSize
	if size <= 0 {
		size = m.PageSize
	}

	if offset >= len(filtered) {
		return &source.MessagePage{}, nil
	}
	end := offset + size
	if end > len(filtered) {
		end = len(filtered)
	}

	page := &source.MessagePage{
		Messages: append([]source.RawMessage(nil), filtered[offset:end]...),
	}
	if end < len(filtered) {
		page.NextCursor = strconv.Itoa(end)
		page.HasMore = true
	}
	return page, nil
}

// FetchThreadReplies returns seeded replies for a thread, excluding the parent.
func (m *Connector) FetchThreadReplies(ctx context.Context, channelID, threadID string) ([]source.RawMessage, error) {
	if m.FetchThreadRepliesFunc != nil {
		return m.FetchThreadRepliesFunc(ctx, channelID, threadID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]source.RawMessage(nil), m.replies[threadID]...), nil
}

// GetUser resolves a seeded directory entry.
func (m *Connector) GetUser(ctx context.Context, userID string) (*source.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, source.ErrUnavailable
	}
	return &u, nil
}
