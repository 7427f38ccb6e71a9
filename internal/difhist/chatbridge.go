package difhist

import "sync"

// ChatStateBridge decouples the engine from whatever container holds the
// conversational chat state. The engine only needs to read which chat and
// user turn are active, and to publish the pending diff back into that
// container; it never interprets chat content itself.
type ChatStateBridge interface {
	// ActiveChatID returns the id of the chat currently in progress, or
	// ok=false if no chat is active.
	ActiveChatID() (id string, ok bool)
	// LastUserMessageID returns the id of the most recent user turn, or
	// ok=false if none has happened yet.
	LastUserMessageID() (id string, ok bool)
	// PublishPendingEdits replaces the active chat's pending-edits field
	// verbatim with diffs.
	PublishPendingEdits(diffs []FileDiff)
}

// InMemoryChatStateBridge is a default ChatStateBridge suitable for a
// single-process CLI session: the active chat/message ids are set
// explicitly by the caller driving the conversation loop, and published
// diffs are held for inspection (e.g. by a `taskwing diff status` command).
type InMemoryChatStateBridge struct {
	mu            sync.RWMutex
	chatID        string
	userMessageID string
	pending       []FileDiff
}

// NewInMemoryChatStateBridge returns an empty bridge with no active chat.
func NewInMemoryChatStateBridge() *InMemoryChatStateBridge {
	return &InMemoryChatStateBridge{}
}

// SetActiveChat records the chat and user-message id currently in
// progress. Call this at the start of every user turn before pushing any
// snapshot.
func (b *InMemoryChatStateBridge) SetActiveChat(chatID, userMessageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatID = chatID
	b.userMessageID = userMessageID
}

func (b *InMemoryChatStateBridge) ActiveChatID() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.chatID, b.chatID != ""
}

func (b *InMemoryChatStateBridge) LastUserMessageID() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.userMessageID, b.userMessageID != ""
}

func (b *InMemoryChatStateBridge) PublishPendingEdits(diffs []FileDiff) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = diffs
}

// PendingEdits returns the most recently published diff.
func (b *InMemoryChatStateBridge) PendingEdits() []FileDiff {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pending
}
