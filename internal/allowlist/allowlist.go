// Package allowlist decides which chat/user pairs may interact with the bot.
package allowlist

// Policy is the read-only pair of allowed chat and user identifiers,
// built once at startup.
type Policy struct {
	chats map[int64]struct{}
	users map[int64]struct{}
}

// NewPolicy creates a policy from the configured identifier lists.
func NewPolicy(chatIDs, userIDs []int64) *Policy {
	p := &Policy{
		chats: make(map[int64]struct{}, len(chatIDs)),
		users: make(map[int64]struct{}, len(userIDs)),
	}
	for _, id := range chatIDs {
		p.chats[id] = struct{}{}
	}
	for _, id := range userIDs {
		p.users[id] = struct{}{}
	}
	return p
}

// CanInteract reports whether both the chat and the user are allow-listed.
// Empty lists deny everything.
func (p *Policy) CanInteract(chatID, userID int64) bool {
	_, chatOK := p.chats[chatID]
	_, userOK := p.users[userID]
	return chatOK && userOK
}
