package types

// Tier is the named subscription level determining the daily message limit.
type Tier string

const (
	TierBase    Tier = "Base"
	TierPlus    Tier = "Plus"
	TierProPlus Tier = "Pro Plus"
)

// IsValid reports whether the tier is one of the known levels.
func (t Tier) IsValid() bool {
	switch t {
	case TierBase, TierPlus, TierProPlus:
		return true
	}
	return false
}

// MessageRole identifies the author side of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	// RoleSystem appears only in provider payloads, never in stored transcripts.
	RoleSystem MessageRole = "system"
)

// IsValid reports whether the role is one of the two transcript roles.
func (r MessageRole) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}
