package domain

import "time"

// MemberRecord is the per-guild activity record for one member.
// PK: guild_id, SK: member_id. Created lazily on the first point award and
// never deleted. Version is an optimistic-concurrency counter: every save
// asserts the version it read, so concurrent award sources (voice tick,
// voice leave, thanks) cannot overwrite each other's points.
type MemberRecord struct {
	GuildID   string    `json:"guild_id" dynamodbav:"guild_id"`
	MemberID  string    `json:"member_id" dynamodbav:"member_id"`
	Username  string    `json:"username" dynamodbav:"username"`
	Points    int       `json:"points" dynamodbav:"points"`
	Level     int       `json:"level" dynamodbav:"level"`
	Version   int64     `json:"version" dynamodbav:"version"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// GuildMember is a gateway-side view of a member, enough for point awards
// and admin notification. Bot accounts never earn points or receive
// approval prompts.
type GuildMember struct {
	ID       string
	Username string
	Bot      bool
}
