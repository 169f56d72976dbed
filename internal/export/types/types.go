package types

import "time"

// CycleRecord is one war poll cycle in an archive.
type CycleRecord struct {
	ID          int64
	ScheduledAt time.Time
	OpenedAt    time.Time
	ClosesAt    time.Time
	ClosedAt    time.Time
	Status      string
	Reminders   int
	ResetBy     uint64
	Yes         int
	No          int
	Tentative   int
}

// ParticipantRecord is one member's answer to a cycle.
type ParticipantRecord struct {
	CycleID     int64
	MemberID    uint64
	Response    string
	RespondedAt time.Time
}

// Archive holds everything exported for a guild.
type Archive struct {
	GuildID      uint64
	ExportedAt   time.Time
	Cycles       []*CycleRecord
	Participants []*ParticipantRecord
}
