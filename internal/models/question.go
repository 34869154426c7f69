package models

import "time"

// MaxQuestionLength is the maximum question text length in runes.
const MaxQuestionLength = 300

// QuestionStatus is the moderation state of a question.
type QuestionStatus string

const (
	// QuestionPending is reserved for a human review queue; moderation never produces it today.
	QuestionPending  QuestionStatus = "pending"
	QuestionApproved QuestionStatus = "approved"
	QuestionRejected QuestionStatus = "rejected"
)

// Question is an entry on the suggestion board.
type Question struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	IdentityID       string         `gorm:"index;size:36" json:"identity_id"`
	AuthorName       string         `gorm:"size:100" json:"author_name"`
	Text             string         `gorm:"type:text;not null" json:"text"`
	Votes            int64          `json:"votes"`
	VotedIdentityIDs StringList     `gorm:"type:text" json:"voted_identity_ids"`
	Status           QuestionStatus `gorm:"size:16;index;not null" json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// HasVoted reports whether identityID already voted on q.
func (q *Question) HasVoted(identityID string) bool {
	return q.VotedIdentityIDs.Contains(identityID)
}

// Clone returns a deep copy of q.
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	out := *q
	out.VotedIdentityIDs = append(StringList(nil), q.VotedIdentityIDs...)
	return &out
}
