package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Aggregate is a merged notification: one or more actors' contributions of
// the same type against the same target, within the merge window. The
// message is derived at read time, never stored.
type Aggregate struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	RecipientID uuid.UUID      `db:"recipient_id" json:"recipient_id"`
	Type        string         `db:"type" json:"type"`
	TargetKey   string         `db:"target_key" json:"target_key"`
	ActorIDs    pq.StringArray `db:"actor_ids" json:"actor_ids"`
	Count       int            `db:"count" json:"count"`
	SenderID    uuid.UUID      `db:"sender_id" json:"sender_id"`
	IsRead      bool           `db:"is_read" json:"is_read"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// HasActor reports whether the actor already contributed
func (a *Aggregate) HasActor(actorID uuid.UUID) bool {
	s := actorID.String()
	for _, id := range a.ActorIDs {
		if id == s {
			return true
		}
	}
	return false
}

// AddActor appends a contribution; the newest actor becomes the sender
func (a *Aggregate) AddActor(actorID uuid.UUID, now time.Time) {
	a.ActorIDs = append(a.ActorIDs, actorID.String())
	a.Count = len(a.ActorIDs)
	a.SenderID = actorID
	a.UpdatedAt = now
}

// RemoveActor drops a contribution. When actors remain, the most recently
// added one becomes the sender. Returns false if the actor was not present.
func (a *Aggregate) RemoveActor(actorID uuid.UUID, now time.Time) bool {
	s := actorID.String()
	idx := -1
	for i, id := range a.ActorIDs {
		if id == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	a.ActorIDs = append(a.ActorIDs[:idx], a.ActorIDs[idx+1:]...)
	a.Count = len(a.ActorIDs)
	a.UpdatedAt = now
	if a.Count > 0 {
		last, err := uuid.Parse(a.ActorIDs[a.Count-1])
		if err == nil {
			a.SenderID = last
		}
	}
	return true
}
