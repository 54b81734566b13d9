package model

import "time"

/*

Notification is a per-friend record produced by the fanout engine when a post
is created. At most one notification may exist for any (post, recipient)
pair, enforced by a composite unique index, so redelivered events can never
duplicate records.

Notifications may outlive the post they reference: the retention sweep does
not cascade, and readers must tolerate dangling PostId references.

*/
type Notification struct {
	Id          string    `gorm:"primaryKey" json:"id"`
	RecipientId string    `gorm:"index;uniqueIndex:idx_notification_post_recipient" json:"recipientId"`
	PostId      string    `gorm:"uniqueIndex:idx_notification_post_recipient" json:"postId"`
	AuthorId    string    `json:"authorId"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

/*

FanoutMarker records that fanout has completed for a post. It is written in
the same transaction as the notification batch, so its existence is exactly
equivalent to "every notification for this post is persisted". The event
transport is at-least-once; the marker is what makes redelivery a no-op.

*/
type FanoutMarker struct {
	PostId        string    `gorm:"primaryKey" json:"postId"`
	NotifiedCount int       `json:"notifiedCount"`
	CreatedAt     time.Time `json:"createdAt"`
}
