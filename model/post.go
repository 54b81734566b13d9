package model

import "time"

/*

Post is a piece of content a user published.

Id: primary key, generated at creation time
AuthorId: user who created the post, "belongs-to" relation
Title: post's title in plain text
Content: post's content in plain text
ImageUrl: optional public url of an attached image
CreatedAt: server-assigned creation timestamp. This is the one and only
	age-determining field: the retention sweep compares against created_at,
	the same column populated here at creation time.

Posts are immutable after creation and are hard deleted by the retention
sweep, never updated in place.

*/
type Post struct {
	Id        string    `gorm:"primaryKey" json:"id"`
	AuthorId  string    `gorm:"index" json:"authorId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageUrl  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
