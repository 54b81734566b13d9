package model

// PostCreatedEvent is emitted exactly once per successful post ingest, after
// the post row is durable (write-then-publish). The transport delivers it
// at-least-once; consumers must be idempotent.
type PostCreatedEvent struct {
	PostId   string `json:"postId"`
	AuthorId string `json:"authorId"`
	Title    string `json:"title"`
}
