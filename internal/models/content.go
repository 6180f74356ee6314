package models

// ContentType identifies the marketplace surface a piece of content came from.
type ContentType string

const (
	ContentTypeListing ContentType = "listing"
	ContentTypePost    ContentType = "post"
	ContentTypeComment ContentType = "comment"
	ContentTypeMessage ContentType = "message"
	ContentTypeProfile ContentType = "profile"
)

// ContentItem is a single piece of user-generated content submitted for
// classification. Metadata is opaque to the classifier and carried through
// to the queue for reviewers.
type ContentItem struct {
	ID       string            `json:"id"`
	Type     ContentType       `json:"type"`
	Content  string            `json:"content"`
	Images   []string          `json:"images,omitempty"`
	UserID   string            `json:"user_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
