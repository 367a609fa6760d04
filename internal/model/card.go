package model

import "time"

// Card is a leaf content item owned by exactly one folder.
//
// ImageKey is the storage key of the attached image ("" when none). It is
// persisted but never serialized. ImageURL is derived from ImageKey at read
// time by the service layer and is never written to the database.
type Card struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FolderID  int64     `json:"folder_id"`
	Position  int       `json:"position"`
	ImageKey  string    `json:"-"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasImage reports whether an image is attached.
func (c *Card) HasImage() bool {
	return c.ImageKey != ""
}

// Node returns the compact tree representation of the card.
func (c *Card) Node() CardNode {
	return CardNode{
		ID:       c.ID,
		Title:    c.Title,
		Body:     c.Body,
		ImageURL: c.ImageURL,
	}
}
