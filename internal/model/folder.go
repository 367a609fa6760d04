// Package model defines the data structures used throughout the application.
//
// Folders and cards are plain structs. The `json:"..."` tags define the wire
// shape of every API response; fields tagged `json:"-"` stay server-side.
package model

import "time"

// Folder is a hierarchical container. ParentID is nil for root folders.
//
// Position is the manual sort key among siblings (folders sharing the same
// ParentID). Lower positions come first; ties are broken by ID.
type Folder struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FolderNode is one node of the nested tree returned by the read APIs.
//
//	{"id":1,"name":"A","cards":[...],"children":[...]}
//
// Cards and Children are never nil so they always encode as JSON arrays.
type FolderNode struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Cards    []CardNode    `json:"cards"`
	Children []*FolderNode `json:"children"`
}

// CardNode is the compact card shape embedded in a FolderNode.
type CardNode struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"image_url,omitempty"`
}
