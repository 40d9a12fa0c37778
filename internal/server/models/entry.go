package models

import "time"

// Entry is the display-ready aggregate of one notebook entry with all of its
// related rows folded in. Authors, Tags and Images are deduplicated; an entry
// with none of them still has empty (non-nil) slices.
type Entry struct {
	ID          int64
	WhatDid     string
	WhatLearned string
	Milestone   bool
	CreatorName string
	CreatedAt   time.Time
	Project     string // empty when the entry has no project link
	Authors     []string
	Tags        []string
	Images      []FileRef
}

// User is one row of the users table. Passwords are bcrypt hashes; rows
// created implicitly by the identity resolver carry a placeholder value.
type User struct {
	ID       int64
	Name     string
	Password string
}

// Project is one row of the projects table.
type Project struct {
	ID   int64
	Name string
}

// Tag is one row of the tags table.
type Tag struct {
	ID   int64
	Name string
}

// Image is one row of the img table.
type Image struct {
	ID        int64
	Name      string
	URL       string
	CreatedAt time.Time
}
