package models

// FileRef describes one uploaded file attached to a submission. URL points at
// the chat platform's private link or, when archival is enabled, at the
// archived copy.
type FileRef struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

// Submission is the canonical record produced from a raw form payload and
// consumed by the entry writer. Field names mirror the wire format the bot
// has always used for its submission dumps.
type Submission struct {
	SubmittingUser string    `json:"submitting_user"`
	SelectedUsers  []string  `json:"selected_users"`
	Category       string    `json:"category"`
	ProjectName    string    `json:"project_name"`
	IsNewProject   bool      `json:"is_new_project"`
	WhatDid        string    `json:"what_did"`
	WhatLearned    string    `json:"what_learned"`
	Milestone      bool      `json:"milestone"`
	Files          []FileRef `json:"files"`
}
