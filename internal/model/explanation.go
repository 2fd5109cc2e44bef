package model

import "time"

// ExplanationContent is the structured payload produced by a model for a
// topic. All fields except Formula must be present and non-empty for the
// content to be servable; Verified is set by the verification pass.
type ExplanationContent struct {
	OneLine      string `json:"one_line"`
	Explanation  string `json:"explanation"`
	Analogy      string `json:"analogy"`
	Example      string `json:"example"`
	Formula      string `json:"formula"`
	RevisionNote string `json:"revision_note"`
	Verified     bool   `json:"verified,omitempty"`
}

// Explanation is the durable record for a normalized topic. At most one
// row exists per topic; writes are upserts.
type Explanation struct {
	ID          string             `json:"id"`
	Topic       string             `json:"topic"`
	Content     ExplanationContent `json:"content"`
	SourceModel string             `json:"source_model"`
	Verified    bool               `json:"verified"`
	Uses        int64              `json:"uses"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	LastUsed    time.Time          `json:"last_used"`
}
