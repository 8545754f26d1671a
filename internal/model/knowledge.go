// Package model defines the core knowledge and posting data types.
package model

import "time"

// ClusterTopic is one theme derived by re-clustering the corpus.
type ClusterTopic struct {
	ID       int      `json:"id"`
	Theme    string   `json:"theme"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// ClusterSet is the on-disk shape of the cluster file.
type ClusterSet struct {
	Clusters []ClusterTopic `json:"clusters"`
}

// ResearchResult is the structured payload returned by a research call.
type ResearchResult struct {
	Overview string `json:"overview"`
	Details  string `json:"details"`
	Trends   string `json:"trends"`
	Tweet    string `json:"tweet"`
}

// KnowledgeEntry records one completed research cycle.
type KnowledgeEntry struct {
	ID            string         `json:"id"`
	TopicID       int            `json:"topic_id"`
	Theme         string         `json:"theme"`
	Keywords      []string       `json:"keywords,omitempty"`
	GeneratedText string         `json:"generated_text"`
	Research      ResearchResult `json:"research"`
	RawResponse   string         `json:"raw_response,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// KnowledgeFile is the on-disk shape of a knowledge log.
type KnowledgeFile struct {
	Entries []KnowledgeEntry `json:"knowledge_entries"`
}

// Concept is a higher-level idea synthesized from recent knowledge.
type Concept struct {
	Name        string    `json:"name"`
	Summary     string    `json:"summary"`
	Components  []string  `json:"components"`
	Implication string    `json:"implication"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Post statuses recorded in the history.
const (
	StatusPosted  = "posted"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// PostHistoryEntry is one line of the posting audit log.
type PostHistoryEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Theme     string    `json:"theme"`
	Text      string    `json:"text"`
	PostID    *string   `json:"post_id"`
	Status    string    `json:"status"`
}

// ValidStatuses are the allowed post statuses.
var ValidStatuses = map[string]bool{
	StatusPosted:  true,
	StatusSkipped: true,
	StatusFailed:  true,
}
