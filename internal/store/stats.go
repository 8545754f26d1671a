package store

import (
	"context"
	"time"
)

// Stats holds knowledge and posting counts.
type Stats struct {
	RecentEntries int            `json:"recent_entries"`
	AllEntries    int            `json:"all_entries"`
	Posts         int            `json:"posts"`
	PostsByStatus map[string]int `json:"posts_by_status"`
	LastPostAt    *time.Time     `json:"last_post_at,omitempty"`
}

// CollectStats gathers counts from the two knowledge logs and the history.
func CollectStats(ctx context.Context, recent, all KnowledgeLog, history PostHistory) (*Stats, error) {
	st := &Stats{PostsByStatus: map[string]int{}}

	var err error
	if st.RecentEntries, err = recent.Len(ctx); err != nil {
		return nil, err
	}
	if st.AllEntries, err = all.Len(ctx); err != nil {
		return nil, err
	}

	posts, err := history.All(ctx)
	if err != nil {
		return nil, err
	}
	st.Posts = len(posts)
	for _, p := range posts {
		st.PostsByStatus[p.Status]++
	}
	if n := len(posts); n > 0 {
		ts := posts[n-1].Timestamp
		st.LastPostAt = &ts
	}
	return st, nil
}
