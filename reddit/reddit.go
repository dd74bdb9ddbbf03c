// Package reddit fetches and parses Reddit comment threads into a clean
// in-memory tree.
package reddit

import (
	"fmt"
)

// Comment is a single node in a comment tree. Replies are owned exclusively
// by their parent. ParentID is empty for top-level comments.
type Comment struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Content   string     `json:"content"`
	Score     int        `json:"score"`
	Depth     int        `json:"depth"`
	ParentID  string     `json:"parent_id,omitempty"`
	Replies   []*Comment `json:"replies"`
	IsAI      bool       `json:"is_ai"`
	Archetype string     `json:"archetype_used,omitempty"`
}

type Post struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Author       string `json:"author"`
	Subreddit    string `json:"subreddit"`
	Score        int    `json:"score"`
	CommentCount int    `json:"comment_count"`
}

// Thread is a parsed Reddit post together with its top-level comments.
type Thread struct {
	Post     *Post      `json:"post"`
	Comments []*Comment `json:"comments"`
}

type ParseError struct {
	Reason string
}

func (err ParseError) Error() string {
	return fmt.Sprintf("malformed reddit data: %s", err.Reason)
}

// Flatten returns every comment in the tree in depth-first order.
func Flatten(comments []*Comment) []*Comment {
	flat := make([]*Comment, 0, len(comments))
	for _, comment := range comments {
		flat = append(flat, comment)
		flat = append(flat, Flatten(comment.Replies)...)
	}

	return flat
}

// Count returns the total number of comments including nested replies.
func Count(comments []*Comment) int {
	return len(Flatten(comments))
}
