package reddit

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

const (
	kindListing = "Listing"
	kindComment = "t1"
	kindPost    = "t3"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []listingChild `json:"children"`
	} `json:"data"`
}

type listingChild struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type rawPost struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Selftext    string `json:"selftext"`
	Author      string `json:"author"`
	Subreddit   string `json:"subreddit"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`
	IsSelf      bool   `json:"is_self"`
	URL         string `json:"url"`
}

type rawComment struct {
	ID      string          `json:"id"`
	Author  string          `json:"author"`
	Body    string          `json:"body"`
	Score   int             `json:"score"`
	Replies json.RawMessage `json:"replies"`
}

// ParseThread parses a raw Reddit JSON payload (the two-listing array returned
// by appending .json to a post URL) into a Thread. Non-comment entries such as
// "load more" stubs are dropped. A structurally malformed payload fails the
// whole parse with ParseError; partial trees are never returned.
func ParseThread(raw []byte) (*Thread, error) {
	var listings []listing

	err := json.Unmarshal(raw, &listings)
	if err != nil {
		return nil, ParseError{Reason: fmt.Sprintf("payload is not a listing array: %v", err)}
	}

	if len(listings) < 2 {
		return nil, ParseError{Reason: "expected post and comment listings"}
	}

	if listings[0].Kind != kindListing || listings[1].Kind != kindListing {
		return nil, ParseError{Reason: "unexpected listing kinds"}
	}

	if len(listings[0].Data.Children) == 0 {
		return nil, ParseError{Reason: "post listing is empty"}
	}

	postChild := listings[0].Data.Children[0]
	if postChild.Kind != kindPost {
		return nil, ParseError{Reason: fmt.Sprintf("expected post entry, got kind %q", postChild.Kind)}
	}

	post, err := parsePost(postChild.Data)
	if err != nil {
		return nil, err
	}

	comments := make([]*Comment, 0, len(listings[1].Data.Children))

	for _, child := range listings[1].Data.Children {
		if child.Kind != kindComment {
			continue
		}

		comment, err := parseComment(child.Data, 0, "")
		if err != nil {
			return nil, err
		}

		comments = append(comments, comment)
	}

	return &Thread{Post: post, Comments: comments}, nil
}

func parsePost(data json.RawMessage) (*Post, error) {
	var raw rawPost

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, ParseError{Reason: fmt.Sprintf("invalid post entry: %v", err)}
	}

	if raw.ID == "" {
		return nil, ParseError{Reason: "post missing id"}
	}

	content := raw.Selftext
	if content == "" && !raw.IsSelf && raw.URL != "" {
		// Link post with no selftext: surface the target URL as the body.
		content = raw.URL
	}

	author := raw.Author
	if author == "" {
		author = "[deleted]"
	}

	return &Post{
		ID:           raw.ID,
		Title:        raw.Title,
		Content:      html.UnescapeString(content),
		Author:       author,
		Subreddit:    raw.Subreddit,
		Score:        raw.Score,
		CommentCount: raw.NumComments,
	}, nil
}

func parseComment(data json.RawMessage, depth int, parentID string) (*Comment, error) {
	var raw rawComment

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, ParseError{Reason: fmt.Sprintf("invalid comment entry: %v", err)}
	}

	if raw.ID == "" {
		return nil, ParseError{Reason: "comment missing id"}
	}

	author := raw.Author
	if author == "" {
		author = "[deleted]"
	}

	comment := &Comment{
		ID:       raw.ID,
		Author:   author,
		Content:  strings.TrimSpace(html.UnescapeString(raw.Body)),
		Score:    raw.Score,
		Depth:    depth,
		ParentID: parentID,
		Replies:  []*Comment{},
	}

	// The replies field is either an empty string or a nested listing.
	if len(raw.Replies) > 0 && raw.Replies[0] == '{' {
		var replies listing

		err := json.Unmarshal(raw.Replies, &replies)
		if err != nil {
			return nil, ParseError{Reason: fmt.Sprintf("invalid replies listing for comment %q: %v", raw.ID, err)}
		}

		for _, child := range replies.Data.Children {
			if child.Kind != kindComment {
				continue
			}

			reply, err := parseComment(child.Data, depth+1, raw.ID)
			if err != nil {
				return nil, err
			}

			comment.Replies = append(comment.Replies, reply)
		}
	}

	return comment, nil
}
