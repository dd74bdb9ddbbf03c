// Package mixer assembles game rounds: it trims a real Reddit comment tree to
// a fixed size and weaves in generated comments so that every round contains
// exactly RealTarget real and AITarget synthetic comments.
package mixer

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/jkurtz678/reddit-or-replicant/reddit"
)

const (
	// RealTarget and AITarget fix the round balance. Every assembled tree
	// holds exactly this many real and synthetic comments.
	RealTarget = 8
	AITarget   = 8

	// TopLevelAITarget synthetic comments start their own threads; the rest
	// reply to existing comments.
	TopLevelAITarget = 4

	// Threads stay shallow: replies only attach to comments at depth 0 or 1,
	// and no parent accumulates more than two replies.
	maxParentDepth      = 1
	maxRepliesPerParent = 2
)

// Generator produces synthetic comments. It may return fewer comments than
// requested; the mixer compensates with one follow-up request before failing.
type Generator interface {
	TopLevel(ctx context.Context, post *reddit.Post, real []*reddit.Comment, n int) ([]*reddit.Comment, error)
	Reply(ctx context.Context, post *reddit.Post, thread []*reddit.Comment, parent *reddit.Comment) (*reddit.Comment, error)
}

type InsufficientRealCommentsError struct {
	Have int
}

func (err InsufficientRealCommentsError) Error() string {
	return fmt.Sprintf("thread has %d usable real comments, need %d", err.Have, RealTarget)
}

type InsufficientGenerationError struct {
	Want int
	Got  int
}

func (err InsufficientGenerationError) Error() string {
	return fmt.Sprintf("generated %d synthetic comments after retry, need %d", err.Got, err.Want)
}

type Mixer struct {
	gen Generator
}

func New(gen Generator) *Mixer {
	return &Mixer{gen: gen}
}

// Mix builds the final balanced tree for a post. The rng drives every
// placement decision, so a fixed seed yields an identical tree; assembly runs
// once per submission and the stored result is served verbatim afterwards.
func (m *Mixer) Mix(ctx context.Context, rng *rand.Rand, post *reddit.Post, real []*reddit.Comment) ([]*reddit.Comment, error) {
	roots, selected, err := selectReal(real)
	if err != nil {
		return nil, err
	}

	aiTopLevel, err := m.gen.TopLevel(ctx, post, selected, TopLevelAITarget)
	if err != nil {
		return nil, fmt.Errorf("failed to generate top-level comments: %w", err)
	}

	for _, comment := range aiTopLevel {
		comment.IsAI = true
	}

	aiReplies, err := m.generateReplies(ctx, rng, post, selected, AITarget-len(aiTopLevel))
	if err != nil {
		return nil, err
	}

	// One compensating request bridges generation shortfalls without
	// changing the advertised balance.
	if shortfall := AITarget - len(aiTopLevel) - len(aiReplies); shortfall > 0 {
		extra, err := m.gen.TopLevel(ctx, post, selected, shortfall)
		if err != nil {
			return nil, fmt.Errorf("failed to generate compensating comments: %w", err)
		}

		for _, comment := range extra {
			comment.IsAI = true
		}

		aiTopLevel = append(aiTopLevel, extra...)
	}

	if got := len(aiTopLevel) + len(aiReplies); got != AITarget {
		return nil, InsufficientGenerationError{Want: AITarget, Got: got}
	}

	mixed := assemble(rng, roots, aiTopLevel, aiReplies)
	finalize(mixed, "", 0)

	return mixed, nil
}

// selectReal takes the first RealTarget comments of the flattened tree in
// traversal order and rebuilds them into a tree. A selected comment whose
// parent was not selected is promoted to top level rather than dropped, so
// the subset never contains an orphan. Returns the new roots and the flat
// selection in traversal order.
func selectReal(real []*reddit.Comment) ([]*reddit.Comment, []*reddit.Comment, error) {
	flat := reddit.Flatten(real)
	if len(flat) < RealTarget {
		return nil, nil, InsufficientRealCommentsError{Have: len(flat)}
	}

	byID := make(map[string]*reddit.Comment, RealTarget)
	roots := make([]*reddit.Comment, 0, RealTarget)
	selected := make([]*reddit.Comment, 0, RealTarget)

	// Depth-first order guarantees a parent is visited before its children,
	// so a selected parent is always in byID by the time a child arrives.
	for _, original := range flat[:RealTarget] {
		comment := *original
		comment.Replies = []*reddit.Comment{}
		comment.IsAI = false

		if parent, ok := byID[comment.ParentID]; ok && comment.ParentID != "" {
			parent.Replies = append(parent.Replies, &comment)
		} else {
			comment.ParentID = ""
			roots = append(roots, &comment)
		}

		byID[comment.ID] = &comment
		selected = append(selected, &comment)
	}

	return roots, selected, nil
}

// generateReplies attaches up to want synthetic replies to eligible parents
// among the selected real comments. A failed or malformed generation only
// reduces the count; the caller handles the shortfall.
func (m *Mixer) generateReplies(ctx context.Context, rng *rand.Rand, post *reddit.Post, selected []*reddit.Comment, want int) ([]*reddit.Comment, error) {
	replies := make([]*reddit.Comment, 0, want)
	added := make(map[string]int)

	for range want {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled: %w", err)
		}

		eligible := make([]*reddit.Comment, 0, len(selected))
		for _, comment := range selected {
			if comment.Depth <= maxParentDepth && len(comment.Replies)+added[comment.ID] < maxRepliesPerParent {
				eligible = append(eligible, comment)
			}
		}

		if len(eligible) == 0 {
			break
		}

		parent := eligible[rng.Intn(len(eligible))]

		reply, err := m.gen.Reply(ctx, post, threadContext(selected, parent), parent)
		if err != nil || reply == nil {
			// Folded into the shortfall check; the compensating request
			// covers it.
			continue
		}

		reply.IsAI = true
		reply.ParentID = parent.ID
		replies = append(replies, reply)
		added[parent.ID]++
	}

	return replies, nil
}

// threadContext walks the parent chain of a comment, outermost ancestor first.
func threadContext(selected []*reddit.Comment, comment *reddit.Comment) []*reddit.Comment {
	byID := make(map[string]*reddit.Comment, len(selected))
	for _, c := range selected {
		byID[c.ID] = c
	}

	var chain []*reddit.Comment

	for current := comment; current.ParentID != ""; {
		parent, ok := byID[current.ParentID]
		if !ok {
			break
		}

		chain = append([]*reddit.Comment{parent}, chain...)
		current = parent
	}

	return chain
}

// assemble merges real roots with synthetic comments. Synthetic top-level
// comments are interleaved at positions drawn once from rng; real top-level
// order is preserved. Synthetic replies are inserted under their parents.
func assemble(rng *rand.Rand, roots []*reddit.Comment, aiTopLevel, aiReplies []*reddit.Comment) []*reddit.Comment {
	mixed := make([]*reddit.Comment, len(roots))
	copy(mixed, roots)

	for _, comment := range aiTopLevel {
		comment.ParentID = ""
		pos := rng.Intn(len(mixed) + 1)
		mixed = append(mixed[:pos], append([]*reddit.Comment{comment}, mixed[pos:]...)...)
	}

	for _, reply := range aiReplies {
		parent := findByID(mixed, reply.ParentID)
		if parent == nil {
			continue
		}

		pos := rng.Intn(len(parent.Replies) + 1)
		parent.Replies = append(parent.Replies[:pos], append([]*reddit.Comment{reply}, parent.Replies[pos:]...)...)
	}

	return mixed
}

func findByID(comments []*reddit.Comment, id string) *reddit.Comment {
	for _, comment := range comments {
		if comment.ID == id {
			return comment
		}

		if found := findByID(comment.Replies, id); found != nil {
			return found
		}
	}

	return nil
}

// finalize recomputes depth and parent linkage from the assembled structure,
// so every node satisfies depth = parent depth + 1 with roots at depth 0.
func finalize(comments []*reddit.Comment, parentID string, depth int) {
	for _, comment := range comments {
		comment.ParentID = parentID
		comment.Depth = depth
		finalize(comment.Replies, comment.ID, depth+1)
	}
}

// CountSynthetic returns how many comments in the tree are synthetic.
func CountSynthetic(comments []*reddit.Comment) int {
	n := 0
	for _, comment := range reddit.Flatten(comments) {
		if comment.IsAI {
			n++
		}
	}

	return n
}
