package reddit

import (
	"math/rand"
	"sort"
	"strings"
)

// maxCommentWords rejects wall-of-text comments that would dominate a round.
const maxCommentWords = 180

// IsValid reports whether a comment has usable content: not deleted or
// removed, not empty, and at most maxCommentWords words.
func IsValid(comment *Comment) bool {
	content := strings.ToLower(strings.TrimSpace(comment.Content))

	switch content {
	case "", "[deleted]", "[removed]", "deleted", "removed":
		return false
	}

	return len(strings.Fields(comment.Content)) <= maxCommentWords
}

// FilterValid prunes invalid comments from the tree. A pruned comment takes
// its whole subtree with it.
func FilterValid(comments []*Comment) []*Comment {
	filtered := make([]*Comment, 0, len(comments))

	for _, comment := range comments {
		if !IsValid(comment) {
			continue
		}

		kept := *comment
		kept.Replies = FilterValid(comment.Replies)
		filtered = append(filtered, &kept)
	}

	return filtered
}

// selectionWeight biases selection toward higher-ranked comments while still
// letting lower ones through occasionally.
func selectionWeight(rank int) int {
	switch {
	case rank == 0:
		return 40
	case rank == 1:
		return 25
	case rank == 2:
		return 15
	case rank == 3:
		return 10
	case rank <= 9:
		return 6
	default:
		return 3
	}
}

func weightedPick(rng *rand.Rand, n int) int {
	total := 0
	for i := range n {
		total += selectionWeight(i)
	}

	pick := rng.Intn(total)
	for i := range n {
		pick -= selectionWeight(i)
		if pick < 0 {
			return i
		}
	}

	return n - 1
}

// SelectRepresentative picks a representative subset of a thread: top-level
// comments chosen by score-weighted random selection, each optionally keeping
// one of its replies. Invalid comments are filtered first. Threads that
// already fit under maxTotal are returned as-is (filtered).
func SelectRepresentative(rng *rand.Rand, comments []*Comment, maxTotal int) []*Comment {
	comments = FilterValid(comments)

	if Count(comments) <= maxTotal {
		return comments
	}

	topLevel := make([]*Comment, len(comments))
	copy(topLevel, comments)
	sort.SliceStable(topLevel, func(i, j int) bool {
		return topLevel[i].Score > topLevel[j].Score
	})

	selected := make([]*Comment, 0, maxTotal)
	total := 0
	replyThreads := 0

	for total < maxTotal && len(topLevel) > 0 {
		idx := weightedPick(rng, len(topLevel))
		comment := topLevel[idx]
		topLevel = append(topLevel[:idx], topLevel[idx+1:]...)

		picked := *comment
		picked.Replies = []*Comment{}
		selected = append(selected, &picked)
		total++

		if len(comment.Replies) == 0 || total >= maxTotal {
			continue
		}

		// Keep at least two reply threads per round so the game is not a
		// flat list of top-level comments.
		forceReply := replyThreads < 2
		if !forceReply && rng.Float64() >= 0.9 {
			continue
		}

		replyIdx := weightedPick(rng, len(comment.Replies))
		reply := *comment.Replies[replyIdx]
		reply.Replies = []*Comment{}
		picked.Replies = append(picked.Replies, &reply)
		total++
		replyThreads++
	}

	return selected
}
