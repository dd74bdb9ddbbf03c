// Package gen produces synthetic Reddit comments through a language model,
// steered by stylistic archetypes.
package gen

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/jkurtz678/reddit-or-replicant/reddit"
	"golang.org/x/sync/errgroup"
)

const (
	selectionTemperature  = 0.3
	generationTemperature = 0.8
	selectionMaxTokens    = 300
	generationMaxTokens   = 800

	// Each archetype appears at most twice per round so no single voice
	// dominates.
	maxUsesPerArchetype = 2

	fallbackArchetypeCount = 4
)

// Round generates the synthetic comments for a single submission. It keeps
// per-round state (selected archetypes, openings of previous comments used
// for repetition avoidance), so one Round serves exactly one post and is not
// shared across requests.
type Round struct {
	model      TextModel
	catalog    *Catalog
	rng        *rand.Rand
	archetypes []Archetype
	previous   []string
}

func NewRound(model TextModel, catalog *Catalog, rng *rand.Rand) *Round {
	return &Round{
		model:   model,
		catalog: catalog,
		rng:     rng,
	}
}

// selectArchetypes asks the model which archetypes fit the post. Any failure
// falls back to the generic set; archetype selection is never fatal.
func (r *Round) selectArchetypes(ctx context.Context, post *reddit.Post) []Archetype {
	available := r.catalog.For(post.Subreddit)

	fallback := r.catalog.Generic()
	if len(fallback) > fallbackArchetypeCount {
		fallback = fallback[:fallbackArchetypeCount]
	}

	response, err := r.model.GenerateText(ctx, TextRequest{
		Prompt:      archetypeSelectionPrompt(post, available),
		Temperature: selectionTemperature,
		MaxTokens:   selectionMaxTokens,
	})
	if err != nil {
		slog.WarnContext(ctx, "archetype selection failed, using generic archetypes", "error", err)
		return fallback
	}

	var selected []Archetype

	for _, line := range strings.Split(response, "\n") {
		key := strings.TrimSpace(line)
		if archetype, ok := r.catalog.Get(key); ok {
			selected = append(selected, archetype)
		}
	}

	if len(selected) == 0 {
		slog.WarnContext(ctx, "model selected no valid archetypes, using generic archetypes")
		return fallback
	}

	return selected
}

// TopLevel generates up to n top-level comments, one model call per
// archetype, issued concurrently. Malformed model output drops a comment
// instead of failing the batch; the caller compensates for shortfalls.
func (r *Round) TopLevel(ctx context.Context, post *reddit.Post, real []*reddit.Comment, n int) ([]*reddit.Comment, error) {
	if n <= 0 {
		return nil, nil
	}

	if r.archetypes == nil {
		r.archetypes = r.selectArchetypes(ctx, post)
	}

	pool := r.archetypePool(n)
	minScore, maxScore := scoreRange(real)

	// All randomness is drawn up front; the goroutines below only talk to
	// the model.
	type slot struct {
		archetype Archetype
		author    string
		score     int
		prompt    string
	}

	slots := make([]slot, n)
	for i := range n {
		archetype := pool[i]
		slots[i] = slot{
			archetype: archetype,
			author:    reddit.GenerateUsername(r.rng),
			score:     minScore + r.rng.Intn(maxScore-minScore+1),
			prompt:    topLevelPrompt(post, archetype, real, r.previous, targetWordCount(r.rng, real)),
		}
	}

	contents := make([]string, n)

	g, gctx := errgroup.WithContext(ctx)

	for i := range n {
		g.Go(func() error {
			response, err := r.model.GenerateText(gctx, TextRequest{
				Prompt:      slots[i].prompt,
				Temperature: generationTemperature,
				MaxTokens:   generationMaxTokens,
			})
			if err != nil {
				if gctx.Err() != nil {
					return fmt.Errorf("generation cancelled: %w", gctx.Err())
				}

				slog.WarnContext(gctx, "comment generation failed", "archetype", slots[i].archetype.Key, "error", err)

				return nil
			}

			content, err := parseGeneratedComment(response)
			if err != nil {
				slog.WarnContext(gctx, "discarding malformed generated comment", "archetype", slots[i].archetype.Key, "error", err)
				return nil
			}

			contents[i] = content

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	comments := make([]*reddit.Comment, 0, n)

	for i, content := range contents {
		if content == "" {
			continue
		}

		comments = append(comments, &reddit.Comment{
			ID:        uuid.NewString(),
			Author:    slots[i].author,
			Content:   content,
			Score:     slots[i].score,
			Replies:   []*reddit.Comment{},
			IsAI:      true,
			Archetype: slots[i].archetype.Key,
		})

		r.previous = append(r.previous, opening(content))
	}

	return comments, nil
}

// Reply generates one reply to a specific comment with its thread context.
func (r *Round) Reply(ctx context.Context, post *reddit.Post, thread []*reddit.Comment, parent *reddit.Comment) (*reddit.Comment, error) {
	response, err := r.model.GenerateText(ctx, TextRequest{
		Prompt:      replyPrompt(post, thread, parent),
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	content, err := parseGeneratedComment(response)
	if err != nil {
		return nil, fmt.Errorf("malformed reply: %w", err)
	}

	maxScore := parent.Score
	if maxScore < 50 {
		maxScore = 50
	}

	reply := &reddit.Comment{
		ID:       uuid.NewString(),
		Author:   reddit.GenerateUsername(r.rng),
		Content:  content,
		Score:    1 + r.rng.Intn(maxScore),
		Depth:    parent.Depth + 1,
		ParentID: parent.ID,
		Replies:  []*reddit.Comment{},
		IsAI:     true,
	}

	r.previous = append(r.previous, opening(content))

	return reply, nil
}

// archetypePool builds a shuffled pool of n archetype assignments with
// bounded repetition.
func (r *Round) archetypePool(n int) []Archetype {
	perArchetype := n / len(r.archetypes)
	if perArchetype < 1 {
		perArchetype = 1
	}

	if perArchetype > maxUsesPerArchetype {
		perArchetype = maxUsesPerArchetype
	}

	pool := make([]Archetype, 0, n)

	for _, archetype := range r.archetypes {
		for range perArchetype {
			pool = append(pool, archetype)
		}
	}

	for len(pool) < n {
		pool = append(pool, r.archetypes[r.rng.Intn(len(r.archetypes))])
	}

	r.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	return pool[:n]
}

// scoreRange derives a plausible score band from the real comments.
func scoreRange(real []*reddit.Comment) (int, int) {
	minScore, maxScore := 0, 0

	for _, comment := range real {
		if comment.Score <= 0 {
			continue
		}

		if minScore == 0 || comment.Score < minScore {
			minScore = comment.Score
		}

		if comment.Score > maxScore {
			maxScore = comment.Score
		}
	}

	if minScore == 0 {
		return 1, 50
	}

	return minScore, maxScore
}

// targetWordCount picks a word budget biased toward short comments, bounded
// by the longest real comment in the round.
func targetWordCount(rng *rand.Rand, real []*reddit.Comment) int {
	longest := 0
	for _, comment := range real {
		if words := len(strings.Fields(comment.Content)); words > longest {
			longest = words
		}
	}

	if longest == 0 {
		longest = 50
	}

	var target int

	switch v := rng.Float64(); {
	case v < 0.4:
		target = 15
	case v < 0.7:
		target = 30
	default:
		target = 50
	}

	if target > longest {
		target = longest
	}

	return target
}

func opening(content string) string {
	if idx := strings.Index(content, "."); idx > 0 {
		return content[:idx]
	}

	if len(content) > 50 {
		return content[:50]
	}

	return content
}
