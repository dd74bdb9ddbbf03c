package gen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jkurtz678/reddit-or-replicant/reddit"
)

func archetypeSelectionPrompt(post *reddit.Post, available []Archetype) string {
	var descriptions strings.Builder
	for _, archetype := range available {
		fmt.Fprintf(&descriptions, "- %s: %s\n", archetype.Key, archetype.Description)
	}

	return fmt.Sprintf(`Given this Reddit post from r/%s, which comment archetypes would be most appropriate?

POST TITLE: %s
POST CONTENT: %s

AVAILABLE ARCHETYPES:
%s
Consider:
- The tone and seriousness of the post
- What types of responses would naturally occur in r/%s
- The emotional context and subject matter

Select 4-6 archetypes that would be most appropriate for this post. List them exactly as shown above (e.g., "generic:supportive_friend").

Respond with just the archetype keys, one per line.`,
		post.Subreddit, post.Title, post.Content, descriptions.String(), post.Subreddit)
}

func commentExamples(real []*reddit.Comment, max int) string {
	var b strings.Builder

	for i, comment := range real {
		if i >= max {
			break
		}

		content := comment.Content
		if len(content) > 150 {
			content = content[:150] + "..."
		}

		fmt.Fprintf(&b, "- u/%s (%d words): %s\n", comment.Author, len(strings.Fields(comment.Content)), content)
	}

	return b.String()
}

func topLevelPrompt(post *reddit.Post, archetype Archetype, real []*reddit.Comment, previous []string, targetWords int) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are generating a realistic Reddit comment for r/%s.

POST TITLE: %s

POST CONTENT: %s

EXAMPLES OF REAL COMMENTS FROM THIS THREAD:
%s
%s`,
		post.Subreddit, post.Title, post.Content, commentExamples(real, 3), archetype.Prompt)

	if len(previous) > 0 {
		b.WriteString("\nPREVIOUSLY GENERATED COMMENTS (DO NOT REPEAT THESE PATTERNS):\n")

		for i, opening := range previous {
			fmt.Fprintf(&b, "- Comment %d opening: %q\n", i+1, opening)
		}

		b.WriteString("\nIMPORTANT: Avoid starting with similar phrases, structures, or personal anecdotes as the comments above.\n")
	}

	fmt.Fprintf(&b, `
LENGTH REQUIREMENT:
- Your response MUST be %d words or fewer
- Most Reddit comments are brief and to the point, not explanatory essays

CRITICAL REQUIREMENTS:
- Write like real humans, not like you're trying to sound like Reddit
- Don't force slang or try too hard to sound casual - be naturally conversational
- Natural writing but don't overdo typos or internet speak
- Make this truly indistinguishable from a real human comment

Format as JSON:
{"content": "your comment here"}

DO NOT include usernames - just the comment content.`, targetWords)

	return b.String()
}

func replyPrompt(post *reddit.Post, thread []*reddit.Comment, parent *reddit.Comment) string {
	var context strings.Builder

	if len(thread) > 0 {
		context.WriteString("THREAD CONTEXT (conversation so far):\n")

		for i, comment := range thread {
			content := comment.Content
			if len(content) > 200 {
				content = content[:200] + "..."
			}

			fmt.Fprintf(&context, "%d. u/%s: %s\n", i+1, comment.Author, content)
		}

		context.WriteString("\n")
	}

	return fmt.Sprintf(`You are generating a realistic Reddit reply for r/%s.

POST TITLE: %s

POST CONTENT: %s

%sCOMMENT YOU'RE REPLYING TO:
u/%s: %s

Generate 1 realistic Reddit reply to this comment. The reply should:

1. Be contextually relevant to the immediate parent comment
2. Consider the broader thread context if provided
3. Sound natural and human-written
4. Vary in style (could be short reaction, longer response, question, anecdote, etc.)

CRITICAL REPLY FORMATTING:
- NEVER start with "u/username:" - real Reddit replies don't do this
- Jump straight into your response without addressing the username
- If you need to reference them, use "you" or just reply directly

CRITICAL: Make this indistinguishable from a real human reply. Don't try too hard to sound "Reddit-y".

Format as JSON:
{"content": "reply text"}`,
		post.Subreddit, post.Title, post.Content, context.String(), parent.Author, parent.Content)
}

// parseGeneratedComment extracts the comment text from a model response. The
// model is asked for a bare JSON object but often wraps it in prose or code
// fences, so the first balanced-looking object is cut out and control
// characters stripped before decoding.
func parseGeneratedComment(response string) (string, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}

	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}

		return r
	}, response[start:end+1])

	var payload struct {
		Content string `json:"content"`
	}

	err := json.Unmarshal([]byte(cleaned), &payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode comment JSON: %w", err)
	}

	if strings.TrimSpace(payload.Content) == "" {
		return "", fmt.Errorf("comment JSON has empty content")
	}

	return strings.TrimSpace(payload.Content), nil
}
