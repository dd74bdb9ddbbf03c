package reddit

import (
	"fmt"
	"math/rand"
	"strings"
)

// maxUsernameLength matches Reddit's username limit.
const maxUsernameLength = 20

var usernameWords = []string{
	"pickle", "noodle", "garlic", "waffle", "badger", "crow", "maple",
	"copper", "static", "velvet", "cactus", "mellow", "drift", "ember",
	"quartz", "hollow", "bramble", "cinder", "fathom", "grove", "lantern",
	"marble", "nimbus", "orbit", "pepper", "raven", "sprocket", "thistle",
	"umber", "walnut", "zephyr", "biscuit", "clover", "dapper", "falcon",
}

var usernameNames = []string{
	"mike", "sarah", "dave", "emma", "chris", "laura", "pete", "nina",
	"tom", "jess", "alex", "megan", "sam", "kate", "dan", "rachel",
}

var usernameColors = []string{
	"red", "blue", "green", "gray", "teal", "amber", "coral", "olive",
}

// GenerateUsername produces a plausible Reddit-style username. Drawing from
// the given rng keeps generation reproducible per submission.
func GenerateUsername(rng *rand.Rand) string {
	word := func() string { return usernameWords[rng.Intn(len(usernameWords))] }
	name := func() string { return usernameNames[rng.Intn(len(usernameNames))] }
	color := func() string { return usernameColors[rng.Intn(len(usernameColors))] }

	patterns := []func() string{
		func() string { return fmt.Sprintf("%s%d", name(), rng.Intn(999)+1) },
		func() string { return fmt.Sprintf("%s_%s", word(), word()) },
		func() string { return fmt.Sprintf("%s%d", word(), rng.Intn(999)+1) },
		func() string { return fmt.Sprintf("throwaway_%d", rng.Intn(9000)+1000) },
		func() string { return fmt.Sprintf("x%sx", capitalize(word())) },
		func() string { return fmt.Sprintf("%s_guy_%d", word(), rng.Intn(99)+1) },
		func() string { return fmt.Sprintf("random_%s_%d", word(), rng.Intn(999)+1) },
		func() string { return fmt.Sprintf("deleted_user_%d", rng.Intn(9000)+1000) },
		func() string { return fmt.Sprintf("%s%s%d", color(), capitalize(word()), rng.Intn(99)+1) },
		func() string { return fmt.Sprintf("%slover%d", word(), rng.Intn(999)+1) },
	}

	username := patterns[rng.Intn(len(patterns))]()
	if len(username) > maxUsernameLength {
		username = username[:maxUsernameLength]
	}

	return username
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

// AnonymizeAuthors replaces every real author in the thread (post author
// included) with a generated username. The mapping is injective so distinct
// authors stay distinct, and is returned for reference.
func AnonymizeAuthors(rng *rand.Rand, thread *Thread) map[string]string {
	mapping := make(map[string]string)
	used := make(map[string]bool)

	assign := func(author string) string {
		if replacement, ok := mapping[author]; ok {
			return replacement
		}

		var replacement string
		for {
			replacement = GenerateUsername(rng)
			if !used[replacement] {
				break
			}
		}

		mapping[author] = replacement
		used[replacement] = true

		return replacement
	}

	for _, comment := range Flatten(thread.Comments) {
		comment.Author = assign(comment.Author)
	}

	if thread.Post != nil {
		thread.Post.Author = assign(thread.Post.Author)
	}

	return mapping
}
