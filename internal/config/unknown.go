package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// subtreeSection is the array-of-tables key nested under [protect].
const subtreeSection = "subtree"

// knownKeys lists the valid keys of each config section.
var knownKeys = map[string][]string{
	"index": {
		"root", "expires", "page_size", "inline_max_size", "thumbnail_fallback",
		"drive_id", "client_id", "token_path",
	},
	"cache": {
		"backend", "size", "sqlite_path", "redis_addr", "redis_password", "redis_db", "redis_prefix",
	},
	"protect":         {"credential_ttl", "secret", subtreeSection},
	"protect.subtree": {"path", "key_id", "password"},
	"preview":         {"stream", "image", "video", "dash", "audio", "code", "doc"},
	"logging":         {"log_level", "log_file", "log_format", "log_retention_days", "log_max_size_mb"},
	"network":         {"connect_timeout", "remote_timeout", "requests_per_second", "burst", "user_agent"},
}

// knownSections is the sorted list of top-level section names.
var knownSections = func() []string {
	var out []string

	for k := range knownKeys {
		if !strings.Contains(k, ".") {
			out = append(out, k)
		}
	}

	sort.Strings(out)

	return out
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		if err := unknownKeyError(key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// unknownKeyError explains one undecoded key. The first component must be a
// section; the last is checked against that section's keys. Array indices
// do not appear in toml.Key, so protect.subtree.x maps to "protect.subtree".
func unknownKeyError(key toml.Key) error {
	if len(key) == 0 {
		return nil
	}

	section := key[0]
	if _, ok := knownKeys[section]; !ok {
		return suggest(fmt.Sprintf("unknown config section %q", section), section, knownSections)
	}

	if len(key) == 1 {
		return fmt.Errorf("config key %q must be a table", section)
	}

	scope := section
	if len(key) > 2 && section == "protect" && key[1] == subtreeSection {
		scope = "protect." + subtreeSection
	}

	field := key[len(key)-1]
	known := sortedCopy(knownKeys[scope])

	for _, k := range known {
		if k == field {
			return nil
		}
	}

	return suggest(fmt.Sprintf("unknown key %q in [%s]", field, scope), field, known)
}

func suggest(msg, got string, known []string) error {
	if s := closestMatch(got, known); s != "" {
		return fmt.Errorf("%s, did you mean %q?", msg, s)
	}

	return errors.New(msg)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)

	return out
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
