package store

import (
	"regexp"
	"strings"
	"time"
)

const (
	timestampLayout = "20060102_150405"
	maxNameRunes    = 60
)

var (
	timestampRe  = regexp.MustCompile(`^\d{8}_\d{6}`)
	unsafeChars  = strings.NewReplacer("<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "")
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// FormatTimestamp renders t as YYYYMMDD_HHMMSS in local time.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(timestampLayout)
}

// NormalizeTimestamp returns s in key form. It accepts the key form itself
// or RFC 3339, and falls back to now for anything else.
func NormalizeTimestamp(s string, now time.Time) string {
	if len(s) == len(timestampLayout) && timestampRe.MatchString(s) {
		return s
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return FormatTimestamp(t)
	}
	return FormatTimestamp(now)
}

// ParseKeyTime extracts the creation time encoded at the start of a key.
func ParseKeyTime(key string) (time.Time, bool) {
	m := timestampRe.FindString(key)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timestampLayout, m, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Sanitize makes name safe for use in a file name: reserved characters
// are dropped, whitespace runs become underscores, and the result is cut
// to 60 runes.
func Sanitize(name string) string {
	s := unsafeChars.Replace(name)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	s = whitespaceRe.ReplaceAllString(s, "_")
	if r := []rune(s); len(r) > maxNameRunes {
		s = string(r[:maxNameRunes])
	}
	return s
}

// DisplayName is the course name, else the topic, else "Untitled".
func (r *Record) DisplayName() string {
	switch {
	case strings.TrimSpace(r.CourseName) != "":
		return r.CourseName
	case strings.TrimSpace(r.Config.Topic) != "":
		return r.Config.Topic
	}
	return "Untitled"
}

// Key derives the storage key of r from its creation timestamp and
// display name.
func Key(r *Record) string {
	name := Sanitize(r.DisplayName())
	if strings.Trim(name, "_.") == "" {
		name = "Untitled"
	}
	return r.CreatedAt + "_" + name
}

// validIdentity rejects identities that could escape the data directory.
func validIdentity(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
