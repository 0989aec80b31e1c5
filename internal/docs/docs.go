// Package docs holds the built-in help articles printed by 'syllabot docs'.
package docs

import (
	"fmt"
	"strings"
)

type Topic struct {
	Name    string // CLI slug
	Title   string
	Summary string // shown in the topic listing
	Content string // plain text
}

// All returns every topic in display order.
func All() []Topic {
	return topics
}

// Get finds a topic by slug, ignoring case. A unique prefix of a slug
// also matches, so "prov" finds "providers".
func Get(name string) (Topic, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var matches []Topic
	for _, t := range topics {
		if t.Name == name {
			return t, nil
		}
		if name != "" && strings.HasPrefix(t.Name, name) {
			matches = append(matches, t)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		var names []string
		for _, t := range matches {
			names = append(names, t.Name)
		}
		return Topic{}, fmt.Errorf("topic %q is ambiguous: %s", name, strings.Join(names, ", "))
	}
	return Topic{}, fmt.Errorf("unknown topic %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Names lists the topic slugs in display order.
func Names() []string {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	return names
}
