package stage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNormalizeOutline(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantTitle string
		wantDesc  string
		titles    []string
	}{
		{
			name:      "english keys",
			raw:       `{"title":"Go","description":"Learn Go","chapters":[{"title":"A","description":"a","subtopics":["x"]},{"title":"B"}]}`,
			wantTitle: "Go",
			wantDesc:  "Learn Go",
			titles:    []string{"A", "B"},
		},
		{
			name:      "localized keys",
			raw:       `{"cursus_titel":"Leer Go","samenvatting":"Over Go","hoofdstukken":[{"titel":"Eén","omschrijving":"een","onderwerpen":["x","y"]}]}`,
			wantTitle: "Leer Go",
			wantDesc:  "Over Go",
			titles:    []string{"Eén"},
		},
		{
			name:      "nested course object",
			raw:       `{"course":{"title":"ignored","modules":[{"name":"M1"},{"name":"M2"}]}}`,
			wantTitle: "Topic",
			wantDesc:  "A course about Topic",
			titles:    []string{"M1", "M2"},
		},
		{
			name:      "unknown key holding chapters",
			raw:       `{"title":"T","tags":["a"],"items":[{"naam":"N1","inhoud":"desc"}]}`,
			wantTitle: "T",
			wantDesc:  "A course about Topic",
			titles:    []string{"N1"},
		},
		{
			name:      "bare array",
			raw:       `[{"chapter":"C1"},{"chapter":""},{"title":"C2"}]`,
			wantTitle: "Topic",
			wantDesc:  "A course about Topic",
			titles:    []string{"C1", "C2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NormalizeOutline(json.RawMessage(tt.raw), "Topic")
			if err != nil {
				t.Fatal(err)
			}
			if o.Title != tt.wantTitle || o.Description != tt.wantDesc {
				t.Fatalf("title/desc = %q / %q", o.Title, o.Description)
			}
			var titles []string
			for i, ch := range o.Chapters {
				titles = append(titles, ch.Title)
				if ch.Order != i+1 || ch.ID != "ch-"+string(rune('1'+i)) || ch.Status != "pending" {
					t.Fatalf("chapter %d = %+v", i, ch)
				}
			}
			if strings.Join(titles, ",") != strings.Join(tt.titles, ",") {
				t.Fatalf("titles = %v, want %v", titles, tt.titles)
			}
			if err := o.Validate(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestNormalizeOutline_ChapterFields(t *testing.T) {
	o, err := NormalizeOutline(json.RawMessage(`{"chapters":[{"titel":"Alpha","topics":["one",2]}]}`), "T")
	if err != nil {
		t.Fatal(err)
	}
	ch := o.Chapters[0]
	if ch.Description != "Alpha" {
		t.Fatalf("description should fall back to title, got %q", ch.Description)
	}
	if strings.Join(ch.Subtopics, ",") != "one,2" {
		t.Fatalf("subtopics = %q", ch.Subtopics)
	}
}

func TestNormalizeOutline_NoChapters(t *testing.T) {
	for _, raw := range []string{`{}`, `{"chapters":[]}`, `{"chapters":[{"description":"no title"}]}`, `[]`, `"text"`} {
		if _, err := NormalizeOutline(json.RawMessage(raw), "T"); !errors.Is(err, ErrNoChapters) {
			t.Errorf("NormalizeOutline(%s) err = %v, want ErrNoChapters", raw, err)
		}
	}
}
