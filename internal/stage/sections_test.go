package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/event"
	"github.com/jorge-barreto/syllabot/internal/gateway/gatewaytest"
)

const exerciseStream = "```json\n[\n" +
	`{"sectionTitle": "Oefeningen", "labels": {"item": "Oefening", "solution": "Oplossing"}, "question": "Declare a {struct}", "difficulty": "Medium", "solution": "type T struct{}", "why": "Practice"},` + "\n" +
	`{"question": "broken"},` + "\n" +
	`{"question": "Write a loop", "difficulty": "hard", "solution": "` + "```go\\nfor {}\\n```" + `"}` + "\n]\n```"

func sectionContext(gw *gatewaytest.Scripted, sink event.Sink) *Context {
	return &Context{Config: testConfig(), Outline: testOutline(), ChapterID: "ch-2", Caps: testCaps(gw, sink)}
}

func TestExercisesStage_Streams(t *testing.T) {
	gw := gatewaytest.New().On(exerciseMarker, gatewaytest.Reply{Chunks: chunks(exerciseStream, 3)})
	rec := &event.Recorder{}

	res, err := Exercises{}.Run(context.Background(), sectionContext(gw, rec))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Exercises) != 2 {
		t.Fatalf("got %d exercises, want 2", len(res.Exercises))
	}
	if res.Exercises[0].Difficulty != course.Medium {
		t.Fatalf("difficulty = %q", res.Exercises[0].Difficulty)
	}

	want := "\n\n---\n\n## Oefeningen\n\n" +
		"### Oefening 1 **\n\nDeclare a {struct}\n\n**Oplossing:** type T struct{}\n\n**Why:** Practice\n\n" +
		"### Oefening 2 ***\n\nWrite a loop\n\n**Oplossing:**\n\n```go\nfor {}\n```\n\n"
	if res.Markdown != want {
		t.Fatalf("Markdown =\n%q\nwant\n%q", res.Markdown, want)
	}

	var relayed strings.Builder
	for _, p := range rec.Named(event.StreamChunk) {
		relayed.WriteString(p.(event.Chunk).Chunk)
	}
	if relayed.String() != want {
		t.Fatalf("relayed text differs from markdown:\n%q", relayed.String())
	}
	if !strings.Contains(gw.Calls()[0].Prompt, "## Types") {
		t.Fatal("prompt should include chapter content")
	}
}

func TestExercisesStage_RecoversWrappedResponse(t *testing.T) {
	gw := gatewaytest.New().On(exerciseMarker, gatewaytest.Reply{
		Chunks: []string{`{"exercises": [{"question": "Q1", "solution": "S1"},`, ` {"question": "Q2", "solution": "S2"}]}`},
	})
	res, err := Exercises{}.Run(context.Background(), sectionContext(gw, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Exercises) != 2 || !strings.HasPrefix(res.Markdown, SectionHeader("Exercises")) {
		t.Fatalf("res = %+v", res)
	}
}

func TestExercisesStage_Failures(t *testing.T) {
	gw := gatewaytest.New().On(exerciseMarker, gatewaytest.Reply{Text: "I cannot help with that."})
	_, err := Exercises{}.Run(context.Background(), sectionContext(gw, nil))
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("err = %v, want ErrNoRecords", err)
	}

	pc := sectionContext(gatewaytest.New(), nil)
	pc.Outline.Chapter("ch-2").Content = ""
	if _, err := (Exercises{}).Run(context.Background(), pc); !errors.Is(err, ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}
}

func TestSectionStages_SkipWhenCountIsZero(t *testing.T) {
	gw := gatewaytest.New()
	pc := sectionContext(gw, nil)
	pc.Config.ExercisesPerChapter = 0
	pc.Config.QuizQuestionsPerChapter = 0

	for _, s := range []Stage{Exercises{}, Quiz{}} {
		res, err := s.Run(context.Background(), pc)
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
		if res.Markdown != "" {
			t.Fatalf("%s: Markdown = %q", s.Name(), res.Markdown)
		}
	}
	if len(gw.Calls()) != 0 {
		t.Fatalf("no model calls expected, got %d", len(gw.Calls()))
	}
}

func TestQuizStage(t *testing.T) {
	stream := `[{"sectionTitle": "Toets", "labels": {"answer": "Antwoord"}, "question": "Pick one", ` +
		`"options": ["A. red", "B) green", "blue"], "correctAnswerIndex": 1, "explanation": "Because"}]`
	gw := gatewaytest.New().On(quizMarker, gatewaytest.Reply{Chunks: chunks(stream, 5)})
	rec := &event.Recorder{}

	res, err := Quiz{}.Run(context.Background(), sectionContext(gw, rec))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Quiz) != 1 {
		t.Fatalf("got %d questions", len(res.Quiz))
	}
	q := res.Quiz[0]
	if len(q.Options) != 6 || q.Options[0] != "red" || q.Options[5] != "Option F" {
		t.Fatalf("options = %q", q.Options)
	}
	want := "\n\n---\n\n## Toets\n\n### Question 1\n\nPick one\n\n" +
		"- **A.** red\n- **B.** green\n- **C.** blue\n- **D.** Option D\n- **E.** Option E\n- **F.** Option F\n" +
		"\n**Antwoord: B**\n\n**Explanation:** Because\n\n"
	if res.Markdown != want {
		t.Fatalf("Markdown =\n%q\nwant\n%q", res.Markdown, want)
	}
}

func TestSetSection(t *testing.T) {
	set := Defaults()
	if s, err := set.Section(course.SectionQuiz); err != nil || s.Name() != "quiz" {
		t.Fatalf("Section(quiz) = %v, %v", s, err)
	}
	if _, err := set.Section("summary"); err == nil {
		t.Fatal("expected error")
	}
}
