package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jorge-barreto/syllabot/internal/course"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local) }
	return s
}

func countRecords(t *testing.T, s *Store) []string {
	t.Helper()
	names, err := s.recordFiles()
	if err != nil {
		t.Fatal(err)
	}
	return names
}

func sampleOutline() *course.Outline {
	return &course.Outline{
		Title:       "Go Basics",
		Description: "Learn Go",
		Chapters: []*course.Chapter{
			{ID: "ch1", Title: "Intro", Order: 1, Status: course.StatusCompleted, Content: "Hello"},
			{ID: "ch2", Title: "Types", Order: 2, Status: course.StatusPending},
		},
	}
}

func TestKey(t *testing.T) {
	r := &Record{CreatedAt: "20250304_050607", Config: course.Config{Topic: "Go: the <basics>?"}}
	if got := Key(r); got != "20250304_050607_Go_the_basics" {
		t.Fatalf("Key = %q", got)
	}
	r.CourseName = "Mastering Go"
	if got := Key(r); got != "20250304_050607_Mastering_Go" {
		t.Fatalf("Key = %q", got)
	}
	r.CourseName, r.Config.Topic = "", ""
	if got := Key(r); got != "20250304_050607_Untitled" {
		t.Fatalf("Key = %q", got)
	}
}

func TestSanitize_Truncates(t *testing.T) {
	got := Sanitize(strings.Repeat("é", 80))
	if n := len([]rune(got)); n != 60 {
		t.Fatalf("rune length = %d, want 60", n)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)
	if got := NormalizeTimestamp("20240101_000000", now); got != "20240101_000000" {
		t.Fatalf("key form = %q", got)
	}
	if got := NormalizeTimestamp("", now); got != "20250102_030405" {
		t.Fatalf("empty = %q", got)
	}
	iso := now.UTC().Format(time.RFC3339)
	if got := NormalizeTimestamp(iso, time.Time{}); got != "20250102_030405" {
		t.Fatalf("rfc3339 = %q", got)
	}
}

func TestSave_AssignsIdentity(t *testing.T) {
	s := openTest(t)
	r := &Record{Config: course.Config{Topic: "Go"}}
	key, err := s.Save("", r)
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == "" {
		t.Fatal("ID not assigned")
	}
	if key != "20250304_050607_Go" || r.Key != key {
		t.Fatalf("key = %q, r.Key = %q", key, r.Key)
	}
}

func TestSaveTwice_OneFile(t *testing.T) {
	s := openTest(t)
	r := &Record{Config: course.Config{Topic: "Go"}}
	if _, err := s.Save("", r); err != nil {
		t.Fatal(err)
	}
	r.Outline = sampleOutline()
	if _, err := s.Save(r.Key, r); err != nil {
		t.Fatal(err)
	}
	if n := len(countRecords(t, s)); n != 1 {
		t.Fatalf("records = %d, want 1", n)
	}
	loaded, err := s.Load(r.Key)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Outline == nil || len(loaded.Outline.Chapters) != 2 {
		t.Fatal("outline not persisted")
	}
}

func TestSave_RenameMovesFileAndArtifacts(t *testing.T) {
	s := openTest(t)
	r := &Record{Config: course.Config{Topic: "Go"}}
	oldKey, err := s.Save("", r)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ExportMarkdown(r); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(oldKey, r); err != nil {
		t.Fatal(err)
	}

	r.CourseName = "Mastering Go"
	newKey, err := s.Save(oldKey, r)
	if err != nil {
		t.Fatal(err)
	}
	if newKey == oldKey {
		t.Fatal("key did not change")
	}
	names := countRecords(t, s)
	if len(names) != 1 || names[0] != newKey+".json" {
		t.Fatalf("records = %v", names)
	}
	if _, err := os.Stat(filepath.Join(s.HistoryDir(), newKey+".md")); err != nil {
		t.Fatalf("artifact not renamed: %v", err)
	}
	if r.MarkdownFile != newKey+".md" {
		t.Fatalf("MarkdownFile = %q", r.MarkdownFile)
	}
	if _, err := s.Load(r.ID); err != nil {
		t.Fatalf("load by stable id: %v", err)
	}
}

func TestSave_SameTimestampOtherCourseUntouched(t *testing.T) {
	s := openTest(t)
	a := &Record{Config: course.Config{Topic: "Alpha"}}
	b := &Record{Config: course.Config{Topic: "Beta"}}
	if _, err := s.Save("", a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save("", b); err != nil {
		t.Fatal(err)
	}
	if n := len(countRecords(t, s)); n != 2 {
		t.Fatalf("records = %d, want 2", n)
	}
}

func TestArtifacts_SharedKeyPrefix(t *testing.T) {
	s := openTest(t)
	short := &Record{CreatedAt: "20240101_120000", CourseName: "Go", Config: course.Config{Topic: "Go"}}
	long := &Record{CreatedAt: "20240101_120000", CourseName: "Go Advanced", Config: course.Config{Topic: "Go"}}
	for _, r := range []*Record{short, long} {
		if _, err := s.Save("", r); err != nil {
			t.Fatal(err)
		}
		if _, err := s.ExportMarkdown(r); err != nil {
			t.Fatal(err)
		}
	}
	if short.Key != "20240101_120000_Go" || long.Key != "20240101_120000_Go_Advanced" {
		t.Fatalf("keys = %q, %q", short.Key, long.Key)
	}
	longMD := filepath.Join(s.HistoryDir(), long.Key+".md")

	short.CourseName = "Go Basics"
	if _, err := s.Save(short.Key, short); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(longMD); err != nil {
		t.Fatalf("rename took the other course's export: %v", err)
	}

	if ok, err := s.Delete(short.Key); err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if _, err := os.Stat(longMD); err != nil {
		t.Fatalf("delete removed the other course's export: %v", err)
	}
	if _, err := s.Load(long.Key); err != nil {
		t.Fatalf("other course: %v", err)
	}
}

func TestIsArtifact(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"20240101_120000_Go.md", true},
		{"20240101_120000_Go.docx", true},
		{"20240101_120000_Go_Advanced.md", false},
		{"20240101_120000_Go.NET.md", false},
		{"20240101_120000_Go", false},
		{"20240101_120000_Go.", false},
	}
	for _, tt := range tests {
		if got := isArtifact(tt.name, "20240101_120000_Go"); got != tt.want {
			t.Errorf("isArtifact(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoad_SubstringAndMissing(t *testing.T) {
	s := openTest(t)
	r := &Record{Config: course.Config{Topic: "Distributed Systems"}}
	if _, err := s.Save("", r); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load("Distributed")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != r.ID {
		t.Fatalf("ID = %q, want %q", got.ID, r.ID)
	}
	if _, err := s.Load("nope"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.Load("../etc"); err != ErrNotFound {
		t.Fatalf("traversal err = %v, want ErrNotFound", err)
	}
}

func TestList_SortedWithStatus(t *testing.T) {
	s := openTest(t)
	older := &Record{CreatedAt: "20240101_000000", Config: course.Config{Topic: "Old"}}
	newer := &Record{CreatedAt: "20250101_000000", Config: course.Config{Topic: "New"}, Outline: sampleOutline()}
	for _, r := range []*Record{older, newer} {
		if _, err := s.Save("", r); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.ExportMarkdown(newer); err != nil {
		t.Fatal(err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Topic != "New" || list[1].Topic != "Old" {
		t.Fatalf("order = %q, %q", list[0].Topic, list[1].Topic)
	}
	if list[0].MDStatus != "exists" || list[1].MDStatus != "missing" {
		t.Fatalf("md status = %q, %q", list[0].MDStatus, list[1].MDStatus)
	}
	if list[0].Chapters != 2 || list[0].Completed != 1 {
		t.Fatalf("chapters = %d/%d", list[0].Completed, list[0].Chapters)
	}
}

func TestOpen_MigratesRootRecords(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20240101_000000_Legacy.json"), []byte(`{"config":{"topic":"Legacy"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(s.CoursesDir(), "20240101_000000_Legacy.json")); err != nil {
		t.Fatalf("not migrated: %v", err)
	}
	r, err := s.Load("Legacy")
	if err != nil {
		t.Fatal(err)
	}
	if r.Config.Topic != "Legacy" {
		t.Fatalf("Topic = %q", r.Config.Topic)
	}
}

func TestDelete(t *testing.T) {
	s := openTest(t)
	r := &Record{Config: course.Config{Topic: "Go"}, Outline: sampleOutline()}
	if _, err := s.Save("", r); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ExportMarkdown(r); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Delete(r.Key)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if n := len(countRecords(t, s)); n != 0 {
		t.Fatalf("records = %d", n)
	}
	if _, err := os.Stat(filepath.Join(s.HistoryDir(), r.Key+".md")); !os.IsNotExist(err) {
		t.Fatal("artifact not removed")
	}
	ok, err = s.Delete(r.Key)
	if err != nil || ok {
		t.Fatalf("second Delete = %v, %v", ok, err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	r := &Record{Outline: sampleOutline()}
	got := RenderMarkdown(r)
	want := "# Go Basics\n\n> Learn Go\n\n---\n\n" +
		"# 1. Intro\n\nHello\n\n---\n\n" +
		"# 2. Types\n\n---\n\n"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteFileAtomic_NoTempLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.json")
	for _, body := range []string{"one", "two"} {
		if err := writeFileAtomic(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != "two" {
		t.Fatalf("content = %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

func TestLocker_SerializesAndCleansUp(t *testing.T) {
	l := NewLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("c1")
			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d", maxSeen)
	}
	if l.Len() != 0 {
		t.Fatalf("Len = %d after release", l.Len())
	}
}

func TestTiming(t *testing.T) {
	var tm Timing
	tm.AddStart("writer", "ch1")
	tm.AddEnd("writer", "ch1", false)
	if tm.Last("writer", "ch1") == "" {
		t.Fatal("duration not recorded")
	}
	if tm.Last("quiz", "ch1") != "" {
		t.Fatal("unexpected duration")
	}
	var nilTiming *Timing
	if nilTiming.Last("writer", "") != "" {
		t.Fatal("nil Timing")
	}
}
