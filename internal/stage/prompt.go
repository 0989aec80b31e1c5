package stage

import (
	"fmt"
	"os"
	"strings"

	"github.com/jorge-barreto/syllabot/internal/course"
)

// expand substitutes ${NAME} references in template from vars. Unknown
// names expand to "".
func expand(template string, vars map[string]string) string {
	return strings.TrimSpace(os.Expand(template, func(key string) string {
		return vars[key]
	}))
}

// courseVars are the variables every prompt may reference.
func courseVars(cfg course.Config) map[string]string {
	audience := cfg.Audience
	if audience == "" {
		audience = "General Audience"
	}
	return map[string]string{
		"TOPIC":          cfg.Topic,
		"AUDIENCE":       audience,
		"LANGUAGE":       cfg.Language,
		"STYLE":          cfg.WritingStyle,
		"MIN_CHAPTERS":   fmt.Sprint(cfg.MinChapters),
		"WORDS":          fmt.Sprint(cfg.WordsPerChapter),
		"EXERCISE_COUNT": fmt.Sprint(cfg.ExercisesPerChapter),
		"QUIZ_COUNT":     fmt.Sprint(cfg.QuizQuestionsPerChapter),
		"SPECIAL_NEEDS":  block("SPECIAL REQUIREMENTS / ADAPTATIONS:", cfg.SpecialNeeds),
		"REQUIRED":       block("REQUIRED TOPICS/CHAPTERS TO INCLUDE:", cfg.GeneratedTopics),
		"MERMAID":        mermaidRule(cfg.MermaidDiagrams),
		"STYLE_RULES":    styleRules,
	}
}

func block(heading, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return heading + "\n" + strings.TrimSpace(body) + "\n"
}

func mermaidRule(enabled bool) string {
	if !enabled {
		return "- Do NOT use Mermaid diagrams."
	}
	return `- Use Mermaid diagrams (in mermaid code blocks) to visualize processes, workflows, state machines or relationships where they help.
- When writing Mermaid code, ALWAYS wrap node labels in double quotes (e.g. id["Label"]).`
}

const styleRules = `- Humanize the text: natural, engaging tone, varied sentences, active voice.
- NEVER use the en-dash character. Use a hyphen or a colon instead.
- Wrap code snippets in fenced markdown code blocks with a blank line before each block.
- Wrap inline HTML tags in backticks; never output raw HTML.`

const outlinePrompt = `
Create a comprehensive course outline for the following topic:
TOPIC: ${TOPIC}
LANGUAGE: ${LANGUAGE} (The content MUST be in this language, but JSON keys MUST be in English)
AUDIENCE: ${AUDIENCE}
WRITING STYLE: ${STYLE}
MINIMUM CHAPTERS: ${MIN_CHAPTERS}

${REQUIRED}
${SPECIAL_NEEDS}
${RESEARCH}

The course should be structured logically from beginner to advanced concepts.
For each chapter, provide a title, a brief description, and a list of 3-7 subtopics.

GUIDELINES:
${STYLE_RULES}
- The output MUST be a valid JSON object with the keys "title", "description" and "chapters".
- Each chapter object has the keys "title", "description" and "subtopics".
- Do NOT translate the JSON keys. Only translate the values.
`

const namingPrompt = `
You are naming a course. Generate a SHORT, descriptive course name (3-6 words maximum).

TOPIC: ${TOPIC}
AUDIENCE: ${AUDIENCE}
LANGUAGE: ${LANGUAGE}

Rules:
- The name MUST be in ${LANGUAGE}.
- Keep it concise: 3 to 6 words.
- Do NOT include quotes, colons, or special characters.
- Do NOT include generic words like "Course" or "Tutorial".
- Output ONLY the name, nothing else.
`

const writerPrompt = `
You are writing a comprehensive course on "${COURSE_TITLE}".
Write the FULL content for CHAPTER ${ORDER}: "${CHAPTER_TITLE}".

CONTEXT:
Topic: ${TOPIC}
Audience: ${AUDIENCE}
Language: ${LANGUAGE}
Writing Style: ${STYLE}
Target Word Count: ${WORDS}
Description: ${CHAPTER_DESCRIPTION}

Full Course Outline:
${FULL_OUTLINE}
${PREVIOUS}
${SUBTOPICS}
${RESEARCH}

INSTRUCTIONS:
- Write in ${LANGUAGE} using Markdown.
- Do NOT include the chapter title as the first line.
- Start with a level 2 heading (##). Never use level 1 headings and never skip heading levels.
- Build on the previous chapter and avoid repeating it.
- Do NOT name sections "Exercises" or "Quiz"; those are added separately.
- Do not state anything you are unsure of.
${STYLE_RULES}
${SOURCES}
${MERMAID}
`

const exercisePrompt = `
Create ${EXERCISE_COUNT} practical exercises based on the following chapter content.
In the FIRST exercise object, include a "sectionTitle" field with the translation of "Exercises" in ${LANGUAGE}.
ALSO in the FIRST object, include a "labels" object with translations for "Exercise" (item), "Solution" (solution) and "Why" (why) in ${LANGUAGE}.

${SPECIAL_NEEDS}

RULES:
- ALL text MUST be written in ${LANGUAGE}.
- Create open-ended practical tasks, coding challenges or thought experiments, not multiple-choice questions.
- Each exercise has "question", "difficulty" ("easy", "medium" or "hard"), a step-by-step "solution" and a "why" explaining what it reinforces.
- Mix difficulties: roughly 30% easy, 40% medium, 30% hard.
${STYLE_RULES}
${MERMAID}
- Output a JSON array of exercise objects and nothing else.

CHAPTER CONTENT:
${CONTENT}
`

const quizPrompt = `
Create ${QUIZ_COUNT} multiple-choice quiz questions based on the following chapter content.
In the FIRST question object, include a "sectionTitle" field with the translation of "Quiz" in ${LANGUAGE}.
ALSO in the FIRST object, include a "labels" object with translations for "Question" (item), "Answer" (answer) and "Explanation" (explanation) in ${LANGUAGE}.

${SPECIAL_NEEDS}

RULES:
- ALL text MUST be written in ${LANGUAGE}.
- Each question has "question", exactly 6 "options" (A through F) without letter prefixes, a zero-based "correctAnswerIndex" and an "explanation".
- Only ONE option is correct. The explanation says why it is right and why the others are wrong.
${STYLE_RULES}
- Output a JSON array of question objects and nothing else.

CHAPTER CONTENT:
${CONTENT}
`
