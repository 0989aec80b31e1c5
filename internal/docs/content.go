package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Generating a first course",
		Content: topicQuickstart,
	},
	{
		Name:    "config",
		Title:   "Configuration Reference",
		Summary: "syllabot.yaml fields and defaults",
		Content: topicConfig,
	},
	{
		Name:    "pipeline",
		Title:   "Generation Pipeline",
		Summary: "Outline, chapters, sections, and what happens on failure",
		Content: topicPipeline,
	},
	{
		Name:    "providers",
		Title:   "Model Providers",
		Summary: "Supported providers, API keys, and web search",
		Content: topicProviders,
	},
	{
		Name:    "storage",
		Title:   "Course Storage",
		Summary: "Layout of the data directory and course identity",
		Content: topicStorage,
	},
	{
		Name:    "server",
		Title:   "HTTP and WebSocket Server",
		Summary: "Endpoints and the event stream used by the web client",
		Content: topicServer,
	},
}

const topicQuickstart = `QUICK START

  1. Create a config file in the current directory:

       syllabot init

  2. Export the API key for the provider named in syllabot.yaml, e.g.

       export GEMINI_API_KEY=...

  3. Plan a course. The outline is printed together with the course key:

       syllabot outline "Distributed systems" --audience "backend developers" --chapters 6

  4. Write the chapters one at a time, or all at once:

       syllabot chapter <course> ch-1
       syllabot chapter <course> --all

  5. Inspect and export:

       syllabot show <course>
       syllabot export <course>

  6. When a run stops part way, check setup and list what to re-run:

       syllabot doctor <course>

  <course> may be the full key, any unique part of it, or the course UUID.
`

const topicConfig = `CONFIGURATION REFERENCE

syllabot reads syllabot.yaml from the working directory, or the file given
with --config. Every field is optional.

  data-dir          Directory for courses/ and history/ (default: data,
                    relative to the config file)

  gateway:
    provider        gemini | openai | openrouter | groq | cerebras | ollama
                    (default: gemini)
    model           Default model ID; a course may name its own
    base-url        Override the provider endpoint
    api-key-env     Environment variable holding the API key
    timeout         HTTP timeout per request (default: 10m)

  providers:        List of per-provider overrides (name, base-url,
                    api-key-env)

  retry:
    max-retries       Retries after the first attempt (default: 5)
    initial-delay     First backoff delay (default: 1s)
    max-delay         Upper bound per delay, never above 60s (default: 60s)
    multiplier        Backoff growth factor (default: 2)
    rate-limit-floor  Minimum delay after a rate-limit error (default: 5s)

  search:
    api-key-env     Tavily key variable (default: TAVILY_API_KEY)
    max-results     Results per query, 1-20 (default: 5)

  server:
    host, port        Listen address (default: localhost:3001)
    allowed-origins   CORS origins; * wildcards allowed
    static-dir        Built web client to serve at /

  defaults:         Course defaults offered to clients
    language, min-chapters, words-per-chapter, exercises-per-chapter,
    quiz-questions-per-chapter, writing-style
`

const topicPipeline = `GENERATION PIPELINE

Outline
  The outline stage asks the model for a JSON outline and normalizes it:
  chapter titles, descriptions and subtopics are found under a fixed list
  of alternative key names, chapters without a title are dropped, and the
  rest are numbered ch-1..ch-N with order 1..N. An outline with no chapters
  is an error. A short course name is generated next; if that fails the
  topic is used. The course is saved and outline:ready is emitted.

Chapters
  A chapter moves pending -> generating -> completed or failed.

  1. The writer streams the chapter text. If it fails the chapter is marked
     failed, a single error event is emitted, and nothing else runs.
  2. Exercises are streamed and each one is shown as soon as it is
     complete. A failure here is reported as chapter:section-failed and
     the chapter continues.
  3. The quiz is generated the same way.
  4. The chapter is marked completed, the markdown export is refreshed,
     and chapter:completed lists any failed sections.

Section retry
  syllabot retry <course> <chapter> exercises|quiz regenerates one section
  of a completed chapter and appends it. The chapter status is unchanged.

Retries
  Every model call is retried with exponential backoff. Rate-limit errors
  wait at least rate-limit-floor. Errors such as 400 or 401 are not
  retried. Waiting stops immediately when the operation is cancelled.

Concurrency
  Operations on one course are serialized; two chapter requests for the
  same course run one after the other and neither update is lost.
`

const topicProviders = `MODEL PROVIDERS

  provider     API key variable       notes
  gemini       GEMINI_API_KEY         native web search grounding
  openai       OPENAI_API_KEY
  openrouter   OPENROUTER_API_KEY
  groq         GROQ_API_KEY
  cerebras     CEREBRAS_API_KEY
  ollama       (none)                 local, http://localhost:11434

openai, openrouter, groq and cerebras share the OpenAI chat completions
protocol; any compatible endpoint can be used through base-url.

Web search
  When a course enables search and the model cannot search by itself,
  Tavily results are added to the outline and chapter prompts. Search
  failures are logged and generation continues without them.
`

const topicStorage = `COURSE STORAGE

  <data-dir>/
    courses/<key>.json    one record per course
    history/<key>.md      markdown export

A key is the creation time followed by the course name:

  20250304_050607_Mastering_Distributed_Systems

Names are stripped of <>:"/\|?* and control characters, spaces become
underscores, and the name is cut to 60 characters. If the course name
changes, the record and its exports are renamed to the new key. Each
record also stores a UUID that never changes and can be used wherever a
course is expected.

Deleting a course removes the record and every history file starting
with its key. Records found directly in <data-dir> are moved into
courses/ on startup.
`

const topicServer = `HTTP AND WEBSOCKET SERVER

  syllabot serve

Connect a WebSocket to /ws first. The first message carries the client
ID; pass it as socketId in generation requests so events reach that
client. Closing the socket cancels its running generations.

  GET    /api/config                     defaults, styles, providers
  POST   /api/outline                    start an outline
  POST   /api/chapter                    generate one chapter
  POST   /api/retry                      retry exercises or quiz
  POST   /api/course/{id}/outline        replace the outline
  GET    /api/history                    list courses
  GET    /api/history/{id}               load a course
  DELETE /api/history/{id}               delete a course
  POST   /api/history/{id}/regenerate    rewrite the markdown export
  GET    /history-files/{name}           exported markdown

Every event is a JSON object {"event", "time", "data"}. history:updated
is broadcast to all clients when a course file changes on disk.
`
