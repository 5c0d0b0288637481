// Package recipe turns language-model output into a structured recipe and
// renders it for the chat transport.
//
// Parse accepts either the JSON object the model was asked for or a
// heading-delimited text equivalent, since compliance with the requested
// schema is not guaranteed. RenderMarkdown produces Telegram MarkdownV2 and
// RenderPlain produces the unescaped heading form that Parse reads back.
// Synthesizer builds the prompt and calls the model; Cache memoizes parsed
// blocks per source URL.
package recipe
