// Package llm provides an OpenAI-compatible chat client used to synthesize
// recipes from captions and transcripts.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts in JSON mode, receive raw content.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: tolerant decoding of model output (code fences, stray prose,
// syntax repair).
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty content and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Context cancellation aborts retries immediately. An optional
// rate.Limiter throttles every attempt.
package llm
