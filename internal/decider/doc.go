// Package decider abstracts how a role policy reaches a judgment call.
//
// The default everywhere is RuleFunc: deterministic rule evaluation, no
// I/O. The LLM decider delegates to a chat-completion model instead; its
// responses are normalized aggressively (fences, smart quotes, trailing
// commas) and a parse failure falls back to the prompt's safe default
// rather than failing the transaction. LLM latency lives entirely outside
// the causality engine: a decider call simply takes as long as it takes.
package decider
