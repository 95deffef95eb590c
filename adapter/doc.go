// Package adapter defines the uniform contract provider adapters implement:
// a canonical Request/Result pair, provider capabilities, and the rate-limit
// error shape retry logic relies on. Implementations live in provider-specific
// subpackages (openai, anthropic, gemini, grok, perplexity).
package adapter
