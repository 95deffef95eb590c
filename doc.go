// Package simpleai provides one normalized entry point for prompting
// generative AI providers. It resolves settings and credentials, picks a
// provider and model from an optional token, retries rate limits using the
// provider's wait hint, normalizes citations into a uniform shape, validates
// structured JSON output and preprocesses file attachments.
package simpleai
