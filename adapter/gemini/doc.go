// Package gemini implements the provider adapter for the Google Gemini API
// via google.golang.org/genai. Search uses the GoogleSearch tool plus a
// grounding system instruction; structured output uses response_json_schema
// with the application/json MIME type. Binary attachments ride inline as
// content parts.
package gemini
