// Package openai implements the provider adapter for the OpenAI Responses
// API. Web search uses the built-in web_search tool; when search is required
// the tool choice is forced and web_search_call source URLs are included for
// citation extraction. Binary attachments are uploaded via the Files API with
// purpose user_data. Structured output uses the strict json_schema text format.
package openai
