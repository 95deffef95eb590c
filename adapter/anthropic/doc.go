// Package anthropic implements the provider adapter for the Anthropic
// Messages API. Forced search uses the web_search_20250305 server tool with
// tool_choice "any"; when such a turn yields no visible text, a follow-up
// synthesis call renders the gathered results into an answer. Structured
// output rides in output_config with object nodes closed and unsupported
// constraint keywords stripped. Binary attachments are not accepted.
package anthropic
