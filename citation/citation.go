// Package citation normalizes the web-search citation metadata the five
// supported vendors return into one uniform shape. Each vendor reports sources
// differently (inline annotations, tool-result blocks, grounding metadata or a
// bare URL list); Normalize flattens whatever the raw response carries into a
// single []Citation in response order.
package citation

// Citation is one source reference attached to a generated answer.
type Citation struct {
	// Provider is the canonical id of the vendor that produced the record.
	Provider string `json:"provider,omitempty"`

	// ID is the vendor-assigned citation id, when the record carries one.
	ID string `json:"id,omitempty"`

	// URL of the cited source. Always set when the vendor reported one.
	URL string `json:"url,omitempty"`

	// Title of the cited page, when available.
	Title string `json:"title,omitempty"`

	// Snippet is the quoted or cited text fragment, when available.
	Snippet string `json:"snippet,omitempty"`

	// StartIndex and EndIndex locate the citation inside the answer text,
	// when the vendor reports character offsets. Nil when unknown.
	StartIndex *int `json:"start_index,omitempty"`
	EndIndex   *int `json:"end_index,omitempty"`

	// Source names where in the vendor response the citation came from,
	// e.g. "annotation", "web_search_result", "grounding_chunk",
	// "search_result", "url".
	Source string `json:"source,omitempty"`

	// Raw preserves the vendor-specific record for callers that need
	// fields the normalized shape drops.
	Raw map[string]any `json:"raw,omitempty"`
}

// Normalize extracts citations from a raw vendor response body. provider is
// the canonical provider id ("openai", "claude", "gemini", "grok",
// "perplexity"); unknown providers yield nil. raw is the decoded JSON response
// as returned by the vendor API.
func Normalize(provider string, raw map[string]any) []Citation {
	if raw == nil {
		return nil
	}
	var out []Citation
	switch provider {
	case "openai":
		out = fromOpenAI(raw)
	case "claude":
		out = fromAnthropic(raw)
	case "gemini":
		out = fromGemini(raw)
	case "grok":
		out = fromGrok(raw)
	case "perplexity":
		out = fromPerplexity(raw)
	default:
		return nil
	}
	for i := range out {
		out[i].Provider = provider
		if out[i].ID == "" && out[i].Raw != nil {
			out[i].ID = getString(out[i].Raw, "id", "citation_id")
		}
	}
	return out
}

// fromOpenAI reads url_citation annotations on output message content and the
// sources attached to web_search_call items.
func fromOpenAI(raw map[string]any) []Citation {
	var out []Citation
	for _, item := range getSlice(raw, "output") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch getString(m, "type") {
		case "message":
			for _, c := range getSlice(m, "content") {
				cm, ok := c.(map[string]any)
				if !ok {
					continue
				}
				for _, a := range getSlice(cm, "annotations") {
					am, ok := a.(map[string]any)
					if !ok || getString(am, "type") != "url_citation" {
						continue
					}
					out = append(out, Citation{
						URL:        getString(am, "url"),
						Title:      getString(am, "title"),
						StartIndex: getIndex(am, "start_index", "startIndex"),
						EndIndex:   getIndex(am, "end_index", "endIndex"),
						Source:     "annotation",
						Raw:        am,
					})
				}
			}
		case "web_search_call":
			action := getMap(m, "action")
			for _, s := range getSlice(action, "sources") {
				sm, ok := s.(map[string]any)
				if !ok {
					continue
				}
				if url := getString(sm, "url"); url != "" {
					out = append(out, Citation{
						URL:    url,
						Title:  getString(sm, "title"),
						Source: "web_search_source",
						Raw:    sm,
					})
				}
			}
		}
	}
	return out
}

// fromAnthropic reads citations attached to text blocks and the result list
// of web_search_tool_result blocks.
func fromAnthropic(raw map[string]any) []Citation {
	var out []Citation
	for _, block := range getSlice(raw, "content") {
		m, ok := block.(map[string]any)
		if !ok {
			continue
		}
		switch getString(m, "type") {
		case "text":
			for _, c := range getSlice(m, "citations") {
				cm, ok := c.(map[string]any)
				if !ok {
					continue
				}
				out = append(out, Citation{
					URL:        getString(cm, "url"),
					Title:      getString(cm, "title"),
					Snippet:    getString(cm, "cited_text"),
					StartIndex: getIndex(cm, "start_char_index"),
					EndIndex:   getIndex(cm, "end_char_index"),
					Source:     "text_citation",
					Raw:        cm,
				})
			}
		case "web_search_tool_result":
			for _, r := range getSlice(m, "content") {
				rm, ok := r.(map[string]any)
				if !ok || getString(rm, "type") != "web_search_result" {
					continue
				}
				out = append(out, Citation{
					URL:    getString(rm, "url"),
					Title:  getString(rm, "title"),
					Source: "web_search_result",
					Raw:    rm,
				})
			}
		}
	}
	return out
}

// fromGemini reads groundingMetadata chunks from every candidate; web,
// retrievedContext and maps chunks all carry uri/title pairs.
func fromGemini(raw map[string]any) []Citation {
	var out []Citation
	for _, cand := range getSlice(raw, "candidates") {
		cm, ok := cand.(map[string]any)
		if !ok {
			continue
		}
		meta := getMap(cm, "groundingMetadata", "grounding_metadata")
		for _, chunk := range getSlice(meta, "groundingChunks", "grounding_chunks") {
			chm, ok := chunk.(map[string]any)
			if !ok {
				continue
			}
			for _, kind := range []string{"web", "retrievedContext", "retrieved_context", "maps"} {
				ref := getMap(chm, kind)
				if ref == nil {
					continue
				}
				out = append(out, Citation{
					URL:    getString(ref, "uri", "url"),
					Title:  getString(ref, "title"),
					Source: "grounding_chunk",
					Raw:    chm,
				})
				break
			}
		}
		cite := getMap(cm, "citationMetadata", "citation_metadata")
		for _, src := range getSlice(cite, "citations", "citationSources", "citation_sources") {
			sm, ok := src.(map[string]any)
			if !ok {
				continue
			}
			if uri := getString(sm, "uri", "url"); uri != "" {
				out = append(out, Citation{
					URL:        uri,
					Title:      getString(sm, "title"),
					StartIndex: getIndex(sm, "startIndex", "start_index"),
					EndIndex:   getIndex(sm, "endIndex", "end_index"),
					Source:     "citation_metadata",
					Raw:        sm,
				})
			}
		}
	}
	return out
}

// fromGrok reads the top-level citations URL list plus inline_citations when present.
func fromGrok(raw map[string]any) []Citation {
	out := fromURLList(raw, "citations")
	for _, c := range getSlice(raw, "inline_citations") {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Citation{
			URL:        getString(cm, "url"),
			Title:      getString(cm, "title"),
			Snippet:    getString(cm, "snippet"),
			StartIndex: getIndex(cm, "start_index"),
			EndIndex:   getIndex(cm, "end_index"),
			Source:     "inline_citation",
			Raw:        cm,
		})
	}
	return out
}

// fromPerplexity reads search_results (rich records) and falls back to the
// plain citations URL list for entries search_results did not cover.
func fromPerplexity(raw map[string]any) []Citation {
	var out []Citation
	seen := map[string]bool{}
	for _, r := range getSlice(raw, "search_results") {
		rm, ok := r.(map[string]any)
		if !ok {
			continue
		}
		url := getString(rm, "url")
		if url == "" {
			continue
		}
		seen[url] = true
		out = append(out, Citation{
			URL:     url,
			Title:   getString(rm, "title"),
			Snippet: getString(rm, "snippet"),
			Source:  "search_result",
			Raw:     rm,
		})
	}
	for _, c := range fromURLList(raw, "citations") {
		if !seen[c.URL] {
			out = append(out, c)
		}
	}
	return out
}

func fromURLList(raw map[string]any, key string) []Citation {
	var out []Citation
	for _, v := range getSlice(raw, key) {
		if url, ok := v.(string); ok && url != "" {
			out = append(out, Citation{URL: url, Source: "url"})
		}
	}
	return out
}

func getMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if sub, ok := m[k].(map[string]any); ok {
			return sub
		}
	}
	return nil
}

func getSlice(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if s, ok := m[k].([]any); ok {
			return s
		}
	}
	return nil
}

func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

func getIndex(m map[string]any, keys ...string) *int {
	for _, k := range keys {
		switch x := m[k].(type) {
		case float64:
			i := int(x)
			return &i
		case int:
			i := x
			return &i
		case int64:
			i := int(x)
			return &i
		}
	}
	return nil
}
