package simpleai

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/mediafetch"
)

// Extractor converts one file into plain text. Implementations for formats
// without a built-in extractor (pdf, doc, docx, rtf) are registered by the
// host application via RegisterExtractor.
type Extractor func(path string) (string, error)

// supportedExtensions lists every extension the preprocessor recognizes, with
// or without a registered extractor.
var supportedExtensions = []string{".pdf", ".doc", ".docx", ".md", ".txt", ".json", ".rtf"}

var (
	extractorMu sync.RWMutex
	extractors  = map[string]Extractor{
		".txt":  readFileText,
		".md":   readFileText,
		".json": readFileText,
	}
)

func readFileText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RegisterExtractor installs (or replaces) the text extractor for a file
// extension, e.g. RegisterExtractor(".pdf", pdfToText). The registry is
// process-wide.
func RegisterExtractor(ext string, fn Extractor) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	extractorMu.Lock()
	defer extractorMu.Unlock()
	extractors[ext] = fn
}

func lookupExtractor(ext string) (Extractor, bool) {
	extractorMu.RLock()
	defer extractorMu.RUnlock()
	fn, ok := extractors[strings.ToLower(ext)]
	return fn, ok
}

// collectFilePaths flattens the file/files call options into one ordered,
// deduplicated list.
func collectFilePaths(file string, files []string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	add(file)
	for _, p := range files {
		add(p)
	}
	return out
}

// prepareAttachments turns attachment sources (local paths or https URLs)
// into adapter attachments. Sources ride as binary when the caller asked for
// binary handling AND the adapter accepts it; otherwise each local file is
// extracted to text through the extension's extractor and remote documents
// keep their body when the content type is textual. A missing file, an
// unsupported extension, or a supported extension without a registered
// extractor is an error, never a silent drop.
func prepareAttachments(ctx context.Context, paths []string, binary bool, caps adapter.Capabilities) ([]adapter.Attachment, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	for _, path := range paths {
		if mediafetch.IsRemote(path) {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return nil, wrapErr(ErrFile, "", fmt.Sprintf("file %s", path), err)
		}
	}

	useBinary := binary && caps.BinaryFiles
	out := make([]adapter.Attachment, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			att, err := loadAttachment(ctx, path, useBinary)
			if err != nil {
				return err
			}
			out[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func loadAttachment(ctx context.Context, path string, useBinary bool) (adapter.Attachment, error) {
	if mediafetch.IsRemote(path) {
		return loadRemoteAttachment(ctx, path, useBinary)
	}

	if useBinary {
		data, err := os.ReadFile(path)
		if err != nil {
			return adapter.Attachment{}, wrapErr(ErrFile, "", fmt.Sprintf("read file %s", path), err)
		}
		return adapter.Attachment{
			Name:     filepath.Base(path),
			Path:     path,
			MIMEType: mimeTypeFor(path),
			Data:     data,
		}, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	fn, ok := lookupExtractor(ext)
	if !ok {
		if isSupportedExtension(ext) {
			return adapter.Attachment{}, wrapErr(ErrFile, "",
				fmt.Sprintf("no text extractor registered for %s (file %s); register one with RegisterExtractor or enable binary attachments", ext, path), nil)
		}
		return adapter.Attachment{}, wrapErr(ErrFile, "", fmt.Sprintf("unsupported file extension %s (file %s)", ext, path), nil)
	}
	text, err := fn(path)
	if err != nil {
		return adapter.Attachment{}, wrapErr(ErrFile, "", fmt.Sprintf("extract text from %s", path), err)
	}
	return adapter.Attachment{
		Name:     filepath.Base(path),
		Path:     path,
		MIMEType: mimeTypeFor(path),
		Text:     text,
	}, nil
}

func loadRemoteAttachment(ctx context.Context, rawURL string, useBinary bool) (adapter.Attachment, error) {
	data, contentType, err := mediafetch.Fetch(ctx, rawURL, 0)
	if err != nil {
		return adapter.Attachment{}, wrapErr(ErrFile, "", fmt.Sprintf("fetch %s", rawURL), err)
	}
	att := adapter.Attachment{
		Name:     mediafetch.Name(rawURL),
		Path:     rawURL,
		MIMEType: contentType,
	}
	if useBinary {
		att.Data = data
		return att, nil
	}
	if strings.HasPrefix(contentType, "text/") || contentType == "application/json" || contentType == "" {
		att.Text = string(data)
		return att, nil
	}
	return adapter.Attachment{}, wrapErr(ErrFile, "",
		fmt.Sprintf("remote attachment %s (%s) needs binary support the provider does not offer", rawURL, contentType), nil)
}

func isSupportedExtension(ext string) bool {
	for _, e := range supportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func mimeTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// appendFileText renders extracted-text attachments into the labeled blocks
// appended to the prompt.
func appendFileText(prompt string, attachments []adapter.Attachment) string {
	var blocks []string
	for _, att := range attachments {
		if att.Text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[File: %s]\n%s", att.Name, att.Text))
	}
	if len(blocks) == 0 {
		return prompt
	}
	return prompt + "\n\nIncluded file text:\n" + strings.Join(blocks, "\n\n")
}
