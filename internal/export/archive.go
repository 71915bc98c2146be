package export

import (
	"fmt"
	"strings"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/batch"
	"github.com/Hemang2904/jewelbench-flux-gen/pkg/zip"
)

// promptPrefixLen bounds the sanitized prompt prefix used in entry
// names so archives stay filesystem-safe on every platform.
const promptPrefixLen = 32

// Options control archive entry naming.
type Options struct {
	// NameByPrompt derives entry names from each result's resolved
	// prompt instead of the bare position.
	NameByPrompt bool
	// Extension without the dot; defaults to jpg.
	Extension string
}

// BuildArchive packs the unique results of one run into a single
// in-memory ZIP. Entry names are deterministic: variation_<n>.<ext>
// (1-based), or a sanitized prompt prefix plus the position when
// NameByPrompt is set.
func BuildArchive(results []batch.Result, opts Options) ([]byte, error) {
	ext := strings.TrimPrefix(strings.TrimSpace(opts.Extension), ".")
	if ext == "" {
		ext = "jpg"
	}
	entries := make([]zip.Entry, 0, len(results))
	for i, res := range results {
		entries = append(entries, zip.Entry{
			Name: entryName(res, i+1, ext, opts.NameByPrompt),
			Data: res.Bytes,
		})
	}
	return zip.Archive(entries)
}

func entryName(res batch.Result, position int, ext string, byPrompt bool) string {
	if byPrompt {
		if prefix := sanitizePrompt(res.Prompt); prefix != "" {
			return fmt.Sprintf("%s_%d.%s", prefix, position, ext)
		}
	}
	return fmt.Sprintf("variation_%d.%s", position, ext)
}

// sanitizePrompt maps a resolved prompt onto a short filesystem-safe
// token: non-alphanumerics collapse to underscores, truncated to a
// fixed length.
func sanitizePrompt(prompt string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(prompt)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= promptPrefixLen {
			break
		}
	}
	return strings.Trim(b.String(), "_")
}
