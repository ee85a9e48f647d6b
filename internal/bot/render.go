package bot

import (
	"fmt"
	"strings"

	"github.com/jmfederico/readeckbot/internal/markdown"
	"github.com/jmfederico/readeckbot/internal/readeck"
)

// formatBookmarkList renders bookmarks as a numbered MarkdownV2 list
// with a dynamic read command per item.
func formatBookmarkList(bookmarks []readeck.Bookmark, bindings *Bindings) string {
	var sb strings.Builder
	for i, bm := range bookmarks {
		short := bindings.Bind(bm.ID)
		fmt.Fprintf(&sb, "%d\\. [%s](%s) \\| /md\\_%s /b\\_%s\n",
			i+1,
			markdown.EscapeV2(bm.DisplayTitle()),
			escapeLinkURL(bm.Link()),
			short, short)
	}
	return sb.String()
}

// formatSaved renders the reply to a newly saved bookmark.
func formatSaved(bm readeck.Bookmark, short string) string {
	return fmt.Sprintf("Saved: [%s](%s)\n\nUse /md\\_%s to read it here or /b\\_%s for details\\.",
		markdown.EscapeV2(bm.DisplayTitle()),
		escapeLinkURL(bm.Link()),
		short, short)
}

// escapeLinkURL escapes the characters MarkdownV2 forbids inside an
// inline link target.
var linkURLEscaper = strings.NewReplacer(`\`, `\\`, `)`, `\)`)

func escapeLinkURL(u string) string {
	return linkURLEscaper.Replace(u)
}
