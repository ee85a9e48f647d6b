package bot

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)
	// bareURLPattern recognizes scheme-less links like "example.com/a";
	// chat users rarely type the scheme.
	bareURLPattern = regexp.MustCompile(`(?:^|\s)((?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}(?:/\S*)?)`)
	labelPattern   = regexp.MustCompile(`\+([\w-]+)`)
)

// extractURLTitleLabels pulls the first URL out of a message, then
// reads `+label` tokens and treats whatever text remains as the title.
// Example: "https://example.com/a Some Title +news +tech". Scheme-less
// domains are accepted and get https by default.
func extractURLTitleLabels(text string) (bookmarkURL, title string, labels []string) {
	match := urlPattern.FindString(text)
	if match == "" {
		if m := bareURLPattern.FindStringSubmatch(text); m != nil {
			match = m[1]
		}
	}
	if match == "" {
		return "", "", nil
	}
	bookmarkURL = normalizeURL(match)

	rest := strings.TrimSpace(strings.Replace(text, match, "", 1))
	for _, m := range labelPattern.FindAllStringSubmatch(rest, -1) {
		labels = append(labels, m[1])
	}
	rest = labelPattern.ReplaceAllString(rest, "")
	title = strings.Join(strings.Fields(rest), " ")
	return bookmarkURL, title, labels
}

// normalizeURL strips trailing punctuation that message text tends to
// attach and guarantees a scheme.
func normalizeURL(raw string) string {
	raw = strings.TrimRight(raw, ".,:;!?)]}")
	if u, err := url.Parse(raw); err != nil || u.Scheme == "" {
		return "https://" + raw
	}
	return raw
}
