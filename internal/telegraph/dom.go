package telegraph

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Node is one element of the Telegraph DOM. A node with only Text set
// serializes as a bare JSON string, matching the API's NodeElement
// union type.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Children []Node
	Text     string
}

func textNode(s string) Node { return Node{Text: s} }

func (n Node) MarshalJSON() ([]byte, error) {
	if n.Tag == "" {
		return json.Marshal(n.Text)
	}
	type element struct {
		Tag      string            `json:"tag"`
		Attrs    map[string]string `json:"attrs,omitempty"`
		Children []Node            `json:"children,omitempty"`
	}
	return json.Marshal(element{Tag: n.Tag, Attrs: n.Attrs, Children: n.Children})
}

var inlinePattern = regexp.MustCompile("\\[([^\\]]*)\\]\\(([^)]*)\\)|`([^`]+)`|\\*\\*([^*]+)\\*\\*")

// parseInline converts a text run into nodes, recognizing markdown
// links, inline code and bold spans.
func parseInline(text string) []Node {
	var nodes []Node
	last := 0
	for _, m := range inlinePattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			nodes = append(nodes, textNode(text[last:m[0]]))
		}
		switch {
		case m[2] >= 0: // [text](url)
			nodes = append(nodes, Node{
				Tag:      "a",
				Attrs:    map[string]string{"href": text[m[4]:m[5]]},
				Children: []Node{textNode(text[m[2]:m[3]])},
			})
		case m[6] >= 0: // `code`
			nodes = append(nodes, Node{Tag: "code", Children: []Node{textNode(text[m[6]:m[7]])}})
		case m[8] >= 0: // **bold**
			nodes = append(nodes, Node{Tag: "strong", Children: []Node{textNode(text[m[8]:m[9]])}})
		}
		last = m[1]
	}
	if last < len(text) {
		nodes = append(nodes, textNode(text[last:]))
	}
	return nodes
}

// FromMarkdown converts article markdown into the minimal page
// structure Telegraph accepts: h3/h4 headers, unordered lists, and
// paragraphs with inline links, code and bold.
func FromMarkdown(md string) []Node {
	var nodes []Node
	var list []Node

	flushList := func() {
		if len(list) > 0 {
			nodes = append(nodes, Node{Tag: "ul", Children: list})
			list = nil
		}
	}

	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flushList()
			continue
		}
		switch {
		case strings.HasPrefix(line, "- "):
			item := parseInline(strings.TrimSpace(line[2:]))
			list = append(list, Node{Tag: "li", Children: item})
		case strings.HasPrefix(line, "## "):
			flushList()
			nodes = append(nodes, Node{Tag: "h4", Children: parseInline(strings.TrimSpace(line[3:]))})
		case strings.HasPrefix(line, "# "):
			flushList()
			nodes = append(nodes, Node{Tag: "h3", Children: parseInline(strings.TrimSpace(line[2:]))})
		default:
			flushList()
			nodes = append(nodes, Node{Tag: "p", Children: parseInline(line)})
		}
	}
	flushList()
	return nodes
}

// StripLeadingTitle drops the first node when it repeats the page
// title, so the published page does not show it twice.
func StripLeadingTitle(nodes []Node, title string) []Node {
	if len(nodes) == 0 || title == "" {
		return nodes
	}
	first := nodes[0]
	for _, child := range first.Children {
		if child.Text == title {
			return nodes[1:]
		}
	}
	return nodes
}
