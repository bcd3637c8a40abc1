// Package parser turns Logseq-flavoured Markdown outline files into pages and blocks.
package parser

import (
	"bytes"
	"fmt"
	"maps"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var (
	bulletRe   = regexp.MustCompile(`^(\s*)- ?(.*)$`)
	propertyRe = regexp.MustCompile(`^\s*([A-Za-z0-9_\-]+):: ?(.*)$`)
	pageRefRe  = regexp.MustCompile(`#?\[\[([^\[\]]+)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([^\s#\[\],]+)`)
)

// listProperties hold comma separated page references.
var listProperties = map[string]bool{"tags": true, "alias": true}

// Block is one outline item.
type Block struct {
	UUID       string
	Content    string
	PreBlock   bool
	Refs       []string
	Properties map[string]string
}

// Page is the parsed form of one graph file.
type Page struct {
	UUID         string
	Name         string
	OriginalName string
	Journal      bool
	Properties   map[string]string
	Blocks       []Block
}

// Parse parses the file at rel (relative to the graph root, slash or OS separated).
func Parse(rel string, data []byte) (*Page, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if !strings.HasSuffix(rel, ".md") {
		return nil, fmt.Errorf("parser: not a markdown file: %s", rel)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	fm, text := splitFrontmatter(text)

	raw := splitBlocks(text)
	if len(fm) > 0 {
		raw = append([]string{fm}, raw...)
	}

	p := &Page{
		UUID:         DerivedUUID(rel, -1),
		OriginalName: pageNameFromPath(rel),
		Journal:      strings.HasPrefix(rel, "journals/"),
	}

	seen := make(map[string]struct{}, len(raw))
	for i, content := range raw {
		props := extractProperties(content)
		b := Block{
			Content:    content,
			Properties: props,
			Refs:       extractRefs(content, props),
			PreBlock:   i == 0 && onlyProperties(content),
		}
		id := strings.ToLower(strings.TrimSpace(props["id"]))
		if _, dup := seen[id]; id == "" || dup {
			id = DerivedUUID(rel, i)
		}
		seen[id] = struct{}{}
		b.UUID = id
		p.Blocks = append(p.Blocks, b)
	}

	if len(p.Blocks) > 0 && p.Blocks[0].PreBlock {
		p.Properties = p.Blocks[0].Properties
		if t := strings.TrimSpace(p.Properties["title"]); t != "" {
			p.OriginalName = t
		}
	}
	p.Name = strings.ToLower(p.OriginalName)
	return p, nil
}

// pageNameFromPath decodes Logseq's file-name escaping: "___" (or the legacy
// "." and "%2F") separate namespace levels.
func pageNameFromPath(rel string) string {
	name := strings.TrimSuffix(path.Base(rel), ".md")
	name = strings.ReplaceAll(name, "___", "/")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return name
}

// splitFrontmatter pulls a leading YAML frontmatter block out of text and
// renders it as property lines, so it is indexed like a Logseq pre-block.
func splitFrontmatter(text string) (string, string) {
	const delim = "---"
	trimmed := strings.TrimLeft(text, "\n")
	if !strings.HasPrefix(trimmed, delim+"\n") {
		return "", text
	}
	rest := trimmed[len(delim)+1:]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return "", text
	}
	var fm map[string]interface{}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil || len(fm) == 0 {
		return "", text
	}
	body := strings.TrimLeft(rest[idx+1+len(delim):], "\n")

	var buf bytes.Buffer
	for _, k := range sortedKeys(fm) {
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%s:: %s", k, propertyString(fm[k]))
	}
	return buf.String(), body
}

func propertyString(v interface{}) string {
	switch t := v.(type) {
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// splitBlocks cuts the outline into block contents. Text before the first
// bullet becomes its own block, as Logseq does.
func splitBlocks(text string) []string {
	var (
		out    []string
		cur    []string
		indent = -1
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(cur, "\n"), "\n ")
		if strings.TrimSpace(content) != "" {
			out = append(out, content)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if m := bulletRe.FindStringSubmatch(line); m != nil && isBullet(line, m[1]) {
			flush()
			indent = len(m[1])
			cur = append(cur, m[2])
			continue
		}
		if indent < 0 {
			cur = append(cur, strings.TrimSpace(line))
			continue
		}
		cur = append(cur, trimIndent(line, indent+2))
	}
	flush()
	return out
}

// isBullet rejects lines like "---" or "-text" that the loose regexp accepts.
func isBullet(line, lead string) bool {
	rest := line[len(lead):]
	return rest == "-" || strings.HasPrefix(rest, "- ")
}

func trimIndent(line string, n int) string {
	i := 0
	for i < len(line) && i < n && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[i:]
}

func extractProperties(content string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		if m := propertyRe.FindStringSubmatch(line); m != nil {
			key := strings.ToLower(m[1])
			if _, dup := props[key]; !dup {
				props[key] = strings.TrimSpace(m[2])
			}
		}
	}
	return props
}

func onlyProperties(content string) bool {
	found := false
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !propertyRe.MatchString(line) {
			return false
		}
		found = true
	}
	return found
}

// extractRefs returns deduplicated, lower-cased page references: [[links]],
// #[[tags]], #tags, and the values of list properties such as tags::.
func extractRefs(content string, props map[string]string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, m := range pageRefRe.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}
	stripped := pageRefRe.ReplaceAllString(content, " ")
	for _, m := range tagRe.FindAllStringSubmatch(stripped, -1) {
		add(m[1])
	}
	for _, key := range sortedKeys(props) {
		if !listProperties[key] {
			continue
		}
		for _, item := range strings.Split(props[key], ",") {
			item = strings.TrimSpace(item)
			item = strings.TrimPrefix(item, "#")
			item = strings.TrimSuffix(strings.TrimPrefix(item, "[["), "]]")
			add(item)
		}
	}
	return out
}

// DerivedUUID is the stable id given to block i of the file at rel when the
// block has no usable id:: of its own. i = -1 names the page.
func DerivedUUID(rel string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("serendip:"+rel+"#"+strconv.Itoa(i))).String()
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
