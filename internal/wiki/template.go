// Package wiki renders the single-page TiddlyWiki HTML around the current
// document store.
package wiki

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const storeMarker = `<script class="tiddlywiki-tiddler-store" type="application/json">`

// Template is an empty wiki HTML file split around its embedded tiddler
// store, so rendering only has to splice the saved documents in.
type Template struct {
	prefix string
	suffix string
}

func Load(path string) (*Template, error) {
	html, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(html))
}

func Parse(html string) (*Template, error) {
	start := strings.Index(html, storeMarker)
	if start < 0 {
		return nil, fmt.Errorf("wiki template: missing tiddler store script tag")
	}
	end := strings.Index(html[start:], "</script>")
	if end < 0 {
		return nil, fmt.Errorf("wiki template: missing closing script tag")
	}
	split := strings.LastIndex(html[:start+end], "]")
	if split < 0 {
		return nil, fmt.Errorf("wiki template: store content is not a JSON array")
	}
	return &Template{prefix: html[:split], suffix: html[split:]}, nil
}

// Render splices docs into the stored script block. Closing script tags in
// document text are escaped so content cannot break out of the page.
func (t *Template) Render(docs []map[string]any) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(docs); err != nil {
		return nil, err
	}
	encoded := strings.TrimSpace(sb.String())
	inner := encoded[1 : len(encoded)-1]
	inner = strings.ReplaceAll(inner, "</script>", `<\/script>`)

	var buf bytes.Buffer
	buf.Grow(len(t.prefix) + len(inner) + len(t.suffix) + 1)
	buf.WriteString(t.prefix)
	if inner != "" {
		buf.WriteByte(',')
		buf.WriteString(inner)
	}
	buf.WriteString(t.suffix)
	return buf.Bytes(), nil
}
