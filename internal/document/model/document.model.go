package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"inkwiki/pkg/apperr"
)

// Document is a title-keyed, revisioned unit of wiki content. Meta is the
// raw tiddler JSON as the client sent it; the store never validates its
// shape beyond requiring a JSON object.
type Document struct {
	Title    string          `json:"title"`
	Revision int64           `json:"revision"`
	Meta     json.RawMessage `json:"meta"`
}

// FromValue parses a client payload into a Document. The revision, when
// present, may be a number or a numeric string (TiddlyWeb sends both); the
// store treats it as advisory since revisions are server-authoritative.
func FromValue(raw json.RawMessage) (*Document, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, fmt.Errorf("%w: document body must be a JSON object", apperr.ErrValidation)
	}
	title, _ := m["title"].(string)

	var revision int64
	switch rev := m["revision"].(type) {
	case nil:
	case float64:
		revision = int64(rev)
	case string:
		parsed, err := strconv.ParseInt(rev, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: unparseable revision %q", apperr.ErrValidation, rev)
		}
		revision = parsed
	default:
		return nil, fmt.Errorf("%w: revision must be a number or string", apperr.ErrValidation)
	}

	return &Document{Title: title, Revision: revision, Meta: raw}, nil
}

// APIValue renders the document the way the TiddlyWeb API expects: nested
// fields flattened to the top level, tag arrays joined into wikitext form,
// title and revision authoritative from the row.
func (d *Document) APIValue() map[string]any {
	var m map[string]any
	if err := json.Unmarshal(d.Meta, &m); err != nil || m == nil {
		m = map[string]any{}
	}
	if fields, ok := m["fields"].(map[string]any); ok {
		delete(m, "fields")
		for k, v := range fields {
			if _, exists := m[k]; !exists {
				m[k] = v
			}
		}
	}
	switch tags := m["tags"].(type) {
	case []any:
		parts := make([]string, 0, len(tags))
		for _, t := range tags {
			s, ok := t.(string)
			if !ok {
				continue
			}
			if strings.Contains(s, " ") {
				s = "[[" + s + "]]"
			}
			parts = append(parts, s)
		}
		m["tags"] = strings.Join(parts, " ")
	case string, nil:
	default:
		delete(m, "tags")
	}
	m["title"] = d.Title
	m["revision"] = strconv.FormatInt(d.Revision, 10)
	if _, ok := m["bag"]; !ok {
		m["bag"] = "default"
	}
	return m
}

// SkinnyValue is APIValue without the text body, for the tiddlers.json
// listing and the change-feed resync path.
func (d *Document) SkinnyValue() map[string]any {
	m := d.APIValue()
	delete(m, "text")
	return m
}

// PresignResponse is what the browser needs to upload directly to object
// storage and to record the frozen location in the document it saves next.
type PresignResponse struct {
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
	Name      string `json:"name"`
	Key       string `json:"key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
}

type InboxRequest struct {
	Text string `json:"text"`
	Tags string `json:"tags,omitempty"`
}

type InboxResponse struct {
	Status  string `json:"status"`
	Title   string `json:"title"`
	Created string `json:"created"`
}
