package feed

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/mmcdole/gofeed"
)

// RawItem is a flattened, lowercase-keyed view of one feed item before
// normalization. Bare string items surface under the "rawtext" key.
type RawItem map[string]string

// Extractor locates the repeating item structure in a parsed feed document.
// Feeds arrive in several shapes; the probe order is fixed because a document
// can structurally satisfy more than one pattern:
//
//  1. RSS-style rss.channel.item (item singular or repeated)
//  2. Atom-style feed.entry
//  3. generic jobs.job wrapper
//  4. bare job field
//  5. first top-level list
//
// An unrecognized shape is zero jobs found, never an error.
type Extractor struct {
	parser *gofeed.Parser
}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	return &Extractor{parser: gofeed.NewParser()}
}

// ParseDocument decodes raw feed XML into a generic map view. Repeated
// elements become lists, attributes keep mxj's "-" prefix.
func ParseDocument(raw []byte) (mxj.Map, error) {
	doc, err := mxj.NewMapXml(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed XML: %v", err)
	}
	return doc, nil
}

// Extract yields the raw items of the first matching feed shape. RSS and Atom
// documents go through gofeed when the raw bytes are available, since it
// absorbs far more syndication variants than map probing; the map path is the
// fallback.
func (e *Extractor) Extract(doc mxj.Map, raw []byte, sourceURL string) []RawItem {
	m := map[string]interface{}(doc)

	if rss, ok := m["rss"].(map[string]interface{}); ok {
		if _, has := rss["channel"]; has {
			if items, ok := e.fromSyndication(raw); ok {
				return items
			}
			var out []RawItem
			for _, ch := range asList(rss["channel"]) {
				if chm, ok := ch.(map[string]interface{}); ok {
					out = append(out, itemsOf(chm["item"])...)
				}
			}
			return out
		}
	}

	if fm, ok := m["feed"].(map[string]interface{}); ok {
		if _, has := fm["entry"]; has {
			if items, ok := e.fromSyndication(raw); ok {
				return items
			}
			return itemsOf(fm["entry"])
		}
	}

	if jm, ok := m["jobs"].(map[string]interface{}); ok {
		if v, has := jm["job"]; has {
			return itemsOf(v)
		}
	}

	if v, has := m["job"]; has {
		return itemsOf(v)
	}

	// Last resort: the first top-level key holding a list. Keys are sorted so
	// repeated extraction of the same document stays deterministic.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if list, ok := m[k].([]interface{}); ok {
			return itemsOf(list)
		}
	}

	return nil
}

// fromSyndication parses RSS/Atom documents with gofeed and maps each entry
// to a RawItem. Returns ok=false when gofeed can't handle the document.
func (e *Extractor) fromSyndication(raw []byte) ([]RawItem, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	parsed, err := e.parser.Parse(bytes.NewReader(raw))
	if err != nil || parsed == nil {
		return nil, false
	}

	items := make([]RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item := RawItem{}
		put(item, "title", entry.Title)
		put(item, "link", entry.Link)
		put(item, "description", entry.Description)
		put(item, "content", entry.Content)
		put(item, "guid", entry.GUID)
		put(item, "pubdate", entry.Published)
		if entry.Author != nil {
			put(item, "author", entry.Author.Name)
		}
		if len(entry.Categories) > 0 {
			put(item, "category", strings.Join(entry.Categories, ", "))
		}
		// Custom carries non-standard child elements (company, jobType, ...)
		for k, v := range entry.Custom {
			put(item, strings.ToLower(k), v)
		}
		items = append(items, item)
	}
	return items, true
}

// itemsOf converts a singular-or-list map value into raw items.
func itemsOf(v interface{}) []RawItem {
	var out []RawItem
	for _, el := range asList(v) {
		if item := flattenItem(el); len(item) > 0 {
			out = append(out, item)
		}
	}
	return out
}

// flattenItem reduces one decoded item to a flat key-value view with
// lowercase keys.
func flattenItem(v interface{}) RawItem {
	switch el := v.(type) {
	case map[string]interface{}:
		item := RawItem{}
		for k, child := range el {
			key := strings.ToLower(strings.TrimPrefix(k, "-"))
			put(item, key, stringify(child))
		}
		return item
	case string:
		item := RawItem{}
		put(item, "rawtext", el)
		return item
	default:
		return nil
	}
}

// stringify collapses an mxj value into a plain string. Element text lives
// under "#text" for mixed content, Atom links carry an href attribute.
func stringify(v interface{}) string {
	switch el := v.(type) {
	case string:
		return strings.TrimSpace(el)
	case map[string]interface{}:
		if text, ok := el["#text"]; ok {
			return stringify(text)
		}
		if href, ok := el["-href"]; ok {
			return stringify(href)
		}
		return ""
	case []interface{}:
		if len(el) > 0 {
			return stringify(el[0])
		}
		return ""
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", el))
	}
}

func asList(v interface{}) []interface{} {
	switch el := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return el
	default:
		return []interface{}{el}
	}
}

func put(item RawItem, key, value string) {
	value = strings.TrimSpace(value)
	if value != "" && item[key] == "" {
		item[key] = value
	}
}
