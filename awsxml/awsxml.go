// Package awsxml extracts records from AWS Query API XML responses
// by string scanning. AWS nests repeated elements inconsistently
// (<item>, <member>, or a service-specific tag) depending on the API
// generation, so extraction slices on a stable leaf tag instead of
// building a tree. Every field read is best-effort: a missing optional
// field degrades, it never aborts the record.
package awsxml

import (
	"encoding/json"
	"strings"
)

// default repeated-element boundaries across Query API generations.
var defaultBoundaries = []string{"item", "member"}

// Section returns the inner text of the first <name>...</name> element.
// The second return distinguishes "section absent" (false) from an
// empty section: an absent section must be skipped entirely, never
// turned into a fabricated one-element result.
func Section(doc, name string) (string, bool) {
	open := "<" + name + ">"
	start := strings.Index(doc, open)
	if start < 0 {
		// Tolerate attributes on the section tag.
		open = "<" + name + " "
		start = strings.Index(doc, open)
		if start < 0 {
			return "", false
		}
		end := strings.Index(doc[start:], ">")
		if end < 0 {
			return "", false
		}
		start += end + 1
	} else {
		start += len(open)
	}

	close := "</" + name + ">"
	end := strings.Index(doc[start:], close)
	if end < 0 {
		return "", false
	}
	return doc[start : start+end], true
}

// Blocks splits a section into repeated-record slices. It finds
// successive occurrences of leafTag and slices back to the nearest
// enclosing boundary tag; recurrences of leafTag deeper inside a
// record are absorbed into that record's block.
// Additional boundary tags may be passed for services that wrap
// records in a named element (e.g. <DBInstance>, <Bucket>).
func Blocks(section, leafTag string, boundaries ...string) []string {
	marks := append(append([]string(nil), defaultBoundaries...), boundaries...)

	starts := blockStarts(section, "<"+leafTag+">", marks)
	if len(starts) == 0 {
		return nil
	}

	blocks := make([]string, 0, len(starts))
	for i, start := range starts {
		end := len(section)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		blocks = append(blocks, section[start:end])
	}
	return blocks
}

// blockStarts returns, for each record-opening occurrence of leaf,
// the offset of the nearest preceding boundary open tag. A leaf with
// no enclosing boundary newer than the previous record start is a
// recurrence inside that record (CloudFront nests an <Id> per origin
// under each distribution) and must not open a fabricated record.
// Flat unwrapped lists never reach here; they go through Values.
func blockStarts(section, leaf string, boundaries []string) []int {
	var starts []int
	offset := 0
	for {
		idx := strings.Index(section[offset:], leaf)
		if idx < 0 {
			break
		}
		leafAt := offset + idx
		offset = leafAt + len(leaf)

		// The nearest preceding boundary wins, but it must not belong
		// to the previous record's block.
		best := -1
		for _, b := range boundaries {
			at := strings.LastIndex(section[:leafAt], "<"+b+">")
			if at > best && (len(starts) == 0 || at > starts[len(starts)-1]) {
				best = at
			}
		}
		if best < 0 {
			continue
		}
		starts = append(starts, best)
	}
	return starts
}

// Field returns the inner text of the first <tag>...</tag> in block,
// or "" when the tag is absent.
func Field(block, tag string) string {
	open := "<" + tag + ">"
	start := strings.Index(block, open)
	if start < 0 {
		return ""
	}
	start += len(open)
	end := strings.Index(block[start:], "</"+tag+">")
	if end < 0 {
		return ""
	}
	return unescape(block[start : start+end])
}

// FieldOr is Field with a fallback for optional values.
func FieldOr(block, tag, fallback string) string {
	if v := Field(block, tag); v != "" {
		return v
	}
	return fallback
}

// Values returns the inner text of every <tag>...</tag> occurrence.
// Used for flat lists that repeat a leaf without any wrapper (e.g.
// <QueueUrl> in ListQueues).
func Values(section, tag string) []string {
	var out []string
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	offset := 0
	for {
		start := strings.Index(section[offset:], open)
		if start < 0 {
			break
		}
		start += offset + len(open)
		end := strings.Index(section[start:], close)
		if end < 0 {
			break
		}
		out = append(out, unescape(section[start:start+end]))
		offset = start + end + len(close)
	}
	return out
}

// TagValue reads the <value> paired with a given <key> inside an AWS
// tag set block.
func TagValue(block, key string) string {
	marker := "<key>" + key + "</key>"
	at := strings.Index(block, marker)
	if at < 0 {
		return ""
	}
	return Field(block[at:], "value")
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	r := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
	return r.Replace(s)
}

// UnwrapJSON extracts the item list from a JSON REST response
// envelope. AWS wraps collections as _embedded.item, item, or a bare
// array; the shapes are tried in that order. A single object where a
// list was expected unwraps to a one-element slice.
func UnwrapJSON(body []byte) ([]map[string]any, error) {
	var asList []map[string]any
	if err := json.Unmarshal(body, &asList); err == nil {
		return asList, nil
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	if embedded, ok := envelope["_embedded"].(map[string]any); ok {
		if items := itemsOf(embedded["item"]); items != nil {
			return items, nil
		}
	}
	if items := itemsOf(envelope["item"]); items != nil {
		return items, nil
	}
	return nil, nil
}

func itemsOf(v any) []map[string]any {
	switch item := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(item))
		for _, entry := range item {
			if m, ok := entry.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{item}
	default:
		return nil
	}
}

// Str reads a string field from a decoded JSON object, "" when absent
// or not a string.
func Str(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

// StrList reads a list of strings from a decoded JSON object.
func StrList(obj map[string]any, key string) []string {
	raw, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
