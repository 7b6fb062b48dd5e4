package workspace

import "time"

// Property is one typed record property as returned by the store. Extraction
// is total: every accessor returns a safe zero value when the property is
// absent, of another type, or malformed — it never panics.
type Property map[string]any

// Type returns the declared property type, or "" when absent.
func (p Property) Type() string {
	t, _ := p["type"].(string)
	return t
}

// Text extracts plain text from title and rich_text properties, and falls
// back to url and select values so callers can treat any text-ish property
// uniformly.
func (p Property) Text() string {
	switch p.Type() {
	case "title":
		return joinPlainText(p["title"])
	case "rich_text":
		return joinPlainText(p["rich_text"])
	case "url":
		return p.URL()
	case "select":
		return p.SelectName()
	}
	return ""
}

// URL extracts a url property value.
func (p Property) URL() string {
	u, _ := p["url"].(string)
	return u
}

// SelectName extracts the selected option name, or "" when unset.
func (p Property) SelectName() string {
	sel, ok := p["select"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := sel["name"].(string)
	return name
}

// MultiSelect extracts the selected option names.
func (p Property) MultiSelect() []string {
	items, ok := p["multi_select"].([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := obj["name"].(string); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Number extracts a number property value, 0 when unset.
func (p Property) Number() float64 {
	n, _ := p["number"].(float64)
	return n
}

// Checkbox extracts a checkbox property value.
func (p Property) Checkbox() bool {
	b, _ := p["checkbox"].(bool)
	return b
}

// RelationIDs extracts the ids of related records.
func (p Property) RelationIDs() []string {
	items, ok := p["relation"].([]any)
	if !ok {
		return nil
	}
	var ids []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := obj["id"].(string); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// DateStart extracts the start of a date property, "" when unset.
func (p Property) DateStart() string {
	d, ok := p["date"].(map[string]any)
	if !ok {
		return ""
	}
	start, _ := d["start"].(string)
	return start
}

func joinPlainText(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}
	out := ""
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if text, _ := obj["plain_text"].(string); text != "" {
			out += text
		}
	}
	return out
}

// Property builders for writes. Each returns the store's native JSON shape
// for one property value.

// Title builds a title property value.
func Title(text string) map[string]any {
	return map[string]any{
		"title": []map[string]any{{"text": map[string]any{"content": text}}},
	}
}

// RichText builds a rich_text property value.
func RichText(text string) map[string]any {
	return map[string]any{
		"rich_text": []map[string]any{{"text": map[string]any{"content": text}}},
	}
}

// Select builds a select property value.
func Select(name string) map[string]any {
	return map[string]any{"select": map[string]any{"name": name}}
}

// Status builds a status property value.
func Status(name string) map[string]any {
	return map[string]any{"status": map[string]any{"name": name}}
}

// MultiSelect builds a multi_select property value.
func MultiSelect(names []string) map[string]any {
	opts := make([]map[string]any, 0, len(names))
	for _, name := range names {
		opts = append(opts, map[string]any{"name": name})
	}
	return map[string]any{"multi_select": opts}
}

// Number builds a number property value.
func Number(n float64) map[string]any {
	return map[string]any{"number": n}
}

// Checkbox builds a checkbox property value.
func Checkbox(b bool) map[string]any {
	return map[string]any{"checkbox": b}
}

// Date builds a date property value at second precision UTC.
func Date(t time.Time) map[string]any {
	return map[string]any{
		"date": map[string]any{"start": t.UTC().Truncate(time.Second).Format(time.RFC3339)},
	}
}

// DateString builds a date property value from an ISO 8601 string.
func DateString(iso string) map[string]any {
	return map[string]any{"date": map[string]any{"start": iso}}
}

// URLValue builds a url property value.
func URLValue(u string) map[string]any {
	return map[string]any{"url": u}
}

// Relation builds a relation property value linking the given record ids.
func Relation(ids ...string) map[string]any {
	refs := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, map[string]any{"id": id})
	}
	return map[string]any{"relation": refs}
}
