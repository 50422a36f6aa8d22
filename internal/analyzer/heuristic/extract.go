package heuristic

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Element kinds reported on each item.
const (
	KindCheckbox = "checkbox"
	KindButton   = "button"
	KindLink     = "link"
	KindBanner   = "banner"
	KindUnknown  = "unknown"
)

const (
	maxItemTextBytes = 2000
	minBannerRunes   = 11
)

var (
	buttonWords = []string{"accept", "reject", "consent", "agree", "decline", "manage", "preferences"}
	linkWords   = []string{"privacy", "cookie", "consent", "policy", "preferences"}
	bannerWords = []string{"cookie", "consent", "gdpr"}

	// jsonListKeys are checked first when the source is a JSON document.
	jsonListKeys = []string{"consent_elements", "buttons", "checkboxes", "links", "banners"}
)

type element struct {
	kind string
	text string
}

func (e element) interactive() bool {
	return e.kind == KindCheckbox || e.kind == KindButton || e.kind == KindLink
}

// fromHTML walks the document for labelled checkboxes, consent buttons,
// privacy links and cookie banners, in that order.
func fromHTML(doc *goquery.Document) []element {
	var out []element

	// A checkbox takes the first label that follows it in document order.
	var pending []int
	var nodes []*goquery.Selection
	doc.Find("input, label").Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, s)
		if goquery.NodeName(s) == "input" && strings.EqualFold(s.AttrOr("type", ""), "checkbox") {
			pending = append(pending, len(nodes)-1)
		}
	})
	for _, idx := range pending {
		for _, s := range nodes[idx+1:] {
			if goquery.NodeName(s) != "label" {
				continue
			}
			if text := cleanText(s.Text()); text != "" {
				out = append(out, element{kind: KindCheckbox, text: text})
			}
			break
		}
	}

	addButton := func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.AttrOr("value", ""))
		if text == "" {
			text = cleanText(s.Text())
		}
		if text != "" && containsAny(text, buttonWords) {
			out = append(out, element{kind: KindButton, text: text})
		}
	}
	doc.Find("button").Each(addButton)
	doc.Find(`input[type="submit"], input[type="button"]`).Each(addButton)

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if text := cleanText(s.Text()); text != "" && containsAny(text, linkWords) {
			out = append(out, element{kind: KindLink, text: text})
		}
	})

	doc.Find("div, section").Each(func(_ int, s *goquery.Selection) {
		class, ok := s.Attr("class")
		if !ok || !containsAny(class, bannerWords) {
			return
		}
		if text := cleanText(s.Text()); utf8.RuneCountInString(text) >= minBannerRunes {
			out = append(out, element{kind: KindBanner, text: text})
		}
	})

	return out
}

// fromJSON reads pre-extracted elements from a JSON document. Known list keys
// win; otherwise every list of objects with a "text" field is used.
func fromJSON(doc map[string]any) []element {
	var out []element
	for _, key := range jsonListKeys {
		out = append(out, jsonElements(doc[key])...)
	}
	if len(out) > 0 {
		return out
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, jsonElements(doc[k])...)
	}
	return out
}

func jsonElements(v any) []element {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []element
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		text, ok := obj["text"].(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		kind, _ := obj["type"].(string)
		if kind == "" {
			kind = KindUnknown
		}
		out = append(out, element{kind: kind, text: cleanText(text)})
	}
	return out
}

// language returns the primary subtag of <html lang>, or "" when absent.
func language(doc *goquery.Document) string {
	lang := strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

func containsAny(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// cleanText collapses whitespace and bounds the length.
func cleanText(s string) string {
	return truncateString(strings.Join(strings.Fields(s), " "), maxItemTextBytes)
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
