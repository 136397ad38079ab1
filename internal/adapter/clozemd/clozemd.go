// Package clozemd is the built-in adapter: cloze-deletion flashcards
// embedded in markdown.
//
// Syntax:
//
//	{{answer}}              ungrouped cloze
//	{{answer::hint}}        ungrouped, with hint
//	{{1::answer}}           grouped (all blanked together)
//	{{1::answer::hint}}     grouped, with hint
//	{{1.1::answer}}         sequence step (progressive reveal)
//	{{1.1::answer::hint}}   sequence step, with hint
//	{{answer}}[-1,2]        scope modifier: 1 paragraph before, 2 after
//
// `> ?` starts a context block (a blockquote carried verbatim into the
// card instead of being paragraph-segmented).
package clozemd

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	bf "github.com/microcosm-cc/bluemonday"

	"github.com/AM-Campbell/sr/internal/adapter"
)

// Name is the adapter's registry name, written into frontmatter as
// `sr_adapter: clozemd`.
const Name = "clozemd"

func init() {
	adapter.Register(Name, func() adapter.Adapter { return New() })
}

var (
	clozeWithScopeRe = regexp.MustCompile(`\{\{([^}]+)\}\}(?:\[(-?\d+)?(?:,(-?\d+))?\])?`)
	clozePlainRe     = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	numericRe        = regexp.MustCompile(`^\d+$`)
	dottedRe         = regexp.MustCompile(`^\d+\.\d+$`)
)

// Adapter implements the adapter contract for cloze markdown sources.
type Adapter struct {
	sanitizer *bf.Policy
}

// New builds a clozemd adapter with its own sanitization policy.
func New() *Adapter {
	return &Adapter{sanitizer: bf.UGCPolicy()}
}

// cloze is one parsed {{...}} occurrence within a block.
type cloze struct {
	id          string // "" = ungrouped, "1" = grouped, "1.1" = sequence
	answer      string
	hint        string
	scopeBefore int
	scopeAfter  int
	start, end  int
}

type block struct {
	text      string
	startLine int
}

// Parse is deterministic in (text, config) and emits unique keys per call.
func (a *Adapter) Parse(text, path string, config map[string]any) ([]adapter.CardRecord, error) {
	body, bodyStartLine := stripFrontmatter(text)
	tags := tagsFromConfig(config)

	blocks := segmentBlocks(body, bodyStartLine)
	var records []adapter.CardRecord

	for blockIdx, b := range blocks {
		clozes := findClozes(b.text)
		if len(clozes) == 0 {
			continue
		}

		var ungrouped []int
		groups := map[string][]int{}
		sequences := map[string][]int{} // base -> cloze indices, later sorted by step

		for i, c := range clozes {
			switch {
			case c.id == "":
				ungrouped = append(ungrouped, i)
			case dottedRe.MatchString(c.id):
				base := strings.SplitN(c.id, ".", 2)[0]
				sequences[base] = append(sequences[base], i)
			case numericRe.MatchString(c.id):
				groups[c.id] = append(groups[c.id], i)
			default:
				ungrouped = append(ungrouped, i)
			}
		}
		for base := range sequences {
			indices := sequences[base]
			sort.Slice(indices, func(i, j int) bool {
				return dottedLess(clozes[indices[i]].id, clozes[indices[j]].id)
			})
			sequences[base] = indices
		}

		cardsByKey := map[string]*adapter.CardRecord{}
		var nonSeqKeys []string
		seqKeysByBase := map[string][]string{}

		for _, idx := range ungrouped {
			c := clozes[idx]
			cardText := buildText(b.text, clozes, map[int]bool{idx: true})
			cardText = applyScope(cardText, blocks, blockIdx, c.scopeBefore, c.scopeAfter)
			key := fmt.Sprintf("cloze_L%d_C%d", b.startLine, idx)
			rec := newCardRecord(key, cardText, b.startLine, tags)
			cardsByKey[key] = rec
			nonSeqKeys = append(nonSeqKeys, key)
		}

		for gid, indices := range groups {
			active := map[int]bool{}
			for _, i := range indices {
				active[i] = true
			}
			cardText := buildText(b.text, clozes, active)
			first := clozes[indices[0]]
			cardText = applyScope(cardText, blocks, blockIdx, first.scopeBefore, first.scopeAfter)
			key := "group_" + gid
			rec := newCardRecord(key, cardText, b.startLine, tags)
			cardsByKey[key] = rec
			nonSeqKeys = append(nonSeqKeys, key)
		}

		for base, indices := range sequences {
			var stepKeys []string
			for step := 0; step < len(indices); step++ {
				active := map[int]bool{}
				for j := step; j < len(indices); j++ {
					active[indices[j]] = true
				}
				cardText := buildText(b.text, clozes, active)
				stepID := clozes[indices[step]].id
				key := fmt.Sprintf("seq_%s_%s", base, stepID)
				rec := newCardRecord(key, cardText, b.startLine, tags)
				cardsByKey[key] = rec
				stepKeys = append(stepKeys, key)
			}
			seqKeysByBase[base] = stepKeys
		}

		for i, keyA := range nonSeqKeys {
			for _, keyB := range nonSeqKeys[i+1:] {
				cardsByKey[keyA].Relations = append(cardsByKey[keyA].Relations, adapter.Relation{
					TargetKey: keyB, RelationType: "mutually_exclusive",
				})
			}
		}
		for _, stepKeys := range seqKeysByBase {
			for i := 0; i+1 < len(stepKeys); i++ {
				cardsByKey[stepKeys[i]].Relations = append(cardsByKey[stepKeys[i]].Relations, adapter.Relation{
					TargetKey: stepKeys[i+1], RelationType: "is_followed_by_on_correct",
				})
			}
		}

		keys := make([]string, 0, len(cardsByKey))
		for k := range cardsByKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			records = append(records, *cardsByKey[k])
		}
	}

	return records, nil
}

func newCardRecord(key, text string, sourceLine int, tags []string) *adapter.CardRecord {
	display := text
	if len(display) > 200 {
		display = display[:200]
	}
	return &adapter.CardRecord{
		Key:         key,
		Content:     map[string]any{"text": text},
		DisplayText: display,
		Gradable:    true,
		SourceLine:  sourceLine,
		Tags:        append([]string(nil), tags...),
	}
}

// RenderFront renders clozes as blanks. Content is never mutated.
func (a *Adapter) RenderFront(content map[string]any) (string, error) {
	text, _ := content["text"].(string)
	rendered := mdToHTML(text)
	rendered = clozePlainRe.ReplaceAllStringFunc(rendered, func(m string) string {
		inner := clozePlainRe.FindStringSubmatch(m)[1]
		_, _, hint := parseClozeInner(inner)
		if hint != "" {
			return `<span class="cloze-blank">[` + hint + `…]</span>`
		}
		return `<span class="cloze-blank">[…]</span>`
	})
	return "<div>" + a.sanitizer.Sanitize(rendered) + "</div>", nil
}

// RenderBack renders clozes as highlighted answers.
func (a *Adapter) RenderBack(content map[string]any) (string, error) {
	text, _ := content["text"].(string)
	rendered := mdToHTML(text)
	rendered = clozePlainRe.ReplaceAllStringFunc(rendered, func(m string) string {
		inner := clozePlainRe.FindStringSubmatch(m)[1]
		_, answer, _ := parseClozeInner(inner)
		return "<mark>" + answer + "</mark>"
	})
	return "<div>" + a.sanitizer.Sanitize(rendered) + "</div>", nil
}

func tagsFromConfig(config map[string]any) []string {
	raw, ok := config["tags"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
		return tags
	case string:
		parts := strings.Split(v, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return parts
	default:
		return nil
	}
}

// parseClozeInner parses the inside of {{...}} into (id, answer, hint),
// using the 2-segment disambiguation rule: a numeric/dotted-numeric first
// segment is an id, otherwise it is answer::hint.
func parseClozeInner(inner string) (id, answer, hint string) {
	parts := strings.Split(inner, "::")
	switch len(parts) {
	case 1:
		return "", strings.TrimSpace(parts[0]), ""
	case 2:
		first := strings.TrimSpace(parts[0])
		second := strings.TrimSpace(parts[1])
		if numericRe.MatchString(first) || dottedRe.MatchString(first) {
			return first, second, ""
		}
		return "", first, second
	default:
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	}
}

func stripFrontmatter(text string) (body string, bodyStartLine int) {
	if !strings.HasPrefix(text, "---") {
		return text, 1
	}
	idx := strings.Index(text[3:], "\n---")
	if idx == -1 {
		return text, 1
	}
	end := idx + 3 + len("\n---")
	return text[end:], strings.Count(text[:end], "\n") + 1
}

func segmentBlocks(body string, bodyStartLine int) []block {
	lines := strings.Split(body, "\n")
	var blocks []block
	var current []string
	currentStart := bodyStartLine
	inContext := false

	flush := func() {
		if len(current) > 0 {
			text := strings.Join(current, "\n")
			if strings.TrimSpace(text) != "" {
				blocks = append(blocks, block{text: text, startLine: currentStart})
			}
			current = nil
		}
		inContext = false
	}

	for i, line := range lines {
		absLine := bodyStartLine + i
		stripped := strings.TrimSpace(line)

		if stripped == "> ?" || stripped == ">?" {
			flush()
			inContext = true
			currentStart = absLine
			continue
		}

		if inContext {
			if strings.HasPrefix(stripped, "> ") || stripped == ">" {
				if stripped == ">" {
					current = append(current, "")
				} else {
					current = append(current, strings.TrimPrefix(strings.TrimPrefix(line, ">"), " "))
				}
				continue
			}
			flush()
		}

		if stripped == "" {
			if len(current) > 0 {
				flush()
			}
			continue
		}
		if len(current) == 0 {
			currentStart = absLine
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func findClozes(blockText string) []cloze {
	matches := clozeWithScopeRe.FindAllStringSubmatchIndex(blockText, -1)
	clozes := make([]cloze, 0, len(matches))
	for _, m := range matches {
		inner := blockText[m[2]:m[3]]
		id, answer, hint := parseClozeInner(inner)

		c := cloze{id: id, answer: answer, hint: hint, start: m[0], end: m[1]}
		if m[4] != -1 {
			val, _ := strconv.Atoi(blockText[m[4]:m[5]])
			if val < 0 {
				c.scopeBefore = -val
			} else {
				c.scopeAfter = val
			}
		}
		if m[6] != -1 {
			val, _ := strconv.Atoi(blockText[m[6]:m[7]])
			c.scopeAfter = val
		}
		clozes = append(clozes, c)
	}
	return clozes
}

func buildText(blockText string, clozes []cloze, active map[int]bool) string {
	var b strings.Builder
	last := 0
	for i, c := range clozes {
		b.WriteString(blockText[last:c.start])
		if active[i] {
			if c.hint != "" {
				b.WriteString("{{" + c.answer + "::" + c.hint + "}}")
			} else {
				b.WriteString("{{" + c.answer + "}}")
			}
		} else {
			b.WriteString(c.answer)
		}
		last = c.end
	}
	b.WriteString(blockText[last:])
	return b.String()
}

func applyScope(cardText string, blocks []block, blockIdx, scopeBefore, scopeAfter int) string {
	if scopeBefore == 0 && scopeAfter == 0 {
		return cardText
	}
	var parts []string
	for i := max(0, blockIdx-scopeBefore); i < blockIdx; i++ {
		parts = append(parts, blocks[i].text)
	}
	parts = append(parts, cardText)
	for i := blockIdx + 1; i < min(len(blocks), blockIdx+1+scopeAfter); i++ {
		parts = append(parts, blocks[i].text)
	}
	return strings.Join(parts, "\n\n")
}

func dottedLess(a, b string) bool {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, _ := strconv.Atoi(pa[i])
		nb, _ := strconv.Atoi(pb[i])
		if na != nb {
			return na < nb
		}
	}
	return len(pa) < len(pb)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// mdToHTML renders Markdown via goldmark, relying on goldmark's own escaping
// of text; only if conversion fails is the raw text HTML-escaped instead.
// Cloze markers
// `{{`/`}}` survive goldmark's pass untouched since they are not Markdown
// syntax, so the regex substitutions above still find them afterward.
func mdToHTML(text string) string {
	var buf strings.Builder
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return html.EscapeString(text)
	}
	return buf.String()
}
