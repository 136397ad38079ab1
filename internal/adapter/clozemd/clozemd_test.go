package clozemd

import (
	"sort"
	"strings"
	"testing"

	"github.com/AM-Campbell/sr/internal/adapter"
)

// ---------------------------------------------------------------------------
// parseClozeInner — :: disambiguation
// ---------------------------------------------------------------------------

func TestParseClozeInner(t *testing.T) {
	cases := []struct {
		name               string
		inner              string
		wantID, wantAnswer string
		wantHint           string
	}{
		{"basic answer", "hello", "", "hello", ""},
		{"answer hint", "answer::hint", "", "answer", "hint"},
		{"numeric id answer", "1::answer", "1", "answer", ""},
		{"numeric id answer hint", "1::answer::hint", "1", "answer", "hint"},
		{"dotted id answer", "1.1::answer", "1.1", "answer", ""},
		{"dotted id answer hint", "1.1::answer::hint", "1.1", "answer", "hint"},
		{"multidigit numeric id", "42::answer", "42", "answer", ""},
		{"multidigit dotted id", "10.20::answer", "10.20", "answer", ""},
		{"text first segment is hint", "photosynthesis::a process", "", "photosynthesis", "a process"},
		{"whitespace stripped", " answer :: hint ", "", "answer", "hint"},
		{"four segments ignores extra", "1::ans::hint::extra", "1", "ans", "hint"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, answer, hint := parseClozeInner(tc.inner)
			if id != tc.wantID || answer != tc.wantAnswer || hint != tc.wantHint {
				t.Errorf("parseClozeInner(%q) = (%q,%q,%q), want (%q,%q,%q)",
					tc.inner, id, answer, hint, tc.wantID, tc.wantAnswer, tc.wantHint)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// stripFrontmatter
// ---------------------------------------------------------------------------

func TestStripFrontmatterWithFrontmatter(t *testing.T) {
	text := "---\nsr_adapter: clozemd\ntags: [bio]\n---\nBody here."
	body, start := stripFrontmatter(text)
	if strings.TrimSpace(body) != "Body here." {
		t.Errorf("body = %q, want %q", body, "Body here.")
	}
	if start != 4 {
		t.Errorf("bodyStartLine = %d, want 4", start)
	}
}

func TestStripFrontmatterWithoutFrontmatter(t *testing.T) {
	body, start := stripFrontmatter("Just a body.")
	if body != "Just a body." || start != 1 {
		t.Errorf("got (%q, %d), want (%q, 1)", body, start, "Just a body.")
	}
}

func TestStripFrontmatterUnclosedIsNotFrontmatter(t *testing.T) {
	text := "---\nno closing marker\nstill going"
	body, start := stripFrontmatter(text)
	if body != text || start != 1 {
		t.Errorf("unclosed frontmatter should pass text through unchanged, got (%q, %d)", body, start)
	}
}

// ---------------------------------------------------------------------------
// segmentBlocks
// ---------------------------------------------------------------------------

func TestSegmentBlocksParagraphs(t *testing.T) {
	blocks := segmentBlocks("Para one.\n\nPara two.", 1)
	if len(blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(blocks))
	}
	if blocks[0].text != "Para one." || blocks[1].text != "Para two." {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestSegmentBlocksContextBlock(t *testing.T) {
	blocks := segmentBlocks("> ?\n> Line one.\n> Line two.", 1)
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	if blocks[0].text != "Line one.\nLine two." {
		t.Errorf("context block text = %q", blocks[0].text)
	}
}

func TestSegmentBlocksMixedParaAndContext(t *testing.T) {
	body := "Normal para.\n\n> ?\n> Context line.\n\nAnother para."
	blocks := segmentBlocks(body, 1)
	if len(blocks) != 3 {
		t.Fatalf("len(blocks) = %d, want 3", len(blocks))
	}
	if blocks[0].text != "Normal para." || blocks[1].text != "Context line." || blocks[2].text != "Another para." {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestSegmentBlocksLineNumbers(t *testing.T) {
	blocks := segmentBlocks("Para one.\n\nPara two.", 5)
	if blocks[0].startLine != 5 {
		t.Errorf("first block startLine = %d, want 5", blocks[0].startLine)
	}
	if blocks[1].startLine != 7 {
		t.Errorf("second block startLine = %d, want 7 (blank at 6)", blocks[1].startLine)
	}
}

func TestSegmentBlocksEmptyBody(t *testing.T) {
	if blocks := segmentBlocks("", 1); len(blocks) != 0 {
		t.Errorf("blocks = %+v, want none", blocks)
	}
	if blocks := segmentBlocks("\n\n\n", 1); len(blocks) != 0 {
		t.Errorf("blocks = %+v, want none", blocks)
	}
}

func TestSegmentBlocksContextBlockEmptyLine(t *testing.T) {
	blocks := segmentBlocks("> ?\n> Before.\n>\n> After.", 1)
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	if blocks[0].text != "Before.\n\nAfter." {
		t.Errorf("text = %q, want %q", blocks[0].text, "Before.\n\nAfter.")
	}
}

// ---------------------------------------------------------------------------
// findClozes
// ---------------------------------------------------------------------------

func TestFindClozesBasic(t *testing.T) {
	clozes := findClozes("The {{quick}} brown fox.")
	if len(clozes) != 1 || clozes[0].answer != "quick" || clozes[0].id != "" {
		t.Fatalf("clozes = %+v", clozes)
	}
}

func TestFindClozesMultiple(t *testing.T) {
	clozes := findClozes("{{a}} and {{b}} and {{c}}")
	if len(clozes) != 3 {
		t.Fatalf("len(clozes) = %d, want 3", len(clozes))
	}
	var answers []string
	for _, c := range clozes {
		answers = append(answers, c.answer)
	}
	if strings.Join(answers, ",") != "a,b,c" {
		t.Errorf("answers = %v", answers)
	}
}

func TestFindClozesScopeModifiers(t *testing.T) {
	cases := []struct {
		text                    string
		wantBefore, wantAfter int
	}{
		{"{{answer}}[-1]", 1, 0},
		{"{{answer}}[2]", 0, 2},
		{"{{answer}}[-1,2]", 1, 2},
		{"{{answer}}[,3]", 0, 3},
		{"{{answer}}", 0, 0},
	}
	for _, tc := range cases {
		clozes := findClozes(tc.text)
		if len(clozes) != 1 {
			t.Fatalf("findClozes(%q): len = %d", tc.text, len(clozes))
		}
		if clozes[0].scopeBefore != tc.wantBefore || clozes[0].scopeAfter != tc.wantAfter {
			t.Errorf("findClozes(%q) scope = (%d,%d), want (%d,%d)",
				tc.text, clozes[0].scopeBefore, clozes[0].scopeAfter, tc.wantBefore, tc.wantAfter)
		}
	}
}

func TestFindClozesNoClozes(t *testing.T) {
	if clozes := findClozes("plain text"); len(clozes) != 0 {
		t.Errorf("clozes = %+v, want none", clozes)
	}
}

// ---------------------------------------------------------------------------
// buildText
// ---------------------------------------------------------------------------

func TestBuildTextActiveVsInactive(t *testing.T) {
	text := "{{a}} and {{b}}"
	clozes := findClozes(text)

	single := buildText(text, clozes, map[int]bool{0: true})
	if !strings.Contains(single, "{{a}}") || strings.Contains(single, "{{b}}") || !strings.Contains(single, " b") {
		t.Errorf("single-active result = %q", single)
	}

	none := buildText(text, clozes, map[int]bool{})
	if none != "a and b" {
		t.Errorf("none-active result = %q, want %q", none, "a and b")
	}
}

func TestBuildTextHintHandling(t *testing.T) {
	text := "{{ans::hint}}"
	clozes := findClozes(text)

	active := buildText(text, clozes, map[int]bool{0: true})
	if active != "{{ans::hint}}" {
		t.Errorf("active result = %q, want hint preserved", active)
	}

	inactive := buildText(text, clozes, map[int]bool{})
	if inactive != "ans" {
		t.Errorf("inactive result = %q, want hint stripped", inactive)
	}
}

func TestBuildTextStripsScopeModifierAndID(t *testing.T) {
	text := "{{answer}}[-1,2]"
	clozes := findClozes(text)
	result := buildText(text, clozes, map[int]bool{0: true})
	if strings.Contains(result, "[-1,2]") || !strings.Contains(result, "{{answer}}") {
		t.Errorf("result = %q, want scope modifier stripped", result)
	}

	text2 := "{{1::answer}}"
	clozes2 := findClozes(text2)
	result2 := buildText(text2, clozes2, map[int]bool{0: true})
	if result2 != "{{answer}}" {
		t.Errorf("result = %q, want id stripped from stored text", result2)
	}
}

// ---------------------------------------------------------------------------
// Parse — card generation
// ---------------------------------------------------------------------------

func cardText(c adapter.CardRecord) string {
	text, _ := c.Content["text"].(string)
	return text
}

func sortedKeys(cards []adapter.CardRecord) []string {
	keys := make([]string, len(cards))
	for i, c := range cards {
		keys[i] = c.Key
	}
	sort.Strings(keys)
	return keys
}

func TestParseUngroupedOneCardPerCloze(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\nThe {{quick}} brown {{fox}} jumps."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("len(cards) = %d, want 2", len(cards))
	}
	if !strings.Contains(cardText(cards[0]), "{{quick}}") || strings.Contains(cardText(cards[0]), "{{fox}}") {
		t.Errorf("card 0 text = %q, want quick active, fox plain", cardText(cards[0]))
	}
	if !strings.Contains(cardText(cards[1]), "{{fox}}") || strings.Contains(cardText(cards[1]), "{{quick}}") {
		t.Errorf("card 1 text = %q, want fox active, quick plain", cardText(cards[1]))
	}
}

func TestParseGroupedOneCardPerGroup(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\n{{1::quick}} brown {{1::fox}} jumps."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("len(cards) = %d, want 1", len(cards))
	}
	if !strings.Contains(cardText(cards[0]), "{{quick}}") || !strings.Contains(cardText(cards[0]), "{{fox}}") {
		t.Errorf("grouped card text = %q, want both blanked together", cardText(cards[0]))
	}
}

func TestParseGroupedWithHint(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\n{{1::quick::speed}} and {{1::fox::animal}}."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("len(cards) = %d, want 1", len(cards))
	}
	txt := cardText(cards[0])
	if !strings.Contains(txt, "{{quick::speed}}") || !strings.Contains(txt, "{{fox::animal}}") {
		t.Errorf("grouped hint card text = %q", txt)
	}
}

func TestParseSequenceProgressiveReveal(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\nFirst {{1.1::one}} then {{1.2::two}} then {{1.3::three}}."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("len(cards) = %d, want 3", len(cards))
	}

	t0 := cardText(cards[0])
	if !strings.Contains(t0, "{{one}}") || !strings.Contains(t0, "{{two}}") || !strings.Contains(t0, "{{three}}") {
		t.Errorf("step 1 text = %q, want all three blanked", t0)
	}

	t1 := cardText(cards[1])
	if strings.Contains(t1, "{{one}}") || !strings.Contains(t1, "one") {
		t.Errorf("step 2 text = %q, want one revealed", t1)
	}
	if !strings.Contains(t1, "{{two}}") || !strings.Contains(t1, "{{three}}") {
		t.Errorf("step 2 text = %q, want two/three still blanked", t1)
	}

	t2 := cardText(cards[2])
	if strings.Contains(t2, "{{one}}") || strings.Contains(t2, "{{two}}") {
		t.Errorf("step 3 text = %q, want one/two revealed", t2)
	}
	if !strings.Contains(t2, "{{three}}") {
		t.Errorf("step 3 text = %q, want three still blanked", t2)
	}
}

func TestParseSequenceOutOfOrderSorted(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\n{{1.2::second}} then {{1.1::first}}."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("len(cards) = %d, want 2", len(cards))
	}
	if cards[0].Key != "seq_1_1.1" || cards[1].Key != "seq_1_1.2" {
		t.Errorf("keys = %q, %q, want seq_1_1.1 then seq_1_1.2", cards[0].Key, cards[1].Key)
	}
}

func TestParseMultipleSequenceBases(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\n{{1.1::a}} {{2.1::x}} {{1.2::b}} {{2.2::y}}."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	keys := sortedKeys(cards)
	want := []string{"seq_1_1.1", "seq_1_1.2", "seq_2_2.1", "seq_2_2.2"}
	sort.Strings(want)
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys = %v, want %v", keys, want)
			break
		}
	}
}

func TestParseTagsFromConfig(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\nThe {{answer}}."

	cards, err := a.Parse(text, "/test.md", map[string]any{"tags": []string{"bio", "science"}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards[0].Tags) != 2 || cards[0].Tags[0] != "bio" || cards[0].Tags[1] != "science" {
		t.Errorf("tags = %v, want [bio science]", cards[0].Tags)
	}

	cards, err = a.Parse(text, "/test.md", map[string]any{"tags": "bio, science"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards[0].Tags) != 2 || cards[0].Tags[0] != "bio" || cards[0].Tags[1] != "science" {
		t.Errorf("string-config tags = %v, want [bio science]", cards[0].Tags)
	}
}

func TestParseNoClozesNoCards(t *testing.T) {
	a := New()
	cards, err := a.Parse("---\nsr_adapter: clozemd\n---\nJust plain text.", "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("cards = %+v, want none", cards)
	}
}

func TestParseDisplayTextTruncatedAt200(t *testing.T) {
	a := New()
	long := strings.Repeat("a", 300)
	text := "---\nsr_adapter: clozemd\n---\n" + long + " {{" + long + "}}."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards[0].DisplayText) != 200 {
		t.Errorf("len(DisplayText) = %d, want 200", len(cards[0].DisplayText))
	}
}

func TestParseGradableDefaultTrue(t *testing.T) {
	a := New()
	cards, err := a.Parse("---\nsr_adapter: clozemd\n---\nThe {{answer}}.", "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cards[0].Gradable {
		t.Errorf("Gradable = false, want true")
	}
}

// ---------------------------------------------------------------------------
// Relations
// ---------------------------------------------------------------------------

func relationsOfType(c adapter.CardRecord, relType string) []adapter.Relation {
	var out []adapter.Relation
	for _, r := range c.Relations {
		if r.RelationType == relType {
			out = append(out, r)
		}
	}
	return out
}

func TestParseMutuallyExclusiveUngroupedSameBlock(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\n{{a}} and {{b}} and {{c}}."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("len(cards) = %d, want 3", len(cards))
	}

	me0 := relationsOfType(cards[0], "mutually_exclusive")
	if len(me0) != 2 {
		t.Fatalf("card 0 ME relations = %+v, want 2", me0)
	}
	me1 := relationsOfType(cards[1], "mutually_exclusive")
	if len(me1) != 1 {
		t.Fatalf("card 1 ME relations = %+v, want 1", me1)
	}
	me2 := relationsOfType(cards[2], "mutually_exclusive")
	if len(me2) != 0 {
		t.Errorf("card 2 ME relations = %+v, want 0 (symmetric edge declared once)", me2)
	}
}

func TestParseNoMutuallyExclusiveBetweenBlocks(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\n{{a}} here.\n\n{{b}} there."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, c := range cards {
		if len(relationsOfType(c, "mutually_exclusive")) != 0 {
			t.Errorf("card %q has a cross-block ME relation: %+v", c.Key, c.Relations)
		}
	}
}

func TestParseNoMutuallyExclusiveSingleCloze(t *testing.T) {
	a := New()
	cards, err := a.Parse("---\nsr_adapter: clozemd\n---\n{{a}} alone.", "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards[0].Relations) != 0 {
		t.Errorf("relations = %+v, want none for a lone cloze", cards[0].Relations)
	}
}

func TestParseSequenceFollowedByChain(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\n{{1.1::step1}} then {{1.2::step2}} then {{1.3::step3}}."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("len(cards) = %d, want 3", len(cards))
	}

	fb0 := relationsOfType(cards[0], "is_followed_by_on_correct")
	if len(fb0) != 1 || fb0[0].TargetKey != cards[1].Key {
		t.Errorf("card 0 followed-by = %+v, want -> %q", fb0, cards[1].Key)
	}
	fb1 := relationsOfType(cards[1], "is_followed_by_on_correct")
	if len(fb1) != 1 || fb1[0].TargetKey != cards[2].Key {
		t.Errorf("card 1 followed-by = %+v, want -> %q", fb1, cards[2].Key)
	}
	fb2 := relationsOfType(cards[2], "is_followed_by_on_correct")
	if len(fb2) != 0 {
		t.Errorf("card 2 followed-by = %+v, want none", fb2)
	}
}

func TestParseSequenceNotMutuallyExclusive(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\n{{1.1::step1}} then {{1.2::step2}}."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, c := range cards {
		if len(relationsOfType(c, "mutually_exclusive")) != 0 {
			t.Errorf("sequence card %q should not be mutually exclusive: %+v", c.Key, c.Relations)
		}
	}
}

// ---------------------------------------------------------------------------
// Scope modifiers
// ---------------------------------------------------------------------------

func TestParseScopeBefore(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\nContext paragraph.\n\nThe {{answer}}[-1]."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("len(cards) = %d, want 1", len(cards))
	}
	txt := cardText(cards[0])
	if !strings.Contains(txt, "Context paragraph.") || !strings.Contains(txt, "The {{answer}}.") {
		t.Errorf("text = %q, want context paragraph pulled in", txt)
	}
}

func TestParseScopeAfter(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\nThe {{answer}}[2].\n\nAfter one.\n\nAfter two."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	txt := cardText(cards[0])
	if !strings.Contains(txt, "After one.") || !strings.Contains(txt, "After two.") {
		t.Errorf("text = %q, want both following paragraphs pulled in", txt)
	}
}

func TestParseScopeClampedAtBoundaries(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\nThe {{answer}}[-5,5]."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("requesting more scope than exists should not crash, got %d cards", len(cards))
	}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func TestRenderFrontBlanksAndHints(t *testing.T) {
	a := New()

	front, err := a.RenderFront(map[string]any{"text": "The {{quick}} brown fox."})
	if err != nil {
		t.Fatalf("RenderFront: %v", err)
	}
	if !strings.Contains(front, "[…]") || strings.Contains(front, "quick") {
		t.Errorf("front = %q, want a blank with no leaked answer", front)
	}

	frontHint, err := a.RenderFront(map[string]any{"text": "The {{answer::a hint}}."})
	if err != nil {
		t.Fatalf("RenderFront: %v", err)
	}
	if !strings.Contains(frontHint, "a hint") || strings.Contains(frontHint, "answer") {
		t.Errorf("front with hint = %q, want hint shown and answer hidden", frontHint)
	}
}

func TestRenderBackHighlightsAndStripsHint(t *testing.T) {
	a := New()

	back, err := a.RenderBack(map[string]any{"text": "The {{quick}} brown fox."})
	if err != nil {
		t.Fatalf("RenderBack: %v", err)
	}
	if !strings.Contains(back, "<mark>quick</mark>") {
		t.Errorf("back = %q, want highlighted answer", back)
	}

	backHint, err := a.RenderBack(map[string]any{"text": "The {{answer::hint}}."})
	if err != nil {
		t.Fatalf("RenderBack: %v", err)
	}
	if !strings.Contains(backHint, "<mark>answer</mark>") || strings.Contains(backHint, "hint") {
		t.Errorf("back with hint = %q, want hint stripped", backHint)
	}
}

func TestRenderFrontMarkdown(t *testing.T) {
	a := New()
	front, err := a.RenderFront(map[string]any{"text": "The **bold** {{answer}}."})
	if err != nil {
		t.Fatalf("RenderFront: %v", err)
	}
	if !strings.Contains(front, "<strong>bold</strong>") {
		t.Errorf("front = %q, want markdown bold rendered", front)
	}
}

func TestRenderEscapesAmpersandInAnswer(t *testing.T) {
	a := New()

	back, err := a.RenderBack(map[string]any{"text": "The {{Q&A}} process."})
	if err != nil {
		t.Fatalf("RenderBack: %v", err)
	}
	if strings.Contains(back, "Q&A") {
		t.Errorf("back = %q, want a bare & escaped to &amp;", back)
	}
	if !strings.Contains(back, "Q&amp;A") {
		t.Errorf("back = %q, want Q&amp;A", back)
	}
}

func TestRenderDoesNotLeakRawScriptTag(t *testing.T) {
	a := New()

	front, err := a.RenderFront(map[string]any{"text": "The <script>alert(1)</script> {{answer}}."})
	if err != nil {
		t.Fatalf("RenderFront: %v", err)
	}
	if strings.Contains(front, "<script>") {
		t.Errorf("front = %q, want <script> escaped or sanitized away", front)
	}
}

func TestRenderEmptyText(t *testing.T) {
	a := New()
	front, err := a.RenderFront(map[string]any{"text": ""})
	if err != nil {
		t.Fatalf("RenderFront: %v", err)
	}
	if !strings.Contains(front, "<div>") {
		t.Errorf("front = %q, want wrapping div even for empty text", front)
	}
}

// ---------------------------------------------------------------------------
// Integration
// ---------------------------------------------------------------------------

func TestParseFullMultiParagraphWithTags(t *testing.T) {
	a := New()
	doc := "---\nsr_adapter: clozemd\ntags: [biology]\n---\n" +
		"Photosynthesis converts {{light energy}} into\n{{chemical energy}} stored in {{glucose}}.\n\n" +
		"The process occurs in {{chloroplasts}}.\n"
	cards, err := a.Parse(doc, "/bio.md", map[string]any{"tags": []string{"biology"}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 4 {
		t.Fatalf("len(cards) = %d, want 4", len(cards))
	}
	for _, c := range cards {
		if len(c.Tags) != 1 || c.Tags[0] != "biology" {
			t.Errorf("card %q tags = %v, want [biology]", c.Key, c.Tags)
		}
	}
}

func TestParseContextBlockStripsQuotePrefix(t *testing.T) {
	a := New()
	doc := "---\nsr_adapter: clozemd\n---\n> ?\n> Photosynthesis converts {{light energy}} into\n> {{chemical energy}} stored in {{glucose}}.\n"
	cards, err := a.Parse(doc, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("len(cards) = %d, want 3", len(cards))
	}
	for _, c := range cards {
		for _, line := range strings.Split(cardText(c), "\n") {
			if strings.HasPrefix(line, "> ") {
				t.Errorf("card %q text %q still has a quote prefix", c.Key, cardText(c))
			}
		}
	}
}

func TestParseMixedGroupedAndUngrouped(t *testing.T) {
	a := New()
	doc := "---\nsr_adapter: clozemd\n---\n{{1::a}} and {{b}} and {{1::c}}."
	cards, err := a.Parse(doc, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("len(cards) = %d, want 2 (1 ungrouped + 1 group)", len(cards))
	}
}

func TestParseRoundtripRender(t *testing.T) {
	a := New()
	doc := "---\nsr_adapter: clozemd\n---\nThe {{quick::speed}} brown {{fox}} jumps."
	cards, err := a.Parse(doc, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, c := range cards {
		front, err := a.RenderFront(c.Content)
		if err != nil {
			t.Fatalf("RenderFront: %v", err)
		}
		back, err := a.RenderBack(c.Content)
		if err != nil {
			t.Fatalf("RenderBack: %v", err)
		}
		if !strings.HasPrefix(front, "<div>") || !strings.HasPrefix(back, "<div>") {
			t.Errorf("front/back should both be wrapped in <div>: front=%q back=%q", front, back)
		}
		if !strings.Contains(back, "<mark>") {
			t.Errorf("back = %q, want at least one highlighted answer", back)
		}
	}
}

func TestParseSourceLineAccuracy(t *testing.T) {
	a := New()
	text := "---\nsr_adapter: clozemd\n---\nThe {{answer}} here."
	cards, err := a.Parse(text, "/test.md", nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cards[0].SourceLine != 4 {
		t.Errorf("SourceLine = %d, want 4", cards[0].SourceLine)
	}
}
