package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"imgseekbot/internal/engine"
	"imgseekbot/internal/platform"
	"imgseekbot/internal/session"
)

type fakeInbound struct {
	sender int64
	text   string
	urls   []string
}

func (f fakeInbound) SenderID() int64     { return f.sender }
func (f fakeInbound) Text() string        { return f.text }
func (f fakeInbound) ImageURLs() []string { return f.urls }

type fakeResponder struct {
	texts   []string
	images  [][]byte
	menus   []string
	batches [][]platform.BatchPart
}

func (f *fakeResponder) ReplyText(text string) error { f.texts = append(f.texts, text); return nil }
func (f *fakeResponder) ReplyImage(data []byte) error {
	f.images = append(f.images, data)
	return nil
}
func (f *fakeResponder) ReplyEngineMenu(text string, _ []string) error {
	f.menus = append(f.menus, text)
	return nil
}
func (f *fakeResponder) ReplyBatch(parts []platform.BatchPart) error {
	f.batches = append(f.batches, parts)
	return nil
}
func (f *fakeResponder) SelfID() string { return "777" }

func (f *fakeResponder) lastText(t *testing.T) string {
	t.Helper()
	if len(f.texts) == 0 {
		t.Fatal("no text replies sent")
	}
	return f.texts[len(f.texts)-1]
}

// fakeFetcher serves canned bytes for known URLs.
type fakeFetcher struct {
	images map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, bool) {
	data, ok := f.images[url]
	return data, ok
}

func (f *fakeFetcher) FetchAll(ctx context.Context, urls []string) [][]byte {
	var out [][]byte
	for _, u := range urls {
		if data, ok := f.Fetch(ctx, u); ok {
			out = append(out, data)
		}
	}
	return out
}

type fakeSearcher struct {
	result string
	err    error
	calls  int
	gotEng engine.ID
	gotImg []byte
}

func (f *fakeSearcher) Search(_ context.Context, eng engine.ID, image []byte) (string, error) {
	f.calls++
	f.gotEng = eng
	f.gotImg = image
	return f.result, f.err
}

// stubRenderer tags its output so tests can tell the cards apart.
type stubRenderer struct{}

func (stubRenderer) Result(eng engine.ID, text string, _ []byte) []byte {
	return []byte("result:" + string(eng) + ":" + text)
}
func (stubRenderer) Error(eng engine.ID, msg string) []byte {
	return []byte("error:" + string(eng) + ":" + msg)
}
func (stubRenderer) Intro(_ []engine.ID) []byte { return []byte("intro") }

type fakeRecorder struct {
	calls int
	eng   engine.ID
	chars int
}

func (f *fakeRecorder) Record(_ context.Context, _ int64, eng engine.ID, chars int, _ time.Duration) error {
	f.calls++
	f.eng = eng
	f.chars = chars
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	m        *Machine
	store    session.Store
	searcher *fakeSearcher
	recorder *fakeRecorder
	clk      *clock
}

func newHarness(t *testing.T, disabled []string) *harness {
	t.Helper()
	catalog, err := engine.NewCatalog(disabled)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		store:    session.NewMemoryStore(),
		searcher: &fakeSearcher{result: "found it"},
		recorder: &fakeRecorder{},
		clk:      &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.m = NewMachine(Options{
		Store:   h.store,
		Catalog: catalog,
		Fetcher: &fakeFetcher{images: map[string][]byte{
			"https://img.example/cat.jpg": []byte("catbytes"),
			"https://img.example/dog.png": []byte("dogbytes"),
		}},
		Searcher: h.searcher,
		Renderer: stubRenderer{},
		Recorder: h.recorder,
		Now:      h.clk.now,
	})
	return h
}

func (h *harness) send(t *testing.T, userID int64, text string, urls ...string) *fakeResponder {
	t.Helper()
	out := &fakeResponder{}
	if err := h.m.HandleMessage(context.Background(), fakeInbound{sender: userID, text: text, urls: urls}, out); err != nil {
		t.Fatalf("HandleMessage(%q): %v", text, err)
	}
	return out
}

func (h *harness) mustStep(t *testing.T, userID int64, want session.Step) session.Session {
	t.Helper()
	s, ok := h.store.Get(userID)
	if !ok {
		t.Fatalf("no session, want step %s", want)
	}
	if s.Step() != want {
		t.Fatalf("step = %s, want %s", s.Step(), want)
	}
	return s
}

func (h *harness) mustGone(t *testing.T, userID int64) {
	t.Helper()
	if _, ok := h.store.Get(userID); ok {
		t.Fatal("session still present")
	}
}

func TestEntryWithEngineAndURLSearchesImmediately(t *testing.T) {
	h := newHarness(t, nil)
	out := h.send(t, 1, "以图搜图 baidu https://img.example/cat.jpg")

	if h.searcher.calls != 1 {
		t.Fatalf("search calls = %d, want 1", h.searcher.calls)
	}
	if h.searcher.gotEng != engine.Baidu || string(h.searcher.gotImg) != "catbytes" {
		t.Fatalf("searched %s with %q", h.searcher.gotEng, h.searcher.gotImg)
	}
	if len(out.images) != 1 || string(out.images[0]) != "result:baidu:found it" {
		t.Fatalf("images = %q", out.images)
	}
	if out.lastText(t) != promptTextConfirm {
		t.Fatalf("last text = %q", out.lastText(t))
	}
	h.mustStep(t, 1, session.StepAwaitTextConfirm)
	if h.recorder.calls != 1 || h.recorder.eng != engine.Baidu {
		t.Fatalf("recorder calls = %d eng = %s", h.recorder.calls, h.recorder.eng)
	}
}

func TestEntryWithEngineOnlyWaitsForImage(t *testing.T) {
	h := newHarness(t, nil)
	out := h.send(t, 1, "以图搜图 google")

	s := h.mustStep(t, 1, session.StepAwaitImage).(*session.AwaitImage)
	if s.Engine != engine.Google {
		t.Fatalf("engine = %s", s.Engine)
	}
	if !strings.Contains(out.lastText(t), "已选择引擎: google") {
		t.Fatalf("prompt = %q", out.lastText(t))
	}
}

func TestBareEntrySendsIntroAndMenu(t *testing.T) {
	h := newHarness(t, nil)
	out := h.send(t, 1, "以图搜图")

	h.mustStep(t, 1, session.StepAwaitBoth)
	if len(out.images) != 1 || string(out.images[0]) != "intro" {
		t.Fatalf("images = %q", out.images)
	}
	if len(out.menus) != 1 || out.menus[0] != promptPickNoImage {
		t.Fatalf("menus = %q", out.menus)
	}
}

func TestEntryWithUnknownTokenCountsOneAttempt(t *testing.T) {
	h := newHarness(t, nil)
	out := h.send(t, 1, "以图搜图 yandex")

	s := h.mustStep(t, 1, session.StepAwaitEngine).(*session.AwaitEngine)
	if s.InvalidAttempts != 1 {
		t.Fatalf("invalid attempts = %d, want 1", s.InvalidAttempts)
	}
	if !strings.Contains(out.texts[0], "yandex") {
		t.Fatalf("notice = %q", out.texts[0])
	}
}

func TestSecondInvalidEngineCancels(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 yandex")
	out := h.send(t, 1, "alsowrong")

	h.mustGone(t, 1)
	if out.lastText(t) != promptTooManyAttempts {
		t.Fatalf("last text = %q", out.lastText(t))
	}
}

func TestDisabledEngineDoesNotCountAsInvalid(t *testing.T) {
	h := newHarness(t, []string{"bing"})
	h.send(t, 1, "以图搜图 yandex")
	h.send(t, 1, "bing")

	s := h.mustStep(t, 1, session.StepAwaitEngine).(*session.AwaitEngine)
	if s.InvalidAttempts != 1 {
		t.Fatalf("invalid attempts = %d, want 1", s.InvalidAttempts)
	}
}

func TestEngineTokenIsCaseInsensitive(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 SauceNAO")

	s := h.mustStep(t, 1, session.StepAwaitImage).(*session.AwaitImage)
	if s.Engine != engine.SauceNAO {
		t.Fatalf("engine = %s", s.Engine)
	}
}

func TestAwaitImageSearchesOnImageLink(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu")
	h.send(t, 1, "https://img.example/dog.png")

	if h.searcher.calls != 1 || string(h.searcher.gotImg) != "dogbytes" {
		t.Fatalf("calls = %d img = %q", h.searcher.calls, h.searcher.gotImg)
	}
	h.mustStep(t, 1, session.StepAwaitTextConfirm)
}

func TestAwaitImageRejectsTextWithoutExtendingDeadline(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu")
	before := h.mustStep(t, 1, session.StepAwaitImage).LastActivity()

	h.clk.advance(5 * time.Second)
	out := h.send(t, 1, "not an image")

	if out.lastText(t) != promptImageOnly {
		t.Fatalf("last text = %q", out.lastText(t))
	}
	after := h.mustStep(t, 1, session.StepAwaitImage).LastActivity()
	if !after.Equal(before) {
		t.Fatal("non-image reply must not extend the deadline")
	}
}

func TestAwaitBothCollectsInEitherOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图")
	h.send(t, 1, "", "https://img.example/cat.jpg")

	s := h.mustStep(t, 1, session.StepAwaitBoth).(*session.AwaitBoth)
	if s.Image == nil || s.Engine != "" {
		t.Fatalf("session = %+v", s)
	}

	h.send(t, 1, "tineye")
	if h.searcher.calls != 1 || h.searcher.gotEng != engine.TinEye {
		t.Fatalf("calls = %d eng = %s", h.searcher.calls, h.searcher.gotEng)
	}
}

func TestInteractiveTimeoutCancels(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu")

	h.clk.advance(interactiveTimeout + time.Second)
	out := h.send(t, 1, "https://img.example/cat.jpg")

	h.mustGone(t, 1)
	if out.lastText(t) != promptTimeout {
		t.Fatalf("last text = %q", out.lastText(t))
	}
	if h.searcher.calls != 0 {
		t.Fatal("expired session must not search")
	}
}

func TestTriggerRestartsExistingSession(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu")
	h.send(t, 1, "以图搜图 google")

	s := h.mustStep(t, 1, session.StepAwaitImage).(*session.AwaitImage)
	if s.Engine != engine.Google {
		t.Fatalf("engine = %s, want google", s.Engine)
	}
}

func TestTextConfirmYesDeliversResult(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu https://img.example/cat.jpg")

	h.clk.advance(3 * time.Second)
	out := h.send(t, 1, "是")

	h.mustGone(t, 1)
	if len(out.texts) != 1 || out.texts[0] != "found it" {
		t.Fatalf("texts = %q", out.texts)
	}
}

func TestTextConfirmEnglishYes(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu https://img.example/cat.jpg")
	out := h.send(t, 1, " YES ")

	if len(out.texts) != 1 || out.texts[0] != "found it" {
		t.Fatalf("texts = %q", out.texts)
	}
}

func TestTextConfirmDeclineEndsSilently(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu https://img.example/cat.jpg")
	out := h.send(t, 1, "不用了")

	h.mustGone(t, 1)
	if len(out.texts) != 0 {
		t.Fatalf("texts = %q", out.texts)
	}
}

func TestTextConfirmExpiresSilently(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu https://img.example/cat.jpg")

	h.clk.advance(textConfirmWindow + time.Second)
	out := h.send(t, 1, "是")

	h.mustGone(t, 1)
	if len(out.texts) != 0 || len(out.batches) != 0 {
		t.Fatalf("expired confirm produced replies: %q %v", out.texts, out.batches)
	}
}

func TestLongResultDeliveredAsBatch(t *testing.T) {
	h := newHarness(t, nil)
	h.searcher.result = strings.Repeat("长", 5000)
	h.send(t, 1, "以图搜图 baidu https://img.example/cat.jpg")
	out := h.send(t, 1, "是")

	if len(out.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(out.batches))
	}
	if len(out.batches[0]) != 2 {
		t.Fatalf("parts = %d, want 2", len(out.batches[0]))
	}
	if !strings.HasPrefix(out.batches[0][0].Text, "【搜索结果 1/2】") {
		t.Fatalf("part header = %q", out.batches[0][0].Text)
	}
}

func TestSearchFailureSendsErrorCardAndEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.searcher.err = errors.New("backend down")
	out := h.send(t, 1, "以图搜图 baidu https://img.example/cat.jpg")

	h.mustGone(t, 1)
	if len(out.images) != 1 || string(out.images[0]) != "error:baidu:backend down" {
		t.Fatalf("images = %q", out.images)
	}
	if h.recorder.calls != 0 {
		t.Fatal("failed search must not be recorded")
	}
}

func TestSessionsAreIndependentPerUser(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu")
	h.send(t, 2, "以图搜图")

	h.mustStep(t, 1, session.StepAwaitImage)
	h.mustStep(t, 2, session.StepAwaitBoth)
}

func TestWants(t *testing.T) {
	h := newHarness(t, nil)
	if !h.m.Wants(1, "以图搜图 baidu") {
		t.Fatal("trigger text must be wanted")
	}
	if h.m.Wants(1, "hello") {
		t.Fatal("plain text without session must not be wanted")
	}
	h.send(t, 1, "以图搜图 baidu")
	if !h.m.Wants(1, "hello") {
		t.Fatal("text from a user with a session must be wanted")
	}
}

func TestChooseEngineFromMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图", "https://img.example/cat.jpg")

	out := &fakeResponder{}
	if err := h.m.ChooseEngine(context.Background(), 1, "google", out); err != nil {
		t.Fatalf("ChooseEngine: %v", err)
	}
	if h.searcher.calls != 1 || h.searcher.gotEng != engine.Google {
		t.Fatalf("calls = %d eng = %s", h.searcher.calls, h.searcher.gotEng)
	}
}

func TestChooseEngineWithoutSession(t *testing.T) {
	h := newHarness(t, nil)
	out := &fakeResponder{}
	if err := h.m.ChooseEngine(context.Background(), 5, "google", out); err != nil {
		t.Fatalf("ChooseEngine: %v", err)
	}
	if out.lastText(t) != promptNoActiveSession {
		t.Fatalf("last text = %q", out.lastText(t))
	}
}

func TestCancelButton(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图")

	out := &fakeResponder{}
	if err := h.m.Cancel(1, out); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	h.mustGone(t, 1)
	if out.lastText(t) != promptCancelled {
		t.Fatalf("last text = %q", out.lastText(t))
	}
}

func TestEmptyReplyInAwaitEngineReprompts(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 yandex")
	out := h.send(t, 1, "   ")

	s := h.mustStep(t, 1, session.StepAwaitEngine).(*session.AwaitEngine)
	if s.InvalidAttempts != 1 {
		t.Fatalf("invalid attempts = %d, want 1", s.InvalidAttempts)
	}
	if out.lastText(t) != promptEngineEmpty {
		t.Fatalf("last text = %q", out.lastText(t))
	}
}

func TestAwaitBothUnhelpfulReplyExplainsWhatIsMissing(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图", "https://img.example/cat.jpg")
	out := h.send(t, 1, "", "https://img.example/unfetchable.jpg")

	if out.lastText(t) != promptNeedEngine {
		t.Fatalf("last text = %q", out.lastText(t))
	}
}

func TestEntryPrefersAttachmentOverInlineURL(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图 baidu https://img.example/dog.png", "https://img.example/cat.jpg")

	if string(h.searcher.gotImg) != "catbytes" {
		t.Fatalf("searched image = %q, want attachment bytes", h.searcher.gotImg)
	}
}

func TestCustomTriggerKeyword(t *testing.T) {
	catalog, err := engine.NewCatalog(nil)
	if err != nil {
		t.Fatal(err)
	}
	store := session.NewMemoryStore()
	m := NewMachine(Options{
		Store:    store,
		Catalog:  catalog,
		Fetcher:  &fakeFetcher{},
		Searcher: &fakeSearcher{},
		Renderer: stubRenderer{},
		Keyword:  "search",
	})
	out := &fakeResponder{}
	if err := m.HandleMessage(context.Background(), fakeInbound{sender: 9, text: "search baidu"}, out); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(9); !ok {
		t.Fatal("custom keyword did not start a session")
	}
}

func TestUnknownEngineNoticeNamesTheToken(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, 1, "以图搜图")
	out := h.send(t, 1, "nope")

	want := fmt.Sprintf(promptEngineUnknownFmt, "nope")
	found := false
	for _, txt := range out.texts {
		if txt == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("texts = %q, want %q among them", out.texts, want)
	}
}
