package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/chat"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/selection"
	"github.com/starford/inkwell/internal/testutil"
	"github.com/starford/inkwell/internal/transform"
)

// fakeAI stands in for the credential gate.
type fakeAI struct {
	mu    sync.Mutex
	has   bool
	reply string
	err   error
}

func (f *fakeAI) HasCredential() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.has
}

func (f *fakeAI) SaveCredential(_ context.Context, key string) error {
	if key != "sk-good" {
		return fmt.Errorf("%w: 401", apperr.ErrInvalidCredential)
	}
	f.mu.Lock()
	f.has = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAI) Complete(context.Context, []models.ChatMessage, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply, f.err
}

type testEnv struct {
	router      http.Handler
	controller  *notes.Controller
	ai          *fakeAI
	defaultRoot string
}

func newEnv(t *testing.T, authEnabled bool, token string, events http.Handler) *testEnv {
	t.Helper()
	root, store := testutil.TestStore(t)
	c := notes.New(store, notes.WithLogger(testutil.Logger()))
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	ai := &fakeAI{has: true, reply: "HELLO"}
	d := Deps{
		Notes:      c,
		Selection:  &selection.Tracker{},
		Transforms: transform.NewManager(ai, c, testutil.Logger()),
		Chat:       chat.NewPanel(ai, c),
		Credential: ai,
		Events:     events,
	}
	return &testEnv{
		router:      NewRouter(d, authEnabled, token),
		controller:  c,
		ai:          ai,
		defaultRoot: root,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) create(t *testing.T) models.Note {
	t.Helper()
	w := e.do(t, http.MethodPost, "/notes", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeBody[models.Note](t, w)
}

func TestCreateAndGetNote(t *testing.T) {
	e := newEnv(t, false, "", nil)
	n := e.create(t)
	if n.Title != models.DefaultTitle || n.ID == "" || n.Filename != n.ID {
		t.Errorf("created = %+v", n)
	}

	w := e.do(t, http.MethodGet, "/notes/"+n.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decodeBody[models.Note](t, w); got.ID != n.ID {
		t.Errorf("got id %q", got.ID)
	}

	list := decodeBody[NoteListResponse](t, e.do(t, http.MethodGet, "/notes", nil))
	if list.Total != 1 || list.Selected != n.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	e := newEnv(t, false, "", nil)
	if w := e.do(t, http.MethodGet, "/notes/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestPatchNote(t *testing.T) {
	e := newEnv(t, false, "", nil)
	n := e.create(t)

	w := e.do(t, http.MethodPatch, "/notes/"+n.ID, map[string]string{"title": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	got := decodeBody[models.Note](t, w)
	if got.Title != "Renamed" || !got.UpdatedAt.After(n.UpdatedAt) {
		t.Errorf("patched = %+v", got)
	}

	if w := e.do(t, http.MethodPatch, "/notes/"+n.ID, map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPatch, "/notes/ghost", map[string]string{"content": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("patch missing = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPatch, "/notes/.hidden", map[string]string{"content": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("patch invalid id = %d, want 400", w.Code)
	}
}

func TestDeleteAndRestore(t *testing.T) {
	e := newEnv(t, false, "", nil)
	n := e.create(t)

	if w := e.do(t, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}

	tr := decodeBody[TrashResponse](t, e.do(t, http.MethodGet, "/trash", nil))
	if len(tr.Entries) != 1 || tr.Entries[0].NoteID != n.ID {
		t.Fatalf("trash = %+v", tr)
	}

	w := e.do(t, http.MethodPost, fmt.Sprintf("/trash/%d/restore", tr.Entries[0].ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decodeBody[RestoreResponse](t, w); res.Note == nil || res.Note.ID != n.ID {
		t.Errorf("restored = %+v", res)
	}
	if w := e.do(t, http.MethodPost, "/trash/abc/restore", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad trash id = %d", w.Code)
	}
}

func TestDirtySessionNeedsDiscard(t *testing.T) {
	e := newEnv(t, false, "", nil)
	a := e.create(t)

	w := e.do(t, http.MethodPut, "/session/content", map[string]string{"content": "draft"})
	if sess := decodeBody[SessionResponse](t, w).Session; !sess.Dirty || sess.NoteID != a.ID {
		t.Fatalf("session = %+v", sess)
	}

	if w := e.do(t, http.MethodPost, "/notes", nil); w.Code != http.StatusConflict {
		t.Errorf("create over dirty = %d, want 409", w.Code)
	}
	w = e.do(t, http.MethodPost, "/notes?discard=true", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create with discard = %d", w.Code)
	}
	b := decodeBody[models.Note](t, w)

	e.do(t, http.MethodPut, "/session/content", map[string]string{"content": "b draft"})
	if w := e.do(t, http.MethodPost, "/tabs/"+a.ID+"/select", nil); w.Code != http.StatusConflict {
		t.Errorf("select over dirty = %d, want 409", w.Code)
	}

	w = e.do(t, http.MethodPost, "/session/save", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}
	if sess := decodeBody[SessionResponse](t, w).Session; sess.Dirty {
		t.Error("session still dirty after save")
	}
	if n, _ := e.controller.Note(b.ID); n.Content != "b draft" {
		t.Errorf("saved content = %q", n.Content)
	}
	if w := e.do(t, http.MethodPost, "/tabs/"+a.ID+"/select", nil); w.Code != http.StatusOK {
		t.Errorf("select after save = %d", w.Code)
	}
}

func TestTabs(t *testing.T) {
	e := newEnv(t, false, "", nil)
	a := e.create(t)
	b := e.create(t)

	tabs := decodeBody[TabsResponse](t, e.do(t, http.MethodGet, "/tabs", nil))
	if len(tabs.Tabs) != 2 || tabs.Selected != b.ID {
		t.Fatalf("tabs = %+v", tabs)
	}
	w := e.do(t, http.MethodDelete, "/tabs/"+b.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close = %d", w.Code)
	}
	if tabs := decodeBody[TabsResponse](t, w); len(tabs.Tabs) != 1 || tabs.Selected != a.ID {
		t.Errorf("after close = %+v", tabs)
	}
	if w := e.do(t, http.MethodDelete, "/tabs/"+b.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("close closed tab = %d", w.Code)
	}
}

func TestEditUndoRedo(t *testing.T) {
	e := newEnv(t, false, "", nil)
	e.create(t)

	w := e.do(t, http.MethodPost, "/session/edit", map[string]any{
		"range": map[string]any{"start": map[string]int{"line": 0, "column": 0}, "end": map[string]int{"line": 0, "column": 0}},
		"text":  "abc",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody[SessionResponse](t, w)
	if res.Session.Content != "abc" || res.Cursor == nil || res.Cursor.Column != 3 {
		t.Errorf("edit result = %+v", res)
	}

	if res := decodeBody[SessionResponse](t, e.do(t, http.MethodPost, "/session/undo", nil)); res.Session.Content != "" || !res.Session.CanRedo {
		t.Errorf("undo = %+v", res.Session)
	}
	if res := decodeBody[SessionResponse](t, e.do(t, http.MethodPost, "/session/redo", nil)); res.Session.Content != "abc" {
		t.Errorf("redo = %+v", res.Session)
	}

	w = e.do(t, http.MethodPost, "/session/edit", map[string]any{
		"range": map[string]any{"start": map[string]int{"line": -1, "column": 0}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative position = %d, want 400", w.Code)
	}
}

func TestSessionWithoutNote(t *testing.T) {
	e := newEnv(t, false, "", nil)
	if w := e.do(t, http.MethodGet, "/session", nil); w.Code != http.StatusConflict {
		t.Errorf("get session = %d, want 409", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/session/title", map[string]string{"title": "x"}); w.Code != http.StatusConflict {
		t.Errorf("set title = %d, want 409", w.Code)
	}
}

func selectHello(t *testing.T, e *testEnv) {
	t.Helper()
	e.create(t)
	e.do(t, http.MethodPut, "/session/content", map[string]string{"content": "Hello world"})
	if w := e.do(t, http.MethodPost, "/session/save", nil); w.Code != http.StatusOK {
		t.Fatalf("save = %d", w.Code)
	}
	w := e.do(t, http.MethodPost, "/session/selection", map[string]any{
		"range":    map[string]any{"start": map[string]int{"line": 0, "column": 0}, "end": map[string]int{"line": 0, "column": 5}},
		"cursor":   map[string]int{"line": 0, "column": 5},
		"viewport": map[string]any{"editor": map[string]float64{"top": 100, "left": 50, "width": 800, "height": 600}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("selection = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody[SelectionResponse](t, w)
	if !res.Changed || !res.Selection.Visible || res.Selection.Text != "Hello" {
		t.Fatalf("selection = %+v", res)
	}
	if res.Selection.Anchor.Top != 100+selection.AnchorOffset {
		t.Errorf("anchor top = %v", res.Selection.Anchor.Top)
	}
}

func TestTransformFlow(t *testing.T) {
	e := newEnv(t, false, "", nil)
	selectHello(t, e)

	w := e.do(t, http.MethodPost, "/transform", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("begin = %d, body = %s", w.Code, w.Body.String())
	}
	st := decodeBody[transform.State](t, w)
	if st.Phase != transform.Composing || st.TargetText != "Hello" || !st.HasSelection {
		t.Fatalf("begun = %+v", st)
	}
	if w := e.do(t, http.MethodPost, "/transform", nil); w.Code != http.StatusConflict {
		t.Errorf("second begin = %d, want 409", w.Code)
	}

	w = e.do(t, http.MethodPost, "/transform/submit", map[string]any{"instruction": "shout", "wait": true})
	if w.Code != http.StatusOK {
		t.Fatalf("submit = %d, body = %s", w.Code, w.Body.String())
	}
	if st := decodeBody[transform.State](t, w); st.Phase != transform.Previewing || st.DraftResult != "HELLO" {
		t.Fatalf("submitted = %+v", st)
	}

	w = e.do(t, http.MethodPost, "/transform/apply", nil)
	if st := decodeBody[transform.State](t, w); w.Code != http.StatusOK || st.Phase != transform.Applied {
		t.Fatalf("apply = %d %+v", w.Code, st)
	}
	sess := decodeBody[SessionResponse](t, e.do(t, http.MethodGet, "/session", nil)).Session
	if sess.Content != "HelloHELLO world" || !sess.Dirty {
		t.Errorf("session after apply = %+v", sess)
	}
	if w := e.do(t, http.MethodPost, "/transform/cancel", nil); w.Code != http.StatusConflict {
		t.Errorf("cancel after apply = %d, want 409", w.Code)
	}
}

func TestTransformWithoutCredential(t *testing.T) {
	e := newEnv(t, false, "", nil)
	e.ai.has = false
	selectHello(t, e)

	e.do(t, http.MethodPost, "/transform", nil)
	w := e.do(t, http.MethodPost, "/transform/submit", map[string]string{"instruction": "shout"})
	if w.Code != http.StatusPreconditionRequired {
		t.Fatalf("submit = %d, want 428", w.Code)
	}
	st := decodeBody[transform.State](t, w)
	if st.Phase != transform.Cancelled || st.Notice != transform.NoticeCredentialRequired {
		t.Errorf("state = %+v", st)
	}
}

func TestTransform_NoWorkflow(t *testing.T) {
	e := newEnv(t, false, "", nil)
	if w := e.do(t, http.MethodGet, "/transform", nil); w.Code != http.StatusNotFound {
		t.Errorf("get = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/transform", nil); w.Code != http.StatusConflict {
		t.Errorf("begin without session = %d, want 409", w.Code)
	}
}

func TestChat(t *testing.T) {
	e := newEnv(t, false, "", nil)

	if w := e.do(t, http.MethodPost, "/chat/snippets", map[string]string{"text": "quoted"}); w.Code != http.StatusCreated {
		t.Fatalf("snippet = %d", w.Code)
	}
	w := e.do(t, http.MethodPost, "/chat/messages", map[string]string{"text": "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("send = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody[ChatResponse](t, w)
	if len(res.Messages) != 2 || len(res.Snippets) != 0 || res.Messages[1].Content != "HELLO" {
		t.Errorf("chat = %+v", res)
	}

	if w := e.do(t, http.MethodPost, "/chat/messages", map[string]string{"text": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty message = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/chat/snippets", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("snippet without selection = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/chat/snippets/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("remove unknown snippet = %d", w.Code)
	}

	e.ai.err = fmt.Errorf("upstream down")
	if w := e.do(t, http.MethodPost, "/chat/messages", map[string]string{"text": "again"}); w.Code != http.StatusBadGateway {
		t.Errorf("failed send = %d, want 502", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/chat", nil); w.Code != http.StatusNoContent {
		t.Errorf("clear = %d", w.Code)
	}
	if res := decodeBody[ChatResponse](t, e.do(t, http.MethodGet, "/chat", nil)); len(res.Messages) != 0 {
		t.Errorf("after clear = %+v", res)
	}
}

func TestChat_SnippetFromSelection(t *testing.T) {
	e := newEnv(t, false, "", nil)
	selectHello(t, e)
	w := e.do(t, http.MethodPost, "/chat/snippets", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("snippet = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decodeBody[ChatResponse](t, w); len(res.Snippets) != 1 || res.Snippets[0].Content != "Hello" {
		t.Errorf("snippets = %+v", res.Snippets)
	}
}

func TestCredential(t *testing.T) {
	e := newEnv(t, false, "", nil)
	e.ai.has = false

	if res := decodeBody[CredentialResponse](t, e.do(t, http.MethodGet, "/credential", nil)); res.Registered {
		t.Error("registered before save")
	}
	if w := e.do(t, http.MethodPut, "/credential", map[string]string{"api_key": "sk-bad"}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad key = %d, want 422", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/credential", map[string]string{"api_key": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty key = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/credential", map[string]string{"api_key": "sk-good"}); w.Code != http.StatusOK {
		t.Errorf("good key = %d", w.Code)
	}
	if res := decodeBody[CredentialResponse](t, e.do(t, http.MethodGet, "/credential", nil)); !res.Registered {
		t.Error("not registered after save")
	}
}

func TestStorageRoot(t *testing.T) {
	e := newEnv(t, false, "", nil)
	e.create(t)

	next := filepath.Join(t.TempDir(), "moved")
	w := e.do(t, http.MethodPut, "/storage/root", map[string]string{"path": next})
	if w.Code != http.StatusOK {
		t.Fatalf("set root = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decodeBody[StorageRootResponse](t, w); res.Path != next {
		t.Errorf("root = %q, want %q", res.Path, next)
	}
	if list := decodeBody[NoteListResponse](t, e.do(t, http.MethodGet, "/notes", nil)); list.Total != 0 {
		t.Errorf("notes in new root = %d", list.Total)
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w := e.do(t, http.MethodPut, "/storage/root", map[string]string{"path": filepath.Join(blocker, "sub")}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("uncreatable root = %d, want 422", w.Code)
	}
	if got := decodeBody[StorageRootResponse](t, e.do(t, http.MethodGet, "/storage/root", nil)); got.Path != next {
		t.Errorf("root changed after failure: %q", got.Path)
	}

	w = e.do(t, http.MethodDelete, "/storage/root", nil)
	if res := decodeBody[StorageRootResponse](t, w); res.Path != e.defaultRoot {
		t.Errorf("reset root = %q, want %q", res.Path, e.defaultRoot)
	}
	if list := decodeBody[NoteListResponse](t, e.do(t, http.MethodGet, "/notes", nil)); list.Total != 1 {
		t.Errorf("notes after reset = %d", list.Total)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := newEnv(t, true, "secret123", nil)

	req := httptest.NewRequest(http.MethodPost, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := newEnv(t, true, "secret123", nil)
	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := newEnv(t, true, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := newEnv(t, false, "", nil)
	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := newEnv(t, true, "secret", sseStub)
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := newEnv(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d", w.Code)
	}
}

func TestTransform_IgnoresSelectionFromOtherNote(t *testing.T) {
	e := newEnv(t, false, "", nil)
	a := e.create(t)
	e.do(t, http.MethodPut, "/session/content", map[string]string{"content": "alpha beta"})
	w := e.do(t, http.MethodPost, "/session/selection", map[string]any{
		"range":  map[string]any{"start": map[string]int{"line": 0, "column": 6}, "end": map[string]int{"line": 0, "column": 10}},
		"cursor": map[string]int{"line": 0, "column": 10},
	})
	if res := decodeBody[SelectionResponse](t, w); res.Selection.Text != "beta" || res.Selection.NoteID != a.ID {
		t.Fatalf("selection = %+v", res.Selection)
	}

	w = e.do(t, http.MethodPost, "/notes?discard=true", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create b = %d", w.Code)
	}
	b := decodeBody[models.Note](t, w)
	e.do(t, http.MethodPut, "/session/content", map[string]string{"content": "zz yyyyyyyyyy"})

	w = e.do(t, http.MethodPost, "/transform", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("begin = %d, body = %s", w.Code, w.Body.String())
	}
	st := decodeBody[transform.State](t, w)
	if st.NoteID != b.ID || st.HasSelection || st.TargetText != "zz yyyyyyyyyy" {
		t.Errorf("state = %+v", st)
	}
}

func TestTransform_ApplyAfterEditConflicts(t *testing.T) {
	e := newEnv(t, false, "", nil)
	selectHello(t, e)
	e.do(t, http.MethodPost, "/transform", nil)
	e.do(t, http.MethodPost, "/transform/submit", map[string]any{"instruction": "shout", "wait": true})

	e.do(t, http.MethodPut, "/session/content", map[string]string{"content": ">> Hello world"})
	if w := e.do(t, http.MethodPost, "/transform/apply", nil); w.Code != http.StatusConflict {
		t.Fatalf("apply = %d, want 409", w.Code)
	}
	sess := decodeBody[SessionResponse](t, e.do(t, http.MethodGet, "/session", nil)).Session
	if sess.Content != ">> Hello world" {
		t.Errorf("content = %q", sess.Content)
	}
}

func TestRestoreOntoOccupiedOrigin(t *testing.T) {
	e := newEnv(t, false, "", nil)
	n := e.create(t)
	if w := e.do(t, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if err := os.WriteFile(filepath.Join(e.defaultRoot, n.ID+".md"), []byte("someone else"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := decodeBody[TrashResponse](t, e.do(t, http.MethodGet, "/trash", nil))
	if len(tr.Entries) != 1 {
		t.Fatalf("trash = %+v", tr)
	}
	w := e.do(t, http.MethodPost, fmt.Sprintf("/trash/%d/restore", tr.Entries[0].ID), nil)
	if w.Code != http.StatusConflict {
		t.Errorf("restore = %d, want 409, body = %s", w.Code, w.Body.String())
	}
}

func TestResetStorageRoot_Uncreatable(t *testing.T) {
	e := newEnv(t, false, "", nil)
	next := filepath.Join(t.TempDir(), "moved")
	if w := e.do(t, http.MethodPut, "/storage/root", map[string]string{"path": next}); w.Code != http.StatusOK {
		t.Fatalf("set root = %d", w.Code)
	}

	if err := os.RemoveAll(e.defaultRoot); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(e.defaultRoot, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w := e.do(t, http.MethodDelete, "/storage/root", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("reset = %d, want 422, body = %s", w.Code, w.Body.String())
	}
	if got := decodeBody[StorageRootResponse](t, e.do(t, http.MethodGet, "/storage/root", nil)); got.Path != next {
		t.Errorf("root changed after failure: %q", got.Path)
	}
}
