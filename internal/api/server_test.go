package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"jarvis/internal/bus"
	"jarvis/internal/dispatch"
	"jarvis/internal/domain"
	"jarvis/internal/health"
	"jarvis/internal/macro"
	"jarvis/internal/memory"
	"jarvis/internal/session"
	"jarvis/internal/settings"
	"jarvis/internal/timer"
)

type fakeAssistant struct {
	mu    sync.Mutex
	state domain.AppState
	err   error
}

func (f *fakeAssistant) State() domain.AppState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAssistant) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = domain.StateListening
	return nil
}

func (f *fakeAssistant) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = domain.StateIdle
	return nil
}

func (f *fakeAssistant) Submit(_ context.Context, text string) (dispatch.Result, error) {
	if strings.TrimSpace(text) == "" {
		return dispatch.Result{}, session.ErrEmptyCommand
	}
	if f.err != nil {
		return dispatch.Result{}, f.err
	}
	return dispatch.Result{
		Command:  domain.Command{ID: "c1", Text: text, Status: domain.StatusSuccess},
		Response: "Done, sir.",
	}, nil
}

type fakeProtocols struct {
	list []domain.Protocol
}

func (f *fakeProtocols) Protocols() []domain.Protocol { return f.list }

func (f *fakeProtocols) Add(_ context.Context, p domain.Protocol) error {
	f.list = append(f.list, p)
	return nil
}

func (f *fakeProtocols) RemoveByID(_ context.Context, id string) error {
	for i, p := range f.list {
		if p.ID == id {
			f.list = append(f.list[:i], f.list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", macro.ErrNoSuchProtocol, id)
}

type fakeFacts struct {
	list []domain.Fact
}

func (f *fakeFacts) Facts() []domain.Fact { return f.list }

func (f *fakeFacts) Remember(_ context.Context, content string) (domain.Fact, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Fact{}, memory.ErrEmptyFact
	}
	fact := domain.Fact{ID: fmt.Sprintf("f%d", len(f.list)+1), Content: content}
	f.list = append(f.list, fact)
	return fact, nil
}

func (f *fakeFacts) Forget(_ context.Context, id string) error {
	for i, fact := range f.list {
		if fact.ID == id {
			f.list = append(f.list[:i], f.list[i+1:]...)
			return nil
		}
	}
	return memory.ErrNotFound
}

func (f *fakeFacts) Clear(context.Context) error {
	f.list = nil
	return nil
}

type fakeSettings struct {
	v settings.Values
}

func (f *fakeSettings) Values() settings.Values { return f.v }

func (f *fakeSettings) Update(_ context.Context, v settings.Values) error {
	if _, ok := domain.ParsePersonality(string(v.Personality)); !ok {
		return fmt.Errorf("%w: personality", settings.ErrInvalid)
	}
	f.v = v
	return nil
}

type fixture struct {
	srv       *httptest.Server
	assistant *fakeAssistant
	protocols *fakeProtocols
	facts     *fakeFacts
	timers    *timer.Manager
	bus       *bus.Bus
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()

	f := &fixture{
		assistant: &fakeAssistant{state: domain.StateIdle},
		protocols: &fakeProtocols{},
		facts:     &fakeFacts{},
		timers:    timer.NewManager(),
		bus:       bus.New(),
	}
	t.Cleanup(f.timers.StopAll)

	s := NewServer(Deps{
		Assistant: f.assistant,
		Protocols: f.protocols,
		Facts:     f.facts,
		Settings:  &fakeSettings{v: settings.Defaults()},
		Timers:    f.timers,
		Health:    health.NewTracker(time.Now),
		Events:    f.bus,
	}, "127.0.0.1:0", token)

	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealthNeedsNoToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "secret")
	resp := f.do(t, http.MethodGet, "/api/v1/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/v1/status", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/v1/status?token=secret", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", resp.StatusCode)
	}
}

func TestListenAndCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	resp := f.do(t, http.MethodPost, "/api/v1/listen", "")
	var st map[string]string
	decode(t, resp, &st)
	if st["state"] != string(domain.StateListening) {
		t.Fatalf("unexpected state %v", st)
	}

	resp = f.do(t, http.MethodPost, "/api/v1/commands", `{"text":"turn on the lights"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var cr commandResponse
	decode(t, resp, &cr)
	if cr.Response != "Done, sir." || cr.Command.Text != "turn on the lights" {
		t.Fatalf("unexpected reply %+v", cr)
	}

	if resp := f.do(t, http.MethodPost, "/api/v1/commands", `{"text":"  "}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty command, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/v1/commands", `nope`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad JSON, got %d", resp.StatusCode)
	}
}

func TestCommandWhileBusy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	f.assistant.err = session.ErrBusy
	if resp := f.do(t, http.MethodPost, "/api/v1/commands", `{"text":"hello"}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestProtocolsCRUD(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	bad := []string{
		`{"name":"","trigger_phrase":"movie time","actions":[{"type":"say","value":"x"}]}`,
		`{"name":"Movie","trigger_phrase":"movie time","actions":[]}`,
		`{"name":"Movie","trigger_phrase":"movie time","actions":[{"type":"dance","value":"x"}]}`,
		`{"name":"Movie","trigger_phrase":"movie time","actions":[{"type":"volume","value":"loud"}]}`,
	}
	for _, body := range bad {
		if resp := f.do(t, http.MethodPost, "/api/v1/protocols/", body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, resp.StatusCode)
		}
	}

	resp := f.do(t, http.MethodPost, "/api/v1/protocols/",
		`{"name":"Movie","trigger_phrase":"Movie Time","actions":[{"type":"lights","value":"20%"},{"type":"wait","value":"1.5"}]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var p domain.Protocol
	decode(t, resp, &p)
	if p.ID == "" || p.TriggerPhrase != "movie time" {
		t.Fatalf("unexpected protocol %+v", p)
	}

	var list []domain.Protocol
	decode(t, f.do(t, http.MethodGet, "/api/v1/protocols/", ""), &list)
	if len(list) != 1 {
		t.Fatalf("expected one protocol, got %d", len(list))
	}

	if resp := f.do(t, http.MethodDelete, "/api/v1/protocols/"+p.ID, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/v1/protocols/"+p.ID, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFacts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	if resp := f.do(t, http.MethodPost, "/api/v1/facts/", `{"content":" "}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var fact domain.Fact
	decode(t, f.do(t, http.MethodPost, "/api/v1/facts/", `{"content":"my dog is called Rex"}`), &fact)

	if resp := f.do(t, http.MethodDelete, "/api/v1/facts/missing", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/v1/facts/"+fact.ID, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}

	f.do(t, http.MethodPost, "/api/v1/facts/", `{"content":"a"}`)
	if resp := f.do(t, http.MethodDelete, "/api/v1/facts/", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status %d", resp.StatusCode)
	}
	if len(f.facts.list) != 0 {
		t.Fatalf("facts not cleared")
	}
}

func TestSettingsPartialUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	resp := f.do(t, http.MethodPut, "/api/v1/settings", `{"personality":"sarcastic"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var v settings.Values
	decode(t, resp, &v)
	if v.Personality != domain.PersonalitySarcastic || v.Voice != settings.Defaults().Voice {
		t.Fatalf("unexpected values %+v", v)
	}

	if resp := f.do(t, http.MethodPut, "/api/v1/settings", `{"personality":"grumpy"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTimers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	if resp := f.do(t, http.MethodPost, "/api/v1/timers/", `{"seconds":0}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp := f.do(t, http.MethodPost, "/api/v1/timers/", `{"seconds":300,"label":"pasta"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var tv timerView
	decode(t, resp, &tv)
	if tv.Label != "pasta" || tv.RemainingSeconds != 300 {
		t.Fatalf("unexpected timer %+v", tv)
	}

	var list []timerView
	decode(t, f.do(t, http.MethodGet, "/api/v1/timers/", ""), &list)
	if len(list) != 1 {
		t.Fatalf("expected one timer, got %d", len(list))
	}

	if resp := f.do(t, http.MethodDelete, "/api/v1/timers/"+tv.ID, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel status %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/v1/timers/"+tv.ID, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHealthSamples(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	if resp := f.do(t, http.MethodPost, "/api/v1/health/samples", `{"steps":4200}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/v1/health/samples", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEventStream(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	if err := conn.WriteJSON(clientFrame{Cmd: "command", Text: "what time is it"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply serverFrame
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != "reply" || !reply.OK || reply.Response != "Done, sir." {
		t.Fatalf("unexpected reply %+v", reply)
	}

	// The subscription is live once a reply has come back.
	f.bus.Publish(bus.Message{Kind: bus.KindState, From: "session", State: "listening"})

	var ev serverFrame
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "event" || ev.Event == nil || ev.Event.State != "listening" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
