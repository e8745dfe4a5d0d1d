package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/m-mizutani/gt"
	server "github.com/secmon-lab/companion/pkg/controller/http"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/repository/memory"
	"github.com/secmon-lab/companion/pkg/service/life"
	"github.com/secmon-lab/companion/pkg/usecase"
)

type mockCompletion struct {
	streamFn func(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error]
}

func (m *mockCompletion) Stream(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error] {
	if m.streamFn != nil {
		return m.streamFn(ctx, turns, opts)
	}
	return func(yield func(string, error) bool) {
		yield("Hello!", nil)
	}
}

func (m *mockCompletion) Complete(ctx context.Context, turns []model.Turn) (string, error) {
	return "Reminder", nil
}

const testSeed = `
[[task]]
id = "t1"
title = "Write report"
priority = "high"
category = "work"

[[habit]]
id = "h1"
name = "Stretch"
cadence = "daily"

[xp]
work = 120
`

func newTestServer(t *testing.T, client *mockCompletion) (*server.Server, *usecase.UseCases) {
	t.Helper()

	registry, err := usecase.NewCharacterRegistry(
		&model.Character{ID: "mika", Name: "Mika", Identity: "You are Mika.", Accent: model.Accent{Emoji: "🌸"}},
		&model.Character{ID: "ren", Name: "Ren", Identity: "You are Ren."},
	)
	gt.NoError(t, err).Required()

	seed, err := life.ParseSeed([]byte(testSeed))
	gt.NoError(t, err).Required()
	board := life.New(life.WithSeed(seed))

	uc, err := usecase.New(memory.New(), registry, client, usecase.Collaborators{
		Tasks:        board,
		Habits:       board,
		Appointments: board,
		XP:           board,
	})
	gt.NoError(t, err).Required()

	srv, err := server.New(uc)
	gt.NoError(t, err).Required()
	t.Cleanup(srv.Close)
	return srv, uc
}

func doRequest(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition was not met in time")
}

func TestNewRequiresUseCases(t *testing.T) {
	_, err := server.New(nil)
	gt.Value(t, err).NotNil()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &mockCompletion{})
	w := doRequest(t, srv, http.MethodGet, "/health", "")
	gt.Number(t, w.Code).Equal(http.StatusOK)
}

func TestCharacters(t *testing.T) {
	srv, uc := newTestServer(t, &mockCompletion{})

	t.Run("list", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/characters", "")
		gt.Number(t, w.Code).Equal(http.StatusOK)

		var resp []struct {
			ID     string `json:"id"`
			Emoji  string `json:"emoji"`
			Active bool   `json:"active"`
		}
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Array(t, resp).Length(2).Required()
		gt.Value(t, resp[0].ID).Equal("mika")
		gt.Value(t, resp[0].Emoji).Equal("🌸")
		gt.Bool(t, resp[0].Active).True()
		gt.Bool(t, resp[1].Active).False()
	})

	t.Run("switch", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodPut, "/api/active-character", `{"id":"ren"}`)
		gt.Number(t, w.Code).Equal(http.StatusNoContent)
		gt.Value(t, uc.Presence.Active().String()).Equal("ren")
	})

	t.Run("switch to unknown", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodPut, "/api/active-character", `{"id":"nobody"}`)
		gt.Number(t, w.Code).Equal(http.StatusNotFound)
		gt.Value(t, uc.Presence.Active().String()).Equal("ren")
	})

	t.Run("malformed body", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodPut, "/api/active-character", `{`)
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
	})
}

func TestPostMessage(t *testing.T) {
	t.Run("reply is committed in background", func(t *testing.T) {
		srv, uc := newTestServer(t, &mockCompletion{})

		w := doRequest(t, srv, http.MethodPost, "/api/messages", `{"text":"hi"}`)
		gt.Number(t, w.Code).Equal(http.StatusAccepted)

		var resp struct {
			CharacterID string `json:"character_id"`
			MessageID   string `json:"message_id"`
		}
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp.CharacterID).Equal("mika")

		waitFor(t, func() bool { return !uc.Presence.IsStreaming("mika") })

		w = doRequest(t, srv, http.MethodGet, "/api/characters/mika/messages", "")
		gt.Number(t, w.Code).Equal(http.StatusOK)
		var msgs []model.Message
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs)).Required()
		gt.Array(t, msgs).Length(2).Required()
		gt.Value(t, msgs[0].Content).Equal("hi")
		gt.Value(t, msgs[1].ID.String()).Equal(resp.MessageID)
		gt.Value(t, msgs[1].Content).Equal("Hello!")
		gt.Bool(t, msgs[1].Streaming).False()
	})

	t.Run("image upload", func(t *testing.T) {
		var hadImage bool
		srv, uc := newTestServer(t, &mockCompletion{
			streamFn: func(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error] {
				hadImage = opts.HasImage
				return func(yield func(string, error) bool) { yield("Nice photo", nil) }
			},
		})

		w := doRequest(t, srv, http.MethodPost, "/api/messages", `{"image":{"mime_type":"image/png","data":"iVBORw=="}}`)
		gt.Number(t, w.Code).Equal(http.StatusAccepted)
		waitFor(t, func() bool { return !uc.Presence.IsStreaming("mika") })
		gt.Bool(t, hadImage).True()
	})

	t.Run("image without type", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockCompletion{})
		w := doRequest(t, srv, http.MethodPost, "/api/messages", `{"image":{"data":"iVBORw=="}}`)
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("empty message is a conflict", func(t *testing.T) {
		srv, uc := newTestServer(t, &mockCompletion{})
		w := doRequest(t, srv, http.MethodPost, "/api/messages", `{"text":"  "}`)
		gt.Number(t, w.Code).Equal(http.StatusConflict)

		history, err := uc.Store.History("mika")
		gt.NoError(t, err).Required()
		gt.Array(t, history).Length(0)
	})

	t.Run("send while streaming is a conflict", func(t *testing.T) {
		release := make(chan struct{})
		srv, uc := newTestServer(t, &mockCompletion{
			streamFn: func(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error] {
				return func(yield func(string, error) bool) {
					<-release
					yield("done", nil)
				}
			},
		})

		w := doRequest(t, srv, http.MethodPost, "/api/messages", `{"text":"first"}`)
		gt.Number(t, w.Code).Equal(http.StatusAccepted)

		w = doRequest(t, srv, http.MethodPost, "/api/messages", `{"text":"second"}`)
		gt.Number(t, w.Code).Equal(http.StatusConflict)

		close(release)
		waitFor(t, func() bool { return !uc.Presence.IsStreaming("mika") })

		history, err := uc.Store.History("mika")
		gt.NoError(t, err).Required()
		gt.Array(t, history).Length(2)
	})

	t.Run("body too large", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockCompletion{})
		body := `{"text":"` + strings.Repeat("a", 11<<20) + `"}`
		w := doRequest(t, srv, http.MethodPost, "/api/messages", body)
		gt.Number(t, w.Code).Equal(http.StatusRequestEntityTooLarge)
	})
}

func TestHistoryAndMemory(t *testing.T) {
	srv, uc := newTestServer(t, &mockCompletion{})

	gt.NoError(t, uc.Store.AppendMemory(context.Background(), "ren", "likes tea")).Required()

	w := doRequest(t, srv, http.MethodGet, "/api/characters/ren/memory", "")
	gt.Number(t, w.Code).Equal(http.StatusOK)
	var mem map[string]string
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &mem)).Required()
	gt.Value(t, mem["memory"]).Equal("likes tea")

	w = doRequest(t, srv, http.MethodGet, "/api/characters/ren/messages", "")
	gt.Number(t, w.Code).Equal(http.StatusOK)
	gt.String(t, strings.TrimSpace(w.Body.String())).Equal("[]")

	w = doRequest(t, srv, http.MethodGet, "/api/characters/nobody/messages", "")
	gt.Number(t, w.Code).Equal(http.StatusNotFound)

	w = doRequest(t, srv, http.MethodGet, "/api/characters/nobody/memory", "")
	gt.Number(t, w.Code).Equal(http.StatusNotFound)
}

func TestView(t *testing.T) {
	srv, uc := newTestServer(t, &mockCompletion{})

	gt.Number(t, uc.Presence.NotifyUnread("mika")).Equal(1)

	w := doRequest(t, srv, http.MethodPut, "/api/view", `{"open":true}`)
	gt.Number(t, w.Code).Equal(http.StatusNoContent)
	gt.Bool(t, uc.Presence.ViewOpen()).True()
	gt.Number(t, uc.Presence.Unread("mika")).Equal(0)

	w = doRequest(t, srv, http.MethodPut, "/api/view", `{"open":false}`)
	gt.Number(t, w.Code).Equal(http.StatusNoContent)
	gt.Bool(t, uc.Presence.ViewOpen()).False()
}

func TestSnapshot(t *testing.T) {
	srv, _ := newTestServer(t, &mockCompletion{})

	w := doRequest(t, srv, http.MethodGet, "/api/snapshot", "")
	gt.Number(t, w.Code).Equal(http.StatusOK)

	var resp struct {
		Tasks []struct {
			ID       string `json:"id"`
			Priority string `json:"priority"`
		} `json:"tasks"`
		Habits  []json.RawMessage `json:"habits"`
		Level   int               `json:"level"`
		TotalXP int               `json:"total_xp"`
	}
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
	gt.Array(t, resp.Tasks).Length(1).Required()
	gt.Value(t, resp.Tasks[0].Priority).Equal("high")
	gt.Array(t, resp.Habits).Length(1)
	gt.Number(t, resp.TotalXP).Equal(120)
	gt.Number(t, resp.Level).Equal(2)
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) server.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	gt.NoError(t, err).Required()

	var ev server.Event
	gt.NoError(t, json.NewDecoder(bytes.NewReader(data)).Decode(&ev)).Required()
	return ev
}

func TestWebSocket(t *testing.T) {
	t.Run("navigate without client", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockCompletion{})
		err := srv.Hub().Navigate(context.Background(), "tasks")
		gt.Error(t, err).Is(server.ErrNoClient)
	})

	t.Run("navigate event", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockCompletion{})
		ts := httptest.NewServer(srv)
		defer ts.Close()

		conn := dial(t, ts)
		waitFor(t, func() bool { return srv.Hub().Clients() == 1 })

		gt.NoError(t, srv.Hub().Navigate(context.Background(), "habits")).Required()
		ev := readEvent(t, conn)
		gt.Value(t, ev.Type).Equal(server.EventTypeNavigate)
		gt.Value(t, ev.PageID).Equal("habits")
	})

	t.Run("message events", func(t *testing.T) {
		srv, uc := newTestServer(t, &mockCompletion{})
		ts := httptest.NewServer(srv)
		defer ts.Close()

		conn := dial(t, ts)
		waitFor(t, func() bool { return srv.Hub().Clients() == 1 })

		proactive := model.NewProactiveMessage("Time to stretch!", time.Now())
		gt.NoError(t, uc.Store.Append(context.Background(), "ren", proactive)).Required()

		ev := readEvent(t, conn)
		gt.Value(t, ev.Type).Equal(server.EventTypeMessage)
		gt.Value(t, ev.CharacterID.String()).Equal("ren")
		gt.Value(t, ev.Message).NotNil()
		gt.Value(t, ev.Message.Content).Equal("Time to stretch!")
		gt.Bool(t, ev.Message.Proactive).True()
	})

	t.Run("client disconnect unregisters", func(t *testing.T) {
		srv, _ := newTestServer(t, &mockCompletion{})
		ts := httptest.NewServer(srv)
		defer ts.Close()

		conn := dial(t, ts)
		waitFor(t, func() bool { return srv.Hub().Clients() == 1 })

		_ = conn.Close(websocket.StatusNormalClosure, "")
		waitFor(t, func() bool { return srv.Hub().Clients() == 0 })
	})
}
