package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/secmon-lab/companion/pkg/utils/async"
	"github.com/secmon-lab/companion/pkg/utils/errutil"
	"github.com/secmon-lab/companion/pkg/utils/safe"
)

type characterResponse struct {
	ID        types.CharacterID `json:"id"`
	Name      string            `json:"name"`
	Color     string            `json:"color,omitempty"`
	Emoji     string            `json:"emoji,omitempty"`
	Active    bool              `json:"active"`
	Unread    int               `json:"unread"`
	Streaming bool              `json:"streaming"`
}

type imageRequest struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"` // base64 in JSON
}

type postMessageRequest struct {
	Text  string        `json:"text"`
	Image *imageRequest `json:"image,omitempty"`
}

type postMessageResponse struct {
	CharacterID types.CharacterID `json:"character_id"`
	MessageID   model.MessageID   `json:"message_id"`
}

type taskResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Priority  string `json:"priority"`
	Category  string `json:"category"`
	DueDate   string `json:"due_date,omitempty"`
	Completed bool   `json:"completed"`
	Overdue   bool   `json:"overdue"`
}

type habitResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Cadence   string `json:"cadence"`
	DoneToday bool   `json:"done_today"`
}

type appointmentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Description string `json:"description,omitempty"`
}

type categoryResponse struct {
	Name    string `json:"name"`
	Level   int    `json:"level"`
	TotalXP int    `json:"total_xp"`
}

type snapshotResponse struct {
	Today        string                `json:"today"`
	Tasks        []taskResponse        `json:"tasks"`
	Habits       []habitResponse       `json:"habits"`
	Appointments []appointmentResponse `json:"appointments"`
	Categories   []categoryResponse    `json:"categories"`
	Level        int                   `json:"level"`
	TotalXP      int                   `json:"total_xp"`
	Relationship string                `json:"relationship,omitempty"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	safe.WriteJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listCharacters(w http.ResponseWriter, r *http.Request) {
	active := s.uc.Presence.Active()
	characters := s.uc.Characters.List()

	resp := make([]characterResponse, 0, len(characters))
	for _, c := range characters {
		resp = append(resp, characterResponse{
			ID:        c.ID,
			Name:      c.Name,
			Color:     c.Accent.Color,
			Emoji:     c.Accent.Emoji,
			Active:    c.ID == active,
			Unread:    s.uc.Presence.Unread(c.ID),
			Streaming: s.uc.Presence.IsStreaming(c.ID),
		})
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) setActiveCharacter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID types.CharacterID `json:"id"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.uc.Conversation.SetActiveCharacter(req.ID); err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id := types.CharacterID(chi.URLParam(r, "id"))
	history, err := s.uc.Store.History(id)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, statusOf(err))
		return
	}
	if history == nil {
		history = []model.Message{}
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, history)
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	id := types.CharacterID(chi.URLParam(r, "id"))
	memory, err := s.uc.Store.Memory(id)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, statusOf(err))
		return
	}
	safe.WriteJSON(r.Context(), w, http.StatusOK, map[string]string{"memory": memory})
}

// postMessage starts an exchange with the active character and returns before the reply streams
func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	var image *model.Image
	if req.Image != nil && len(req.Image.Data) > 0 {
		if req.Image.MIMEType == "" {
			errutil.HandleHTTP(r.Context(), w, goerr.New("image mime_type is required"), http.StatusBadRequest)
			return
		}
		image = &model.Image{MIMEType: req.Image.MIMEType, Data: req.Image.Data}
	}

	ex, err := s.uc.Conversation.Begin(r.Context(), req.Text, image)
	if err != nil {
		if usecase.IsNoopSend(err) {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusConflict)
			return
		}
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	async.Dispatch(r.Context(), ex.Run)

	safe.WriteJSON(r.Context(), w, http.StatusAccepted, postMessageResponse{
		CharacterID: ex.CharacterID(),
		MessageID:   ex.AssistantMessageID(),
	})
}

func (s *Server) setView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Open bool `json:"open"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	s.uc.Presence.SetViewOpen(req.Open)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.uc.Snapshot(r.Context())
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
		return
	}

	today := snapshot.Today()
	resp := snapshotResponse{
		Today:        today,
		Tasks:        make([]taskResponse, 0, len(snapshot.Tasks)),
		Habits:       make([]habitResponse, 0, len(snapshot.Habits)),
		Appointments: make([]appointmentResponse, 0, len(snapshot.Appointments)),
		Categories:   make([]categoryResponse, 0, len(snapshot.XP.Categories)),
		Level:        snapshot.XP.GlobalLevel,
		TotalXP:      snapshot.XP.GlobalTotalXP,
		Relationship: s.uc.Conversation.ActiveCharacter().LabelFor(snapshot.XP.GlobalLevel),
	}
	for _, t := range snapshot.Tasks {
		resp.Tasks = append(resp.Tasks, taskResponse{
			ID:        t.ID,
			Title:     t.Title,
			Priority:  t.Priority.String(),
			Category:  t.Category,
			DueDate:   t.DueDate,
			Completed: t.Completed,
			Overdue:   t.IsOverdue(today),
		})
	}
	for _, h := range snapshot.Habits {
		resp.Habits = append(resp.Habits, habitResponse{
			ID:        h.ID,
			Name:      h.Name,
			Cadence:   h.Cadence.String(),
			DoneToday: h.DoneOn(today),
		})
	}
	for _, a := range snapshot.Appointments {
		resp.Appointments = append(resp.Appointments, appointmentResponse{
			ID:          a.ID,
			Title:       a.Title,
			Date:        a.Date,
			Time:        a.Time,
			Description: a.Description,
		})
	}
	for _, c := range snapshot.XP.Categories {
		resp.Categories = append(resp.Categories, categoryResponse{
			Name:    c.Name,
			Level:   c.Level,
			TotalXP: c.TotalXP,
		})
	}

	safe.WriteJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid request body"), status)
		return false
	}
	return true
}

func statusOf(err error) int {
	if usecase.IsUnknownCharacter(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
