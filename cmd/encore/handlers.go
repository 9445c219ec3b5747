package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/encorelive/encore/internal/band"
	"github.com/encorelive/encore/internal/quiz"
	"github.com/encorelive/encore/internal/realtime"
	"github.com/encorelive/encore/internal/session"
)

// setupBoards holds the operator assignment board per session. The board is
// transient operator state; the durable round record is what clients trust.
type setupBoards struct {
	mu     sync.Mutex
	boards map[string]*band.Setup
}

func (b *setupBoards) get(code string) *band.Setup {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.boards[code] == nil {
		b.boards[code] = band.NewSetup()
	}
	return b.boards[code]
}

func registerRoutes(mux *http.ServeMux, s *Services) {
	boards := &setupBoards{boards: make(map[string]*band.Setup)}

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if !readJSON(w, r, &req) {
			return
		}
		sess, err := s.Sessions.Create(r.Context(), req.Name)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	})

	mux.HandleFunc("GET /api/sessions/{code}", func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Sessions.Lookup(r.Context(), r.PathValue("code"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	})

	mux.HandleFunc("POST /api/sessions/{code}/join", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Nickname string `json:"nickname"`
		}
		if !readJSON(w, r, &req) {
			return
		}
		if req.Nickname == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nickname required"})
			return
		}
		p, err := s.Sessions.Join(r.Context(), r.PathValue("code"), req.Nickname)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	})

	mux.HandleFunc("GET /api/sessions/{code}/participants", func(w http.ResponseWriter, r *http.Request) {
		list, err := s.Sessions.Participants(r.Context(), r.PathValue("code"))
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	mux.HandleFunc("GET /api/sessions/{code}/qr.png", func(w http.ResponseWriter, r *http.Request) {
		png, err := session.JoinQR(s.BaseURL, r.PathValue("code"), session.DefaultQRSize)
		if err != nil {
			httpError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	mux.HandleFunc("GET /api/sessions/{code}/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.Leaderboard.GetTop(r.Context(), r.PathValue("code"), 20)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	// Websocket endpoint, one topic per session per mini-game family.
	mux.HandleFunc("GET /api/ws/{family}/{code}", func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		var topic string
		switch r.PathValue("family") {
		case realtime.FamilyBand:
			topic = realtime.BandTopic(code)
		case realtime.FamilySession:
			topic = realtime.SessionTopic(code)
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown topic family"})
			return
		}
		if _, err := s.Sessions.Lookup(r.Context(), code); err != nil {
			httpError(w, err)
			return
		}
		s.Hub.Serve(w, r, topic, r.URL.Query().Get("nickname"))
	})

	registerBandRoutes(mux, s, boards)
	registerQuizRoutes(mux, s)
}

func registerBandRoutes(mux *http.ServeMux, s *Services, boards *setupBoards) {
	mux.HandleFunc("GET /api/band/songs", func(w http.ResponseWriter, r *http.Request) {
		songs, err := s.Catalog.Songs()
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, songs)
	})

	// Clients fetch their chart by role-specific name once assigned.
	mux.HandleFunc("GET /api/band/charts/{song}/{role}", func(w http.ResponseWriter, r *http.Request) {
		chart, err := s.Catalog.Chart(r.PathValue("song"), r.PathValue("role"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, chart)
	})

	// Durable round record, polled by every client for correctness-critical
	// transitions.
	mux.HandleFunc("GET /api/sessions/{code}/band/round", func(w http.ResponseWriter, r *http.Request) {
		round, err := s.Band.ActiveRound(r.Context(), r.PathValue("code"))
		if err != nil {
			httpError(w, err)
			return
		}
		if round == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": band.RoundInactive})
			return
		}
		writeJSON(w, http.StatusOK, round)
	})

	mux.HandleFunc("POST /api/sessions/{code}/band/setup", func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		var req struct {
			Song        string                `json:"song"`
			Assignments []realtime.Assignment `json:"assignments"`
		}
		if !readJSON(w, r, &req) {
			return
		}

		manifest, err := s.Catalog.Manifest(req.Song)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}

		board := boards.get(code)
		board.SelectSong(req.Song, manifest)
		for _, a := range req.Assignments {
			if err := board.Assign(a.Role, a.UserID, a.Nickname); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}

		if err := s.Band.SendSetup(r.Context(), code, board); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"assignments": board.Assignments()})
	})

	mux.HandleFunc("POST /api/sessions/{code}/band/start", func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		round, err := s.Band.SendStart(r.Context(), code, boards.get(code))
		if err != nil {
			httpError(w, err)
			return
		}
		if err := s.Sessions.SetActiveModule(r.Context(), code, session.ModuleBand); err != nil {
			log.Warn().Err(err).Str("code", code).Msg("active module update failed")
		}
		writeJSON(w, http.StatusOK, round)
	})

	mux.HandleFunc("POST /api/sessions/{code}/band/stop", func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		if err := s.Band.Stop(r.Context(), code, boards.get(code)); err != nil {
			httpError(w, err)
			return
		}
		if err := s.Sessions.SetActiveModule(r.Context(), code, session.ModuleNone); err != nil {
			log.Warn().Err(err).Str("code", code).Msg("active module update failed")
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func registerQuizRoutes(mux *http.ServeMux, s *Services) {
	mux.HandleFunc("POST /api/sessions/{code}/quiz/start", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question     string   `json:"question"`
			Options      []string `json:"options"`
			CorrectIndex int      `json:"correct_index"`
		}
		if !readJSON(w, r, &req) {
			return
		}
		q, err := s.Quiz.Start(r.Context(), r.PathValue("code"), req.Question, req.Options, req.CorrectIndex)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	})

	mux.HandleFunc("POST /api/sessions/{code}/quiz/end", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Quiz.End(r.Context(), r.PathValue("code")); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/sessions/{code}/quiz/answer", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Nickname    string `json:"nickname"`
			OptionIndex int    `json:"option_index"`
		}
		if !readJSON(w, r, &req) {
			return
		}
		correct, err := s.Quiz.Answer(r.Context(), r.PathValue("code"), req.Nickname, req.OptionIndex)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"correct": correct})
	})

	mux.HandleFunc("GET /api/sessions/{code}/quiz", func(w http.ResponseWriter, r *http.Request) {
		q, err := s.Quiz.Active(r.Context(), r.PathValue("code"))
		if err != nil {
			httpError(w, err)
			return
		}
		if q == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": quiz.StatusEnded})
			return
		}
		// The correct answer is revealed only on quiz_ended.
		writeJSON(w, http.StatusOK, map[string]any{
			"id":       q.ID,
			"question": q.Question,
			"options":  q.Options,
			"ends_at":  q.EndsAt.Format(time.RFC3339),
		})
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, band.ErrNoSongSelected),
		errors.Is(err, band.ErrNoAssignments),
		errors.Is(err, band.ErrSetupNotSent),
		errors.Is(err, quiz.ErrNoActiveQuiz):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
