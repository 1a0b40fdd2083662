package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pressline/lavanda/internal/coordinate"
	"github.com/pressline/lavanda/internal/session"
	"github.com/pressline/lavanda/model"
)

func handleSessionStart(coord *coordinate.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		desc, err := coord.Start(r.Context(), rctx)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, desc)
	}
}

func handleSessionGet(coord *coordinate.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		sessionID := chi.URLParam(r, "sessionId")
		includeHistory := r.URL.Query().Get("history") == "true"

		desc, err := coord.Get(r.Context(), rctx, sessionID, includeHistory)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

func handleSessionAdvance(coord *coordinate.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		sessionID := chi.URLParam(r, "sessionId")

		var body struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		if body.Event == "" {
			WriteError(w, model.NewBadRequestError("event is required"))
			return
		}

		desc, err := coord.Advance(r.Context(), rctx, sessionID, body.Event, body.Data)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

func handleSessionCancel(coord *coordinate.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		sessionID := chi.URLParam(r, "sessionId")

		desc, err := coord.Cancel(r.Context(), rctx, sessionID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

func handleSessionDelete(coord *coordinate.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		sessionID := chi.URLParam(r, "sessionId")

		if err := coord.Delete(r.Context(), rctx, sessionID); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSessionList(coord *coordinate.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())

		filters := session.Filters{
			OperatorID: r.URL.Query().Get("operator_id"),
			Limit:      queryInt(r, "limit", 20),
			Offset:     queryInt(r, "offset", 0),
		}

		descriptors, err := coord.List(r.Context(), rctx, filters)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":  descriptors,
			"count": len(descriptors),
		})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
