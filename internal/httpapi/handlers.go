package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/DoyleJ11/codeduel-backend/internal/catalog"
	"github.com/DoyleJ11/codeduel-backend/internal/judge"
	"github.com/DoyleJ11/codeduel-backend/internal/match"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type submitRequest struct {
	SourceCode string             `json:"source_code"`
	LanguageID int                `json:"language_id"`
	TestCases  []catalog.TestCase `json:"testCases"`
}

type executeRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type api struct {
	rooms   Rooms
	catalog catalog.Catalog
	judge   Judge
	logger  *zap.Logger
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *api) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := a.rooms.Room(r.Context(), chi.URLParam(r, "roomId"))
	if errors.Is(err, match.ErrRoomNotFound) {
		a.writeError(w, http.StatusNotFound, "Room not found", "")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, room)
}

func (a *api) getProblem(w http.ResponseWriter, r *http.Request) {
	p, err := a.catalog.ByID(r.Context(), chi.URLParam(r, "problemId"))
	if errors.Is(err, catalog.ErrNotFound) {
		a.writeError(w, http.StatusNotFound, "Problem not found", "")
		return
	}
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, p)
}

func (a *api) submit(w http.ResponseWriter, r *http.Request) {
	if !a.judgeEnabled(w) {
		return
	}
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SourceCode) == "" || req.LanguageID == 0 || len(req.TestCases) == 0 {
		a.writeError(w, http.StatusBadRequest, "Missing required fields: source_code, language_id, testCases", "")
		return
	}

	verdict, err := a.judge.Grade(r.Context(), req.SourceCode, req.LanguageID, req.TestCases)
	if err != nil {
		a.logger.Error("grade submission", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "Failed to process submission", err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, verdict)
}

func (a *api) execute(w http.ResponseWriter, r *http.Request) {
	if !a.judgeEnabled(w) {
		return
	}
	var req executeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SourceCode) == "" || req.LanguageID == 0 {
		a.writeError(w, http.StatusBadRequest, "Missing required fields: source_code, language_id", "")
		return
	}

	res, err := a.judge.Execute(r.Context(), judge.Submission{
		SourceCode: req.SourceCode,
		LanguageID: req.LanguageID,
		Stdin:      req.Stdin,
	})
	if err != nil {
		a.logger.Error("execute code", zap.Error(err))
		a.writeError(w, http.StatusInternalServerError, "Failed to execute code", err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, res)
}

func (a *api) judgeEnabled(w http.ResponseWriter) bool {
	if a.judge == nil {
		a.writeError(w, http.StatusServiceUnavailable, "Code judging is not configured on this server", "")
		return false
	}
	return true
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return false
	}
	return true
}

func (a *api) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("url", r.URL.String()),
		zap.Error(err),
	)
	a.writeError(w, http.StatusInternalServerError, "The server encountered a problem and could not process your request", "")
}

func (a *api) writeError(w http.ResponseWriter, status int, msg, details string) {
	a.writeJSON(w, status, errorBody{Error: msg, Details: details})
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("write response", zap.Error(err))
	}
}
