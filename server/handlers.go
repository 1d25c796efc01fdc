package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/files"
	"github.com/noisersup/filesmanager/models"
)

const tokenHeader = "X-Token"

// GET /status
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request, _ []string) {
	writeResponse(w, StatusResponse{
		Redis: s.cache.Ping(r.Context()) == nil,
		DB:    s.db.Ping(r.Context()) == nil,
	}, http.StatusOK)
}

// GET /stats
func (s *Server) getStats(w http.ResponseWriter, r *http.Request, _ []string) {
	users, err := s.db.CountUsers(r.Context())
	if err != nil {
		s.fail(w, "getStats", err)
		return
	}
	nbFiles, err := s.db.CountFiles(r.Context())
	if err != nil {
		s.fail(w, "getStats", err)
		return
	}
	writeResponse(w, StatsResponse{Users: users, Files: nbFiles}, http.StatusOK)
}

// POST /users
func (s *Server) postNew(w http.ResponseWriter, r *http.Request, _ []string) {
	var req NewUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, "postNew", err)
		return
	}
	writeResponse(w, newUserResponse(user), http.StatusCreated)
}

// GET /users/me
func (s *Server) getMe(w http.ResponseWriter, r *http.Request, _ []string) {
	user, err := s.auth.Me(r.Context(), r.Header.Get(tokenHeader))
	if err != nil {
		s.fail(w, "getMe", err)
		return
	}
	writeResponse(w, newUserResponse(user), http.StatusOK)
}

// GET /connect
func (s *Server) getConnect(w http.ResponseWriter, r *http.Request, _ []string) {
	token, err := s.auth.Connect(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		s.fail(w, "getConnect", err)
		return
	}
	writeResponse(w, TokenResponse{Token: token}, http.StatusOK)
}

// GET /disconnect
func (s *Server) getDisconnect(w http.ResponseWriter, r *http.Request, _ []string) {
	if err := s.auth.Disconnect(r.Context(), r.Header.Get(tokenHeader)); err != nil {
		s.fail(w, "getDisconnect", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /files
func (s *Server) postUpload(w http.ResponseWriter, r *http.Request, _ []string) {
	userId, ok := s.user(w, r)
	if !ok {
		return
	}
	var req files.CreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := s.files.CreateEntry(r.Context(), userId, req)
	if err != nil {
		s.fail(w, "postUpload", err)
		return
	}
	writeResponse(w, newFileResponse(f), http.StatusCreated)
}

// GET /files?parentId=&page=
func (s *Server) getIndex(w http.ResponseWriter, r *http.Request, _ []string) {
	userId, ok := s.user(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	parent, err := models.ParseParent(q.Get("parentId"))
	if err != nil {
		// nothing can live under an unparsable parent
		writeResponse(w, []FileResponse{}, http.StatusOK)
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))

	list, err := s.files.ListEntries(r.Context(), userId, parent, page)
	if err != nil {
		s.fail(w, "getIndex", err)
		return
	}
	writeResponse(w, newFileListResponse(list), http.StatusOK)
}

// GET /files/:id
func (s *Server) getShow(w http.ResponseWriter, r *http.Request, args []string) {
	userId, ok := s.user(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		errResponse(w, http.StatusNotFound, "Not found")
		return
	}
	f, err := s.files.GetEntry(r.Context(), userId, id)
	if err != nil {
		s.fail(w, "getShow", err)
		return
	}
	writeResponse(w, newFileResponse(f), http.StatusOK)
}

// PUT /files/:id/publish
func (s *Server) putPublish(w http.ResponseWriter, r *http.Request, args []string) {
	s.setVisibility(w, r, args[0], true)
}

// PUT /files/:id/unpublish
func (s *Server) putUnpublish(w http.ResponseWriter, r *http.Request, args []string) {
	s.setVisibility(w, r, args[0], false)
}

func (s *Server) setVisibility(w http.ResponseWriter, r *http.Request, rawId string, isPublic bool) {
	userId, ok := s.user(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(rawId)
	if err != nil {
		errResponse(w, http.StatusNotFound, "Not found")
		return
	}
	f, err := s.files.SetVisibility(r.Context(), userId, id, isPublic)
	if err != nil {
		s.fail(w, "setVisibility", err)
		return
	}
	writeResponse(w, newFileResponse(f), http.StatusOK)
}

// GET /files/:id/data?size=
//
// The token is optional here: anonymous requesters only see public files.
func (s *Server) getFile(w http.ResponseWriter, r *http.Request, args []string) {
	id, err := uuid.Parse(args[0])
	if err != nil {
		errResponse(w, http.StatusNotFound, "Not found")
		return
	}

	requester := uuid.Nil
	if token := r.Header.Get(tokenHeader); token != "" {
		requester, err = s.auth.ResolveUser(r.Context(), token)
		if err != nil && !errors.Is(err, models.ErrUnauthorized) {
			s.fail(w, "getFile", err)
			return
		}
	}

	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil {
			errResponse(w, http.StatusNotFound, "Not found")
			return
		}
	}

	content, err := s.files.ReadContent(r.Context(), requester, id, size)
	if err != nil {
		s.fail(w, "getFile", err)
		return
	}

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": content.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content.Data); err != nil {
		s.l.SWarn("getFile", "writing response: %s", err.Error())
	}
}

// user resolves the X-Token header, answering 401 itself when it cannot
func (s *Server) user(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := s.auth.ResolveUser(r.Context(), r.Header.Get(tokenHeader))
	if err != nil {
		s.fail(w, "user", err)
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body capped at maxUpload bytes
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		errResponse(w, http.StatusRequestEntityTooLarge, "Request too large")
		return false
	}
	if msg, ok := models.IsValidation(err); ok {
		errResponse(w, http.StatusBadRequest, msg)
		return false
	}
	errResponse(w, http.StatusBadRequest, "Invalid JSON")
	return false
}
