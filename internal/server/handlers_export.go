package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/alnah/go-texport"
)

type exportRequest struct {
	Source       string `json:"source"`
	Filename     string `json:"filename,omitempty"`
	Bibliography string `json:"bibliography,omitempty"`
}

type exportFailure struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Stage   string `json:"stage,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func (s *Server) handleExport(format texport.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exportRequest
		if !s.decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Source) == "" {
			jsonError(w, "source is required", http.StatusBadRequest)
			return
		}

		res, err := s.exporter.Export(r.Context(), texport.Request{
			Source:       req.Source,
			Format:       format,
			Filename:     req.Filename,
			Bibliography: req.Bibliography,
		})
		if err != nil {
			s.exportError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", res.MIMEType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
		if len(res.Failed) > 0 {
			w.Header().Set("X-Texport-Missing-Images", strconv.Itoa(len(res.Failed)))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Data)
	}
}

func (s *Server) exportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, texport.ErrEmptySource):
		jsonError(w, "source is required", http.StatusBadRequest)
		return
	case errors.Is(err, texport.ErrInvalidFilename), errors.Is(err, texport.ErrUnsupportedFormat):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, texport.ErrPoolClosed):
		jsonError(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		s.log.Info("client went away before export finished", "request_id", middleware.GetReqID(r.Context()))
		return
	}

	s.log.Error("export failed",
		"request_id", middleware.GetReqID(r.Context()),
		"stage", string(texport.FailedStage(err)),
		"error", err,
	)

	body := exportFailure{
		Error:   "Export failed",
		Details: err.Error(),
		Stage:   string(texport.FailedStage(err)),
	}
	if !s.opts.Production {
		body.Stack = texport.StackTrace(err)
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

// decodeBody reads a size-capped JSON body into v. It writes the error
// response itself and reports whether decoding succeeded.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
