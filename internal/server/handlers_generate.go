package server

import (
	"fmt"
	"net/http"

	"github.com/alnah/go-texport/internal/latex"
)

// maxGenerateDepth matches the deepest LaTeX sectioning command.
const maxGenerateDepth = 5

type generateRequest struct {
	Structure []latex.StructureNode `json:"structure"`
	Content   latex.ContentMap      `json:"content"`
	AuditLog  []latex.AuditEntry    `json:"auditLog"`
	Target    string                `json:"target"`
	MaxDepth  int                   `json:"maxDepth,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	profile, err := latex.ProfileFor(req.Target)
	if err != nil {
		jsonError(w, "target must be word or pdf", http.StatusBadRequest)
		return
	}

	depth := req.MaxDepth
	if depth == 0 {
		depth = s.opts.MaxDepth
	}
	if depth < 0 || depth > maxGenerateDepth {
		jsonError(w, fmt.Sprintf("maxDepth must be between 0 and %d (0 = default)", maxGenerateDepth), http.StatusBadRequest)
		return
	}

	source := latex.Generate(latex.Document{
		Structure: req.Structure,
		Content:   req.Content,
		Audit:     req.AuditLog,
	}, latex.GenerateOptions{
		Profile:    profile,
		Now:        s.opts.Now,
		DateFormat: s.opts.DateFormat,
		MaxDepth:   depth,
	})

	w.Header().Set("Content-Type", "text/x-tex; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(source))
}
