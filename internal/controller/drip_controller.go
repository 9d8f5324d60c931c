// internal/controller/drip_controller.go
package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/service"
)

type DripController struct {
	DripService *service.DripService
}

func (c *DripController) SaveSequence(w http.ResponseWriter, r *http.Request) {
	var seq model.DripSequence
	if !decodeBody(w, r, &seq) {
		return
	}
	if err := c.DripService.SaveSequence(&seq); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"sequence": seq})
}

func (c *DripController) ListSequences(w http.ResponseWriter, r *http.Request) {
	seqs, err := c.DripService.ListSequences()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"sequences": seqs})
}

func (c *DripController) DeleteSequence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.DripService.DeleteSequence(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": id})
}

func (c *DripController) Enroll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Phones []string `json:"phones"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := c.DripService.Enroll(body.Phones, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"enrolled": result.Enrolled, "skipped": result.Skipped})
}

func (c *DripController) Unenroll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Phone string `json:"phone"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := c.DripService.Unenroll(body.Phone, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"unenrolled": body.Phone})
}
