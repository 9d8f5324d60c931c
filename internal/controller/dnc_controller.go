// internal/controller/dnc_controller.go
package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/chatleopard-backend/internal/errors"
	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
)

type DNCController struct {
	DNCRepo repository.DNCRepositoryInterface
}

func (c *DNCController) List(w http.ResponseWriter, r *http.Request) {
	phones, err := c.DNCRepo.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"phones": phones})
}

func (c *DNCController) Add(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	phone := model.NormalizePhone(body.Phone)
	if phone == "" {
		writeError(w, appErrors.NewValidation("phone", "phone is required"))
		return
	}
	if err := c.DNCRepo.Add(phone); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"added": phone})
}

func (c *DNCController) Remove(w http.ResponseWriter, r *http.Request) {
	phone := model.NormalizePhone(chi.URLParam(r, "phone"))
	if err := c.DNCRepo.Remove(phone); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"removed": phone})
}

func (c *DNCController) Clear(w http.ResponseWriter, r *http.Request) {
	if err := c.DNCRepo.Clear(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, nil)
}
