package handlers

import (
	"net/http"
	"strconv"

	"github.com/nominahq/payslip-service/internal/registry"
)

type EmployeeHandler struct {
	reg registry.Registry
}

func NewEmployeeHandler(reg registry.Registry) *EmployeeHandler {
	return &EmployeeHandler{reg: reg}
}

// Search backs the manual-assignment picker in the review UI.
func (h *EmployeeHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q required"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	employees, err := h.reg.Search(r.Context(), q, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"employees": employees, "count": len(employees)})
}
