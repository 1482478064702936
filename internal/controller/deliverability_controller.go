package controller

import (
	"net/http"

	"github.com/lewisgerrard/divafitness-backend/internal/deliverability"
	"github.com/lewisgerrard/divafitness-backend/internal/handler"
)

type DeliverabilityController struct {
	Analyzer *deliverability.Analyzer
}

// Check handles GET /email/deliverability-check. Failed lookups show up as
// critical checks, so the response is always 200.
func (c *DeliverabilityController) Check(w http.ResponseWriter, r *http.Request) {
	report := c.Analyzer.Analyze(r.Context())
	handler.RespondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"analysis":  report,
		"summary":   deliverability.Summarize(report),
		"nextSteps": deliverability.NextSteps(report),
	})
}
