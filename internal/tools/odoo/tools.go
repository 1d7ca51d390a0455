// Package odootools implements the ERP-backed operations the model can
// invoke: partner management, catalog queries, quotations, orders, leads
// and product images.
package odootools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/notify"
	"github.com/akivoy/orion/internal/observability"
	"github.com/akivoy/orion/internal/odoo"
)

// Deps carries the collaborators shared by every tool.
type Deps struct {
	Orion      *odoo.Orion
	Background *notify.Background
	Email      *notify.EmailSender
	Summarizer Summarizer
	// PublicBaseURL prefixes links to static assets (images, PDFs) sent
	// over WhatsApp.
	PublicBaseURL string
	Log           *observability.Logger
}

// Summarizer condenses a transcript for lead descriptions and notices.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []models.Message, format agent.SummaryFormat) (string, error)
}

// tool pairs a declaration with its body.
type tool struct {
	def agent.Definition
	run func(ctx context.Context, call agent.Call) (string, error)
}

func (t *tool) Definition() agent.Definition { return t.def }
func (t *tool) Invoke(ctx context.Context, call agent.Call) (string, error) {
	return t.run(ctx, call)
}

// RegisterAll installs every ERP tool on the registry.
func RegisterAll(r *agent.Registry, deps *Deps) {
	for _, t := range []*tool{
		newGetPartner(deps),
		newCreatePartner(deps),
		newCreateLead(deps),
		newCreateSaleOrder(deps),
		newQuotations(deps),
		newGetSaleOrderByName(deps),
		newGetSaleOrderByID(deps),
		newGetProductBySKU(deps),
		newGetProductByName(deps),
		newGetAllProducts(deps),
		newGetProductsByCategoryID(deps),
		newGetAllCategories(deps),
		newSendMainProductImage(deps),
		newSendAllProductImages(deps),
	} {
		r.Register(t)
	}
}

// toJSON renders a tool result payload for the model.
func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(data), nil
}

// staticURL builds the public link for a stored asset.
func (d *Deps) staticURL(relPath string) string {
	return d.PublicBaseURL + "/static/" + relPath
}
