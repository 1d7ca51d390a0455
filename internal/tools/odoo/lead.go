package odootools

import (
	"context"
	"encoding/json"

	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/odoo"
)

func newCreateLead(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name: "create_lead",
			Description: "Notifica a los jefes sobre el interés del cliente en algún producto. " +
				"Activar automáticamente después de cerrar un presupuesto",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"email": {"type": "string", "description": "Correo electrónico del cliente interesado (Obligatorio)"},
					"name": {"type": "string", "description": "Nombre del cliente interesado (Obligatorio)"},
					"product_name": {"type": "string", "description": "Nombre del producto que el cliente desea"}
				},
				"required": ["email", "name", "product_name"]
			}`),
			Kind:            models.CallFunction,
			NeedsTranscript: true,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				Email       string `json:"email"`
				Name        string `json:"name"`
				ProductName string `json:"product_name"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}
			d.Background.Text(call.WhatsAppID, "Estoy registrando sus datos ✍️")

			partner, status, err := d.Orion.CreatePartner(ctx, args.Name, call.UserID, args.Email)
			if err != nil || status == odoo.PartnerError {
				d.Log.Error(ctx, "partner creation failed", "user", call.UserID, "error", err)
				return "Error durante la creación del partner", nil
			}

			summaryHTML, err := d.Summarizer.Summarize(ctx, call.Transcript, agent.SummaryHTML)
			if err != nil {
				return "", err
			}
			summaryPlain, err := d.Summarizer.Summarize(ctx, call.Transcript, agent.SummaryPlain)
			if err != nil {
				d.Log.Warn(ctx, "plain summary failed, reusing html", "error", err)
				summaryPlain = summaryHTML
			}

			if err := d.Orion.CreateLead(ctx, partner, summaryHTML, args.Email); err != nil {
				return "", err
			}
			d.Log.Info(ctx, "lead registered", "user", call.UserID, "product", args.ProductName)

			partnerName := odoo.AsString(partner["name"])
			partnerPhone := odoo.AsString(partner["phone"])
			d.Background.Run("lead_email", func(ctx context.Context) error {
				return d.Email.NotifyLead(ctx, partnerName, partnerPhone, args.Email, summaryPlain)
			})

			return "Hemos registrado sus datos. Pronto nuestro equipo se pondrá en contacto con usted", nil
		},
	}
}
