package odootools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/odoo"
)

func newGetPartner(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name: "get_partner",
			Description: "Consulta informacion de un usuario. Esta acción verifica si el usuario es " +
				"cliente y de ser así retorna su información personal. Activación automática al " +
				"detectar frases como '¿Sabes quién soy?'.",
			Kind: models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			d.Background.Text(call.WhatsAppID, "Estoy verificando su usuario ✅")

			partner, err := d.Orion.GetPartnerByPhone(ctx, call.UserID)
			if err != nil {
				return "", err
			}
			if partner == nil {
				return fmt.Sprintf("No existe usuario asociado al teléfono %s. Sugerir crear cuenta", call.UserID), nil
			}
			payload, err := toJSON(partner)
			if err != nil {
				return "", err
			}
			return "Partner encontrado: " + payload, nil
		},
	}
}

func newCreatePartner(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "create_partner",
			Description: "Registra un usuario a partir de su nombre",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"email": {"type": "string", "description": "Correo electrónico del cliente"},
					"name": {"type": "string", "description": "Nombre del cliente (Obligatorio)"}
				},
				"required": ["name"]
			}`),
			Kind: models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}
			d.Background.Text(call.WhatsAppID, "Estoy creando su usuario 👤")

			partner, status, err := d.Orion.CreatePartner(ctx, args.Name, call.UserID, args.Email)
			if err != nil || status == odoo.PartnerError {
				d.Log.Error(ctx, "partner creation failed", "user", call.UserID, "error", err)
				return "Error creando partner", nil
			}
			payload, err := toJSON(partner)
			if err != nil {
				return "", err
			}
			if status == odoo.PartnerAlready {
				return "Partner encontrado: " + payload, nil
			}
			return "Partner creado: " + payload, nil
		},
	}
}

// decodeArgs unmarshals the model-provided arguments of a structured call.
func decodeArgs(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode tool arguments: %w", err)
	}
	return nil
}
