package odootools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/odoo"
)

func newCreateSaleOrder(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "create_sale_order_by_product_id",
			Description: "Crea un pedido que contiene una linea de pedido con un producto",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"product_id": {"type": "integer", "description": "id del producto solicitado"},
					"product_qty": {"type": "integer", "description": "Cantidad solicitada del producto"},
					"email": {"type": "string", "description": "Email del cliente"}
				},
				"required": ["product_id", "product_qty", "email"]
			}`),
			Kind: models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				ProductID int    `json:"product_id"`
				Qty       int    `json:"product_qty"`
				Email     string `json:"email"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}
			d.Background.Text(call.WhatsAppID, "Estoy creando su pedido 🛒")

			partner, err := d.Orion.GetPartnerByPhone(ctx, call.UserID)
			if err != nil {
				return "", err
			}
			if partner == nil {
				return fmt.Sprintf("No existe el partner asociado al teléfono %s", call.UserID), nil
			}
			product, err := d.Orion.GetProduct(ctx, odoo.ProductLookup{ID: args.ProductID, VariantFirst: true})
			if err != nil {
				return "", err
			}
			if product == nil {
				return fmt.Sprintf("No existe producto con sku: %d", args.ProductID), nil
			}
			return d.placeOrder(ctx, call, partner, product, args.Qty, args.Email)
		},
	}
}

// placeOrder creates the quotation, fetches its portal link, downloads the
// PDF and schedules the customer notices. The PDF is best effort; the order
// stands even when the report endpoint fails.
func (d *Deps) placeOrder(ctx context.Context, call agent.Call, partner, product odoo.Record, qty int, email string) (string, error) {
	name := odoo.AsString(product["name"])
	available, ok := odoo.AsFloat(product["qty_available"])
	if ok && available < 1 {
		return fmt.Sprintf("No hay stock disponible del producto %s en este momento", name), nil
	}

	productID, _ := odoo.AsInt(product["id"])
	price, _ := odoo.AsFloat(product["list_price"])
	partnerID, _ := odoo.AsInt(partner["id"])
	lines := []odoo.OrderLine{{
		ProductID: productID,
		Quantity:  float64(qty),
		PriceUnit: price * float64(qty),
	}}

	orderID, err := d.Orion.CreateSaleOrder(ctx, partnerID, lines)
	if err != nil {
		d.Log.Error(ctx, "sale order creation failed", "user", call.UserID, "product", name, "error", err)
		return fmt.Sprintf("Ha ocurrido un error al intentar crear un pedido con el producto %s", name), nil
	}
	order, err := d.Orion.GetSaleOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	link := odoo.AsString(order["link"])

	notice := fmt.Sprintf(
		"Nombre del producto: %s\nCantidad: %d\nMonto total: %v\nID del pedido: %d\nEnlace al presupuesto: %s",
		name, qty, price*float64(qty), orderID, link)

	pdfPath, err := d.Orion.DownloadReport(ctx, orderID)
	if err != nil {
		d.Log.Error(ctx, "quotation pdf failed", "order", orderID, "error", err)
		d.Background.Run("sale_order_email", func(ctx context.Context) error {
			return d.Email.NotifySaleOrder(ctx, email, notice, "")
		})
		d.Background.Text(call.WhatsAppID, fmt.Sprintf("Vea su presupuesto aquí: %s", link))
		return fmt.Sprintf(
			"Presupuesto creado! Número de seguimiento: %d. No se pudo generar el PDF con la cotización", orderID), nil
	}

	d.Background.Run("sale_order_email", func(ctx context.Context) error {
		return d.Email.NotifySaleOrder(ctx, email, notice, pdfPath)
	})
	d.Background.Text(call.WhatsAppID, fmt.Sprintf("Cotización #%d: %s", orderID, d.staticURL(fmt.Sprintf("reports/%d.pdf", orderID))))
	d.Background.Text(call.WhatsAppID, fmt.Sprintf("Vea su presupuesto aquí: %s", link))

	return fmt.Sprintf("Presupuesto creado! Número de seguimiento: %d", orderID), nil
}

func newQuotations(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "presupuestos",
			Description: "Consulta todos los pedidos de un cliente",
			Kind:        models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			d.Background.Text(call.WhatsAppID, "Estoy buscando sus pedidos 🔍")

			partner, err := d.Orion.GetPartnerByPhone(ctx, call.UserID)
			if err != nil {
				return "", err
			}
			if partner == nil {
				return fmt.Sprintf("No se encontró ningún cliente con el teléfono %s", call.UserID), nil
			}

			// A contact inside a company sees the company's quotations first.
			if !odoo.AsBool(partner["is_company"]) {
				if parentID, ok := odoo.RelID(partner["parent_id"]); ok {
					company, err := d.Orion.GetPartnerByID(ctx, parentID)
					if err != nil {
						return "", err
					}
					if company != nil {
						companyID, _ := odoo.AsInt(company["id"])
						orders, err := d.Orion.Quotations(ctx, companyID)
						if err != nil {
							return "", err
						}
						if len(orders) > 0 {
							return toJSON(orders)
						}
						d.Log.Debug(ctx, "company has no quotations", "company_id", companyID)
					}
				}
			}

			partnerID, _ := odoo.AsInt(partner["id"])
			orders, err := d.Orion.Quotations(ctx, partnerID)
			if err != nil {
				return "", err
			}
			if len(orders) > 0 {
				return toJSON(orders)
			}
			d.Log.Warn(ctx, "no quotations for user", "user", call.UserID)
			return fmt.Sprintf("No se encontraron pedidos asociados a %s", call.UserID), nil
		},
	}
}

func newGetSaleOrderByName(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "get_sale_order_by_name",
			Description: "Consulta el estado de un pedido especifico a partir de su nombre",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"name": {"type": "string", "description": "Nombre del pedido"}},
				"required": ["name"]
			}`),
			Kind: models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				Name string `json:"name"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}
			d.Background.Text(call.WhatsAppID, "Estoy buscando su pedido 📦")

			partner, err := d.Orion.GetPartnerByPhone(ctx, call.UserID)
			if err != nil {
				return "", err
			}
			order, err := d.Orion.GetSaleOrderByName(ctx, args.Name)
			if err != nil {
				return "", err
			}
			return d.checkOrder(ctx, call, partner, order)
		},
	}
}

func newGetSaleOrderByID(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "get_sale_order_by_id",
			Description: "Consulta el estado de un pedido especifico a partir de su id",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"id": {"type": "number", "description": "id del pedido"}},
				"required": ["id"]
			}`),
			Kind: models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				ID int `json:"id"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}
			d.Background.Text(call.WhatsAppID, "Estoy buscando su pedido 📦")

			partner, err := d.Orion.GetPartnerByPhone(ctx, call.UserID)
			if err != nil {
				return "", err
			}
			order, err := d.Orion.GetSaleOrderByID(ctx, args.ID)
			if err != nil {
				return "", err
			}
			return d.checkOrder(ctx, call, partner, order)
		},
	}
}

// checkOrder confirms the order belongs to the asking user before revealing
// it, accepting the user's parent company as owner. On success the quotation
// PDF is sent alongside the data.
func (d *Deps) checkOrder(ctx context.Context, call agent.Call, partner, order odoo.Record) (string, error) {
	if partner == nil {
		d.Log.Warn(ctx, "order lookup without partner", "user", call.UserID)
		return "El partner no existe", nil
	}
	if order == nil {
		return "El pedido no existe", nil
	}

	ownerID, _ := odoo.RelID(order["partner_id"])
	partnerID, _ := odoo.AsInt(partner["id"])
	if ownerID == partnerID {
		d.sendReport(ctx, call.WhatsAppID, order)
		return toJSON(order)
	}

	if !odoo.AsBool(partner["is_company"]) {
		if parentID, ok := odoo.RelID(partner["parent_id"]); ok {
			company, err := d.Orion.GetPartnerByID(ctx, parentID)
			if err != nil {
				return "", err
			}
			if company != nil {
				companyID, _ := odoo.AsInt(company["id"])
				if ownerID == companyID {
					d.sendReport(ctx, call.WhatsAppID, order)
					return toJSON(order)
				}
			}
		}
	}

	d.Log.Warn(ctx, "order does not belong to user", "user", call.UserID, "owner_id", ownerID)
	return "El pedido no le pertenece a usted", nil
}

// sendReport downloads the quotation PDF and schedules its link for the
// user. Failures only lose the attachment, never the answer.
func (d *Deps) sendReport(ctx context.Context, whatsAppID string, order odoo.Record) {
	orderID, ok := odoo.AsInt(order["id"])
	if !ok {
		return
	}
	if _, err := d.Orion.DownloadReport(ctx, orderID); err != nil {
		d.Log.Error(ctx, "quotation pdf failed", "order", orderID, "error", err)
		return
	}
	d.Background.Text(whatsAppID, fmt.Sprintf("Cotización #%d: %s", orderID, d.staticURL(fmt.Sprintf("reports/%d.pdf", orderID))))
}
