package odootools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/odoo"
)

var skuSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"sku": {"type": "string", "description": "sku del producto"}},
	"required": ["sku"]
}`)

func newSendMainProductImage(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "send_main_product_image",
			Description: "Envía la imagen principal de un producto a partir de su sku",
			Parameters:  skuSchema,
			Kind:        models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				SKU string `json:"sku"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}

			product, err := d.Orion.GetProductBySKU(ctx, args.SKU, true)
			if err != nil {
				return "", err
			}
			if product == nil {
				return fmt.Sprintf("Producto con sku %s no encontrado", args.SKU), nil
			}
			if !odoo.AsBool(product["has_image"]) {
				return "El producto no tiene imagen disponible", nil
			}

			name := odoo.AsString(product["name"])
			d.Background.Image(call.WhatsAppID, d.staticURL("images/"+args.SKU+".jpg"), name)
			return fmt.Sprintf("Imagen principal del producto %s esta siendo enviada", name), nil
		},
	}
}

func newSendAllProductImages(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "send_all_product_images",
			Description: "Envía todas las imágenes de un producto a partir de su sku",
			Parameters:  skuSchema,
			Kind:        models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				SKU string `json:"sku"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}

			product, err := d.Orion.GetProductBySKU(ctx, args.SKU, true)
			if err != nil {
				return "", err
			}
			if product == nil {
				return fmt.Sprintf("Producto con sku %s no encontrado", args.SKU), nil
			}

			name := odoo.AsString(product["name"])
			if odoo.AsBool(product["has_image"]) {
				d.Background.Image(call.WhatsAppID, d.staticURL("images/"+args.SKU+".jpg"), name)
			}

			productID, _ := odoo.AsInt(product["id"])
			extra, err := d.Orion.GetImagesByProductID(ctx, productID, args.SKU)
			if err != nil {
				return "", err
			}
			for _, imageName := range extra {
				d.Background.Image(call.WhatsAppID, d.staticURL("images/"+imageName+".jpg"), name)
			}

			total := 1 + len(extra)
			return fmt.Sprintf("Se estan enviando %d imágenes del producto %s", total, name), nil
		},
	}
}
