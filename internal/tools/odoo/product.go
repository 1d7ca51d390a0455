package odootools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/odoo"
)

func newGetProductBySKU(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "get_product_by_sku",
			Description: "Consulta datos de un producto a partir de su sku",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"sku": {"type": "string", "description": "sku del producto a consultar"}},
				"required": ["sku"]
			}`),
			Kind: models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				SKU string `json:"sku"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}
			d.Background.Text(call.WhatsAppID, fmt.Sprintf("Estoy consultando el producto con sku %s 🔍", args.SKU))

			product, err := d.Orion.GetProductBySKU(ctx, args.SKU, false)
			if err != nil {
				return "", err
			}
			if product == nil {
				return fmt.Sprintf("Producto con sku %s no encontrado", args.SKU), nil
			}
			return toJSON(product)
		},
	}
}

func newGetProductByName(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "get_product_by_name",
			Description: "Consulta informacion sobre un producto a partir de su nombre",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"name": {"type": "string", "description": "Nombre del producto a consultar"}},
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
			d.Background.Text(call.WhatsAppID, fmt.Sprintf("Estoy consultando el producto %s 🔍", args.Name))

			products, err := d.Orion.GetProductsByName(ctx, args.Name)
			if err != nil {
				return "", err
			}
			if len(products) == 0 {
				return fmt.Sprintf("Producto %s no encontrado. Indique su sku para una búsqueda más precisa", args.Name), nil
			}
			return toJSON(products)
		},
	}
}

func newGetAllProducts(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "get_all_products",
			Description: "Consulta todos los productos disponibles",
			Kind:        models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			d.Background.Text(call.WhatsAppID, "Estoy revisando el almacén 🔍")

			products, err := d.Orion.GetAllProducts(ctx)
			if err != nil {
				return "", err
			}
			if len(products) == 0 {
				return "Falló la consulta", nil
			}
			return toJSON(products)
		},
	}
}

func newGetProductsByCategoryID(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name: "get_products_by_category_id",
			Description: "Consulta una categoría a partir de su id y devuelve todos los productos " +
				"que pertenezcan a ella",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"category_id": {"type": "integer", "description": "id de la categoría"}},
				"required": ["category_id"]
			}`),
			Kind: models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			var args struct {
				CategoryID int `json:"category_id"`
			}
			if err := decodeArgs(call.Args, &args); err != nil {
				return "", err
			}

			// The notice names the category when the lookup succeeds; the id
			// is good enough otherwise.
			display := strconv.Itoa(args.CategoryID)
			categories, err := d.Orion.GetCategories(ctx, [][]any{{"id", "=", args.CategoryID}})
			if err != nil {
				d.Log.Warn(ctx, "category name lookup failed", "category_id", args.CategoryID, "error", err)
			} else if len(categories) > 0 {
				if name := odoo.AsString(categories[0]["name"]); name != "" {
					display = name
				}
			}
			d.Background.Text(call.WhatsAppID, fmt.Sprintf("Estoy buscando productos de la categoría %s 🔍", display))

			products, err := d.Orion.GetProductsByCategoryID(ctx, args.CategoryID)
			if err != nil {
				return "", err
			}
			if len(products) == 0 {
				return fmt.Sprintf("No se encontraron productos con category_id %s", display), nil
			}
			return toJSON(products)
		},
	}
}

func newGetAllCategories(d *Deps) *tool {
	return &tool{
		def: agent.Definition{
			Name:        "get_all_categories",
			Description: "Consulta todas las categorías de productos disponibles",
			Kind:        models.CallFunction,
		},
		run: func(ctx context.Context, call agent.Call) (string, error) {
			d.Background.Text(call.WhatsAppID, "Estoy revisando las categorías de los productos 🔍")

			categories, err := d.Orion.GetAllCategories(ctx)
			if err != nil {
				return "", err
			}
			if len(categories) == 0 {
				return "Falló la obtención de categorías", nil
			}
			return toJSON(categories)
		},
	}
}
