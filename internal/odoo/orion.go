package odoo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CreatePartnerStatus reports how CreatePartner resolved.
type CreatePartnerStatus string

const (
	// PartnerAlready means the phone already belonged to a partner.
	PartnerAlready CreatePartnerStatus = "ALREADY"
	// PartnerCreated means a new partner was registered.
	PartnerCreated CreatePartnerStatus = "CREATE"
	// PartnerError means the partner could not be created or read back.
	PartnerError CreatePartnerStatus = "ERROR"
)

var partnerFields = []string{
	"id", "name", "company_type", "parent_id", "phone", "email", "website",
	"mobile", "street", "city", "street2", "zip", "country_id", "state_id",
	"vat", "company_id", "customer_rank", "supplier_rank", "credit", "debit",
	"category_id", "lang", "industry_id", "type", "is_company",
}

var productFields = []string{
	"id", "name", "default_code", "barcode", "categ_id", "brand_name",
	"qty_available", "out_of_stock_message", "list_price", "currency_id",
	"compare_list_price", "tax_string", "description_sale", "invoice_policy",
	"allow_out_of_stock_order", "is_published", "type", "active",
}

var saleOrderFields = []string{
	"id", "name", "partner_id", "date_order", "order_line", "state",
	"amount_total", "user_id", "company_id", "access_token", "access_url",
}

// Orion layers the company's query surface over the generic client.
type Orion struct {
	*Client
}

// NewOrion wraps a client with the typed helpers.
func NewOrion(client *Client) *Orion {
	return &Orion{Client: client}
}

// GetPartnerByPhone looks a partner up by exact phone match.
func (o *Orion) GetPartnerByPhone(ctx context.Context, phone string) (Record, error) {
	return o.getPartner(ctx, [][]any{{"phone", "=", phone}})
}

// GetPartnerByEmail looks a partner up by exact email match.
func (o *Orion) GetPartnerByEmail(ctx context.Context, email string) (Record, error) {
	return o.getPartner(ctx, [][]any{{"email", "=", email}})
}

// GetPartnerByID looks a partner up by record ID.
func (o *Orion) GetPartnerByID(ctx context.Context, id int) (Record, error) {
	return o.getPartner(ctx, [][]any{{"id", "=", id}})
}

func (o *Orion) getPartner(ctx context.Context, domain [][]any) (Record, error) {
	partners, err := o.Fetch(ctx, Query{
		Model:  "res.partner",
		Fields: partnerFields,
		Domain: domain,
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(partners) == 0 {
		return nil, nil
	}
	return partners[0], nil
}

// ProductLookup selects one product. Exactly one of SKU, Name or ID should
// be set; WithImage additionally downloads the photo to the static dir.
type ProductLookup struct {
	SKU       string
	Name      string
	ID        int
	WithImage bool
	// VariantFirst searches product.product before product.template.
	VariantFirst bool
}

// GetProduct finds a single product, trying the template model first and
// falling back to variants (or the reverse when VariantFirst is set).
func (o *Orion) GetProduct(ctx context.Context, lookup ProductLookup) (Record, error) {
	fields := productFields
	if lookup.WithImage {
		fields = append(append([]string{}, productFields...), "image_1024")
	}

	domain := [][]any{{"active", "=", true}}
	switch {
	case lookup.SKU != "":
		domain = [][]any{{"default_code", "=", lookup.SKU}}
	case lookup.Name != "":
		domain = [][]any{{"name", "ilike", likePattern(lookup.Name)}}
	case lookup.ID != 0:
		domain = [][]any{{"id", "=", lookup.ID}}
	}

	modelOrder := []string{"product.template", "product.product"}
	if lookup.VariantFirst {
		modelOrder = []string{"product.product", "product.template"}
	}

	for _, model := range modelOrder {
		products, err := o.Fetch(ctx, Query{Model: model, Fields: fields, Domain: domain, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(products) == 0 {
			continue
		}
		product := products[0]
		if lookup.WithImage {
			o.attachImage(ctx, product)
		}
		return product, nil
	}
	return nil, nil
}

// attachImage moves the inline image payload to disk, replacing it with a
// has_image marker so the transcript never carries megabytes of base64.
func (o *Orion) attachImage(ctx context.Context, product Record) {
	image := AsString(product["image_1024"])
	delete(product, "image_1024")
	if image == "" {
		product["has_image"] = false
		return
	}
	product["has_image"] = true
	sku := AsString(product["default_code"])
	go func() {
		if _, err := o.DownloadImage(context.WithoutCancel(ctx), image, sku); err != nil {
			o.log.Error(ctx, "image download failed", "sku", sku, "error", err)
		}
	}()
}

// GetProductBySKU finds one product by its internal reference.
func (o *Orion) GetProductBySKU(ctx context.Context, sku string, withImage bool) (Record, error) {
	return o.GetProduct(ctx, ProductLookup{SKU: sku, WithImage: withImage})
}

// GetProductByID finds one product by record ID.
func (o *Orion) GetProductByID(ctx context.Context, id int, withImage bool) (Record, error) {
	return o.GetProduct(ctx, ProductLookup{ID: id, WithImage: withImage})
}

// GetProductsByName searches templates and variants by fuzzy name and
// merges the results, deduplicated by record ID.
func (o *Orion) GetProductsByName(ctx context.Context, name string) ([]Record, error) {
	domain := [][]any{{"name", "ilike", likePattern(name)}, {"active", "=", true}}

	var all []Record
	for _, model := range []string{"product.template", "product.product"} {
		products, err := o.Fetch(ctx, Query{Model: model, Fields: productFields, Domain: domain, Limit: 100})
		if err != nil {
			return nil, err
		}
		all = append(all, products...)
	}

	seen := make(map[int]bool, len(all))
	unique := all[:0]
	for _, p := range all {
		id, _ := AsInt(p["id"])
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, p)
	}
	return unique, nil
}

// GetAllProducts lists the active catalog with a compact field set.
func (o *Orion) GetAllProducts(ctx context.Context) ([]Record, error) {
	return o.Fetch(ctx, Query{
		Model:  "product.product",
		Fields: []string{"default_code", "name", "list_price", "qty_available", "categ_id", "active"},
		Domain: [][]any{{"active", "=", true}},
		Order:  "id",
	})
}

// GetSaleOrderByName finds one order by fuzzy name and attaches the portal
// link.
func (o *Orion) GetSaleOrderByName(ctx context.Context, name string) (Record, error) {
	return o.getSaleOrder(ctx, [][]any{{"name", "ilike", name}})
}

// GetSaleOrderByID finds one order by record ID and attaches the portal
// link.
func (o *Orion) GetSaleOrderByID(ctx context.Context, id int) (Record, error) {
	return o.getSaleOrder(ctx, [][]any{{"id", "=", id}})
}

func (o *Orion) getSaleOrder(ctx context.Context, domain [][]any) (Record, error) {
	orders, err := o.Fetch(ctx, Query{
		Model:  "sale.order",
		Fields: saleOrderFields,
		Domain: domain,
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	o.attachPortalLink(orders[0])
	return orders[0], nil
}

// attachPortalLink builds the customer-facing URL, including the access
// token when the order has one.
func (o *Orion) attachPortalLink(order Record) {
	link := o.BaseURL() + AsString(order["access_url"])
	if token := AsString(order["access_token"]); token != "" {
		link += "?access_token=" + token
	}
	order["link"] = link
}

// Quotations lists every order of a partner, each with its portal link.
func (o *Orion) Quotations(ctx context.Context, partnerID int) ([]Record, error) {
	orders, err := o.Fetch(ctx, Query{
		Model:  "sale.order",
		Fields: saleOrderFields,
		Domain: [][]any{{"partner_id", "=", partnerID}},
	})
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		o.attachPortalLink(order)
	}
	return orders, nil
}

// VerifyOrder re-reads an order and confirms it belongs to the partner,
// walking up to the parent company when the direct owner differs.
func (o *Orion) VerifyOrder(ctx context.Context, orderName string, partnerID int) (Record, error) {
	order, err := o.GetSaleOrderByName(ctx, orderName)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}
	ownerID, ok := RelID(order["partner_id"])
	if ok && ownerID == partnerID {
		return order, nil
	}

	// The order may be registered to the customer's company.
	partner, err := o.GetPartnerByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if partner != nil {
		if parentID, ok := RelID(partner["parent_id"]); ok && parentID == ownerID {
			return order, nil
		}
	}
	o.log.Warn(ctx, "order ownership check failed", "order", orderName, "partner_id", partnerID)
	return nil, nil
}

// CreateLead registers an opportunity from a conversation summary.
func (o *Orion) CreateLead(ctx context.Context, partner Record, summary, email string) error {
	values := Record{
		"stage_id":    1,
		"type":        "opportunity",
		"name":        fmt.Sprintf("WhatsApp - %s", AsString(partner["name"])),
		"email_from":  email,
		"phone":       AsString(partner["phone"]),
		"description": summary,
	}
	if id, ok := AsInt(partner["id"]); ok {
		values["partner_id"] = id
	}
	result, err := o.Create(ctx, "crm.lead", values)
	if err != nil {
		return err
	}
	o.log.Info(ctx, "lead created", "result", string(result))
	return nil
}

// CreatePartner registers a new partner unless the phone is already taken.
func (o *Orion) CreatePartner(ctx context.Context, name, phone, email string) (Record, CreatePartnerStatus, error) {
	partner, err := o.GetPartnerByPhone(ctx, phone)
	if err != nil {
		return nil, PartnerError, err
	}
	if partner != nil {
		return partner, PartnerAlready, nil
	}

	values := Record{"name": name, "phone": phone}
	if email != "" {
		values["email"] = email
	}
	if _, err := o.Create(ctx, "res.partner", values); err != nil {
		return nil, PartnerError, err
	}

	partner, err = o.GetPartnerByPhone(ctx, phone)
	if err != nil || partner == nil {
		o.log.Error(ctx, "partner not readable after create", "phone", phone, "error", err)
		return nil, PartnerError, err
	}
	return partner, PartnerCreated, nil
}

// OrderLine is one position of a sale order.
type OrderLine struct {
	ProductID int     `json:"product_id"`
	Quantity  float64 `json:"product_uom_qty"`
	PriceUnit float64 `json:"price_unit"`
}

// OrderItem is the tool-facing request for one product and quantity.
type OrderItem struct {
	SKU      string  `json:"default_code"`
	Name     string  `json:"name"`
	Quantity float64 `json:"uom_qty"`
}

// BuildOrderLines resolves requested items against the catalog, skipping
// unknown SKUs and items out of stock.
func (o *Orion) BuildOrderLines(ctx context.Context, items []OrderItem) ([]OrderLine, error) {
	var lines []OrderLine
	for _, item := range items {
		product, err := o.GetProductBySKU(ctx, item.SKU, false)
		if err != nil {
			return nil, err
		}
		if product == nil {
			o.log.Warn(ctx, "ordered product not found", "sku", item.SKU)
			continue
		}
		qty, _ := AsFloat(product["qty_available"])
		if qty < 1 {
			o.log.Warn(ctx, "ordered product out of stock", "sku", item.SKU, "name", item.Name)
			continue
		}
		id, _ := AsInt(product["id"])
		price, _ := AsFloat(product["list_price"])
		lines = append(lines, OrderLine{
			ProductID: id,
			Quantity:  item.Quantity,
			PriceUnit: price * item.Quantity,
		})
	}
	return lines, nil
}

// CreateSaleOrder creates an order with a fresh portal access token and
// returns the ERP response.
func (o *Orion) CreateSaleOrder(ctx context.Context, partnerID int, lines []OrderLine) (int, error) {
	commands := make([][]any, 0, len(lines))
	for _, line := range lines {
		commands = append(commands, []any{0, 0, line})
	}
	values := Record{
		"partner_id":   partnerID,
		"order_line":   commands,
		"company_id":   1,
		"access_token": uuid.NewString(),
	}
	result, err := o.Create(ctx, "sale.order", values)
	if err != nil {
		return 0, err
	}
	id, err := parseCreatedID(result)
	if err != nil {
		return 0, err
	}
	o.log.Info(ctx, "sale order created", "id", id)
	return id, nil
}

// GetCategories queries product categories by any one filter; with none it
// returns the full tree.
func (o *Orion) GetCategories(ctx context.Context, domain [][]any) ([]Record, error) {
	return o.Fetch(ctx, Query{
		Model:  "product.category",
		Fields: []string{"id", "name", "parent_id", "child_id", "product_count"},
		Domain: domain,
	})
}

// GetAllCategories lists every product category.
func (o *Orion) GetAllCategories(ctx context.Context) ([]Record, error) {
	return o.GetCategories(ctx, [][]any{})
}

// categoryChildrenIDs walks the category tree below id, including id
// itself.
func (o *Orion) categoryChildrenIDs(ctx context.Context, id int) ([]int, error) {
	ids := []int{id}
	frontier := []int{id}
	for len(frontier) > 0 {
		parent := frontier[0]
		frontier = frontier[1:]
		children, err := o.GetCategories(ctx, [][]any{{"parent_id", "=", parent}})
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			childID, ok := AsInt(child["id"])
			if !ok {
				continue
			}
			ids = append(ids, childID)
			frontier = append(frontier, childID)
		}
	}
	return ids, nil
}

// GetProductsByCategoryID lists the active products of a category and all
// of its descendants.
func (o *Orion) GetProductsByCategoryID(ctx context.Context, categoryID int) ([]Record, error) {
	ids, err := o.categoryChildrenIDs(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	fields := []string{"id", "default_code", "name", "categ_id", "list_price", "type", "active"}
	var products []Record
	for _, id := range ids {
		batch, err := o.Fetch(ctx, Query{
			Model:  "product.product",
			Fields: fields,
			Domain: [][]any{{"categ_id", "=", id}, {"active", "=", true}},
			Limit:  100,
		})
		if err != nil {
			return nil, err
		}
		products = append(products, batch...)
	}
	return products, nil
}

// GetImagesByProductID downloads every extra image of a product and
// returns the stored file names (without extension).
func (o *Orion) GetImagesByProductID(ctx context.Context, productID int, sku string) ([]string, error) {
	fields := []string{"product_tmpl_id", "name", "product_variant_id", "image_1024"}

	images, err := o.Fetch(ctx, Query{
		Model:  "product.image",
		Fields: fields,
		Domain: [][]any{{"product_tmpl_id", "=", productID}},
	})
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		images, err = o.Fetch(ctx, Query{
			Model:  "product.image",
			Fields: fields,
			Domain: [][]any{{"product_variant_id", "=", productID}},
		})
		if err != nil {
			return nil, err
		}
	}

	var names []string
	for idx, image := range images {
		name := fmt.Sprintf("%s_%d", sku, idx)
		names = append(names, name)
		payload := AsString(image["image_1024"])
		go func() {
			if _, err := o.DownloadImage(context.WithoutCancel(ctx), payload, name); err != nil {
				o.log.Error(ctx, "image download failed", "name", name, "error", err)
			}
		}()
	}
	return names, nil
}

// parseCreatedID extracts the new record ID from a create response, which
// the ERP returns either as a bare number or a one-element array.
func parseCreatedID(raw []byte) (int, error) {
	text := strings.TrimSpace(string(raw))
	text = strings.Trim(text, "[]")
	id, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("odoo: unexpected create response %q", raw)
	}
	return id, nil
}

// likePattern widens a human search phrase for ilike matching.
func likePattern(name string) string {
	return "%" + strings.ReplaceAll(name, " ", "%") + "%"
}
