package admin

import (
	"net/http"

	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
)

// FieldKind selects how a form value is parsed before its rules run.
type FieldKind string

const (
	KindText    FieldKind = "text"
	KindInt     FieldKind = "int"
	KindDecimal FieldKind = "decimal"
	KindBool    FieldKind = "bool"
	KindFile    FieldKind = "file"
)

// FieldSpec is one input of a create, update or row action form. Rules are validator tags
// applied to the parsed value.
type FieldSpec struct {
	Name  string    `json:"name"`
	Kind  FieldKind `json:"kind"`
	Rules string    `json:"rules,omitempty"`
}

// Column is a table column and the row keys the servlets have used for it.
type Column struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Aliases []string `json:"-"`
}

// Listing is how a table fetches its rows.
type Listing struct {
	Method string
	Action string
}

// RowAction is a per-row button beyond edit and delete.
type RowAction struct {
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Fields []FieldSpec `json:"fields,omitempty"`
}

// TableSpec declares one admin resource.
type TableSpec struct {
	Resource  string           `json:"resource"`
	Title     string           `json:"title"`
	Endpoint  servlet.Endpoint `json:"-"`
	IDParam   string           `json:"-"`
	IDKeys    []string         `json:"-"`
	List      Listing          `json:"-"`
	Create    string           `json:"-"`
	Update    string           `json:"-"`
	Delete    string           `json:"-"`
	Multipart bool             `json:"multipart,omitempty"`
	Fields    []FieldSpec      `json:"fields,omitempty"`
	Columns   []Column         `json:"columns"`
	Actions   []RowAction      `json:"actions,omitempty"`
	// ImageColumn, when set, is resolved to a display URL per row.
	ImageColumn string `json:"-"`
}

func (t TableSpec) action(name string) (RowAction, bool) {
	for _, a := range t.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return RowAction{}, false
}

var productFields = []FieldSpec{
	{Name: "categoryId", Kind: KindInt, Rules: "required,gte=1"},
	{Name: "productName", Kind: KindText, Rules: "required,max=200"},
	{Name: "description", Kind: KindText, Rules: "max=4000"},
	{Name: "price", Kind: KindDecimal, Rules: "required,gt=0"},
	{Name: "stock", Kind: KindInt, Rules: "required,gte=0"},
	{Name: "image", Kind: KindFile},
}

var notesField = []FieldSpec{{Name: "adminNotes", Kind: KindText, Rules: "max=1000"}}

// DefaultTables is the admin console's resource set.
func DefaultTables() []TableSpec {
	return []TableSpec{
		{
			Resource:  "products",
			Title:     "Products",
			Endpoint:  servlet.EndpointAdmin,
			IDParam:   "productId",
			IDKeys:    []string{"productId", "product_id", "id"},
			List:      Listing{Method: http.MethodPost, Action: "listProducts"},
			Create:    "addProduct",
			Update:    "updateProduct",
			Delete:    "deleteProduct",
			Multipart: true,
			Fields:    productFields,
			Columns: []Column{
				{Key: "name", Label: "Name", Aliases: []string{"productName", "product_name", "name"}},
				{Key: "categoryId", Label: "Category", Aliases: []string{"categoryId", "category_id", "catId"}},
				{Key: "price", Label: "Price", Aliases: []string{"price", "productPrice"}},
				{Key: "stock", Label: "Stock", Aliases: []string{"stock", "qty"}},
				{Key: "image", Label: "Image", Aliases: []string{"image", "imageUrl", "image_url", "img"}},
			},
			ImageColumn: "image",
		},
		{
			Resource: "users",
			Title:    "Users",
			Endpoint: servlet.EndpointAdmin,
			IDParam:  "userId",
			IDKeys:   []string{"userId", "user_id", "id"},
			List:     Listing{Method: http.MethodGet, Action: "listUsers"},
			Delete:   "deleteUser",
			Columns: []Column{
				{Key: "name", Label: "Name", Aliases: []string{"name", "fullName", "username"}},
				{Key: "email", Label: "Email", Aliases: []string{"email"}},
				{Key: "mobile", Label: "Mobile", Aliases: []string{"mobile", "phone"}},
				{Key: "active", Label: "Active", Aliases: []string{"active", "isActive", "status"}},
			},
			Actions: []RowAction{
				{Name: "toggleStatus", Label: "Toggle status", Fields: []FieldSpec{{Name: "active", Kind: KindBool, Rules: "required"}}},
				{Name: "activateUser", Label: "Activate"},
				{Name: "deactivateUser", Label: "Deactivate", Fields: []FieldSpec{{Name: "adminMessage", Kind: KindText, Rules: "max=1000"}}},
			},
		},
		{
			Resource: "orders",
			Title:    "Orders",
			Endpoint: servlet.EndpointAdmin,
			IDKeys:   []string{"orderId", "order_id", "id"},
			List:     Listing{Method: http.MethodGet, Action: "listOrders"},
			Columns: []Column{
				{Key: "userId", Label: "User", Aliases: []string{"userId", "user_id"}},
				{Key: "date", Label: "Date", Aliases: []string{"orderDate", "order_date", "createdAt"}},
				{Key: "status", Label: "Status", Aliases: []string{"status"}},
				{Key: "total", Label: "Total", Aliases: []string{"totalAmount", "total_amount", "amount"}},
			},
		},
		{
			Resource: "categories",
			Title:    "Categories",
			Endpoint: servlet.EndpointAdmin,
			IDParam:  "categoryId",
			IDKeys:   []string{"categoryId", "category_id", "id"},
			List:     Listing{Method: http.MethodGet, Action: "listCategories"},
			Create:   "addCategory",
			Update:   "updateCategory",
			Fields: []FieldSpec{
				{Name: "categoryName", Kind: KindText, Rules: "required,max=100"},
				{Name: "description", Kind: KindText, Rules: "max=1000"},
			},
			Columns: []Column{
				{Key: "name", Label: "Name", Aliases: []string{"categoryName", "category_name", "name"}},
				{Key: "description", Label: "Description", Aliases: []string{"description", "desc"}},
			},
		},
		{
			Resource: "discounts",
			Title:    "Discounts",
			Endpoint: servlet.EndpointAdmin,
			IDParam:  "discountId",
			IDKeys:   []string{"discountId", "discount_id", "id"},
			List:     Listing{Method: http.MethodGet, Action: "listDiscounts"},
			Create:   "addDiscount",
			Update:   "updateDiscount",
			Delete:   "deleteDiscount",
			Fields: []FieldSpec{
				{Name: "productId", Kind: KindInt, Rules: "required,gte=1"},
				{Name: "discountPercent", Kind: KindDecimal, Rules: "required,gt=0,lte=100"},
			},
			Columns: []Column{
				{Key: "productId", Label: "Product", Aliases: []string{"productId", "product_id"}},
				{Key: "discountPercent", Label: "Discount %", Aliases: []string{"discountPercent", "discount_percent", "discount"}},
			},
		},
		{
			Resource: "unblock-requests",
			Title:    "Unblock requests",
			Endpoint: servlet.EndpointUnblock,
			IDParam:  "requestId",
			IDKeys:   []string{"requestId", "request_id", "id"},
			List:     Listing{Method: http.MethodGet, Action: "listPendingRequests"},
			Columns: []Column{
				{Key: "email", Label: "Email", Aliases: []string{"email", "userEmail"}},
				{Key: "message", Label: "Message", Aliases: []string{"message", "reason"}},
				{Key: "requestedAt", Label: "Requested", Aliases: []string{"requestedAt", "requestDate", "createdAt"}},
			},
			Actions: []RowAction{
				{Name: "approveRequest", Label: "Approve", Fields: notesField},
				{Name: "rejectRequest", Label: "Reject", Fields: notesField},
			},
		},
	}
}
