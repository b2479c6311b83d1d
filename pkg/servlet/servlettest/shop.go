package servlettest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
)

// Product is a catalog row served by Shop.
type Product struct {
	ID         string
	Name       string
	Price      float64
	Stock      int
	Discount   float64
	Rating     float64
	CategoryID string
	Image      string
}

type line struct {
	productID string
	qty       int
}

// Shop is a stateful single-user storefront behind CartServlet, WishlistServlet and ProductServlet.
type Shop struct {
	mu       sync.Mutex
	products map[string]*Product
	order    []string
	cart     []line
	wishlist []string
	failures map[string]int
}

// NewShop installs the shop handlers on f.
func NewShop(f *Fake) *Shop {
	s := &Shop{products: map[string]*Product{}, failures: map[string]int{}}
	f.Handle(servlet.EndpointCart, s.cartHandler)
	f.Handle(servlet.EndpointWishlist, s.wishlistHandler)
	f.Handle(servlet.EndpointProduct, s.productHandler)
	return s
}

func (s *Shop) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	cp := p
	s.products[p.ID] = &cp
}

// FailNext makes the next call with this endpoint and action fail with a 502.
func (s *Shop) FailNext(endpoint servlet.Endpoint, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[string(endpoint)+":"+action]++
}

func (s *Shop) CartQty(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.cart {
		if l.productID == productID {
			return l.qty
		}
	}
	return 0
}

func (s *Shop) InWishlist(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexWishlist(productID) >= 0
}

// AddToWishlist seeds the wishlist without a servlet call.
func (s *Shop) AddToWishlist(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexWishlist(productID) < 0 {
		s.wishlist = append(s.wishlist, productID)
	}
}

// AddToCartDirect puts qty units in the cart without a servlet call, as a reorder would.
func (s *Shop) AddToCartDirect(productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexCart(productID); idx >= 0 {
		s.cart[idx].qty += qty
		return
	}
	s.cart = append(s.cart, line{productID: productID, qty: qty})
}

func (s *Shop) shouldFail(endpoint servlet.Endpoint, action string) bool {
	key := string(endpoint) + ":" + action
	if s.failures[key] > 0 {
		s.failures[key]--
		return true
	}
	return false
}

func (s *Shop) cartHandler(w http.ResponseWriter, r *http.Request) {
	action := Param(r, "action")
	s.mu.Lock()
	if s.shouldFail(servlet.EndpointCart, action) {
		s.mu.Unlock()
		Fail(w, r)
		return
	}
	defer s.mu.Unlock()

	if r.Method == http.MethodGet {
		JSON(w, http.StatusOK, s.cartRows())
		return
	}

	productID := Param(r, "productId")
	qty, _ := strconv.Atoi(Param(r, "qty"))
	switch action {
	case "add":
		p, ok := s.products[productID]
		if !ok {
			JSON(w, http.StatusOK, map[string]any{"status": "error", "message": "Product not found"})
			return
		}
		if qty < 1 {
			qty = 1
		}
		idx := s.indexCart(productID)
		current := 0
		if idx >= 0 {
			current = s.cart[idx].qty
		}
		if current+qty > p.Stock {
			JSON(w, http.StatusOK, map[string]any{"status": "fail", "message": "Insufficient stock"})
			return
		}
		if idx >= 0 {
			s.cart[idx].qty += qty
		} else {
			s.cart = append(s.cart, line{productID: productID, qty: qty})
		}
	case "update":
		idx := s.indexCart(productID)
		p, ok := s.products[productID]
		if idx < 0 || !ok {
			JSON(w, http.StatusOK, map[string]any{"status": "fail", "message": "Item not in cart"})
			return
		}
		if qty < 1 || qty > p.Stock {
			JSON(w, http.StatusOK, map[string]any{"status": "fail", "message": "Insufficient stock"})
			return
		}
		s.cart[idx].qty = qty
	case "remove":
		idx := s.indexCart(productID)
		if idx < 0 {
			JSON(w, http.StatusOK, map[string]any{"status": "fail", "message": "Item not in cart"})
			return
		}
		s.cart = append(s.cart[:idx], s.cart[idx+1:]...)
	case "clear":
		s.cart = nil
	default:
		JSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "Unknown action"})
		return
	}

	stocks := map[string]int{}
	for _, l := range s.cart {
		stocks[l.productID] = s.products[l.productID].Stock - l.qty
	}
	JSON(w, http.StatusOK, map[string]any{"status": "ok", "items": s.cartRows(), "updatedStocks": stocks})
}

func (s *Shop) cartRows() []map[string]any {
	rows := make([]map[string]any, 0, len(s.cart))
	for _, l := range s.cart {
		p := s.products[l.productID]
		rows = append(rows, map[string]any{
			"productId": p.ID,
			"name":      p.Name,
			"price":     p.Price,
			"image":     p.Image,
			"qty":       l.qty,
		})
	}
	return rows
}

func (s *Shop) wishlistHandler(w http.ResponseWriter, r *http.Request) {
	action := Param(r, "action")
	s.mu.Lock()
	if s.shouldFail(servlet.EndpointWishlist, action) {
		s.mu.Unlock()
		Fail(w, r)
		return
	}
	defer s.mu.Unlock()

	if r.Method == http.MethodGet {
		q := r.URL.Query()
		switch {
		case q.Get("count") == "1":
			JSON(w, http.StatusOK, map[string]any{"count": len(s.wishlist)})
		case q.Get("check") != "":
			JSON(w, http.StatusOK, map[string]any{"inWishlist": s.indexWishlist(q.Get("check")) >= 0})
		default:
			rows := make([]map[string]any, 0, len(s.wishlist))
			for _, id := range s.wishlist {
				rows = append(rows, s.productRow(s.products[id]))
			}
			JSON(w, http.StatusOK, rows)
		}
		return
	}

	productID := Param(r, "productId")
	switch action {
	case "add":
		if s.indexWishlist(productID) >= 0 {
			JSON(w, http.StatusOK, map[string]any{"status": "failed", "message": "Already in wishlist", "count": len(s.wishlist)})
			return
		}
		s.wishlist = append(s.wishlist, productID)
		JSON(w, http.StatusOK, map[string]any{"status": "ok", "added": true, "count": len(s.wishlist)})
	case "remove":
		idx := s.indexWishlist(productID)
		if idx < 0 {
			JSON(w, http.StatusOK, map[string]any{"status": "failed", "message": "Not in wishlist", "count": len(s.wishlist)})
			return
		}
		s.wishlist = append(s.wishlist[:idx], s.wishlist[idx+1:]...)
		JSON(w, http.StatusOK, map[string]any{"status": "ok", "removed": true, "count": len(s.wishlist)})
	case "clearAll":
		s.wishlist = nil
		JSON(w, http.StatusOK, map[string]any{"status": "ok", "count": 0})
	default:
		JSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "Unknown action"})
	}
}

func (s *Shop) productHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := r.URL.Query()
	if id := q.Get("productId"); id != "" {
		p, ok := s.products[id]
		if !ok {
			JSON(w, http.StatusOK, map[string]any{})
			return
		}
		JSON(w, http.StatusOK, s.productRow(p))
		return
	}
	matched := make([]*Product, 0, len(s.order))
	for _, id := range s.order {
		p := s.products[id]
		if c := q.Get("category_id"); c != "" && p.CategoryID != c {
			continue
		}
		if term := strings.ToLower(q.Get("query")); term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
			continue
		}
		matched = append(matched, p)
	}
	switch q.Get("filter") {
	case "low-high":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price < matched[j].Price })
	case "high-low":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price > matched[j].Price })
	}
	rows := make([]map[string]any, 0, len(matched))
	for _, p := range matched {
		rows = append(rows, s.productRow(p))
	}
	JSON(w, http.StatusOK, rows)
}

func (s *Shop) productRow(p *Product) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return map[string]any{
		"productId":   p.ID,
		"productName": p.Name,
		"price":       p.Price,
		"stock":       p.Stock,
		"discount":    p.Discount,
		"rating":      p.Rating,
		"category_id": p.CategoryID,
		"image":       p.Image,
	}
}

func (s *Shop) indexCart(productID string) int {
	for i, l := range s.cart {
		if l.productID == productID {
			return i
		}
	}
	return -1
}

func (s *Shop) indexWishlist(productID string) int {
	for i, id := range s.wishlist {
		if id == productID {
			return i
		}
	}
	return -1
}
