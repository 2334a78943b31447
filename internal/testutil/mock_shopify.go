// Package testutil provides testing utilities for the Shopify repricer.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// MockResponse defines a canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// PriceUpdate is a recorded PUT /variants/{id}.json call.
type PriceUpdate struct {
	VariantID int64
	Price     string
}

// MockShopify is a configurable mock of the Shopify Admin REST API.
// Products are served by page number from Pages; variant updates are
// recorded in Updates.
type MockShopify struct {
	server *httptest.Server
	mu     sync.RWMutex

	// Pages maps page number to the raw JSON array of products on it.
	pages map[int]string

	// Queued responses consumed before the default behavior, keyed by
	// "GET products" or "PUT variants/{id}".
	queued map[string][]MockResponse

	// CallLimit is sent as X-Shopify-Shop-Api-Call-Limit when set.
	callLimit string

	// Tracking
	RequestCount  int
	ProductPages  []int
	Updates       []PriceUpdate
	LastAuthUser  string
	LastAuthPass  string
	LastUserAgent string
	LastPageLimit int
}

// NewMockShopify creates a mock admin API server.
func NewMockShopify() *MockShopify {
	mock := &MockShopify{
		pages:  make(map[int]string),
		queued: make(map[string][]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the admin API root, usable as client.Config.BaseURL.
func (m *MockShopify) URL() string {
	return m.server.URL + "/admin/api/2024-07"
}

// Close shuts down the mock server.
func (m *MockShopify) Close() {
	m.server.Close()
}

// SetPage sets the products served for a page as a raw JSON array.
func (m *MockShopify) SetPage(page int, productsJSON string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = productsJSON
}

// SetCallLimit sets the call-limit header value sent on every response.
func (m *MockShopify) SetCallLimit(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callLimit = value
}

// Enqueue queues a response for key ("GET products", "PUT variants/42").
func (m *MockShopify) Enqueue(key string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[key] = append(m.queued[key], resp)
}

// GetRequestCount returns the number of requests served.
func (m *MockShopify) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetUpdates returns a copy of the recorded price updates.
func (m *MockShopify) GetUpdates() []PriceUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]PriceUpdate(nil), m.Updates...)
}

// GetProductPages returns the page numbers requested, in order.
func (m *MockShopify) GetProductPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.ProductPages...)
}

// RequestInfo describes the most recent request.
type RequestInfo struct {
	AuthUser  string
	AuthPass  string
	UserAgent string
	PageLimit int
}

// LastRequest returns details of the most recent request.
func (m *MockShopify) LastRequest() RequestInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return RequestInfo{
		AuthUser:  m.LastAuthUser,
		AuthPass:  m.LastAuthPass,
		UserAgent: m.LastUserAgent,
		PageLimit: m.LastPageLimit,
	}
}

func (m *MockShopify) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.LastAuthUser, m.LastAuthPass, _ = r.BasicAuth()
	m.LastUserAgent = r.UserAgent()
	callLimit := m.callLimit
	m.mu.Unlock()

	if callLimit != "" {
		w.Header().Set("X-Shopify-Shop-Api-Call-Limit", callLimit)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	path := strings.TrimPrefix(r.URL.Path, "/admin/api/2024-07/")
	switch {
	case r.Method == http.MethodGet && path == "products.json":
		m.handleProducts(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(path, "variants/") && strings.HasSuffix(path, ".json"):
		m.handleVariantUpdate(w, r, strings.TrimSuffix(strings.TrimPrefix(path, "variants/"), ".json"))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":"Not Found"}`))
	}
}

func (m *MockShopify) handleProducts(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	m.mu.Lock()
	m.ProductPages = append(m.ProductPages, page)
	m.LastPageLimit = limit
	m.mu.Unlock()

	if m.writeQueued(w, "GET products") {
		return
	}

	m.mu.RLock()
	products, ok := m.pages[page]
	m.mu.RUnlock()
	if !ok {
		products = "[]"
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"products":%s}`, products)
}

func (m *MockShopify) handleVariantUpdate(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":"Not Found"}`))
		return
	}

	if m.writeQueued(w, "PUT variants/"+idStr) {
		return
	}

	body, _ := io.ReadAll(r.Body)
	var payload struct {
		Variant struct {
			ID    int64  `json:"id"`
			Price string `json:"price"`
		} `json:"variant"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Variant.ID != id {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":{"variant":["is invalid"]}}`))
		return
	}

	m.mu.Lock()
	m.Updates = append(m.Updates, PriceUpdate{VariantID: id, Price: payload.Variant.Price})
	m.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"variant":{"id":%d,"price":%q}}`, id, payload.Variant.Price)
}

// writeQueued writes and consumes the next queued response for key.
func (m *MockShopify) writeQueued(w http.ResponseWriter, key string) bool {
	m.mu.Lock()
	queue := m.queued[key]
	if len(queue) == 0 {
		m.mu.Unlock()
		return false
	}
	resp := queue[0]
	m.queued[key] = queue[1:]
	m.mu.Unlock()

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
	return true
}

// NewThrottledResponse creates a 429 with a Retry-After header.
func NewThrottledResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":"Exceeded 2 calls per second for api client. Reduce request rates to resume uninterrupted service."}`,
		Headers:    map[string]string{"Retry-After": retryAfter},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":"Internal Server Error"}`,
	}
}

// NewValidationErrorResponse creates a 422 with field errors.
func NewValidationErrorResponse(field, message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnprocessableEntity,
		Body:       fmt.Sprintf(`{"errors":{%q:[%q]}}`, field, message),
	}
}

// ProductJSON renders one product with the given variants JSON objects.
func ProductJSON(id int64, variants ...string) string {
	return fmt.Sprintf(`{"id":%d,"title":"Product %d","variants":[%s]}`, id, id, strings.Join(variants, ","))
}

// VariantJSON renders a variant. cost is raw JSON ("" omits the field).
func VariantJSON(id, productID int64, price, cost string) string {
	if cost == "" {
		return fmt.Sprintf(`{"id":%d,"product_id":%d,"price":%q}`, id, productID, price)
	}
	return fmt.Sprintf(`{"id":%d,"product_id":%d,"price":%q,"cost":%s}`, id, productID, price, cost)
}
