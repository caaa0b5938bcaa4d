package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
	"github.com/EmmyAnieDev/inventory-management-system/internal/core/service"
	"github.com/EmmyAnieDev/inventory-management-system/internal/port"
)

type HTTPHandler struct {
	settlement      *service.SettlementService
	recalc          *service.RecalcService
	store           port.StockStore
	ledger          port.OrderLedger
	metricsHandler  http.Handler
	lowStockDefault int
}

func NewHTTPHandler(
	settlement *service.SettlementService,
	recalc *service.RecalcService,
	store port.StockStore,
	ledger port.OrderLedger,
	metricsHandler http.Handler,
	lowStockDefault int,
) *HTTPHandler {
	return &HTTPHandler{
		settlement:      settlement,
		recalc:          recalc,
		store:           store,
		ledger:          ledger,
		metricsHandler:  metricsHandler,
		lowStockDefault: lowStockDefault,
	}
}

func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	if h.metricsHandler != nil {
		r.Handle("/metrics", h.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", h.CreateOrder)
		r.Get("/orders/{id}", h.GetOrder)
		r.Delete("/orders/{id}", h.CancelOrder)
		r.Post("/products", h.CreateProduct)
		r.Get("/products/{id}", h.GetProduct)
		r.Post("/recalculations", h.TriggerRecalculation)
	})

	return r
}

type lineItemPayload struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price,omitempty"`
}

type createOrderRequest struct {
	Direction string            `json:"direction"`
	LineItems []lineItemPayload `json:"line_items"`
}

type orderResponse struct {
	OrderID   string            `json:"order_id"`
	Direction string            `json:"direction"`
	Status    string            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	LineItems []lineItemPayload `json:"line_items"`
	CreatedAt time.Time         `json:"created_at"`
	SettledAt *time.Time        `json:"settled_at,omitempty"`
}

type createProductRequest struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	BasePrice         float64 `json:"base_price"`
	DiscountRule      string  `json:"discount_rule"`
	DiscountParam     float64 `json:"discount_param"`
	Quantity          int     `json:"quantity"`
	LowStockThreshold int     `json:"low_stock_threshold"`
}

type productResponse struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	BasePrice         float64 `json:"base_price"`
	DiscountRule      string  `json:"discount_rule"`
	DiscountParam     float64 `json:"discount_param"`
	Quantity          int     `json:"quantity"`
	LowStockThreshold int     `json:"low_stock_threshold"`
	EffectivePrice    float64 `json:"effective_price"`
	LowStock          bool    `json:"low_stock"`
}

type recalcRequest struct {
	ProductID string `json:"product_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	items := make([]domain.LineItem, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.settlement.SubmitOrder(r.Context(), domain.OrderDirection(req.Direction), items)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDirection),
			errors.Is(err, service.ErrEmptyOrder),
			errors.Is(err, service.ErrInvalidQuantity):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusAccepted, toOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	err := h.settlement.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		case errors.Is(err, domain.ErrOrderNotCancellable):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "order already claimed or settled"})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.OrderStatusCancelled)})
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ID == "" || req.Name == "" || req.BasePrice <= 0 || req.Quantity < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	threshold := req.LowStockThreshold
	if threshold <= 0 {
		threshold = h.lowStockDefault
	}

	rule := domain.RuleByName(req.DiscountRule)
	now := time.Now()
	product := domain.Product{
		ID:                req.ID,
		Name:              req.Name,
		BasePrice:         req.BasePrice,
		DiscountRule:      req.DiscountRule,
		DiscountParam:     req.DiscountParam,
		Quantity:          req.Quantity,
		LowStockThreshold: threshold,
		EffectivePrice:    rule(req.BasePrice, req.Quantity, req.DiscountParam),
		LowStock:          req.Quantity < threshold,
		DerivedAt:         &now,
		Version:           0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.store.CreateProduct(r.Context(), product); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(&product))
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *HTTPHandler) TriggerRecalculation(w http.ResponseWriter, r *http.Request) {
	var req recalcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.recalc.TriggerRecalculation(r.Context(), req.ProductID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "enqueued"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toOrderResponse(order *domain.Order) orderResponse {
	items := make([]lineItemPayload, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		items = append(items, lineItemPayload{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderResponse{
		OrderID:   order.ID,
		Direction: string(order.Direction),
		Status:    string(order.Status),
		Reason:    order.Reason,
		LineItems: items,
		CreatedAt: order.CreatedAt,
		SettledAt: order.SettledAt,
	}
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:                p.ID,
		Name:              p.Name,
		BasePrice:         p.BasePrice,
		DiscountRule:      p.DiscountRule,
		DiscountParam:     p.DiscountParam,
		Quantity:          p.Quantity,
		LowStockThreshold: p.LowStockThreshold,
		EffectivePrice:    p.EffectivePrice,
		LowStock:          p.LowStock,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
