package purchasing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/rbac"
	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/view"
)

// createRetries bounds retry attempts when two creations race on the same
// monthly order number.
const createRetries = 3

// Handler manages purchase order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions, rbac: rbac}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPurchasingView))
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/new", h.showOrderForm)
		r.Get("/orders/{id}", h.handleOrderDetail)
		r.Get("/orders/{id}/receive", h.showReceiveForm)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPurchasingEdit))
		r.Post("/orders", h.createOrder)
		r.Post("/orders/{id}", h.updateOrder)
		r.Post("/orders/{id}/items", h.addItem)
		r.Post("/orders/{id}/items/{itemID}/delete", h.removeItem)
		r.Post("/orders/{id}/send", h.sendOrder)
		r.Post("/orders/{id}/confirm", h.confirmOrder)
		r.Post("/orders/{id}/ship", h.shipOrder)
		r.Post("/orders/{id}/cancel", h.cancelOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPurchasingReceive))
		r.Post("/orders/{id}/receive", h.receiveOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPurchasingDelete))
		r.Post("/orders/{id}/delete", h.deleteOrder)
	})
}

type formErrors map[string]string

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	var filters ListFilters
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err := ParseStatus(raw); err == nil {
			filters.Status = &status
		}
	}
	if supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64); supplierID > 0 {
		filters.SupplierID = &supplierID
	}
	filters.Search = r.URL.Query().Get("search")
	if from, err := time.Parse("2006-01-02", r.URL.Query().Get("from")); err == nil {
		filters.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", r.URL.Query().Get("to")); err == nil {
		filters.DateTo = &to
	}
	orders, total, err := h.service.ListOrders(r.Context(), limit, offset, filters)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		http.Error(w, "Failed to load purchase orders", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/purchasing/orders_list.html", map[string]any{
		"Orders":  orders,
		"Total":   total,
		"Limit":   limit,
		"Offset":  offset,
		"Filters": filters,
	}, http.StatusOK)
}

func (h *Handler) showOrderForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/purchasing/order_form.html", map[string]any{"Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	order, items, err := h.service.GetOrderWithItems(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("load purchase order", slog.Any("error", err), slog.Int64("id", id))
		http.Error(w, "Failed to load purchase order", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/purchasing/order_detail.html", map[string]any{
		"Order":  order,
		"Items":  items,
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) showReceiveForm(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	order, items, err := h.service.GetOrderWithItems(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("load purchase order", slog.Any("error", err), slog.Int64("id", id))
		http.Error(w, "Failed to load purchase order", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/purchasing/receive_form.html", map[string]any{
		"Order":  order,
		"Items":  items,
		"Errors": formErrors{},
	}, http.StatusOK)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	supplierID, _ := strconv.ParseInt(r.PostFormValue("supplier_id"), 10, 64)
	orderDate, _ := time.Parse("2006-01-02", r.PostFormValue("order_date"))
	input := CreateOrderInput{
		SupplierID:    supplierID,
		OrderDate:     orderDate,
		Currency:      r.PostFormValue("currency"),
		PaymentTerms:  r.PostFormValue("payment_terms"),
		Notes:         r.PostFormValue("notes"),
		InternalNotes: r.PostFormValue("internal_notes"),
	}
	if expected, err := time.Parse("2006-01-02", r.PostFormValue("expected_delivery_date")); err == nil {
		input.ExpectedDeliveryDate = &expected
	}

	var order PurchaseOrder
	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		order, err = h.service.CreateOrder(r.Context(), input, currentUser(r))
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			break
		}
	}
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		h.render(w, r, "pages/purchasing/order_form.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusBadRequest)
		return
	}
	h.redirectWithFlash(w, r, "/purchasing/orders/"+strconv.FormatInt(order.ID, 10), "success", "Purchase order "+order.Number+" created")
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	supplierID, _ := strconv.ParseInt(r.PostFormValue("supplier_id"), 10, 64)
	orderDate, _ := time.Parse("2006-01-02", r.PostFormValue("order_date"))
	rowVersion, _ := strconv.ParseInt(r.PostFormValue("row_version"), 10, 64)
	shipping, _ := decimal.NewFromString(r.PostFormValue("shipping_cost"))
	discount, _ := decimal.NewFromString(r.PostFormValue("discount_amount"))
	input := UpdateOrderInput{
		SupplierID:     supplierID,
		OrderDate:      orderDate,
		Currency:       r.PostFormValue("currency"),
		PaymentTerms:   r.PostFormValue("payment_terms"),
		Notes:          r.PostFormValue("notes"),
		InternalNotes:  r.PostFormValue("internal_notes"),
		ShippingCost:   shipping,
		DiscountAmount: discount,
		RowVersion:     rowVersion,
	}
	if expected, err := time.Parse("2006-01-02", r.PostFormValue("expected_delivery_date")); err == nil {
		input.ExpectedDeliveryDate = &expected
	}
	if err := h.service.UpdateDraftOrder(r.Context(), id, input, currentUser(r)); err != nil {
		h.logger.Error("update purchase order", slog.Any("error", err), slog.Int64("id", id))
		h.renderDetailError(w, r, id, err)
		return
	}
	h.redirectWithFlash(w, r, "/purchasing/orders/"+chi.URLParam(r, "id"), "success", "Purchase order updated")
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	productID, _ := strconv.ParseInt(r.PostFormValue("product_id"), 10, 64)
	variantID, _ := strconv.ParseInt(r.PostFormValue("variant_id"), 10, 64)
	qty, _ := decimal.NewFromString(r.PostFormValue("quantity"))
	price, _ := decimal.NewFromString(r.PostFormValue("unit_price"))
	discount, _ := decimal.NewFromString(r.PostFormValue("discount_percent"))
	_, err := h.service.AddItem(r.Context(), AddItemInput{
		OrderID:         id,
		ProductID:       productID,
		VariantID:       variantID,
		Quantity:        qty,
		UnitPrice:       price,
		DiscountPercent: discount,
		Notes:           r.PostFormValue("notes"),
	}, currentUser(r))
	if err != nil {
		h.logger.Error("add order item", slog.Any("error", err), slog.Int64("order_id", id))
		h.renderDetailError(w, r, id, err)
		return
	}
	h.redirectWithFlash(w, r, "/purchasing/orders/"+chi.URLParam(r, "id"), "success", "Item added")
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	itemID, _ := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err := h.service.RemoveItem(r.Context(), itemID, currentUser(r)); err != nil {
		h.logger.Error("remove order item", slog.Any("error", err), slog.Int64("item_id", itemID))
		h.renderDetailError(w, r, id, err)
		return
	}
	h.redirectWithFlash(w, r, "/purchasing/orders/"+chi.URLParam(r, "id"), "success", "Item removed")
}

func (h *Handler) sendOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Purchase order sent", h.service.Send)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Purchase order confirmed", h.service.Confirm)
}

func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Purchase order marked as shipped", h.service.MarkShipped)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, message string, fn func(ctx context.Context, orderID, actorID int64) error) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := fn(r.Context(), id, currentUser(r)); err != nil {
		h.logger.Error("order transition", slog.Any("error", err), slog.Int64("id", id))
		h.renderDetailError(w, r, id, err)
		return
	}
	h.redirectWithFlash(w, r, "/purchasing/orders/"+chi.URLParam(r, "id"), "success", message)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.service.Cancel(r.Context(), id, r.PostFormValue("reason"), currentUser(r)); err != nil {
		h.logger.Error("cancel purchase order", slog.Any("error", err), slog.Int64("id", id))
		h.renderDetailError(w, r, id, err)
		return
	}
	h.redirectWithFlash(w, r, "/purchasing/orders/"+chi.URLParam(r, "id"), "success", "Purchase order cancelled")
}

func (h *Handler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := ReceiveInput{
		OrderID: id,
		Notes:   r.PostFormValue("notes"),
	}
	if date, err := time.Parse("2006-01-02", r.PostFormValue("receive_date")); err == nil {
		input.ReceiveDate = date
	}
	itemIDs := r.PostForm["item_id"]
	qtys := r.PostForm["received_qty"]
	for i := range itemIDs {
		if i >= len(qtys) {
			break
		}
		itemID, _ := strconv.ParseInt(itemIDs[i], 10, 64)
		qty, err := decimal.NewFromString(qtys[i])
		if itemID == 0 || err != nil {
			continue
		}
		input.Lines = append(input.Lines, ReceiveLine{ItemID: itemID, Quantity: qty})
	}
	if err := h.service.Receive(r.Context(), input, currentUser(r)); err != nil {
		h.logger.Error("receive purchase order", slog.Any("error", err), slog.Int64("id", id))
		h.renderDetailError(w, r, id, err)
		return
	}
	h.redirectWithFlash(w, r, "/purchasing/orders/"+chi.URLParam(r, "id"), "success", "Goods receipt recorded")
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), id, currentUser(r)); err != nil {
		h.logger.Error("delete purchase order", slog.Any("error", err), slog.Int64("id", id))
		h.renderDetailError(w, r, id, err)
		return
	}
	h.redirectWithFlash(w, r, "/purchasing/orders", "success", "Purchase order deleted")
}

// renderDetailError re-renders the order detail with a user safe message, or
// 404s when the order itself is gone.
func (h *Handler) renderDetailError(w http.ResponseWriter, r *http.Request, orderID int64, cause error) {
	order, items, err := h.service.GetOrderWithItems(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load purchase order", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/purchasing/order_detail.html", map[string]any{
		"Order":  order,
		"Items":  items,
		"Errors": formErrors{"general": shared.UserSafeMessage(cause)},
	}, http.StatusBadRequest)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Purchasing", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func currentUser(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
