package web

import (
	"net/http"
	"strconv"

	"warehouse-admin/internal/core"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Services bundles the core services the HTTP layer exposes.
type Services struct {
	Catalog        core.CatalogService
	Ledger         *core.StockLedger
	PurchaseOrders core.PurchaseOrderService
	SalesOrders    core.SalesOrderService
	Returns        core.PurchaseReturnService
	Transfers      core.TransferService
}

// Handler is the HTTP adapter over the core services.
type Handler struct {
	svc Services
	log *zap.Logger
}

const maxBodyBytes = 1 << 20 // 1 MiB

// NewHandler builds the router with all middleware and routes attached.
func NewHandler(svc Services, log *zap.Logger, allowedOrigins []string) http.Handler {
	h := &Handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(maxBodyBytes))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Post("/", h.createProduct)
			r.Get("/{id}", h.getProduct)
			r.Get("/{id}/movements", h.listMovements)
		})

		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", h.listWarehouses)
			r.Post("/", h.createWarehouse)
			r.Post("/{id}/transfer", h.transferInventory)
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", h.listSuppliers)
			r.Post("/", h.createSupplier)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/stock", h.stockLevels)
			r.Post("/adjustments", h.adjustQuantity)
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Get("/", h.listPurchaseOrders)
			r.Post("/", h.createPurchaseOrder)
			r.Get("/{id}", h.getPurchaseOrder)
			r.Put("/{id}", h.updatePurchaseOrder)
			r.Post("/{id}/submit", h.submitPurchaseOrder)
			r.Post("/{id}/order", h.markPurchaseOrderOrdered)
			r.Post("/{id}/receive", h.receivePurchaseOrder)
			r.Post("/{id}/items/{itemID}/receive", h.receivePurchaseOrderItem)
			r.Post("/{id}/cancel", h.cancelPurchaseOrder)
			r.Get("/{id}/returns", h.listReturns)
			r.Post("/{id}/returns", h.createReturn)
		})

		r.Route("/sales-orders", func(r chi.Router) {
			r.Get("/", h.listSalesOrders)
			r.Post("/", h.createSalesOrder)
			r.Get("/{id}", h.getSalesOrder)
			r.Put("/{id}", h.updateSalesOrder)
			r.Post("/{id}/process", h.processSalesOrder)
			r.Post("/{id}/ship", h.shipSalesOrder)
			r.Post("/{id}/deliver", h.deliverSalesOrder)
			r.Post("/{id}/cancel", h.cancelSalesOrder)
		})
	})

	return r
}

// idParam parses the named chi URL parameter as a positive integer.
func idParam(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
