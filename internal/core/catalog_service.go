package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Supplier is a purchase order counterparty.
type Supplier struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Customer is a sales order counterparty.
type Customer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ProductInput holds the fields for creating a product. Quantity is not an
// input: it is owned by the ledger.
type ProductInput struct {
	SKU          string
	Name         string
	Price        decimal.Decimal
	ReorderPoint decimal.Decimal
}

// WarehouseInput holds the fields for creating a warehouse.
type WarehouseInput struct {
	Code     string
	Name     string
	Capacity decimal.Decimal
	OwnerID  *int
}

// CatalogService manages the master data the workflows reference.
type CatalogService interface {
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	GetProduct(ctx context.Context, productID int) (*Product, error)
	GetProducts(ctx context.Context) ([]Product, error)

	CreateWarehouse(ctx context.Context, input WarehouseInput) (*Warehouse, error)
	GetWarehouses(ctx context.Context) ([]Warehouse, error)

	CreateSupplier(ctx context.Context, name string) (*Supplier, error)
	GetSuppliers(ctx context.Context) ([]Supplier, error)

	CreateCustomer(ctx context.Context, name string) (*Customer, error)
	GetCustomers(ctx context.Context) ([]Customer, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if input.SKU == "" {
		return nil, validationErrorf("product sku is required")
	}
	if input.Name == "" {
		return nil, validationErrorf("product name is required")
	}
	if input.Price.IsNegative() {
		return nil, validationErrorf("product price cannot be negative, got %s", input.Price)
	}
	if input.ReorderPoint.IsNegative() {
		return nil, validationErrorf("reorder point cannot be negative, got %s", input.ReorderPoint)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM products WHERE sku = $1)", input.SKU,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check sku: %w", err)
	}
	if exists {
		return nil, validationErrorf("product with sku %q already exists", input.SKU)
	}

	p := &Product{SKU: input.SKU, Name: input.Name, Price: input.Price,
		ReorderPoint: input.ReorderPoint, Quantity: decimal.Zero}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, price, reorder_point, quantity)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id, created_at
	`, input.SKU, input.Name, input.Price, input.ReorderPoint).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID int) (*Product, error) {
	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, sku, name, price, reorder_point, quantity, created_at
		FROM products WHERE id = $1
	`, productID).Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.ReorderPoint, &p.Quantity, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "product", ID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch product %d: %w", productID, err)
	}
	return p, nil
}

func (s *catalogService) GetProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sku, name, price, reorder_point, quantity, created_at
		FROM products ORDER BY sku
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.ReorderPoint, &p.Quantity, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *catalogService) CreateWarehouse(ctx context.Context, input WarehouseInput) (*Warehouse, error) {
	if input.Code == "" {
		return nil, validationErrorf("warehouse code is required")
	}
	if input.Name == "" {
		return nil, validationErrorf("warehouse name is required")
	}
	if input.Capacity.IsNegative() {
		return nil, validationErrorf("warehouse capacity cannot be negative, got %s", input.Capacity)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM warehouses WHERE code = $1)", input.Code,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check warehouse code: %w", err)
	}
	if exists {
		return nil, validationErrorf("warehouse with code %q already exists", input.Code)
	}

	// One warehouse per owner.
	if input.OwnerID != nil {
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM warehouses WHERE owner_id = $1)", *input.OwnerID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check warehouse owner: %w", err)
		}
		if exists {
			return nil, validationErrorf("owner %d already has a warehouse", *input.OwnerID)
		}
	}

	w := &Warehouse{Code: input.Code, Name: input.Name, Capacity: input.Capacity, OwnerID: input.OwnerID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO warehouses (code, name, capacity, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, input.Code, input.Name, input.Capacity, input.OwnerID).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert warehouse: %w", err)
	}
	return w, nil
}

func (s *catalogService) GetWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, capacity, owner_id, created_at
		FROM warehouses ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.Capacity, &w.OwnerID, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

func (s *catalogService) CreateSupplier(ctx context.Context, name string) (*Supplier, error) {
	if name == "" {
		return nil, validationErrorf("supplier name is required")
	}
	sup := &Supplier{Name: name}
	if err := s.pool.QueryRow(ctx,
		"INSERT INTO suppliers (name) VALUES ($1) RETURNING id", name,
	).Scan(&sup.ID); err != nil {
		return nil, fmt.Errorf("insert supplier: %w", err)
	}
	return sup, nil
}

func (s *catalogService) GetSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name FROM suppliers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *catalogService) CreateCustomer(ctx context.Context, name string) (*Customer, error) {
	if name == "" {
		return nil, validationErrorf("customer name is required")
	}
	c := &Customer{Name: name}
	if err := s.pool.QueryRow(ctx,
		"INSERT INTO customers (name) VALUES ($1) RETURNING id", name,
	).Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

func (s *catalogService) GetCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name FROM customers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
