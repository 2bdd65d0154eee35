// Package repository persists leads and the customers they convert into.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

const (
	StatusLead     = "lead"
	StatusCustomer = "customer"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID                  uuid.UUID
	Email               string
	Phone               string
	FirstName           string
	LastName            string
	AddressLine1        string
	AddressLine2        *string
	City                string
	State               string
	ZipCode             string
	Latitude            *float64
	Longitude           *float64
	ExternalPlaceID     *string
	FormattedAddress    *string
	Qualified           bool
	QualificationSource string
	NetworkType         *string
	PlanID              *string
	RouterAdded         bool
	WiFiSSID            *string
	WiFiPasswordSealed  *string
	WiFiSkipped         bool
	Status              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type CreateLeadParams struct {
	Email               string
	Phone               string
	FirstName           string
	LastName            string
	AddressLine1        string
	AddressLine2        *string
	City                string
	State               string
	ZipCode             string
	Latitude            *float64
	Longitude           *float64
	ExternalPlaceID     *string
	FormattedAddress    *string
	Qualified           bool
	QualificationSource string
	NetworkType         *string
}

// UpdateLeadParams leaves nil fields untouched.
type UpdateLeadParams struct {
	Email               *string
	Phone               *string
	FirstName           *string
	LastName            *string
	AddressLine1        *string
	AddressLine2        *string
	City                *string
	State               *string
	ZipCode             *string
	Latitude            *float64
	Longitude           *float64
	ExternalPlaceID     *string
	FormattedAddress    *string
	Qualified           *bool
	QualificationSource *string
	NetworkType         *string
	PlanID              *string
	RouterAdded         *bool
	WiFiSSID            *string
	WiFiPasswordSealed  *string
	WiFiSkipped         *bool
}

type Customer struct {
	ID               uuid.UUID
	LeadID           uuid.UUID
	PaymentReference string
	PlanID           string
	RouterAdded      bool
	AmountCents      int64
	CreatedAt        time.Time
}

type ConvertLeadParams struct {
	LeadID           uuid.UUID
	PaymentReference string
	PlanID           string
	RouterAdded      bool
	AmountCents      int64
}

const leadColumns = `id, email, phone, first_name, last_name, address_line1, address_line2, city, state, zip_code,
	latitude, longitude, external_place_id, formatted_address, qualified, qualification_source, network_type,
	plan_id, router_added, wifi_ssid, wifi_password_sealed, wifi_skipped, status, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Email, &lead.Phone, &lead.FirstName, &lead.LastName, &lead.AddressLine1, &lead.AddressLine2,
		&lead.City, &lead.State, &lead.ZipCode, &lead.Latitude, &lead.Longitude, &lead.ExternalPlaceID,
		&lead.FormattedAddress, &lead.Qualified, &lead.QualificationSource, &lead.NetworkType, &lead.PlanID,
		&lead.RouterAdded, &lead.WiFiSSID, &lead.WiFiPasswordSealed, &lead.WiFiSkipped, &lead.Status,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			id, email, phone, first_name, last_name, address_line1, address_line2, city, state, zip_code,
			latitude, longitude, external_place_id, formatted_address, qualified, qualification_source, network_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+leadColumns,
		uuid.New(), params.Email, params.Phone, params.FirstName, params.LastName, params.AddressLine1, params.AddressLine2,
		params.City, params.State, params.ZipCode, params.Latitude, params.Longitude, params.ExternalPlaceID,
		params.FormattedAddress, params.Qualified, params.QualificationSource, params.NetworkType,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			email = COALESCE($2, email),
			phone = COALESCE($3, phone),
			first_name = COALESCE($4, first_name),
			last_name = COALESCE($5, last_name),
			address_line1 = COALESCE($6, address_line1),
			address_line2 = COALESCE($7, address_line2),
			city = COALESCE($8, city),
			state = COALESCE($9, state),
			zip_code = COALESCE($10, zip_code),
			latitude = COALESCE($11, latitude),
			longitude = COALESCE($12, longitude),
			external_place_id = COALESCE($13, external_place_id),
			formatted_address = COALESCE($14, formatted_address),
			qualified = COALESCE($15, qualified),
			qualification_source = COALESCE($16, qualification_source),
			network_type = COALESCE($17, network_type),
			plan_id = COALESCE($18, plan_id),
			router_added = COALESCE($19, router_added),
			wifi_ssid = COALESCE($20, wifi_ssid),
			wifi_password_sealed = COALESCE($21, wifi_password_sealed),
			wifi_skipped = COALESCE($22, wifi_skipped),
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, params.Email, params.Phone, params.FirstName, params.LastName, params.AddressLine1, params.AddressLine2,
		params.City, params.State, params.ZipCode, params.Latitude, params.Longitude, params.ExternalPlaceID,
		params.FormattedAddress, params.Qualified, params.QualificationSource, params.NetworkType, params.PlanID,
		params.RouterAdded, params.WiFiSSID, params.WiFiPasswordSealed, params.WiFiSkipped,
	)
	return scanLead(row)
}

// ConvertToCustomer records the purchase and marks the lead as a customer.
// A lead converts at most once; repeating the call returns the existing customer.
func (r *Repository) ConvertToCustomer(ctx context.Context, params ConvertLeadParams) (Customer, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Customer{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM leads WHERE id = $1 FOR UPDATE`, params.LeadID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("lock lead: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO customers (id, lead_id, payment_reference, plan_id, router_added, amount_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lead_id) DO NOTHING
	`, uuid.New(), params.LeadID, params.PaymentReference, params.PlanID, params.RouterAdded, params.AmountCents); err != nil {
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	var customer Customer
	if err := tx.QueryRow(ctx, `
		SELECT id, lead_id, payment_reference, plan_id, router_added, amount_cents, created_at
		FROM customers WHERE lead_id = $1
	`, params.LeadID).Scan(
		&customer.ID, &customer.LeadID, &customer.PaymentReference, &customer.PlanID,
		&customer.RouterAdded, &customer.AmountCents, &customer.CreatedAt,
	); err != nil {
		return Customer{}, fmt.Errorf("load customer: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE leads SET status = $2, plan_id = $3, router_added = $4, updated_at = now()
		WHERE id = $1
	`, params.LeadID, StatusCustomer, customer.PlanID, customer.RouterAdded); err != nil {
		return Customer{}, fmt.Errorf("mark lead converted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Customer{}, err
	}
	return customer, nil
}
