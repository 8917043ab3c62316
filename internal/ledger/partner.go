package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var vendorColumns = []string{
	"id", "name", "category", "phone", "email", "default_tax_type",
	"payment_terms", "notes", "is_active", "is_favorite", "created_at",
}

var customerColumns = []string{
	"id", "name", "phone", "email", "address", "contact_person",
	"notes", "is_active", "created_at", "updated_at",
}

// ListVendors returns active vendors, favorites first.
func (s *Service) ListVendors(ctx context.Context, companyID int64) ([]Vendor, error) {
	vendors := []Vendor{}
	err := s.view(ctx, companyID, func(st *store) error {
		return st.selectAll(ctx, &vendors, st.sb.Select(vendorColumns...).From("vendors").
			Where(sq.Eq{"is_active": true}).
			OrderBy("is_favorite DESC", "name"))
	})
	if err != nil {
		return nil, fmt.Errorf("listing vendors: %w", err)
	}
	return vendors, nil
}

// CreateVendor records a new vendor.
func (s *Service) CreateVendor(ctx context.Context, companyID int64, v *Vendor) error {
	return s.update(ctx, companyID, func(st *store) error {
		v.CreatedAt = s.now().UTC()
		if v.DefaultTaxType == "" {
			v.DefaultTaxType = TaxIncluded
		}
		id, err := st.insert(ctx, st.sb.Insert("vendors").
			Columns("name", "category", "phone", "email", "default_tax_type",
				"payment_terms", "notes", "is_active", "is_favorite", "created_at").
			Values(v.Name, v.Category, v.Phone, v.Email, v.DefaultTaxType,
				v.PaymentTerms, v.Notes, v.IsActive, v.IsFavorite, v.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting vendor: %w", err)
		}
		v.ID = id
		return nil
	})
}

// UpdateVendor applies a partial update.
func (s *Service) UpdateVendor(ctx context.Context, companyID, id int64, fields VendorUpdate) (*Vendor, error) {
	set := map[string]any{}
	setString(set, "name", fields.Name)
	setString(set, "category", fields.Category)
	setString(set, "phone", fields.Phone)
	setString(set, "email", fields.Email)
	setString(set, "default_tax_type", fields.DefaultTaxType)
	setString(set, "payment_terms", fields.PaymentTerms)
	setString(set, "notes", fields.Notes)
	setValue(set, "is_active", fields.IsActive)
	setValue(set, "is_favorite", fields.IsFavorite)

	var v *Vendor
	err := s.update(ctx, companyID, func(st *store) error {
		if len(set) > 0 {
			if err := st.exec(ctx, st.sb.Update("vendors").SetMap(set).Where(sq.Eq{"id": id})); err != nil {
				if errors.Is(err, ErrNotFound) {
					return err
				}
				return fmt.Errorf("updating vendor: %w", err)
			}
		}
		var err error
		v, err = st.vendor(ctx, id)
		return err
	})
	return v, err
}

// DeleteVendor removes a vendor. Costs keep the vendor name they were booked with.
func (s *Service) DeleteVendor(ctx context.Context, companyID, id int64) error {
	return s.deleteRow(ctx, companyID, "vendors", id)
}

func (st *store) vendor(ctx context.Context, id int64) (*Vendor, error) {
	var v Vendor
	if err := st.get(ctx, &v, st.sb.Select(vendorColumns...).From("vendors").Where(sq.Eq{"id": id})); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying vendor: %w", err)
	}
	return &v, nil
}

// ListCustomers returns active customers by name.
func (s *Service) ListCustomers(ctx context.Context, companyID int64) ([]Customer, error) {
	customers := []Customer{}
	err := s.view(ctx, companyID, func(st *store) error {
		return st.selectAll(ctx, &customers, st.sb.Select(customerColumns...).From("customers").
			Where(sq.Eq{"is_active": true}).
			OrderBy("name"))
	})
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return customers, nil
}

// CreateCustomer records a new customer.
func (s *Service) CreateCustomer(ctx context.Context, companyID int64, c *Customer) error {
	return s.update(ctx, companyID, func(st *store) error {
		now := s.now().UTC()
		c.CreatedAt = now
		c.UpdatedAt = now
		id, err := st.insert(ctx, st.sb.Insert("customers").
			Columns("name", "phone", "email", "address", "contact_person",
				"notes", "is_active", "created_at", "updated_at").
			Values(c.Name, c.Phone, c.Email, c.Address, c.ContactPerson,
				c.Notes, c.IsActive, c.CreatedAt, c.UpdatedAt))
		if err != nil {
			return fmt.Errorf("inserting customer: %w", err)
		}
		c.ID = id
		return nil
	})
}

// UpdateCustomer applies a partial update.
func (s *Service) UpdateCustomer(ctx context.Context, companyID, id int64, fields CustomerUpdate) (*Customer, error) {
	var c *Customer
	err := s.update(ctx, companyID, func(st *store) error {
		set := map[string]any{"updated_at": s.now().UTC()}
		setString(set, "name", fields.Name)
		setString(set, "phone", fields.Phone)
		setString(set, "email", fields.Email)
		setString(set, "address", fields.Address)
		setString(set, "contact_person", fields.ContactPerson)
		setString(set, "notes", fields.Notes)
		setValue(set, "is_active", fields.IsActive)

		if err := st.exec(ctx, st.sb.Update("customers").SetMap(set).Where(sq.Eq{"id": id})); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("updating customer: %w", err)
		}
		var err error
		c, err = st.customer(ctx, id)
		return err
	})
	return c, err
}

// DeleteCustomer removes a customer.
func (s *Service) DeleteCustomer(ctx context.Context, companyID, id int64) error {
	return s.deleteRow(ctx, companyID, "customers", id)
}

func (st *store) customer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	if err := st.get(ctx, &c, st.sb.Select(customerColumns...).From("customers").Where(sq.Eq{"id": id})); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying customer: %w", err)
	}
	return &c, nil
}

func (s *Service) deleteRow(ctx context.Context, companyID int64, table string, id int64) error {
	return s.update(ctx, companyID, func(st *store) error {
		if err := st.exec(ctx, st.sb.Delete(table).Where(sq.Eq{"id": id})); err != nil {
			if errors.Is(err, ErrNotFound) {
				return err
			}
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
		return nil
	})
}
