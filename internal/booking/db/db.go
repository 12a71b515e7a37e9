package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/dbrouter"
	"ms-booking/internal/models"
)

var ErrNotFound = errors.New("not found")

// DB is the booking data layer. Every call picks its replica through the
// failover router, so a primary outage degrades to the mirror instead of
// stalling requests.
type DB struct {
	Router *dbrouter.Router
}

func (d *DB) read(ctx context.Context) *bun.DB {
	return d.Router.DB(ctx, dbrouter.OpRead)
}

func (d *DB) write(ctx context.Context) *bun.DB {
	return d.Router.DB(ctx, dbrouter.OpWrite)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ---------------- CUSTOMERS ----------------

// GetOrCreateCustomerByEmail resolves the customer behind a verified login,
// provisioning a profile from the OIDC claims on first contact. fullName may
// be empty; the email local part stands in until the customer fills their
// profile.
func (d *DB) GetOrCreateCustomerByEmail(ctx context.Context, email, fullName string) (*models.Customer, error) {
	if email == "" {
		return nil, ErrNotFound
	}

	var c models.Customer
	err := d.read(ctx).NewSelect().
		Model(&c).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(notFound(err), ErrNotFound) {
		return nil, err
	}

	first, last := splitName(fullName, email)
	c = models.Customer{
		FirstName:    first,
		LastName:     last,
		Email:        email,
		Active:       true,
		RegisteredAt: time.Now(),
	}

	db := d.write(ctx)
	if _, err := db.NewInsert().
		Model(&c).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, err
	}

	// Concurrent first requests race on the insert; the re-read returns the
	// row whichever request won.
	err = db.NewSelect().
		Model(&c).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func splitName(fullName, email string) (string, string) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = email
		if at := strings.Index(email, "@"); at > 0 {
			name = email[:at]
		}
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name, ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (d *DB) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	err := d.read(ctx).NewSelect().
		Model(&c).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ---------------- CATALOG ----------------

func (d *DB) ListServices(ctx context.Context) ([]models.Service, error) {
	var out []models.Service
	err := d.read(ctx).NewSelect().
		Model(&out).
		Where("available = ?", true).
		Order("name").
		Scan(ctx)
	return out, err
}

func (d *DB) ListCombos(ctx context.Context) ([]models.Combo, error) {
	var out []models.Combo
	err := d.read(ctx).NewSelect().
		Model(&out).
		Where("active = ?", true).
		Order("name").
		Scan(ctx)
	return out, err
}

func (d *DB) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	var out []models.Promotion
	err := d.read(ctx).NewSelect().
		Model(&out).
		Where("active = ?", true).
		Order("name").
		Scan(ctx)
	return out, err
}

func (d *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := d.read(ctx).NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (d *DB) GetCombo(ctx context.Context, id int64) (*models.Combo, error) {
	var c models.Combo
	err := d.read(ctx).NewSelect().Model(&c).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (d *DB) GetPromotion(ctx context.Context, id int64) (*models.Promotion, error) {
	var p models.Promotion
	err := d.read(ctx).NewSelect().Model(&p).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ---------------- CART ----------------

// GetOrCreateCart returns the customer's cart, creating it on first use.
func (d *DB) GetOrCreateCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	cart := &models.Cart{CustomerID: customerID}
	db := d.write(ctx)

	_, err := db.NewInsert().
		Model(cart).
		On("CONFLICT (customer_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	err = db.NewSelect().
		Model(cart).
		Relation("Lines").
		Where("customer_id = ?", customerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return cart, nil
}

func (d *DB) GetCartByCustomer(ctx context.Context, customerID int64) (*models.Cart, error) {
	var cart models.Cart
	err := d.read(ctx).NewSelect().
		Model(&cart).
		Relation("Lines").
		Where("customer_id = ?", customerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &cart, nil
}

// FindCartLine locates an existing line for the same item so quantities
// merge instead of duplicating rows.
func (d *DB) FindCartLine(ctx context.Context, cartID, serviceID, comboID, promotionID int64) (*models.CartLine, error) {
	var line models.CartLine
	q := d.read(ctx).NewSelect().
		Model(&line).
		Where("cart_id = ?", cartID)
	switch {
	case serviceID != 0:
		q = q.Where("service_id = ?", serviceID)
	case comboID != 0:
		q = q.Where("combo_id = ?", comboID)
	default:
		q = q.Where("promotion_id = ?", promotionID)
	}
	err := q.Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &line, nil
}

func (d *DB) InsertCartLine(ctx context.Context, line *models.CartLine) error {
	_, err := d.write(ctx).NewInsert().Model(line).Exec(ctx)
	return err
}

func (d *DB) UpdateCartLine(ctx context.Context, line *models.CartLine) error {
	_, err := d.write(ctx).NewUpdate().
		Model(line).
		Column("quantity", "unit_price").
		Where("id = ?", line.ID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteCartLine(ctx context.Context, cartID, lineID int64) error {
	res, err := d.write(ctx).NewDelete().
		Model((*models.CartLine)(nil)).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------- TIME SLOTS ----------------

func (d *DB) CreateSlot(ctx context.Context, slot *models.TimeSlot) error {
	_, err := d.write(ctx).NewInsert().Model(slot).Exec(ctx)
	return err
}

func (d *DB) ListSlots(ctx context.Context) ([]models.TimeSlot, error) {
	var out []models.TimeSlot
	err := d.read(ctx).NewSelect().
		Model(&out).
		Order("date", "start_time").
		Scan(ctx)
	return out, err
}

func (d *DB) GetSlotByDate(ctx context.Context, date string) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	err := d.read(ctx).NewSelect().
		Model(&slot).
		Where("date = ? AND available = ?", date, true).
		Order("start_time").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &slot, nil
}

// AvailableSlots lists slots on a date whose active reservation count is
// still under capacity.
func (d *DB) AvailableSlots(ctx context.Context, date string) ([]models.TimeSlot, error) {
	db := d.read(ctx)

	var slots []models.TimeSlot
	err := db.NewSelect().
		Model(&slots).
		Where("date = ? AND available = ?", date, true).
		Order("start_time").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	free := make([]models.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		count, err := db.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("slot_id = ? AND status IN (?)", slot.ID, bun.In([]string{models.StatusPending, models.StatusApproved})).
			Count(ctx)
		if err != nil {
			return nil, err
		}
		if count < slot.Capacity {
			free = append(free, slot)
		}
	}
	return free, nil
}

// ---------------- RESERVATIONS ----------------

// HasActiveReservationOnDate is the date-level overlap guard used before
// confirmation. Check-then-insert, not serialized by a constraint; two
// concurrent confirmations for the same date can still both pass.
func (d *DB) HasActiveReservationOnDate(ctx context.Context, date string) (bool, error) {
	count, err := d.read(ctx).NewSelect().
		Model((*models.Reservation)(nil)).
		Where("event_date = ? AND status IN (?)", date, bun.In([]string{models.StatusPending, models.StatusApproved})).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateReservationWithLines commits the cart conversion atomically: the
// reservation row, every line snapshot and the cart flush all land in one
// transaction on the write replica, or none of them do. A zero cartID skips
// the flush (direct bookings have no cart).
func (d *DB) CreateReservationWithLines(ctx context.Context, res *models.Reservation, lines []models.ReservationLine, cartID int64) error {
	return d.write(ctx).RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(res).Exec(ctx); err != nil {
			return err
		}

		for i := range lines {
			lines[i].ReservationID = res.ID
			if _, err := tx.NewInsert().Model(&lines[i]).Exec(ctx); err != nil {
				return err
			}
		}

		if cartID != 0 {
			if _, err := tx.NewDelete().
				Model((*models.CartLine)(nil)).
				Where("cart_id = ?", cartID).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var res models.Reservation
	err := d.read(ctx).NewSelect().
		Model(&res).
		Relation("Lines").
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

func (d *DB) GetReservationByCode(ctx context.Context, code string) (*models.Reservation, error) {
	var res models.Reservation
	err := d.read(ctx).NewSelect().
		Model(&res).
		Relation("Lines").
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

func (d *DB) ListReservationsByCustomer(ctx context.Context, customerID int64) ([]models.Reservation, error) {
	var out []models.Reservation
	err := d.read(ctx).NewSelect().
		Model(&out).
		Relation("Lines").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Scan(ctx)
	return out, err
}

func (d *DB) UpdateReservation(ctx context.Context, res *models.Reservation) error {
	_, err := d.write(ctx).NewUpdate().
		Model(res).
		Column("status", "payment_method", "proof_url", "transaction_id", "confirmed_at").
		Where("id = ?", res.ID).
		Exec(ctx)
	return err
}

// TransactionIDInUse reports whether another reservation already claimed the
// given payment transaction id (duplicate-payment guard).
func (d *DB) TransactionIDInUse(ctx context.Context, txnID string, excludeID int64) (bool, error) {
	count, err := d.read(ctx).NewSelect().
		Model((*models.Reservation)(nil)).
		Where("transaction_id = ? AND id != ?", txnID, excludeID).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---------------- BANK ACCOUNTS ----------------

func (d *DB) ListActiveBankAccounts(ctx context.Context) ([]models.BankAccount, error) {
	var out []models.BankAccount
	err := d.read(ctx).NewSelect().
		Model(&out).
		Where("active = ?", true).
		Order("bank_name").
		Scan(ctx)
	return out, err
}
