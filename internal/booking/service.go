package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ms-booking/internal/booking/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

var (
	ErrMissingFields        = errors.New("event date and address are required")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrNoSlot               = errors.New("no open slot for the requested date")
	ErrDateTaken            = errors.New("date already reserved by another customer")
	ErrItemNotFound         = errors.New("catalog item not found")
	ErrInvalidItemType      = errors.New("item type must be service, combo or promotion")
	ErrInvalidState         = errors.New("reservation is not in a valid state for this transition")
	ErrAlreadyApproved      = errors.New("reservation already approved")
	ErrMissingTransactionID = errors.New("transaction id is required for approval")
	ErrDuplicateTransaction = errors.New("transaction id already used by another reservation")
	ErrInvalidPayment       = errors.New("payment method must be transfer, card or cash")
	ErrNotOwner             = errors.New("reservation does not belong to this customer")
)

// Caller identifies the authenticated customer behind a request, as the
// OIDC provider describes them.
type Caller struct {
	Email string
	Name  string
}

// DBLayer is the data-layer seam the service talks through.
type DBLayer interface {
	GetOrCreateCustomerByEmail(ctx context.Context, email, fullName string) (*models.Customer, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)

	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetCombo(ctx context.Context, id int64) (*models.Combo, error)
	GetPromotion(ctx context.Context, id int64) (*models.Promotion, error)

	GetOrCreateCart(ctx context.Context, customerID int64) (*models.Cart, error)
	GetCartByCustomer(ctx context.Context, customerID int64) (*models.Cart, error)
	FindCartLine(ctx context.Context, cartID, serviceID, comboID, promotionID int64) (*models.CartLine, error)
	InsertCartLine(ctx context.Context, line *models.CartLine) error
	UpdateCartLine(ctx context.Context, line *models.CartLine) error
	DeleteCartLine(ctx context.Context, cartID, lineID int64) error

	GetSlotByDate(ctx context.Context, date string) (*models.TimeSlot, error)
	HasActiveReservationOnDate(ctx context.Context, date string) (bool, error)
	CreateReservationWithLines(ctx context.Context, res *models.Reservation, lines []models.ReservationLine, cartID int64) error
	GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error)
	ListReservationsByCustomer(ctx context.Context, customerID int64) ([]models.Reservation, error)
	UpdateReservation(ctx context.Context, res *models.Reservation) error
	TransactionIDInUse(ctx context.Context, txnID string, excludeID int64) (bool, error)

	ListActiveBankAccounts(ctx context.Context) ([]models.BankAccount, error)
}

// Publisher queues notification events for the mailer worker. Publishing is
// best-effort: a broker hiccup never fails the booking that triggered it.
type Publisher interface {
	PublishNotification(ev models.NotificationEvent) error
}

// PaymentGateway creates card payment intents.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount float64, reservationCode string) (id, clientSecret string, err error)
}

type Service struct {
	DB      DBLayer
	Events  Publisher
	Gateway PaymentGateway
	Logger  *logger.Logger
	TaxRate float64
	Now     func() time.Time
}

func NewService(dbl DBLayer, events Publisher, gateway PaymentGateway, log *logger.Logger, taxRate float64) *Service {
	return &Service{
		DB:      dbl,
		Events:  events,
		Gateway: gateway,
		Logger:  log,
		TaxRate: taxRate,
		Now:     time.Now,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// customer resolves the caller's profile, provisioning it on first contact.
func (s *Service) customer(ctx context.Context, caller Caller) (*models.Customer, error) {
	customer, err := s.DB.GetOrCreateCustomerByEmail(ctx, caller.Email, caller.Name)
	if err != nil {
		return nil, fmt.Errorf("customer lookup failed: %w", err)
	}
	return customer, nil
}

// ---------------- CART ----------------

// AddToCart puts one catalog item in the customer's cart, capturing the
// current price. Re-adding the same item bumps the quantity.
func (s *Service) AddToCart(ctx context.Context, caller Caller, itemType string, itemID int64, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		quantity = 1
	}

	customer, err := s.customer(ctx, caller)
	if err != nil {
		return nil, err
	}

	var (
		serviceID, comboID, promotionID int64
		name                            string
		price                           float64
	)
	switch itemType {
	case "service":
		svc, err := s.DB.GetService(ctx, itemID)
		if err != nil {
			return nil, ErrItemNotFound
		}
		serviceID, name, price = svc.ID, svc.Name, svc.BasePrice
	case "combo":
		combo, err := s.DB.GetCombo(ctx, itemID)
		if err != nil {
			return nil, ErrItemNotFound
		}
		comboID, name, price = combo.ID, combo.Name, combo.Price
	case "promotion":
		promo, err := s.DB.GetPromotion(ctx, itemID)
		if err != nil {
			return nil, ErrItemNotFound
		}
		promotionID, name, price = promo.ID, promo.Name, promo.Price
	default:
		return nil, ErrInvalidItemType
	}

	cart, err := s.DB.GetOrCreateCart(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("cart lookup failed: %w", err)
	}

	line, err := s.DB.FindCartLine(ctx, cart.ID, serviceID, comboID, promotionID)
	switch {
	case err == nil:
		line.Quantity += quantity
		line.UnitPrice = price
		if err := s.DB.UpdateCartLine(ctx, line); err != nil {
			return nil, fmt.Errorf("failed to update cart line: %w", err)
		}
	case errors.Is(err, db.ErrNotFound):
		line = &models.CartLine{
			CartID:      cart.ID,
			ServiceID:   serviceID,
			ComboID:     comboID,
			PromotionID: promotionID,
			ItemName:    name,
			Quantity:    quantity,
			UnitPrice:   price,
		}
		if err := s.DB.InsertCartLine(ctx, line); err != nil {
			return nil, fmt.Errorf("failed to add cart line: %w", err)
		}
	default:
		return nil, err
	}

	s.Logger.LogBooking("CART_ADD", name, fmt.Sprintf("customer=%d qty=%d price=%.2f", customer.ID, line.Quantity, price))
	return line, nil
}

func (s *Service) ViewCart(ctx context.Context, caller Caller) (*models.Cart, error) {
	customer, err := s.customer(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.DB.GetOrCreateCart(ctx, customer.ID)
}

func (s *Service) RemoveCartLine(ctx context.Context, caller Caller, lineID int64) error {
	customer, err := s.customer(ctx, caller)
	if err != nil {
		return err
	}
	cart, err := s.DB.GetCartByCustomer(ctx, customer.ID)
	if err != nil {
		return err
	}
	return s.DB.DeleteCartLine(ctx, cart.ID, lineID)
}

// ---------------- CONFIRMATION ----------------

// ConfirmCart atomically turns the customer's cart into a PENDING
// reservation: totals computed, one immutable line per cart line, cart
// emptied. Everything commits in one transaction or not at all; the
// notification goes out only after the commit, built from the in-memory
// snapshot so a lagging mirror can never serve it stale data.
func (s *Service) ConfirmCart(ctx context.Context, caller Caller, eventDate, address string) (*models.Reservation, error) {
	if eventDate == "" || address == "" {
		return nil, ErrMissingFields
	}

	customer, err := s.customer(ctx, caller)
	if err != nil {
		return nil, err
	}

	cart, err := s.DB.GetCartByCustomer(ctx, customer.ID)
	if err != nil || len(cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	slot, err := s.DB.GetSlotByDate(ctx, eventDate)
	if err != nil {
		return nil, ErrNoSlot
	}

	taken, err := s.DB.HasActiveReservationOnDate(ctx, eventDate)
	if err != nil {
		return nil, fmt.Errorf("overlap check failed: %w", err)
	}
	if taken {
		return nil, ErrDateTaken
	}

	var subtotal float64
	for _, l := range cart.Lines {
		subtotal += l.Subtotal()
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal * s.TaxRate)
	total := round2(subtotal + tax)

	res := &models.Reservation{
		CustomerID: customer.ID,
		SlotID:     slot.ID,
		Code:       utils.GenerateReservationCode(),
		EventDate:  eventDate,
		StartTime:  slot.StartTime,
		Address:    address,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      total,
		Status:     models.StatusPending,
		CreatedAt:  s.Now(),
	}

	lines := make([]models.ReservationLine, 0, len(cart.Lines))
	snapshots := make([]models.LineSnapshot, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, models.ReservationLine{
			Type:        l.Type(),
			ServiceID:   l.ServiceID,
			ComboID:     l.ComboID,
			PromotionID: l.PromotionID,
			ItemName:    l.ItemName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    round2(l.Subtotal()),
		})
		snapshots = append(snapshots, models.LineSnapshot{
			Name:      l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  round2(l.Subtotal()),
		})
	}

	if err := s.DB.CreateReservationWithLines(ctx, res, lines, cart.ID); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	s.Logger.LogBooking("CONFIRMED", res.Code, fmt.Sprintf("customer=%d date=%s total=%.2f", customer.ID, eventDate, total))

	s.publish(models.NewNotificationEvent(models.NotifyReservationReceived, res, customer, snapshots))

	return res, nil
}

// DirectBook creates a reservation for a single catalog item without going
// through the cart.
func (s *Service) DirectBook(ctx context.Context, caller Caller, eventDate, address, itemType string, itemID int64, quantity int) (*models.Reservation, error) {
	if eventDate == "" || address == "" {
		return nil, ErrMissingFields
	}
	if quantity < 1 {
		quantity = 1
	}

	customer, err := s.customer(ctx, caller)
	if err != nil {
		return nil, err
	}

	slot, err := s.DB.GetSlotByDate(ctx, eventDate)
	if err != nil {
		return nil, ErrNoSlot
	}

	taken, err := s.DB.HasActiveReservationOnDate(ctx, eventDate)
	if err != nil {
		return nil, fmt.Errorf("overlap check failed: %w", err)
	}
	if taken {
		return nil, ErrDateTaken
	}

	line := models.ReservationLine{Quantity: quantity}
	switch itemType {
	case "service":
		svc, err := s.DB.GetService(ctx, itemID)
		if err != nil {
			return nil, ErrItemNotFound
		}
		line.Type, line.ServiceID, line.ItemName, line.UnitPrice = models.ItemService, svc.ID, svc.Name, svc.BasePrice
	case "combo":
		combo, err := s.DB.GetCombo(ctx, itemID)
		if err != nil {
			return nil, ErrItemNotFound
		}
		line.Type, line.ComboID, line.ItemName, line.UnitPrice = models.ItemCombo, combo.ID, combo.Name, combo.Price
	case "promotion":
		promo, err := s.DB.GetPromotion(ctx, itemID)
		if err != nil {
			return nil, ErrItemNotFound
		}
		line.Type, line.PromotionID, line.ItemName, line.UnitPrice = models.ItemPromotion, promo.ID, promo.Name, promo.Price
	default:
		return nil, ErrInvalidItemType
	}
	line.Subtotal = round2(line.UnitPrice * float64(quantity))

	subtotal := line.Subtotal
	tax := round2(subtotal * s.TaxRate)
	res := &models.Reservation{
		CustomerID: customer.ID,
		SlotID:     slot.ID,
		Code:       utils.GenerateReservationCode(),
		EventDate:  eventDate,
		StartTime:  slot.StartTime,
		Address:    address,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      round2(subtotal + tax),
		Status:     models.StatusPending,
		CreatedAt:  s.Now(),
	}

	if err := s.DB.CreateReservationWithLines(ctx, res, []models.ReservationLine{line}, 0); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	s.Logger.LogBooking("DIRECT_BOOK", res.Code, fmt.Sprintf("customer=%d date=%s", customer.ID, eventDate))

	snapshots := []models.LineSnapshot{{Name: line.ItemName, Quantity: line.Quantity, UnitPrice: line.UnitPrice, Subtotal: line.Subtotal}}
	s.publish(models.NewNotificationEvent(models.NotifyReservationReceived, res, customer, snapshots))

	return res, nil
}

// ---------------- CHECKOUT ----------------

// CheckoutResult carries whatever the chosen payment method needs next.
type CheckoutResult struct {
	Reservation  *models.Reservation  `json:"reservation"`
	BankAccounts []models.BankAccount `json:"bank_accounts,omitempty"`
	ClientSecret string               `json:"client_secret,omitempty"`
}

// Checkout records the customer's payment method on a pending reservation.
// Transfer returns the bank accounts to pay into; card opens a payment
// intent with the gateway; cash clears any previous payment data.
func (s *Service) Checkout(ctx context.Context, caller Caller, reservationID int64, method, proofURL, transactionID string) (*CheckoutResult, error) {
	customer, err := s.customer(ctx, caller)
	if err != nil {
		return nil, err
	}

	res, err := s.DB.GetReservationByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.CustomerID != customer.ID {
		return nil, ErrNotOwner
	}
	if res.Status != models.StatusPending {
		return nil, ErrInvalidState
	}

	result := &CheckoutResult{Reservation: res}

	switch method {
	case models.PayTransfer:
		res.PaymentMethod = method
		if proofURL != "" {
			res.ProofURL = proofURL
		}
		banks, err := s.DB.ListActiveBankAccounts(ctx)
		if err != nil {
			return nil, err
		}
		result.BankAccounts = banks
	case models.PayCard:
		res.PaymentMethod = method
		if s.Gateway != nil {
			intentID, secret, err := s.Gateway.CreateIntent(ctx, res.Total, res.Code)
			if err != nil {
				return nil, fmt.Errorf("payment gateway error: %w", err)
			}
			res.TransactionID = intentID
			result.ClientSecret = secret
		} else if transactionID != "" {
			res.TransactionID = transactionID
		}
	case models.PayCash:
		res.PaymentMethod = method
		res.ProofURL = ""
		res.TransactionID = ""
	default:
		return nil, ErrInvalidPayment
	}

	if err := s.DB.UpdateReservation(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to save payment method: %w", err)
	}

	s.Logger.LogBooking("CHECKOUT", res.Code, fmt.Sprintf("method=%s", method))
	return result, nil
}

// ---------------- STATE MACHINE ----------------

// Approve moves PENDING to APPROVED. It needs a payment transaction id that
// no other reservation has used, and it refuses to re-approve: a set
// confirmation timestamp means the notification already went out once.
func (s *Service) Approve(ctx context.Context, reservationID int64, transactionID string) error {
	res, err := s.DB.GetReservationByID(ctx, reservationID)
	if err != nil {
		return err
	}

	if res.ConfirmedAt != nil {
		return ErrAlreadyApproved
	}
	if res.Status != models.StatusPending {
		return ErrInvalidState
	}
	if transactionID == "" {
		transactionID = res.TransactionID
	}
	if transactionID == "" {
		// Cash has no processor reference, so one is minted here.
		if res.PaymentMethod != models.PayCash {
			return ErrMissingTransactionID
		}
		transactionID = utils.GenerateTransactionID()
	}

	used, err := s.DB.TransactionIDInUse(ctx, transactionID, res.ID)
	if err != nil {
		return fmt.Errorf("transaction id check failed: %w", err)
	}
	if used {
		return ErrDuplicateTransaction
	}

	now := s.Now()
	res.Status = models.StatusApproved
	res.TransactionID = transactionID
	res.ConfirmedAt = &now

	if err := s.DB.UpdateReservation(ctx, res); err != nil {
		return fmt.Errorf("failed to approve reservation: %w", err)
	}

	s.Logger.LogBooking("APPROVED", res.Code, fmt.Sprintf("txn=%s", transactionID))

	customer, err := s.DB.GetCustomerByID(ctx, res.CustomerID)
	if err == nil {
		s.publish(models.NewNotificationEvent(models.NotifyReservationApproved, res, customer, lineSnapshots(res.Lines)))
	}
	return nil
}

// Void moves PENDING to VOIDED and notifies the customer.
func (s *Service) Void(ctx context.Context, reservationID int64) error {
	res, err := s.DB.GetReservationByID(ctx, reservationID)
	if err != nil {
		return err
	}
	return s.void(ctx, res)
}

// Cancel is the customer-facing void: same transition, gated on ownership.
func (s *Service) Cancel(ctx context.Context, caller Caller, reservationID int64) error {
	customer, err := s.customer(ctx, caller)
	if err != nil {
		return err
	}
	res, err := s.DB.GetReservationByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.CustomerID != customer.ID {
		return ErrNotOwner
	}
	return s.void(ctx, res)
}

func (s *Service) void(ctx context.Context, res *models.Reservation) error {
	if res.Status != models.StatusPending {
		return ErrInvalidState
	}

	res.Status = models.StatusVoided
	if err := s.DB.UpdateReservation(ctx, res); err != nil {
		return fmt.Errorf("failed to void reservation: %w", err)
	}

	s.Logger.LogBooking("VOIDED", res.Code, "")

	customer, err := s.DB.GetCustomerByID(ctx, res.CustomerID)
	if err == nil {
		s.publish(models.NewNotificationEvent(models.NotifyReservationVoided, res, customer, nil))
	}
	return nil
}

// MarkDeleted hides a PENDING or APPROVED reservation from active listings.
// No notification fires; it is an admin bookkeeping transition.
func (s *Service) MarkDeleted(ctx context.Context, reservationID int64) error {
	res, err := s.DB.GetReservationByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.Status != models.StatusPending && res.Status != models.StatusApproved {
		return ErrInvalidState
	}

	res.Status = models.StatusDeleted
	if err := s.DB.UpdateReservation(ctx, res); err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}

	s.Logger.LogBooking("DELETED", res.Code, "")
	return nil
}

func (s *Service) MyReservations(ctx context.Context, caller Caller) ([]models.Reservation, error) {
	customer, err := s.customer(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.DB.ListReservationsByCustomer(ctx, customer.ID)
}

func (s *Service) publish(ev models.NotificationEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishNotification(ev); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish %s for %s: %v", ev.Kind, ev.Code, err))
	}
}

func lineSnapshots(lines []models.ReservationLine) []models.LineSnapshot {
	out := make([]models.LineSnapshot, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.LineSnapshot{
			Name:      l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
	}
	return out
}
