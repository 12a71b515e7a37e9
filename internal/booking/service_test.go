package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Mock implementations for testing

var (
	maria = booking.Caller{Email: "maria@test.local", Name: "Maria Lopez"}
	otro  = booking.Caller{Email: "otro@test.local", Name: "Otro Cliente"}
)

type MockDB struct {
	customers    map[string]*models.Customer
	services     map[int64]*models.Service
	combos       map[int64]*models.Combo
	promotions   map[int64]*models.Promotion
	carts        map[int64]*models.Cart
	slots        map[string]*models.TimeSlot
	reservations map[int64]*models.Reservation
	bankAccounts []models.BankAccount
	takenDates   map[string]bool
	usedTxnIDs   map[string]int64
	nextLineID   int64
	nextResID    int64
	flushedCarts []int64
	nextCustID   int64
	shouldFailOn string
	errorMsg     string
}

func NewMockDB() *MockDB {
	return &MockDB{
		customers:    make(map[string]*models.Customer),
		services:     make(map[int64]*models.Service),
		combos:       make(map[int64]*models.Combo),
		promotions:   make(map[int64]*models.Promotion),
		carts:        make(map[int64]*models.Cart),
		slots:        make(map[string]*models.TimeSlot),
		reservations: make(map[int64]*models.Reservation),
		takenDates:   make(map[string]bool),
		usedTxnIDs:   make(map[string]int64),
		nextLineID:   1,
		nextResID:    1,
		nextCustID:   50,
	}
}

func (m *MockDB) fail(method string) error {
	if m.shouldFailOn == method {
		return errors.New(m.errorMsg)
	}
	return nil
}

func (m *MockDB) GetOrCreateCustomerByEmail(ctx context.Context, email, fullName string) (*models.Customer, error) {
	if err := m.fail("GetOrCreateCustomerByEmail"); err != nil {
		return nil, err
	}
	if c, ok := m.customers[email]; ok {
		return c, nil
	}
	c := &models.Customer{ID: m.nextCustID, FirstName: fullName, Email: email, Active: true}
	m.nextCustID++
	m.customers[email] = c
	return c, nil
}

func (m *MockDB) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MockDB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return s, nil
}

func (m *MockDB) GetCombo(ctx context.Context, id int64) (*models.Combo, error) {
	c, ok := m.combos[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func (m *MockDB) GetPromotion(ctx context.Context, id int64) (*models.Promotion, error) {
	p, ok := m.promotions[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (m *MockDB) GetOrCreateCart(ctx context.Context, customerID int64) (*models.Cart, error) {
	if err := m.fail("GetOrCreateCart"); err != nil {
		return nil, err
	}
	cart, ok := m.carts[customerID]
	if !ok {
		cart = &models.Cart{ID: customerID * 100, CustomerID: customerID}
		m.carts[customerID] = cart
	}
	return cart, nil
}

func (m *MockDB) GetCartByCustomer(ctx context.Context, customerID int64) (*models.Cart, error) {
	cart, ok := m.carts[customerID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cart, nil
}

func (m *MockDB) FindCartLine(ctx context.Context, cartID, serviceID, comboID, promotionID int64) (*models.CartLine, error) {
	for _, cart := range m.carts {
		if cart.ID != cartID {
			continue
		}
		for i := range cart.Lines {
			l := &cart.Lines[i]
			if l.ServiceID == serviceID && l.ComboID == comboID && l.PromotionID == promotionID {
				return l, nil
			}
		}
	}
	return nil, db.ErrNotFound
}

func (m *MockDB) InsertCartLine(ctx context.Context, line *models.CartLine) error {
	if err := m.fail("InsertCartLine"); err != nil {
		return err
	}
	line.ID = m.nextLineID
	m.nextLineID++
	for _, cart := range m.carts {
		if cart.ID == line.CartID {
			cart.Lines = append(cart.Lines, *line)
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *MockDB) UpdateCartLine(ctx context.Context, line *models.CartLine) error {
	return m.fail("UpdateCartLine")
}

func (m *MockDB) DeleteCartLine(ctx context.Context, cartID, lineID int64) error {
	if err := m.fail("DeleteCartLine"); err != nil {
		return err
	}
	for _, cart := range m.carts {
		if cart.ID != cartID {
			continue
		}
		for i := range cart.Lines {
			if cart.Lines[i].ID == lineID {
				cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
				return nil
			}
		}
	}
	return db.ErrNotFound
}

func (m *MockDB) GetSlotByDate(ctx context.Context, date string) (*models.TimeSlot, error) {
	slot, ok := m.slots[date]
	if !ok {
		return nil, db.ErrNotFound
	}
	return slot, nil
}

func (m *MockDB) HasActiveReservationOnDate(ctx context.Context, date string) (bool, error) {
	if err := m.fail("HasActiveReservationOnDate"); err != nil {
		return false, err
	}
	return m.takenDates[date], nil
}

func (m *MockDB) CreateReservationWithLines(ctx context.Context, res *models.Reservation, lines []models.ReservationLine, cartID int64) error {
	if err := m.fail("CreateReservationWithLines"); err != nil {
		return err
	}
	res.ID = m.nextResID
	m.nextResID++
	for i := range lines {
		lines[i].ReservationID = res.ID
	}
	res.Lines = lines
	m.reservations[res.ID] = res
	m.takenDates[res.EventDate] = true
	if cartID != 0 {
		m.flushedCarts = append(m.flushedCarts, cartID)
		for _, cart := range m.carts {
			if cart.ID == cartID {
				cart.Lines = nil
			}
		}
	}
	return nil
}

func (m *MockDB) GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error) {
	res, ok := m.reservations[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return res, nil
}

func (m *MockDB) ListReservationsByCustomer(ctx context.Context, customerID int64) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, res := range m.reservations {
		if res.CustomerID == customerID {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (m *MockDB) UpdateReservation(ctx context.Context, res *models.Reservation) error {
	if err := m.fail("UpdateReservation"); err != nil {
		return err
	}
	if _, ok := m.reservations[res.ID]; !ok {
		return db.ErrNotFound
	}
	m.reservations[res.ID] = res
	if res.TransactionID != "" {
		m.usedTxnIDs[res.TransactionID] = res.ID
	}
	return nil
}

func (m *MockDB) TransactionIDInUse(ctx context.Context, txnID string, excludeID int64) (bool, error) {
	if err := m.fail("TransactionIDInUse"); err != nil {
		return false, err
	}
	id, ok := m.usedTxnIDs[txnID]
	return ok && id != excludeID, nil
}

func (m *MockDB) ListActiveBankAccounts(ctx context.Context) ([]models.BankAccount, error) {
	return m.bankAccounts, nil
}

type MockPublisher struct {
	events       []models.NotificationEvent
	shouldFailOn string
	errorMsg     string
}

func (m *MockPublisher) PublishNotification(ev models.NotificationEvent) error {
	if m.shouldFailOn == "PublishNotification" {
		return errors.New(m.errorMsg)
	}
	m.events = append(m.events, ev)
	return nil
}

type MockGateway struct {
	intents int
}

func (m *MockGateway) CreateIntent(ctx context.Context, amount float64, code string) (string, string, error) {
	m.intents++
	return "pi_test_123", "secret_test_123", nil
}

func setupService() (*booking.Service, *MockDB, *MockPublisher) {
	mockDB := NewMockDB()
	publisher := &MockPublisher{}

	svc := booking.NewService(mockDB, publisher, nil, logger.NewLogger(), 0.12)
	svc.Now = func() time.Time { return time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC) }

	mockDB.customers["maria@test.local"] = &models.Customer{
		ID: 1, FirstName: "Maria", LastName: "Lopez", Email: "maria@test.local", Phone: "555-0001",
	}
	mockDB.services[10] = &models.Service{ID: 10, Name: "Castillo inflable", BasePrice: 60.0, Available: true}
	mockDB.combos[20] = &models.Combo{ID: 20, Name: "Combo cumpleaños", Price: 40.0, Active: true}
	mockDB.slots["2026-06-15"] = &models.TimeSlot{ID: 5, Date: "2026-06-15", StartTime: "14:00", EndTime: "18:00", Capacity: 1, Available: true}

	return svc, mockDB, publisher
}

func TestAddToCartMergesQuantity(t *testing.T) {
	svc, mockDB, _ := setupService()
	ctx := context.Background()

	line, err := svc.AddToCart(ctx, maria, "service", 10, 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if line.Quantity != 2 || line.UnitPrice != 60.0 {
		t.Errorf("Expected qty 2 at 60.0, got qty %d at %.2f", line.Quantity, line.UnitPrice)
	}

	// Re-adding the same service bumps the quantity instead of duplicating.
	line, err = svc.AddToCart(ctx, maria, "service", 10, 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if line.Quantity != 3 {
		t.Errorf("Expected merged quantity 3, got %d", line.Quantity)
	}

	cart := mockDB.carts[1]
	if len(cart.Lines) != 1 {
		t.Errorf("Expected a single cart line after merge, got %d", len(cart.Lines))
	}
}

func TestAddToCartUnknownItem(t *testing.T) {
	svc, _, _ := setupService()

	if _, err := svc.AddToCart(context.Background(), maria, "service", 999, 1); !errors.Is(err, booking.ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
	if _, err := svc.AddToCart(context.Background(), maria, "widget", 10, 1); !errors.Is(err, booking.ErrInvalidItemType) {
		t.Errorf("Expected ErrInvalidItemType, got %v", err)
	}
}

func TestConfirmCartComputesTotals(t *testing.T) {
	svc, mockDB, publisher := setupService()
	ctx := context.Background()

	// 60*1 + 40*1 = 100 subtotal.
	if _, err := svc.AddToCart(ctx, maria, "service", 10, 1); err != nil {
		t.Fatalf("Failed to seed cart: %v", err)
	}
	if _, err := svc.AddToCart(ctx, maria, "combo", 20, 1); err != nil {
		t.Fatalf("Failed to seed cart: %v", err)
	}

	res, err := svc.ConfirmCart(ctx, maria, "2026-06-15", "Av. Siempre Viva 742")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if res.Subtotal != 100.0 {
		t.Errorf("Expected subtotal 100.00, got %.2f", res.Subtotal)
	}
	if res.Tax != 12.0 {
		t.Errorf("Expected tax 12.00, got %.2f", res.Tax)
	}
	if res.Total != 112.0 {
		t.Errorf("Expected total 112.00, got %.2f", res.Total)
	}
	if res.Status != models.StatusPending {
		t.Errorf("Expected status PENDING, got %s", res.Status)
	}
	if res.Code == "" {
		t.Error("Expected a reservation code to be generated")
	}
	if len(res.Lines) != 2 {
		t.Errorf("Expected 2 reservation lines, got %d", len(res.Lines))
	}

	if len(mockDB.flushedCarts) != 1 {
		t.Errorf("Expected the cart to be flushed with the reservation, got %v", mockDB.flushedCarts)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("Expected one notification event, got %d", len(publisher.events))
	}
	ev := publisher.events[0]
	if ev.Kind != models.NotifyReservationReceived {
		t.Errorf("Expected reservation_received event, got %s", ev.Kind)
	}
	if len(ev.Lines) != 2 || ev.Total != 112.0 {
		t.Errorf("Expected event built from the in-memory snapshot, got %+v", ev)
	}
}

func TestConfirmCartValidations(t *testing.T) {
	svc, mockDB, _ := setupService()
	ctx := context.Background()

	if _, err := svc.ConfirmCart(ctx, maria, "", "addr"); !errors.Is(err, booking.ErrMissingFields) {
		t.Errorf("Expected ErrMissingFields, got %v", err)
	}

	// No cart yet.
	if _, err := svc.ConfirmCart(ctx, maria, "2026-06-15", "addr"); !errors.Is(err, booking.ErrEmptyCart) {
		t.Errorf("Expected ErrEmptyCart, got %v", err)
	}

	if _, err := svc.AddToCart(ctx, maria, "service", 10, 1); err != nil {
		t.Fatalf("Failed to seed cart: %v", err)
	}

	if _, err := svc.ConfirmCart(ctx, maria, "2026-07-01", "addr"); !errors.Is(err, booking.ErrNoSlot) {
		t.Errorf("Expected ErrNoSlot for a date without slots, got %v", err)
	}

	mockDB.takenDates["2026-06-15"] = true
	if _, err := svc.ConfirmCart(ctx, maria, "2026-06-15", "addr"); !errors.Is(err, booking.ErrDateTaken) {
		t.Errorf("Expected ErrDateTaken, got %v", err)
	}
}

func TestConfirmCartFailureSendsNoNotification(t *testing.T) {
	svc, mockDB, publisher := setupService()
	ctx := context.Background()

	if _, err := svc.AddToCart(ctx, maria, "service", 10, 1); err != nil {
		t.Fatalf("Failed to seed cart: %v", err)
	}

	mockDB.shouldFailOn = "CreateReservationWithLines"
	mockDB.errorMsg = "tx aborted"

	if _, err := svc.ConfirmCart(ctx, maria, "2026-06-15", "addr"); err == nil {
		t.Fatal("Expected error when the transaction fails, got nil")
	}

	if len(publisher.events) != 0 {
		t.Errorf("Expected no notification after a failed commit, got %d events", len(publisher.events))
	}
	if len(mockDB.carts[1].Lines) != 1 {
		t.Errorf("Expected cart to survive the failed conversion, got %d lines", len(mockDB.carts[1].Lines))
	}
}

func TestDirectBookSingleItem(t *testing.T) {
	svc, _, publisher := setupService()

	res, err := svc.DirectBook(context.Background(), maria, "2026-06-15", "addr", "combo", 20, 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Subtotal != 80.0 || res.Total != 89.6 {
		t.Errorf("Expected subtotal 80.00 and total 89.60, got %.2f / %.2f", res.Subtotal, res.Total)
	}
	if len(publisher.events) != 1 {
		t.Errorf("Expected one notification event, got %d", len(publisher.events))
	}
}

func TestCheckoutTransferReturnsBankAccounts(t *testing.T) {
	svc, mockDB, _ := setupService()
	ctx := context.Background()

	mockDB.bankAccounts = []models.BankAccount{{ID: 1, BankName: "Banco Pichincha", AccountNumber: "220045", AccountHolder: "Burbujitas", Active: true}}

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}

	result, err := svc.Checkout(ctx, maria, res.ID, models.PayTransfer, "https://proof.local/1.jpg", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.BankAccounts) != 1 {
		t.Errorf("Expected bank accounts in the transfer checkout, got %d", len(result.BankAccounts))
	}
	if result.Reservation.ProofURL != "https://proof.local/1.jpg" {
		t.Errorf("Expected proof url to be recorded, got %q", result.Reservation.ProofURL)
	}
}

func TestCheckoutCardCreatesIntent(t *testing.T) {
	svc, _, _ := setupService()
	gateway := &MockGateway{}
	svc.Gateway = gateway
	ctx := context.Background()

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}

	result, err := svc.Checkout(ctx, maria, res.ID, models.PayCard, "", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gateway.intents != 1 {
		t.Errorf("Expected one payment intent, got %d", gateway.intents)
	}
	if result.ClientSecret != "secret_test_123" {
		t.Errorf("Expected the gateway client secret, got %q", result.ClientSecret)
	}
	if result.Reservation.TransactionID != "pi_test_123" {
		t.Errorf("Expected the intent id as transaction id, got %q", result.Reservation.TransactionID)
	}
}

func TestCheckoutRejectsWrongOwnerAndMethod(t *testing.T) {
	svc, mockDB, _ := setupService()
	ctx := context.Background()

	mockDB.customers["otro@test.local"] = &models.Customer{ID: 2, FirstName: "Otro", LastName: "Cliente", Email: "otro@test.local", Phone: "555-0002"}

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}

	if _, err := svc.Checkout(ctx, otro, res.ID, models.PayCash, "", ""); !errors.Is(err, booking.ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.Checkout(ctx, maria, res.ID, "crypto", "", ""); !errors.Is(err, booking.ErrInvalidPayment) {
		t.Errorf("Expected ErrInvalidPayment, got %v", err)
	}
}

func TestApproveSetsConfirmationAndNotifies(t *testing.T) {
	svc, mockDB, publisher := setupService()
	ctx := context.Background()

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}
	publisher.events = nil

	if err := svc.Approve(ctx, res.ID, "TXN-001"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	approved := mockDB.reservations[res.ID]
	if approved.Status != models.StatusApproved {
		t.Errorf("Expected status APPROVED, got %s", approved.Status)
	}
	if approved.ConfirmedAt == nil {
		t.Error("Expected confirmation timestamp to be set")
	}
	if approved.TransactionID != "TXN-001" {
		t.Errorf("Expected transaction id TXN-001, got %s", approved.TransactionID)
	}
	if len(publisher.events) != 1 || publisher.events[0].Kind != models.NotifyReservationApproved {
		t.Errorf("Expected one approval notification, got %+v", publisher.events)
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	svc, _, publisher := setupService()
	ctx := context.Background()

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}
	publisher.events = nil

	if err := svc.Approve(ctx, res.ID, "TXN-001"); err != nil {
		t.Fatalf("First approval failed: %v", err)
	}
	if err := svc.Approve(ctx, res.ID, "TXN-001"); !errors.Is(err, booking.ErrAlreadyApproved) {
		t.Fatalf("Expected ErrAlreadyApproved on re-approval, got %v", err)
	}

	// The customer gets exactly one approval mail.
	if len(publisher.events) != 1 {
		t.Errorf("Expected a single approval notification, got %d", len(publisher.events))
	}
}

func TestApproveRejectsDuplicateTransaction(t *testing.T) {
	svc, mockDB, _ := setupService()
	ctx := context.Background()

	first, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}
	if err := svc.Approve(ctx, first.ID, "TXN-001"); err != nil {
		t.Fatalf("First approval failed: %v", err)
	}

	// A second reservation on another date tries to reuse the payment.
	second := &models.Reservation{
		CustomerID: 1, SlotID: 5, Code: "RES-0002-abc", EventDate: "2026-06-16",
		Address: "addr", Subtotal: 60, Tax: 7.2, Total: 67.2, Status: models.StatusPending,
	}
	if err := mockDB.CreateReservationWithLines(ctx, second, nil, 0); err != nil {
		t.Fatalf("Failed to seed second reservation: %v", err)
	}

	if err := svc.Approve(ctx, second.ID, "TXN-001"); !errors.Is(err, booking.ErrDuplicateTransaction) {
		t.Errorf("Expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestApproveRequiresTransactionID(t *testing.T) {
	svc, _, _ := setupService()
	ctx := context.Background()

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}

	if err := svc.Approve(ctx, res.ID, ""); !errors.Is(err, booking.ErrMissingTransactionID) {
		t.Errorf("Expected ErrMissingTransactionID, got %v", err)
	}
}

func TestApproveCashGeneratesTransactionID(t *testing.T) {
	svc, mockDB, _ := setupService()
	ctx := context.Background()

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}
	if _, err := svc.Checkout(ctx, maria, res.ID, models.PayCash, "", ""); err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	if err := svc.Approve(ctx, res.ID, ""); err != nil {
		t.Fatalf("Expected cash approval without a transaction id, got %v", err)
	}
	if mockDB.reservations[res.ID].TransactionID == "" {
		t.Error("Expected a generated transaction id on cash approval")
	}
}

func TestVoidOnlyFromPending(t *testing.T) {
	svc, mockDB, publisher := setupService()
	ctx := context.Background()

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}
	publisher.events = nil

	if err := svc.Void(ctx, res.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if mockDB.reservations[res.ID].Status != models.StatusVoided {
		t.Errorf("Expected status VOIDED, got %s", mockDB.reservations[res.ID].Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].Kind != models.NotifyReservationVoided {
		t.Errorf("Expected one void notification, got %+v", publisher.events)
	}

	// VOIDED is terminal.
	if err := svc.Void(ctx, res.ID); !errors.Is(err, booking.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState when voiding twice, got %v", err)
	}
}

func TestFirstRequestProvisionsCustomer(t *testing.T) {
	svc, mockDB, _ := setupService()
	nueva := booking.Caller{Email: "nueva@test.local", Name: "Nueva Clienta"}

	// No profile exists for this login yet; first contact creates one.
	line, err := svc.AddToCart(context.Background(), nueva, "service", 10, 1)
	if err != nil {
		t.Fatalf("Expected first contact to provision a profile, got %v", err)
	}
	if line.Quantity != 1 {
		t.Errorf("Expected the item in the new customer's cart, got qty %d", line.Quantity)
	}

	created, ok := mockDB.customers["nueva@test.local"]
	if !ok || created.ID == 0 {
		t.Fatal("Expected a customer row provisioned for the new login")
	}
}

func TestCancelVoidsOwnReservation(t *testing.T) {
	svc, mockDB, publisher := setupService()
	ctx := context.Background()

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}
	publisher.events = nil

	// Another customer's login cannot cancel it.
	if err := svc.Cancel(ctx, otro, res.ID); !errors.Is(err, booking.ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}

	if err := svc.Cancel(ctx, maria, res.ID); err != nil {
		t.Fatalf("Expected the owner to cancel, got %v", err)
	}
	if mockDB.reservations[res.ID].Status != models.StatusVoided {
		t.Errorf("Expected status VOIDED, got %s", mockDB.reservations[res.ID].Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].Kind != models.NotifyReservationVoided {
		t.Errorf("Expected one void notification, got %+v", publisher.events)
	}

	// Only PENDING reservations can be cancelled.
	if err := svc.Cancel(ctx, maria, res.ID); !errors.Is(err, booking.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState on a second cancel, got %v", err)
	}
}

func TestMarkDeletedTransitions(t *testing.T) {
	svc, mockDB, _ := setupService()
	ctx := context.Background()

	res, err := svc.DirectBook(ctx, maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Failed to create reservation: %v", err)
	}

	if err := svc.MarkDeleted(ctx, res.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if mockDB.reservations[res.ID].Status != models.StatusDeleted {
		t.Errorf("Expected status DELETED, got %s", mockDB.reservations[res.ID].Status)
	}

	if err := svc.MarkDeleted(ctx, res.ID); !errors.Is(err, booking.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState when deleting twice, got %v", err)
	}
}

func TestPublishFailureDoesNotFailBooking(t *testing.T) {
	svc, _, publisher := setupService()
	publisher.shouldFailOn = "PublishNotification"
	publisher.errorMsg = "broker unavailable"

	res, err := svc.DirectBook(context.Background(), maria, "2026-06-15", "addr", "service", 10, 1)
	if err != nil {
		t.Fatalf("Expected booking to succeed despite publish failure, got %v", err)
	}
	if res.Status != models.StatusPending {
		t.Errorf("Expected status PENDING, got %s", res.Status)
	}
}
