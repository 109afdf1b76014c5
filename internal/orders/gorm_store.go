package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserModel is the customer row, one per contact key.
type UserModel struct {
	ContactKey string    `gorm:"column:contact_key;primaryKey;type:varchar(255)"`
	Name       string    `gorm:"column:name;type:varchar(255);not null"`
	Email      string    `gorm:"column:email;type:varchar(255)"`
	Phone      string    `gorm:"column:phone;type:varchar(32);not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (UserModel) TableName() string {
	return "users"
}

// OrderModel is the persisted order row. History and the sync record are JSON columns.
type OrderModel struct {
	OrderID           string          `gorm:"column:order_id;primaryKey;type:varchar(32)"`
	UserContactKey    string          `gorm:"column:user_contact_key;type:varchar(255);not null;index"`
	Plan              string          `gorm:"column:plan;type:varchar(128);not null"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Quantity          int             `gorm:"column:quantity;not null"`
	PaymentMethod     string          `gorm:"column:payment_method;type:varchar(32);not null"`
	PaymentStatus     string          `gorm:"column:payment_status;type:varchar(16);not null"`
	OrderStatus       string          `gorm:"column:order_status;type:varchar(16);not null;index"`
	Street            string          `gorm:"column:street;type:text"`
	City              string          `gorm:"column:city;type:varchar(128)"`
	State             string          `gorm:"column:state;type:varchar(128)"`
	Pincode           string          `gorm:"column:pincode;type:varchar(16)"`
	SyncState         string          `gorm:"column:sync_state;type:varchar(32);index"`
	NeedsManualSync   bool            `gorm:"column:needs_manual_sync;not null;default:false"`
	StatusHistory     datatypes.JSON  `gorm:"column:status_history;type:json"`
	Shipping          datatypes.JSON  `gorm:"column:shipping;type:json"`
	EstimatedDelivery time.Time       `gorm:"column:estimated_delivery"`
	CreatedAt         time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;not null"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// GormStore is the primary relational order sink.
type GormStore struct {
	db      *gorm.DB
	nowFunc func() time.Time

	mu            sync.Mutex
	migrateOnSave bool
	migrated      bool
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, nowFunc: time.Now}
}

func (s *GormStore) Name() string { return "postgres" }

// MigrateOnSave makes Save run AutoMigrate first until a migration succeeds,
// for a database that was unreachable when the process started.
func (s *GormStore) MigrateOnSave() *GormStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrateOnSave = true
	return s
}

// AutoMigrate creates or updates the users and orders tables.
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&UserModel{}, &OrderModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	s.mu.Lock()
	s.migrated = true
	s.mu.Unlock()
	return nil
}

func (s *GormStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	pending := s.migrateOnSave && !s.migrated
	s.mu.Unlock()
	if !pending {
		return nil
	}
	return s.AutoMigrate(ctx)
}

// Save upserts the customer and the order in one transaction.
func (s *GormStore) Save(ctx context.Context, o *Order) error {
	user, order, err := s.toModels(o)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("save order %s: %w", o.OrderID, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contact_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "phone", "updated_at"}),
		}).Create(user).Error; err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"order_status", "payment_status", "sync_state", "needs_manual_sync",
				"status_history", "shipping", "updated_at",
			}),
		}).Create(order).Error; err != nil {
			return fmt.Errorf("upsert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save order %s: %w", o.OrderID, err)
	}
	return nil
}

// Get loads an order and its customer by order id.
func (s *GormStore) Get(ctx context.Context, orderID string) (*Order, error) {
	var m OrderModel
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	var u UserModel
	if err := s.db.WithContext(ctx).Where("contact_key = ?", m.UserContactKey).First(&u).Error; err != nil {
		return nil, fmt.Errorf("get user for order %s: %w", orderID, err)
	}
	return fromModels(&u, &m)
}

// ContactKey identifies a customer: lower-cased email when present, otherwise the phone number.
func ContactKey(c Customer) string {
	if email := strings.TrimSpace(c.Email); email != "" {
		return strings.ToLower(email)
	}
	return strings.TrimSpace(c.Phone)
}

func (s *GormStore) toModels(o *Order) (*UserModel, *OrderModel, error) {
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("encode status history: %w", err)
	}

	var shipping datatypes.JSON
	if o.Shipping != nil {
		raw, err := json.Marshal(o.Shipping)
		if err != nil {
			return nil, nil, fmt.Errorf("encode shipping record: %w", err)
		}
		shipping = raw
	}

	now := s.nowFunc()
	key := ContactKey(o.Customer)
	user := &UserModel{
		ContactKey: key,
		Name:       o.Customer.Name,
		Email:      o.Customer.Email,
		Phone:      o.Customer.Phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created := o.CreatedAt
	if created.IsZero() {
		created = now
	}
	order := &OrderModel{
		OrderID:           o.OrderID,
		UserContactKey:    key,
		Plan:              o.Plan,
		Amount:            o.Amount,
		Quantity:          o.Quantity,
		PaymentMethod:     string(o.PaymentMethod),
		PaymentStatus:     o.PaymentStatus,
		OrderStatus:       o.OrderStatus,
		Street:            o.Address.Street,
		City:              o.Address.City,
		State:             o.Address.State,
		Pincode:           o.Address.Pincode,
		SyncState:         string(o.SyncState()),
		NeedsManualSync:   o.NeedsManualSync,
		StatusHistory:     history,
		Shipping:          shipping,
		EstimatedDelivery: o.EstimatedDelivery,
		CreatedAt:         created,
		UpdatedAt:         now,
	}
	return user, order, nil
}

func fromModels(u *UserModel, m *OrderModel) (*Order, error) {
	o := &Order{
		OrderID:           m.OrderID,
		Customer:          Customer{Name: u.Name, Email: u.Email, Phone: u.Phone},
		Address:           Address{Street: m.Street, City: m.City, State: m.State, Pincode: m.Pincode},
		Plan:              m.Plan,
		Amount:            m.Amount,
		Quantity:          m.Quantity,
		PaymentMethod:     PaymentMethod(m.PaymentMethod),
		PaymentStatus:     m.PaymentStatus,
		OrderStatus:       m.OrderStatus,
		NeedsManualSync:   m.NeedsManualSync,
		EstimatedDelivery: m.EstimatedDelivery,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if len(m.StatusHistory) > 0 {
		if err := json.Unmarshal(m.StatusHistory, &o.StatusHistory); err != nil {
			return nil, fmt.Errorf("decode status history: %w", err)
		}
	}
	if len(m.Shipping) > 0 && string(m.Shipping) != "null" {
		o.Shipping = &SyncRecord{}
		if err := json.Unmarshal(m.Shipping, o.Shipping); err != nil {
			return nil, fmt.Errorf("decode shipping record: %w", err)
		}
	}
	return o, nil
}
