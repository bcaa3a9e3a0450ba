package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/billiard-pos/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2024, 5, 17, 18, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordedAudit struct {
	Action   string
	EntityID string
	Actor    uint
	Details  map[string]interface{}
}

type fakeAudit struct {
	mu      sync.Mutex
	records []recordedAudit
}

func (f *fakeAudit) Record(ctx context.Context, actionType, _, entityID string, details map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	actor, _ := ActorFrom(ctx)
	f.records = append(f.records, recordedAudit{Action: actionType, EntityID: entityID, Actor: actor, Details: details})
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.Action)
	}
	return out
}

func (f *fakeAudit) find(action string) (recordedAudit, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Action == action {
			return r, true
		}
	}
	return recordedAudit{}, false
}

type fakeHub struct {
	mu       sync.Mutex
	orders   []models.Order
	kitchen  int
	sessions []models.TableSession
}

func (h *fakeHub) BroadcastOrderUpdate(order models.Order) {
	h.mu.Lock()
	h.orders = append(h.orders, order)
	h.mu.Unlock()
}

func (h *fakeHub) BroadcastKitchenUpdate(interface{}) {
	h.mu.Lock()
	h.kitchen++
	h.mu.Unlock()
}

func (h *fakeHub) BroadcastSessionUpdate(session models.TableSession) {
	h.mu.Lock()
	h.sessions = append(h.sessions, session)
	h.mu.Unlock()
}

type testEnv struct {
	db    *gorm.DB
	svcs  *Services
	clock *testClock
	audit *fakeAudit
	hub   *fakeHub
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:    newTestDB(t),
		clock: &testClock{now: baseTime},
		audit: &fakeAudit{},
		hub:   &fakeHub{},
	}
	env.svcs = New(env.db, env.audit, env.hub, Options{
		TaxRate:      decimal.RequireFromString("0.10"),
		CancelWindow: 24 * time.Hour,
		Now:          env.clock.Now,
	})
	return env
}

func (e *testEnv) table(t *testing.T, label string, hourlyRate int64) models.PoolTable {
	t.Helper()
	table := models.PoolTable{
		Label:      label,
		Status:     models.TableStatusAvailable,
		HourlyRate: hourlyRate,
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	}
	require.NoError(t, e.db.Create(&table).Error)
	return table
}

func (e *testEnv) product(t *testing.T, name string, price int64, rate string) models.Product {
	t.Helper()
	var category models.ProductCategory
	require.NoError(t, e.db.Where(models.ProductCategory{Name: "Drinks"}).
		Attrs(models.ProductCategory{CreatedAt: baseTime, UpdatedAt: baseTime}).
		FirstOrCreate(&category).Error)
	product := models.Product{
		CategoryID: category.ID,
		Name:       name,
		Price:      price,
		TaxRate:    decimal.RequireFromString(rate),
		Active:     true,
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	}
	require.NoError(t, e.db.Create(&product).Error)
	return product
}

func (e *testEnv) customer(t *testing.T, name string) models.User {
	t.Helper()
	user := models.User{
		Name:     name,
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		Role:     models.RoleCustomer,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

// posOrder creates a standalone POS order with the given product lines.
func (e *testEnv) posOrder(t *testing.T, lines ...lineSpec) *models.Order {
	t.Helper()
	ctx := context.Background()
	order, err := e.svcs.Orders.CreateOrder(ctx, CreateOrderRequest{OrderType: models.OrderTypePOS, CustomerName: "Walk-in"})
	require.NoError(t, err)
	for _, l := range lines {
		order, err = e.svcs.Orders.AddItem(ctx, order.ID, l.product.ID, l.qty, l.notes)
		require.NoError(t, err)
	}
	return order
}

type lineSpec struct {
	product models.Product
	qty     int
	notes   string
}

func (e *testEnv) reload(t *testing.T, orderID uint) *models.Order {
	t.Helper()
	order, err := reloadOrder(e.db, orderID)
	require.NoError(t, err)
	return order
}
