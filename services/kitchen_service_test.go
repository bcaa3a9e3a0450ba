package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/billiard-pos/models"
)

func TestBuildKitchenDisplay(t *testing.T) {
	t0 := baseTime
	t1 := baseTime.Add(time.Minute)

	served := line(2, 100, "0")
	served.ServedQuantity = 2
	partial := line(3, 100, "0")
	partial.ID = 11
	partial.Name = "Fries"
	partial.ServedQuantity = 1
	voided := line(1, 100, "0")
	voided.Voided = true

	orders := []models.Order{
		{ID: 1, OrderType: models.OrderTypeMobile, Status: models.OrderStatusOpen, CreatedAt: t0, Items: []models.OrderItem{line(1, 100, "0")}},
		{ID: 2, OrderType: models.OrderTypePOS, Status: models.OrderStatusSubmitted, SentAt: &t1, CreatedAt: t0, Items: []models.OrderItem{partial, tableTimeLine(500, "0")}},
		{ID: 3, OrderType: models.OrderTypePOS, Status: models.OrderStatusSubmitted, SentAt: &t0, CreatedAt: t1, Items: []models.OrderItem{line(1, 100, "0")}},
		{ID: 4, OrderType: models.OrderTypePOS, Status: models.OrderStatusPreparing, SentAt: &t0, CreatedAt: t0, Items: []models.OrderItem{served, voided}},
	}

	tickets := BuildKitchenDisplay(orders)
	require.Len(t, tickets, 3)
	assert.Equal(t, uint(3), tickets[0].OrderID)
	assert.Equal(t, uint(2), tickets[1].OrderID)
	assert.Equal(t, uint(1), tickets[2].OrderID)

	require.Len(t, tickets[1].Items, 1)
	item := tickets[1].Items[0]
	assert.Equal(t, uint(11), item.ItemID)
	assert.Equal(t, 2, item.Remaining)
	assert.Equal(t, 1, item.Served)
	assert.Equal(t, "POS #2", tickets[1].Label)
}

func TestBuildKitchenDisplayTiesOnCreatedAt(t *testing.T) {
	sent := baseTime
	orders := []models.Order{
		{ID: 1, Status: models.OrderStatusSubmitted, SentAt: &sent, CreatedAt: baseTime.Add(time.Minute), Items: []models.OrderItem{line(1, 1, "0")}},
		{ID: 2, Status: models.OrderStatusSubmitted, SentAt: &sent, CreatedAt: baseTime, Items: []models.OrderItem{line(1, 1, "0")}},
	}
	tickets := BuildKitchenDisplay(orders)
	require.Len(t, tickets, 2)
	assert.Equal(t, uint(2), tickets[0].OrderID)
}

func TestDisplayShowsSubmittedAndMobileOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cola := env.product(t, "Cola", 100, "0.10")

	pos := env.posOrder(t, lineSpec{product: cola, qty: 1})
	draft := env.posOrder(t, lineSpec{product: cola, qty: 1})
	mobile, err := env.svcs.Orders.CreateOrder(ctx, CreateOrderRequest{OrderType: models.OrderTypeMobile})
	require.NoError(t, err)
	_, err = env.svcs.Orders.AddItem(ctx, mobile.ID, cola.ID, 2, "")
	require.NoError(t, err)

	_, err = env.svcs.Orders.Submit(ctx, pos.ID)
	require.NoError(t, err)

	tickets, err := env.svcs.Kitchen.Display(ctx)
	require.NoError(t, err)
	ids := make([]uint, 0, len(tickets))
	for _, tk := range tickets {
		ids = append(ids, tk.OrderID)
	}
	assert.Equal(t, []uint{pos.ID, mobile.ID}, ids)
	assert.NotContains(t, ids, draft.ID)
}

func TestDisplayLabelsSessionOrdersByTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	table := env.table(t, "Snooker 3", 60000)
	cola := env.product(t, "Cola", 100, "0.10")

	session, err := env.svcs.Sessions.Open(ctx, table.ID, "A")
	require.NoError(t, err)
	orderID := session.Orders[0].ID
	_, err = env.svcs.Orders.AddItem(ctx, orderID, cola.ID, 1, "")
	require.NoError(t, err)
	_, err = env.svcs.Orders.Submit(ctx, orderID)
	require.NoError(t, err)

	tickets, err := env.svcs.Kitchen.Display(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Snooker 3 #1", tickets[0].Label)
	require.Len(t, tickets[0].Items, 1)
	assert.Equal(t, "Cola", tickets[0].Items[0].Name)
}

func TestMarkItemServedRejectsOverServe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fries := env.product(t, "Fries", 250, "0.10")
	order := env.posOrder(t, lineSpec{product: fries, qty: 3})
	itemID := order.Items[0].ID
	_, err := env.svcs.Orders.Submit(ctx, order.ID)
	require.NoError(t, err)

	_, err = env.svcs.Kitchen.MarkItemServed(ctx, itemID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	updated, err := env.svcs.Kitchen.MarkItemServed(ctx, itemID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, updated.Status)
	assert.Equal(t, 2, updated.Items[0].ServedQuantity)

	_, err = env.svcs.Kitchen.MarkItemServed(ctx, itemID, 2)
	assert.ErrorIs(t, err, ErrOverServe)
	assert.Equal(t, 2, env.reload(t, order.ID).Items[0].ServedQuantity)

	_, err = env.svcs.Kitchen.MarkItemServed(ctx, itemID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, env.reload(t, order.ID).Items[0].ServedQuantity)

	_, err = env.svcs.Kitchen.MarkItemServed(ctx, 404, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestMarkOrderServedEmptiesDisplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cola := env.product(t, "Cola", 100, "0.10")
	fries := env.product(t, "Fries", 250, "0.10")
	order := env.posOrder(t, lineSpec{product: cola, qty: 2}, lineSpec{product: fries, qty: 1})
	_, err := env.svcs.Orders.Submit(ctx, order.ID)
	require.NoError(t, err)
	_, err = env.svcs.Kitchen.MarkItemServed(ctx, order.Items[0].ID, 1)
	require.NoError(t, err)

	served, err := env.svcs.Kitchen.MarkOrderServed(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusServed, served.Status)

	again, err := env.svcs.Kitchen.MarkOrderServed(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusServed, again.Status)

	tickets, err := env.svcs.Kitchen.Display(ctx)
	require.NoError(t, err)
	assert.Empty(t, tickets)
	for _, it := range env.reload(t, order.ID).Items {
		assert.Equal(t, it.Quantity, it.ServedQuantity)
	}
	assert.Contains(t, env.audit.actions(), AuditOrderServed)
	assert.Positive(t, env.hub.kitchen)
}

func TestMarkOrderReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cola := env.product(t, "Cola", 100, "0.10")
	order := env.posOrder(t, lineSpec{product: cola, qty: 1})
	_, err := env.svcs.Orders.Submit(ctx, order.ID)
	require.NoError(t, err)

	ready, err := env.svcs.Kitchen.MarkOrderReady(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReady, ready.Status)

	tickets, err := env.svcs.Kitchen.Display(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, models.OrderStatusReady, tickets[0].Status)
}
