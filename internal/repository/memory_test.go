package repository

import (
	"context"
	"testing"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventLedger_RecordIsUniquePerEvent(t *testing.T) {
	ledger := NewInMemoryEventLedgerRepository(logger.New(logger.ERROR))

	require.NoError(t, ledger.Record(context.Background(), "evt_1", "customer.subscription.updated"))
	err := ledger.Record(context.Background(), "evt_1", "customer.subscription.updated")
	require.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, ledger.Record(context.Background(), "evt_2", "invoice.payment_succeeded"))
	assert.True(t, ledger.Seen("evt_1"))
	assert.True(t, ledger.Seen("evt_2"))
}

func TestInMemoryInvoices_DuplicateStripeInvoiceID(t *testing.T) {
	invoices := NewInMemoryInvoiceRepository(logger.New(logger.ERROR))

	first := &domain.Invoice{ID: "row-1", SubscriptionID: "sub-1", StripeInvoiceID: "in_1", AmountCents: 100}
	require.NoError(t, invoices.Create(context.Background(), first))

	second := &domain.Invoice{ID: "row-2", SubscriptionID: "sub-1", StripeInvoiceID: "in_1", AmountCents: 100}
	require.ErrorIs(t, invoices.Create(context.Background(), second), ErrDuplicate)

	list, err := invoices.ListBySubscriptionID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInMemorySubscriptions_OneRowPerUser(t *testing.T) {
	subs := NewInMemorySubscriptionRepository(logger.New(logger.ERROR))

	require.NoError(t, subs.Create(context.Background(), &domain.Subscription{ID: "row-1", UserID: "u1"}))
	err := subs.Create(context.Background(), &domain.Subscription{ID: "row-2", UserID: "u1"})
	require.ErrorIs(t, err, ErrDuplicate)

	got, err := subs.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "row-1", got.ID)
}
