package service

import (
	"context"
	"testing"

	"github.com/Dhoini/Billing-service/internal/billing"
	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/metrics"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/internal/stripe"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStripeClient считает внешние вызовы, чтобы проверять идемпотентность
// bootstrap-а и отсутствие вызовов там, где их быть не должно.
type fakeStripeClient struct {
	customersCreated int
	sessionsCreated  int
	cancelCalls      int
	lastInput        stripe.CheckoutSessionInput
}

func (c *fakeStripeClient) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	c.customersCreated++
	return "cus_fake_1", nil
}

func (c *fakeStripeClient) CreateCheckoutSession(ctx context.Context, input stripe.CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	c.sessionsCreated++
	c.lastInput = input
	return &stripe.CheckoutSession{ID: "cs_fake_1", RedirectURL: "https://checkout.example/cs_fake_1"}, nil
}

func (c *fakeStripeClient) CancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error {
	c.cancelCalls++
	return nil
}

type checkoutFixture struct {
	svc    *SubscriptionService
	subs   *repository.InMemorySubscriptionRepository
	client *fakeStripeClient
}

func newCheckoutFixture(t *testing.T, users ...domain.User) *checkoutFixture {
	t.Helper()
	log := logger.New(logger.ERROR)

	subs := repository.NewInMemorySubscriptionRepository(log)
	client := &fakeStripeClient{}
	svc := NewSubscriptionService(
		repository.NewInMemoryUserRepository(users...),
		subs,
		client,
		billing.NewPlanResolver("price_pro_123", "price_premium_456", nil, log),
		metrics.NoOpMetrics{},
		log,
	)
	return &checkoutFixture{svc: svc, subs: subs, client: client}
}

func TestStartCheckout_BootstrapsFreeRowAndCustomer(t *testing.T) {
	f := newCheckoutFixture(t, domain.User{ID: "u1", Email: "u1@example.com"})

	session, err := f.svc.StartCheckout(context.Background(), "u1", domain.TierPro, "https://app/success", "https://app/cancel")
	require.NoError(t, err)
	assert.Equal(t, "cs_fake_1", session.ID)
	assert.NotEmpty(t, session.RedirectURL)

	sub, err := f.subs.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, sub.Tier)
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Equal(t, "cus_fake_1", sub.StripeCustomerID)

	assert.Equal(t, "price_pro_123", f.client.lastInput.PriceID)
	assert.Equal(t, "u1", f.client.lastInput.UserID)
	assert.Equal(t, "PRO", f.client.lastInput.Tier)
}

func TestStartCheckout_SecondCallReusesCustomerAndRow(t *testing.T) {
	f := newCheckoutFixture(t, domain.User{ID: "u1", Email: "u1@example.com"})

	_, err := f.svc.StartCheckout(context.Background(), "u1", domain.TierPro, "s", "c")
	require.NoError(t, err)
	_, err = f.svc.StartCheckout(context.Background(), "u1", domain.TierPremium, "s", "c")
	require.NoError(t, err)

	assert.Equal(t, 1, f.client.customersCreated)
	assert.Equal(t, 2, f.client.sessionsCreated)
}

func TestStartCheckout_UnknownUser(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.StartCheckout(context.Background(), "ghost", domain.TierPro, "s", "c")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.client.customersCreated)
}

func TestStartCheckout_UnconfiguredTier(t *testing.T) {
	log := logger.New(logger.ERROR)
	f := newCheckoutFixture(t, domain.User{ID: "u1", Email: "u1@example.com"})
	f.svc.plans = billing.NewPlanResolver("", "", nil, log)

	_, err := f.svc.StartCheckout(context.Background(), "u1", domain.TierPro, "s", "c")
	require.ErrorIs(t, err, domain.ErrConfigurationMissing)
	assert.Zero(t, f.client.customersCreated)
	assert.Zero(t, f.client.sessionsCreated)
}

func TestStartCheckout_NilClient(t *testing.T) {
	f := newCheckoutFixture(t, domain.User{ID: "u1", Email: "u1@example.com"})
	f.svc.client = nil

	_, err := f.svc.StartCheckout(context.Background(), "u1", domain.TierPro, "s", "c")
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestScheduleCancellation_SetsFlagLocally(t *testing.T) {
	f := newCheckoutFixture(t, domain.User{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, f.subs.Create(context.Background(), &domain.Subscription{
		ID:                   "row-1",
		UserID:               "u1",
		Tier:                 domain.TierPro,
		Status:               domain.StatusActive,
		StripeSubscriptionID: "sub_ext_1",
	}))

	require.NoError(t, f.svc.ScheduleCancellation(context.Background(), "u1"))
	assert.Equal(t, 1, f.client.cancelCalls)

	sub, err := f.subs.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
}

func TestScheduleCancellation_NoSubscriptionRow(t *testing.T) {
	f := newCheckoutFixture(t, domain.User{ID: "u1", Email: "u1@example.com"})

	err := f.svc.ScheduleCancellation(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrNoActiveSubscription)
	assert.Zero(t, f.client.cancelCalls)
}

func TestScheduleCancellation_RowWithoutExternalID(t *testing.T) {
	f := newCheckoutFixture(t, domain.User{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, f.subs.Create(context.Background(), &domain.Subscription{
		ID:     "row-1",
		UserID: "u1",
		Tier:   domain.TierFree,
		Status: domain.StatusActive,
	}))

	err := f.svc.ScheduleCancellation(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrNoActiveSubscription)
	assert.Zero(t, f.client.cancelCalls)
}

func TestEntitlements_AbsentRowMeansFree(t *testing.T) {
	f := newCheckoutFixture(t)

	got, err := f.svc.Entitlements(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, billing.EntitlementsForTier(domain.TierFree), got)
}

func TestEntitlements_FollowTier(t *testing.T) {
	f := newCheckoutFixture(t)
	require.NoError(t, f.subs.Create(context.Background(), &domain.Subscription{
		ID:     "row-1",
		UserID: "u1",
		Tier:   domain.TierPremium,
		Status: domain.StatusActive,
	}))

	got, err := f.svc.Entitlements(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, billing.EntitlementsForTier(domain.TierPremium), got)
}

func TestGetSubscription_SynthesizesImplicitFree(t *testing.T) {
	f := newCheckoutFixture(t)

	sub, err := f.svc.GetSubscription(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, sub.Tier)
	assert.Empty(t, sub.StripeSubscriptionID)
}
