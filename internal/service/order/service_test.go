package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/mesa/internal/cache"
	"github.com/Additional-Code/mesa/internal/dto"
	"github.com/Additional-Code/mesa/internal/entity"
	"github.com/Additional-Code/mesa/internal/notification"
	menurepo "github.com/Additional-Code/mesa/internal/repository/menu"
	orderrepo "github.com/Additional-Code/mesa/internal/repository/order"
	"github.com/Additional-Code/mesa/pkg/errorbank"
)

type fakeOrderStore struct {
	orders      map[int64]*entity.Order
	histories   map[int64][]entity.StatusHistory
	nextID      int64
	createErrs  []error
	createCalls int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:    make(map[int64]*entity.Order),
		histories: make(map[int64][]entity.StatusHistory),
	}
}

func (f *fakeOrderStore) Create(_ context.Context, order *entity.Order, hist *entity.StatusHistory) error {
	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	f.nextID++
	order.ID = f.nextID
	copied := *order
	f.orders[order.ID] = &copied
	hist.OrderID = order.ID
	f.histories[order.ID] = append(f.histories[order.ID], *hist)
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderStore) ListByClient(_ context.Context, clientID int64) ([]entity.Order, error) {
	var out []entity.Order
	for _, o := range f.orders {
		if o.ClientID == clientID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) ListAll(_ context.Context) ([]entity.Order, error) {
	var out []entity.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrderStore) Transition(_ context.Context, id int64, from, to entity.OrderStatus, apply func(*entity.Order), hist *entity.StatusHistory) (*entity.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	if order.Status != from {
		return nil, orderrepo.ErrStatusConflict
	}
	order.Status = to
	if apply != nil {
		apply(order)
	}
	hist.OrderID = id
	hist.PreviousStatus = &from
	hist.NewStatus = to
	f.histories[id] = append(f.histories[id], *hist)
	copied := *order
	return &copied, nil
}

func (f *fakeOrderStore) History(_ context.Context, orderID int64) ([]entity.StatusHistory, error) {
	entries := f.histories[orderID]
	out := make([]entity.StatusHistory, len(entries))
	for i := range entries {
		out[len(entries)-1-i] = entries[i]
	}
	return out, nil
}

type fakeMenuStore struct {
	menus map[int64]*entity.WeeklyMenu
}

func (f *fakeMenuStore) GetByID(_ context.Context, id int64) (*entity.WeeklyMenu, error) {
	menu, ok := f.menus[id]
	if !ok {
		return nil, menurepo.ErrNotFound
	}
	return menu, nil
}

type stubCache struct{}

func (stubCache) Get(context.Context, string) ([]byte, error) { return nil, cache.ErrCacheMiss }
func (stubCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (stubCache) Delete(context.Context, string) error { return nil }

type recordingDispatcher struct {
	events []notification.OrderEvent
}

func (r *recordingDispatcher) Notify(_ context.Context, event notification.OrderEvent) {
	r.events = append(r.events, event)
}

type fixture struct {
	svc        *Service
	store      *fakeOrderStore
	menus      *fakeMenuStore
	dispatcher *recordingDispatcher
}

func newFixture(now time.Time) *fixture {
	store := newFakeOrderStore()
	menus := &fakeMenuStore{menus: map[int64]*entity.WeeklyMenu{
		1: {ID: 1, Status: entity.MenuPublished, PricePerMeal: entity.CentsFromUnits(10)},
		2: {ID: 2, Status: entity.MenuDraft, PricePerMeal: entity.CentsFromUnits(10)},
	}}
	dispatcher := &recordingDispatcher{}
	svc := &Service{
		orders:     store,
		menus:      menus,
		cache:      stubCache{},
		cacheTTL:   time.Minute,
		logger:     zap.NewNop(),
		dispatcher: dispatcher,
		now:        func() time.Time { return now },
	}
	return &fixture{svc: svc, store: store, menus: menus, dispatcher: dispatcher}
}

func kindOf(t *testing.T, err error) errorbank.Kind {
	t.Helper()
	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Kind()
}

func createRequest(pickup time.Time) dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		WeeklyMenuID: 1,
		MealsPerDay:  2,
		IncludeLunch: true,
		PickupAt:     pickup,
	}
}

func TestCreateOrder(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	resp, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPendingPayment, resp.Status)
	assert.Len(t, resp.OrderCode, 8)
	assert.Len(t, resp.PickupCode, 16)
	assert.Equal(t, "140.00", resp.TotalAmount.String())

	require.Len(t, resp.StatusHistory, 1)
	assert.Equal(t, "Order created", resp.StatusHistory[0].Notes)
	assert.Nil(t, resp.StatusHistory[0].PreviousStatus)

	require.Len(t, fx.dispatcher.events, 1)
	assert.Equal(t, notification.EventOrderCreated, fx.dispatcher.events[0].EventType)
	assert.Equal(t, resp.OrderCode, fx.dispatcher.events[0].OrderCode)
}

func TestCreateOrderUnpublishedMenu(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	req := createRequest(now.Add(72 * time.Hour))
	req.WeeklyMenuID = 2
	_, err := fx.svc.Create(context.Background(), 7, req)
	assert.Equal(t, errorbank.KindInvalidState, kindOf(t, err))
}

func TestCreateOrderPickupInPast(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	_, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(-time.Hour)))
	assert.Equal(t, errorbank.KindBadRequest, kindOf(t, err))
}

func TestCreateOrderRetriesOnCodeCollision(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)
	fx.store.createErrs = []error{orderrepo.ErrCodeTaken, orderrepo.ErrCodeTaken}

	resp, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 3, fx.store.createCalls)
	assert.NotEmpty(t, resp.OrderCode)
}

func TestCreateOrderCodeExhaustion(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)
	fx.store.createErrs = []error{
		orderrepo.ErrCodeTaken, orderrepo.ErrCodeTaken, orderrepo.ErrCodeTaken,
		orderrepo.ErrCodeTaken, orderrepo.ErrCodeTaken,
	}

	_, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	assert.Equal(t, errorbank.KindInternal, kindOf(t, err))
	assert.Equal(t, maxCodeAttempts, fx.store.createCalls)
}

// uniqueCodeStore enforces order code uniqueness under a lock so that
// many goroutines can create orders against it at once.
type uniqueCodeStore struct {
	mu     sync.Mutex
	nextID int64
	codes  map[string]struct{}
	orders map[int64]*entity.Order
}

func newUniqueCodeStore() *uniqueCodeStore {
	return &uniqueCodeStore{
		codes:  make(map[string]struct{}),
		orders: make(map[int64]*entity.Order),
	}
}

func (s *uniqueCodeStore) Create(_ context.Context, order *entity.Order, hist *entity.StatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[order.OrderCode]; taken {
		return orderrepo.ErrCodeTaken
	}
	s.codes[order.OrderCode] = struct{}{}
	s.nextID++
	order.ID = s.nextID
	copied := *order
	s.orders[order.ID] = &copied
	hist.OrderID = order.ID
	return nil
}

func (s *uniqueCodeStore) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *uniqueCodeStore) ListByClient(context.Context, int64) ([]entity.Order, error) {
	return nil, nil
}

func (s *uniqueCodeStore) ListAll(context.Context) ([]entity.Order, error) {
	return nil, nil
}

func (s *uniqueCodeStore) Transition(context.Context, int64, entity.OrderStatus, entity.OrderStatus, func(*entity.Order), *entity.StatusHistory) (*entity.Order, error) {
	return nil, orderrepo.ErrNotFound
}

func (s *uniqueCodeStore) History(context.Context, int64) ([]entity.StatusHistory, error) {
	return nil, nil
}

type nopDispatcher struct{}

func (nopDispatcher) Notify(context.Context, notification.OrderEvent) {}

func TestCreateOrderConcurrentCodeUniqueness(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := newUniqueCodeStore()
	menus := &fakeMenuStore{menus: map[int64]*entity.WeeklyMenu{
		1: {ID: 1, Status: entity.MenuPublished, PricePerMeal: entity.CentsFromUnits(10)},
	}}
	svc := &Service{
		orders:     store,
		menus:      menus,
		cache:      stubCache{},
		cacheTTL:   time.Minute,
		logger:     zap.NewNop(),
		dispatcher: nopDispatcher{},
		now:        func() time.Time { return now },
	}

	const creators = 32
	errs := make([]error, creators)
	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), int64(100+i), createRequest(now.Add(72*time.Hour)))
		}(i)
	}
	wg.Wait()

	// Every creator either got an order or failed closed with a typed error.
	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var appErr *errorbank.AppError
		require.ErrorAs(t, err, &appErr)
	}
	assert.Equal(t, succeeded, len(store.orders))

	seen := make(map[string]struct{}, len(store.orders))
	for _, order := range store.orders {
		_, dup := seen[order.OrderCode]
		assert.False(t, dup, "duplicate order code %s", order.OrderCode)
		seen[order.OrderCode] = struct{}{}
	}
}

func TestGetOrderOwnership(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)

	_, err = fx.svc.Get(context.Background(), created.ID, 8)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, kindOf(t, err))
	assert.Equal(t, 400, errorbank.From(err).StatusCode())

	resp, err := fx.svc.Get(context.Background(), created.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, created.OrderCode, resp.OrderCode)
}

func TestGetOrderNotFound(t *testing.T) {
	fx := newFixture(time.Now())
	_, err := fx.svc.Get(context.Background(), 404, 7)
	assert.Equal(t, errorbank.KindNotFound, kindOf(t, err))
}

func TestUpdateStatusHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)
	fx.store.orders[created.ID].Status = entity.StatusPaid

	resp, err := fx.svc.UpdateStatus(context.Background(), created.ID, 1, dto.UpdateOrderStatusRequest{
		Status: "IN_PREPARATION",
		Notes:  "Kitchen started",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInPreparation, resp.Status)

	require.NotEmpty(t, resp.StatusHistory)
	latest := resp.StatusHistory[0]
	assert.Equal(t, entity.StatusInPreparation, latest.NewStatus)
	require.NotNil(t, latest.PreviousStatus)
	assert.Equal(t, entity.StatusPaid, *latest.PreviousStatus)
	assert.Equal(t, "Kitchen started", latest.Notes)

	last := fx.dispatcher.events[len(fx.dispatcher.events)-1]
	assert.Equal(t, notification.EventOrderPreparing, last.EventType)
}

func TestFullLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)
	fx.store.orders[created.ID].Status = entity.StatusPaid

	for _, next := range []string{"IN_PREPARATION", "READY_FOR_PICKUP", "COMPLETED"} {
		_, err := fx.svc.UpdateStatus(context.Background(), created.ID, 1, dto.UpdateOrderStatusRequest{Status: next})
		require.NoError(t, err, "transition to %s", next)
	}

	order, err := fx.store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, order.Status)
	assert.Len(t, fx.store.histories[created.ID], 4)

	for _, next := range []string{"PAID", "IN_PREPARATION", "CANCELLED", "PENDING_PAYMENT"} {
		_, err := fx.svc.UpdateStatus(context.Background(), created.ID, 1, dto.UpdateOrderStatusRequest{Status: next})
		assert.Equal(t, errorbank.KindInvalidTransition, kindOf(t, err), "move to %s from COMPLETED", next)
	}
	assert.Len(t, fx.store.histories[created.ID], 4)
}

func TestUpdateStatusRejectsIllegalMove(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), created.ID, 1, dto.UpdateOrderStatusRequest{Status: "COMPLETED"})
	assert.Equal(t, errorbank.KindInvalidTransition, kindOf(t, err))

	order, getErr := fx.store.GetByID(context.Background(), created.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entity.StatusPendingPayment, order.Status)
	assert.Len(t, fx.store.histories[created.ID], 1)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	fx := newFixture(time.Now())
	_, err := fx.svc.UpdateStatus(context.Background(), 1, 1, dto.UpdateOrderStatusRequest{Status: "SHIPPED"})
	assert.Equal(t, errorbank.KindBadRequest, kindOf(t, err))
}

func TestUpdateStatusConcurrentConflict(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)
	fx.store.orders[created.ID].Status = entity.StatusPaid

	// Another writer wins between the read and the compare-and-swap.
	fx.svc.orders = raceStore{fakeOrderStore: fx.store, flipTo: entity.StatusCancelled}

	_, err = fx.svc.UpdateStatus(context.Background(), created.ID, 1, dto.UpdateOrderStatusRequest{Status: "IN_PREPARATION"})
	assert.Equal(t, errorbank.KindInvalidTransition, kindOf(t, err))
}

type raceStore struct {
	*fakeOrderStore
	flipTo entity.OrderStatus
}

func (r raceStore) Transition(ctx context.Context, id int64, from, to entity.OrderStatus, apply func(*entity.Order), hist *entity.StatusHistory) (*entity.Order, error) {
	r.orders[id].Status = r.flipTo
	return r.fakeOrderStore.Transition(ctx, id, from, to, apply, hist)
}

func TestCancelOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)

	resp, err := fx.svc.Cancel(context.Background(), created.ID, 7, dto.CancelOrderRequest{Reason: "change of plans"})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusCancelled, resp.Status)
	assert.Equal(t, "change of plans", resp.CancellationReason)
	require.NotNil(t, resp.CancelledAt)
	assert.True(t, resp.CancelledAt.Equal(now))

	latest := resp.StatusHistory[0]
	require.NotNil(t, latest.ChangedBy)
	assert.Equal(t, int64(7), *latest.ChangedBy)

	last := fx.dispatcher.events[len(fx.dispatcher.events)-1]
	assert.Equal(t, notification.EventOrderCancelled, last.EventType)
}

func TestCancelInsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(23*time.Hour)))
	require.NoError(t, err)

	_, err = fx.svc.Cancel(context.Background(), created.ID, 7, dto.CancelOrderRequest{Reason: "too late"})
	assert.Equal(t, errorbank.KindPolicyViolation, kindOf(t, err))

	order, getErr := fx.store.GetByID(context.Background(), created.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entity.StatusPendingPayment, order.Status)
}

func TestCancelExactlyAtBoundary(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	// Pickup exactly 24h out: now is not after pickup-24h, so allowed.
	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(24*time.Hour)))
	require.NoError(t, err)

	resp, err := fx.svc.Cancel(context.Background(), created.ID, 7, dto.CancelOrderRequest{Reason: "boundary"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, resp.Status)
}

func TestCancelStateChecks(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	cases := map[string]struct {
		status entity.OrderStatus
		kind   errorbank.Kind
	}{
		"in preparation":   {entity.StatusInPreparation, errorbank.KindInvalidState},
		"ready for pickup": {entity.StatusReadyForPickup, errorbank.KindInvalidState},
		"completed":        {entity.StatusCompleted, errorbank.KindInvalidState},
		"cancelled":        {entity.StatusCancelled, errorbank.KindInvalidState},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(now)
			created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
			require.NoError(t, err)
			fx.store.orders[created.ID].Status = tc.status

			_, err = fx.svc.Cancel(context.Background(), created.ID, 7, dto.CancelOrderRequest{Reason: "x"})
			assert.Equal(t, tc.kind, kindOf(t, err))
		})
	}
}

func TestCancelOwnership(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)

	_, err = fx.svc.Cancel(context.Background(), created.ID, 99, dto.CancelOrderRequest{Reason: "not mine"})
	assert.Equal(t, errorbank.KindForbidden, kindOf(t, err))
}

func TestPaidOrderCanCancel(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	created, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)
	fx.store.orders[created.ID].Status = entity.StatusPaid

	resp, err := fx.svc.Cancel(context.Background(), created.ID, 7, dto.CancelOrderRequest{Reason: "refund me"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, resp.Status)
}

func TestListByClientFiltersOwner(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	fx := newFixture(now)

	_, err := fx.svc.Create(context.Background(), 7, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)
	_, err = fx.svc.Create(context.Background(), 8, createRequest(now.Add(72*time.Hour)))
	require.NoError(t, err)

	mine, err := fx.svc.ListByClient(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := fx.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
