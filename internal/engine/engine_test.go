package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/betledger/internal/adapters/custody"
	"github.com/alejandrodnm/betledger/internal/adapters/storage"
	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/engine"
	"github.com/alejandrodnm/betledger/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner  = domain.Participant("owner")
	alice  = domain.Participant("alice")
	bob    = domain.Participant("bob")
	carol  = domain.Participant("carol")
	escrow = domain.Participant("escrow")
)

// fakeClock es el oráculo de tiempo de los tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordSink acumula las observaciones emitidas.
type recordSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordSink) Emit(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordSink) byType(t domain.EventType) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	eng     *engine.Engine
	store   *storage.Memory
	custody *custody.Memory
	clock   *fakeClock
	sink    *recordSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemory()
	ledger := custody.NewMemory(escrow)
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	sink := &recordSink{}

	eng := engine.New(store, ledger, ports.SingleAuthority(owner), clock, sink, engine.Options{
		MinStake:       10,
		GracePeriod:    30 * 24 * time.Hour,
		CustodyAccount: escrow,
	})

	for _, p := range []domain.Participant{owner, alice, bob, carol} {
		ledger.Mint(p, 1_000_000)
	}
	return &fixture{eng: eng, store: store, custody: ledger, clock: clock, sink: sink}
}

func (f *fixture) balance(t *testing.T, p domain.Participant) domain.Amount {
	t.Helper()
	bal, err := f.custody.BalanceOf(context.Background(), p)
	require.NoError(t, err)
	return bal
}

// ---- stake ----

func TestStake_CreatesMarketOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "new-market", true, 100))
	require.NoError(t, f.eng.Stake(ctx, bob, "new-market", false, 200))

	n, err := f.eng.MarketCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.sink.byType(domain.EventMarketCreated), 1)

	mkt, err := f.eng.MarketInfo(ctx, "new-market")
	require.NoError(t, err)
	assert.True(t, mkt.Exists)
	assert.Equal(t, domain.Amount(100), mkt.TotalYes)
	assert.Equal(t, domain.Amount(200), mkt.TotalNo)
}

func TestStake_AccumulatesPerParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 50))
	require.NoError(t, f.eng.Stake(ctx, alice, "m", false, 25))

	st, err := f.eng.StakeInfo(ctx, "m", alice)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(150), st.AmountYes)
	assert.Equal(t, domain.Amount(25), st.AmountNo)
	assert.False(t, st.Claimed)
}

func TestStake_EmptySlug(t *testing.T) {
	f := newFixture(t)
	err := f.eng.Stake(context.Background(), alice, "", true, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidSlug)
}

func TestStake_BelowMinimum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.eng.Stake(ctx, alice, "m", true, 9)
	assert.ErrorIs(t, err, domain.ErrStakeTooSmall)

	// Nada de estado parcial: ni mercado ni movimiento de custodia.
	n, _ := f.eng.MarketCount(ctx)
	assert.Equal(t, 0, n)
	assert.Equal(t, domain.Amount(1_000_000), f.balance(t, alice))
}

func TestStake_AfterDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	deadline := f.clock.Now().Add(time.Hour)
	require.NoError(t, f.eng.SetDeadline(ctx, owner, "m", deadline))

	// Justo en el deadline todavía vale.
	f.clock.Advance(time.Hour)
	require.NoError(t, f.eng.Stake(ctx, bob, "m", false, 100))

	// Un segundo después, no.
	f.clock.Advance(time.Second)
	err := f.eng.Stake(ctx, carol, "m", false, 100)
	assert.ErrorIs(t, err, domain.ErrMarketExpired)
}

func TestStake_ResolvedAndVoidedMarkets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "resolved", true, 100))
	require.NoError(t, f.eng.Stake(ctx, bob, "resolved", false, 100))
	require.NoError(t, f.eng.Resolve(ctx, owner, "resolved", true))
	assert.ErrorIs(t, f.eng.Stake(ctx, alice, "resolved", true, 100), domain.ErrAlreadyResolved)

	require.NoError(t, f.eng.Stake(ctx, alice, "voided", true, 100))
	require.NoError(t, f.eng.Cancel(ctx, owner, "voided"))
	assert.ErrorIs(t, f.eng.Stake(ctx, alice, "voided", true, 100), domain.ErrMarketVoided)
}

func TestStake_CustodyFailureLeavesNoState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.custody.FailNext(custody.ErrInsufficientFunds)
	err := f.eng.Stake(ctx, alice, "m", true, 100)
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)

	n, _ := f.eng.MarketCount(ctx)
	assert.Equal(t, 0, n)
	out, _ := f.eng.Outstanding(ctx)
	assert.Equal(t, domain.Amount(0), out)
}

// ---- batch ----

func TestBatchStake_SingleCustodyPull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.eng.BatchStake(ctx, alice, []domain.StakeRequest{
		{Slug: "a", Yes: true, Amount: 100},
		{Slug: "b", Yes: false, Amount: 200},
		{Slug: "a", Yes: false, Amount: 50},
	})
	require.NoError(t, err)

	in, _ := f.custody.TransferCalls()
	assert.Equal(t, 1, in, "un único pull agregado")
	assert.Equal(t, domain.Amount(350), f.balance(t, escrow))

	mkt, err := f.eng.MarketInfo(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(100), mkt.TotalYes)
	assert.Equal(t, domain.Amount(50), mkt.TotalNo)
}

func TestBatchStake_Atomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.eng.BatchStake(ctx, alice, []domain.StakeRequest{
		{Slug: "good", Yes: true, Amount: 100},
		{Slug: "bad", Yes: true, Amount: 5}, // bajo el mínimo
		{Slug: "other", Yes: false, Amount: 100},
	})
	assert.ErrorIs(t, err, domain.ErrStakeTooSmall)

	// Cero movimiento de custodia y cero estado para las entradas válidas.
	in, _ := f.custody.TransferCalls()
	assert.Equal(t, 0, in)
	n, _ := f.eng.MarketCount(ctx)
	assert.Equal(t, 0, n)
	assert.Equal(t, domain.Amount(1_000_000), f.balance(t, alice))
}

func TestBatchStake_DuplicateSlugCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.eng.BatchStake(ctx, alice, []domain.StakeRequest{
		{Slug: "dup", Yes: true, Amount: 100},
		{Slug: "dup", Yes: true, Amount: 100},
	})
	require.NoError(t, err)

	n, _ := f.eng.MarketCount(ctx)
	assert.Equal(t, 1, n)
	assert.Len(t, f.sink.byType(domain.EventMarketCreated), 1)

	mkt, err := f.eng.MarketInfo(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(200), mkt.TotalYes)
}

func TestBatchStake_OverflowingSumRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Dos entradas válidas por separado cuya suma desborda el rango
	// representable: si el total se enrollara, el pull único movería solo
	// el resto enrollado contra pools que registran el derecho completo.
	huge := domain.MaxAmount - 10
	f.custody.Mint(alice, huge)

	err := f.eng.BatchStake(ctx, alice, []domain.StakeRequest{
		{Slug: "m1", Yes: true, Amount: huge},
		{Slug: "m2", Yes: true, Amount: 1000},
	})
	assert.ErrorIs(t, err, domain.ErrAmountOverflow)

	// Cero pull de custodia y cero estado: ningún derecho sin respaldo.
	in, _ := f.custody.TransferCalls()
	assert.Equal(t, 0, in)
	n, _ := f.eng.MarketCount(ctx)
	assert.Equal(t, 0, n)
	out, _ := f.eng.Outstanding(ctx)
	assert.Equal(t, domain.Amount(0), out)
}

func TestStake_PoolOverflowRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	huge := domain.MaxAmount - 10
	f.custody.Mint(alice, huge)

	// Un solo importe fuera del rango acotado se rechaza de entrada.
	assert.ErrorIs(t, f.eng.Stake(ctx, alice, "m", true, domain.MaxAmount+1), domain.ErrAmountOverflow)

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, huge))
	assert.ErrorIs(t, f.eng.Stake(ctx, bob, "m", true, 1000), domain.ErrAmountOverflow)

	// El pool queda como estaba y bob no pierde custodia.
	mkt, err := f.eng.MarketInfo(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, huge, mkt.TotalYes)
	assert.Equal(t, domain.Amount(1_000_000), f.balance(t, bob))
}

func TestBatchStake_Empty(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.BatchStake(context.Background(), alice, nil))
	in, _ := f.custody.TransferCalls()
	assert.Equal(t, 0, in)
}

// ---- resolve ----

func TestResolve_OnlyAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	assert.ErrorIs(t, f.eng.Resolve(ctx, alice, "m", true), domain.ErrNotAuthority)
	require.NoError(t, f.eng.Resolve(ctx, owner, "m", true))
}

func TestResolve_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.eng.Resolve(ctx, owner, "ghost", true), domain.ErrMarketNotFound)

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	require.NoError(t, f.eng.Stake(ctx, bob, "m", false, 100))
	require.NoError(t, f.eng.Resolve(ctx, owner, "m", true))
	assert.ErrorIs(t, f.eng.Resolve(ctx, owner, "m", false), domain.ErrAlreadyResolved)

	require.NoError(t, f.eng.Stake(ctx, alice, "c", true, 100))
	require.NoError(t, f.eng.Cancel(ctx, owner, "c"))
	assert.ErrorIs(t, f.eng.Resolve(ctx, owner, "c", true), domain.ErrMarketVoided)
}

func TestResolve_AutoVoidOnEmptyWinningSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Solo hay stake en YES; resolver NO deja el pool ganador vacío.
	require.NoError(t, f.eng.Stake(ctx, alice, "one-sided", true, 10))
	require.NoError(t, f.eng.Resolve(ctx, owner, "one-sided", false))

	mkt, err := f.eng.MarketInfo(ctx, "one-sided")
	require.NoError(t, err)
	assert.True(t, mkt.Resolved)
	assert.True(t, mkt.Cancelled)

	_, err = f.eng.Claim(ctx, alice, "one-sided")
	assert.ErrorIs(t, err, domain.ErrMarketVoided)

	refunded, err := f.eng.Refund(ctx, alice, "one-sided")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(10), refunded)
	assert.Equal(t, domain.Amount(1_000_000), f.balance(t, alice))
}

// ---- claim ----

func TestClaim_Proportionality(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// El ejemplo canónico: YES A=30, B=10; NO owner=40. Resuelve YES.
	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 30))
	require.NoError(t, f.eng.Stake(ctx, bob, "m", true, 10))
	require.NoError(t, f.eng.Stake(ctx, owner, "m", false, 40))
	require.NoError(t, f.eng.Resolve(ctx, owner, "m", true))

	payoutA, err := f.eng.Claim(ctx, alice, "m")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(60), payoutA)

	payoutB, err := f.eng.Claim(ctx, bob, "m")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(20), payoutB)

	assert.Equal(t, domain.Amount(1_000_030), f.balance(t, alice))
	assert.Equal(t, domain.Amount(1_000_010), f.balance(t, bob))
	assert.Equal(t, domain.Amount(0), f.balance(t, escrow))
}

func TestClaim_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.Claim(ctx, alice, "ghost")
	assert.ErrorIs(t, err, domain.ErrMarketNotFound)

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	_, err = f.eng.Claim(ctx, alice, "m")
	assert.ErrorIs(t, err, domain.ErrNotResolved)

	require.NoError(t, f.eng.Stake(ctx, bob, "m", false, 100))
	require.NoError(t, f.eng.Resolve(ctx, owner, "m", true))

	// Lado perdedor y no participante: nada que cobrar.
	_, err = f.eng.Claim(ctx, bob, "m")
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
	_, err = f.eng.Claim(ctx, carol, "m")
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
}

func TestClaim_NoDoublePayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	require.NoError(t, f.eng.Stake(ctx, bob, "m", false, 100))
	require.NoError(t, f.eng.Resolve(ctx, owner, "m", true))

	_, err := f.eng.Claim(ctx, alice, "m")
	require.NoError(t, err)
	_, err = f.eng.Claim(ctx, alice, "m")
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// El stake histórico sigue legible tras el pago (auditoría).
	st, err := f.eng.StakeInfo(ctx, "m", alice)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(100), st.AmountYes)
	assert.True(t, st.Claimed)
}

func TestClaim_TransferFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	require.NoError(t, f.eng.Stake(ctx, bob, "m", false, 100))
	require.NoError(t, f.eng.Resolve(ctx, owner, "m", true))

	f.custody.FailNext(custody.ErrInsufficientFunds)
	_, err := f.eng.Claim(ctx, alice, "m")
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)

	// Rollback completo: el flag vuelve a false y el claim posterior paga.
	st, err := f.eng.StakeInfo(ctx, "m", alice)
	require.NoError(t, err)
	assert.False(t, st.Claimed)

	payout, err := f.eng.Claim(ctx, alice, "m")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(200), payout)
}

// ---- refund ----

func TestRefund_AfterExplicitCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 60))
	require.NoError(t, f.eng.Stake(ctx, alice, "m", false, 40))
	require.NoError(t, f.eng.Cancel(ctx, owner, "m"))

	// Refund es outcome-agnóstico: devuelve ambos lados enteros.
	amount, err := f.eng.Refund(ctx, alice, "m")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(100), amount)

	_, err = f.eng.Refund(ctx, alice, "m")
	assert.ErrorIs(t, err, domain.ErrNothingToRefund)
}

func TestRefund_GracePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	require.NoError(t, f.eng.Stake(ctx, bob, "m", false, 100))
	deadline := f.clock.Now().Add(time.Hour)
	require.NoError(t, f.eng.SetDeadline(ctx, owner, "m", deadline))

	// Dentro de la gracia el refund no está disponible.
	f.clock.Advance(2 * time.Hour)
	_, err := f.eng.Refund(ctx, alice, "m")
	assert.ErrorIs(t, err, domain.ErrRefundNotAvailable)

	// Pasada la gracia, el primer refund materializa la anulación.
	f.clock.Advance(30 * 24 * time.Hour)
	amount, err := f.eng.Refund(ctx, alice, "m")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(100), amount)

	mkt, err := f.eng.MarketInfo(ctx, "m")
	require.NoError(t, err)
	assert.True(t, mkt.Cancelled)

	// Resolución tardía cerrada para siempre.
	assert.ErrorIs(t, f.eng.Resolve(ctx, owner, "m", true), domain.ErrMarketVoided)

	// El segundo refund paga pero NO re-emite la anulación.
	_, err = f.eng.Refund(ctx, bob, "m")
	require.NoError(t, err)
	assert.Len(t, f.sink.byType(domain.EventCancelled), 1)
}

func TestRefund_NotAvailableWhileOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	_, err := f.eng.Refund(ctx, alice, "m")
	assert.ErrorIs(t, err, domain.ErrRefundNotAvailable)
}

func TestRefund_TransferFailureRollsBackLazyVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	deadline := f.clock.Now().Add(time.Hour)
	require.NoError(t, f.eng.SetDeadline(ctx, owner, "m", deadline))
	f.clock.Advance(31*24*time.Hour + 2*time.Hour)

	f.custody.FailNext(custody.ErrInsufficientFunds)
	_, err := f.eng.Refund(ctx, alice, "m")
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)

	// La anulación perezosa también se revierte: cero efecto parcial.
	mkt, err := f.eng.MarketInfo(ctx, "m")
	require.NoError(t, err)
	assert.False(t, mkt.Cancelled)
	assert.Empty(t, f.sink.byType(domain.EventCancelled))

	// Reintento: ahora sí, y la anulación se materializa una vez.
	amount, err := f.eng.Refund(ctx, alice, "m")
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(100), amount)
	assert.Len(t, f.sink.byType(domain.EventCancelled), 1)
}

// ---- solvency ----

func TestSolvency_DustStaysInCustody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Stakes primos para forzar truncado: pool 131, ganador 24.
	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 11))
	require.NoError(t, f.eng.Stake(ctx, bob, "m", true, 13))
	require.NoError(t, f.eng.Stake(ctx, carol, "m", false, 107))
	require.NoError(t, f.eng.Resolve(ctx, owner, "m", true))

	payoutA, err := f.eng.Claim(ctx, alice, "m")
	require.NoError(t, err)
	payoutB, err := f.eng.Claim(ctx, bob, "m")
	require.NoError(t, err)

	total := domain.Amount(131)
	assert.LessOrEqual(t, payoutA+payoutB, total)
	// floor(11*131/24)=60, floor(13*131/24)=70 → 1 unidad de polvo.
	assert.Equal(t, domain.Amount(60), payoutA)
	assert.Equal(t, domain.Amount(70), payoutB)
	assert.Equal(t, domain.Amount(1), f.balance(t, escrow))
}

// ---- admin ----

func TestSetDeadline_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := f.clock.Now().Add(time.Hour)

	assert.ErrorIs(t, f.eng.SetDeadline(ctx, alice, "m", deadline), domain.ErrNotAuthority)
	assert.ErrorIs(t, f.eng.SetDeadline(ctx, owner, "ghost", deadline), domain.ErrMarketNotFound)

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	require.NoError(t, f.eng.Stake(ctx, bob, "m", false, 100))
	require.NoError(t, f.eng.SetDeadline(ctx, owner, "m", deadline))

	// Limpiar el deadline con zero time.
	require.NoError(t, f.eng.SetDeadline(ctx, owner, "m", time.Time{}))
	mkt, err := f.eng.MarketInfo(ctx, "m")
	require.NoError(t, err)
	assert.False(t, mkt.HasDeadline())

	require.NoError(t, f.eng.Resolve(ctx, owner, "m", true))
	assert.ErrorIs(t, f.eng.SetDeadline(ctx, owner, "m", deadline), domain.ErrAlreadyResolved)
}

func TestCancel_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 100))
	assert.ErrorIs(t, f.eng.Cancel(ctx, alice, "m"), domain.ErrNotAuthority)

	require.NoError(t, f.eng.Cancel(ctx, owner, "m"))
	assert.ErrorIs(t, f.eng.Cancel(ctx, owner, "m"), domain.ErrMarketVoided)

	require.NoError(t, f.eng.Stake(ctx, alice, "r", true, 100))
	require.NoError(t, f.eng.Stake(ctx, bob, "r", false, 100))
	require.NoError(t, f.eng.Resolve(ctx, owner, "r", true))
	assert.ErrorIs(t, f.eng.Cancel(ctx, owner, "r"), domain.ErrAlreadyResolved)
}

func TestSweep_ProtectsOutstanding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "m", true, 500))

	// Fondos extraviados enviados directamente a la cuenta de custodia.
	f.custody.Mint(escrow, 300)

	assert.ErrorIs(t, f.eng.Sweep(ctx, alice, f.custody, owner, 100), domain.ErrNotAuthority)

	// Solo el excedente por encima de outstanding es barrible.
	assert.ErrorIs(t, f.eng.Sweep(ctx, owner, f.custody, owner, 301), domain.ErrSweepExceedsSurplus)
	require.NoError(t, f.eng.Sweep(ctx, owner, f.custody, owner, 300))

	// Lo debido a alice sigue intacto.
	assert.Equal(t, domain.Amount(500), f.balance(t, escrow))
	out, _ := f.eng.Outstanding(ctx)
	assert.Equal(t, domain.Amount(500), out)
}

func TestSweep_ForeignLedgerUnrestricted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := custody.NewMemory(escrow)
	foreign.Mint(escrow, 250)

	require.NoError(t, f.eng.Sweep(ctx, owner, foreign, owner, 250))
	bal, err := foreign.BalanceOf(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(250), bal)
}

// ---- queries ----

func TestMarketInfo_UnknownIsZeroValued(t *testing.T) {
	f := newFixture(t)

	mkt, err := f.eng.MarketInfo(context.Background(), "never-created")
	require.NoError(t, err)
	assert.False(t, mkt.Exists)
	assert.Equal(t, domain.Amount(0), mkt.TotalPool())
}

func TestMarketByIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.Stake(ctx, alice, "first", true, 100))
	require.NoError(t, f.eng.Stake(ctx, alice, "second", true, 100))

	key, slug, err := f.eng.MarketByIndex(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "first", slug)
	assert.Equal(t, domain.NewMarketKey("first"), key)

	_, _, err = f.eng.MarketByIndex(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
}
