// Package engine implementa la máquina de estados de liquidación:
// stake, resolve, claim, refund y las operaciones de administración.
//
// Modelo de ejecución: un solo escritor. Cada operación que muta estado
// se serializa bajo un mutex, valida todo, mueve custodia en el orden
// que exige cada camino, y aplica UN changeset atómico al store. Ningún
// estado intermedio es visible para otra operación.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
	"github.com/alejandrodnm/betledger/internal/registry"
)

const (
	// DefaultMinStake es el suelo anti-polvo por defecto.
	DefaultMinStake = domain.Amount(1000)
	// DefaultGracePeriod es la ventana tras el deadline en la que la
	// autoridad aún puede resolver antes de que se abran los refunds.
	DefaultGracePeriod = 30 * 24 * time.Hour
)

// Options configura el engine.
type Options struct {
	MinStake    domain.Amount
	GracePeriod time.Duration
	// CustodyAccount es la identidad bajo la que el ledger de custodia
	// mantiene el pool del engine; Sweep la usa para medir el excedente.
	CustodyAccount domain.Participant
}

// Engine es el motor de liquidación.
type Engine struct {
	mu      sync.Mutex
	store   ports.StateStore
	custody ports.CustodyLedger
	auth    ports.AuthorityCheck
	clock   ports.Clock
	sink    ports.EventSink
	reg     *registry.Registry
	opts    Options
}

// New crea el engine. sink puede ser nil (sin observaciones).
func New(store ports.StateStore, custody ports.CustodyLedger, auth ports.AuthorityCheck, clock ports.Clock, sink ports.EventSink, opts Options) *Engine {
	if opts.MinStake == 0 {
		opts.MinStake = DefaultMinStake
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.CustodyAccount == "" {
		opts.CustodyAccount = "escrow"
	}
	return &Engine{
		store:   store,
		custody: custody,
		auth:    auth,
		clock:   clock,
		sink:    sink,
		reg:     registry.New(store),
		opts:    opts,
	}
}

// emit entrega una observación al sink. Los errores del sink se
// loguean y se descartan: los eventos no participan en la corrección.
func (e *Engine) emit(ctx context.Context, ev domain.Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Emit(ctx, ev); err != nil {
		slog.Warn("event sink failed", "type", ev.Type, "market", ev.Slug, "err", err)
	}
}

func (e *Engine) requireAuthority(caller domain.Participant) error {
	if !e.auth.IsAuthority(caller) {
		return domain.ErrNotAuthority
	}
	return nil
}

// ---- stake ----

// Stake compromete amount al lado yes/no del mercado slug. Crea el
// mercado si es su primer toque. El pull de custodia ocurre antes de
// registrar nada; si falla, no queda ningún estado parcial.
func (e *Engine) Stake(ctx context.Context, caller domain.Participant, slug string, yes bool, amount domain.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stakeLocked(ctx, caller, []domain.StakeRequest{{Slug: slug, Yes: yes, Amount: amount}})
}

// BatchStake aplica varias entradas con UN solo pull de custodia por la
// suma exacta de los importes validados. Si cualquier entrada es
// inválida, el batch entero se rechaza antes de mover custodia.
func (e *Engine) BatchStake(ctx context.Context, caller domain.Participant, reqs []domain.StakeRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stakeLocked(ctx, caller, reqs)
}

// pendingStakes acumula el estado en vuelo de un batch: entradas
// repetidas del mismo slug dentro del batch ven las escrituras de las
// entradas anteriores, no el estado del store.
type pendingStakes struct {
	markets map[domain.MarketKey]domain.Market
	stakes  map[domain.MarketKey]domain.Stake
	order   []domain.MarketKey // primer toque, para changeset y eventos
	created map[domain.MarketKey]bool
}

func (e *Engine) stakeLocked(ctx context.Context, caller domain.Participant, reqs []domain.StakeRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	now := e.clock.Now()
	pend := pendingStakes{
		markets: make(map[domain.MarketKey]domain.Market),
		stakes:  make(map[domain.MarketKey]domain.Stake),
		created: make(map[domain.MarketKey]bool),
	}

	// Fase 1: validar TODO y computar el estado resultante en memoria.
	// La suma agregada va con SafeAdd: si desborda, el pull único ya no
	// podría igualar la suma exacta de las entradas y el batch se rechaza.
	var total domain.Amount
	for _, req := range reqs {
		if err := e.applyStakeEntry(ctx, &pend, caller, now, req); err != nil {
			return err
		}
		t, err := domain.SafeAdd(total, req.Amount)
		if err != nil {
			return err
		}
		total = t
	}

	// Fase 2: un único movimiento de custodia por la suma exacta.
	if err := e.custody.TransferIn(ctx, caller, total); err != nil {
		return fmt.Errorf("engine: custody transfer-in: %w", err)
	}

	// Fase 3: commit atómico de toda la contabilidad.
	cs := ports.Changeset{OutstandingDelta: int64(total)}
	for _, key := range pend.order {
		cs.Markets = append(cs.Markets, ports.MarketRecord{Key: key, Market: pend.markets[key]})
		cs.Stakes = append(cs.Stakes, ports.StakeRecord{Key: key, Participant: caller, Stake: pend.stakes[key]})
	}
	if err := e.store.Apply(ctx, cs); err != nil {
		return fmt.Errorf("engine: commit stake: %w", err)
	}

	for _, key := range pend.order {
		mkt := pend.markets[key]
		if pend.created[key] {
			e.emit(ctx, domain.NewEvent(domain.EventMarketCreated, now, mkt.Slug))
		}
	}
	for _, req := range reqs {
		ev := domain.NewEvent(domain.EventStaked, now, req.Slug)
		ev.Participant = caller
		ev.Yes = req.Yes
		ev.Amount = req.Amount
		e.emit(ctx, ev)
	}
	return nil
}

// applyStakeEntry valida una entrada contra el estado en vuelo y
// acumula sus escrituras en pend. No toca custodia ni el store.
func (e *Engine) applyStakeEntry(ctx context.Context, pend *pendingStakes, caller domain.Participant, now time.Time, req domain.StakeRequest) error {
	key, err := e.reg.Key(req.Slug)
	if err != nil {
		return err
	}
	if req.Amount < e.opts.MinStake {
		return domain.ErrStakeTooSmall
	}

	mkt, seen := pend.markets[key]
	if !seen {
		var created bool
		key, mkt, created, err = e.reg.GetOrCreate(ctx, req.Slug)
		if err != nil {
			return err
		}
		pend.order = append(pend.order, key)
		pend.created[key] = created
		st, _, err := e.store.Stake(ctx, key, caller)
		if err != nil {
			return fmt.Errorf("engine: load stake: %w", err)
		}
		pend.stakes[key] = st
	}

	switch {
	case mkt.Resolved:
		return domain.ErrAlreadyResolved
	case mkt.Cancelled:
		return domain.ErrMarketVoided
	case mkt.ExpiredAt(now):
		return domain.ErrMarketExpired
	}

	// El crédito al pool va con SafeAdd; la posición individual está
	// acotada por su pool, así que no necesita su propio check.
	st := pend.stakes[key]
	if req.Yes {
		if mkt.TotalYes, err = domain.SafeAdd(mkt.TotalYes, req.Amount); err != nil {
			return err
		}
		st.AmountYes += req.Amount
	} else {
		if mkt.TotalNo, err = domain.SafeAdd(mkt.TotalNo, req.Amount); err != nil {
			return err
		}
		st.AmountNo += req.Amount
	}
	pend.markets[key] = mkt
	pend.stakes[key] = st
	return nil
}

// ---- resolve ----

// Resolve registra el resultado del mercado. Solo la autoridad. Si el
// pool ganador está vacío, el mercado se auto-anula en la misma
// transición: no hay a quién pagar, así que todos los stakers pasan a
// ser elegibles para refund en vez de dejar el pool atascado.
func (e *Engine) Resolve(ctx context.Context, caller domain.Participant, slug string, outcomeYes bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	key, mkt, err := e.loadMarket(ctx, slug)
	if err != nil {
		return err
	}
	if mkt.Resolved {
		return domain.ErrAlreadyResolved
	}
	if mkt.Cancelled {
		return domain.ErrMarketVoided
	}

	// El pool ganador se mide ANTES de tocar los flags.
	var winning domain.Amount
	if outcomeYes {
		winning = mkt.TotalYes
	} else {
		winning = mkt.TotalNo
	}

	mkt.Resolved = true
	mkt.OutcomeYes = outcomeYes
	autoVoid := winning == 0
	if autoVoid {
		mkt.Cancelled = true
	}

	if err := e.store.Apply(ctx, ports.Changeset{Markets: []ports.MarketRecord{{Key: key, Market: mkt}}}); err != nil {
		return fmt.Errorf("engine: commit resolve: %w", err)
	}

	now := e.clock.Now()
	ev := domain.NewEvent(domain.EventResolved, now, slug)
	ev.OutcomeYes = outcomeYes
	e.emit(ctx, ev)
	if autoVoid {
		e.emit(ctx, domain.NewEvent(domain.EventCancelled, now, slug))
	}
	return nil
}

// ---- claim ----

// Claim paga la parte proporcional del pool combinado al caller si su
// lado ganó. El flag claimed se commitea ANTES del transfer-out: una
// llamada reentrante durante el transfer ya lo ve puesto. Si el
// transfer falla, se revierte el commit y se propaga el error.
func (e *Engine) Claim(ctx context.Context, caller domain.Participant, slug string) (domain.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, mkt, err := e.loadMarket(ctx, slug)
	if err != nil {
		return 0, err
	}
	if mkt.Cancelled {
		return 0, domain.ErrMarketVoided
	}
	if !mkt.Resolved {
		return 0, domain.ErrNotResolved
	}

	st, ok, err := e.store.Stake(ctx, key, caller)
	if err != nil {
		return 0, fmt.Errorf("engine: load stake: %w", err)
	}
	if ok && st.Claimed {
		return 0, domain.ErrAlreadyClaimed
	}
	win := st.OnSide(mkt.OutcomeYes)
	if !ok || win == 0 {
		return 0, domain.ErrNothingToClaim
	}

	payout := domain.Payout(win, mkt.TotalPool(), mkt.WinningPool())
	prev := st
	st.Claimed = true

	if err := e.payOut(ctx, key, caller, st, prev, nil, payout); err != nil {
		return 0, err
	}

	ev := domain.NewEvent(domain.EventClaimed, e.clock.Now(), slug)
	ev.Participant = caller
	ev.Amount = payout
	e.emit(ctx, ev)
	return payout, nil
}

// ---- refund ----

// Refund devuelve el principal completo (ambos lados) si el mercado
// está anulado, o si expiró hace más de GracePeriod sin resolverse. En
// el segundo caso el primer refund materializa la anulación perezosa:
// Cancelled pasa a true en el mismo changeset, lo que cierra para
// siempre una resolución tardía.
func (e *Engine) Refund(ctx context.Context, caller domain.Participant, slug string) (domain.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	key, mkt, err := e.loadMarket(ctx, slug)
	if err != nil {
		return 0, err
	}
	if !mkt.RefundableAt(now, e.opts.GracePeriod) {
		return 0, domain.ErrRefundNotAvailable
	}

	st, ok, err := e.store.Stake(ctx, key, caller)
	if err != nil {
		return 0, fmt.Errorf("engine: load stake: %w", err)
	}
	if !ok || st.Total() == 0 || st.Claimed {
		return 0, domain.ErrNothingToRefund
	}

	// Materialización de la transición Voided por expiración. Solo el
	// primer refund elegible pasa por aquí; los siguientes ya leen
	// Cancelled=true del store, así que el evento no puede duplicarse.
	var voidRecord []ports.MarketRecord
	materialized := false
	if !mkt.Cancelled {
		mkt.Cancelled = true
		voidRecord = []ports.MarketRecord{{Key: key, Market: mkt}}
		materialized = true
	}

	amount := st.Total()
	prev := st
	st.Claimed = true

	if err := e.payOut(ctx, key, caller, st, prev, voidRecord, amount); err != nil {
		return 0, err
	}

	if materialized {
		e.emit(ctx, domain.NewEvent(domain.EventCancelled, now, slug))
	}
	ev := domain.NewEvent(domain.EventRefunded, now, slug)
	ev.Participant = caller
	ev.Amount = amount
	e.emit(ctx, ev)
	return amount, nil
}

// payOut ejecuta el camino común de claim/refund: commit del flag (y de
// los registros extra) antes del transfer-out, y commit compensatorio
// que restaura el estado previo si el transfer falla. Bajo el mutex del
// engine el estado intermedio no es observable por otras operaciones.
func (e *Engine) payOut(ctx context.Context, key domain.MarketKey, to domain.Participant, st, prev domain.Stake, extra []ports.MarketRecord, amount domain.Amount) error {
	cs := ports.Changeset{
		Markets:          extra,
		Stakes:           []ports.StakeRecord{{Key: key, Participant: to, Stake: st}},
		OutstandingDelta: -int64(amount),
	}
	if err := e.store.Apply(ctx, cs); err != nil {
		return fmt.Errorf("engine: commit payout: %w", err)
	}

	if err := e.custody.TransferOut(ctx, to, amount); err != nil {
		undo := ports.Changeset{
			Stakes:           []ports.StakeRecord{{Key: key, Participant: to, Stake: prev}},
			OutstandingDelta: int64(amount),
		}
		for _, rec := range extra {
			rec.Market.Cancelled = false
			undo.Markets = append(undo.Markets, rec)
		}
		if undoErr := e.store.Apply(ctx, undo); undoErr != nil {
			// Estado inconsistente irreparable: transfer fallido y
			// rollback fallido. Se loguea todo y se propaga el original.
			slog.Error("payout rollback failed", "market", key.Hex(), "participant", to, "err", undoErr)
		}
		return fmt.Errorf("engine: custody transfer-out: %w", err)
	}
	return nil
}

// ---- admin ----

// SetDeadline fija (o limpia, con zero time) el deadline del mercado.
func (e *Engine) SetDeadline(ctx context.Context, caller domain.Participant, slug string, deadline time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	key, mkt, err := e.loadMarket(ctx, slug)
	if err != nil {
		return err
	}
	if mkt.Resolved {
		return domain.ErrAlreadyResolved
	}
	if mkt.Cancelled {
		return domain.ErrMarketVoided
	}

	mkt.Deadline = deadline
	if err := e.store.Apply(ctx, ports.Changeset{Markets: []ports.MarketRecord{{Key: key, Market: mkt}}}); err != nil {
		return fmt.Errorf("engine: commit deadline: %w", err)
	}

	ev := domain.NewEvent(domain.EventDeadlineSet, e.clock.Now(), slug)
	ev.Deadline = deadline
	e.emit(ctx, ev)
	return nil
}

// Cancel anula el mercado explícitamente: bloquea staking, resolución y
// claims, y habilita refunds del principal.
func (e *Engine) Cancel(ctx context.Context, caller domain.Participant, slug string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	key, mkt, err := e.loadMarket(ctx, slug)
	if err != nil {
		return err
	}
	if mkt.Resolved {
		return domain.ErrAlreadyResolved
	}
	if mkt.Cancelled {
		return domain.ErrMarketVoided
	}

	mkt.Cancelled = true
	if err := e.store.Apply(ctx, ports.Changeset{Markets: []ports.MarketRecord{{Key: key, Market: mkt}}}); err != nil {
		return fmt.Errorf("engine: commit cancel: %w", err)
	}

	e.emit(ctx, domain.NewEvent(domain.EventCancelled, e.clock.Now(), slug))
	return nil
}

// Sweep recupera balances ajenos enviados por error a un ledger. Si el
// ledger barrido es el de custodia primario, solo puede liberar el
// excedente por encima de outstanding: lo debido a los participantes no
// es barrible. Ledgers ajenos no tienen restricción.
func (e *Engine) Sweep(ctx context.Context, caller domain.Participant, ledger ports.CustodyLedger, to domain.Participant, amount domain.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	if ledger == e.custody {
		bal, err := ledger.BalanceOf(ctx, e.opts.CustodyAccount)
		if err != nil {
			return fmt.Errorf("engine: custody balance: %w", err)
		}
		owed, err := e.store.Outstanding(ctx)
		if err != nil {
			return fmt.Errorf("engine: outstanding: %w", err)
		}
		if bal < owed || amount > bal-owed {
			return domain.ErrSweepExceedsSurplus
		}
	}
	if err := ledger.TransferOut(ctx, to, amount); err != nil {
		return fmt.Errorf("engine: sweep transfer-out: %w", err)
	}

	ev := domain.NewEvent(domain.EventAdminSweep, e.clock.Now(), "")
	ev.Participant = to
	ev.Amount = amount
	e.emit(ctx, ev)
	return nil
}

// loadMarket resuelve slug → (clave, mercado existente).
func (e *Engine) loadMarket(ctx context.Context, slug string) (domain.MarketKey, domain.Market, error) {
	key, err := e.reg.Key(slug)
	if err != nil {
		return domain.MarketKey{}, domain.Market{}, err
	}
	mkt, ok, err := e.store.Market(ctx, key)
	if err != nil {
		return key, domain.Market{}, fmt.Errorf("engine: load market: %w", err)
	}
	if !ok || !mkt.Exists {
		return key, domain.Market{}, domain.ErrMarketNotFound
	}
	return key, mkt, nil
}
