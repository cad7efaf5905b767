package pg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/port"
)

var _ port.Repository = (*Repository)(nil)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Connect creates a pool; call Close when finished.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS offers (
    id                  TEXT PRIMARY KEY,
    seller              TEXT NOT NULL,
    chain               TEXT NOT NULL,
    token               TEXT NOT NULL,
    rate                NUMERIC NOT NULL,
    min_amount          NUMERIC NOT NULL,
    max_amount          NUMERIC NOT NULL,
    available           NUMERIC NOT NULL,
    fee                 NUMERIC NOT NULL,
    latency_ms          BIGINT NOT NULL,
    supports_swap       BOOLEAN NOT NULL DEFAULT FALSE,
    supports_local_rail BOOLEAN NOT NULL DEFAULT FALSE,
    status              TEXT NOT NULL,
    nonce               BIGINT NOT NULL,
    expires_at          TIMESTAMPTZ,
    signature           TEXT NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS offers_seller_nonce_idx ON offers(seller, nonce DESC);
CREATE INDEX IF NOT EXISTS offers_status_expiry_idx ON offers(status, expires_at);

CREATE TABLE IF NOT EXISTS reservations (
    id         TEXT PRIMARY KEY,
    offer_id   TEXT NOT NULL REFERENCES offers(id),
    quantity   NUMERIC NOT NULL,
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS reservations_offer_idx ON reservations(offer_id);
CREATE INDEX IF NOT EXISTS reservations_status_idx ON reservations(status);
`

func (p *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pg: ensure schema: %w", err)
	}
	return nil
}

func (p *Repository) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

const offerColumns = `id, seller, chain, token, rate, min_amount, max_amount, available, fee,
latency_ms, supports_swap, supports_local_rail, status, nonce, expires_at, signature, created_at, updated_at`

func (p *Repository) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg: begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (p *Repository) ListOffers(ctx context.Context, f port.OfferFilter) ([]*domain.Offer, error) {
	var (
		conds = []string{"status = 'ACTIVE'", "(expires_at IS NULL OR expires_at > NOW())"}
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Chain != "" {
		conds = append(conds, "chain = "+arg(f.Chain))
	}
	if f.Token != "" {
		conds = append(conds, "token = "+arg(strings.ToUpper(f.Token)))
	}
	if f.MinAmount.Sign() > 0 {
		ph := arg(f.MinAmount)
		conds = append(conds, "available >= "+ph, "max_amount >= "+ph)
	}
	if f.MaxAmount.Sign() > 0 {
		conds = append(conds, "min_amount <= "+arg(f.MaxAmount))
	}
	if f.MaxLatencyMS > 0 {
		conds = append(conds, "latency_ms <= "+arg(f.MaxLatencyMS))
	}
	if f.MaxFee.Sign() > 0 {
		conds = append(conds, "fee <= "+arg(f.MaxFee))
	}

	orderBy := "rate ASC"
	switch f.SortBy {
	case "fee":
		orderBy = "fee ASC"
	case "latency":
		orderBy = "latency_ms ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM offers WHERE %s ORDER BY %s, created_at ASC`,
		offerColumns, strings.Join(conds, " AND "), orderBy)
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pg: list offers: %w", err)
	}
	defer rows.Close()

	var res []*domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (p *Repository) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (p *Repository) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, offer_id, quantity, status, created_at, updated_at FROM reservations WHERE id = $1`, id)
	r, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) InsertOffer(ctx context.Context, o *domain.Offer) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO offers(id, seller, chain, token, rate, min_amount, max_amount, available, fee,
  latency_ms, supports_swap, supports_local_rail, status, nonce, expires_at, signature, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`, o.ID, o.Seller, o.Chain, o.Token, o.Rate, o.MinAmount, o.MaxAmount, o.Available, o.Fee,
		o.LatencyMS, o.SupportsSwap, o.SupportsLocalRail, string(o.Status), int64(o.Nonce),
		o.ExpiresAt, o.Signature, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pg: insert offer: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOffer(ctx context.Context, o *domain.Offer) error {
	res, err := t.tx.Exec(ctx, `
UPDATE offers SET seller=$2, chain=$3, token=$4, rate=$5, min_amount=$6, max_amount=$7,
  available=$8, fee=$9, latency_ms=$10, supports_swap=$11, supports_local_rail=$12,
  status=$13, nonce=$14, expires_at=$15, signature=$16, updated_at=$17
WHERE id=$1
`, o.ID, o.Seller, o.Chain, o.Token, o.Rate, o.MinAmount, o.MaxAmount, o.Available, o.Fee,
		o.LatencyMS, o.SupportsSwap, o.SupportsLocalRail, string(o.Status), int64(o.Nonce),
		o.ExpiresAt, o.Signature, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pg: update offer: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("pg: update offer: no row for id %s", o.ID)
	}
	return nil
}

func (t *pgTx) OfferForUpdate(ctx context.Context, id string) (*domain.Offer, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (t *pgTx) LatestOfferBySellerForUpdate(ctx context.Context, seller string) (*domain.Offer, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE LOWER(seller) = LOWER($1) ORDER BY nonce DESC LIMIT 1 FOR UPDATE`,
		seller)
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (t *pgTx) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO reservations(id, offer_id, quantity, status, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6)
`, r.ID, r.OfferID, r.Quantity, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pg: insert reservation: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateReservation(ctx context.Context, r *domain.Reservation) error {
	res, err := t.tx.Exec(ctx,
		`UPDATE reservations SET status=$2, updated_at=$3 WHERE id=$1`,
		r.ID, string(r.Status), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pg: update reservation: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("pg: update reservation: no row for id %s", r.ID)
	}
	return nil
}

func (t *pgTx) ReservationForUpdate(ctx context.Context, id string) (*domain.Reservation, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT id, offer_id, quantity, status, created_at, updated_at FROM reservations WHERE id = $1 FOR UPDATE`, id)
	r, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var (
		o      domain.Offer
		status string
		nonce  int64
	)
	if err := row.Scan(&o.ID, &o.Seller, &o.Chain, &o.Token, &o.Rate, &o.MinAmount, &o.MaxAmount,
		&o.Available, &o.Fee, &o.LatencyMS, &o.SupportsSwap, &o.SupportsLocalRail, &status,
		&nonce, &o.ExpiresAt, &o.Signature, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OfferStatus(status)
	o.Nonce = uint64(nonce)
	return &o, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		r      domain.Reservation
		status string
	)
	if err := row.Scan(&r.ID, &r.OfferID, &r.Quantity, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = domain.ReservationStatus(status)
	return &r, nil
}
