package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PartnerBalanceService maintains the cached per-contact outstanding balance.
// The cached row is never authoritative: it is always recomputed from the amount_due
// of the contact's non-void invoices and vendor bills.
type PartnerBalanceService interface {
	// RecomputeBalancesTx is the single entry point used after every change that can
	// move a contact's balance. It locks the balance row for the rest of tx.
	RecomputeBalancesTx(ctx context.Context, tx pgx.Tx, organizationID, contactID int) (*PartnerBalance, error)
	// RecomputeBalances runs RecomputeBalancesTx in its own transaction.
	RecomputeBalances(ctx context.Context, organizationID, contactID int) (*PartnerBalance, error)
	GetPartnerBalance(ctx context.Context, organizationID, contactID int) (*PartnerBalance, error)
	// VerifyPartnerBalances lists contacts whose cached balance differs from a fresh aggregate.
	VerifyPartnerBalances(ctx context.Context, organizationID int) ([]BalanceDiscrepancy, error)
}

// BalanceDiscrepancy is a cached balance that no longer matches the source documents.
type BalanceDiscrepancy struct {
	ContactID int             `json:"contact_id"`
	Cached    decimal.Decimal `json:"cached"`
	Actual    decimal.Decimal `json:"actual"`
}

type partnerBalanceService struct {
	pool *pgxpool.Pool
}

func NewPartnerBalanceService(pool *pgxpool.Pool) PartnerBalanceService {
	return &partnerBalanceService{pool: pool}
}

func (s *partnerBalanceService) RecomputeBalancesTx(ctx context.Context, tx pgx.Tx, organizationID, contactID int) (*PartnerBalance, error) {
	// Make sure a row exists, then serialize on it.
	_, err := tx.Exec(ctx, `
		INSERT INTO partner_balances (organization_id, contact_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, contact_id) DO NOTHING
	`, organizationID, contactID)
	if err != nil {
		return nil, storeError("create partner balance", err)
	}
	_, err = tx.Exec(ctx, `
		SELECT 1 FROM partner_balances
		WHERE organization_id = $1 AND contact_id = $2
		FOR UPDATE
	`, organizationID, contactID)
	if err != nil {
		return nil, storeError("lock partner balance", err)
	}

	receivable, payable, err := aggregateOutstanding(ctx, tx, organizationID, contactID)
	if err != nil {
		return nil, err
	}

	b := PartnerBalance{OrganizationID: organizationID, ContactID: contactID}
	err = tx.QueryRow(ctx, `
		UPDATE partner_balances
		SET receivable_amount = $3, payable_amount = $4, outstanding_amount = $5, last_updated = NOW()
		WHERE organization_id = $1 AND contact_id = $2
		RETURNING receivable_amount, payable_amount, outstanding_amount, last_updated
	`, organizationID, contactID, receivable, payable, receivable.Sub(payable)).Scan(
		&b.ReceivableAmount, &b.PayableAmount, &b.OutstandingAmount, &b.LastUpdated,
	)
	if err != nil {
		return nil, storeError("update partner balance", err)
	}
	return &b, nil
}

func (s *partnerBalanceService) RecomputeBalances(ctx context.Context, organizationID, contactID int) (*PartnerBalance, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := contactExists(ctx, tx, organizationID, contactID); err != nil {
		return nil, err
	}
	b, err := s.RecomputeBalancesTx(ctx, tx, organizationID, contactID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit partner balance", err)
	}
	return b, nil
}

func (s *partnerBalanceService) GetPartnerBalance(ctx context.Context, organizationID, contactID int) (*PartnerBalance, error) {
	b := PartnerBalance{OrganizationID: organizationID, ContactID: contactID}
	err := s.pool.QueryRow(ctx, `
		SELECT receivable_amount, payable_amount, outstanding_amount, last_updated
		FROM partner_balances
		WHERE organization_id = $1 AND contact_id = $2
	`, organizationID, contactID).Scan(&b.ReceivableAmount, &b.PayableAmount, &b.OutstandingAmount, &b.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No row yet: the contact has never had a document. Report a zero balance
			// if the contact exists at all.
			if err := contactExists(ctx, s.pool, organizationID, contactID); err != nil {
				return nil, err
			}
			return &PartnerBalance{
				OrganizationID:    organizationID,
				ContactID:         contactID,
				ReceivableAmount:  decimal.Zero,
				PayableAmount:     decimal.Zero,
				OutstandingAmount: decimal.Zero,
			}, nil
		}
		return nil, storeError("read partner balance", err)
	}
	return &b, nil
}

func (s *partnerBalanceService) VerifyPartnerBalances(ctx context.Context, organizationID int) ([]BalanceDiscrepancy, error) {
	rows, err := s.pool.Query(ctx, `
		WITH actual AS (
			SELECT contact_id, SUM(amount_due) AS amount
			FROM (
				SELECT contact_id, amount_due FROM invoices WHERE organization_id = $1 AND status <> 'VOID'
				UNION ALL
				SELECT contact_id, -amount_due FROM vendor_bills WHERE organization_id = $1 AND status <> 'VOID'
			) docs
			GROUP BY contact_id
		)
		SELECT COALESCE(pb.contact_id, a.contact_id),
		       COALESCE(pb.outstanding_amount, 0),
		       COALESCE(a.amount, 0)
		FROM (SELECT * FROM partner_balances WHERE organization_id = $1) pb
		FULL OUTER JOIN actual a ON a.contact_id = pb.contact_id
		WHERE COALESCE(pb.outstanding_amount, 0) <> COALESCE(a.amount, 0)
		ORDER BY 1
	`, organizationID)
	if err != nil {
		return nil, storeError("verify partner balances", err)
	}
	defer rows.Close()

	var out []BalanceDiscrepancy
	for rows.Next() {
		var d BalanceDiscrepancy
		if err := rows.Scan(&d.ContactID, &d.Cached, &d.Actual); err != nil {
			return nil, storeError("scan balance discrepancy", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate balance discrepancies", err)
	}
	return out, nil
}

func aggregateOutstanding(ctx context.Context, q pgxQuerier, organizationID, contactID int) (receivable, payable decimal.Decimal, err error) {
	err = q.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(amount_due), 0) FROM invoices
			 WHERE organization_id = $1 AND contact_id = $2 AND status <> 'VOID'),
			(SELECT COALESCE(SUM(amount_due), 0) FROM vendor_bills
			 WHERE organization_id = $1 AND contact_id = $2 AND status <> 'VOID')
	`, organizationID, contactID).Scan(&receivable, &payable)
	if err != nil {
		return decimal.Zero, decimal.Zero, storeError("aggregate outstanding documents", err)
	}
	return receivable, payable, nil
}

func contactExists(ctx context.Context, q pgxQuerier, organizationID, contactID int) error {
	var exists bool
	err := q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM contacts WHERE id = $1 AND organization_id = $2)",
		contactID, organizationID).Scan(&exists)
	if err != nil {
		return storeError("read contact", err)
	}
	if !exists {
		return notFound("contact %d not found in organization %d", contactID, organizationID)
	}
	return nil
}
