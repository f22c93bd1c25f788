package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceGenerator issues formatted document numbers from per-organization counters.
type SequenceGenerator interface {
	// IssueDocumentNumber takes the next number in its own transaction.
	IssueDocumentNumber(ctx context.Context, organizationID int, docType string) (*DocumentNumber, error)
	// NextTx takes the next number inside the caller's transaction, so that a rollback
	// of the caller also returns the row lock without consuming anything.
	NextTx(ctx context.Context, tx pgx.Tx, organizationID int, docType string) (*DocumentNumber, error)
	// EnsureDefaultSequences creates the engine's default sequences for a new organization.
	// Existing rows are left untouched.
	EnsureDefaultSequences(ctx context.Context, organizationID int) error
	GetSequence(ctx context.Context, organizationID int, docType string) (*DocumentSequence, error)
}

type sequenceGenerator struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewSequenceGenerator(pool *pgxpool.Pool) SequenceGenerator {
	return &sequenceGenerator{pool: pool, now: time.Now}
}

// DefaultFormatMask is used by EnsureDefaultSequences.
const DefaultFormatMask = "{prefix}/{year}/{seq:06d}"

var defaultSequences = []DocumentSequence{
	{DocType: DocTypeSalesOrder, Prefix: "SO", FormatMask: DefaultFormatMask},
	{DocType: DocTypeInvoice, Prefix: "INV", FormatMask: DefaultFormatMask},
	{DocType: DocTypeVendorBill, Prefix: "BILL", FormatMask: DefaultFormatMask},
	{DocType: DocTypePayment, Prefix: "PAY", FormatMask: DefaultFormatMask},
	{DocType: DocTypeJournalEntry, Prefix: "JE", FormatMask: DefaultFormatMask},
}

func (g *sequenceGenerator) IssueDocumentNumber(ctx context.Context, organizationID int, docType string) (*DocumentNumber, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	num, err := g.NextTx(ctx, tx, organizationID, docType)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit sequence", err)
	}
	return num, nil
}

func (g *sequenceGenerator) NextTx(ctx context.Context, tx pgx.Tx, organizationID int, docType string) (*DocumentNumber, error) {
	var seq DocumentSequence
	err := tx.QueryRow(ctx, `
		SELECT organization_id, doc_type, prefix, next_val, format_mask
		FROM document_sequences
		WHERE organization_id = $1 AND doc_type = $2
		FOR UPDATE
	`, organizationID, docType).Scan(&seq.OrganizationID, &seq.DocType, &seq.Prefix, &seq.NextVal, &seq.FormatMask)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("no %s sequence configured for organization %d", docType, organizationID)
		}
		return nil, storeError("lock document sequence", err)
	}

	current := seq.NextVal
	_, err = tx.Exec(ctx, `
		UPDATE document_sequences
		SET next_val = $1
		WHERE organization_id = $2 AND doc_type = $3
	`, current+1, organizationID, docType)
	if err != nil {
		return nil, storeError("advance document sequence", err)
	}

	return &DocumentNumber{
		Number:   FormatDocumentNumber(seq.FormatMask, seq.Prefix, current, g.now()),
		Sequence: current,
	}, nil
}

func (g *sequenceGenerator) EnsureDefaultSequences(ctx context.Context, organizationID int) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := insertDefaultSequencesTx(ctx, tx, organizationID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeError("commit default sequences", err)
	}
	return nil
}

func insertDefaultSequencesTx(ctx context.Context, tx pgx.Tx, organizationID int) error {
	for _, s := range defaultSequences {
		_, err := tx.Exec(ctx, `
			INSERT INTO document_sequences (organization_id, doc_type, prefix, next_val, format_mask)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (organization_id, doc_type) DO NOTHING
		`, organizationID, s.DocType, s.Prefix, s.FormatMask)
		if err != nil {
			return storeError(fmt.Sprintf("create %s sequence", s.DocType), err)
		}
	}
	return nil
}

func (g *sequenceGenerator) GetSequence(ctx context.Context, organizationID int, docType string) (*DocumentSequence, error) {
	var seq DocumentSequence
	err := g.pool.QueryRow(ctx, `
		SELECT organization_id, doc_type, prefix, next_val, format_mask
		FROM document_sequences
		WHERE organization_id = $1 AND doc_type = $2
	`, organizationID, docType).Scan(&seq.OrganizationID, &seq.DocType, &seq.Prefix, &seq.NextVal, &seq.FormatMask)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("no %s sequence configured for organization %d", docType, organizationID)
		}
		return nil, storeError("read document sequence", err)
	}
	return &seq, nil
}

var maskPlaceholder = regexp.MustCompile(`\{(prefix|year|month|seq)(?::0?(\d+)d)?\}`)

// FormatDocumentNumber renders mask for sequence number seq issued at time at.
// Supported placeholders: {prefix}, {year}, {month} (two digits), {seq} and {seq:Nd}
// (zero-padded to width N). Anything else in the mask is copied verbatim.
func FormatDocumentNumber(mask, prefix string, seq int64, at time.Time) string {
	return maskPlaceholder.ReplaceAllStringFunc(mask, func(m string) string {
		parts := maskPlaceholder.FindStringSubmatch(m)
		switch parts[1] {
		case "prefix":
			return prefix
		case "year":
			return strconv.Itoa(at.Year())
		case "month":
			return fmt.Sprintf("%02d", int(at.Month()))
		default:
			if parts[2] == "" {
				return strconv.FormatInt(seq, 10)
			}
			width, _ := strconv.Atoi(parts[2])
			return fmt.Sprintf("%0*d", width, seq)
		}
	})
}
