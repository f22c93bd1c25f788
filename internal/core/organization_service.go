package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"accounting-engine/internal/logger"
)

type Organization struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ContactInput struct {
	Name string      `json:"name"`
	Kind ContactKind `json:"kind"`
}

type TaxInput struct {
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	Computation TaxComputation  `json:"computation"`
}

type ProductInput struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxID     *int            `json:"tax_id,omitempty"`
}

type AccountInput struct {
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	ParentCode string      `json:"parent_code,omitempty"`
}

// OrganizationService onboards organizations and maintains the master data documents
// refer to.
type OrganizationService interface {
	// OnboardOrganization creates the organization with its default sequences and a
	// starter chart of accounts, all in one transaction.
	OnboardOrganization(ctx context.Context, name string) (*Organization, error)
	CreateContact(ctx context.Context, organizationID int, input ContactInput) (*Contact, error)
	CreateTax(ctx context.Context, organizationID int, input TaxInput) (*Tax, error)
	CreateProduct(ctx context.Context, organizationID int, input ProductInput) (*Product, error)
	CreateAccount(ctx context.Context, organizationID int, input AccountInput) (*Account, error)
	ListContacts(ctx context.Context, organizationID int) ([]Contact, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
}

// defaultChart is created for every new organization. Parents precede their children.
var defaultChart = []AccountInput{
	{Code: "1000", Name: "Assets", Type: Asset},
	{Code: "1100", Name: "Accounts Receivable", Type: Asset, ParentCode: "1000"},
	{Code: "1200", Name: "Bank", Type: Asset, ParentCode: "1000"},
	{Code: "2000", Name: "Liabilities", Type: Liability},
	{Code: "2100", Name: "Accounts Payable", Type: Liability, ParentCode: "2000"},
	{Code: "2200", Name: "Tax Payable", Type: Liability, ParentCode: "2000"},
	{Code: "3000", Name: "Equity", Type: Equity},
	{Code: "4000", Name: "Revenue", Type: Revenue},
	{Code: "5000", Name: "Expenses", Type: Expense},
}

type organizationService struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewOrganizationService(pool *pgxpool.Pool) OrganizationService {
	return &organizationService{pool: pool, log: logger.WithComponent("organizations")}
}

func (s *organizationService) OnboardOrganization(ctx context.Context, name string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ruleViolation("organization name is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var org Organization
	err = tx.QueryRow(ctx, `
		INSERT INTO organizations (name) VALUES ($1)
		RETURNING id, name, created_at
	`, name).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		return nil, storeError("insert organization", err)
	}

	if err := insertDefaultSequencesTx(ctx, tx, org.ID); err != nil {
		return nil, err
	}
	for _, a := range defaultChart {
		if _, err := insertAccount(ctx, tx, org.ID, a); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit onboarding", err)
	}

	s.log.Info().Int("organization_id", org.ID).Str("name", org.Name).Msg("organization onboarded")
	return &org, nil
}

func (s *organizationService) CreateContact(ctx context.Context, organizationID int, input ContactInput) (*Contact, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ruleViolation("contact name is required")
	}
	kind := input.Kind
	if kind == "" {
		kind = ContactBoth
	}
	switch kind {
	case ContactCustomer, ContactVendor, ContactBoth:
	default:
		return nil, ruleViolation("unknown contact kind %q", input.Kind)
	}

	c := Contact{OrganizationID: organizationID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (organization_id, name, kind) VALUES ($1, $2, $3)
		RETURNING id, name, kind
	`, organizationID, input.Name, string(kind)).Scan(&c.ID, &c.Name, &c.Kind)
	if err != nil {
		return nil, storeError(fmt.Sprintf("create contact %q", input.Name), err)
	}
	return &c, nil
}

func (s *organizationService) CreateTax(ctx context.Context, organizationID int, input TaxInput) (*Tax, error) {
	t := Tax{OrganizationID: organizationID, Name: input.Name, Rate: input.Rate, Computation: input.Computation}
	if t.Computation == "" {
		t.Computation = TaxPercentage
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO taxes (organization_id, name, rate, computation) VALUES ($1, $2, $3, $4)
		RETURNING id
	`, organizationID, t.Name, t.Rate, string(t.Computation)).Scan(&t.ID)
	if err != nil {
		return nil, storeError(fmt.Sprintf("create tax %q", input.Name), err)
	}
	return &t, nil
}

func (s *organizationService) CreateProduct(ctx context.Context, organizationID int, input ProductInput) (*Product, error) {
	if input.Code == "" || input.Name == "" {
		return nil, ruleViolation("product code and name are required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, ruleViolation("product unit price cannot be negative")
	}
	p := Product{OrganizationID: organizationID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (organization_id, code, name, unit_price, tax_id) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, code, name, unit_price, tax_id
	`, organizationID, input.Code, input.Name, roundMoney(input.UnitPrice), input.TaxID).Scan(
		&p.ID, &p.Code, &p.Name, &p.UnitPrice, &p.TaxID)
	if err != nil {
		return nil, storeError(fmt.Sprintf("create product %q", input.Code), err)
	}
	return &p, nil
}

func (s *organizationService) CreateAccount(ctx context.Context, organizationID int, input AccountInput) (*Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	a, err := insertAccount(ctx, tx, organizationID, input)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit account", err)
	}
	return a, nil
}

func (s *organizationService) ListContacts(ctx context.Context, organizationID int) ([]Contact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, name, kind FROM contacts WHERE organization_id = $1 ORDER BY id
	`, organizationID)
	if err != nil {
		return nil, storeError("query contacts", err)
	}
	contacts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Contact, error) {
		var c Contact
		err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Kind)
		return c, err
	})
	if err != nil {
		return nil, storeError("scan contacts", err)
	}
	return contacts, nil
}

func (s *organizationService) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM organizations ORDER BY id`)
	if err != nil {
		return nil, storeError("query organizations", err)
	}
	orgs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Organization])
	if err != nil {
		return nil, storeError("scan organizations", err)
	}
	return orgs, nil
}

func insertAccount(ctx context.Context, q pgxQuerier, organizationID int, input AccountInput) (*Account, error) {
	if input.Code == "" || input.Name == "" {
		return nil, ruleViolation("account code and name are required")
	}
	switch input.Type {
	case Asset, Liability, Equity, Revenue, Expense:
	default:
		return nil, ruleViolation("unknown account type %q", input.Type)
	}

	a := Account{OrganizationID: organizationID}
	err := q.QueryRow(ctx, `
		INSERT INTO accounts (organization_id, code, name, type, parent_id)
		VALUES ($1, $2, $3, $4,
		        (SELECT id FROM accounts WHERE organization_id = $1 AND code = NULLIF($5, '')))
		RETURNING id, code, name, type, parent_id
	`, organizationID, input.Code, input.Name, string(input.Type), input.ParentCode).Scan(
		&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID)
	if err != nil {
		return nil, storeError(fmt.Sprintf("create account %s", input.Code), err)
	}
	if input.ParentCode != "" && a.ParentID == nil {
		return nil, notFound("parent account %s not found in organization %d", input.ParentCode, organizationID)
	}
	return &a, nil
}
