package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountNode is one account of the chart with its children, ordered by code.
type AccountNode struct {
	Account
	Children []*AccountNode `json:"children,omitempty"`
}

// BuildAccountTree links a flat list of accounts into a forest in one pass over an
// id-indexed arena. Roots and children are ordered by code. An unknown parent or a
// parent cycle is an error.
func BuildAccountTree(accounts []Account) ([]*AccountNode, error) {
	arena := make(map[int]*AccountNode, len(accounts))
	for _, a := range accounts {
		if _, dup := arena[a.ID]; dup {
			return nil, fmt.Errorf("duplicate account id %d", a.ID)
		}
		arena[a.ID] = &AccountNode{Account: a}
	}

	var roots []*AccountNode
	for _, a := range accounts {
		node := arena[a.ID]
		if a.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := arena[*a.ParentID]
		if !ok {
			return nil, fmt.Errorf("account %s references unknown parent %d", a.Code, *a.ParentID)
		}
		parent.Children = append(parent.Children, node)
	}

	// Every account reachable from a root is acyclic; anything left over sits on a cycle.
	seen := 0
	var walk func(nodes []*AccountNode)
	walk = func(nodes []*AccountNode) {
		sortByCode(nodes)
		for _, n := range nodes {
			seen++
			walk(n.Children)
		}
	}
	walk(roots)
	if seen != len(arena) {
		return nil, fmt.Errorf("account hierarchy contains a cycle")
	}
	return roots, nil
}

func sortByCode(nodes []*AccountNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Code < nodes[j].Code })
}

// AccountService reads the chart of accounts.
type AccountService interface {
	ListAccounts(ctx context.Context, organizationID int) ([]Account, error)
	GetChartOfAccounts(ctx context.Context, organizationID int) ([]*AccountNode, error)
}

type accountService struct {
	pool *pgxpool.Pool
}

func NewAccountService(pool *pgxpool.Pool) AccountService {
	return &accountService{pool: pool}
}

func (s *accountService) ListAccounts(ctx context.Context, organizationID int) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, code, name, type, parent_id
		FROM accounts
		WHERE organization_id = $1
		ORDER BY code
	`, organizationID)
	if err != nil {
		return nil, storeError("query accounts", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Code, &a.Name, &a.Type, &a.ParentID); err != nil {
			return nil, storeError("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate accounts", err)
	}
	return accounts, nil
}

func (s *accountService) GetChartOfAccounts(ctx context.Context, organizationID int) ([]*AccountNode, error) {
	accounts, err := s.ListAccounts(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return BuildAccountTree(accounts)
}
