package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PartyService provides client and supplier master data operations.
// Names are unique; a party referenced by a sale or a product cannot be deleted.
type PartyService interface {
	CreateClient(ctx context.Context, in PartyInput) (*Client, error)
	GetClient(ctx context.Context, clientID int) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	UpdateClient(ctx context.Context, clientID int, in PartyInput) (*Client, error)
	DeleteClient(ctx context.Context, clientID int) error

	CreateSupplier(ctx context.Context, in PartyInput) (*Supplier, error)
	GetSupplier(ctx context.Context, supplierID int) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	UpdateSupplier(ctx context.Context, supplierID int, in PartyInput) (*Supplier, error)
	DeleteSupplier(ctx context.Context, supplierID int) error
}

// PartyInput holds the editable fields of a client or supplier.
type PartyInput struct {
	Name    string  `json:"name" jsonschema:"minLength=1"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

func (in PartyInput) normalize() (PartyInput, error) {
	opt := func(p *string) *string {
		if p == nil || strings.TrimSpace(*p) == "" {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	out := PartyInput{Name: strings.TrimSpace(in.Name), Phone: opt(in.Phone), Address: opt(in.Address)}
	if out.Name == "" {
		return out, validationError("name is required")
	}
	return out, nil
}

// partyTable describes where one kind of party lives.
type partyTable struct {
	kind      string
	table     string
	createdAt string
}

var (
	clientsTable   = partyTable{kind: "client", table: "clients", createdAt: "created_at"}
	suppliersTable = partyTable{kind: "supplier", table: "fournisseurs", createdAt: "date_ajout"}
)

func (t partyTable) columns() string {
	return "id, nom, telephone, adresse, " + t.createdAt
}

type partyService struct {
	pool *pgxpool.Pool
}

// NewPartyService constructs a PartyService backed by PostgreSQL.
func NewPartyService(pool *pgxpool.Pool) PartyService {
	return &partyService{pool: pool}
}

// Client and Supplier share one row shape; both convert from Client.
func scanParty(row pgx.Row) (*Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *partyService) create(ctx context.Context, t partyTable, in PartyInput) (*Client, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	c, err := scanParty(s.pool.QueryRow(ctx, `
		INSERT INTO `+t.table+` (nom, telephone, adresse) VALUES ($1, $2, $3)
		RETURNING `+t.columns(),
		in.Name, in.Phone, in.Address))
	if err != nil {
		return nil, translatePgError(err, fmt.Sprintf("create %s %q", t.kind, in.Name))
	}
	return c, nil
}

func (s *partyService) get(ctx context.Context, t partyTable, id int) (*Client, error) {
	c, err := scanParty(s.pool.QueryRow(ctx,
		"SELECT "+t.columns()+" FROM "+t.table+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("%s %d not found", t.kind, id)
		}
		return nil, fmt.Errorf("failed to fetch %s %d: %w", t.kind, id, err)
	}
	return c, nil
}

func (s *partyService) list(ctx context.Context, t partyTable) ([]Client, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+t.columns()+" FROM "+t.table+" ORDER BY nom")
	if err != nil {
		return nil, fmt.Errorf("failed to query %ss: %w", t.kind, err)
	}
	defer rows.Close()

	parties := []Client{}
	for rows.Next() {
		c, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.kind, err)
		}
		parties = append(parties, *c)
	}
	return parties, rows.Err()
}

func (s *partyService) update(ctx context.Context, t partyTable, id int, in PartyInput) (*Client, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	c, err := scanParty(s.pool.QueryRow(ctx, `
		UPDATE `+t.table+` SET nom = $1, telephone = $2, adresse = $3 WHERE id = $4
		RETURNING `+t.columns(),
		in.Name, in.Phone, in.Address, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundError("%s %d not found", t.kind, id)
		}
		return nil, translatePgError(err, fmt.Sprintf("update %s %d", t.kind, id))
	}
	return c, nil
}

func (s *partyService) delete(ctx context.Context, t partyTable, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM "+t.table+" WHERE id = $1", id)
	if err != nil {
		return translatePgError(err, fmt.Sprintf("delete %s %d", t.kind, id))
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("%s %d not found", t.kind, id)
	}
	return nil
}

// ── Clients ───────────────────────────────────────────────────────────────────

func (s *partyService) CreateClient(ctx context.Context, in PartyInput) (*Client, error) {
	return s.create(ctx, clientsTable, in)
}

func (s *partyService) GetClient(ctx context.Context, clientID int) (*Client, error) {
	return s.get(ctx, clientsTable, clientID)
}

func (s *partyService) ListClients(ctx context.Context) ([]Client, error) {
	return s.list(ctx, clientsTable)
}

func (s *partyService) UpdateClient(ctx context.Context, clientID int, in PartyInput) (*Client, error) {
	return s.update(ctx, clientsTable, clientID, in)
}

func (s *partyService) DeleteClient(ctx context.Context, clientID int) error {
	return s.delete(ctx, clientsTable, clientID)
}

// ── Suppliers ─────────────────────────────────────────────────────────────────

func (s *partyService) CreateSupplier(ctx context.Context, in PartyInput) (*Supplier, error) {
	c, err := s.create(ctx, suppliersTable, in)
	if err != nil {
		return nil, err
	}
	sup := Supplier(*c)
	return &sup, nil
}

func (s *partyService) GetSupplier(ctx context.Context, supplierID int) (*Supplier, error) {
	c, err := s.get(ctx, suppliersTable, supplierID)
	if err != nil {
		return nil, err
	}
	sup := Supplier(*c)
	return &sup, nil
}

func (s *partyService) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.list(ctx, suppliersTable)
	if err != nil {
		return nil, err
	}
	suppliers := make([]Supplier, len(rows))
	for i, c := range rows {
		suppliers[i] = Supplier(c)
	}
	return suppliers, nil
}

func (s *partyService) UpdateSupplier(ctx context.Context, supplierID int, in PartyInput) (*Supplier, error) {
	c, err := s.update(ctx, suppliersTable, supplierID, in)
	if err != nil {
		return nil, err
	}
	sup := Supplier(*c)
	return &sup, nil
}

func (s *partyService) DeleteSupplier(ctx context.Context, supplierID int) error {
	return s.delete(ctx, suppliersTable, supplierID)
}
