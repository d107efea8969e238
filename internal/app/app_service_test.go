package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"reseller-ledger/internal/ai"
	"reseller-ledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

type stubUsers struct {
	core.UserService
	users   map[string]*core.User
	created *core.NewUser
}

func (s *stubUsers) GetByUsername(_ context.Context, username string) (*core.User, error) {
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func (s *stubUsers) Create(_ context.Context, in core.NewUser) (*core.User, error) {
	s.created = &in
	return &core.User{ID: 2, Username: in.Username, Email: in.Email, Role: in.Role}, nil
}

type stubParties struct {
	core.PartyService
	suppliers []core.Supplier
}

func (s *stubParties) ListSuppliers(context.Context) ([]core.Supplier, error) {
	return s.suppliers, nil
}

type stubInventory struct {
	core.InventoryService
	batch *core.SerialBatchInput
}

func (s *stubInventory) AddSerialBatch(_ context.Context, in core.SerialBatchInput) (*core.BatchResult, error) {
	s.batch = &in
	return &core.BatchResult{}, nil
}

type stubAgent struct {
	draft     *ai.PurchaseDraft
	suppliers string
}

func (a *stubAgent) DraftPurchase(_ context.Context, _ string, suppliers string) (*ai.PurchaseDraft, error) {
	a.suppliers = suppliers
	return a.draft, nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthenticateUser(t *testing.T) {
	users := &stubUsers{users: map[string]*core.User{
		"amine": {ID: 1, Username: "amine", Role: "admin", PasswordHash: hash(t, "correct horse")},
	}}
	svc := NewAppService(nil, Services{Users: users}, nil, nil)
	ctx := context.Background()

	session, err := svc.AuthenticateUser(ctx, " amine ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, &UserSession{UserID: 1, Username: "amine", Role: "admin"}, session)

	_, err = svc.AuthenticateUser(ctx, "amine", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.AuthenticateUser(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser_HashesPassword(t *testing.T) {
	users := &stubUsers{}
	svc := NewAppService(nil, Services{Users: users}, nil, nil)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{Username: "x", Email: "x@y", Password: "short"})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Nil(t, users.created)

	u, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username: "sara", Email: "sara@shop.dz", Password: "long enough", Role: "staff",
	})
	require.NoError(t, err)
	assert.Equal(t, "sara", u.Username)
	require.NotNil(t, users.created)
	assert.NotEqual(t, "long enough", users.created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.created.PasswordHash), []byte("long enough")))
}

func TestDraftPurchase(t *testing.T) {
	parties := &stubParties{suppliers: []core.Supplier{{ID: 3, Name: "Atlas GSM"}, {ID: 7, Name: "Tech Import"}}}
	ctx := context.Background()

	t.Run("disabled without agent", func(t *testing.T) {
		svc := NewAppService(nil, Services{Parties: parties}, nil, nil)
		_, err := svc.DraftPurchase(ctx, IntakeRequest{Description: "2 iphones"})
		assert.ErrorIs(t, err, ErrIntakeDisabled)
	})

	t.Run("resolves supplier by name", func(t *testing.T) {
		agent := &stubAgent{draft: &ai.PurchaseDraft{
			SupplierName: "tech import",
			Confidence:   0.9,
			Lines: []ai.DraftLine{
				{Brand: "Apple", Model: "iPhone 13", Storage: "128GB", Serial: "123456", CostPrice: "90000", Quantity: 1},
				{Brand: "Samsung", Model: "A54", Serial: "654321", CostPrice: "40000", SalePrice: "52000", Quantity: 2},
			},
		}}
		svc := NewAppService(nil, Services{Parties: parties}, agent, nil)

		res, err := svc.DraftPurchase(ctx, IntakeRequest{Description: "lot from Tech Import"})
		require.NoError(t, err)
		assert.Contains(t, agent.suppliers, "- Atlas GSM")
		require.NotNil(t, res.SupplierID)
		assert.Equal(t, 7, *res.SupplierID)
		require.Len(t, res.Inputs, 2)
		assert.Equal(t, 7, *res.Inputs[0].SupplierID)
		assert.True(t, decimal.NewFromInt(52000).Equal(res.Inputs[1].SalePrice))
		assert.True(t, res.Inputs[0].SalePrice.IsZero())
	})

	t.Run("explicit supplier wins", func(t *testing.T) {
		agent := &stubAgent{draft: &ai.PurchaseDraft{
			SupplierName: "Tech Import",
			Confidence:   0.5,
			Lines:        []ai.DraftLine{{Brand: "Apple", Model: "iPad", Serial: "111111", CostPrice: "1", Quantity: 1}},
		}}
		svc := NewAppService(nil, Services{Parties: parties}, agent, nil)
		supplier := 3
		res, err := svc.DraftPurchase(ctx, IntakeRequest{Description: "ipad", SupplierID: &supplier})
		require.NoError(t, err)
		assert.Equal(t, 3, *res.Inputs[0].SupplierID)
	})

	t.Run("clarification has no inputs", func(t *testing.T) {
		agent := &stubAgent{draft: &ai.PurchaseDraft{
			ClarificationNeeded:  true,
			ClarificationMessage: "Which model?",
		}}
		svc := NewAppService(nil, Services{Parties: parties}, agent, nil)
		res, err := svc.DraftPurchase(ctx, IntakeRequest{Description: "some phones"})
		require.NoError(t, err)
		assert.Empty(t, res.Inputs)
		assert.Nil(t, res.SupplierID)
	})

	t.Run("blank description", func(t *testing.T) {
		svc := NewAppService(nil, Services{Parties: parties}, &stubAgent{}, nil)
		_, err := svc.DraftPurchase(ctx, IntakeRequest{Description: "  "})
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func workbook(t *testing.T, cells map[string]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for cell, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadSerials(t *testing.T) {
	t.Run("skips header and blanks", func(t *testing.T) {
		buf := workbook(t, map[string]any{
			"A1": "IMEI",
			"A2": "123456",
			"B2": "ignored",
			"A4": 654321,
			"A5": " 12345 ",
		})
		serials, err := ReadSerials(buf)
		require.NoError(t, err)
		assert.Equal(t, []string{"123456", "654321", "12345"}, serials)
	})

	t.Run("numeric first row is data", func(t *testing.T) {
		serials, err := ReadSerials(workbook(t, map[string]any{"A1": "111111", "A2": "222222"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"111111", "222222"}, serials)
	})

	t.Run("empty sheet", func(t *testing.T) {
		_, err := ReadSerials(workbook(t, map[string]any{"A1": "Serial"}))
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := ReadSerials(bytes.NewBufferString("serial\n123456\n"))
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestImportSerialBatch(t *testing.T) {
	inv := &stubInventory{}
	svc := NewAppService(nil, Services{Inventory: inv}, nil, nil)
	req := SerialBatchRequest{
		Brand: "Apple", Model: "iPhone 14", CostPrice: decimal.NewFromInt(100), SalePrice: decimal.NewFromInt(130),
		SupplierID: 4, Serials: []string{"999999"},
	}

	_, err := svc.ImportSerialBatch(context.Background(), req, workbook(t, map[string]any{"A1": "123456", "A2": "234567"}))
	require.NoError(t, err)
	require.NotNil(t, inv.batch)
	assert.Equal(t, []string{"123456", "234567"}, inv.batch.Serials)
	assert.Equal(t, 4, inv.batch.SupplierID)
	assert.Equal(t, "iPhone 14", inv.batch.Model)
}

func TestSchemas(t *testing.T) {
	svc := NewAppService(nil, Services{}, nil, nil)
	names := svc.SchemaNames()
	assert.Contains(t, names, "sale")
	assert.Contains(t, names, "purchase_draft")

	s, ok := svc.Schema("payment")
	require.True(t, ok)
	require.NotNil(t, s.Properties)
	_, has := s.Properties.Get("amount_paid")
	assert.True(t, has)

	_, ok = svc.Schema("nope")
	assert.False(t, ok)
}

func TestPing_NoPool(t *testing.T) {
	err := NewAppService(nil, Services{}, nil, nil).Ping(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrNotFound))
}
