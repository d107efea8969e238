package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reseller-ledger/internal/app"
	"reseller-ledger/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	app.ApplicationService

	user     *app.CreateUserRequest
	query    *core.ProfitQuery
	purchase *core.PurchaseInput
	batch    *app.SerialBatchRequest
	workbook []byte
}

func (s *stubService) CreateUser(_ context.Context, req app.CreateUserRequest) (*core.User, error) {
	s.user = &req
	return &core.User{ID: 3, Username: req.Username, Role: req.Role}, nil
}

func (s *stubService) ProfitReport(_ context.Context, q core.ProfitQuery) (*core.ProfitReport, error) {
	s.query = &q
	return &core.ProfitReport{Lines: []core.ProfitLine{}}, nil
}

func (s *stubService) RecordPurchase(_ context.Context, in core.PurchaseInput) (*core.PurchaseResult, error) {
	s.purchase = &in
	return &core.PurchaseResult{}, nil
}

func (s *stubService) ImportSerialBatch(_ context.Context, req app.SerialBatchRequest, r io.Reader) (*core.BatchResult, error) {
	s.batch = &req
	s.workbook, _ = io.ReadAll(r)
	return &core.BatchResult{Succeeded: []core.BatchItemResult{}, Failed: []core.BatchItemResult{}}, nil
}

func TestAddUser(t *testing.T) {
	svc := &stubService{}
	var out bytes.Buffer
	err := Run(context.Background(), svc,
		[]string{"adduser", "-username", "sara", "-email", "sara@shop.dz", "-role", "admin"},
		strings.NewReader("hunter2hunter2\n"), &out)
	require.NoError(t, err)
	require.NotNil(t, svc.user)
	assert.Equal(t, "hunter2hunter2", svc.user.Password)
	assert.Equal(t, "admin", svc.user.Role)
	assert.Contains(t, out.String(), "User sara created (id 3, role admin).")
}

func TestProfit_DayAndRange(t *testing.T) {
	svc := &stubService{}
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), svc, []string{"profit", "-from", "2026-10-01", "-to", "2026-10-31", "-paid-only"}, nil, &out))
	require.NotNil(t, svc.query)
	assert.True(t, svc.query.PaidOnly)
	assert.Equal(t, "2026-11-01", svc.query.To.Format("2006-01-02"))
	assert.Contains(t, out.String(), `"lines": []`)

	err := Run(context.Background(), svc, []string{"profit", "-day", "18/10/2026"}, nil, &out)
	assert.ErrorContains(t, err, "expected YYYY-MM-DD")
}

func TestPurchaseFromStdin(t *testing.T) {
	svc := &stubService{}
	in := `{"identity":{"brand":"Apple","model":"iPhone 13","serial":"123456"},"cost_price":"90000","quantity":1}`
	require.NoError(t, Run(context.Background(), svc, []string{"purchase"}, strings.NewReader(in), io.Discard))
	require.NotNil(t, svc.purchase)
	assert.Equal(t, "123456", svc.purchase.Identity.Serial)
	assert.Equal(t, "90000", svc.purchase.CostPrice.String())

	err := Run(context.Background(), svc, []string{"purchase"}, strings.NewReader("{"), io.Discard)
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lot.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("xlsx-bytes"), 0o600))

	svc := &stubService{}
	err := Run(context.Background(), svc, []string{"import",
		"-supplier", "2", "-brand", "Apple", "-model", "iPhone 15", "-type", "CARTON", "-carton", "sealed",
		"-cost", "1000", "-sale", "1200", path}, nil, io.Discard)
	require.NoError(t, err)
	require.NotNil(t, svc.batch)
	assert.Equal(t, 2, svc.batch.SupplierID)
	require.NotNil(t, svc.batch.CartonType)
	assert.Equal(t, "sealed", *svc.batch.CartonType)
	assert.Nil(t, svc.batch.Storage)
	assert.Equal(t, "xlsx-bytes", string(svc.workbook))

	err = Run(context.Background(), svc, []string{"import", "-cost", "x", "-sale", "1", path}, nil, io.Discard)
	assert.ErrorContains(t, err, "invalid -cost")
}

func TestUnknownCommand(t *testing.T) {
	err := Run(context.Background(), &stubService{}, []string{"explode"}, nil, io.Discard)
	assert.ErrorContains(t, err, "unknown command: explode")
}
