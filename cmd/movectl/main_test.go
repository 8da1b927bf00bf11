package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kardex/internal/core/apperror"
	"kardex/internal/core/types"
)

const (
	productID   = "0190a8a0-0000-7000-8000-000000000001"
	warehouseID = "0190a8a0-0000-7000-8000-0000000000a1"
)

func snapshot(kind, quantity string) string {
	return `{
	  "movement": {
	    "id": "0190a8a0-0000-7000-8000-0000000000f1",
	    "kind": "` + kind + `",
	    "state": "APPLIED",
	    "date": "2024-03-01T10:00:00Z",
	    "reference": "REC-1",
	    "sourceWarehouseId": "` + warehouseID + `",
	    "destinationWarehouseId": "` + warehouseID + `",
	    "lines": [{"productId": "` + productID + `", "quantity": "` + quantity + `", "unitCost": "2.5"}]
	  },
	  "balances": [{
	    "productId": "` + productID + `",
	    "warehouseId": "` + warehouseID + `",
	    "quantity": "4", "reserved": "0", "averageCost": "2", "valuation": "8"
	  }],
	  "warehouses": [{"id": "` + warehouseID + `", "code": "MAIN", "isActive": true}]
	}`
}

func TestRun_Receipt(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-verify"}, strings.NewReader(snapshot("RECEIPT", "4")), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var out Output
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Nil(t, out.Error)
	require.Len(t, out.Balances, 1)
	require.Len(t, out.Kardex, 1)
	require.Len(t, out.Touched, 1)

	b := out.Balances[0]
	assert.True(t, types.MustQuantity("8").Equal(b.Quantity), b.Quantity.String())
	assert.True(t, types.MustMoney("18").Equal(b.Valuation), b.Valuation.String())
	assert.True(t, types.MustMoney("2.25").Equal(b.AverageCost), b.AverageCost.String())
	assert.Equal(t, "REC-1", out.Kardex[0].Reference)
}

func TestRun_Rejection(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader(snapshot("ISSUE", "5")), &stdout, &stderr)
	require.Equal(t, 1, code)

	var out Output
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.NotNil(t, out.Error)
	assert.Equal(t, apperror.CodeInsufficientStock, out.Error.Code)
	assert.Empty(t, out.Balances)
}

func TestRun_InputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshot("ISSUE", "1")), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-in", path, "-touched"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var out Output
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.Len(t, out.Balances, 1)
	assert.True(t, types.MustQuantity("3").Equal(out.Balances[0].Quantity))
	assert.True(t, types.MustMoney("6").Equal(out.Balances[0].Valuation))
}

func TestRun_BadInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, strings.NewReader("{"), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "decode snapshot")

	stderr.Reset()
	assert.Equal(t, 2, run([]string{"-in", filepath.Join(t.TempDir(), "missing.json")}, strings.NewReader(""), &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-nope"}, strings.NewReader(""), &stdout, &stderr))
}
