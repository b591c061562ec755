package campaigns

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/internal/calls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExport_Workbook(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := newTestService(p, Options{})
	ctx := context.Background()

	d, err := svc.Create(ctx, "t1", validRequest())
	require.NoError(t, err)
	_, err = svc.RecordOutcome(ctx, d.Calls[0].ProviderCallID, CallOutcome{
		Status:          calls.CallStatusAnswered,
		DurationSeconds: 42,
		StructuredData:  map[string]any{"pedido": true},
		EndedReason:     "customer-ended-call",
	})
	require.NoError(t, err)

	name, b, err := svc.Export(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "Promo_enero_"))
	assert.True(t, strings.HasSuffix(name, ".xlsx"))

	xl, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	assert.Equal(t, []string{summarySheet, callsSheet}, xl.GetSheetList())

	v, err := xl.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Promo enero", v)
	v, err = xl.GetCellValue(summarySheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	rows, err := xl.GetRows(callsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "telefono", rows[0][0])

	var answered []string
	for _, r := range rows[1:] {
		if len(r) > 4 && r[4] == string(calls.CallStatusAnswered) {
			answered = r
		}
	}
	require.NotNil(t, answered)
	assert.Equal(t, "42", answered[5])
	assert.Equal(t, "customer-ended-call", answered[6])
	assert.JSONEq(t, `{"pedido":true}`, answered[9])
}

func TestExport_ForeignCampaign(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{}, Options{})
	d, err := svc.Create(context.Background(), "t1", validRequest())
	require.NoError(t, err)

	_, _, err = svc.Export(context.Background(), "t2", d.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "campaign_0.xlsx", exportFileName(Campaign{Name: "¡¡", CreatedAt: time.Unix(0, 0)}))
}
