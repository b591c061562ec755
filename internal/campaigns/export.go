package campaigns

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voicedesk/pkg/utils"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Resumen"
	callsSheet   = "Llamadas"
)

// Export renders a campaign and its calls as an .xlsx workbook.
// It returns a download file name and the workbook bytes.
func (s *Service) Export(ctx context.Context, userID, id string) (string, []byte, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", nil, err
	}
	b, err := BuildWorkbook(d)
	if err != nil {
		return "", nil, fmt.Errorf("campaigns: export: %w", err)
	}
	return exportFileName(d.Campaign), b, nil
}

// BuildWorkbook writes a summary sheet and one row per campaign call.
func BuildWorkbook(d Detail) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), summarySheet)
	summary := [][]any{
		{"Campaña", d.Name},
		{"Estado", string(d.Status)},
		{"Destinatarios", d.TotalRecipients},
		{"Contestadas", d.CompletedCalls},
		{"Fallidas / no contestadas", d.FailedCalls},
		{"Pendientes", d.TotalRecipients - d.CompletedCalls - d.FailedCalls},
		{"Inicio", formatTime(d.StartedAt)},
		{"Fin", formatTime(d.CompletedAt)},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := xl.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if _, err := xl.NewSheet(callsSheet); err != nil {
		return nil, err
	}
	header := []string{"telefono", "nombre", "email", "lead_id", "estado", "duracion_seg", "motivo_fin", "resumen", "grabacion", "datos", "inicio", "fin"}
	if err := xl.SetSheetRow(callsSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, c := range d.Calls {
		data := ""
		if len(c.StructuredData) > 0 {
			if v, err := utils.JSONB(c.StructuredData); err == nil && v != nil {
				data = v.(string)
			}
		}
		record := []any{
			c.PhoneNumber,
			c.CustomerName,
			c.CustomerEmail,
			c.LeadID,
			string(c.Status),
			c.DurationSeconds,
			c.EndedReason,
			c.Summary,
			c.RecordingURL,
			data,
			formatTime(c.StartedAt),
			formatTime(c.EndedAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(callsSheet, cell, &record); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportFileName(c Campaign) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, c.Name)
	if name == "" {
		name = "campaign"
	}
	return name + "_" + strconv.FormatInt(c.CreatedAt.Unix(), 10) + ".xlsx"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
