package analytics

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Export renders the comprehensive report as an xlsx workbook with one sheet
// per statistic.
func (s *Service) Export(ctx context.Context, userID uint, days int) ([]byte, error) {
	r, err := s.Comprehensive(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	return renderWorkbook(r)
}

type sheet struct {
	name   string
	header []string
	widths []float64
	rows   [][]any
}

func reportSheets(r Report) []sheet {
	devices := sheet{
		name:   "Device Usage",
		header: []string{"Device ID", "Device Name", "Device Type", "Status", "Conversations", "Actions Triggered", "Bound Actions"},
		widths: []float64{12, 24, 16, 12, 16, 18, 16},
	}
	for _, d := range r.DeviceUsage {
		devices.rows = append(devices.rows, []any{d.DeviceID, d.DeviceName, d.DeviceType, d.Status, d.ConversationCount, d.ActionTriggeredCount, d.BoundActionsCount})
	}

	actions := sheet{
		name:   "Action Usage",
		header: []string{"Action ID", "Action Name", "Type", "Duration (s)", "Usage Count"},
		widths: []float64{12, 24, 14, 14, 14},
	}
	for _, a := range r.ActionUsage {
		actions.rows = append(actions.rows, []any{a.ActionID, a.ActionName, a.ActionType, a.Duration, a.UsageCount})
	}

	trend := sheet{name: "Conversation Trend", header: []string{"Date", "Conversations"}, widths: []float64{14, 16}}
	for _, p := range r.ConversationTrend {
		trend.rows = append(trend.rows, []any{p.Date, p.Count})
	}

	summary := sheet{
		name:   "Summary",
		header: []string{"Metric", "Value"},
		widths: []float64{32, 14},
		rows: [][]any{
			{"Total Devices", r.DeviceActivationRate.TotalDevices},
			{"Active Devices", r.DeviceActivationRate.ActiveDevices},
			{"Activation Rate (%)", r.DeviceActivationRate.ActivationRate},
			{"Total Conversations", r.AIResponseStats.TotalConversations},
			{"Action Triggered Conversations", r.AIResponseStats.ActionTriggeredConversations},
			{"Action Trigger Rate (%)", r.AIResponseStats.ActionTriggerRate},
		},
	}
	return []sheet{summary, devices, actions, trend}
}

func renderWorkbook(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sh := range reportSheets(r) {
		index, err := f.NewSheet(sh.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create sheet %q: %w", sh.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}
		if err := writeSheet(f, sh, headerStyle); err != nil {
			return nil, err
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sh sheet, headerStyle int) error {
	for col, title := range sh.header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sh.name, cell, title); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sh.name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if col < len(sh.widths) {
			if err := f.SetColWidth(sh.name, name, name, sh.widths[col]); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}
	for i, row := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sh.name, err)
		}
	}
	return nil
}
