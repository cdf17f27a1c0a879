package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// ScheduleExporter выгружает сетку бронирований площадок в Excel.
type ScheduleExporter struct {
	repo   domain.Repository
	cfg    config.ExportConfig
	logger *zerolog.Logger
}

func NewScheduleExporter(repo domain.Repository, cfg config.ExportConfig, logger *zerolog.Logger) *ScheduleExporter {
	return &ScheduleExporter{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

const (
	statusIconConfirmed = "✅"
	statusIconPending   = "⏳"
	statusIconCancelled = "❌"
	statusIconCompleted = "🏁"
)

// ExportRange строит файл с расписанием: строки — площадки, колонки — дни.
func (e *ScheduleExporter) ExportRange(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.cfg.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	daily, err := e.repo.GetDailyReservations(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting reservations: %w", err)
	}

	venues, err := e.repo.GetActiveVenues(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting venues: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Расписание"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	dateColumns := e.writeDateHeaders(f, sheetName, startDate, endDate)
	e.writeVenueHeaders(f, sheetName, venues)
	e.writeReservationCells(f, sheetName, daily, venues, dateColumns)

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 24)
	}

	lastCell, _ := excelize.CoordinatesToCellName(len(dateColumns)+1, 1)
	_ = f.MergeCell(sheetName, "A1", lastCell)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.cfg.Path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("schedule export created")
	return filePath, nil
}

func (e *ScheduleExporter) writeDateHeaders(f *excelize.File, sheetName string, startDate, endDate time.Time) map[string]int {
	col := 2
	dateColumns := make(map[string]int)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	weekendStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, d.Format("02.01"))
		dateColumns[d.Format("2006-01-02")] = col

		style := headerStyle
		if models.DayTypeFor(d) == models.DayTypeWeekend {
			style = weekendStyle
		}
		_ = f.SetCellStyle(sheetName, cell, cell, style)

		col++
	}
	return dateColumns
}

func (e *ScheduleExporter) writeVenueHeaders(f *excelize.File, sheetName string, venues []models.Venue) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	row := 3
	for _, venue := range venues {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (%02d:00-%02d:00)", venue.Name, venue.OpenHour, venue.CloseHour))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
		row++
	}
}

func (e *ScheduleExporter) writeReservationCells(
	f *excelize.File, sheetName string,
	daily map[string][]*models.Reservation,
	venues []models.Venue,
	dateColumns map[string]int,
) {
	for dateKey, reservations := range daily {
		col, exists := dateColumns[dateKey]
		if !exists {
			continue
		}

		byVenue := make(map[int64][]*models.Reservation)
		for _, r := range reservations {
			byVenue[r.VenueID] = append(byVenue[r.VenueID], r)
		}

		row := 3
		for _, venue := range venues {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			venueReservations := byVenue[venue.ID]

			var cellValue string
			bookedHours := 0
			for _, r := range venueReservations {
				icon := statusIcon(r.Status)
				cellValue += fmt.Sprintf("%s %s-%s %s\n",
					icon, r.StartTime.Format("15:04"), r.EndTime.Format("15:04"), r.PlayerName)
				if r.Comment != "" {
					cellValue += fmt.Sprintf("   💬 %s\n", r.Comment)
				}
				if models.IsActiveStatus(r.Status) {
					bookedHours += len(r.HoursCovered())
				}
			}

			totalHours := venue.CloseHour - venue.OpenHour
			if cellValue == "" {
				cellValue = fmt.Sprintf("Свободно\n\nЧасов: %d", totalHours)
			} else {
				cellValue += fmt.Sprintf("\nЗанято часов: %d/%d", bookedHours, totalHours)
			}

			_ = f.SetCellValue(sheetName, cell, cellValue)

			styleID, err := e.cellStyle(f, venueReservations, bookedHours, totalHours)
			if err == nil {
				_ = f.SetCellStyle(sheetName, cell, cell, styleID)
			}
			row++
		}
	}
}

func statusIcon(status string) string {
	switch status {
	case models.StatusConfirmed:
		return statusIconConfirmed
	case models.StatusCompleted:
		return statusIconCompleted
	case models.StatusPending:
		return statusIconPending
	case models.StatusCancelled:
		return statusIconCancelled
	default:
		return "❓"
	}
}

// cellStyle подбирает заливку по степени загрузки площадки за день.
func (e *ScheduleExporter) cellStyle(f *excelize.File, reservations []*models.Reservation, bookedHours, totalHours int) (int, error) {
	active := 0
	hasPending := false
	for _, r := range reservations {
		if !models.IsActiveStatus(r.Status) {
			continue
		}
		active++
		if r.Status == models.StatusPending {
			hasPending = true
		}
	}

	fill := "#C6EFCE" // все активные подтверждены
	switch {
	case active == 0:
		fill = "#FFFFFF"
	case totalHours > 0 && bookedHours >= totalHours:
		fill = "#FFC7CE" // день занят полностью
	case hasPending:
		fill = "#FFEB9C"
	}

	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}
