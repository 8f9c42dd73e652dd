package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"review-hub-backend/config"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// EnsureDirectoryExists ensures the specified directory exists before file saving
func EnsureDirectoryExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return fmt.Errorf("error creating directory: %v", err)
		}
	}
	return nil
}

// GenerateExcel writes headers and rows to a new workbook in dirPath and
// returns the file path. The first row is frozen and autofiltered.
func GenerateExcel(dirPath, taskName, sheetName string, headers []string, rows [][]interface{}) (string, error) {
	if err := EnsureDirectoryExists(dirPath); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	if sheetName != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("error creating header style: %v", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return "", fmt.Errorf("error setting header %s: %v", header, err)
		}
	}
	if len(headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
			return "", err
		}
		if err := f.AutoFilter(sheetName, "A1:"+last, nil); err != nil {
			return "", err
		}
		if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return "", err
		}
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return "", err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", fmt.Errorf("error writing row %d: %v", r+2, err)
		}
	}

	f.SetActiveSheet(index)

	fileName := fmt.Sprintf("%s_%s.xlsx", taskName, time.Now().UTC().Format("20060102T150405"))
	filePath := filepath.Join(dirPath, fileName)
	if err := f.SaveAs(filePath); err != nil {
		config.Logger.Error("Error saving Excel file", zap.String("path", filePath), zap.Error(err))
		return "", err
	}

	config.Logger.Info("Saved Excel file", zap.String("path", filePath), zap.Int("rows", len(rows)))
	return filePath, nil
}
