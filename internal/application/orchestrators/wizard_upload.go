package orchestrators

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"scheduler/internal/domain/wizard"
)

// MaxUploadBytes bounds the spreadsheet size accepted by the console.
const MaxUploadBytes = 10 << 20

// SectionUploader is the backend surface needed by the upload step.
type SectionUploader interface {
	UploadSections(ctx context.Context, token, termID, filename string, r io.Reader) (wizard.UploadResult, error)
}

// UploadSectionsInput carries the submitted spreadsheet.
type UploadSectionsInput struct {
	SessionID string
	Token     string
	TermID    string
	Filename  string
	Data      []byte
}

// UploadSectionsDeps holds dependencies for UploadSections.
type UploadSectionsDeps struct {
	Backend SectionUploader
	Wizard  WizardDeps
}

// Preflight messages.
const (
	MsgUploadNoTerm     = "Please select a term before uploading."
	MsgUploadNoFile     = "Please choose an Excel file to upload."
	MsgUploadNotXLSX    = "Only .xlsx spreadsheets are supported."
	MsgUploadUnreadable = "The file is not a readable Excel workbook."
	MsgUploadNoRows     = "The spreadsheet has no data rows below the header."
	MsgUploadTooLarge   = "The file is too large to upload."
)

// PreflightWorkbook checks that data is an .xlsx workbook whose first sheet
// has a header row and at least one data row.
// PRE: none
// POST: returns the number of data rows, or a *ValidationError
func PreflightWorkbook(filename string, data []byte) (int, error) {
	if strings.TrimSpace(filename) == "" || len(data) == 0 {
		return 0, &ValidationError{Message: MsgUploadNoFile}
	}
	if len(data) > MaxUploadBytes {
		return 0, &ValidationError{Message: MsgUploadTooLarge}
	}
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return 0, &ValidationError{Message: MsgUploadNotXLSX}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return 0, &ValidationError{Message: MsgUploadUnreadable}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return 0, &ValidationError{Message: MsgUploadNoRows}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, &ValidationError{Message: MsgUploadUnreadable}
	}

	dataRows := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if !blankRow(row) {
			dataRows++
		}
	}
	if dataRows == 0 {
		return 0, &ValidationError{Message: MsgUploadNoRows}
	}
	return dataRows, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ExecuteUploadSections preflights the spreadsheet, sends it to the backend
// and advances to course selection. There is no retry.
// PRE: none; input is validated here
// POST: on success the upload result is persisted and the step is select;
// on failure the step is unchanged
func ExecuteUploadSections(ctx context.Context, input UploadSectionsInput, deps UploadSectionsDeps) (wizard.UploadResult, error) {
	termID := strings.TrimSpace(input.TermID)
	if termID == "" {
		return wizard.UploadResult{}, &ValidationError{Message: MsgUploadNoTerm}
	}
	rows, err := PreflightWorkbook(input.Filename, input.Data)
	if err != nil {
		slog.Info("upload_event", "event", "upload_rejected", "filename", input.Filename, "reason", err.Error())
		return wizard.UploadResult{}, err
	}

	result, err := deps.Backend.UploadSections(ctx, input.Token, termID, filepath.Base(input.Filename), bytes.NewReader(input.Data))
	if err != nil {
		slog.Warn("upload_event", "event", "upload_failed", "term_id", termID, "error", err)
		return wizard.UploadResult{}, err
	}

	if _, err := updateWizardState(ctx, input.SessionID, deps.Wizard, func(st *wizard.State) error {
		st.CompleteUpload(termID, result)
		return nil
	}); err != nil {
		return wizard.UploadResult{}, err
	}

	slog.Info("upload_event", "event", "upload_completed",
		"term_id", termID, "rows", rows, "created", result.Created, "skipped", result.Skipped)
	return result, nil
}
