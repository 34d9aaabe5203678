package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/claim/domain"
	"github.com/warrantydesk/warrantydesk/pkg/db"
)

const ExportFilename = "claims_export.csv"

// importHeaders maps the spreadsheet column headings onto claim fields.
// "Job" and "#" are alternate headings for the same column.
var importHeaders = map[string]string{
	"RO number":         "roNumber",
	"RO suffix":         "roSuffix",
	"RO date":           "roDate",
	"Job":               "jobNumber",
	"#":                 "jobNumber",
	"quoted":            "quoted",
	"Status":            "status",
	"Ent Date":          "entryDate",
	"Error description": "errorDescription",
}

var exportHeaders = []string{
	"RO number", "RO suffix", "RO date", "Job#",
	"Quoted", "Status", "Ent Date", "Error description",
}

func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (domain.ImportReport, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.ImportReport{}, domain.ErrForbidden
	}
	if _, err := s.directory.Scope(ctx, caller); err != nil {
		return domain.ImportReport{}, domain.ErrForbidden
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return domain.ImportReport{}, domain.ErrInvalidRONumber
	}

	columns := map[int]string{}
	for i, heading := range header {
		if field, ok := importHeaders[strings.TrimSpace(heading)]; ok {
			columns[i] = field
		}
	}

	report := domain.ImportReport{Rejected: []domain.RejectedRow{}}
	ownerID := ownerFor(caller)
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Rejected = append(report.Rejected, domain.RejectedRow{Line: line, Reason: "malformed_row"})
			continue
		}

		fields := map[string]string{}
		for i, value := range record {
			if field, ok := columns[i]; ok {
				fields[field] = strings.TrimSpace(value)
			}
		}

		row := domain.RejectedRow{
			Line:     line,
			RONumber: fields["roNumber"],
			ROSuffix: fields["roSuffix"],
		}

		if fields["roNumber"] == "" {
			row.Reason = "missing_ro_number"
			report.Rejected = append(report.Rejected, row)
			continue
		}
		status := domain.Status(strings.ToUpper(fields["status"]))
		if !domain.ValidStatus(status) {
			row.Reason = "invalid_status"
			report.Rejected = append(report.Rejected, row)
			continue
		}

		now := s.clock.Now()
		claim := domain.Claim{
			ID:               s.genID.Generate(),
			OwnerID:          ownerID,
			RONumber:         fields["roNumber"],
			ROSuffix:         fields["roSuffix"],
			RODate:           fields["roDate"],
			JobNumber:        fields["jobNumber"],
			Quoted:           fields["quoted"],
			Status:           status,
			EntryDate:        fields["entryDate"],
			ErrorDescription: fields["errorDescription"],
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := s.repo.Insert(ctx, s.db, &claim); err != nil {
			if db.IsDuplicateKeyErr(err) {
				row.Reason = "already_exists"
				report.Rejected = append(report.Rejected, row)
				continue
			}
			return report, err
		}

		report.Inserted++
	}

	if len(report.Rejected) > 0 {
		if report.Inserted > 0 {
			return report, domain.ErrPartialImport
		}
		return report, domain.ErrImportRejected
	}
	return report, nil
}

func (s *Service) ExportCSV(ctx context.Context) (domain.Export, error) {
	claims, err := s.List(ctx)
	if err != nil {
		return domain.Export{}, err
	}
	if len(claims) == 0 {
		return domain.Export{}, domain.ErrNoClaims
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportHeaders); err != nil {
		return domain.Export{}, err
	}
	for _, claim := range claims {
		record := []string{
			claim.RONumber,
			claim.ROSuffix,
			claim.RODate,
			claim.JobNumber,
			claim.Quoted,
			string(claim.Status),
			claim.EntryDate,
			claim.ErrorDescription,
		}
		if err := writer.Write(record); err != nil {
			return domain.Export{}, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return domain.Export{}, err
	}

	return domain.Export{Filename: ExportFilename, Content: buf.Bytes()}, nil
}
