// Package export renders batch lookup results to CSV and XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/parcel-cli/internal/pipeline"
)

var columns = []string{
	"parcel_id",
	"address",
	"city",
	"zip",
	"owner",
	"land_use",
	"site_area_sqft",
	"site_area_acres",
	"jurisdiction",
	"zoning_code",
	"zoning_description",
	"flu_code",
	"flu_description",
	"success",
	"detail",
}

// row flattens one result into the column order above.
func row(res *pipeline.LookupResult) []string {
	rec := res.Record
	z := res.Zoning
	return []string{
		res.ParcelID,
		rec.Address,
		rec.City,
		rec.ZIP,
		rec.Owner,
		rec.LandUse,
		formatArea(rec.SiteAreaSqFt),
		formatArea(rec.SiteAreaAcres),
		z.Jurisdiction,
		z.ZoningCode,
		z.ZoningDescription,
		z.FLUCode,
		z.FLUDescription,
		fmt.Sprintf("%t", z.Success),
		z.Detail,
	}
}

func formatArea(v float64) string {
	if v == 0 {
		return ""
	}
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// WriteCSV writes results as CSV with a header row.
func WriteCSV(w io.Writer, results []*pipeline.LookupResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, res := range results {
		if err := cw.Write(row(res)); err != nil {
			return eris.Wrapf(err, "export: write csv row for %s", res.ParcelID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes results as a single-sheet workbook with a bold header.
func WriteXLSX(w io.Writer, results []*pipeline.LookupResult) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Parcels")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	for _, col := range columns {
		cell := header.AddCell()
		cell.SetString(col)
		cell.SetStyle(bold)
	}

	for _, res := range results {
		r := sheet.AddRow()
		for _, v := range row(res) {
			r.AddCell().SetString(v)
		}
	}

	return eris.Wrap(wb.Write(w), "export: write workbook")
}
