package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/astgate/internal/common"
)

// SavePDF renders the given summary into a PDF document. The summary digest
// is embedded as a QR code on the first page.
func SavePDF(sum Summary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Surveillance Decode Report", false)
	pdf.SetAuthor("astgatectl", false)
	pdf.SetCreator("astgatectl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Surveillance Decode Report")
	addSummarySection(pdf, sum)
	addCategorySection(pdf, sum.Categories)
	addDigestSection(pdf, sum)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Generated", value: sum.GeneratedAt.Format(time.RFC3339)},
		{label: "Source", value: sum.Source},
		{label: "Records", value: strconv.Itoa(sum.TotalRecords)},
		{label: "Bytes", value: common.FormatBytes(sum.TotalBytes)},
		{label: "Truncated", value: strconv.Itoa(sum.Truncated)},
	}
	if sum.FirstSeen != 0 || sum.LastSeen != 0 {
		items = append(items, struct {
			label string
			value string
		}{label: "Time Span", value: timeSpanLabel(sum.FirstSeen, sum.LastSeen)})
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addCategorySection(pdf *gofpdf.Fpdf, rows []CategoryCount) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Categories")
	pdf.Ln(9)

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No records decoded.", "", "L", false)
		pdf.Ln(4)
		return
	}

	headers := []string{"Category", "Records"}
	widths := []float64{40, 40}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		pdf.CellFormat(widths[0], 6, fmt.Sprintf("CAT%03d", row.Category), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, strconv.Itoa(row.Records), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func addDigestSection(pdf *gofpdf.Fpdf, sum Summary) {
	digest := sum.Digest()
	if digest == "" {
		return
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Digest")
	pdf.Ln(9)

	pdf.SetFont("Courier", "", 8)
	pdf.MultiCell(0, 4, digest, "", "L", false)
	pdf.Ln(2)

	png, err := DigestToQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("summary-digest", opts, bytes.NewReader(png))
	pdf.ImageOptions("summary-digest", pdf.GetX(), pdf.GetY(), 32, 32, false, opts, 0, "")
	pdf.Ln(36)
}

func timeSpanLabel(first, last float64) string {
	f := time.Unix(0, int64(first*float64(time.Second))).UTC()
	l := time.Unix(0, int64(last*float64(time.Second))).UTC()
	return fmt.Sprintf("%s - %s", f.Format(time.RFC3339), l.Format(time.RFC3339))
}
