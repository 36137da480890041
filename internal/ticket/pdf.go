// Package ticket renders a printable e-ticket for a booking
package ticket

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// Render returns a single-page A4 PDF with the booking summary and a QR code of the PNR
func Render(b *entity.Booking, now time.Time) ([]byte, error) {
	qrBytes, err := qrcode.Encode("PNR:"+b.PNR, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// --- Header ---
	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, "ELECTRONIC RESERVATION SLIP")
	pdf.Ln(14)
	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	// --- Summary + QR ---
	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, yStart, 120, 55, "F")

	pdf.SetXY(20, yStart+6)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "PNR "+b.PNR)
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		fmt.Sprintf("Train: %s %s", b.TrainNumber, b.TrainName),
		fmt.Sprintf("From %s to %s", b.Origin, b.Destination),
		fmt.Sprintf("Date: %s  Departs %s  Arrives %s", b.TravelDate.Format("02 Jan 2006"), b.DepartureTime, b.ArrivalTime),
		fmt.Sprintf("Class: %s  Quota: %s", classLabel(b.Class), b.Quota),
		fmt.Sprintf("Status: %s", strings.ToUpper(string(b.EffectiveStatus(now)))),
	} {
		pdf.SetX(20)
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}

	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "png"}, bytes.NewReader(qrBytes))
	pdf.ImageOptions("qr", 145, yStart+3, 48, 0, false, gofpdf.ImageOptions{ImageType: "png"}, 0, "")

	pdf.SetY(yStart + 62)

	// --- Passengers ---
	sectionTitle(pdf, "PASSENGERS")
	pdf.SetFont("Helvetica", "B", 10)
	widths := []float64{10, 70, 20, 25, 30, 25}
	for i, h := range []string{"#", "Name", "Age", "Gender", "Berth", "Seat"} {
		pdf.CellFormat(widths[i], 7, h, "B", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for i, p := range b.Passengers {
		name := p.Name
		if p.Senior {
			name += " (Sr.)"
		}
		cells := []string{
			fmt.Sprintf("%d", i+1),
			name,
			fmt.Sprintf("%d", p.Age),
			string(p.Gender),
			string(p.PreferredBerth),
			p.SeatID,
		}
		for j, c := range cells {
			pdf.CellFormat(widths[j], 7, tr(c), "", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	// --- Fare ---
	sectionTitle(pdf, "FARE DETAILS")
	pdf.SetFont("Helvetica", "", 11)
	fareLine(pdf, "Ticket fare", b.TicketFare)
	fareLine(pdf, "Convenience fee", b.ConvenienceFee)
	pdf.SetFont("Helvetica", "B", 11)
	fareLine(pdf, "Total", b.TotalPrice)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 6, "Transaction: "+b.TransactionID)

	// --- Footer ---
	pdf.SetY(-25)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, "Carry a valid photo ID during the journey. Generated "+now.UTC().Format(time.RFC1123), "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the suggested download name
func FileName(b *entity.Booking) string {
	return fmt.Sprintf("ticket-%s.pdf", b.PNR)
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(40, 40, 40)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
}

func fareLine(pdf *gofpdf.Fpdf, label string, amount float64) {
	pdf.CellFormat(60, 7, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, fmt.Sprintf("INR %.2f", amount), "", 0, "R", false, 0, "")
	pdf.Ln(-1)
}

func classLabel(class entity.FareClass) string {
	if info, ok := entity.LookupClass(string(class)); ok {
		return fmt.Sprintf("%s (%s)", info.Name, info.Code)
	}
	return string(class)
}
