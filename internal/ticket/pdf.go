package ticket

import (
    "fmt"
    "io"
    "time"

    "github.com/phpdave11/gofpdf"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/repository"
)

// RenderPDF writes an e-ticket document for a confirmed booking: one
// page per seat carrying the trip, seat number and ticket code.  The
// caller is responsible for only rendering confirmed bookings.
func RenderPDF(w io.Writer, b *model.Booking, trip *model.Trip, seats []repository.BookedSeat) error {
    pdf := gofpdf.New("P", "mm", "A5", "")
    pdf.SetTitle(fmt.Sprintf("Bus ticket — booking %d", b.ID), true)

    for _, s := range seats {
        pdf.AddPage()

        pdf.SetFont("Helvetica", "B", 18)
        pdf.CellFormat(0, 12, "BUS TICKET", "", 1, "C", false, 0, "")

        pdf.SetFont("Helvetica", "", 11)
        pdf.Ln(4)
        row := func(label, value string) {
            pdf.SetFont("Helvetica", "B", 11)
            pdf.CellFormat(38, 8, label, "", 0, "L", false, 0, "")
            pdf.SetFont("Helvetica", "", 11)
            pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
        }
        row("Passenger", b.CustomerName)
        row("Booking", fmt.Sprintf("#%d", b.ID))
        row("Route", fmt.Sprintf("#%d", b.RouteID))
        row("Trip", fmt.Sprintf("#%d", trip.ID))
        row("Departure", trip.StartTime.UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
        row("Arrival", trip.EndTime.UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
        row("Seat", s.SeatNumber)

        pdf.Ln(6)
        pdf.SetFont("Courier", "B", 16)
        pdf.CellFormat(0, 12, s.TicketCode, "1", 1, "C", false, 0, "")

        pdf.SetFont("Helvetica", "I", 8)
        pdf.Ln(4)
        pdf.CellFormat(0, 5, fmt.Sprintf("Issued %s — present this code when boarding.",
            time.Now().UTC().Format("2006-01-02")), "", 1, "C", false, 0, "")
    }

    return pdf.Output(w)
}
