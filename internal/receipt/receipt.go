// Package receipt renders appointment receipts for download.
package receipt

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"github.com/hackgods/hospital-portal-scheduling/internal/appointment"
	"github.com/hackgods/hospital-portal-scheduling/internal/schedule"
)

// Renderer turns a receipt record into a downloadable document.
type Renderer interface {
	ContentType() string
	Extension() string
	Render(w io.Writer, r *appointment.Receipt) error
}

// Filename is the attachment name offered to the client.
func Filename(r Renderer, appointmentNumber string) string {
	return fmt.Sprintf("appointment_receipt_%s.%s", appointmentNumber, r.Extension())
}

const textLayout = `APPOINTMENT RECEIPT
Receipt #{{.AppointmentNumber}}

Doctor:          {{.DoctorName}}
Specialization:  {{.Specialization}}
Hospital:        {{.HospitalName}}
{{- if .PatientName}}
Patient:         {{.PatientName}}
{{- end}}
Date:            {{.Date}}
Time:            {{.Time}}
Status:          {{.Status}}

PAYMENT DETAILS
{{printf "%-24s %12s" "Item" "Amount"}}
{{printf "%-24s %12s" "Consultation Fee" (money .ConsultationFee)}}
{{printf "%-24s %12s" "Service Charge" (money .ServiceCharge)}}
{{printf "%-24s %12s" "Total" (money .TotalAmount)}}
{{- if .PaymentStatus}}
Payment status:  {{.PaymentStatus}}
{{- end}}

Verification: {{.Verification}}

This is a computer-generated document. No signature is required.
For any queries, please contact our support team.
`

// TextRenderer renders a plain-text receipt.
type TextRenderer struct {
	tmpl *template.Template
}

func NewTextRenderer() *TextRenderer {
	funcs := template.FuncMap{
		"money": func(v float64) string { return fmt.Sprintf("Rs. %.2f", v) },
	}
	return &TextRenderer{
		tmpl: template.Must(template.New("receipt").Funcs(funcs).Parse(textLayout)),
	}
}

func (*TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }
func (*TextRenderer) Extension() string   { return "txt" }

type textView struct {
	AppointmentNumber string
	DoctorName        string
	Specialization    string
	HospitalName      string
	PatientName       string
	Date              string
	Time              string
	Status            string
	PaymentStatus     string
	ConsultationFee   float64
	ServiceCharge     float64
	TotalAmount       float64
	Verification      string
}

// verification is the payload a scanner would use to look the appointment up.
type verification struct {
	AppointmentID int64  `json:"appointment_id"`
	Doctor        string `json:"doctor"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

func (t *TextRenderer) Render(w io.Writer, r *appointment.Receipt) error {
	check, err := json.Marshal(verification{
		AppointmentID: r.AppointmentID,
		Doctor:        r.DoctorName,
		Date:          r.Date.Format(schedule.DateLayout),
		Time:          r.Time.Clock24()[:5],
	})
	if err != nil {
		return fmt.Errorf("encode verification: %w", err)
	}

	view := textView{
		AppointmentNumber: r.AppointmentNumber,
		DoctorName:        r.DoctorName,
		Specialization:    "-",
		HospitalName:      r.HospitalName,
		PatientName:       r.PatientName,
		Date:              r.Date.Format("January 02, 2006"),
		Time:              r.Time.Clock12(),
		Status:            string(r.Status),
		ConsultationFee:   r.ConsultationFee,
		ServiceCharge:     r.ServiceCharge,
		TotalAmount:       r.TotalAmount,
		Verification:      string(check),
	}
	if r.DoctorSpecialization != nil {
		view.Specialization = *r.DoctorSpecialization
	}
	if r.PaymentStatus != nil {
		view.PaymentStatus = string(*r.PaymentStatus)
	}

	if err := t.tmpl.Execute(w, view); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return nil
}
