package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate describes the content printed on a participation certificate.
type Certificate struct {
	Issuer           string
	StudentName      string
	USN              string
	EventName        string
	ClubName         string
	EventDate        time.Time
	Points           int
	VerificationCode string
	IssuedAt         time.Time
}

// CertificateRenderer draws landscape A4 certificates.
type CertificateRenderer struct {
	verifyBaseURL string
}

// NewCertificateRenderer constructs a renderer. verifyBaseURL, when set, is printed under the code.
func NewCertificateRenderer(verifyBaseURL string) *CertificateRenderer {
	return &CertificateRenderer{verifyBaseURL: strings.TrimRight(verifyBaseURL, "/")}
}

// Render produces the PDF bytes for a single certificate.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if cert.StudentName == "" || cert.EventName == "" {
		return nil, fmt.Errorf("certificate requires student and event names")
	}
	if cert.VerificationCode == "" {
		return nil, fmt.Errorf("certificate requires a verification code")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, 277, 190, "D")

	issuer := cert.Issuer
	if issuer == "" {
		issuer = "CertifyTrack"
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(issuer), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 28)
	pdf.CellFormat(0, 14, "Certificate of Participation", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 8, "This is to certify that", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 14, cert.StudentName, "", 1, "C", false, 0, "")
	if cert.USN != "" {
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(0, 7, fmt.Sprintf("(%s)", cert.USN), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 14)
	line := fmt.Sprintf("has participated in %s", cert.EventName)
	if cert.ClubName != "" {
		line += fmt.Sprintf(" organised by %s", cert.ClubName)
	}
	if !cert.EventDate.IsZero() {
		line += fmt.Sprintf(" on %s", cert.EventDate.Format("02 January 2006"))
	}
	pdf.MultiCell(0, 8, line+".", "", "C", false)
	if cert.Points > 0 {
		pdf.CellFormat(0, 8, fmt.Sprintf("AICTE activity points: %d", cert.Points), "", 1, "C", false, 0, "")
	}

	issued := cert.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}
	pdf.SetXY(20, 170)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(120, 6, "Issued on "+issued.Format("2006-01-02"), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Verification code: "+cert.VerificationCode, "", 1, "R", false, 0, "")
	if r.verifyBaseURL != "" {
		pdf.SetX(20)
		pdf.CellFormat(0, 6, r.verifyBaseURL+"/"+cert.VerificationCode, "", 1, "R", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
