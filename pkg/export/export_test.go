package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Columns: []Column{{Key: "usn", Title: "USN"}, {Key: "total_points"}},
		Rows: []map[string]string{
			{"usn": "1AB21CS001", "total_points": "80"},
			{"usn": "1AB21CS402"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	require.Equal(t, "USN,total_points\n1AB21CS001,80\n1AB21CS402,\n", string(out))
}

func TestCSVExporterQuotesCommas(t *testing.T) {
	var buf bytes.Buffer
	err := NewCSVExporter().Write(&buf, Dataset{
		Columns: []Column{{Key: "name"}},
		Rows:    []map[string]string{{"name": "Asha, K"}},
	})
	require.NoError(t, err)
	require.Equal(t, "name\n\"Asha, K\"\n", buf.String())
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.ErrorIs(t, err, ErrNoColumns)
}

func TestCertificateRendererRender(t *testing.T) {
	out, err := NewCertificateRenderer("https://example.edu/verify/").Render(Certificate{
		StudentName:      "Asha Rao",
		USN:              "1AB21CS001",
		EventName:        "Hackathon",
		ClubName:         "Coding Club",
		EventDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Points:           10,
		VerificationCode: "AB12CD34",
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestCertificateRendererValidates(t *testing.T) {
	_, err := NewCertificateRenderer("").Render(Certificate{StudentName: "x", EventName: "y"})
	require.Error(t, err)
}
