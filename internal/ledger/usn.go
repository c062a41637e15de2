package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

// lateralRollStart is the first roll number reserved for lateral entry.
const lateralRollStart = 400

var usnPattern = regexp.MustCompile(`^\d[A-Z]{2}\d{2}([A-Z]{2,3})(\d{3})$`)

var departmentBranches = map[string]string{
	"CSE":   "CS",
	"AIML":  "AI",
	"ISE":   "IS",
	"IS":    "IS",
	"ECE":   "EC",
	"EEE":   "EE",
	"ME":    "ME",
	"CIVIL": "CV",
	"AERO":  "AE",
	"ARCH":  "AR",
}

// USN is a parsed university seat number.
type USN struct {
	Value         string
	Branch        string
	Roll          int
	AdmissionType models.AdmissionType
}

// ParseUSN validates raw against the seat number format and, when department
// is non-empty, checks the branch code belongs to it.
func ParseUSN(raw, department string) (USN, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return USN{}, fmt.Errorf("usn is required")
	}
	match := usnPattern.FindStringSubmatch(value)
	if match == nil {
		return USN{}, fmt.Errorf("invalid usn format %q", raw)
	}
	roll, _ := strconv.Atoi(match[2])
	if roll == 0 {
		return USN{}, fmt.Errorf("usn roll number must start at 001")
	}

	if department != "" {
		want, ok := departmentBranches[strings.ToUpper(strings.TrimSpace(department))]
		if !ok {
			return USN{}, fmt.Errorf("unknown department %q", department)
		}
		if want != match[1] {
			return USN{}, fmt.Errorf("usn branch %s does not match department %s", match[1], department)
		}
	}

	admission := models.AdmissionRegular
	if roll >= lateralRollStart {
		admission = models.AdmissionLateral
	}
	return USN{Value: value, Branch: match[1], Roll: roll, AdmissionType: admission}, nil
}
