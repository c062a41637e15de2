package models

// UniquenessReport lists (event, student) pairs violating one-row-per-pair rules.
type UniquenessReport struct {
	Attendance    []DuplicateKey `json:"attendance"`
	Registrations []DuplicateKey `json:"registrations"`
	Transactions  []DuplicateKey `json:"transactions"`
}

// Clean reports whether no duplicates were found.
func (r UniquenessReport) Clean() bool {
	return len(r.Attendance) == 0 && len(r.Registrations) == 0 && len(r.Transactions) == 0
}
