package department

// Derive computes StudentFacultyRatio and BudgetPerStudent for every record.
// Output has the same length and order as the input.
//
// Division follows IEEE-754: a zero Faculty or Students count yields +Inf
// (NaN for 0/0). Such values are returned as-is and are not errors.
func Derive(records []Record) []DerivedRecord {
	out := make([]DerivedRecord, len(records))
	for i, r := range records {
		out[i] = DerivedRecord{
			Record:              r,
			StudentFacultyRatio: float64(r.Students) / float64(r.Faculty),
			BudgetPerStudent:    r.Budget / float64(r.Students),
		}
	}
	return out
}

// Records strips the derived fields, returning the original rows.
func Records(derived []DerivedRecord) []Record {
	out := make([]Record, len(derived))
	for i, d := range derived {
		out[i] = d.Record
	}
	return out
}
