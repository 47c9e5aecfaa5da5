package excel

// Columns names the header cells mapped onto department records. Matching
// is case-insensitive and ignores surrounding whitespace.
type Columns struct {
	Department string `yaml:"department"`
	Students   string `yaml:"students"`
	Faculty    string `yaml:"faculty"`
	Budget     string `yaml:"budget"`
}

// DefaultColumns returns the standard upload header names
func DefaultColumns() Columns {
	return Columns{
		Department: "Department",
		Students:   "Students",
		Faculty:    "Faculty",
		Budget:     "Budget",
	}
}

func (c Columns) required() []string {
	return []string{c.Department, c.Students, c.Faculty, c.Budget}
}
