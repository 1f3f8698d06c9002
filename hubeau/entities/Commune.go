package entities

// Commune is a municipality served by a postal code.
type Commune struct {
	Insee string `json:"insee"`
	Nom   string `json:"nom"`
}

// Departement returns the department prefix of the INSEE code ("33", "2A", ...).
func (c Commune) Departement() string {
	if len(c.Insee) < 2 {
		return c.Insee
	}
	return c.Insee[:2]
}
