package domain

// PopulationRecord is one long-form row of a World Bank style series export.
// Value holds the raw cell of the selected year column; it is not coerced here
// because exports use ".." and blanks for missing data.
type PopulationRecord struct {
	CountryName string `csv:"Country Name"`
	CountryCode string `csv:"Country Code"`
	SeriesName  string `csv:"Series Name"`
	SeriesCode  string `csv:"Series Code"`
	Value       string `csv:"-"`
}

// PopulationTable is the wide form of a set of PopulationRecords: one row per
// entity, one column per series code.
type PopulationTable struct {
	// Entities in order of first appearance.
	Entities []string
	// Series codes in order of first appearance.
	Series []string
	// Names maps entity code to display name.
	Names map[string]string
	// Values maps entity code to series code to raw text value.
	Values map[string]map[string]string
	// Duplicates counts (entity, series) pairs seen more than once.
	Duplicates int
}

// Lookup returns the raw value for an entity and series.
func (t *PopulationTable) Lookup(entity, series string) (string, bool) {
	row, ok := t.Values[entity]
	if !ok {
		return "", false
	}
	v, ok := row[series]
	return v, ok
}

// HasEntity reports whether the table holds a row for entity.
func (t *PopulationTable) HasEntity(entity string) bool {
	_, ok := t.Values[entity]
	return ok
}
