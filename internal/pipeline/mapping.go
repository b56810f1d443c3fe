package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
)

// MappingKey is one allowed (type, category, subtype) combination from the
// source taxonomy.
type MappingKey struct {
	Type     string
	Category string
	Subtype  string
}

// MappingValue holds the destination values a matching source combination
// maps to.
type MappingValue struct {
	Type    string
	Subtype string
	Sharing string
}

// CategoryMapping is the curated lookup restricting which source category
// combinations are allowed to reach the portal.
type CategoryMapping map[MappingKey]MappingValue

var mappingColumns = []string{
	"Type_of_SIR",
	"Category_Type",
	"Sub_Category_Type",
	"type",
	"subtype",
	"sharing",
}

// LoadCategoryMapping reads the mapping table from a CSV file. A missing or
// malformed file is fatal for the run.
func LoadCategoryMapping(fpath string) (CategoryMapping, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return nil, &TransformationError{
			Reason: fmt.Sprintf("category mapping file %q: %v", fpath, err),
		}
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &TransformationError{
			Reason: fmt.Sprintf("category mapping file %q: %v", fpath, err),
		}
	}
	if len(rows) == 0 {
		return nil, &TransformationError{
			Reason: fmt.Sprintf("category mapping file %q: empty", fpath),
		}
	}

	idx := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		idx[name] = i
	}

	var missing []string
	for _, name := range mappingColumns {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &TransformationError{
			Reason:         fmt.Sprintf("category mapping file %q: missing columns", fpath),
			MissingColumns: missing,
		}
	}

	mapping := make(CategoryMapping, len(rows)-1)
	for _, row := range rows[1:] {
		key := MappingKey{
			Type:     row[idx["Type_of_SIR"]],
			Category: row[idx["Category_Type"]],
			Subtype:  row[idx["Sub_Category_Type"]],
		}
		mapping[key] = MappingValue{
			Type:    row[idx["type"]],
			Subtype: row[idx["subtype"]],
			Sharing: row[idx["sharing"]],
		}
	}

	return mapping, nil
}
