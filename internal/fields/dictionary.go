package fields

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/enviroscan/logsheet/constants"
)

//go:embed fields.json
var catalogJSON []byte

// FieldSpec describes one known physical field on the logsheet.
type FieldSpec struct {
	Key           string             `json:"key"`
	LabelSynonyms []string           `json:"label_synonyms"`
	Unit          string             `json:"unit"`
	DataType      constants.DataType `json:"data_type"`
	// TypicalMin/TypicalMax bound the normal operating band; readings
	// outside it are suspicious but not impossible. Absolute physical
	// bounds come from the data type.
	TypicalMin float64 `json:"typical_min"`
	TypicalMax float64 `json:"typical_max"`
	// MaxHourlyDelta is the largest hour-over-hour change considered
	// plausible; 0 disables the rate-of-change check for the field.
	MaxHourlyDelta float64 `json:"max_hourly_delta"`
}

// HasTypicalBand reports whether the spec carries a meaningful operating band.
func (s FieldSpec) HasTypicalBand() bool {
	return s.DataType.IsNumeric() && (s.TypicalMin != 0 || s.TypicalMax != 0)
}

// Dictionary is the static catalog of known fields. It is loaded once at
// process start and never mutated, so it is safe to share across goroutines.
type Dictionary struct {
	specs []FieldSpec
	byKey map[string]FieldSpec
}

type catalogFile struct {
	Fields []FieldSpec `json:"fields"`
}

// NewDictionary loads the embedded catalog, validating it against the
// catalog schema first.
func NewDictionary() (*Dictionary, error) {
	return newDictionaryFrom(catalogJSON)
}

func newDictionaryFrom(data []byte) (*Dictionary, error) {
	if err := ValidateJSONAgainstSchema(BuildCatalogSchema(), data); err != nil {
		return nil, fmt.Errorf("field catalog: %w", err)
	}
	var cat catalogFile
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("field catalog: decode: %w", err)
	}
	d := &Dictionary{
		specs: cat.Fields,
		byKey: make(map[string]FieldSpec, len(cat.Fields)),
	}
	for _, s := range cat.Fields {
		if _, dup := d.byKey[s.Key]; dup {
			return nil, fmt.Errorf("field catalog: duplicate key %q", s.Key)
		}
		d.byKey[s.Key] = s
	}
	return d, nil
}

// Specs returns the catalog in its stable declaration order.
func (d *Dictionary) Specs() []FieldSpec {
	return d.specs
}

// Get returns the spec for key.
func (d *Dictionary) Get(key string) (FieldSpec, bool) {
	s, ok := d.byKey[key]
	return s, ok
}

// Len returns the number of known fields.
func (d *Dictionary) Len() int {
	return len(d.specs)
}
