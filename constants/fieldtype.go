package constants

// DataType is the canonical type tag for a logsheet field. Each type carries
// its own absolute physical bounds; typical operating bands live on the
// individual field specs.
type DataType string

const (
	Temperature   DataType = "temperature"
	Pressure      DataType = "pressure"
	FlowRate      DataType = "flowRate"
	Concentration DataType = "concentration"
	Time          DataType = "time"
	Totalizer     DataType = "totalizer"
	Numeric       DataType = "numeric"
	Text          DataType = "text"
)

var allDataTypes = []DataType{
	Temperature,
	Pressure,
	FlowRate,
	Concentration,
	Time,
	Totalizer,
	Numeric,
	Text,
}

// IsNumeric reports whether values of this type are parsed as floats.
func (t DataType) IsNumeric() bool {
	switch t {
	case Temperature, Pressure, FlowRate, Concentration, Totalizer, Numeric:
		return true
	}
	return false
}

// AbsoluteBounds returns the hard physical bounds for the type; values
// outside these are impossible regardless of the field's operating band.
// Bounds are in the catalog's native units (°F, in H2O, FPM, PPM/%, SCF).
func (t DataType) AbsoluteBounds() (min, max float64, ok bool) {
	switch t {
	case Temperature:
		return -459.67, 3600, true // below absolute zero to past refractory failure
	case Pressure:
		return -500, 500, true
	case FlowRate:
		return 0, 100000, true
	case Concentration:
		return 0, 1000000, true // PPM cannot exceed a million parts
	case Totalizer:
		return 0, 1e12, true
	case Numeric:
		return -1e9, 1e9, true
	}
	return 0, 0, false
}

func ParseDataType(s string) (DataType, bool) {
	for _, t := range allDataTypes {
		if s == string(t) {
			return t, true
		}
	}
	return "", false
}

func DataTypesAsStrings() []string {
	result := make([]string, len(allDataTypes))
	for i, t := range allDataTypes {
		result[i] = string(t)
	}
	return result
}
