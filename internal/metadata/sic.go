package metadata

import "strconv"

// SectorForSIC maps a Standard Industrial Classification code to its division.
func SectorForSIC(code string) string {
	if len(code) < 2 {
		return ""
	}
	major, err := strconv.Atoi(code[:2])
	if err != nil {
		return ""
	}

	switch {
	case major >= 1 && major <= 9:
		return "Agriculture, Forestry & Fishing"
	case major >= 10 && major <= 14:
		return "Mining"
	case major >= 15 && major <= 17:
		return "Construction"
	case major >= 20 && major <= 39:
		return "Manufacturing"
	case major >= 40 && major <= 49:
		return "Transportation & Public Utilities"
	case major >= 50 && major <= 51:
		return "Wholesale Trade"
	case major >= 52 && major <= 59:
		return "Retail Trade"
	case major >= 60 && major <= 67:
		return "Finance, Insurance & Real Estate"
	case major >= 70 && major <= 89:
		return "Services"
	case major >= 91 && major <= 99:
		return "Public Administration"
	default:
		return ""
	}
}
