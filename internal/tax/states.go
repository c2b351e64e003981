package tax

var stateNames = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"FL": "Florida",
	"GA": "Georgia",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
	"DC": "District of Columbia",
}

var filingStatusNames = map[string]string{
	"single":           "Single",
	"married_joint":    "Married Filing Jointly",
	"married_separate": "Married Filing Separately",
	"head_household":   "Head of Household",
	"qualifying_widow": "Qualifying Widow(er) with Dependent Child",
}

// StateFullName expands a two-letter state code to its full name. Unknown
// codes pass through unchanged so free-form input still produces a usable
// prompt.
func StateFullName(code string) string {
	if name, ok := stateNames[code]; ok {
		return name
	}
	return code
}

// FilingStatusName expands a filing status key to its display form. Unknown
// keys pass through unchanged.
func FilingStatusName(status string) string {
	if name, ok := filingStatusNames[status]; ok {
		return name
	}
	return status
}
