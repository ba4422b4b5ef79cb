package catalog

// countryCodes maps logical country names to the codes the CEAC select
// elements expect. Hoisted here once and shared by every step's value
// tables; configuration data, not logic under test.
var countryCodes = map[string]string{
	"AFGHANISTAN":          "AFGH",
	"ALBANIA":              "ALB",
	"ALGERIA":              "ALGR",
	"ARGENTINA":            "ARG",
	"AUSTRALIA":            "ASTL",
	"AUSTRIA":              "AUST",
	"BANGLADESH":           "BANG",
	"BELGIUM":              "BELG",
	"BRAZIL":               "BRZL",
	"CAMBODIA":             "CBDA",
	"CANADA":               "CAN",
	"CHILE":                "CHIL",
	"CHINA":                "CHIN",
	"COLOMBIA":             "COL",
	"CUBA":                 "CUBA",
	"CZECH REPUBLIC":       "EZCH",
	"DENMARK":              "DEN",
	"DOMINICAN REPUBLIC":   "DOMR",
	"ECUADOR":              "ECUA",
	"EGYPT":                "EGYP",
	"EL SALVADOR":          "ELSL",
	"ETHIOPIA":             "ETH",
	"FINLAND":              "FIN",
	"FRANCE":               "FRAN",
	"GERMANY":              "GER",
	"GHANA":                "GHAN",
	"GREECE":               "GRC",
	"GUATEMALA":            "GUAT",
	"HAITI":                "HAT",
	"HONDURAS":             "HOND",
	"HONG KONG":            "HNK",
	"HUNGARY":              "HUNG",
	"INDIA":                "IND",
	"INDONESIA":            "IDSA",
	"IRAN":                 "IRAN",
	"IRAQ":                 "IRAQ",
	"IRELAND":              "IRE",
	"ISRAEL":               "ISRL",
	"ITALY":                "ITLY",
	"JAMAICA":              "JAM",
	"JAPAN":                "JPN",
	"JORDAN":               "JORD",
	"KAZAKHSTAN":           "KAZ",
	"KENYA":                "KENY",
	"KOREA, SOUTH":         "KOR",
	"KUWAIT":               "KUWT",
	"LEBANON":              "LEBN",
	"MALAYSIA":             "MLAS",
	"MEXICO":               "MEX",
	"MOROCCO":              "MORO",
	"NEPAL":                "NEP",
	"NETHERLANDS":          "NETH",
	"NEW ZEALAND":          "NZLD",
	"NICARAGUA":            "NIC",
	"NIGERIA":              "NRA",
	"NORWAY":               "NORW",
	"PAKISTAN":             "PKST",
	"PANAMA":               "PAN",
	"PERU":                 "PERU",
	"PHILIPPINES":          "PHIL",
	"POLAND":               "POL",
	"PORTUGAL":             "PORT",
	"QATAR":                "QTAR",
	"ROMANIA":              "ROM",
	"RUSSIA":               "RUS",
	"SAUDI ARABIA":         "SARB",
	"SINGAPORE":            "SING",
	"SOUTH AFRICA":         "SAFR",
	"SPAIN":                "SPN",
	"SRI LANKA":            "SRL",
	"SWEDEN":               "SWDN",
	"SWITZERLAND":          "SWTZ",
	"SYRIA":                "SYR",
	"TAIWAN":               "TWAN",
	"THAILAND":             "THAI",
	"TURKEY":               "TRKY",
	"UKRAINE":              "UKR",
	"UNITED ARAB EMIRATES": "UAE",
	"UNITED KINGDOM":       "GRBR",
	"UNITED STATES":        "USA",
	"URUGUAY":              "URU",
	"UZBEKISTAN":           "UZB",
	"VENEZUELA":            "VENZ",
	"VIETNAM":              "VTNM",
	"YEMEN":                "YEM",
	"ZIMBABWE":             "ZIMB",
}

// CountryCode resolves a logical country name; unknown names pass through
// verbatim, matching the engine's unmapped-value rule.
func CountryCode(name string) string {
	if code, ok := countryCodes[name]; ok {
		return code
	}
	return name
}

// CountryCodes exposes the full table for use as a FieldMapping value table.
func CountryCodes() map[string]string {
	return countryCodes
}
