package letters

import "strings"

// Postage re-derivation from a decoded recipient address.
//
// The sanitiser returns the address it actually read off the letter,
// which may disagree with the postage the sender declared: a letter sent
// as second class can turn out to be addressed to Ireland. The last
// non-blank address line is treated as the destination country and looked
// up in a zone table. Only an international result is meaningful; a
// domestic (or unrecognised) destination is "no change" and the declared
// postage stands.

// europeZone lists destination country spellings that rate as the
// European tier.
var europeZone = map[string]struct{}{
	"AUSTRIA": {}, "BELGIUM": {}, "BULGARIA": {}, "CROATIA": {},
	"CYPRUS": {}, "CZECH REPUBLIC": {}, "CZECHIA": {}, "DENMARK": {},
	"ESTONIA": {}, "FINLAND": {}, "FRANCE": {}, "GERMANY": {},
	"GREECE": {}, "HUNGARY": {}, "ICELAND": {}, "IRELAND": {},
	"ITALY": {}, "LATVIA": {}, "LIECHTENSTEIN": {}, "LITHUANIA": {},
	"LUXEMBOURG": {}, "MALTA": {}, "MONACO": {}, "NETHERLANDS": {},
	"NORWAY": {}, "POLAND": {}, "PORTUGAL": {}, "ROMANIA": {},
	"SAN MARINO": {}, "SLOVAKIA": {}, "SLOVENIA": {}, "SPAIN": {},
	"SWEDEN": {}, "SWITZERLAND": {}, "TURKEY": {}, "UKRAINE": {},
	"VATICAN CITY": {},
}

// restOfWorldZone lists destination country spellings that rate as the
// rest-of-world tier.
var restOfWorldZone = map[string]struct{}{
	"AUSTRALIA": {}, "BRAZIL": {}, "CANADA": {}, "CHINA": {},
	"EGYPT": {}, "HONG KONG": {}, "INDIA": {}, "INDONESIA": {},
	"ISRAEL": {}, "JAPAN": {}, "KENYA": {}, "MALAYSIA": {},
	"MEXICO": {}, "NEW ZEALAND": {}, "NIGERIA": {}, "PAKISTAN": {},
	"PHILIPPINES": {}, "SAUDI ARABIA": {}, "SINGAPORE": {},
	"SOUTH AFRICA": {}, "SOUTH KOREA": {}, "THAILAND": {},
	"UNITED ARAB EMIRATES": {}, "UNITED STATES": {},
	"UNITED STATES OF AMERICA": {}, "USA": {}, "VIETNAM": {},
}

// domesticNames are final address lines that explicitly name the home
// country and therefore never re-rate a letter.
var domesticNames = map[string]struct{}{
	"UNITED KINGDOM": {}, "UK": {}, "GREAT BRITAIN": {}, "GB": {},
	"ENGLAND": {}, "SCOTLAND": {}, "WALES": {}, "NORTHERN IRELAND": {},
}

// InternationalPostageForAddress re-derives the postage class from a
// decoded recipient address. The bool result is true only when the
// destination rates as international; domestic and unrecognised
// destinations return false and the caller keeps the declared postage.
func InternationalPostageForAddress(address string) (Postage, bool) {
	country := destinationLine(address)
	if country == "" {
		return "", false
	}
	if _, ok := domesticNames[country]; ok {
		return "", false
	}
	if _, ok := europeZone[country]; ok {
		return PostageEurope, true
	}
	if _, ok := restOfWorldZone[country]; ok {
		return PostageRestOfWorld, true
	}
	return "", false
}

// destinationLine returns the normalised last non-blank line of the
// address. Addresses arrive either newline- or comma-separated.
func destinationLine(address string) string {
	normalised := strings.ReplaceAll(address, ",", "\n")
	lines := strings.Split(normalised, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return strings.ToUpper(strings.TrimSuffix(line, "."))
		}
	}
	return ""
}
