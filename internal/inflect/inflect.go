// Package inflect translates between the Cumulo API's remote name casing
// (PascalCase request parameters, lowerCamel response fields) and the local
// snake_case attribute names exposed by this library.
package inflect

import (
	"strings"
	"unicode"
)

// acronyms lists the terms the Cumulo API spells fully uppercase on the wire
// (DNSName, VPCId). Everything else is plain word-capitalized (VolumeId,
// NextToken). Both directions consult the same table so translations
// round-trip.
var acronyms = map[string]string{
	"api":   "API",
	"arn":   "ARN",
	"cidr":  "CIDR",
	"dns":   "DNS",
	"ip":    "IP",
	"kms":   "KMS",
	"ssl":   "SSL",
	"tls":   "TLS",
	"uri":   "URI",
	"url":   "URL",
	"vpc":   "VPC",
	"https": "HTTPS",
	"http":  "HTTP",
}

// ToRemote converts a local snake_case name to the remote PascalCase form
// used for request parameters: "volume_id" -> "VolumeId", "dns_name" ->
// "DNSName".
func ToRemote(local string) string {
	words := strings.Split(local, "_")

	var builder strings.Builder

	for _, word := range words {
		builder.WriteString(capitalize(word))
	}

	return builder.String()
}

// ToRemoteLower converts a local snake_case name to the remote lowerCamel
// form used for response fields: "next_token" -> "nextToken". A leading
// acronym is lowered entirely ("ip_address" -> "ipAddress").
func ToRemoteLower(local string) string {
	words := strings.Split(local, "_")

	var builder strings.Builder

	for i, word := range words {
		if i == 0 {
			builder.WriteString(strings.ToLower(word))

			continue
		}

		builder.WriteString(capitalize(word))
	}

	return builder.String()
}

// ToLocal converts a remote PascalCase or lowerCamel name to the local
// snake_case form: "VolumeId" -> "volume_id", "DNSName" -> "dns_name",
// "nextToken" -> "next_token". Names already in snake_case pass through
// unchanged.
func ToLocal(remote string) string {
	words := splitRemote(remote)

	for i, word := range words {
		words[i] = strings.ToLower(word)
	}

	return strings.Join(words, "_")
}

// capitalize renders one local word in remote casing.
func capitalize(word string) string {
	if word == "" {
		return ""
	}

	if upper, ok := acronyms[word]; ok {
		return upper
	}

	return strings.ToUpper(word[:1]) + word[1:]
}

// splitRemote breaks a remote name into words. A new word starts at each
// uppercase rune following a lowercase rune or digit, and at the final rune
// of an uppercase run when the next rune is lowercase (so "DNSName" splits
// as "DNS", "Name").
func splitRemote(remote string) []string {
	runes := []rune(remote)

	var (
		words   []string
		current []rune
	)

	for i, r := range runes {
		if len(current) > 0 && boundaryBefore(runes, i) {
			words = append(words, string(current))
			current = current[:0]
		}

		if r == '_' {
			continue
		}

		current = append(current, r)
	}

	if len(current) > 0 {
		words = append(words, string(current))
	}

	if len(words) == 0 {
		return []string{remote}
	}

	return words
}

// boundaryBefore reports whether a word boundary falls immediately before
// runes[i].
func boundaryBefore(runes []rune, i int) bool {
	r := runes[i]
	prev := runes[i-1]

	if r == '_' || prev == '_' {
		return true
	}

	if !unicode.IsUpper(r) {
		// Lowercase rune ending an uppercase run: the run's last rune
		// belongs to this word ("DNSName" -> boundary before 'N' of "Name").
		return false
	}

	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}

	// Inside an uppercase run: break only before the run's final rune when
	// a lowercase rune follows.
	if i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(prev) {
		return true
	}

	return false
}
