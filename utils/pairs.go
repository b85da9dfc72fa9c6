package utils

import (
	"strings"

	"exchange-core-service/staticerr"
)

// SplitPair splits a "BASE-QUOTE" cryptopair symbol into its currencies.
func SplitPair(cryptopair string) (string, string, error) {
	parts := strings.Split(cryptopair, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", staticerr.ErrorUnknownPair
	}
	return parts[0], parts[1], nil
}
