package helpers

import (
	// Go Internal Packages
	"encoding/json"
	"fmt"
	"strings"
)

// PrintStruct prints a givens struct in pretty format with indent
func PrintStruct(v any) {
	res, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(res))
}

// MaskEmail keeps the first character of the local part and the domain so an
// address can be logged without exposing it.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
