package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	domain "github.com/bryanwahyu/contract-shield/internal/domain/contracts"
)

// Credential prefixes accepted per provider.
var credentialPrefixes = map[string]string{
	"anthropic": "sk-ant-",
	"openai":    "sk-",
}

// ValidateCredential checks the shape of a credential for provider. An empty
// credential is valid and clears the stored one. Providers without a known
// prefix only get the length check.
func ValidateCredential(provider, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil
	}
	if len(credential) < 20 {
		return fmt.Errorf("credential is too short")
	}
	if p, ok := credentialPrefixes[provider]; ok && !strings.HasPrefix(credential, p) {
		return fmt.Errorf("credential must start with %q", p)
	}
	return nil
}

// MaskCredential keeps the first 12 and last 4 characters.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 16 {
		return strings.Repeat("*", len(credential))
	}
	return credential[:12] + "..." + credential[len(credential)-4:]
}

// ValidateContractText rejects text that is not UTF-8 or longer than max bytes.
// Emptiness is left to the analysis service.
func ValidateContractText(text string, max int) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("contract text is not valid UTF-8")
	}
	if max > 0 && len(text) > max {
		return fmt.Errorf("contract text exceeds %d bytes", max)
	}
	return nil
}

// ParseHistoryFilter maps the filter query value, defaulting to all.
func ParseHistoryFilter(v string) (domain.HistoryFilter, error) {
	if v == "" {
		return domain.FilterAll, nil
	}
	f := domain.HistoryFilter(strings.ToLower(v))
	if !f.Valid() {
		return "", fmt.Errorf("invalid filter: %s (allowed: all, favorites, high, medium, low)", v)
	}
	return f, nil
}

// ValidateAnalysisID checks the id format used in URL paths.
func ValidateAnalysisID(id string) error {
	if id == "" || len(id) > 128 {
		return fmt.Errorf("invalid analysis id")
	}
	for _, r := range id {
		if !(r == '_' || r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return fmt.Errorf("invalid analysis id")
		}
	}
	return nil
}

// SanitizeString removes control characters except tab and newline.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ErrorBody is the JSON error envelope of the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorBody{Code: code, Message: message})
}

// WriteError writes the JSON error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, code, message)
}
