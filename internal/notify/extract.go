// Package notify composes and delivers operational notifications for order
// events. Delivery is best-effort end to end: a failed or partially formatted
// notification never blocks the order transition that triggered it.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AddressPlaceholder replaces the address line when the delivery payload
// cannot be formatted at all.
const AddressPlaceholder = "адресу не вказано"

// extractionRule names one address component and the payload keys that may
// carry it, in priority order. Carriers use different field names for the
// same concept; the first present non-empty key wins.
type extractionRule struct {
	label string
	keys  []string
}

var addressRules = []extractionRule{
	{"місто", []string{"city", "cityName", "settlement", "town"}},
	{"відділення", []string{"warehouse", "warehouseNumber", "branch", "department", "postOffice"}},
	{"адреса", []string{"address", "street", "addressLine"}},
	{"область", []string{"region", "area", "oblast"}},
	{"індекс", []string{"zip", "postcode", "index"}},
}

// FormatDeliveryAddress renders a best-effort human-readable address line
// from a carrier-specific payload. Any subset of fields may be absent; an
// unparseable payload yields the placeholder, never an error.
func FormatDeliveryAddress(payload []byte) string {
	if len(payload) == 0 {
		return AddressPlaceholder
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return AddressPlaceholder
	}
	var parts []string
	for _, rule := range addressRules {
		if value, ok := firstPresent(fields, rule.keys); ok {
			parts = append(parts, rule.label+": "+value)
		}
	}
	if len(parts) == 0 {
		return AddressPlaceholder
	}
	return strings.Join(parts, ", ")
}

func firstPresent(fields map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		value := stringify(raw)
		if value != "" {
			return value, true
		}
	}
	return "", false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case json.Number:
		return t.String()
	case bool, nil:
		return ""
	default:
		return ""
	}
}
