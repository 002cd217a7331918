package extraction

import (
	"strings"
	"time"
)

// ExtractedFields is the canonical field set produced by extraction. Every
// field is requested; nil means "not found in the document".
type ExtractedFields struct {
	ProductName      *string
	Brand            *string
	Model            *string
	SerialNumber     *string
	PurchaseDate     *time.Time
	WarrantyDuration *string
	ExpiryDate       *time.Time
}

// Alternate key sets seen across model outputs; the upstream field name that
// produced a value is irrelevant once normalized.
var (
	productNameKeys  = []string{"productName", "product_name", "product"}
	brandKeys        = []string{"brand", "manufacturer"}
	modelKeys        = []string{"model", "modelNumber", "model_number"}
	serialNumberKeys = []string{"serialNumber", "serial_number", "serial"}
	purchaseDateKeys = []string{"purchaseDate", "purchase_date"}
	durationKeys     = []string{"warrantyDuration", "warrantyPeriod", "warranty_duration", "warranty_period"}
	expiryDateKeys   = []string{"warrantyExpiryDate", "expiryDate", "warranty_expiry_date", "expiry_date"}
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006", "02-01-2006"}

// sentinel values models emit for "not found" despite being asked for null.
var nullSentinels = map[string]struct{}{
	"n/a": {}, "na": {}, "null": {}, "none": {}, "unknown": {}, "not available": {}, "not found": {}, "-": {},
}

func normalizeFields(payload map[string]any) ExtractedFields {
	return ExtractedFields{
		ProductName:      firstString(payload, productNameKeys),
		Brand:            firstString(payload, brandKeys),
		Model:            firstString(payload, modelKeys),
		SerialNumber:     firstString(payload, serialNumberKeys),
		PurchaseDate:     firstDate(payload, purchaseDateKeys),
		WarrantyDuration: firstString(payload, durationKeys),
		ExpiryDate:       firstDate(payload, expiryDateKeys),
	}
}

func firstString(payload map[string]any, keys []string) *string {
	for _, key := range keys {
		value, ok := payload[key]
		if !ok {
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		cleaned := strings.TrimSpace(text)
		if cleaned == "" {
			continue
		}
		if _, isSentinel := nullSentinels[strings.ToLower(cleaned)]; isSentinel {
			continue
		}
		return &cleaned
	}
	return nil
}

// firstDate parses the first usable date value; unparseable dates are
// treated as absent rather than failing the whole extraction.
func firstDate(payload map[string]any, keys []string) *time.Time {
	raw := firstString(payload, keys)
	if raw == nil {
		return nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, *raw); err == nil {
			normalized := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			return &normalized
		}
	}
	return nil
}
