package reviewcsv

import (
	"strings"
)

// Field is a canonical review column.
type Field string

const (
	FieldProvider         Field = "provider"
	FieldExternalReviewID Field = "external_review_id"
	FieldRating           Field = "rating"
	FieldText             Field = "text"
	FieldLanguage         Field = "language"
	FieldCreatedAt        Field = "created_at"
	FieldTitle            Field = "title"
	FieldResponseText     Field = "response_text"
	FieldRespondedAt      Field = "responded_at"
)

// Fields lists every canonical field in mapping priority order.
var Fields = []Field{
	FieldProvider,
	FieldExternalReviewID,
	FieldRating,
	FieldText,
	FieldLanguage,
	FieldCreatedAt,
	FieldTitle,
	FieldResponseText,
	FieldRespondedAt,
}

// RequiredFields must be mapped before a file can be previewed or submitted.
var RequiredFields = []Field{FieldProvider, FieldRating, FieldCreatedAt}

type fieldSpec struct {
	label   string
	aliases []string
}

var fieldSpecs = map[Field]fieldSpec{
	FieldProvider:         {label: "Provider", aliases: []string{"platform", "source", "site"}},
	FieldExternalReviewID: {label: "External Review ID", aliases: []string{"review_id", "review id", "external id"}},
	FieldRating:           {label: "Rating", aliases: []string{"stars", "score"}},
	FieldText:             {label: "Text", aliases: []string{"review", "comment", "body"}},
	FieldLanguage:         {label: "Language", aliases: []string{"lang", "locale"}},
	FieldCreatedAt:        {label: "Created At", aliases: []string{"date", "review_date", "review date"}},
	FieldTitle:            {label: "Title", aliases: []string{"headline", "subject"}},
	FieldResponseText:     {label: "Response Text", aliases: []string{"response", "reply"}},
	FieldRespondedAt:      {label: "Responded At", aliases: []string{"response_date", "response date", "replied_at"}},
}

// Label returns the human readable name of the field.
func (f Field) Label() string {
	if s, ok := fieldSpecs[f]; ok {
		return s.label
	}
	return string(f)
}

// IsRequired reports whether the field must be mapped.
func (f Field) IsRequired() bool {
	for _, r := range RequiredFields {
		if r == f {
			return true
		}
	}
	return false
}

// ParseField resolves a canonical field name, label or alias.
func ParseField(s string) (Field, bool) {
	n := normalizeHeader(s)
	for _, f := range Fields {
		if n == normalizeHeader(string(f)) || n == normalizeHeader(fieldSpecs[f].label) {
			return f, true
		}
		for _, a := range fieldSpecs[f].aliases {
			if n == normalizeHeader(a) {
				return f, true
			}
		}
	}
	return "", false
}

// Provider is a supported review platform.
type Provider string

const (
	ProviderGoogle      Provider = "google"
	ProviderTripadvisor Provider = "tripadvisor"
	ProviderBooking     Provider = "booking"
)

var Providers = []Provider{ProviderGoogle, ProviderTripadvisor, ProviderBooking}

// ParseProvider trims and case folds s before matching it against Providers.
func ParseProvider(s string) (Provider, bool) {
	p := NormalizeProvider(s)
	for _, known := range Providers {
		if Provider(p) == known {
			return known, true
		}
	}
	return "", false
}

// NormalizeProvider is the form stored in the dedup key.
func NormalizeProvider(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Schema names a CSV template layout.
type Schema string

const (
	SchemaFull       Schema = "full"
	SchemaSimplified Schema = "simplified"
)

// Headers returns the header row written by the template generator.
func (s Schema) Headers() []string {
	if s == SchemaSimplified {
		return []string{"date", "platform", "rating", "text", "title"}
	}
	return []string{
		string(FieldProvider),
		string(FieldExternalReviewID),
		string(FieldRating),
		string(FieldText),
		string(FieldLanguage),
		string(FieldCreatedAt),
		string(FieldResponseText),
		string(FieldRespondedAt),
	}
}

// MaxBytes returns the upload ceiling for the layout.
func (s Schema) MaxBytes(simplified, full int64) int64 {
	if s == SchemaSimplified {
		return simplified
	}
	return full
}

// ParseSchema defaults to SchemaFull for unknown input.
func ParseSchema(s string) Schema {
	if strings.EqualFold(strings.TrimSpace(s), string(SchemaSimplified)) {
		return SchemaSimplified
	}
	return SchemaFull
}

// DetectSchema reports SchemaSimplified when every header belongs to the
// simplified template.
func DetectSchema(headers []string) Schema {
	if len(headers) == 0 {
		return SchemaFull
	}
	simple := map[string]bool{}
	for _, h := range SchemaSimplified.Headers() {
		simple[normalizeHeader(h)] = true
	}
	for _, h := range headers {
		if !simple[normalizeHeader(h)] {
			return SchemaFull
		}
	}
	return SchemaSimplified
}
