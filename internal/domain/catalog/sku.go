package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxSKULength bounds generated and imported SKUs
	MaxSKULength = 64

	// DefaultBasePrefix is used when a product name yields no letters or digits
	DefaultBasePrefix = "SKU"

	skuSequenceWidth = 4
	maxSKUProbes     = 1000
)

// foldDiacritics turns "Éclat" into "Eclat" so accented names keep their initials.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func firstAlnum(s string) (rune, bool) {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r, true
		}
	}
	return 0, false
}

func asciiUpperAlnum(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// BasePrefix builds the product part of a SKU from the first letter of each
// word of the product name. "Gold Hoop Earrings" becomes "GHE".
func BasePrefix(productName string) string {
	var b strings.Builder
	for _, word := range strings.Fields(foldDiacritics(productName)) {
		r, ok := firstAlnum(word)
		if !ok {
			continue
		}
		r = unicode.ToUpper(r)
		if asciiUpperAlnum(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultBasePrefix
	}
	return b.String()
}

// VariantAttributes are the descriptive attributes of a variant.
// Size, color, material and the explicit initial make up the SKU identity.
type VariantAttributes struct {
	Size           string
	Color          string
	Material       string
	Weight         string
	VariantInitial string
}

// Normalize trims surrounding whitespace from every attribute
func (a VariantAttributes) Normalize() VariantAttributes {
	return VariantAttributes{
		Size:           strings.TrimSpace(a.Size),
		Color:          strings.TrimSpace(a.Color),
		Material:       strings.TrimSpace(a.Material),
		Weight:         strings.TrimSpace(a.Weight),
		VariantInitial: strings.TrimSpace(a.VariantInitial),
	}
}

// SameIdentity reports whether both attribute sets produce the same variant code.
// Weight is descriptive only.
func (a VariantAttributes) SameIdentity(other VariantAttributes) bool {
	x, y := a.Normalize(), other.Normalize()
	return x.Size == y.Size &&
		x.Color == y.Color &&
		x.Material == y.Material &&
		x.VariantInitial == y.VariantInitial
}

// VariantCode concatenates size as-is, the upper-cased first letter of color
// and material, and the explicit variant initial as-is. Empty parts add nothing.
func VariantCode(attrs VariantAttributes) string {
	a := attrs.Normalize()
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(a.Size, " ", ""))
	for _, part := range []string{a.Color, a.Material} {
		if r, ok := firstAlnum(foldDiacritics(part)); ok {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	b.WriteString(strings.ReplaceAll(a.VariantInitial, " ", ""))
	return b.String()
}

// SKUStem returns the SKU up to (and including) the dash before the sequence.
// An empty variant code gives the bare base prefix with no dash.
func SKUStem(base, code string) string {
	if code == "" {
		return base
	}
	return base + "-" + code + "-"
}

// FormatSKU renders "{base}-{code}-{NNNN}"
func FormatSKU(base, code string, seq int) string {
	if code == "" {
		return fmt.Sprintf("%s-%0*d", base, skuSequenceWidth, seq)
	}
	return fmt.Sprintf("%s%0*d", SKUStem(base, code), skuSequenceWidth, seq)
}

// ParseSKUSequence extracts the numeric suffix of sku under stem.
// Returns false when sku does not belong to the stem or the suffix is not numeric.
func ParseSKUSequence(sku, stem string) (int, bool) {
	if !strings.HasPrefix(sku, stem) {
		return 0, false
	}
	rest := sku[len(stem):]
	if rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidateSKU checks an externally supplied SKU
func ValidateSKU(sku string) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "SKU cannot be empty")
	}
	if len(sku) > MaxSKULength {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("SKU cannot exceed %d characters", MaxSKULength))
	}
	return nil
}

// SKULookup is the read side the generator needs from variant storage.
// excludeID skips the variant whose SKU is being regenerated; pass uuid.Nil for new variants.
type SKULookup interface {
	SKUsWithPrefix(ctx context.Context, prefix string, excludeID uuid.UUID) ([]string, error)
	SKUExists(ctx context.Context, sku string, excludeID uuid.UUID) (bool, error)
}

// SKUGenerator produces SKUs that are unique among stored variants at the time of the call.
// Concurrent creators can still race; storage enforces a unique index and callers retry.
type SKUGenerator struct {
	lookup SKULookup
}

// NewSKUGenerator creates a new SKUGenerator
func NewSKUGenerator(lookup SKULookup) *SKUGenerator {
	return &SKUGenerator{lookup: lookup}
}

// Generate returns the next free SKU for the product name and attributes.
func (g *SKUGenerator) Generate(ctx context.Context, productName string, attrs VariantAttributes, excludeID uuid.UUID) (string, error) {
	return g.GenerateWithPrefix(ctx, BasePrefix(productName), attrs, excludeID)
}

// GenerateWithPrefix is Generate for a stored base prefix. Products keep the
// prefix they were created with, so SKUs survive a rename.
func (g *SKUGenerator) GenerateWithPrefix(ctx context.Context, base string, attrs VariantAttributes, excludeID uuid.UUID) (string, error) {
	if base == "" {
		base = DefaultBasePrefix
	}
	code := VariantCode(attrs)

	if code == "" {
		exists, err := g.lookup.SKUExists(ctx, base, excludeID)
		if err != nil {
			return "", err
		}
		if !exists {
			return base, nil
		}
		// The bare prefix is taken; fall back to a numbered form.
		return g.nextInSequence(ctx, base+"-", func(seq int) string { return FormatSKU(base, "", seq) }, excludeID)
	}

	return g.nextInSequence(ctx, SKUStem(base, code), func(seq int) string { return FormatSKU(base, code, seq) }, excludeID)
}

func (g *SKUGenerator) nextInSequence(ctx context.Context, stem string, format func(int) string, excludeID uuid.UUID) (string, error) {
	existing, err := g.lookup.SKUsWithPrefix(ctx, stem, excludeID)
	if err != nil {
		return "", err
	}

	maxSeq := 0
	for _, sku := range existing {
		if n, ok := ParseSKUSequence(sku, stem); ok && n > maxSeq {
			maxSeq = n
		}
	}

	for seq := maxSeq + 1; seq <= maxSeq+maxSKUProbes; seq++ {
		candidate := format(seq)
		if len(candidate) > MaxSKULength {
			return "", shared.NewDomainError(shared.CodeInvalidInput, "generated SKU exceeds maximum length")
		}
		exists, err := g.lookup.SKUExists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", shared.NewDomainError(shared.CodeConcurrencyConflict, "could not find a free SKU sequence for "+stem)
}
