package importapp

import (
	"strings"

	"github.com/erp/stockledger/internal/application/validation"
	"github.com/erp/stockledger/internal/domain/catalog"
	"github.com/erp/stockledger/internal/domain/shared"
	csvimport "github.com/erp/stockledger/internal/infrastructure/import"
	"github.com/shopspring/decimal"
)

// Canonical column names of the stock sheet
const (
	ColSKU             = "sku"
	ColProductName     = "product_name"
	ColVariationName   = "variation_name"
	ColCategory        = "category"
	ColSubCategory     = "sub_category"
	ColSize            = "size"
	ColColor           = "color"
	ColMaterial        = "material"
	ColWeight          = "weight"
	ColVariantInitial  = "variant_initial"
	ColStockQtyShipped = "stock_qty_shipped"
	ColStockOutShipped = "stock_out_shipped"
	ColReorderLevel    = "reorder_level"
	ColUnitCost        = "unit_cost"
	ColNotes           = "notes"
)

// HeaderAliases maps spellings seen in exported sheets to canonical columns
var HeaderAliases = map[string]string{
	"item code":     ColSKU,
	"sku code":      ColSKU,
	"product":       ColProductName,
	"product title": ColProductName,
	"variation":     ColVariationName,
	"variant":       ColVariationName,
	"variant name":  ColVariationName,
	"subcategory":   ColSubCategory,
	"colour":        ColColor,
	"initial":       ColVariantInitial,
	"qty shipped":   ColStockQtyShipped,
	"stock in":      ColStockQtyShipped,
	"shipped qty":   ColStockQtyShipped,
	"stock out":     ColStockOutShipped,
	"out shipped":   ColStockOutShipped,
	"reorder":       ColReorderLevel,
	"cost":          ColUnitCost,
	"remarks":       ColNotes,
}

// ImportRow is one validated line of a stock sheet. Empty strings and nil
// pointers mean the column was absent or blank and must not be applied.
type ImportRow struct {
	Line            int                 `csv:"-"`
	SKU             string              `csv:"sku" validate:"max=64"`
	ProductName     string              `csv:"product_name" validate:"max=200"`
	VariationName   string              `csv:"variation_name" validate:"max=200"`
	Category        string              `csv:"category" validate:"max=100"`
	SubCategory     string              `csv:"sub_category" validate:"max=100"`
	Size            string              `csv:"size" validate:"max=50"`
	Color           string              `csv:"color" validate:"max=50"`
	Material        string              `csv:"material" validate:"max=50"`
	Weight          string              `csv:"weight" validate:"max=50"`
	VariantInitial  string              `csv:"variant_initial" validate:"max=10"`
	StockQtyShipped *int                `csv:"stock_qty_shipped" validate:"omitempty,min=0"`
	StockOutShipped *int                `csv:"stock_out_shipped" validate:"omitempty,min=0"`
	ReorderLevel    *int                `csv:"reorder_level" validate:"omitempty,min=0"`
	UnitCost        decimal.NullDecimal `csv:"unit_cost"`
	Notes           string              `csv:"notes" validate:"max=2000"`
}

// HasStock reports whether either stock column was supplied
func (r ImportRow) HasStock() bool {
	return r.StockQtyShipped != nil || r.StockOutShipped != nil
}

// Quantity is shipped minus stocked out, floored at zero. A missing column counts as zero.
func (r ImportRow) Quantity() int {
	var in, out int
	if r.StockQtyShipped != nil {
		in = *r.StockQtyShipped
	}
	if r.StockOutShipped != nil {
		out = *r.StockOutShipped
	}
	return max(0, in-out)
}

// Attributes returns the SKU attributes a new variant gets from the row
func (r ImportRow) Attributes() catalog.VariantAttributes {
	return catalog.VariantAttributes{
		Size:           r.Size,
		Color:          r.Color,
		Material:       r.Material,
		Weight:         r.Weight,
		VariantInitial: r.VariantInitial,
	}
}

// mergeInto overlays the supplied attribute columns on current
func (r ImportRow) mergeInto(name string, current catalog.VariantAttributes) (string, catalog.VariantAttributes) {
	if r.VariationName != "" {
		name = r.VariationName
	}
	if r.Size != "" {
		current.Size = r.Size
	}
	if r.Color != "" {
		current.Color = r.Color
	}
	if r.Material != "" {
		current.Material = r.Material
	}
	if r.Weight != "" {
		current.Weight = r.Weight
	}
	if r.VariantInitial != "" {
		current.VariantInitial = r.VariantInitial
	}
	return name, current
}

// DecodeRows turns parsed CSV rows into ImportRows. Rows with unparsable or
// invalid cells are reported to errs and left out.
func DecodeRows(rows []*csvimport.Row, errs *csvimport.ErrorCollection) []ImportRow {
	out := make([]ImportRow, 0, len(rows))
	for _, row := range rows {
		decoded, ok := decodeRow(row, errs)
		if ok {
			out = append(out, decoded)
		}
	}
	return out
}

func decodeRow(row *csvimport.Row, errs *csvimport.ErrorCollection) (ImportRow, bool) {
	r := ImportRow{
		Line:           row.LineNumber,
		SKU:            row.Get(ColSKU),
		ProductName:    row.Get(ColProductName),
		VariationName:  row.Get(ColVariationName),
		Category:       row.Get(ColCategory),
		SubCategory:    row.Get(ColSubCategory),
		Size:           row.Get(ColSize),
		Color:          row.Get(ColColor),
		Material:       row.Get(ColMaterial),
		Weight:         row.Get(ColWeight),
		VariantInitial: row.Get(ColVariantInitial),
		Notes:          row.Get(ColNotes),
	}

	ok := true
	counts := []struct {
		col string
		dst **int
	}{
		{ColStockQtyShipped, &r.StockQtyShipped},
		{ColStockOutShipped, &r.StockOutShipped},
		{ColReorderLevel, &r.ReorderLevel},
	}
	for _, c := range counts {
		if !row.Has(c.col) {
			continue
		}
		n, valid := parseCount(row.Get(c.col))
		if !valid {
			errs.AddTypeError(row.LineNumber, c.col, "whole number", row.Get(c.col))
			ok = false
			continue
		}
		*c.dst = &n
	}
	if row.Has(ColUnitCost) {
		cost, err := decimal.NewFromString(strings.ReplaceAll(row.Get(ColUnitCost), ",", ""))
		if err != nil {
			errs.AddTypeError(row.LineNumber, ColUnitCost, "decimal", row.Get(ColUnitCost))
			ok = false
		} else {
			r.UnitCost = decimal.NewNullDecimal(cost)
		}
	}
	if !ok {
		return r, false
	}

	if err := validation.Validator().Struct(r); err != nil {
		for _, f := range validation.Fields(err) {
			errs.Add(csvimport.NewRowError(row.LineNumber, f.Field, csvimport.ErrCodeValidation, f.Message))
		}
		return r, false
	}
	if r.UnitCost.Valid && r.UnitCost.Decimal.IsNegative() {
		errs.Add(csvimport.NewRowError(row.LineNumber, ColUnitCost, csvimport.ErrCodeValidation, "Must be at least 0"))
		return r, false
	}
	return r, true
}

// parseCount accepts "1,200" and spreadsheet floats such as "12.0" but
// rejects fractional quantities
func parseCount(s string) (int, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || !d.IsInteger() {
		return 0, false
	}
	return int(d.IntPart()), true
}

// requireNewVariantFields checks what creating a variant from a row needs
func requireNewVariantFields(r ImportRow) error {
	var missing []string
	if r.ProductName == "" {
		missing = append(missing, ColProductName)
	}
	if r.SKU == "" {
		missing = append(missing, ColSKU)
	}
	if len(missing) == 0 {
		return nil
	}
	return shared.NewDomainError(shared.CodeValidationFailed,
		"No matching variant and "+strings.Join(missing, ", ")+" missing to create one")
}
