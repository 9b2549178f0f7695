package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	importapp "github.com/erp/stockledger/internal/application/import"
	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/storage"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

func newEncoder(out io.Writer) *json.Encoder {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc
}

func invalidInput(format string, args ...any) error {
	return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf(format, args...))
}

// importReport is one line of import output
type importReport struct {
	Source string `json:"source"`
	*importapp.ImportResult
}

func runImport(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	actor := fs.String("actor", "", "Actor recorded on the movements (default: import.batch_actor)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return invalidInput("import takes exactly one location, got %d", fs.NArg())
	}
	location := fs.Arg(0)
	if *actor != "" {
		ctx = logger.WithActor(ctx, *actor)
	}

	sources, err := a.importSources(ctx, location)
	if err != nil {
		return err
	}
	objects, err := sources.List(ctx, location)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("no CSV files at %s", location))
	}

	enc := newEncoder(out)
	var failed []error
	for _, obj := range objects {
		result, err := a.importFile(ctx, sources, obj)
		if result != nil {
			if encErr := enc.Encode(importReport{Source: obj.Location, ImportResult: result}); encErr != nil {
				return encErr
			}
		}
		if err != nil {
			a.log.Warn("Import failed", zap.String("source", obj.Location), zap.Error(err))
			failed = append(failed, fmt.Errorf("%s: %w", obj.Location, err))
		}
	}
	return errors.Join(failed...)
}

// importFile reconciles one sheet under profiling labels so a slow batch can
// be found in the flame graphs
func (a *app) importFile(ctx context.Context, src storage.ImportSource, obj storage.Object) (result *importapp.ImportResult, err error) {
	kind := "local"
	if storage.IsS3(obj.Location) {
		kind = "s3"
	}
	labels := telemetry.OperationLabels("import_batch", map[string]string{telemetry.ProfilingLabelSource: kind})
	telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
		rc, openErr := src.Open(ctx, obj.Location)
		if openErr != nil {
			err = openErr
			return
		}
		defer rc.Close()
		result, err = a.importer.ImportCSV(ctx, rc, obj.Location)
	})
	return result, err
}

func runAdjust(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("adjust", flag.ContinueOnError)
	var (
		sku          = fs.String("sku", "", "SKU of the variant (required)")
		mode         = fs.String("mode", "", "add, subtract or set (required)")
		amount       = fs.Int("amount", 0, "Quantity to add, subtract or set (required); a negative set target clamps to zero")
		movementType = fs.String("type", "", "Movement type (default: restock, sale or adjustment by mode)")
		platform     = fs.String("platform", "", "tiktok, shopee, bazaar or others")
		reason       = fs.String("reason", "", "Reason recorded on the movement")
		notes        = fs.String("notes", "", "Free-form notes")
		refType      = fs.String("ref-type", "", "Reference type, e.g. purchase_order")
		refID        = fs.String("ref-id", "", "Reference id")
		unitCost     = fs.String("unit-cost", "", "Unit cost of the moved stock")
		actor        = fs.String("actor", "", "Actor recorded on the movement (default: system)")
		key          = fs.String("key", "", "Idempotency key; a repeated key is rejected")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	amountSet := false
	fs.Visit(func(f *flag.Flag) { amountSet = amountSet || f.Name == "amount" })
	if *sku == "" || *mode == "" || !amountSet {
		return invalidInput("adjust needs -sku, -mode and -amount")
	}

	variant, err := a.variants.GetVariantBySKU(ctx, *sku)
	if err != nil {
		return err
	}

	req := appinv.AdjustStockRequest{
		VariantID:      variant.ID,
		Mode:           appinv.AdjustMode(strings.ToLower(*mode)),
		Amount:         *amount,
		Reason:         *reason,
		Notes:          *notes,
		ReferenceType:  *refType,
		ReferenceID:    *refID,
		Attribution:    inventory.Attribution{Actor: *actor},
		IdempotencyKey: *key,
	}
	if *movementType != "" {
		if req.MovementType, err = inventory.ParseMovementType(*movementType); err != nil {
			return err
		}
	}
	if *platform != "" {
		p, err := inventory.ParsePlatform(*platform)
		if err != nil {
			return err
		}
		req.Platform = &p
	}
	if *unitCost != "" {
		cost, err := decimal.NewFromString(*unitCost)
		if err != nil {
			return invalidInput("unit cost %q is not a number", *unitCost)
		}
		req.UnitCost = decimal.NewNullDecimal(cost)
	}

	result, err := a.ledger.AdjustStock(ctx, req)
	if err != nil {
		return err
	}
	return newEncoder(out).Encode(result)
}

func runMovements(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("movements", flag.ContinueOnError)
	var (
		sku      = fs.String("sku", "", "Only movements of this variant")
		types    = fs.String("type", "", "Comma-separated movement types")
		actor    = fs.String("actor", "", "Only movements by this actor")
		platform = fs.String("platform", "", "Only movements attributed to this platform")
		refType  = fs.String("ref-type", "", "Only movements with this reference type")
		refID    = fs.String("ref-id", "", "Only movements with this reference id")
		from     = fs.String("from", "", "Earliest creation time, YYYY-MM-DD or RFC 3339")
		to       = fs.String("to", "", "Latest creation time; a bare date includes the whole day")
		page     = fs.Int("page", 1, "Page number")
		pageSize = fs.Int("page-size", 50, "Movements per page, at most 500")
		order    = fs.String("order", "desc", "asc or desc by creation time")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := appinv.MovementListFilter{
		Actor:         *actor,
		Platform:      strings.ToLower(*platform),
		ReferenceType: *refType,
		ReferenceID:   *refID,
		Page:          *page,
		PageSize:      *pageSize,
		OrderBy:       "created_at",
		OrderDir:      *order,
	}
	if *sku != "" {
		variant, err := a.variants.GetVariantBySKU(ctx, *sku)
		if err != nil {
			return err
		}
		filter.VariantID = &variant.ID
	}
	if *types != "" {
		for t := range strings.SplitSeq(*types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, strings.ToLower(t))
			}
		}
	}
	var err error
	if filter.From, err = parseBound(*from, false); err != nil {
		return err
	}
	if filter.To, err = parseBound(*to, true); err != nil {
		return err
	}

	result, err := a.movements.ListMovements(ctx, filter)
	if err != nil {
		return err
	}
	return newEncoder(out).Encode(result)
}

func runReport(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	from := fs.String("from", "", "Range start, YYYY-MM-DD or RFC 3339")
	to := fs.String("to", "", "Range end; a bare date includes the whole day")
	// flags may follow the report kind
	kind := "summary"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		kind, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return invalidInput("unexpected argument %q", fs.Arg(0))
	}

	var (
		rng inventory.ReportRange
		err error
	)
	if rng.From, err = parseBound(*from, false); err != nil {
		return err
	}
	if rng.To, err = parseBound(*to, true); err != nil {
		return err
	}

	var report any
	switch kind {
	case "summary":
		report, err = a.reports.Summary(ctx, rng)
	case "category":
		report, err = a.reports.QuantityByCategory(ctx)
	case "platform":
		report, err = a.reports.StockOutByPlatform(ctx, rng)
	case "day":
		report, err = a.reports.MovementsByDay(ctx, rng)
	default:
		return invalidInput("unknown report %q, want summary, category, platform or day", kind)
	}
	if err != nil {
		return err
	}
	return newEncoder(out).Encode(report)
}

// parseBound parses a range bound. Ranges are half-open, so a bare date used
// as the upper bound moves to the start of the next day.
func parseBound(s string, upper bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, invalidInput("%q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
