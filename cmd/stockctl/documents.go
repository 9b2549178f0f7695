package main

import (
	"context"
	"flag"
	"io"
	"strconv"
	"strings"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// receivedLine is one -item of stock-in: SKU=QTY or SKU=QTY@COST
type receivedLine struct {
	sku      string
	quantity int
	unitCost decimal.NullDecimal
}

func parseReceivedLine(s string) (receivedLine, error) {
	sku, rest, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(sku) == "" {
		return receivedLine{}, invalidInput("item %q, want SKU=QTY or SKU=QTY@COST", s)
	}
	line := receivedLine{sku: strings.TrimSpace(sku)}
	qty, cost, hasCost := strings.Cut(rest, "@")
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return receivedLine{}, invalidInput("item %q: quantity %q is not a number", s, qty)
	}
	line.quantity = n
	if hasCost {
		d, err := decimal.NewFromString(strings.TrimSpace(cost))
		if err != nil {
			return receivedLine{}, invalidInput("item %q: unit cost %q is not a number", s, cost)
		}
		line.unitCost = decimal.NewNullDecimal(d)
	}
	return line, nil
}

// dispatchedLine is one -item of stock-out: SKU:platform=N[,platform=N...]
type dispatchedLine struct {
	sku       string
	breakdown inventory.PlatformBreakdown
}

func parseDispatchedLine(s string) (dispatchedLine, error) {
	sku, split, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(sku) == "" {
		return dispatchedLine{}, invalidInput("item %q, want SKU:platform=N[,platform=N]", s)
	}
	line := dispatchedLine{sku: strings.TrimSpace(sku)}
	for part := range strings.SplitSeq(split, ",") {
		name, qty, ok := strings.Cut(part, "=")
		if !ok {
			return dispatchedLine{}, invalidInput("item %q: %q is not platform=N", s, part)
		}
		platform, err := inventory.ParsePlatform(strings.TrimSpace(name))
		if err != nil {
			return dispatchedLine{}, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil {
			return dispatchedLine{}, invalidInput("item %q: quantity %q is not a number", s, qty)
		}
		switch platform {
		case inventory.PlatformTikTok:
			line.breakdown.TikTok += n
		case inventory.PlatformShopee:
			line.breakdown.Shopee += n
		case inventory.PlatformBazaar:
			line.breakdown.Bazaar += n
		default:
			line.breakdown.Others += n
		}
	}
	return line, nil
}

func (a *app) variantID(ctx context.Context, sku string) (uuid.UUID, error) {
	v, err := a.variants.GetVariantBySKU(ctx, sku)
	if err != nil {
		return uuid.Nil, err
	}
	return v.ID, nil
}

func runStockIn(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stock-in", flag.ContinueOnError)
	var (
		reason   = fs.String("reason", "", "Reason recorded on the document and its movements")
		notes    = fs.String("notes", "", "Free-form notes")
		actor    = fs.String("actor", "", "Actor recorded on the document (default: system)")
		received = fs.String("received", "", "Receipt date, YYYY-MM-DD or RFC 3339 (default: now)")
	)
	var lines []receivedLine
	fs.Func("item", "Received line SKU=QTY or SKU=QTY@COST, repeatable", func(s string) error {
		line, err := parseReceivedLine(s)
		if err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(lines) == 0 {
		return invalidInput("stock-in needs at least one -item")
	}

	req := appinv.CreateStockInRequest{
		Reason:      *reason,
		Notes:       *notes,
		Attribution: inventory.Attribution{Actor: *actor},
	}
	at, err := parseBound(*received, false)
	if err != nil {
		return err
	}
	if at != nil {
		req.ReceivedAt = *at
	}
	for _, line := range lines {
		id, err := a.variantID(ctx, line.sku)
		if err != nil {
			return err
		}
		req.Items = append(req.Items, appinv.StockInItemRequest{VariantID: id, Quantity: line.quantity, UnitCost: line.unitCost})
	}

	doc, err := a.documents.CreateStockIn(ctx, req)
	if err != nil {
		return err
	}
	return newEncoder(out).Encode(doc)
}

func runStockOut(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stock-out", flag.ContinueOnError)
	var (
		reason = fs.String("reason", "", "Reason recorded on the document and its movements")
		notes  = fs.String("notes", "", "Free-form notes")
		actor  = fs.String("actor", "", "Actor recorded on the document (default: system)")
	)
	var lines []dispatchedLine
	fs.Func("item", "Dispatched line SKU:tiktok=N,shopee=N,bazaar=N,others=N, repeatable", func(s string) error {
		line, err := parseDispatchedLine(s)
		if err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(lines) == 0 {
		return invalidInput("stock-out needs at least one -item")
	}

	req := appinv.CreateStockOutRequest{
		Reason:      *reason,
		Notes:       *notes,
		Attribution: inventory.Attribution{Actor: *actor},
	}
	for _, line := range lines {
		id, err := a.variantID(ctx, line.sku)
		if err != nil {
			return err
		}
		b := line.breakdown
		req.Items = append(req.Items, appinv.StockOutItemRequest{
			VariantID: id,
			TikTok:    b.TikTok,
			Shopee:    b.Shopee,
			Bazaar:    b.Bazaar,
			Others:    b.Others,
		})
	}

	doc, err := a.documents.CreateStockOut(ctx, req)
	if err != nil {
		return err
	}
	return newEncoder(out).Encode(doc)
}
