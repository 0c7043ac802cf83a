// Package stocks registers the equity standard models and their routes.
// Providers bind to these models in their own extensions; this package
// declares only the shared schema.
package stocks

import (
	"github.com/quantdesk/command-registry/pkg/loader"
	"github.com/quantdesk/command-registry/pkg/registry"
	"github.com/quantdesk/command-registry/pkg/router"
)

// Standard model names registered by this extension.
const (
	ModelStockEOD   = "StockEOD"
	ModelStockQuote = "StockQuote"
)

// Extension returns the stocks extension for the loader.
func Extension() loader.Extension {
	return loader.Extension{Name: "stocks", Version: "1.2.0", Register: Register}
}

// Register declares the StockEOD and StockQuote models and mounts the
// /stocks routes.
func Register(regs *loader.Registries) error {
	if err := regs.Models.Register(ModelStockEOD,
		[]registry.Field{
			{Name: "symbol", Kind: registry.KindString, Required: true, Description: "Ticker symbol"},
			{Name: "start_date", Kind: registry.KindDate, Description: "Start of the series, inclusive"},
			{Name: "end_date", Kind: registry.KindDate, Description: "End of the series, inclusive"},
		},
		[]registry.Field{
			{Name: "date", Kind: registry.KindDate},
			{Name: "open", Kind: registry.KindFloat},
			{Name: "high", Kind: registry.KindFloat},
			{Name: "low", Kind: registry.KindFloat},
			{Name: "close", Kind: registry.KindFloat},
			{Name: "volume", Kind: registry.KindFloat},
		}); err != nil {
		return err
	}

	if err := regs.Models.Register(ModelStockQuote,
		[]registry.Field{
			{Name: "symbol", Kind: registry.KindString, Required: true, Description: "Ticker symbol"},
		},
		[]registry.Field{
			{Name: "symbol", Kind: registry.KindString},
			{Name: "price", Kind: registry.KindFloat},
			{Name: "change", Kind: registry.KindFloat},
			{Name: "change_percent", Kind: registry.KindFloat},
			{Name: "day_low", Kind: registry.KindFloat},
			{Name: "day_high", Kind: registry.KindFloat},
			{Name: "volume", Kind: registry.KindFloat},
		}); err != nil {
		return err
	}

	sub := router.New()
	if err := sub.Command("/load", ModelStockEOD); err != nil {
		return err
	}
	if err := sub.Command("/quote", ModelStockQuote); err != nil {
		return err
	}
	if err := regs.Router.Mount("/stocks", sub); err != nil {
		return err
	}
	return nil
}
