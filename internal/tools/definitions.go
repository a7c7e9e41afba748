// Package tools exposes the market service to LLM tool calling: the tool
// schema, a dispatcher that executes tool calls and per-user assistant
// sessions that drive the tool-calling loop.
package tools

import (
	"github.com/openai/openai-go"

	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
)

// Tool names.
const (
	ToolStockData          = "get_stock_data"
	ToolStockDataByID      = "get_stock_data_by_id"
	ToolLatestPrices       = "get_latest_prices"
	ToolMarketOverview     = "get_market_overview"
	ToolHistoricalAnalysis = "get_historical_analysis"
	ToolCompareSymbols     = "compare_symbols"
)

// DefaultDays is the analysis window used when a call omits days.
const DefaultDays = 30

func dateParam(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"format":      "date",
		"description": description,
	}
}

// Definitions returns the tool list. Symbol enums come from table.
func Definitions(table *market.Table) []openai.ChatCompletionToolParam {
	symbols := table.Symbols()

	days := map[string]interface{}{
		"type":        "integer",
		"description": "Number of most recent trading days to analyze",
		"default":     DefaultDays,
		"minimum":     1,
	}

	return []openai.ChatCompletionToolParam{
		{
			Function: openai.FunctionDefinitionParam{
				Name:        ToolStockData,
				Description: openai.String("Get historical stock market data with filtering options"),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"limit": map[string]interface{}{
							"type":        "integer",
							"description": "Maximum number of records to return",
							"default":     100,
						},
						"offset": map[string]interface{}{
							"type":        "integer",
							"description": "Number of records to skip",
							"default":     0,
						},
						"date_eq":  dateParam("Exact date filter (YYYY-MM-DD)"),
						"date_gte": dateParam("Date greater than or equal to (YYYY-MM-DD)"),
						"date_lte": dateParam("Date less than or equal to (YYYY-MM-DD)"),
					},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        ToolStockDataByID,
				Description: openai.String("Get one stored trading day by its id"),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"id": map[string]interface{}{
							"type":        "integer",
							"description": "Row id",
						},
					},
					"required": []string{"id"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        ToolLatestPrices,
				Description: openai.String("Get the most recent prices of every tracked instrument"),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        ToolMarketOverview,
				Description: openai.String("Get a market overview with latest prices and 30-day statistics"),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        ToolHistoricalAnalysis,
				Description: openai.String("Get price change, percent change and volatility for one symbol"),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"symbol": map[string]interface{}{
							"type":        "string",
							"description": "Symbol to analyze",
							"enum":        symbols,
						},
						"days": days,
					},
					"required": []string{"symbol"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        ToolCompareSymbols,
				Description: openai.String("Compare price movement of several symbols over the same window"),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"symbols": map[string]interface{}{
							"type":     "array",
							"minItems": 1,
							"items": map[string]interface{}{
								"type": "string",
								"enum": symbols,
							},
						},
						"days": days,
					},
					"required": []string{"symbols"},
				},
			},
		},
	}
}
