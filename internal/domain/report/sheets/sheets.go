// Package sheets reads report grids from Google Sheets.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
)

// DefaultRange reads the first sheet's report columns.
const DefaultRange = "A:Z"

// Client fetches spreadsheet values through the official Sheets API.
type Client struct {
	service *sheetsapi.Service
	logger  *slog.Logger
}

// NewClient builds a read-only client from a service account credentials file.
func NewClient(ctx context.Context, credentialsFile string, logger *slog.Logger) (*Client, error) {
	return New(ctx, logger,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope),
	)
}

// New builds a client with explicit API options.
func New(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}
	return &Client{service: service, logger: logger}, nil
}

// Fetch returns the raw cell values of readRange. Numbers come back as
// float64 and text as string, like a decoded .xlsx.
func (c *Client) Fetch(ctx context.Context, spreadsheetID, readRange string) ([][]any, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheet id must not be empty", common.ErrInvalidRequest)
	}
	if strings.TrimSpace(readRange) == "" {
		readRange = DefaultRange
	}

	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", readRange, err)
	}

	c.logger.Debug("spreadsheet range fetched",
		slog.String("range", resp.Range),
		slog.Int("rows", len(resp.Values)),
	)
	return resp.Values, nil
}
