package sheetsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/thepathwise/intake/internal/apperr"
	"github.com/thepathwise/intake/internal/config"
	"github.com/thepathwise/intake/pkg/repository"
)

// Tab is one sheet inside a spreadsheet.
type Tab struct {
	ID    int64
	Title string
}

// Client is the spreadsheet surface the job needs.
type Client interface {
	Tabs(ctx context.Context) ([]Tab, error)
	Clear(ctx context.Context, rng string) error
	Write(ctx context.Context, rng string, rows [][]any) error
	FormatHeader(ctx context.Context, tabID int64, columns int) error
}

// GoogleClient talks to the Sheets v4 API for one spreadsheet.
type GoogleClient struct {
	srv           *sheets.Service
	spreadsheetID string
}

var _ Client = (*GoogleClient)(nil)

// NewGoogleClient authenticates with a service account key.
func NewGoogleClient(ctx context.Context, credentialsJSON []byte, spreadsheetID string) (*GoogleClient, error) {
	if !json.Valid(credentialsJSON) {
		return nil, &apperr.ConfigError{Key: "GOOGLE_SERVICE_ACCOUNT_KEY", Msg: "service account key is not valid JSON"}
	}
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, &apperr.ConfigError{Key: "GOOGLE_SERVICE_ACCOUNT_KEY", Msg: err.Error()}
	}
	return &GoogleClient{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func (c *GoogleClient) Tabs(ctx context.Context) ([]Tab, error) {
	resp, err := c.srv.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	tabs := make([]Tab, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		tabs = append(tabs, Tab{ID: s.Properties.SheetId, Title: s.Properties.Title})
	}
	return tabs, nil
}

func (c *GoogleClient) Clear(ctx context.Context, rng string) error {
	_, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *GoogleClient) Write(ctx context.Context, rng string, rows [][]any) error {
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             []*sheets.ValueRange{{Range: rng, Values: rows}},
	}
	if _, err := c.srv.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

// FormatHeader styles row 1 as bold white on blue and auto-sizes the first
// columns.
func (c *GoogleClient) FormatHeader(ctx context.Context, tabID int64, columns int) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				RepeatCell: &sheets.RepeatCellRequest{
					// sheetId 0 is the default first tab and must be sent explicitly
					Range: &sheets.GridRange{
						SheetId:         tabID,
						StartRowIndex:   0,
						EndRowIndex:     1,
						ForceSendFields: []string{"SheetId", "StartRowIndex"},
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							BackgroundColor: &sheets.Color{Red: 0.2, Green: 0.6, Blue: 1.0},
							TextFormat: &sheets.TextFormat{
								Bold:            true,
								ForegroundColor: &sheets.Color{Red: 1.0, Green: 1.0, Blue: 1.0},
							},
						},
					},
					Fields: "userEnteredFormat(backgroundColor,textFormat)",
				},
			},
			{
				AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
					Dimensions: &sheets.DimensionRange{
						SheetId:         tabID,
						Dimension:       "COLUMNS",
						StartIndex:      0,
						EndIndex:        int64(columns),
						ForceSendFields: []string{"SheetId", "StartIndex"},
					},
				},
			},
		},
	}
	if _, err := c.srv.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("format header: %w", err)
	}
	return nil
}

// NewFromConfig builds a job backed by the Google Sheets API.
func NewFromConfig(ctx context.Context, cfg config.SheetsConfig, docs repository.DocumentRepo, logger *slog.Logger) (*Job, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}
	client, err := NewGoogleClient(ctx, creds, cfg.SpreadsheetID)
	if err != nil {
		return nil, err
	}
	return New(client, docs, cfg.SheetName, logger), nil
}
