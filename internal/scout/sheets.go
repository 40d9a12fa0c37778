package scout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const defaultSheetsURL = "https://sheets.googleapis.com/v4/spreadsheets"

// SheetClient is the spreadsheet surface the bot uses: appending log rows
// and reading or rewriting ranges for the OPR refresh.
type SheetClient interface {
	AppendRow(ctx context.Context, sheetRange string, row []any) error
	ReadRange(ctx context.Context, sheetRange string) ([][]string, error)
	UpdateRange(ctx context.Context, sheetRange string, rows [][]any) error
}

// GoogleSheets implements SheetClient against the Sheets REST API with a
// bearer token.
type GoogleSheets struct {
	token         string
	spreadsheetID string
	baseURL       string
	httpClient    *http.Client
}

func NewGoogleSheets(token, spreadsheetID string, httpClient *http.Client) *GoogleSheets {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GoogleSheets{
		token:         token,
		spreadsheetID: spreadsheetID,
		baseURL:       defaultSheetsURL,
		httpClient:    httpClient,
	}
}

// WithBaseURL points the client at a different API host. Used by tests.
func (g *GoogleSheets) WithBaseURL(u string) *GoogleSheets {
	g.baseURL = u
	return g
}

func (g *GoogleSheets) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheets request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sheets request failed: status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("sheets response decode failed: %w", err)
		}
	}
	return nil
}

func (g *GoogleSheets) rangeURL(sheetRange, suffix, query string) string {
	u := fmt.Sprintf("%s/%s/values/%s%s", g.baseURL, g.spreadsheetID, url.PathEscape(sheetRange), suffix)
	if query != "" {
		u += "?" + query
	}
	return u
}

func (g *GoogleSheets) AppendRow(ctx context.Context, sheetRange string, row []any) error {
	endpoint := g.rangeURL(sheetRange, ":append", "valueInputOption=USER_ENTERED")
	body := map[string]any{"values": [][]any{row}}
	return g.do(ctx, http.MethodPost, endpoint, body, nil)
}

func (g *GoogleSheets) ReadRange(ctx context.Context, sheetRange string) ([][]string, error) {
	endpoint := g.rangeURL(sheetRange, "", "")
	var out struct {
		Values [][]string `json:"values"`
	}
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

func (g *GoogleSheets) UpdateRange(ctx context.Context, sheetRange string, rows [][]any) error {
	endpoint := g.rangeURL(sheetRange, "", "valueInputOption=USER_ENTERED")
	body := map[string]any{"values": rows}
	return g.do(ctx, http.MethodPut, endpoint, body, nil)
}
