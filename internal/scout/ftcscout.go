// Package scout talks to the two external data services the team leans on:
// the FTC Scout GraphQL API for team and match statistics, and a spreadsheet
// backend for outreach and scouting logs.
package scout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/thepicklr/notebook/internal/common"
)

const defaultScoutURL = "https://api.ftcscout.org/graphql"

// Client queries the FTC Scout GraphQL endpoint.
type Client struct {
	url        string
	season     int
	httpClient *http.Client
}

func NewClient(season int, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: defaultScoutURL, season: season, httpClient: httpClient}
}

// WithURL points the client at a different endpoint. Used by tests.
func (c *Client) WithURL(u string) *Client {
	c.url = u
	return c
}

// Team is the static roster information for a team number.
type Team struct {
	Number     int    `json:"number"`
	Name       string `json:"name"`
	SchoolName string `json:"schoolName"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	RookieYear int    `json:"rookieYear"`
}

// Opr holds the offensive power rating components for one event.
type Opr struct {
	TotalPoints float64 `json:"totalPointsNp"`
	AutoPoints  float64 `json:"autoPoints"`
	DcPoints    float64 `json:"dcPoints"`
	EgPoints    float64 `json:"egPoints"`
}

// EventStats is one event's statistics for a team in a season.
type EventStats struct {
	EventName string
	Rank      int
	Opr       Opr
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, data any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ftcscout request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("ftcscout response decode failed: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("ftcscout query failed: %s", envelope.Errors[0].Message)
	}
	return json.Unmarshal(envelope.Data, data)
}

const teamQuery = `
query ($number: Int!) {
  teamByNumber(number: $number) {
    number
    name
    schoolName
    city
    state
    country
    rookieYear
  }
}`

// TeamByNumber returns roster information for a team, or ErrorNotFound when
// the number is unknown to FTC Scout.
func (c *Client) TeamByNumber(ctx context.Context, number int) (*Team, error) {
	var data struct {
		Team *Team `json:"teamByNumber"`
	}
	if err := c.query(ctx, teamQuery, map[string]any{"number": number}, &data); err != nil {
		return nil, err
	}
	if data.Team == nil {
		return nil, fmt.Errorf("%w: team %d", common.ErrorNotFound, number)
	}
	return data.Team, nil
}

const seasonEventsQuery = `
query ($number: Int!, $season: Int!) {
  teamByNumber(number: $number) {
    events(season: $season) {
      event { name }
      stats {
        ... on TeamEventStats2024 {
          rank
          opr { totalPointsNp autoPoints dcPoints egPoints }
        }
      }
    }
  }
}`

// SeasonEvents returns per-event statistics for a team in the configured
// season. Events the team attended without qualification matches carry zero
// stats and are skipped.
func (c *Client) SeasonEvents(ctx context.Context, number int) ([]EventStats, error) {
	var data struct {
		Team *struct {
			Events []struct {
				Event struct {
					Name string `json:"name"`
				} `json:"event"`
				Stats *struct {
					Rank int `json:"rank"`
					Opr  Opr `json:"opr"`
				} `json:"stats"`
			} `json:"events"`
		} `json:"teamByNumber"`
	}
	vars := map[string]any{"number": number, "season": c.season}
	if err := c.query(ctx, seasonEventsQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Team == nil {
		return nil, fmt.Errorf("%w: team %d", common.ErrorNotFound, number)
	}

	events := make([]EventStats, 0, len(data.Team.Events))
	for _, e := range data.Team.Events {
		if e.Stats == nil {
			continue
		}
		events = append(events, EventStats{
			EventName: e.Event.Name,
			Rank:      e.Stats.Rank,
			Opr:       e.Stats.Opr,
		})
	}
	return events, nil
}

// BestStats folds a team's season events into the best OPR components seen
// at any single event. Each component is maximized independently.
func (c *Client) BestStats(ctx context.Context, number int) (*Opr, error) {
	events, err := c.SeasonEvents(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no season stats for team %d", common.ErrorNotFound, number)
	}

	best := events[0].Opr
	for _, e := range events[1:] {
		if e.Opr.TotalPoints > best.TotalPoints {
			best.TotalPoints = e.Opr.TotalPoints
		}
		if e.Opr.AutoPoints > best.AutoPoints {
			best.AutoPoints = e.Opr.AutoPoints
		}
		if e.Opr.DcPoints > best.DcPoints {
			best.DcPoints = e.Opr.DcPoints
		}
		if e.Opr.EgPoints > best.EgPoints {
			best.EgPoints = e.Opr.EgPoints
		}
	}
	return &best, nil
}
