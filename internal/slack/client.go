// Package slack is the chat-platform boundary: a thin Web API client used as
// the notification sink, request signature verification, and the parsing of
// interactive form submissions into canonical records. Modal rendering lives
// on the platform side and is not reproduced here.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultBaseURL = "https://slack.com/api"

// Client is a minimal Web API wrapper. Only the handful of methods the bot
// actually calls are implemented.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{token: token, baseURL: defaultBaseURL, httpClient: httpClient}
}

// WithBaseURL points the client at a different API host. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	User  *struct {
		RealName string `json:"real_name"`
	} `json:"user"`
}

func (c *Client) call(ctx context.Context, method string, body any) (*apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("%s response decode failed: %w", method, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("%s failed: %s", method, api.Error)
	}
	return &api, nil
}

// Post sends a plain text message to a channel. Implements the pipeline's
// Notifier interface.
func (c *Client) Post(ctx context.Context, channel, text string) error {
	_, err := c.call(ctx, "chat.postMessage", map[string]any{
		"channel": channel,
		"text":    text,
	})
	return err
}

// PostBlocks sends a Block Kit message with a plain-text fallback.
func (c *Client) PostBlocks(ctx context.Context, channel, text string, blocks []Block) error {
	_, err := c.call(ctx, "chat.postMessage", map[string]any{
		"channel": channel,
		"text":    text,
		"blocks":  blocks,
	})
	return err
}

// UserRealName resolves a platform user id to the member's real name, which
// is the natural key the notebook stores.
func (c *Client) UserRealName(ctx context.Context, userID string) (string, error) {
	resp, err := c.call(ctx, "users.info", map[string]any{"user": userID})
	if err != nil {
		return "", err
	}
	if resp.User == nil {
		return "", fmt.Errorf("users.info: no user in response")
	}
	return resp.User.RealName, nil
}

// Block is one Block Kit element. The bot builds only a few shapes, so an
// untyped map keeps this boundary thin.
type Block map[string]any

// EntryUpdateBlocks builds the formatted per-category channel update for a
// stored entry: header, participants, the two text sections, then images.
func EntryUpdateBlocks(projectName string, participants []string, whatDid, whatLearned string, imageURLs []string) []Block {
	blocks := []Block{
		{
			"type": "header",
			"text": Block{"type": "plain_text", "text": "New Entry for: " + projectName, "emoji": true},
		},
		{
			"type": "section",
			"fields": []Block{
				{"type": "mrkdwn", "text": "*Who Was There:*\n" + joinNames(participants)},
			},
		},
		{"type": "divider"},
		{
			"type": "section",
			"text": Block{"type": "mrkdwn", "text": "*What was done:*\n" + whatDid},
		},
		{
			"type": "section",
			"text": Block{"type": "mrkdwn", "text": "*What was learned:*\n" + whatLearned},
		},
	}
	if len(imageURLs) > 0 {
		blocks = append(blocks, Block{"type": "divider"})
		for _, u := range imageURLs {
			blocks = append(blocks, Block{
				"type":      "image",
				"image_url": u,
				"alt_text":  "Uploaded image for the engineering notebook entry.",
			})
		}
	}
	return blocks
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "(nobody listed)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}
