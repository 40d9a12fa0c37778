package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/thepicklr/notebook/internal/logging"
	"github.com/thepicklr/notebook/internal/scout"
	"github.com/thepicklr/notebook/internal/server/models"
)

// Sheet ranges for the two spreadsheet-backed logs and the OPR table.
const (
	outreachRange  = "Outreach!A:D"
	scoutRange     = "Scouting!A:E"
	oprTeamsRange  = "OPR!A2:A"
	oprValuesRange = "OPR!A2:E"
)

// maxBodySize bounds inbound request bodies before signature verification.
const maxBodySize = 1 << 20

var (
	entriesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_entries_recorded_total",
		Help: "Entries written to the notebook, by category.",
	}, []string{"category"})

	entryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notebook_entry_failures_total",
		Help: "Entry submissions that failed to parse or persist.",
	})

	commandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebook_commands_handled_total",
		Help: "Slash commands dispatched, by command.",
	}, []string{"command"})
)

// EntryWriter is the notebook pipeline as the handler sees it.
type EntryWriter interface {
	WriteEntry(ctx context.Context, sub *models.Submission) (int64, error)
}

// Messenger is the outbound chat surface. Satisfied by Client.
type Messenger interface {
	Post(ctx context.Context, channel, text string) error
	PostBlocks(ctx context.Context, channel, text string, blocks []Block) error
	UserRealName(ctx context.Context, userID string) (string, error)
}

// Archiver copies submission attachments to durable storage. Satisfied by
// the images service.
type Archiver interface {
	Enabled() bool
	PresignPut(ctx context.Context) (string, string, error)
}

// StatsSource is the team statistics backend. Satisfied by scout.Client.
type StatsSource interface {
	TeamByNumber(ctx context.Context, number int) (*scout.Team, error)
	BestStats(ctx context.Context, number int) (*scout.Opr, error)
}

// Channels names the destinations for outbound messages.
type Channels struct {
	Notebook    string
	Mechanical  string
	Programming string
	Errors      string
}

// ForCategory picks the per-category update channel, falling back to the
// general notebook channel.
func (c Channels) ForCategory(category string) string {
	switch category {
	case "mechanical":
		if c.Mechanical != "" {
			return c.Mechanical
		}
	case "programming":
		if c.Programming != "" {
			return c.Programming
		}
	}
	return c.Notebook
}

// Handler is the inbound platform endpoint: it verifies signatures, then
// dispatches slash commands and view submissions.
type Handler struct {
	signingSecret string
	botToken      string
	messenger     Messenger
	notebook      EntryWriter
	archiver      Archiver
	stats         StatsSource
	sheets        scout.SheetClient
	channels      Channels
	logger        logging.Logger
	httpClient    *http.Client

	now func() time.Time
}

func NewHandler(
	signingSecret, botToken string,
	messenger Messenger,
	notebook EntryWriter,
	archiver Archiver,
	stats StatsSource,
	sheets scout.SheetClient,
	channels Channels,
	logger logging.Logger,
) *Handler {
	return &Handler{
		signingSecret: signingSecret,
		botToken:      botToken,
		messenger:     messenger,
		notebook:      notebook,
		archiver:      archiver,
		stats:         stats,
		sheets:        sheets,
		channels:      channels,
		logger:        logger,
		httpClient:    http.DefaultClient,
		now:           time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := VerifySignature(
		h.signingSecret,
		r.Header.Get("X-Slack-Request-Timestamp"),
		r.Header.Get("X-Slack-Signature"),
		body,
		h.now(),
	); err != nil {
		h.logger.Warn(r.Context(), "rejected platform request", "error", err.Error())
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	// Events API handshake arrives as JSON, everything else form-encoded.
	if strings.HasPrefix(strings.TrimSpace(string(body)), "{") {
		h.handleEventJSON(w, body)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch {
	case form.Get("payload") != "":
		h.handleInteraction(r.Context(), w, form.Get("payload"))
	case form.Get("command") != "":
		h.handleCommand(r.Context(), w, form)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) handleEventJSON(w http.ResponseWriter, body []byte) {
	var event struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if event.Type == "url_verification" {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, event.Challenge)
		return
	}
	w.WriteHeader(http.StatusOK)
}

const helpText = "*Notebook bot commands*\n" +
	"`/en` opens the engineering notebook entry form\n" +
	"`/outreach` opens the outreach log form\n" +
	"`/scout` opens the match scouting form\n" +
	"`/ftc <team number>` looks up a team's season statistics\n" +
	"`/updateoprs` refreshes the OPR spreadsheet from current data"

func (h *Handler) handleCommand(ctx context.Context, w http.ResponseWriter, form url.Values) {
	command := form.Get("command")
	commandsHandled.WithLabelValues(command).Inc()

	switch command {
	case "/help":
		respondEphemeral(w, helpText)
	case "/ftc":
		h.handleFTCLookup(ctx, w, strings.TrimSpace(form.Get("text")))
	case "/updateoprs":
		go h.refreshOPRs(context.WithoutCancel(ctx))
		respondEphemeral(w, "Refreshing OPR statistics, this can take a moment.")
	case "/en", "/scout", "/outreach":
		// Modal opening is configured on the platform side; just ack.
		w.WriteHeader(http.StatusOK)
	default:
		respondEphemeral(w, "Unknown command. Try `/help`.")
	}
}

func (h *Handler) handleFTCLookup(ctx context.Context, w http.ResponseWriter, text string) {
	number, err := strconv.Atoi(text)
	if err != nil {
		respondEphemeral(w, "Usage: `/ftc <team number>`")
		return
	}

	team, err := h.stats.TeamByNumber(ctx, number)
	if err != nil {
		h.logger.Info(ctx, "team lookup failed", "team", number, "error", err.Error())
		respondEphemeral(w, fmt.Sprintf("Could not find team %d.", number))
		return
	}

	report := fmt.Sprintf("*Team %d: %s*\n%s, %s, %s\nRookie year: %d",
		team.Number, team.Name, team.City, team.State, team.Country, team.RookieYear)

	if best, err := h.stats.BestStats(ctx, number); err == nil {
		report += fmt.Sprintf(
			"\n\n*Best OPR this season*\nTotal: %.2f\nAuto: %.2f\nTeleOp: %.2f\nEndgame: %.2f",
			best.TotalPoints, best.AutoPoints, best.DcPoints, best.EgPoints)
	}

	respondInChannel(w, report)
}

// refreshOPRs rewrites the OPR sheet from the stats API. Runs detached from
// the triggering request.
func (h *Handler) refreshOPRs(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	rows, err := h.sheets.ReadRange(ctx, oprTeamsRange)
	if err != nil {
		h.reportError(ctx, fmt.Errorf("reading OPR team list: %w", err))
		return
	}

	updated := make([][]any, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			h.logger.Warn(ctx, "skipping OPR row with bad team number", "value", row[0])
			continue
		}
		best, err := h.stats.BestStats(ctx, number)
		if err != nil {
			h.logger.Info(ctx, "no stats for team during OPR refresh", "team", number, "error", err.Error())
			updated = append(updated, []any{number, "", "", "", ""})
			continue
		}
		updated = append(updated, []any{
			number, best.TotalPoints, best.AutoPoints, best.DcPoints, best.EgPoints,
		})
	}

	if err := h.sheets.UpdateRange(ctx, oprValuesRange, updated); err != nil {
		h.reportError(ctx, fmt.Errorf("writing OPR sheet: %w", err))
		return
	}

	msg := fmt.Sprintf("OPR statistics refreshed for %d teams.", len(updated))
	if err := h.messenger.Post(ctx, h.channels.Notebook, msg); err != nil {
		h.logger.Warn(ctx, "failed to announce OPR refresh", "error", err.Error())
	}
}

func (h *Handler) handleInteraction(ctx context.Context, w http.ResponseWriter, raw string) {
	payload, err := ParsePayload(raw)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if payload.Type != TypeViewSubmission {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case EntryCategory(payload.View.CallbackID) != "":
		h.handleEntrySubmission(ctx, w, payload)
	case payload.View.CallbackID == CallbackScoutEntry:
		h.handleScoutSubmission(ctx, w, payload)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) handleEntrySubmission(ctx context.Context, w http.ResponseWriter, payload *InteractionPayload) {
	sub, err := ParseEntrySubmission(ctx, payload, h.messenger.UserRealName)
	if err != nil {
		entryFailures.Inc()
		h.reportError(ctx, fmt.Errorf("parsing entry submission: %w", err))
		w.WriteHeader(http.StatusOK)
		return
	}

	// Keep the platform URLs for the channel update; the stored record
	// points at archived copies when archival is on.
	originalURLs := make([]string, 0, len(sub.Files))
	for _, f := range sub.Files {
		originalURLs = append(originalURLs, f.FileURL)
	}
	h.archiveFiles(ctx, sub)

	id, err := h.notebook.WriteEntry(ctx, sub)
	if err != nil {
		// The pipeline already reported the failure to the errors channel.
		entryFailures.Inc()
		h.logger.Error(ctx, "entry write failed", "error", err.Error())
		w.WriteHeader(http.StatusOK)
		return
	}
	entriesRecorded.WithLabelValues(sub.Category).Inc()

	// Close the modal before the follow-up messages go out.
	w.WriteHeader(http.StatusOK)

	done := fmt.Sprintf("Entry #%d for project %q recorded by %s.", id, sub.ProjectName, sub.SubmittingUser)
	if err := h.messenger.Post(ctx, h.channels.Notebook, done); err != nil {
		h.logger.Warn(ctx, "failed to post entry confirmation", "error", err.Error())
	}

	blocks := EntryUpdateBlocks(sub.ProjectName, distinct(sub.SubmittingUser, sub.SelectedUsers), sub.WhatDid, sub.WhatLearned, originalURLs)
	fallback := "New entry for " + sub.ProjectName
	if err := h.messenger.PostBlocks(ctx, h.channels.ForCategory(sub.Category), fallback, blocks); err != nil {
		h.logger.Warn(ctx, "failed to post entry update", "error", err.Error())
	}

	if sub.Category == "outreach" && h.sheets != nil {
		row := []any{h.now().Format("2006-01-02"), sub.ProjectName, sub.SubmittingUser, sub.WhatDid}
		if err := h.sheets.AppendRow(ctx, outreachRange, row); err != nil {
			h.logger.Warn(ctx, "failed to append outreach row", "error", err.Error())
		}
	}
}

func (h *Handler) handleScoutSubmission(ctx context.Context, w http.ResponseWriter, payload *InteractionPayload) {
	report, err := ParseScoutSubmission(payload)
	if err != nil {
		h.reportError(ctx, fmt.Errorf("parsing scouting submission: %w", err))
		w.WriteHeader(http.StatusOK)
		return
	}

	submitter, err := h.messenger.UserRealName(ctx, payload.User.ID)
	if err != nil {
		submitter = payload.User.ID
	}

	row := []any{report.TeamNumber, report.AutoNotes, report.DriverCtrl, report.Rating, submitter}
	if err := h.sheets.AppendRow(ctx, scoutRange, row); err != nil {
		h.reportError(ctx, fmt.Errorf("appending scouting row: %w", err))
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)

	msg := fmt.Sprintf("Scouting report for team %s recorded by %s.", report.TeamNumber, submitter)
	if err := h.messenger.Post(ctx, h.channels.Notebook, msg); err != nil {
		h.logger.Warn(ctx, "failed to post scouting confirmation", "error", err.Error())
	}
}

// archiveFiles copies each attachment to the bucket and rewrites its URL to
// the archived key. Best effort: a failed copy keeps the platform URL.
func (h *Handler) archiveFiles(ctx context.Context, sub *models.Submission) {
	if h.archiver == nil || !h.archiver.Enabled() {
		return
	}
	for i := range sub.Files {
		key, err := h.archiveOne(ctx, sub.Files[i].FileURL)
		if err != nil {
			h.logger.Warn(ctx, "attachment archival failed", "file", sub.Files[i].FileName, "error", err.Error())
			continue
		}
		sub.Files[i].FileURL = "s3:" + key
	}
}

func (h *Handler) archiveOne(ctx context.Context, fileURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.botToken)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading attachment: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	key, putURL, err := h.archiver.PresignPut(ctx)
	if err != nil {
		return "", err
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	putResp, err := h.httpClient.Do(put)
	if err != nil {
		return "", fmt.Errorf("uploading to archive: %w", err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode < 200 || putResp.StatusCode >= 300 {
		return "", fmt.Errorf("uploading to archive: status %d", putResp.StatusCode)
	}
	return key, nil
}

func (h *Handler) reportError(ctx context.Context, err error) {
	h.logger.Error(ctx, "platform handler error", "error", err.Error())
	if h.channels.Errors == "" {
		return
	}
	msg := fmt.Sprintf("An error occurred while handling a request.\n\n*Error:*\n```%v```", err)
	if notifyErr := h.messenger.Post(ctx, h.channels.Errors, msg); notifyErr != nil {
		h.logger.Error(ctx, "failed to report error to channel", "error", notifyErr.Error())
	}
}

func respondEphemeral(w http.ResponseWriter, text string) {
	respondJSON(w, map[string]string{"response_type": "ephemeral", "text": text})
}

func respondInChannel(w http.ResponseWriter, text string) {
	respondJSON(w, map[string]string{"response_type": "in_channel", "text": text})
}

func respondJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func distinct(first string, rest []string) []string {
	seen := map[string]bool{first: true}
	out := []string{first}
	for _, n := range rest {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
