package ninja

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/alpharequest/requestmanager/internal/config"
)

// NinjaOne wire constants observed on the ticketing API.
const (
	// StatusClosed is the statusId a NinjaOne ticket carries once closed.
	StatusClosed = 5000
	// AttributeApproval is the custom attribute recording the sign-off
	// outcome ("Erledigt"/"Abgelehnt").
	AttributeApproval = 201
	// AttributeComment is the custom attribute carrying the reviewer
	// comment mirrored back into the local ticket.
	AttributeComment = 202
)

// Outcome is the reconciled approval result of a closed external ticket.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeApproved
	OutcomeRejected
)

// Client calls the NinjaOne ticketing API. Read-only: the reconciliation
// loop only ever fetches state, never writes it.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	tokens       TokenCache
	logger       *zap.Logger
}

// NewClient builds a client from configuration. Every request is bounded by
// the configured HTTP timeout.
func NewClient(cfg config.NinjaConfig, tokens TokenCache, logger *zap.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout()},
		tokens:       tokens,
		logger:       logger,
	}
}

// Ticket is the subset of a NinjaOne ticket the sync loop consumes.
type Ticket struct {
	ID              int64            `json:"id"`
	Status          TicketStatus     `json:"status"`
	AttributeValues []AttributeValue `json:"attributeValues"`
}

// TicketStatus carries the numeric external status.
type TicketStatus struct {
	StatusID int `json:"statusId"`
}

// IsClosed reports whether the external side considers the ticket final.
func (t *Ticket) IsClosed() bool {
	return t.Status.StatusID == StatusClosed
}

// CommentAttribute returns the reviewer comment attribute, empty when unset.
func (t *Ticket) CommentAttribute() string {
	for _, attr := range t.AttributeValues {
		if attr.AttributeID.ID == AttributeComment {
			return attr.Value
		}
	}
	return ""
}

// AttributeValue is one custom attribute on a ticket or log entry. The API
// encodes attributeId either as a bare number or as an object with an id.
type AttributeValue struct {
	AttributeID AttributeID `json:"attributeId"`
	Value       string      `json:"value"`
	New         string      `json:"new"`
}

// AttributeID tolerates both numeric and object encodings.
type AttributeID struct {
	ID int64
}

func (a *AttributeID) UnmarshalJSON(data []byte) error {
	var numeric int64
	if err := json.Unmarshal(data, &numeric); err == nil {
		a.ID = numeric
		return nil
	}
	var wrapped struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	a.ID = wrapped.ID
	return nil
}

// LogEntry is one audit entry of an external ticket.
type LogEntry struct {
	CreateTime float64 `json:"createTime"`
	ChangeDiff struct {
		AttributeValues []AttributeValue `json:"attributeValues"`
	} `json:"changeDiff"`
}

// GetTicket fetches one external ticket by id.
func (c *Client) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	var ticket Ticket
	path := fmt.Sprintf("/api/v2/ticketing/ticket/%d", id)
	if err := c.get(ctx, path, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetApprovalOutcome scans the ticket's log for the most recent approval
// attribute change and maps it to an outcome. Unknown when the attribute
// never appears or carries an unrecognized value.
func (c *Client) GetApprovalOutcome(ctx context.Context, id int64) (Outcome, error) {
	var entries []LogEntry
	path := fmt.Sprintf("/api/v2/ticketing/ticket/%d/log-entry?pageSize=50", id)
	if err := c.get(ctx, path, &entries); err != nil {
		return OutcomeUnknown, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreateTime > entries[j].CreateTime
	})

	for _, entry := range entries {
		for _, attr := range entry.ChangeDiff.AttributeValues {
			if attr.AttributeID.ID != AttributeApproval {
				continue
			}
			switch {
			case strings.Contains(attr.New, "Erledigt"):
				return OutcomeApproved, nil
			case strings.Contains(attr.New, "Abgelehnt"):
				return OutcomeRejected, nil
			default:
				return OutcomeUnknown, nil
			}
		}
	}
	return OutcomeUnknown, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// token may have been revoked; drop the cached one so the next
		// call re-authenticates
		c.tokens.Invalidate(ctx)
		return fmt.Errorf("ninja: unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ninja: %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, err := c.tokens.Get(ctx); err == nil && token != "" {
		return token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {"monitoring management"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ws/oauth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ninja: token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("ninja: empty access token")
	}

	if err := c.tokens.Put(ctx, tokenResp.AccessToken, tokenResp.ExpiresIn); err != nil {
		c.logger.Warn("unable to cache ninja token", zap.Error(err))
	}
	return tokenResp.AccessToken, nil
}
