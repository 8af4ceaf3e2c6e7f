// Package wati is a client for the WATI WhatsApp business API.
package wati

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

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Config struct {
	Endpoint      string
	Token         string
	ChannelNumber string
	SenderNumber  string
	// TemplateName selects template sending for invoice notifications;
	// empty means session messages.
	TemplateName string
	CountryCode  string
	Timeout      time.Duration
}

type Client struct {
	cfg       Config
	http      *http.Client
	templates *TemplateRegistry
	log       *zap.Logger
}

// New builds a client. A nil registry means DefaultTemplates.
func New(cfg Config, templates *TemplateRegistry, zl *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = DefaultCountryCode
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if templates == nil {
		templates = DefaultTemplates()
	}
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		templates: templates,
		log:       zl.Named("wati"),
	}
}

func (c *Client) TemplateName() string { return c.cfg.TemplateName }

// APIError is returned by the read calls for non-2xx answers.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wati: HTTP %d: %s", e.StatusCode, describe(e.StatusCode, []byte(e.Body)))
}

// TemplateMessage is one template send request.
type TemplateMessage struct {
	Destination   string
	TemplateName  string
	BroadcastName string
	Parameters    []Parameter
	MediaURL      string
	ChannelNumber string
}

type templatePayload struct {
	TemplateName  string      `json:"template_name"`
	BroadcastName string      `json:"broadcast_name"`
	ChannelNumber string      `json:"channel_number,omitempty"`
	Parameters    []Parameter `json:"parameters,omitempty"`
	MediaURL      string      `json:"media_url,omitempty"`
}

// SendSessionMessage sends free text inside an open conversation window.
func (c *Client) SendSessionMessage(ctx context.Context, destination, text string) SendResult {
	phone := FormatDestination(destination, c.cfg.CountryCode)

	status, body, err := c.do(ctx, http.MethodPost, "/sendSessionMessage/"+url.PathEscape(phone), nil,
		map[string]string{"messageText": text})
	if err != nil {
		c.log.Warn("session message transport error", zap.String("to", phone), zap.Error(err))
		return Rejected{Kind: FailureGeneric, Message: transportMessage(msgSessionFailed, err)}
	}
	if isSuccess(status) {
		return Accepted{MessageID: extractMessageID(body)}
	}

	c.log.Warn("session message rejected",
		zap.String("to", phone),
		zap.Int("status", status),
		zap.ByteString("body", truncate(body)),
	)
	if status == http.StatusNotFound {
		return Rejected{Kind: FailureSessionExpired, Message: msgSessionExpired, StatusCode: status}
	}
	return Rejected{Kind: kindFor(status), Message: describe(status, body), StatusCode: status}
}

// SendTemplateMessage sends a pre-approved template.
func (c *Client) SendTemplateMessage(ctx context.Context, msg TemplateMessage) SendResult {
	phone := FormatDestination(msg.Destination, c.cfg.CountryCode)

	payload := templatePayload{
		TemplateName:  msg.TemplateName,
		BroadcastName: msg.BroadcastName,
		ChannelNumber: msg.ChannelNumber,
		Parameters:    msg.Parameters,
		MediaURL:      msg.MediaURL,
	}
	if payload.BroadcastName == "" {
		payload.BroadcastName = msg.TemplateName
	}
	if payload.ChannelNumber == "" {
		payload.ChannelNumber = c.channelNumber()
	}

	status, body, err := c.do(ctx, http.MethodPost, "/sendTemplateMessage",
		url.Values{"whatsappNumber": {phone}}, payload)
	if err != nil {
		c.log.Warn("template message transport error",
			zap.String("to", phone),
			zap.String("template", msg.TemplateName),
			zap.Error(err),
		)
		return Rejected{Kind: FailureGeneric, Message: transportMessage(msgTemplateFailed, err)}
	}
	if isSuccess(status) {
		return Accepted{MessageID: extractMessageID(body)}
	}

	c.log.Warn("template message rejected",
		zap.String("to", phone),
		zap.String("template", msg.TemplateName),
		zap.Int("status", status),
		zap.ByteString("body", truncate(body)),
	)
	return Rejected{Kind: kindFor(status), Message: describe(status, body), StatusCode: status}
}

// GetMessageTemplates lists the templates registered on the account.
func (c *Client) GetMessageTemplates(ctx context.Context, pageSize int) (*TemplateList, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	status, body, err := c.do(ctx, http.MethodGet, "/getMessageTemplates",
		url.Values{"pageSize": {strconv.Itoa(pageSize)}}, nil)
	if err != nil {
		return nil, fmt.Errorf("wati: get templates: %w", err)
	}
	if !isSuccess(status) {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	var list TemplateList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("wati: decode templates: %w", err)
	}
	return &list, nil
}

// GetMessageStatus returns the provider's raw record for a message.
func (c *Client) GetMessageStatus(ctx context.Context, messageID string) (map[string]any, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/getMessages/"+url.PathEscape(messageID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("wati: get message: %w", err)
	}
	if !isSuccess(status) {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	out := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("wati: decode message: %w", err)
	}
	return out, nil
}

func (c *Client) channelNumber() string {
	if c.cfg.ChannelNumber != "" {
		return c.cfg.ChannelNumber
	}
	return c.cfg.SenderNumber
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (int, []byte, error) {
	target := c.cfg.Endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", bearer(c.cfg.Token))
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func bearer(token string) string {
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func kindFor(status int) FailureKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureUnauthorized
	case http.StatusNotFound:
		return FailureTemplateNotFound
	}
	return FailureGeneric
}

// describe turns a non-2xx answer into a readable message.
func describe(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)

	if status == http.StatusBadRequest && isEmptyBody(trimmed) {
		return msgTemplateNotSynced
	}
	if !isEmptyBody(trimmed) {
		if trimmed[0] == '{' {
			var obj map[string]any
			if err := json.Unmarshal(trimmed, &obj); err == nil {
				for _, key := range []string{"message", "error", "info"} {
					if s, ok := obj[key].(string); ok && s != "" {
						return s
					}
				}
			}
		}
		return string(trimmed)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return msgUnauthorized
	case http.StatusNotFound:
		return msgTemplateNotFound
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

func isEmptyBody(b []byte) bool {
	return len(b) == 0 || string(b) == "{}" || string(b) == "null" || string(b) == `""`
}

func extractMessageID(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"messageId", "id"} {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func transportMessage(fallback string, err error) string {
	if err == nil {
		return fallback
	}
	return fallback + ": " + err.Error()
}

func truncate(b []byte) []byte {
	if len(b) > 512 {
		return b[:512]
	}
	return b
}
