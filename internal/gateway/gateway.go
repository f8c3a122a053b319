package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutrilink/nutrilink/internal/models"
	"github.com/nutrilink/nutrilink/pkg/config"
)

// Client is the single chokepoint for all backend I/O. Every call is bounded
// by an explicit timeout and the in-flight request is actively canceled on
// expiry. Retry policy lives here and is currently: single attempt.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	analyzeTimeout time.Duration
	chatTimeout    time.Duration
	voiceTimeout   time.Duration
}

func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		http:           &http.Client{},
		logger:         logger,
		analyzeTimeout: cfg.AnalyzeTimeout,
		chatTimeout:    cfg.ChatTimeout,
		voiceTimeout:   cfg.VoiceTimeout,
	}
}

// do executes the request under a deadline and translates every failure mode
// into the gateway error taxonomy. A 2xx body is returned for decoding.
func (c *Client) do(ctx context.Context, endpoint string, timeout time.Duration, req *http.Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("Request timed out",
				zap.String("endpoint", endpoint),
				zap.Duration("timeout", timeout))
			return nil, &TimeoutError{Endpoint: endpoint}
		}
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, &HTTPError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, timeout time.Duration, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}

	body, err := c.do(ctx, endpoint, timeout, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedResponseError{Endpoint: endpoint, Field: "body"}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, timeout time.Duration, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", endpoint, err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(ctx, endpoint, timeout, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedResponseError{Endpoint: endpoint, Field: "body"}
	}
	return nil
}

func (c *Client) postMultipart(ctx context.Context, endpoint string, timeout time.Duration, fields map[string]string, filename string, file []byte, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(file); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	for key, value := range fields {
		writer.WriteField(key, value)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.do(ctx, endpoint, timeout, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedResponseError{Endpoint: endpoint, Field: "body"}
	}
	return nil
}

// Analyze uploads an image for nutrition analysis. The response is validated
// exhaustively: a 2xx without a usable nutrition payload is malformed.
func (c *Client) Analyze(ctx context.Context, userID, filename string, image []byte) (*models.AnalysisResult, error) {
	endpoint := "/analyze?user_id=" + url.QueryEscape(userID)

	var resp struct {
		Nutrition         *models.NutritionInfo `json:"nutrition"`
		Message           string                `json:"message"`
		FitnessSyncStatus string                `json:"fitness_sync_status"`
	}
	err := c.postMultipart(ctx, endpoint, c.analyzeTimeout,
		map[string]string{"user_id": userID}, filename, image, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Nutrition == nil {
		return nil, &MalformedResponseError{Endpoint: endpoint, Field: "nutrition"}
	}
	if resp.Nutrition.FoodName == "" {
		return nil, &MalformedResponseError{Endpoint: endpoint, Field: "nutrition.food_name"}
	}
	if resp.Nutrition.Calories < 0 || resp.Nutrition.ProteinG < 0 ||
		resp.Nutrition.CarbsG < 0 || resp.Nutrition.FatsG < 0 {
		return nil, &MalformedResponseError{Endpoint: endpoint, Field: "nutrition"}
	}
	if resp.Nutrition.Confidence < 0 || resp.Nutrition.Confidence > 1 {
		return nil, &MalformedResponseError{Endpoint: endpoint, Field: "nutrition.confidence"}
	}

	return &models.AnalysisResult{
		Nutrition:         *resp.Nutrition,
		Message:           resp.Message,
		FitnessSyncStatus: resp.FitnessSyncStatus,
	}, nil
}

// History fetches the user's logged meals.
func (c *Client) History(ctx context.Context, userID string) ([]models.MealEntry, error) {
	endpoint := "/history/" + url.PathEscape(userID)

	var resp struct {
		History *[]models.MealEntry `json:"history"`
	}
	if err := c.getJSON(ctx, endpoint, c.chatTimeout, &resp); err != nil {
		return nil, err
	}
	if resp.History == nil {
		return nil, &MalformedResponseError{Endpoint: endpoint, Field: "history"}
	}
	return *resp.History, nil
}

// Coach fetches the coaching payload, which is opaque to this client.
func (c *Client) Coach(ctx context.Context, userID string) (json.RawMessage, error) {
	endpoint := "/coach/" + url.PathEscape(userID)

	var resp json.RawMessage
	if err := c.getJSON(ctx, endpoint, c.chatTimeout, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Chat sends one text turn and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, userID, message string) (string, error) {
	endpoint := "/chat/" + url.PathEscape(userID)

	var resp struct {
		Response string `json:"response"`
	}
	payload := map[string]string{"message": message}
	if err := c.postJSON(ctx, endpoint, c.chatTimeout, payload, &resp); err != nil {
		return "", err
	}
	if resp.Response == "" {
		return "", &MalformedResponseError{Endpoint: endpoint, Field: "response"}
	}
	return resp.Response, nil
}

// ChatHistory fetches the prior transcript for session rehydration.
func (c *Client) ChatHistory(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	endpoint := "/chats/" + url.PathEscape(userID)

	var resp struct {
		History *[]models.ChatMessage `json:"history"`
	}
	if err := c.getJSON(ctx, endpoint, c.chatTimeout, &resp); err != nil {
		return nil, err
	}
	if resp.History == nil {
		return nil, &MalformedResponseError{Endpoint: endpoint, Field: "history"}
	}
	return *resp.History, nil
}

// VoiceChat uploads an audio clip and returns its transcription together
// with the assistant's reply.
func (c *Client) VoiceChat(ctx context.Context, userID, filename string, audio []byte) (transcription, response string, err error) {
	endpoint := "/voice_chat/" + url.PathEscape(userID)

	var resp struct {
		Transcription string `json:"transcription"`
		Response      string `json:"response"`
	}
	err = c.postMultipart(ctx, endpoint, c.voiceTimeout, nil, filename, audio, &resp)
	if err != nil {
		return "", "", err
	}
	if resp.Transcription == "" {
		return "", "", &MalformedResponseError{Endpoint: endpoint, Field: "transcription"}
	}
	if resp.Response == "" {
		return "", "", &MalformedResponseError{Endpoint: endpoint, Field: "response"}
	}
	return resp.Transcription, resp.Response, nil
}

// Register creates an account and returns the new user id.
func (c *Client) Register(ctx context.Context, fullName, email, password string) (string, error) {
	endpoint := "/register"

	var resp struct {
		UserID string `json:"user_id"`
	}
	payload := map[string]string{
		"full_name": fullName,
		"email":     email,
		"password":  password,
	}
	if err := c.postJSON(ctx, endpoint, c.chatTimeout, payload, &resp); err != nil {
		return "", err
	}
	if resp.UserID == "" {
		return "", &MalformedResponseError{Endpoint: endpoint, Field: "user_id"}
	}
	return resp.UserID, nil
}

// Login authenticates and returns the session identity.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Identity, error) {
	endpoint := "/login"

	var resp struct {
		UserID   string `json:"user_id"`
		FullName string `json:"full_name"`
	}
	payload := map[string]string{"email": email, "password": password}
	if err := c.postJSON(ctx, endpoint, c.chatTimeout, payload, &resp); err != nil {
		return nil, err
	}
	if resp.UserID == "" {
		return nil, &MalformedResponseError{Endpoint: endpoint, Field: "user_id"}
	}
	return &models.Identity{UserID: resp.UserID, FullName: resp.FullName}, nil
}
