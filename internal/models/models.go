package models

import (
	"path/filepath"
	"strings"
	"time"
)

// NutritionInfo mirrors the backend's nutrition payload field for field.
type NutritionInfo struct {
	FoodName   string  `json:"food_name"`
	Calories   float64 `json:"calories"`
	ProteinG   float64 `json:"protein_g"`
	CarbsG     float64 `json:"carbs_g"`
	FatsG      float64 `json:"fats_g"`
	Confidence float64 `json:"confidence"`
}

// AnalysisResult is the immutable outcome of a successful analysis. It is
// handed forward by the workflow and never persisted.
type AnalysisResult struct {
	Nutrition         NutritionInfo `json:"nutrition"`
	Message           string        `json:"message"`
	FitnessSyncStatus string        `json:"fitness_sync_status"`
}

// MealEntry is one row of the user's meal history.
type MealEntry struct {
	FoodName  string        `json:"food_name"`
	Calories  float64       `json:"calories"`
	Nutrition NutritionInfo `json:"nutrition"`
	Timestamp string        `json:"timestamp"`
	ImageURL  string        `json:"image_url,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of the transcript. Placeholder marks a provisional
// voice turn whose transcription has not arrived yet.
type ChatMessage struct {
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Notification is one entry of the per-user alert list. ID is a monotonic
// millisecond timestamp so newest-first ordering falls out of the ids.
type Notification struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	CreatedLabel string `json:"time"`
	Unread       bool   `json:"unread"`
}

// Identity is the locally persisted session identity.
type Identity struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
}

type CaptureSource string

const (
	SourceCamera CaptureSource = "camera"
	SourceFile   CaptureSource = "file"
)

// CaptureSession carries one user-initiated capture from acquisition to the
// terminal analysis state. It is owned by exactly one workflow.
type CaptureSession struct {
	ID         string
	Source     CaptureSource
	Filename   string
	Raw        []byte
	Transcoded []byte
	CreatedAt  time.Time
}

// UploadBytes returns the media that should actually be uploaded: the
// transcoded rendition when one exists, the raw capture otherwise.
func (s *CaptureSession) UploadBytes() []byte {
	if len(s.Transcoded) > 0 {
		return s.Transcoded
	}
	return s.Raw
}

// UploadFilename normalizes the filename to .jpg when a transcoded rendition
// is being uploaded, preserving the original name otherwise.
func (s *CaptureSession) UploadFilename() string {
	if len(s.Transcoded) == 0 {
		return s.Filename
	}
	return strings.TrimSuffix(s.Filename, filepath.Ext(s.Filename)) + ".jpg"
}
