package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureSession_UploadFilename(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		want     string
	}{
		{"extension replaced", "meal.png", "meal.jpg"},
		{"no extension", "meal", "meal.jpg"},
		{"dotted directory untouched", "shots.v2/meal", "shots.v2/meal.jpg"},
		{"multiple dots strip last", "meal.raw.heic", "meal.raw.jpg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &CaptureSession{Filename: tc.filename, Transcoded: []byte{1}}
			assert.Equal(t, tc.want, s.UploadFilename())
		})
	}
}

func TestCaptureSession_UploadFilenameKeptWithoutTranscode(t *testing.T) {
	s := &CaptureSession{Filename: "meal.heic", Raw: []byte{1}}
	assert.Equal(t, "meal.heic", s.UploadFilename())
	assert.Equal(t, []byte{1}, s.UploadBytes())
}
