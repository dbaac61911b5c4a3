// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courses.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
courses:
  - title: "دورة الفوتوشوب بالذكاء الاصطناعي"
    url: "https://easyt.online/p/photoshop-ai"
    description: "تعلم الفوتوشوب من الصفر"
    price: "9.99$"
    duration: "4 ساعات"
    domain: "design"
  - title: "دورة التسويق الرقمي"
    url: "https://easyt.online/p/marketing"
`)

	courses, err := loadCatalog(path)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "9.99$", courses[0].Price)
	assert.Equal(t, "design", courses[0].Domain)
	assert.Equal(t, "https://easyt.online/p/marketing", courses[1].URL)
}

func TestLoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty catalog", "courses: []"},
		{"missing title", "courses:\n  - url: \"https://easyt.online/p/x\""},
		{"missing url", "courses:\n  - title: \"دورة\""},
		{"malformed yaml", "courses: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCatalog(t, tt.content)
			_, err := loadCatalog(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_FileMissing(t *testing.T) {
	_, err := loadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCourseObjectID_Deterministic(t *testing.T) {
	a := courseObjectID("https://easyt.online/p/photoshop-ai")
	b := courseObjectID("https://easyt.online/p/photoshop-ai")
	c := courseObjectID("https://easyt.online/p/marketing")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, string(a), 36)
}

func TestEmbedText(t *testing.T) {
	withDesc := seedCourse{Title: "دورة", Description: "وصف"}
	assert.Equal(t, "دورة\nوصف", withDesc.embedText())

	bare := seedCourse{Title: "دورة"}
	assert.Equal(t, "دورة", bare.embedText())
}
