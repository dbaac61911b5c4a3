// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package format renders assistant replies into a constrained HTML subset.
//
// # Description
//
// Model output arrives as loose prose with occasional markdown artifacts
// (headings, bullets, bold markers, stray links). Rather than chaining
// order-dependent regex rewrites over an HTML string, this package parses the
// reply into a small block IR (paragraph, list, course button) and renders
// the whole thing in a single template pass. The rendered wrapper carries a
// marker attribute so formatting is idempotent: feeding the formatter its own
// output returns it unchanged.
//
// Links never come from the model. Any URL in the generated prose is
// stripped; the only links in the final HTML are the course buttons built
// from retrieval results.
package format

import (
	"html/template"
	"regexp"
	"strings"

	"github.com/AleutianAI/CourseAssistant/services/assistant/datatypes"
)

// BlockKind discriminates the block IR.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockList
	BlockCourseButton
)

// Block is one unit of rendered output.
type Block struct {
	Kind   BlockKind
	Text   string   // BlockParagraph
	Items  []string // BlockList
	Course *datatypes.ScoredCourse
}

// wrapperMarker identifies HTML this package produced. Presence of the
// marker at the start of the input is the idempotence guard.
const wrapperMarker = `<div class="assistant-reply" dir="rtl"`

var (
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s*(.+)$`)
	bulletRe   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	boldRe     = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	urlRe      = regexp.MustCompile(`(?:\[([^\]]*)\]\((?:https?://|www\.)[^\s)]+\))|(?:https?://[^\s<>"]+)|(?:www\.[^\s<>"]+)`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes model prose before block parsing.
//
// Headings become bold text, markdown links collapse to their anchor text,
// bare URLs disappear, and runs of blank lines shrink to one.
func Clean(reply string) string {
	out := strings.ReplaceAll(reply, "\r\n", "\n")
	out = headingRe.ReplaceAllString(out, "**$1**")
	out = urlRe.ReplaceAllString(out, "$1")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Parse converts cleaned prose into blocks. Consecutive bullet lines fold
// into one list block; everything else becomes a paragraph per blank-line
// separated chunk.
func Parse(cleaned string) []Block {
	var blocks []Block
	var listItems []string
	var paragraph []string

	flushParagraph := func() {
		if len(paragraph) > 0 {
			blocks = append(blocks, Block{
				Kind: BlockParagraph,
				Text: strings.Join(paragraph, "\n"),
			})
			paragraph = nil
		}
	}
	flushList := func() {
		if len(listItems) > 0 {
			blocks = append(blocks, Block{Kind: BlockList, Items: listItems})
			listItems = nil
		}
	}

	for _, line := range strings.Split(cleaned, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flushParagraph()
			flushList()
			continue
		}
		if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
			flushParagraph()
			listItems = append(listItems, m[1])
			continue
		}
		flushList()
		paragraph = append(paragraph, trimmed)
	}
	flushParagraph()
	flushList()
	return blocks
}

// replyTemplate renders the full block list in one pass. Inline styles keep
// the widget self-contained; the host page strips external stylesheets.
var replyTemplate = template.Must(template.New("reply").Parse(
	`<div class="assistant-reply" dir="rtl" style="font-family:'Tajawal',sans-serif;line-height:1.7;color:#1f2937">` +
		`{{range .Blocks}}` +
		`{{if eq .Kind 0}}<p style="margin:0 0 10px">{{.HTML}}</p>` +
		`{{else if eq .Kind 1}}<ul style="margin:0 0 10px;padding-right:20px">{{range .Items}}<li>{{.HTML}}</li>{{end}}</ul>` +
		`{{else}}<a class="course-link" href="{{.URL}}" target="_blank" rel="noopener" style="display:inline-block;margin:4px 0 10px;padding:10px 18px;background:#2563eb;color:#ffffff;border-radius:8px;text-decoration:none;font-weight:700">{{.Label}}</a>` +
		`{{end}}` +
		`{{end}}` +
		`</div>`))

// template view types: text is escaped up front, then bold markers become
// <strong> tags, so the template can emit the result verbatim.

type renderedItem struct {
	HTML template.HTML
}

type renderedBlock struct {
	Kind  int
	HTML  template.HTML
	Items []renderedItem
	URL   template.URL
	Label string
}

// inlineHTML escapes text and rewrites **bold** runs into <strong> tags.
func inlineHTML(text string) template.HTML {
	var b strings.Builder
	last := 0
	for _, loc := range boldRe.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(template.HTMLEscapeString(text[last:loc[0]]))
		inner := ""
		if loc[2] >= 0 {
			inner = text[loc[2]:loc[3]]
		} else {
			inner = text[loc[4]:loc[5]]
		}
		b.WriteString("<strong>")
		b.WriteString(template.HTMLEscapeString(inner))
		b.WriteString("</strong>")
		last = loc[1]
	}
	b.WriteString(template.HTMLEscapeString(text[last:]))
	out := strings.ReplaceAll(b.String(), "\n", "<br>")
	return template.HTML(out)
}

// Render emits the final HTML for a block list.
func Render(blocks []Block) (string, error) {
	view := make([]renderedBlock, 0, len(blocks))
	for _, blk := range blocks {
		switch blk.Kind {
		case BlockParagraph:
			view = append(view, renderedBlock{Kind: 0, HTML: inlineHTML(blk.Text)})
		case BlockList:
			items := make([]renderedItem, len(blk.Items))
			for i, item := range blk.Items {
				items[i] = renderedItem{HTML: inlineHTML(item)}
			}
			view = append(view, renderedBlock{Kind: 1, Items: items})
		case BlockCourseButton:
			if blk.Course == nil || blk.Course.Course.URL == "" {
				continue
			}
			label := blk.Course.Course.Title
			if label == "" {
				label = "رابط الدورة"
			}
			view = append(view, renderedBlock{
				Kind:  2,
				URL:   template.URL(blk.Course.Course.URL),
				Label: label,
			})
		}
	}

	var b strings.Builder
	if err := replyTemplate.Execute(&b, struct{ Blocks []renderedBlock }{view}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// FormatReply cleans, parses, appends course buttons, and renders.
//
// Already-formatted input (carrying the wrapper marker) is returned as-is;
// re-running the formatter never double-wraps or duplicates buttons. When
// courses is empty no links of any kind appear in the output.
func FormatReply(reply string, courses []datatypes.ScoredCourse) (string, error) {
	if IsFormatted(reply) {
		return reply, nil
	}

	blocks := Parse(Clean(reply))
	for i := range courses {
		blocks = append(blocks, Block{Kind: BlockCourseButton, Course: &courses[i]})
	}
	return Render(blocks)
}

// IsFormatted reports whether reply was already produced by this package.
func IsFormatted(reply string) bool {
	return strings.HasPrefix(strings.TrimSpace(reply), wrapperMarker)
}
