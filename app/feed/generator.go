package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/rss-harvest/app/cfg"
	"github.com/lysyi3m/rss-harvest/app/database"
)

// Generator re-publishes a stored feed as an RSS 2.0 document
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(feed database.Feed, items []database.Item) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", feed.Title, 4)
	g.writeElement(&buf, "link", cmp.Or(feed.Link, feed.URL), 4)
	g.writeElement(&buf, "description", cmp.Or(feed.Description, fmt.Sprintf("Harvested feed from %s", feed.URL)), 4)

	var selfLink string
	if cfg.Get().BaseUrl != "" {
		selfLink = fmt.Sprintf("%s/feeds/%s", strings.TrimSuffix(cfg.Get().BaseUrl, "/"), feed.ID)
	} else {
		selfLink = fmt.Sprintf("http://localhost:%s/feeds/%s", cfg.Get().Port, feed.ID)
	}
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	g.writeOptional(&buf, "language", feed.Language, 4)
	g.writeOptional(&buf, "copyright", feed.Copyright, 4)
	g.writeOptional(&buf, "managingEditor", feed.ManagingEditor, 4)
	g.writeOptional(&buf, "webMaster", feed.WebMaster, 4)

	if feed.PubDate != nil {
		g.writeElement(&buf, "pubDate", feed.PubDate.Format(time.RFC1123Z), 4)
	}

	lastBuildDate := time.Now().In(time.Local)
	if feed.LastBuildDate != nil {
		lastBuildDate = *feed.LastBuildDate
	} else if len(items) > 0 {
		if items[0].PubDate != nil {
			lastBuildDate = *items[0].PubDate
		} else {
			lastBuildDate = cmp.Or(items[0].CreatedAt, lastBuildDate)
		}
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)

	for _, category := range feed.Categories {
		g.writeCategory(&buf, category, 4)
	}

	g.writeElement(&buf, "generator", fmt.Sprintf("RSS-Harvest/%s", cfg.Get().Version), 4)

	if feed.TTL != nil {
		g.writeElement(&buf, "ttl", fmt.Sprintf("%d", int64(*feed.TTL/time.Minute)), 4)
	}

	if feed.Image != nil && feed.Image.URL != "" {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", feed.Image.URL, 6)
		g.writeElement(&buf, "title", cmp.Or(feed.Image.Title, feed.Title), 6)
		g.writeElement(&buf, "link", cmp.Or(feed.Image.Link, feed.Link), 6)
		if feed.Image.Width != nil {
			g.writeElement(&buf, "width", fmt.Sprintf("%d", *feed.Image.Width), 6)
		}
		if feed.Image.Height != nil {
			g.writeElement(&buf, "height", fmt.Sprintf("%d", *feed.Image.Height), 6)
		}
		g.writeOptional(&buf, "description", feed.Image.Description, 6)
		buf.WriteString("    </image>\n")
	}

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item database.Item) {
	buf.WriteString("    <item>\n")

	if item.GUID != nil && *item.GUID != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(*item.GUID)))
		xml.EscapeText(buf, []byte(*item.GUID))
		buf.WriteString("</guid>\n")
	}

	g.writeOptional(buf, "title", item.Title, 6)
	g.writeOptional(buf, "link", item.Link, 6)

	description := "No description available"
	if item.Description != nil && *item.Description != "" {
		description = *item.Description
	}
	g.writeElement(buf, "description", description, 6)

	if item.PubDate != nil {
		g.writeElement(buf, "pubDate", item.PubDate.Format(time.RFC1123Z), 6)
	}

	g.writeOptional(buf, "author", item.Author, 6)
	g.writeOptional(buf, "comments", item.Comments, 6)

	for _, category := range item.Categories {
		g.writeCategory(buf, category, 6)
	}

	// RSS 2.0: url, length and type are all required
	if item.Enclosure != nil && item.Enclosure.URL != "" && item.Enclosure.Type != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"%d\" type=\"%s\" />\n",
			html.EscapeString(item.Enclosure.URL),
			item.Enclosure.Length,
			html.EscapeString(item.Enclosure.Type)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeCategory(buf *bytes.Buffer, category database.Category, indent int) {
	if category.Title == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	if category.Domain != nil {
		buf.WriteString(fmt.Sprintf("<category domain=\"%s\">", html.EscapeString(*category.Domain)))
	} else {
		buf.WriteString("<category>")
	}
	xml.EscapeText(buf, []byte(category.Title))
	buf.WriteString("</category>\n")
}

func (g *Generator) writeOptional(buf *bytes.Buffer, tag string, content *string, indent int) {
	if content != nil {
		g.writeElement(buf, tag, *content, indent)
	}
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
