package ingest

import (
	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
)

func toFeedMetadata(parsed *feed.ParsedFeed) database.FeedMetadata {
	metadata := database.FeedMetadata{
		Title:          parsed.Title,
		Link:           parsed.Link,
		Description:    parsed.Description,
		Language:       parsed.Language,
		Copyright:      parsed.Copyright,
		ManagingEditor: parsed.ManagingEditor,
		WebMaster:      parsed.WebMaster,
		PubDate:        parsed.PubDate,
		LastBuildDate:  parsed.LastBuildDate,
		Categories:     toCategories(parsed.Categories),
		Generator:      parsed.Generator,
		TTL:            parsed.TTL,
	}

	if parsed.Image != nil {
		metadata.Image = &database.Image{
			URL:         parsed.Image.URL,
			Title:       parsed.Image.Title,
			Link:        parsed.Image.Link,
			Width:       parsed.Image.Width,
			Height:      parsed.Image.Height,
			Description: parsed.Image.Description,
		}
	}

	return metadata
}

func toFeedItems(entries []feed.ParsedEntry) []database.FeedItem {
	items := make([]database.FeedItem, 0, len(entries))
	for _, entry := range entries {
		item := database.FeedItem{
			Title:       entry.Title,
			Link:        entry.Link,
			Description: entry.Description,
			Author:      entry.Author,
			Categories:  toCategories(entry.Categories),
			Comments:    entry.Comments,
			GUID:        entry.GUID,
			PubDate:     entry.PubDate,
		}
		if entry.Enclosure != nil {
			item.Enclosure = &database.Enclosure{
				URL:    entry.Enclosure.URL,
				Length: entry.Enclosure.Length,
				Type:   entry.Enclosure.Type,
			}
		}
		items = append(items, item)
	}
	return items
}

func toCategories(categories []feed.Category) []database.Category {
	result := make([]database.Category, 0, len(categories))
	for _, c := range categories {
		result = append(result, database.Category{Title: c.Title, Domain: c.Domain})
	}
	return result
}
