package feed

import (
	"errors"
	"testing"
	"time"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <language>en-us</language>
    <managingEditor>editor@example.com</managingEditor>
    <generator>Hand</generator>
    <lastBuildDate>Mon, 03 Jul 2023 12:00:00 GMT</lastBuildDate>
    <category domain="https://example.com/tags">News</category>
    <ttl>60</ttl>
    <image>
      <url>https://example.com/icon.png</url>
      <title>Test Feed</title>
      <link>https://example.com</link>
      <width>88</width>
      <height>tall</height>
    </image>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description>Test Item 1 Description</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>test@example.com (Test Author)</author>
      <comments>https://example.com/item1#comments</comments>
      <category>Technology</category>
      <category domain="dmoz">Programming</category>
      <enclosure url="https://example.com/item1.mp3" length="12345" type="audio/mpeg"/>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	metadata, items, err := parser.Run([]byte(rssData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Test metadata
	if metadata.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", metadata.Title)
	}
	if metadata.Link != "https://example.com" {
		t.Errorf("Expected link 'https://example.com', got: %s", metadata.Link)
	}
	if metadata.Description != "Test Description" {
		t.Errorf("Expected description 'Test Description', got: %s", metadata.Description)
	}
	if metadata.Language == nil || *metadata.Language != "en-us" {
		t.Errorf("Expected language 'en-us', got: %v", metadata.Language)
	}
	if metadata.ManagingEditor == nil || *metadata.ManagingEditor != "editor@example.com" {
		t.Errorf("Expected managing editor, got: %v", metadata.ManagingEditor)
	}
	if metadata.Copyright != nil {
		t.Errorf("Expected nil copyright, got: %v", *metadata.Copyright)
	}

	expectedBuild := time.Date(2023, 7, 3, 12, 0, 0, 0, time.UTC)
	if metadata.LastBuildDate == nil || !metadata.LastBuildDate.Equal(expectedBuild) {
		t.Errorf("Expected last build date %v, got: %v", expectedBuild, metadata.LastBuildDate)
	}
	if metadata.PubDate != nil {
		t.Errorf("Expected nil pub date, got: %v", metadata.PubDate)
	}

	if metadata.TTL == nil || *metadata.TTL != time.Hour {
		t.Errorf("Expected ttl of 1h, got: %v", metadata.TTL)
	}

	if len(metadata.Categories) != 1 {
		t.Fatalf("Expected 1 channel category, got: %d", len(metadata.Categories))
	}
	if metadata.Categories[0].Title != "News" || metadata.Categories[0].Domain == nil || *metadata.Categories[0].Domain != "https://example.com/tags" {
		t.Errorf("Unexpected channel category: %+v", metadata.Categories[0])
	}

	if metadata.Image == nil {
		t.Fatal("Expected image to be parsed")
	}
	if metadata.Image.URL != "https://example.com/icon.png" {
		t.Errorf("Expected image URL 'https://example.com/icon.png', got: %s", metadata.Image.URL)
	}
	if metadata.Image.Width == nil || *metadata.Image.Width != 88 {
		t.Errorf("Expected image width 88, got: %v", metadata.Image.Width)
	}
	if metadata.Image.Height != nil {
		t.Errorf("Expected non-numeric height to be nil, got: %v", *metadata.Image.Height)
	}

	// Test items
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(items))
	}

	item1 := items[0]
	if item1.Title == nil || *item1.Title != "Test Item 1" {
		t.Errorf("Expected title 'Test Item 1', got: %v", item1.Title)
	}
	if item1.LinkKey() != "https://example.com/item1" {
		t.Errorf("Expected link 'https://example.com/item1', got: %s", item1.LinkKey())
	}
	if item1.GUID == nil || *item1.GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got: %v", item1.GUID)
	}
	if item1.Author == nil || *item1.Author != "test@example.com (Test Author)" {
		t.Errorf("Expected author, got: %v", item1.Author)
	}
	if item1.Comments == nil || *item1.Comments != "https://example.com/item1#comments" {
		t.Errorf("Expected comments link, got: %v", item1.Comments)
	}
	if len(item1.Categories) != 2 {
		t.Fatalf("Expected 2 categories, got: %d", len(item1.Categories))
	}
	if item1.Categories[0].Domain != nil {
		t.Errorf("Expected first category without domain, got: %v", *item1.Categories[0].Domain)
	}
	if item1.Categories[1].Domain == nil || *item1.Categories[1].Domain != "dmoz" {
		t.Errorf("Expected second category domain 'dmoz', got: %v", item1.Categories[1].Domain)
	}

	if item1.Enclosure == nil {
		t.Fatal("Expected enclosure to be parsed")
	}
	if item1.Enclosure.URL != "https://example.com/item1.mp3" || item1.Enclosure.Length != 12345 || item1.Enclosure.Type != "audio/mpeg" {
		t.Errorf("Unexpected enclosure: %+v", item1.Enclosure)
	}

	expectedPub := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if item1.PubDate == nil || !item1.PubDate.Equal(expectedPub) {
		t.Errorf("Expected pub date %v, got: %v", expectedPub, item1.PubDate)
	}

	item2 := items[1]
	if item2.LinkKey() != "https://example.com/item2" {
		t.Errorf("Expected second item link, got: %s", item2.LinkKey())
	}
	if item2.Enclosure != nil {
		t.Errorf("Expected no enclosure on second item, got: %+v", item2.Enclosure)
	}
	if item2.Categories == nil || len(item2.Categories) != 0 {
		t.Errorf("Expected empty categories slice, got: %v", item2.Categories)
	}
}

func TestParseDecodesEntities(t *testing.T) {
	rssData := `<rss version="2.0"><channel>
  <title>Entities &amp; More</title>
  <link>https://example.com</link>
  <description>Channel</description>
  <item>
    <link>https://example.com/1</link>
    <description>&lt;b&gt;Hello&lt;/b&gt;&nbsp;world &#8230; &copy;</description>
  </item>
  <item>
    <link>https://example.com/2</link>
    <description><![CDATA[<p>Raw</p>]]></description>
  </item>
</channel></rss>`

	metadata, items, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Entities & More" {
		t.Errorf("Expected decoded title, got: %s", metadata.Title)
	}

	expected := "<b>Hello</b>\u00a0world \u2026 \u00a9"
	if items[0].Description == nil || *items[0].Description != expected {
		t.Errorf("Expected description %q, got: %v", expected, items[0].Description)
	}

	if items[1].Description == nil || *items[1].Description != "<p>Raw</p>" {
		t.Errorf("Expected CDATA description, got: %v", items[1].Description)
	}
}

func TestParseMissingOptionalFields(t *testing.T) {
	rssData := `<rss version="2.0"><channel>
  <title>Bare</title>
  <link>https://example.com</link>
  <description></description>
</channel></rss>`

	metadata, items, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Description != "" {
		t.Errorf("Expected empty description, got: %q", metadata.Description)
	}
	if metadata.Language != nil {
		t.Errorf("Expected nil language, got: %v", *metadata.Language)
	}
	if metadata.Copyright != nil {
		t.Errorf("Expected nil copyright, got: %v", *metadata.Copyright)
	}
	if metadata.Image != nil {
		t.Errorf("Expected nil image, got: %+v", metadata.Image)
	}
	if metadata.TTL != nil {
		t.Errorf("Expected nil ttl, got: %v", *metadata.TTL)
	}
	if metadata.Categories == nil || len(metadata.Categories) != 0 {
		t.Errorf("Expected empty categories slice, got: %v", metadata.Categories)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got: %d", len(items))
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "missing channel title",
			data: `<rss><channel><link>https://example.com</link><description>d</description></channel></rss>`,
		},
		{
			name: "missing channel description",
			data: `<rss><channel><title>t</title><link>https://example.com</link></channel></rss>`,
		},
		{
			name: "no channel",
			data: `<rss version="2.0"></rss>`,
		},
		{
			name: "invalid xml",
			data: `<rss><channel><title>t</title>`,
		},
		{
			name: "bare ampersand",
			data: `<rss><channel><title>a & b</title><link>l</link><description>d</description></channel></rss>`,
		},
		{
			name: "invalid pubDate",
			data: `<rss><channel><title>t</title><link>l</link><description>d</description><pubDate>yesterday</pubDate></channel></rss>`,
		},
		{
			name: "invalid item pubDate",
			data: `<rss><channel><title>t</title><link>l</link><description>d</description>
<item><link>a</link><pubDate>32/13/2023</pubDate></item></channel></rss>`,
		},
		{
			name: "image without url",
			data: `<rss><channel><title>t</title><link>l</link><description>d</description>
<image><title>t</title><link>l</link></image></channel></rss>`,
		},
		{
			name: "enclosure without length",
			data: `<rss><channel><title>t</title><link>l</link><description>d</description>
<item><link>a</link><enclosure url="https://example.com/a.mp3" type="audio/mpeg"/></item></channel></rss>`,
		},
		{
			name: "enclosure with non-numeric length",
			data: `<rss><channel><title>t</title><link>l</link><description>d</description>
<item><link>a</link><enclosure url="https://example.com/a.mp3" length="big" type="audio/mpeg"/></item></channel></rss>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata, items, err := NewParser().Run([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			var malformedErr *MalformedFeedError
			if !errors.As(err, &malformedErr) {
				t.Errorf("Expected MalformedFeedError, got: %T %v", err, err)
			}
			if metadata != nil {
				t.Errorf("Expected no partial metadata, got: %+v", metadata)
			}
			if items != nil {
				t.Errorf("Expected no items, got: %d", len(items))
			}
		})
	}
}

func TestParseNonNumericTTL(t *testing.T) {
	rssData := `<rss><channel><title>t</title><link>l</link><description>d</description><ttl>soon</ttl></channel></rss>`

	metadata, _, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if metadata.TTL != nil {
		t.Errorf("Expected nil ttl, got: %v", *metadata.TTL)
	}
}

func TestParseIgnoresForeignNamespaces(t *testing.T) {
	rssData := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <atom:link href="https://example.com/feed.xml" rel="self" type="application/rss+xml"/>
    <title>Namespaced</title>
    <link>https://example.com/</link>
    <description>d</description>
    <item>
      <content:encoded>full body</content:encoded>
      <link>https://example.com/post</link>
      <description>summary</description>
    </item>
  </channel>
</rss>`

	metadata, items, err := NewParser().Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if metadata.Link != "https://example.com/" {
		t.Errorf("Expected plain link, got: %q", metadata.Link)
	}
	if len(items) != 1 || items[0].Description == nil || *items[0].Description != "summary" {
		t.Errorf("Expected description 'summary', got: %+v", items)
	}
}

func TestParseLatin1Document(t *testing.T) {
	rssData := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<rss version=\"2.0\"><channel><title>Caf\xe9</title><link>l</link><description>d</description></channel></rss>")

	metadata, _, err := NewParser().Run(rssData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if metadata.Title != "Café" {
		t.Errorf("Expected title 'Café', got: %q", metadata.Title)
	}
}

func TestParseMisdeclaredEncoding(t *testing.T) {
	// Declared as UTF-8, actually Latin-1
	rssData := []byte("\xef\xbb\xbf<?xml version=\"1.0\" encoding=\"utf-8\"?>" +
		"<rss><channel><title>Na\xefve</title><link>l</link><description>d</description></channel></rss>")

	metadata, _, err := NewParser().Run(rssData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if metadata.Title != "Naïve" {
		t.Errorf("Expected title 'Naïve', got: %q", metadata.Title)
	}
}

func TestParseRSS1(t *testing.T) {
	rdfData := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
  <channel rdf:about="https://example.com/rss">
    <title>RDF Feed</title>
    <link>https://example.com</link>
    <description>RSS 1.0</description>
  </channel>
  <item rdf:about="https://example.com/one">
    <title>One</title>
    <link>https://example.com/one</link>
  </item>
  <item rdf:about="https://example.com/two">
    <title>Two</title>
    <link>https://example.com/two</link>
  </item>
</rdf:RDF>`

	metadata, items, err := NewParser().Run([]byte(rdfData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if metadata.Title != "RDF Feed" {
		t.Errorf("Expected title 'RDF Feed', got: %s", metadata.Title)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(items))
	}
	if items[0].LinkKey() != "https://example.com/one" || items[1].LinkKey() != "https://example.com/two" {
		t.Errorf("Expected items in document order, got: %s, %s", items[0].LinkKey(), items[1].LinkKey())
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <link href="https://example.com/"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <id>urn:uuid:feed</id>
  <entry>
    <title>Atom Entry</title>
    <link href="https://example.com/entry"/>
    <id>urn:uuid:entry</id>
    <updated>2023-07-03T11:00:00Z</updated>
    <summary>Entry summary</summary>
    <author><name>Jane</name></author>
  </entry>
</feed>`

	metadata, items, err := NewParser().Run([]byte(atomData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if metadata.Title != "Atom Feed" {
		t.Errorf("Expected title 'Atom Feed', got: %s", metadata.Title)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(items))
	}
	if items[0].LinkKey() != "https://example.com/entry" {
		t.Errorf("Expected entry link, got: %s", items[0].LinkKey())
	}
	if items[0].Author == nil || *items[0].Author != "Jane" {
		t.Errorf("Expected author 'Jane', got: %v", items[0].Author)
	}
	if items[0].PubDate == nil {
		t.Error("Expected pub date to fall back to updated")
	}
}

func TestFormatAuthor(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{"John Doe", "john@example.com", "john@example.com (John Doe)"},
		{"John Doe", "", "John Doe"},
		{"", "john@example.com", "john@example.com"},
		{"", "", ""},
		{"  Jane  ", "  jane@example.com  ", "jane@example.com (Jane)"},
	}

	for _, tt := range tests {
		result := formatAuthor(tt.name, tt.email)
		if result != tt.expected {
			t.Errorf("formatAuthor(%q, %q) = %q, expected %q", tt.name, tt.email, result, tt.expected)
		}
	}
}

func TestParseObsoleteTimeZones(t *testing.T) {
	tests := []struct {
		date     string
		expected time.Time
		offset   int
	}{
		{"Mon, 02 Jan 2006 15:04:05 EST", time.Date(2006, 1, 2, 20, 4, 5, 0, time.UTC), -5 * 3600},
		{"Mon, 02 Jan 2006 15:04:05 PDT", time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC), -7 * 3600},
		{"Mon, 02 Jan 2006 15:04:05 GMT", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), 0},
		{"02 Jan 2006 15:04:05 UT", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), 0},
		{"Mon, 02 Jan 2006 15:04:05 Z", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), 0},
		{"Mon, 02 Jan 2006 15:04:05 +0200", time.Date(2006, 1, 2, 13, 4, 5, 0, time.UTC), 2 * 3600},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			data := `<rss version="2.0"><channel><title>t</title><link>l</link><description>d</description><pubDate>` +
				tt.date + `</pubDate></channel></rss>`

			metadata, _, err := NewParser().Run([]byte(data))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if metadata.PubDate == nil {
				t.Fatal("Expected pub date")
			}
			if !metadata.PubDate.Equal(tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, metadata.PubDate.UTC())
			}
			if _, offset := metadata.PubDate.Zone(); offset != tt.offset {
				t.Errorf("Expected offset %d, got %d", tt.offset, offset)
			}
		})
	}
}
