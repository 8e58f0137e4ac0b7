package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

var (
	utf8BOM         = []byte("\xef\xbb\xbf")
	prologPattern   = regexp.MustCompile(`(?s)^\s*<\?xml\s.*?\?>`)
	encodingPattern = regexp.MustCompile(`encoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
)

// Elements in these namespaces are RSS fields. Anything else (atom:link,
// content:encoded, dc:creator, ...) is ignored by field lookups.
var rssNamespaces = map[string]bool{
	"":                                       true,
	"http://purl.org/rss/1.0/":               true,
	"http://my.netscape.com/rdf/simple/0.9/": true,
	"http://backend.userland.com/rss2":       true,
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Run parses an RSS document into channel metadata and its entries in
// document order. Any failure is a *MalformedFeedError.
func (p *Parser) Run(data []byte) (*ParsedFeed, []ParsedEntry, error) {
	doc, err := normalizeDocument(data)
	if err != nil {
		return nil, nil, err
	}

	switch gofeed.DetectFeedType(bytes.NewReader(doc)) {
	case gofeed.FeedTypeAtom, gofeed.FeedTypeJSON:
		return p.runUniversal(doc)
	}

	root, err := parseTree(doc)
	if err != nil {
		return nil, nil, err
	}

	channel := root.find("channel")
	if channel == nil {
		return nil, nil, malformed("document has no <channel> element", nil)
	}

	metadata, err := p.parseChannel(channel)
	if err != nil {
		return nil, nil, err
	}

	itemElems := root.descendants("item")
	entries := make([]ParsedEntry, 0, len(itemElems))
	for i, itemElem := range itemElems {
		entry, err := p.parseEntry(itemElem)
		if err != nil {
			return nil, nil, fmt.Errorf("item %d: %w", i, err)
		}
		entries = append(entries, entry)
	}

	return metadata, entries, nil
}

func (p *Parser) parseChannel(channel *element) (*ParsedFeed, error) {
	var err error
	metadata := &ParsedFeed{}

	if metadata.Title, err = requiredText(channel, "title", "channel"); err != nil {
		return nil, err
	}
	if metadata.Link, err = requiredText(channel, "link", "channel"); err != nil {
		return nil, err
	}
	if metadata.Description, err = requiredText(channel, "description", "channel"); err != nil {
		return nil, err
	}

	metadata.Language = optionalText(channel, "language")
	metadata.Copyright = optionalText(channel, "copyright")
	metadata.ManagingEditor = optionalText(channel, "managingEditor")
	metadata.WebMaster = optionalText(channel, "webMaster")
	metadata.Generator = optionalText(channel, "generator")

	if metadata.PubDate, err = optionalDate(channel, "pubDate"); err != nil {
		return nil, err
	}
	if metadata.LastBuildDate, err = optionalDate(channel, "lastBuildDate"); err != nil {
		return nil, err
	}

	metadata.Categories = parseCategories(channel.childrenNamed("category"))
	metadata.TTL = optionalTTL(channel)

	if imageElem := channel.child("image"); imageElem != nil {
		if metadata.Image, err = parseImage(imageElem); err != nil {
			return nil, err
		}
	}

	return metadata, nil
}

func (p *Parser) parseEntry(item *element) (ParsedEntry, error) {
	var err error
	entry := ParsedEntry{
		Title:       optionalText(item, "title"),
		Link:        optionalText(item, "link"),
		Description: optionalText(item, "description"),
		Author:      optionalText(item, "author"),
		Categories:  parseCategories(item.descendants("category")),
		Comments:    optionalText(item, "comments"),
		GUID:        optionalText(item, "guid"),
	}

	if enclosureElem := item.child("enclosure"); enclosureElem != nil {
		if entry.Enclosure, err = parseEnclosure(enclosureElem); err != nil {
			return ParsedEntry{}, err
		}
	}

	if entry.PubDate, err = optionalDate(item, "pubDate"); err != nil {
		return ParsedEntry{}, err
	}

	return entry, nil
}

// runUniversal handles Atom and JSON documents on a best-effort basis by
// mapping gofeed's universal model onto ours.
func (p *Parser) runUniversal(doc []byte) (*ParsedFeed, []ParsedEntry, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, nil, malformed("failed to parse feed", err)
	}
	if strings.TrimSpace(feed.Title) == "" {
		return nil, nil, malformed("feed is missing required title", nil)
	}

	metadata := &ParsedFeed{
		Title:         strings.TrimSpace(feed.Title),
		Link:          strings.TrimSpace(feed.Link),
		Description:   strings.TrimSpace(feed.Description),
		Language:      nonEmpty(feed.Language),
		Copyright:     nonEmpty(feed.Copyright),
		Generator:     nonEmpty(feed.Generator),
		PubDate:       feed.PublishedParsed,
		LastBuildDate: feed.UpdatedParsed,
		Categories:    stringCategories(feed.Categories),
	}

	if len(feed.Authors) > 0 && feed.Authors[0] != nil {
		metadata.ManagingEditor = nonEmpty(formatAuthor(feed.Authors[0].Name, feed.Authors[0].Email))
	}

	if feed.Image != nil && feed.Image.URL != "" {
		metadata.Image = &Image{
			URL:   feed.Image.URL,
			Title: cmp.Or(feed.Image.Title, metadata.Title),
			Link:  metadata.Link,
		}
	}

	entries := make([]ParsedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, normalizeItem(item))
	}

	return metadata, entries, nil
}

func normalizeItem(item *gofeed.Item) ParsedEntry {
	entry := ParsedEntry{
		Title:       nonEmpty(item.Title),
		Link:        nonEmpty(item.Link),
		Description: nonEmpty(cmp.Or(item.Description, item.Content)),
		Categories:  stringCategories(item.Categories),
		GUID:        nonEmpty(item.GUID),
		PubDate:     item.PublishedParsed,
	}

	if entry.PubDate == nil {
		entry.PubDate = item.UpdatedParsed
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		entry.Author = nonEmpty(formatAuthor(item.Authors[0].Name, item.Authors[0].Email))
	}

	// Only one enclosure per item is kept
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil && item.Enclosures[0].URL != "" {
		enclosure := item.Enclosures[0]
		entry.Enclosure = &Enclosure{URL: enclosure.URL, Type: enclosure.Type}
		if length, err := strconv.ParseInt(strings.TrimSpace(enclosure.Length), 10, 64); err == nil {
			entry.Enclosure.Length = length
		}
	}

	return entry
}

// normalizeDocument drops the BOM and the XML declaration and makes sure the
// remaining bytes are UTF-8, using the declared encoding when they are not.
func normalizeDocument(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var label string
	if loc := prologPattern.FindIndex(data); loc != nil {
		if m := encodingPattern.FindSubmatch(data[loc[0]:loc[1]]); m != nil {
			label = string(m[1])
		}
		data = data[loc[1]:]
	}

	if utf8.Valid(data) {
		return data, nil
	}

	decoded, err := lookupEncoding(label).NewDecoder().Bytes(data)
	if err != nil {
		return nil, malformed("failed to decode document", err)
	}
	return decoded, nil
}

// lookupEncoding resolves a declared charset. Undeclared, unknown and
// mis-declared UTF-8 documents are read as Windows-1252, a Latin-1 superset.
func lookupEncoding(label string) encoding.Encoding {
	if label == "" {
		return charmap.Windows1252
	}
	enc, err := htmlindex.Get(label)
	if err != nil || enc == nil {
		return charmap.Windows1252
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return charmap.Windows1252
	}
	return enc
}

type element struct {
	name     xml.Name
	attrs    []xml.Attr
	children []*element
	text     strings.Builder // all descendant character data, in order
}

// parseTree builds a small DOM. HTML named entities are resolved like the
// XHTML 1.0 Transitional DTD would, so &lt;b&gt; and &nbsp; come out as text.
func parseTree(doc []byte) (*element, error) {
	decoder := xml.NewDecoder(bytes.NewReader(doc))
	decoder.Strict = true
	decoder.Entity = xml.HTMLEntity

	var root *element
	var stack []*element

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed("invalid XML", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			el := &element{name: t.Name, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, malformed("document has more than one root element", nil)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			for _, el := range stack {
				el.text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, malformed("document has no root element", nil)
	}

	return root, nil
}

func (e *element) is(local string) bool {
	return e.name.Local == local && rssNamespaces[e.name.Space]
}

func (e *element) child(local string) *element {
	for _, c := range e.children {
		if c.is(local) {
			return c
		}
	}
	return nil
}

func (e *element) childrenNamed(local string) []*element {
	var matches []*element
	for _, c := range e.children {
		if c.is(local) {
			matches = append(matches, c)
		}
	}
	return matches
}

// descendants returns matching elements below e in document order.
func (e *element) descendants(local string) []*element {
	var matches []*element
	var walk func(*element)
	walk = func(parent *element) {
		for _, c := range parent.children {
			if c.is(local) {
				matches = append(matches, c)
			}
			walk(c)
		}
	}
	walk(e)
	return matches
}

func (e *element) find(local string) *element {
	if e.is(local) {
		return e
	}
	if found := e.descendants(local); len(found) > 0 {
		return found[0]
	}
	return nil
}

func (e *element) textContent() string {
	return strings.TrimSpace(e.text.String())
}

func (e *element) attr(local string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return strings.TrimSpace(a.Value), true
		}
	}
	return "", false
}

func requiredText(parent *element, local, context string) (string, error) {
	el := parent.child(local)
	if el == nil {
		return "", malformed(fmt.Sprintf("%s is missing required <%s>", context, local), nil)
	}
	return el.textContent(), nil
}

func optionalText(parent *element, local string) *string {
	el := parent.child(local)
	if el == nil {
		return nil
	}
	text := el.textContent()
	return &text
}

func optionalDate(parent *element, local string) (*time.Time, error) {
	text := optionalText(parent, local)
	if text == nil {
		return nil, nil
	}
	parsed, err := mail.ParseDate(numericZone(*text))
	if err != nil {
		return nil, malformed(fmt.Sprintf("invalid <%s> %q", local, *text), err)
	}
	return &parsed, nil
}

// obsoleteZones are the RFC 822 zone names. net/mail keeps them as
// abbreviations with a zero offset, so they are rewritten as numeric offsets.
var obsoleteZones = map[string]string{
	"UT":  "+0000",
	"GMT": "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// numericZone replaces a trailing RFC 822 zone name with its offset.
// Single-letter military zones carry no reliable offset and become -0000.
func numericZone(date string) string {
	date = strings.TrimSpace(date)
	i := strings.LastIndexByte(date, ' ')
	if i < 0 {
		return date
	}

	zone := strings.ToUpper(date[i+1:])
	if offset, ok := obsoleteZones[zone]; ok {
		return date[:i+1] + offset
	}
	if len(zone) == 1 && zone[0] >= 'A' && zone[0] <= 'Z' && zone != "J" {
		return date[:i+1] + "-0000"
	}
	return date
}

// optionalTTL reads <ttl> as minutes. The value is a hint, so anything
// that is not a plain non-negative integer counts as absent.
func optionalTTL(channel *element) *time.Duration {
	minutes, ok := optionalNumber(channel, "ttl")
	if !ok || int64(minutes) > math.MaxInt64/int64(time.Minute) {
		return nil
	}
	ttl := time.Duration(minutes) * time.Minute
	return &ttl
}

func optionalNumber(parent *element, local string) (int, bool) {
	text := optionalText(parent, local)
	if text == nil || !isDigits(*text) {
		return 0, false
	}
	n, err := strconv.Atoi(*text)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseCategories(elems []*element) []Category {
	categories := make([]Category, 0, len(elems))
	for _, el := range elems {
		category := Category{Title: el.textContent()}
		if domain, ok := el.attr("domain"); ok {
			category.Domain = &domain
		}
		categories = append(categories, category)
	}
	return categories
}

func parseImage(el *element) (*Image, error) {
	var err error
	image := &Image{}

	if image.URL, err = requiredText(el, "url", "image"); err != nil {
		return nil, err
	}
	if image.Title, err = requiredText(el, "title", "image"); err != nil {
		return nil, err
	}
	if image.Link, err = requiredText(el, "link", "image"); err != nil {
		return nil, err
	}

	if width, ok := optionalNumber(el, "width"); ok {
		image.Width = &width
	}
	if height, ok := optionalNumber(el, "height"); ok {
		image.Height = &height
	}
	image.Description = optionalText(el, "description")

	return image, nil
}

func parseEnclosure(el *element) (*Enclosure, error) {
	url, ok := el.attr("url")
	if !ok {
		return nil, malformed("enclosure is missing url attribute", nil)
	}

	rawLength, ok := el.attr("length")
	if !ok {
		return nil, malformed("enclosure is missing length attribute", nil)
	}
	length, err := strconv.ParseInt(rawLength, 10, 64)
	if err != nil {
		return nil, malformed(fmt.Sprintf("enclosure has invalid length %q", rawLength), err)
	}

	mimeType, ok := el.attr("type")
	if !ok {
		return nil, malformed("enclosure is missing type attribute", nil)
	}

	return &Enclosure{URL: url, Length: length, Type: mimeType}, nil
}

func stringCategories(values []string) []Category {
	categories := make([]Category, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			categories = append(categories, Category{Title: v})
		}
	}
	return categories
}

func formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
