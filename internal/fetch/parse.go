// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

var (
	editionExpr = regexp.MustCompile(`MTB\s+(\d+)/(\d{4})`)
	titleExpr   = regexp.MustCompile(`((?:SONDERNUMMER[^-]*-\s*)?MTB\s+\d+/\d{4})`)
	dateExpr    = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
)

const (
	maxTitleLen   = 500
	maxTextLen    = 5000
	maxRowLen     = 500
	appendTextCap = 4500
)

// Rows after these markers belong to the signature block, not the item.
var stopMarkers = []string{"DER REKTOR:", "FÜR DAS REKTORAT:", "DER VORSITZENDE", "Permalink kopieren"}

// parseArchive extracts editions from the listing table. Rows whose first
// cell does not name an edition ("MTB <n>/<yyyy>") are ignored.
func parseArchive(doc *goquery.Document, baseURL string) []types.Edition {
	var out []types.Edition
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("td")
		if cells.Length() < 3 {
			cells = row.Find("td")
			if cells.Length() < 3 {
				return
			}
		}

		shortName := clean(cells.Eq(0).Text())
		m := editionExpr.FindStringSubmatch(shortName)
		if m == nil {
			return
		}
		number, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		id := types.EditionID{Year: year, Number: number}

		title := fmt.Sprintf("MTB %d/%d", number, year)
		if tm := titleExpr.FindStringSubmatch(shortName); tm != nil {
			title = tm[1]
		}

		out = append(out, types.Edition{
			ID:          id,
			Title:       title,
			URL:         EditionURL(baseURL, id),
			PublishedAt: parseDate(clean(cells.Eq(1).Text())),
			Special:     strings.Contains(shortName, "SONDERNUMMER"),
		})
	})
	return out
}

// parseDate reads a "dd.mm.yyyy" date; nil when absent or invalid.
func parseDate(s string) *time.Time {
	m := dateExpr.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	t, err := time.Parse("02.01.2006", m[1]+"."+m[2]+"."+m[3])
	if err != nil {
		return nil
	}
	return &t
}

// parseItems extracts the items of an edition page. Each item is anchored
// on a "Pkt.:" label cell; title and body are taken from the rows that
// follow it in the same table.
func parseItems(doc *goquery.Document, baseURL string) []types.RawItem {
	var items []types.RawItem
	seen := map[int]bool{}

	doc.Find("td").Each(func(_ int, td *goquery.Selection) {
		if clean(td.Text()) != "Pkt.:" {
			return
		}
		pktRow := td.Closest("tr")
		if pktRow.Length() == 0 {
			return
		}

		number, category, ok := labelValues(pktRow)
		if !ok || seen[number] {
			return
		}

		table := pktRow.Closest("table")
		if table.Length() == 0 {
			return
		}

		item := types.RawItem{Number: number, Category: category}
		collectBody(&item, table, pktRow, baseURL)

		seen[number] = true
		items = append(items, item)
	})
	return items
}

// labelValues reads the cells following "Pkt.:" and "Kategorie:" in row.
func labelValues(row *goquery.Selection) (number int, category string, ok bool) {
	cells := row.Find("td")
	cells.Each(func(i int, c *goquery.Selection) {
		if i+1 >= cells.Length() {
			return
		}
		switch clean(c.Text()) {
		case "Pkt.:":
			if n, err := strconv.Atoi(clean(cells.Eq(i + 1).Text())); err == nil && n > 0 {
				number, ok = n, true
			}
		case "Kategorie:":
			category = clean(cells.Eq(i + 1).Text())
		}
	})
	return number, category, ok
}

func collectBody(item *types.RawItem, table, pktRow *goquery.Selection, baseURL string) {
	rows := table.Find("tr")
	start := rows.IndexOfSelection(pktRow)
	if start < 0 {
		return
	}

	var text strings.Builder
	seenAtt := map[string]bool{}
	rows.Slice(start+1, rows.Length()).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		item.Attachments = append(item.Attachments, attachments(row, baseURL, seenAtt)...)

		rowText := clean(row.Text())
		if len([]rune(rowText)) < 3 {
			return true
		}
		if strings.Contains(truncate(rowText, 20), "Pkt.:") {
			return true
		}
		for _, marker := range stopMarkers {
			if strings.Contains(rowText, marker) {
				return false
			}
		}
		if strings.Contains(rowText, "Anhänge anzeigen") || strings.Contains(rowText, "Keine Anhänge") {
			return false
		}

		if item.Title == "" {
			item.Title = truncate(rowText, maxTitleLen)
			return true
		}

		links := rowLinks(row, baseURL)
		switch {
		case len(links) > 0:
			item.Links = append(item.Links, links...)
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(rowText)
			for _, l := range links {
				fmt.Fprintf(&text, "\n\n[Link: %s]\n  URL: %s", l.Text, l.URL)
			}
		case text.Len() == 0:
			text.WriteString(truncate(rowText, maxTextLen))
		case text.Len() < appendTextCap:
			text.WriteString("\n")
			text.WriteString(truncate(rowText, maxRowLen))
		}
		return true
	})
	item.Text = text.String()
}

// rowLinks returns the anchors in row with absolute URLs. Empty anchors and
// "#" placeholders are skipped.
func rowLinks(row *goquery.Selection, baseURL string) []types.Link {
	var out []types.Link
	row.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		text := clean(a.Text())
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if text == "" || href == "" || href == "#" {
			return
		}
		abs, err := resolve(baseURL+"/", href)
		if err != nil {
			return
		}
		out = append(out, types.Link{Text: text, URL: abs})
	})
	return out
}

// attachments collects download links within sel that are not in seen yet.
// goquery has already decoded HTML entities in attribute values.
func attachments(sel *goquery.Selection, baseURL string, seen map[string]bool) []types.RawAttachment {
	var out []types.RawAttachment
	sel.Find(`a[href*="downloadIxServlet"]`).Each(func(_ int, a *goquery.Selection) {
		name := clean(a.Text())
		href, _ := a.Attr("href")
		if href == "" || name == "" || strings.Contains(name, "Diese Datei anzeigen") || len([]rune(name)) < 5 {
			return
		}
		abs, err := resolve(baseURL+"/", href)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, types.RawAttachment{Name: name, URL: abs})
	})
	return out
}

// clean collapses runs of whitespace and trims the result.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
