package mailscan

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"packtrack/internal"
	"packtrack/internal/pipeline"
	"packtrack/internal/util"
)

// Carrier tracking formats seen in shipping notifications. Order matters:
// a UPS number embedded in noise must not be half-matched by the USPS rule.
var trackingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b1Z[A-Z0-9]{16}\b`),           // UPS
	regexp.MustCompile(`\bTBA\d{12}\b`),                // Amazon Logistics
	regexp.MustCompile(`\b9\d{21}\b`),                  // USPS
	regexp.MustCompile(`\b(?:94|92|93|95)\d{20,24}\b`), // USPS long forms
}

var asinLinkPattern = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)

var itemNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)your (?:package|order)[:,]?\s+"([^"]+)"`),
	regexp.MustCompile(`(?i)shipped:\s*(.+?)\s*$`),
}

// ExtractShipments pulls tracking numbers out of one raw shipping email:
// plain-text body, HTML body, PDF shipping confirmations and spreadsheet
// attachments are all scanned. The subject line supplies the item name when
// the body does not.
func ExtractShipments(raw []byte) ([]internal.ScannedPackage, string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}

	subject := env.GetHeader("Subject")
	itemName := itemNameFromSubject(subject)

	var text strings.Builder
	text.WriteString(env.Text)
	text.WriteString("\n")

	imageURL := ""
	if env.HTML != "" {
		htmlText, asin := flattenHTML(env.HTML)
		text.WriteString(htmlText)
		text.WriteString("\n")
		imageURL = pipeline.ImageURLForASIN(asin)
	}

	for _, att := range env.Attachments {
		lower := strings.ToLower(att.FileName)
		switch {
		case strings.HasSuffix(lower, ".pdf"):
			text.WriteString(pdfText(att.Content))
			text.WriteString("\n")
		case strings.HasSuffix(lower, ".xlsx"):
			text.WriteString(xlsxText(att.Content))
			text.WriteString("\n")
		}
	}

	body := text.String()
	numbers := findTrackingNumbers(body)
	if imageURL == "" {
		if m := asinLinkPattern.FindStringSubmatch(body); m != nil {
			imageURL = pipeline.ImageURLForASIN(m[1])
		}
	}

	out := make([]internal.ScannedPackage, 0, len(numbers))
	for _, tn := range numbers {
		out = append(out, internal.ScannedPackage{
			TrackingNumber: tn,
			ItemName:       itemName,
			Date:           internal.PendingDate,
			ImageURL:       imageURL,
		})
	}
	return out, subject, nil
}

func findTrackingNumbers(text string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, re := range trackingPatterns {
		for _, m := range re.FindAllString(text, -1) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

func itemNameFromSubject(subject string) string {
	for _, re := range itemNamePatterns {
		if m := re.FindStringSubmatch(subject); m != nil {
			return util.NormalizeSpaces(m[1])
		}
	}
	return util.NormalizeSpaces(subject)
}

// flattenHTML renders the HTML body to plain text and picks up the first
// product-page ASIN among its links.
func flattenHTML(html string) (text, asin string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := asinLinkPattern.FindStringSubmatch(href); m != nil {
			asin = m[1]
			return false
		}
		return true
	})

	var b strings.Builder
	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}
		if t := util.NormalizeSpaces(sel.Text()); t != "" {
			b.WriteString(t)
			b.WriteString("\n")
		}
	})
	if b.Len() == 0 {
		b.WriteString(util.NormalizeSpaces(doc.Text()))
	}
	return b.String(), asin
}

func pdfText(content []byte) string {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return ""
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func xlsxText(content []byte) string {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return ""
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		for _, row := range rows {
			for _, cell := range row {
				b.WriteString(pipeline.CoerceTracking(cell))
				b.WriteString(" ")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
