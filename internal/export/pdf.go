package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/ledger"
)

// The printable export is a self-contained PDF 1.4 document assembled
// directly: a page tree of Courier text pages plus a cross-reference table.
// Nothing here needs an external renderer; the format requirements are the
// %PDF magic, valid object structure, and a paginated entry listing.

const (
	pdfPageWidth  = 612 // US Letter, points
	pdfPageHeight = 792
	pdfMargin     = 50
	pdfFontSize   = 9
	pdfLeading    = 12
	pdfLinesPage  = 54
)

func renderPDF(entries []*ledger.AuditEntry, exportCtx Context) ([]byte, error) {
	lines := pdfLines(entries, exportCtx)
	pages := paginate(lines, pdfLinesPage)
	return assemblePDF(pages), nil
}

// pdfLines builds the report header plus a compact per-entry listing.
func pdfLines(entries []*ledger.AuditEntry, exportCtx Context) []string {
	integrity := fmt.Sprintf("chain valid (%d entries checked)", exportCtx.Report.TotalChecked)
	if !exportCtx.Report.Valid {
		integrity = fmt.Sprintf("chain INVALID (%d violations over %d entries)",
			exportCtx.Report.ViolationCount, exportCtx.Report.TotalChecked)
	}

	lines := []string{
		"AUDIT LEDGER EXPORT",
		"",
		"Exported at: " + ledger.CanonicalTimestamp(exportCtx.ExportedAt),
		"Exported by: " + orDash(exportCtx.ExportedBy),
		"Tenant:      " + orDash(exportCtx.TenantID),
		"Filters:     " + filterSummary(exportCtx.Filter),
		"Integrity:   " + integrity,
		fmt.Sprintf("Entries:     %d", len(entries)),
		"",
	}

	if len(entries) == 0 {
		lines = append(lines, "No entries matched the export criteria.")
		return lines
	}

	for _, e := range entries {
		subject := e.EntityType
		if e.EntityID != "" {
			subject += "/" + e.EntityID
		}
		lines = append(lines,
			fmt.Sprintf("#%-6d %s  %s  %s",
				e.SequenceNumber, ledger.CanonicalTimestamp(e.Timestamp), e.Action, subject),
			fmt.Sprintf("        actor=%s  hash=%s", orDash(e.ActorID), e.HashChain),
		)
	}
	return lines
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// filterSummary renders the filter criteria as compact key=value pairs.
func filterSummary(f ledger.Filter) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("tenantId", f.TenantID)
	add("action", f.Action)
	add("entityType", f.EntityType)
	add("entityId", f.EntityID)
	add("actorId", f.ActorID)
	add("actorName", f.ActorName)
	add("search", f.Search)
	if f.DateFrom != nil {
		add("dateFrom", ledger.CanonicalTimestamp(*f.DateFrom))
	}
	if f.DateTo != nil {
		add("dateTo", ledger.CanonicalTimestamp(*f.DateTo))
	}
	if f.IncludeArchived {
		parts = append(parts, "includeArchived=true")
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, " ")
}

func paginate(lines []string, perPage int) [][]string {
	var pages [][]string
	for len(lines) > perPage {
		pages = append(pages, lines[:perPage])
		lines = lines[perPage:]
	}
	return append(pages, lines)
}

// assemblePDF writes the document. Object numbering is fixed: 1 catalog,
// 2 page tree, then a (page, contents) object pair per page, and the font
// object last.
func assemblePDF(pages [][]string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	fontObj := 3 + 2*len(pages)
	offsets := make([]int, fontObj+1) // index = object number

	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")

	var kids []string
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+2*i))
	}
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(pages)))

	for i, page := range pages {
		pageObj := 3 + 2*i
		contentObj := pageObj + 1

		writeObj(pageObj, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>",
			pdfPageWidth, pdfPageHeight, contentObj, fontObj))

		stream := contentStream(page)
		writeObj(contentObj, fmt.Sprintf(
			"<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	writeObj(fontObj, "<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>")

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", fontObj+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= fontObj; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		fontObj+1, xrefStart)

	return buf.Bytes()
}

func contentStream(lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "BT\n/F1 %d Tf\n%d TL\n%d %d Td\n",
		pdfFontSize, pdfLeading, pdfMargin, pdfPageHeight-pdfMargin)
	for i, line := range lines {
		if i > 0 {
			b.WriteString("T*\n")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", escapePDFText(line))
	}
	b.WriteString("ET\n")
	return b.String()
}

// escapePDFText escapes the PDF string delimiters and drops bytes outside
// printable ASCII, which the builtin Courier encoding cannot represent.
func escapePDFText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
