package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DocxTitle heads every exported daily report.
const DocxTitle = "Daily Growth Report"

type paragraphKind int

const (
	plainParagraph paragraphKind = iota
	boldParagraph
	bulletParagraph
	heading1
	heading2
	heading3
)

var paragraphStyles = map[paragraphKind]string{
	bulletParagraph: "ListBullet",
	heading1:        "Heading1",
	heading2:        "Heading2",
	heading3:        "Heading3",
}

// Checked in order; "🧠 Overall" must win over the 🧠 growth row and
// "🟢 Legend" over the 🟢 band bullet.
var lineRules = []struct {
	prefixes []string
	kind     paragraphKind
}{
	{[]string{"🧠 Overall"}, heading2},
	{[]string{"🟢 Legend"}, heading3},
	{[]string{"📊"}, heading1},
	{[]string{"🌈", "📣"}, heading2},
	{[]string{"🧒", "📅", "🎯", "🌱", "🧠", "😊", "🤝", "🎨", "🏃", "🧭", "🚀"}, boldParagraph},
	{[]string{"✅", "⚠️", "❌", "🔵", "🟢", "🟡", "🔴"}, bulletParagraph},
}

type paragraph struct {
	kind paragraphKind
	text string
}

// classify maps one report line to a paragraph, dropping markdown emphasis
// and heading markers.
func classify(line string) (paragraph, bool) {
	line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
	if line == "" {
		return paragraph{}, false
	}

	if strings.HasPrefix(line, "#") {
		level := len(line) - len(strings.TrimLeft(line, "#"))
		text := strings.TrimSpace(line[level:])
		switch {
		case level <= 1:
			return paragraph{heading1, text}, true
		case level == 2:
			return paragraph{heading2, text}, true
		default:
			return paragraph{heading3, text}, true
		}
	}
	for _, prefix := range []string{"- ", "* "} {
		if strings.HasPrefix(line, prefix) {
			return paragraph{bulletParagraph, "• " + strings.TrimSpace(line[len(prefix):])}, true
		}
	}

	for _, rule := range lineRules {
		for _, prefix := range rule.prefixes {
			if strings.HasPrefix(line, prefix) {
				return paragraph{rule.kind, line}, true
			}
		}
	}
	return paragraph{plainParagraph, line}, true
}

// Docx writes report as a Word document to w. The report's own title line is
// dropped when it repeats DocxTitle.
func Docx(w io.Writer, report string) error {
	var body bytes.Buffer
	writeParagraph(&body, "Title", false, DocxTitle)

	for i, line := range strings.Split(report, "\n") {
		p, ok := classify(line)
		if !ok {
			continue
		}
		if i == 0 && strings.EqualFold(strings.Trim(p.text, "# "), DocxTitle) {
			continue
		}
		writeParagraph(&body, paragraphStyles[p.kind], p.kind == boldParagraph, p.text)
	}

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentHead + body.String() + documentTail},
	}

	zw := zip.NewWriter(w)
	for _, part := range parts {
		f, err := zw.Create(part.name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", part.name, err)
		}
		if _, err := io.WriteString(f, part.content); err != nil {
			return fmt.Errorf("failed to write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish document: %w", err)
	}
	return nil
}

func writeParagraph(b *bytes.Buffer, style string, bold bool, text string) {
	b.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(b, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	b.WriteString("<w:r>")
	if bold {
		b.WriteString("<w:rPr><w:b/></w:rPr>")
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(b, []byte(text))
	b.WriteString("</w:t></w:r></w:p>")
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:spacing w:after="120"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="56"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:basedOn w:val="Normal"/><w:pPr><w:ind w:left="360"/></w:pPr></w:style>` +
	`</w:styles>`

const documentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentTail = `<w:sectPr/></w:body></w:document>`
