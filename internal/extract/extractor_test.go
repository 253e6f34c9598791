package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/analogtech/cofounder/internal/models"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPlain(t *testing.T) {
	e := NewExtractor(50)
	text, err := e.Extract([]byte("hello world"), models.FormatTXT)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "hello world" {
		t.Errorf("got %q, want %q", text, "hello world")
	}
}

func TestExtractPlainInvalidUTF8(t *testing.T) {
	e := NewExtractor(50)
	text, err := e.Extract([]byte{'a', 0xff, 'b'}, models.FormatTXT)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "a") || !strings.Contains(text, "b") {
		t.Errorf("valid bytes lost: %q", text)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := NewExtractor(50)
	if _, err := e.Extract([]byte("x"), models.FormatUnknown); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExtractDOCX(t *testing.T) {
	// Paragraph and run elements carry attributes, as real Word output does.
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p w:rsidR="00A12345"><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	content := buildZip(t, map[string]string{
		"word/document.xml": docXML,
	})

	e := NewExtractor(50)
	text, err := e.Extract(content, models.FormatDOCX)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "First paragraph.") {
		t.Errorf("missing first paragraph: %q", text)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Errorf("runs not joined: %q", text)
	}
}

func TestExtractDOCXContentTypesOverride(t *testing.T) {
	docXML := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>relocated body</w:t></w:r></w:p></w:body></w:document>`
	contentTypesXML := `<?xml version="1.0"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Override PartName="/word/doc2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`
	content := buildZip(t, map[string]string{
		"[Content_Types].xml": contentTypesXML,
		"word/doc2.xml":       docXML,
	})

	e := NewExtractor(50)
	text, err := e.Extract(content, models.FormatDOCX)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "relocated body") {
		t.Errorf("override part not used: %q", text)
	}
}

func TestExtractDOCXNotAZip(t *testing.T) {
	e := NewExtractor(50)
	if _, err := e.Extract([]byte("plainly not a zip"), models.FormatDOCX); err == nil {
		t.Error("expected error for non-zip DOCX")
	}
}

func TestExtractEPUBSpineOrder(t *testing.T) {
	container := `<?xml version="1.0"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`
	// Spine lists ch2 before ch1, the opposite of zip entry order.
	opf := `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf">
  <manifest>
    <item id="c1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="c2"/><itemref idref="c1"/></spine>
</package>`
	content := buildZip(t, map[string]string{
		"META-INF/container.xml": container,
		"OEBPS/content.opf":      opf,
		"OEBPS/ch1.xhtml":        `<html><body><p>alpha chapter</p></body></html>`,
		"OEBPS/ch2.xhtml":        `<html><body><p>omega chapter</p></body></html>`,
	})

	e := NewExtractor(50)
	text, err := e.Extract(content, models.FormatEPUB)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	omega := strings.Index(text, "omega chapter")
	alpha := strings.Index(text, "alpha chapter")
	if omega < 0 || alpha < 0 {
		t.Fatalf("chapters missing from output: %q", text)
	}
	if omega > alpha {
		t.Errorf("spine order not respected: %q", text)
	}
}

func TestExtractEPUBEntities(t *testing.T) {
	container := `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`
	opf := `<package xmlns="http://www.idpf.org/2007/opf"><manifest><item id="c1" href="ch1.xhtml"/></manifest><spine><itemref idref="c1"/></spine></package>`
	content := buildZip(t, map[string]string{
		"META-INF/container.xml": container,
		"content.opf":            opf,
		"ch1.xhtml":              `<html><body><p>Profit &amp; Loss &mdash; Q1</p><style>p{color:red}</style></body></html>`,
	})

	e := NewExtractor(50)
	text, err := e.Extract(content, models.FormatEPUB)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "Profit & Loss") {
		t.Errorf("entities not decoded: %q", text)
	}
	if strings.Contains(text, "color:red") {
		t.Errorf("style content leaked: %q", text)
	}
}

func TestExtractEPUBMissingContainer(t *testing.T) {
	content := buildZip(t, map[string]string{"mimetype": "application/epub+zip"})
	e := NewExtractor(50)
	if _, err := e.Extract(content, models.FormatEPUB); err == nil {
		t.Error("expected error for EPUB without container.xml")
	}
}

func TestNeedsOCR(t *testing.T) {
	e := NewExtractor(50)
	tests := []struct {
		name   string
		format models.Format
		text   string
		want   bool
	}{
		{"empty pdf output", models.FormatPDF, "", true},
		{"whitespace only", models.FormatPDF, "   \n\t  ", true},
		{"thin pdf output", models.FormatPDF, "p. 3", true},
		{"real pdf text", models.FormatPDF, strings.Repeat("business strategy ", 10), false},
		{"thin txt output", models.FormatTXT, "hi", false},
		{"thin docx output", models.FormatDOCX, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.NeedsOCR(tt.format, tt.text); got != tt.want {
				t.Errorf("NeedsOCR(%v, %q) = %v, want %v", tt.format, tt.text, got, tt.want)
			}
		})
	}
}
