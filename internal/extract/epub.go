package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"
)

// epubContainerPath is the OCF-mandated location of the container manifest.
const epubContainerPath = "META-INF/container.xml"

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID   string `xml:"id,attr"`
		Href string `xml:"href,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

var (
	// Scripts and styles carry no reader-visible text; drop them whole.
	epubScriptStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	// Block-level closers become newlines so chapters do not run together.
	epubBlockEnd = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote)>|<br\s*/?>`)
	epubTag      = regexp.MustCompile(`<[^>]+>`)
	epubBlank    = regexp.MustCompile(`\n{3,}`)
)

// extractEPUB extracts text from .epub bytes. EPUB is a ZIP whose reading
// order lives in the OPF spine, not in the zip directory order, so the
// container is resolved first and the spine's XHTML documents are
// concatenated in spine order.
func extractEPUB(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract EPUB: not a zip: %w", err)
	}

	containerXML, err := readZipFile(zr, epubContainerPath)
	if err != nil {
		return "", fmt.Errorf("extract EPUB: %w", err)
	}
	var container epubContainer
	if err := xml.Unmarshal(containerXML, &container); err != nil {
		return "", fmt.Errorf("extract EPUB: parse container: %w", err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("extract EPUB: no rootfile in container")
	}
	opfPath := container.Rootfiles[0].FullPath

	opfXML, err := readZipFile(zr, opfPath)
	if err != nil {
		return "", fmt.Errorf("extract EPUB: %w", err)
	}
	var pkg epubPackage
	if err := xml.Unmarshal(opfXML, &pkg); err != nil {
		return "", fmt.Errorf("extract EPUB: parse package: %w", err)
	}

	hrefByID := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefByID[item.ID] = item.Href
	}

	opfDir := path.Dir(opfPath)
	var b strings.Builder
	for _, ref := range pkg.Spine {
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		docPath := href
		if opfDir != "." {
			docPath = path.Join(opfDir, href)
		}
		data, err := readZipFile(zr, docPath)
		if err != nil {
			// Missing spine entries are tolerated; the rest of the book
			// is still worth indexing.
			continue
		}
		b.WriteString(stripHTML(string(data)))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}

func stripHTML(s string) string {
	s = epubScriptStyle.ReplaceAllString(s, " ")
	s = epubBlockEnd.ReplaceAllString(s, "\n")
	s = epubTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	// Collapse intra-line runs of spaces without destroying paragraph breaks.
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	s = strings.Join(lines, "\n")
	return epubBlank.ReplaceAllString(s, "\n\n")
}
