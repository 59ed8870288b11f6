package source

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// containerPath is the well-known location of container.xml in an EPUB.
const epubContainerPath = "META-INF/container.xml"

// epubContainer models META-INF/container.xml, used to locate the OPF.
type epubContainer struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opfPackage is the subset of the OPF <package> element this package
// needs: the manifest and the spine reading order.
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// opfItem is a single manifest <item>.
type opfItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// parseEpubContainer returns the OPF path from container.xml, falling
// back to scanning for the first .opf entry when the file is missing.
func parseEpubContainer(zr *zip.Reader, read func(*zip.File) ([]byte, error)) (string, error) {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, epubContainerPath) {
			data, err := read(f)
			if err != nil {
				return "", fmt.Errorf("read container.xml: %w", err)
			}
			var c epubContainer
			if err := xml.Unmarshal(stripBOM(data), &c); err != nil {
				return "", fmt.Errorf("parse container.xml: %w", err)
			}
			for _, rf := range c.RootFiles {
				if p := strings.TrimSpace(rf.FullPath); p != "" {
					return p, nil
				}
			}
			return "", fmt.Errorf("container.xml has no rootfile: %w", ErrContainerInvalid)
		}
	}

	// Fallback: first .opf entry anywhere in the archive.
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("no OPF found: %w", ErrContainerInvalid)
}

// parseOPF decodes an OPF package document.
func parseOPF(data []byte) (*opfPackage, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(stripBOM(data), &pkg); err != nil {
		return nil, fmt.Errorf("parse OPF: %w", err)
	}
	return &pkg, nil
}

// stripBOM removes a leading UTF-8 BOM, which trips encoding/xml.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
