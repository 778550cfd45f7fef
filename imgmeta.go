package photopipe

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// Provenance holds the EXIF/IPTC/XMP fields this pipeline cares about:
// who made the image, who claims rights over it, and any embedded license.
type Provenance struct {
	Artist       string // EXIF Artist
	Byline       string // IPTC Byline
	Creator      string // Dublin Core creator (via XMP)
	Copyright    string // EXIF Copyright / IPTC CopyrightNotice
	Credit       string // IPTC Credit
	UsageTerms   string // XMP UsageTerms
	WebStatement string // XMP WebStatement (often a license URL)
	Rights       string // Dublin Core rights
}

// stockAgencyMarks are substrings that identify a stock-photo agency when
// found in any rights field. An image carrying one is never importable.
var stockAgencyMarks = []string{
	"shutterstock",
	"getty images",
	"gettyimages",
	"istock",
	"alamy",
	"depositphotos",
	"dreamstime",
	"123rf",
	"adobe stock",
	"adobestock",
	"bigstockphoto",
	"stocksy",
	"pond5",
	"masterfile",
	"superstock",
	"agefotostock",
	"freepik",
}

// provenanceTags maps (source, tag-name) to wanted for the decode filter.
var provenanceTags = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"Artist":    true,
		"Copyright": true,
	},
	imagemeta.IPTC: {
		"Byline":          true,
		"Credit":          true,
		"CopyrightNotice": true,
	},
	imagemeta.XMP: {
		"Creator":      true,
		"Rights":       true,
		"UsageTerms":   true,
		"WebStatement": true,
	},
}

// ExtractProvenance parses embedded metadata from raw image bytes.
// Returns nil when the data is empty, unparsable, or carries none of the
// wanted fields. Never returns an error.
func ExtractProvenance(data []byte) *Provenance {
	if len(data) == 0 {
		return nil
	}

	p := &Provenance{}
	found := false

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := provenanceTags[ti.Source]; ok {
				return tags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			s := metaValueString(ti.Value)
			if s == "" {
				return nil
			}
			switch ti.Tag {
			case "Artist":
				p.Artist = s
			case "Copyright", "CopyrightNotice":
				p.Copyright = s
			case "Byline":
				p.Byline = s
			case "Credit":
				p.Credit = s
			case "Creator":
				p.Creator = s
			case "Rights":
				p.Rights = s
			case "UsageTerms":
				p.UsageTerms = s
			case "WebStatement":
				p.WebStatement = s
			default:
				return nil
			}
			found = true
			return nil
		},
	})
	if err != nil || !found {
		return nil
	}
	return p
}

// Author returns the best available creator name, or "".
func (p *Provenance) Author() string {
	if p == nil {
		return ""
	}
	for _, s := range []string{p.Artist, p.Byline, p.Creator, p.Credit} {
		if s != "" {
			return s
		}
	}
	return ""
}

// StockAgency reports whether any rights field carries a known stock-photo
// agency fingerprint.
func (p *Provenance) StockAgency() bool {
	if p == nil {
		return false
	}
	for _, f := range []string{p.Copyright, p.Credit, p.Rights, p.Artist, p.Byline, p.Creator} {
		if f == "" {
			continue
		}
		lower := strings.ToLower(f)
		for _, mark := range stockAgencyMarks {
			if strings.Contains(lower, mark) {
				return true
			}
		}
	}
	return false
}

// EmbeddedLicense returns a canonical license derived from metadata license
// URLs or usage terms, or "" when the metadata declares none.
func (p *Provenance) EmbeddedLicense() string {
	if p == nil {
		return ""
	}
	for _, f := range []string{p.WebStatement, p.UsageTerms, p.Rights} {
		if IsCCLicenseURL(f) {
			return LicenseFromCCURL(f)
		}
	}
	return ""
}

// metaValueString extracts a string from a tag value. XMP values may arrive
// as string, []string, or []any.
func metaValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
