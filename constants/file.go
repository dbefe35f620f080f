package constants

import "strings"

// File formats recognized by the validator. Only PDF supports QR extraction.
const (
	PDF     = "PDF"
	IMAGE   = "IMAGE"
	TXT     = "TXT"
	UNKNOWN = "UNKNOWN"
)

var extToFormat = map[string]string{
	"pdf":  PDF,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
	"txt":  TXT,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a file format constant.
func MapExtToFormat(ext string) string {
	if f, ok := extToFormat[NormalizeExt(ext)]; ok {
		return f
	}
	return UNKNOWN
}
