package utils

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

func B2S(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

func S2B(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func PurifyForUtf8(s string) string {
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "")
}

// 按代码页转为UTF-8，代码页未知时仅清理非法字节
func DecodeText(s []byte, charset string) (d []byte, e error) {
	enc, e := htmlindex.Get(charset)
	if e != nil {
		return
	}
	reader := transform.NewReader(bytes.NewReader(s), enc.NewDecoder())
	d, e = io.ReadAll(reader)
	return
}

// shp属性文本转UTF-8（GDAL已按cpg转码的直接返回）
func DecodeShpText(s, charset string) string {
	s = strings.TrimSpace(s)
	if utf8.ValidString(s) {
		return PurifyForUtf8(s)
	}
	d, e := DecodeText(S2B(s), charset)
	if e != nil {
		return PurifyForUtf8(s)
	}
	return strings.TrimSpace(B2S(d))
}
