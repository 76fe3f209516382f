package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_CPG = ".cpg"
	FILE_EXT_TMP = ".tmp"

	UTF8  = "UTF8"
	UTF_8 = "UTF-8"
)

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

// 读取shp同名cpg文件中的编码，不存在或为空时返回def
func GetShpEncoding(shp, def string) (enc string) {
	enc = def
	raw, err := os.ReadFile(strings.TrimSuffix(shp, filepath.Ext(shp)) + FILE_EXT_CPG)
	if err != nil {
		return
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		enc = s
	}
	if u := strings.ToUpper(enc); u == UTF8 || u == UTF_8 {
		enc = UTF_8
	}
	return
}

// 先写同目录下的临时文件再重命名，避免中途失败留下不完整的文件
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+FILE_EXT_TMP)
	if err = os.WriteFile(tmp, data, perm); err != nil {
		os.Remove(tmp)
		return
	}
	if err = os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
	}
	return
}
