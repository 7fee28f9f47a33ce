package compressor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
)

// softwareMark is written into the EXIF Software tag of JPEG outputs so
// reruns can recognize and skip files this tool already produced.
const softwareMark = "img-compress"

// hasMarkFast checks the EXIF Software tag with goexif. Cheap, no
// external process; used as fallback when exiftool is not installed.
func hasMarkFast(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return false
	}
	tag, err := x.Get(exif.Software)
	if err != nil {
		return false
	}
	val, err := tag.StringVal()
	if err != nil {
		return false
	}
	return strings.Contains(val, softwareMark)
}

// hasMarkExiftool checks the Software tag using exiftool, which also
// sees tags goexif cannot parse.
func hasMarkExiftool(path string) (bool, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return false, err
	}
	defer et.Close()
	files := et.ExtractMetadata(path)
	if len(files) == 0 {
		return false, fmt.Errorf("no metadata extracted from %s", path)
	}
	if files[0].Err != nil {
		return false, files[0].Err
	}
	if sw, ok := files[0].Fields["Software"].(string); ok {
		return strings.Contains(sw, softwareMark), nil
	}
	return false, nil
}

// preserveMetadata copies EXIF tags from src to dst and stamps the
// Software mark, using the exiftool binary.
func preserveMetadata(src, dst string) error {
	cmdCopy := exec.Command("exiftool", "-TagsFromFile", src, "-overwrite_original", dst)
	if err := cmdCopy.Run(); err != nil {
		return fmt.Errorf("exiftool copy failed: %w", err)
	}
	cmdSet := exec.Command("exiftool", "-overwrite_original", "-Software="+softwareMark, dst)
	if err := cmdSet.Run(); err != nil {
		return fmt.Errorf("exiftool set Software failed: %w", err)
	}
	return nil
}
