package mirror

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"

	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// Finalize returns the bytes to store for an item of the given kind.
// Images are decoded and re-encoded, which drops embedded metadata; every other kind is returned as is.
// On error the caller keeps the original content.
func Finalize(kind models.MirrorKind, content []byte) ([]byte, error) {
	if kind != models.KindImage {
		return content, nil
	}
	return reencodeImage(content)
}

func reencodeImage(content []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %w", utils.ErrParsing, err)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	case "gif":
		// Re-read all frames so animations survive
		var anim *gif.GIF
		anim, err = gif.DecodeAll(bytes.NewReader(content))
		if err == nil {
			err = gif.EncodeAll(&buf, anim)
		}
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("%w: unsupported image format %q", utils.ErrParsing, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s image: %w", utils.ErrParsing, format, err)
	}
	return buf.Bytes(), nil
}
