// Package thumbnail はアップロード画像を固定サイズのPNGに変換します。
package thumbnail

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Resizer は画像バイト列を width x height に変換して再エンコードします。
type Resizer interface {
	Resize(data []byte, width, height int) ([]byte, error)
}

// ImagingResizer は disintegration/imaging による Resizer の実装です。
// 縦横比を保ったまま中央を切り抜いて指定サイズに揃え、PNGで返す。
type ImagingResizer struct{}

func (ImagingResizer) Resize(data []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
