package utils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Kolibri отдаёт gif превью для некоторых каналов
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// DefaultJPEGQuality используется когда quality не задан или вне 1..100.
const DefaultJPEGQuality = 85

// Thumbnail ужимает изображение до maxWidth, сохраняя пропорции, и кодирует в JPEG.
//
// Параметры:
//   - data: байты исходного изображения (JPEG, PNG, GIF)
//   - maxWidth: целевая ширина. 0 или ширина больше исходной - без ресайза, только перекодирование.
//   - quality: качество JPEG (1-100)
//
// Возвращает JPEG байты и итоговые размеры.
func Thumbnail(data []byte, maxWidth int, quality int) ([]byte, image.Point, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if maxWidth > 0 && bounds.Dx() > maxWidth {
		// height=0 - resize сам сохраняет aspect ratio
		img = resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), img.Bounds().Size(), nil
}
