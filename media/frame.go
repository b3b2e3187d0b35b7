package media

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// FramePixelFormat names the raw pixel layout of a video frame buffer
// passed to ResizeFrame. Mirrors runtimedata's PixelFormat without this
// package depending on it.
type FramePixelFormat int

const (
	FrameRGB FramePixelFormat = iota
	FrameRGBA
	FrameBGR
)

// ResizeFrame scales a raw (undecoded) pixel buffer to targetWidth x
// targetHeight using the same high-quality scaler ResizeImage uses for
// encoded images, without the encode/decode round trip an encoded-image
// path would force on every frame of a stream.
//
// YUV formats aren't supported here; a caller holding YUV420/422/444
// frames must convert to RGB before calling this.
func ResizeFrame(buf []byte, width, height int, format FramePixelFormat, targetWidth, targetHeight int) ([]byte, error) {
	src, err := decodeRawFrame(buf, width, height, format)
	if err != nil {
		return nil, err
	}

	if targetWidth == width && targetHeight == height {
		return buf, nil
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("media: invalid target frame size %dx%d", targetWidth, targetHeight)
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return encodeRawFrame(dst, format), nil
}

func decodeRawFrame(buf []byte, width, height int, format FramePixelFormat) (image.Image, error) {
	switch format {
	case FrameRGBA:
		if len(buf) != width*height*4 {
			return nil, fmt.Errorf("media: RGBA frame buffer length %d does not match %dx%d", len(buf), width, height)
		}
		return &image.RGBA{Pix: buf, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, nil
	case FrameRGB, FrameBGR:
		if len(buf) != width*height*3 {
			return nil, fmt.Errorf("media: RGB frame buffer length %d does not match %dx%d", len(buf), width, height)
		}
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			r, g, b := buf[i*3], buf[i*3+1], buf[i*3+2]
			if format == FrameBGR {
				r, b = b, r
			}
			o := i * 4
			img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = r, g, b, 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("media: unsupported frame pixel format %v", format)
	}
}

// encodeRawFrame packs dst back into the wire layout format expects.
// dst is always an *image.RGBA produced by decodeRawFrame/the scaler.
func encodeRawFrame(dst *image.RGBA, format FramePixelFormat) []byte {
	if format == FrameRGBA {
		return dst.Pix
	}

	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	out := make([]byte, w*h*3)
	for i := 0; i < w*h; i++ {
		r, g, b := dst.Pix[i*4], dst.Pix[i*4+1], dst.Pix[i*4+2]
		if format == FrameBGR {
			r, b = b, r
		}
		out[i*3], out[i*3+1], out[i*3+2] = r, g, b
	}
	return out
}
